package mbox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/archeo/internal/core/domain"
	"github.com/custodia-labs/archeo/internal/core/ports/driven"
)

func parseOne(t *testing.T, headers, body string, fallbacks ...string) *domain.RawRecord {
	t.Helper()
	input := "From a Sat Jan  1 00:00:00 2022\nFrom: a@example.com\n" + headers + "\n" + body
	p := New(strings.NewReader(input), driven.ParserOptions{CharsetFallbacks: fallbacks})
	records, skipped := collect(t, p)
	require.Empty(t, skipped)
	require.Len(t, records, 1)
	return records[0]
}

func TestDecode_QuotedPrintable(t *testing.T) {
	rec := parseOne(t,
		"Content-Type: text/plain; charset=utf-8\nContent-Transfer-Encoding: quoted-printable\n",
		"Caf=C3=A9 au lait, soft=\nwrapped\n")

	assert.Equal(t, "Café au lait, softwrapped", rec.Body)
}

func TestDecode_Base64(t *testing.T) {
	rec := parseOne(t,
		"Content-Type: text/plain\nContent-Transfer-Encoding: base64\n",
		"SGVsbG8g\nd29ybGQ=\n")

	assert.Equal(t, "Hello world", rec.Body)
}

func TestDecode_BadBase64KeepsRawWithWarning(t *testing.T) {
	rec := parseOne(t,
		"Content-Type: text/plain\nContent-Transfer-Encoding: base64\n",
		"!!!not base64!!!\n")

	assert.Equal(t, "!!!not base64!!!", rec.Body)
	require.NotEmpty(t, rec.Warnings)
	assert.Equal(t, domain.WarningDecode, rec.Warnings[0].Kind)
}

func TestDecode_MultipartPrefersPlainText(t *testing.T) {
	body := `--outer
Content-Type: text/html

<p>html version</p>
--outer
Content-Type: text/plain

plain version
--outer--
`
	rec := parseOne(t, "Content-Type: multipart/alternative; boundary=outer\n", body)

	assert.Equal(t, "plain version", rec.Body)
}

func TestDecode_NestedMultipartAndAttachments(t *testing.T) {
	body := `--outer
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/plain; charset=iso-8859-1
Content-Transfer-Encoding: quoted-printable

Gr=FC=DFe
--inner--
--outer
Content-Type: text/plain
Content-Disposition: attachment; filename="notes.txt"

attachment text
--outer--
`
	rec := parseOne(t, "Content-Type: multipart/mixed; boundary=outer\n", body)

	assert.Equal(t, "Grüße", rec.Body)
}

func TestDecode_HTMLOnly(t *testing.T) {
	body := `<html><head><title>t</title><style>p{}</style></head>
<body><p>First &amp; foremost</p><div>Second<br>line</div><script>alert(1)</script></body></html>
`
	rec := parseOne(t, "Content-Type: text/html; charset=utf-8\n", body)

	assert.Equal(t, "First & foremost\nSecond\nline", rec.Body)
}

func TestDecode_EncodedWordHeaders(t *testing.T) {
	rec := parseOne(t,
		"Subject: =?UTF-8?B?SGVsbG8gV8O2cmxk?=\nTo: =?ISO-8859-1?Q?J=F6rg?= <jorg@example.com>\n",
		"body\n")

	assert.Equal(t, "Hello Wörld", rec.Get(domain.FieldSubject))
	assert.Equal(t, "Jörg <jorg@example.com>", rec.Get(domain.FieldTo))
}

func TestDecode_GmailLabels(t *testing.T) {
	rec := parseOne(t, "X-Gmail-Labels: Inbox,Important,Opened\n", "body\n")

	assert.Equal(t, "Inbox,Important,Opened", rec.Get(domain.FieldLabels))
}

func TestDecode_CharsetFallback(t *testing.T) {
	rec := parseOne(t, "Content-Type: text/plain; charset=utf-8\n", "\xe9t\xe9\n", "windows-1252")

	assert.Equal(t, "été", rec.Body)
	require.Len(t, rec.Warnings, 1)
	assert.Equal(t, domain.WarningCharsetFallback, rec.Warnings[0].Kind)
}

func TestDecode_LossyWhenFallbacksExhausted(t *testing.T) {
	rec := parseOne(t, "Content-Type: text/plain; charset=x-made-up\n", "ok \xff\xfe\n")

	assert.Equal(t, "ok �", rec.Body)

	kinds := make([]domain.WarningKind, 0, len(rec.Warnings))
	for _, w := range rec.Warnings {
		kinds = append(kinds, w.Kind)
	}
	assert.Equal(t, []domain.WarningKind{domain.WarningCharsetFallback, domain.WarningEncoding}, kinds)
}

func TestCharsetDecoder(t *testing.T) {
	d := newCharsetDecoder([]string{"windows-1252"})

	t.Run("declared charset", func(t *testing.T) {
		s, warnings := d.decode("ISO-8859-1", []byte("na\xefve"), 0)
		assert.Equal(t, "naïve", s)
		assert.Empty(t, warnings)
	})

	t.Run("quoted label", func(t *testing.T) {
		s, warnings := d.decode(`"utf-8"`, []byte("plain"), 0)
		assert.Equal(t, "plain", s)
		assert.Empty(t, warnings)
	})

	t.Run("unknown label with valid utf-8", func(t *testing.T) {
		s, warnings := d.decode("x-unknown", []byte("ok"), 7)
		assert.Equal(t, "ok", s)
		require.Len(t, warnings, 1)
		assert.Equal(t, int64(7), warnings[0].Offset)
	})

	t.Run("tried list has no repeats", func(t *testing.T) {
		d := newCharsetDecoder([]string{"utf8", "UTF-8"})
		s, warnings := d.decode("utf-8", []byte("bad \xff"), 3)
		assert.Equal(t, "bad \uFFFD", s)
		require.Len(t, warnings, 1)
		assert.Equal(t, domain.WarningEncoding, warnings[0].Kind)
		assert.True(t, strings.HasSuffix(warnings[0].Message, `charset "utf-8", tried utf-8`), warnings[0].Message)
	})
}

func TestHTMLToText(t *testing.T) {
	assert.Equal(t, "Title\nBody text", htmlToText("<h1>Title</h1><p>Body   text</p>"))
	assert.Equal(t, "", htmlToText(""))
}
