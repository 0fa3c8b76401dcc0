package normaliser

import (
	"net/mail"
	"strings"

	"github.com/custodia-labs/archeo/internal/core/domain"
)

// Key prefixes of participant identity keys.
const (
	keyAddr = "addr:"
	keyName = "name:"
)

// NormaliseAddress lowercases and trims an address and strips a mailto:
// scheme and angle brackets. When foldGmail is set, gmail.com and
// googlemail.com local parts lose their dots and +tag suffix.
func NormaliseAddress(addr string, foldGmail bool) string {
	a := strings.ToLower(strings.TrimSpace(addr))
	a = strings.TrimPrefix(a, "mailto:")
	a = strings.Trim(a, "<>\"' ")
	a = strings.TrimRight(a, ".")
	if a == "" {
		return ""
	}
	if !foldGmail {
		return a
	}
	local, domainPart, ok := strings.Cut(a, "@")
	if !ok || (domainPart != "gmail.com" && domainPart != "googlemail.com") {
		return a
	}
	if i := strings.IndexByte(local, '+'); i >= 0 {
		local = local[:i]
	}
	local = strings.ReplaceAll(local, ".", "")
	if local == "" {
		return a
	}
	return local + "@gmail.com"
}

// IdentityKey returns the participant key for an identity.
func IdentityKey(id domain.Identity) string {
	if id.Address != "" {
		return keyAddr + id.Address
	}
	if n := normaliseName(id.Name); n != "" {
		return keyName + n
	}
	return ""
}

func normaliseName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// parseIdentities extracts identities from header-style values. Mailbox
// values are address lists; JSON values are one identity each. Values that
// do not parse as addresses are kept as bare addresses when they contain an
// "@" and as display names otherwise.
func parseIdentities(values []string, role domain.Role, format domain.Format, foldGmail bool) []domain.Identity {
	var out []domain.Identity
	for _, v := range values {
		if format == domain.FormatMailbox {
			if list, err := mail.ParseAddressList(v); err == nil {
				for _, a := range list {
					out = appendIdentity(out, a.Address, a.Name, role, foldGmail)
				}
				continue
			}
			for _, part := range strings.Split(v, ",") {
				out = appendLoose(out, part, role, foldGmail)
			}
			continue
		}
		out = appendLoose(out, v, role, foldGmail)
	}
	return out
}

func appendLoose(out []domain.Identity, v string, role domain.Role, foldGmail bool) []domain.Identity {
	v = strings.TrimSpace(v)
	if v == "" {
		return out
	}
	if a, err := mail.ParseAddress(v); err == nil {
		return appendIdentity(out, a.Address, a.Name, role, foldGmail)
	}
	if strings.Contains(v, "@") && !strings.ContainsAny(v, " \t") {
		return appendIdentity(out, v, "", role, foldGmail)
	}
	return appendIdentity(out, "", v, role, foldGmail)
}

func appendIdentity(out []domain.Identity, addr, name string, role domain.Role, foldGmail bool) []domain.Identity {
	id := domain.Identity{
		Address: NormaliseAddress(addr, foldGmail),
		Name:    strings.Join(strings.Fields(strings.Trim(name, "\"'")), " "),
		Role:    role,
	}
	if id.Name != "" && strings.EqualFold(id.Name, id.Address) {
		id.Name = ""
	}
	if id.IsZero() {
		return out
	}
	return append(out, id)
}

// isAutomated reports whether an address belongs to a bulk or no-reply sender.
func isAutomated(addr string, prefixes, domains []string) bool {
	local, domainPart, ok := strings.Cut(addr, "@")
	if !ok {
		return false
	}
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(local, strings.ToLower(p)) {
			return true
		}
	}
	for _, d := range domains {
		d = strings.ToLower(strings.TrimPrefix(d, "@"))
		if d != "" && (domainPart == d || strings.HasSuffix(domainPart, "."+d)) {
			return true
		}
	}
	return false
}

// selfKeys turns configured self identities into participant keys.
// Entries may be keys already ("addr:..."/"name:...") or bare addresses.
func selfKeys(entries []string, foldGmail bool) map[string]bool {
	keys := make(map[string]bool, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		switch {
		case e == "":
		case strings.HasPrefix(strings.ToLower(e), keyName):
			keys[keyName+normaliseName(e[len(keyName):])] = true
		case strings.HasPrefix(strings.ToLower(e), keyAddr):
			keys[keyAddr+NormaliseAddress(e[len(keyAddr):], foldGmail)] = true
		case strings.Contains(e, "@"):
			keys[keyAddr+NormaliseAddress(e, foldGmail)] = true
		default:
			keys[keyName+normaliseName(e)] = true
		}
	}
	return keys
}
