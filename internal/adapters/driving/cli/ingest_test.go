package cli

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/archeo/internal/core/domain"
)

func TestIngestCmd_Use(t *testing.T) {
	assert.Equal(t, "ingest PATH...", ingestCmd.Use)
	assert.Contains(t, ingestCmd.Long, "snapshot cache")
}

func TestIngestCmd_PrintsSummary(t *testing.T) {
	ingestor := &mockIngestor{report: testReport()}
	defer setupCLITest(Services{Ingestor: ingestor})()

	out, err := execute("ingest", "/archive")

	require.NoError(t, err)
	assert.Equal(t, []string{"/archive"}, ingestor.paths)
	assert.Contains(t, out, "Run run-1 (1.5s)")
	assert.Contains(t, out, "inbox.mbox")
	assert.Contains(t, out, "1,200")
	assert.Contains(t, out, "cached")
	assert.Contains(t, out, "failed: unrecognised format")
	assert.Contains(t, out, "Total: 1,234 events, 56 participants, 1 skipped, 2 duplicates, 1 warnings")
	assert.NotContains(t, out, "unterminated multipart boundary")
}

func TestIngestCmd_ListsWarnings(t *testing.T) {
	defer setupCLITest(Services{Ingestor: &mockIngestor{report: testReport()}})()

	out, err := execute("ingest", "--warnings", "/archive")

	require.NoError(t, err)
	assert.Contains(t, out, "inbox.mbox@4096")
	assert.Contains(t, out, "unterminated multipart boundary")
}

func TestIngestCmd_FailurePrintsReportAndErrors(t *testing.T) {
	report := &domain.IngestionReport{
		RunID: "run-2",
		Files: []domain.FileReport{{Path: "/archive/notes.txt", Error: "unrecognised format"}},
	}
	defer setupCLITest(Services{Ingestor: &mockIngestor{report: report, err: errors.New("notes.txt: unrecognised format")}})()

	out, err := execute("ingest", "/archive/notes.txt")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest failed")
	assert.Contains(t, out, "notes.txt")
}

func TestIngestCmd_RequiresPath(t *testing.T) {
	defer setupCLITest(Services{Ingestor: &mockIngestor{}})()

	_, err := execute("ingest")

	assert.Error(t, err)
}

func TestIngestCmd_NotConfigured(t *testing.T) {
	defer setupCLITest(Services{})()

	_, err := execute("ingest", "/archive")

	assert.EqualError(t, err, "ingest service not configured")
}

func TestIngestCmd_JSONAndYAMLOutput(t *testing.T) {
	defer setupCLITest(Services{Ingestor: &mockIngestor{report: testReport()}})()

	out, err := execute("ingest", "-o", "json", "/archive")
	require.NoError(t, err)
	var decoded domain.IngestionReport
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Len(t, decoded.Files, 3)

	out, err = execute("ingest", "-o", "yaml", "/archive")
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "run-1", doc["run_id"])
	assert.Equal(t, 1234, doc["events"])
}

func TestIngestCmd_UnknownOutputFormat(t *testing.T) {
	defer setupCLITest(Services{Ingestor: &mockIngestor{report: testReport()}})()

	_, err := execute("ingest", "-o", "xml", "/archive")

	assert.ErrorContains(t, err, `unknown output format "xml"`)
}

func TestReportCmd(t *testing.T) {
	t.Run("uses the last run of this process", func(t *testing.T) {
		defer setupCLITest(Services{Ingestor: &mockIngestor{report: testReport()}})()

		out, err := execute("report")

		require.NoError(t, err)
		assert.Contains(t, out, "Run run-1")
	})

	t.Run("falls back to the report store", func(t *testing.T) {
		reports := &mockReportStore{reports: []domain.IngestionReport{*testReport()}}
		defer setupCLITest(Services{Ingestor: &mockIngestor{}, Reports: reports})()

		out, err := execute("report")

		require.NoError(t, err)
		assert.Contains(t, out, "Run run-1")
	})

	t.Run("no runs", func(t *testing.T) {
		defer setupCLITest(Services{Reports: &mockReportStore{}})()

		_, err := execute("report")

		assert.EqualError(t, err, "no ingestion has run")
	})

	t.Run("list", func(t *testing.T) {
		second := *testReport()
		second.RunID = "run-0"
		reports := &mockReportStore{reports: []domain.IngestionReport{*testReport(), second}}
		defer setupCLITest(Services{Reports: reports})()

		out, err := execute("report", "list")

		require.NoError(t, err)
		assert.Contains(t, out, "run-1")
		assert.Contains(t, out, "run-0")
		assert.Contains(t, out, "1,234")
	})
}
