package report_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finnastats/internal/report"
)

func TestAppendCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counts.csv")
	header := []string{"date", "organisation", "total"}

	require.NoError(t, report.AppendCSV(path, header, [][]string{{"2024-01-01T00:00:00Z", "total", "3"}}))
	require.NoError(t, report.AppendCSV(path, header, [][]string{{"2024-02-01T00:00:00Z", "a, b", "4"}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"date,organisation,total\n"+
			"2024-01-01T00:00:00Z,total,3\n"+
			"2024-02-01T00:00:00Z,\"a, b\",4\n",
		string(data))
}

func TestAppendCSVWriteError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "counts.csv")

	err := report.AppendCSV(path, nil, [][]string{{"x"}})

	var writeErr *report.WriteError
	require.ErrorAs(t, err, &writeErr)
	assert.Equal(t, path, writeErr.Path)
	assert.Equal(t, "open", writeErr.Op)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestTimestamp(t *testing.T) {
	helsinki := time.FixedZone("EET", 2*60*60)
	assert.Equal(t, "2024-03-01T10:00:00Z", report.Timestamp(time.Date(2024, 3, 1, 12, 0, 0, 0, helsinki)))
}
