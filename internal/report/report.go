// Package report appends report rows to CSV files.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"
)

// WriteError is an output failure. The computed rows are still valid; the
// caller decides whether the run fails.
type WriteError struct {
	Path string
	Op   string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// AppendCSV appends rows to path, creating it when missing. The header is
// written only when the file is empty, so repeated runs build one table.
func AppendCSV(path string, header []string, rows [][]string) (err error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &WriteError{Path: path, Op: "open", Err: err}
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = &WriteError{Path: path, Op: "close", Err: closeErr}
		}
	}()

	info, err := file.Stat()
	if err != nil {
		return &WriteError{Path: path, Op: "stat", Err: err}
	}

	w := csv.NewWriter(file)
	if info.Size() == 0 && len(header) > 0 {
		if err := w.Write(header); err != nil {
			return &WriteError{Path: path, Op: "write header to", Err: err}
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return &WriteError{Path: path, Op: "write line to", Err: err}
	}
	return nil
}

// Timestamp formats the leading date column.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
