package matomo

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"finnastats/internal/fetch"
)

// DecodeTSV decodes a TSV report. Matomo sends UTF-16 with a byte order
// mark; input without one is read as UTF-8. A body starting with "Error:"
// is returned as an *APIError.
func DecodeTSV(body []byte) ([][]string, error) {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	text, _, err := transform.Bytes(decoder, body)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding report: %v", fetch.ErrMalformedResponse, err)
	}

	if len(text) >= len("Error:") && strings.EqualFold(string(text[:len("Error:")]), "Error:") {
		return nil, &APIError{Message: strings.TrimSpace(string(text[len("Error:"):]))}
	}

	r := csv.NewReader(bytes.NewReader(text))
	r.Comma = '\t'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: parsing report: %v", fetch.ErrMalformedResponse, err)
		}
		rows = append(rows, record)
	}
	return rows, nil
}
