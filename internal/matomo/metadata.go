package matomo

import (
	"fmt"

	"github.com/tidwall/gjson"

	"finnastats/internal/fetch"
)

// APIError is an error reported by the API inside a 200 response.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return "matomo: " + e.Message
}

// Entry documents one metric.
type Entry struct {
	Name        string
	Description string
}

// Metadata is the ordered documentation of a report's metrics.
type Metadata struct {
	Entries []Entry
}

// Merge appends entries of other whose names are not yet documented.
func (m *Metadata) Merge(other Metadata) {
	seen := make(map[string]bool, len(m.Entries))
	for _, e := range m.Entries {
		seen[e.Name] = true
	}
	for _, e := range other.Entries {
		if !seen[e.Name] {
			seen[e.Name] = true
			m.Entries = append(m.Entries, e)
		}
	}
}

// ParseMetadata reads an API.getMetadata response. The first report's
// metrics are listed in document order, then its metricsDocumentation; a
// metric present in both keeps its position and takes the documentation.
func ParseMetadata(body []byte) (Metadata, error) {
	if !gjson.ValidBytes(body) {
		return Metadata{}, fmt.Errorf("%w: invalid metadata response", fetch.ErrMalformedResponse)
	}

	doc := gjson.ParseBytes(body)
	if doc.Get("result").String() == "error" {
		return Metadata{}, &APIError{Message: doc.Get("message").String()}
	}
	if !doc.IsArray() {
		return Metadata{}, fmt.Errorf("%w: metadata is not a list", fetch.ErrMalformedResponse)
	}

	var md Metadata
	index := map[string]int{}
	add := func(key, value gjson.Result) bool {
		name := key.String()
		if i, ok := index[name]; ok {
			md.Entries[i].Description = value.String()
			return true
		}
		index[name] = len(md.Entries)
		md.Entries = append(md.Entries, Entry{Name: name, Description: value.String()})
		return true
	}

	report := doc.Get("0")
	report.Get("metrics").ForEach(add)
	report.Get("metricsDocumentation").ForEach(add)

	return md, nil
}
