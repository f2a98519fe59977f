// Package solr produces the search index count report: for every query,
// the number of matching records under each configured filter set.
package solr

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"finnastats/internal/config"
	"finnastats/internal/fetch"
	"finnastats/internal/period"
	"finnastats/internal/report"
)

// Processor runs the index count queries against one search index.
type Processor struct {
	fetcher *fetch.Fetcher
	cfg     *config.Config
	clock   period.TimeProvider
	logger  *slog.Logger
}

// NewProcessor creates a Processor. cfg must have passed RequireIndexCounts.
func NewProcessor(fetcher *fetch.Fetcher, cfg *config.Config, clock period.TimeProvider, logger *slog.Logger) *Processor {
	if clock == nil {
		clock = &period.DefaultTimeProvider{}
	}
	return &Processor{fetcher: fetcher, cfg: cfg, clock: clock, logger: logger}
}

// Run returns one row per query: the timestamp, "q=<query>" and one count
// per filter set.
func (p *Processor) Run(ctx context.Context) ([][]string, error) {
	start := time.Now()
	now := report.Timestamp(p.clock.Now(time.UTC))
	p.logger.Info("Statistics processing started")

	queries, err := p.Queries(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(queries))
	for _, query := range queries {
		specs, err := p.querySet(query)
		if err != nil {
			return nil, err
		}

		bodies, err := p.fetcher.FetchAll(ctx, p.cfg.IndexCounts.URL, specs)
		if err != nil {
			return nil, fmt.Errorf("fetching counts for %q: %w", query, err)
		}

		row := []string{now, "q=" + query}
		for i, body := range bodies {
			count, err := NumFound(body)
			if err != nil {
				return nil, fmt.Errorf("counts for %q, filter set %d: %w", query, i, err)
			}
			row = append(row, strconv.FormatInt(count, 10))
		}
		rows = append(rows, row)
	}

	p.logger.Info("Statistics processing finished",
		slog.Int("queries", len(queries)),
		slog.Duration("elapsed", time.Since(start)))
	return rows, nil
}

// Queries returns the configured queries followed by one query per value
// of every configured facet.
func (p *Processor) Queries(ctx context.Context) ([]string, error) {
	queries := append([]string(nil), p.cfg.IndexCounts.Queries...)

	for _, facet := range p.cfg.IndexCounts.Facets {
		spec := fetch.NewQuerySpec(
			"q", "*:*",
			"rows", "0",
			"facet", "true",
			"facet.field", facet.Field,
			"facet.limit", "-1",
		)
		if facet.Prefix != "" {
			spec = spec.With("facet.prefix", facet.Prefix)
		}
		spec = spec.With("wt", "json")

		body, err := p.fetcher.Fetch(ctx, p.cfg.IndexCounts.URL, spec)
		if err != nil {
			return nil, fmt.Errorf("fetching %s facet: %w", facet.Field, err)
		}

		values, err := FacetValues(body, facet.Field)
		if err != nil {
			return nil, err
		}
		for _, value := range values {
			queries = append(queries, fmt.Sprintf(`%s:"%s"`, facet.Field, strings.ReplaceAll(value, `"`, `\"`)))
		}
	}

	return queries, nil
}

// querySet builds one request per filter set for query.
func (p *Processor) querySet(query string) ([]fetch.QuerySpec, error) {
	specs := make([]fetch.QuerySpec, 0, len(p.cfg.IndexCounts.FilterSets))
	for _, set := range p.cfg.IndexCounts.FilterSets {
		spec := fetch.NewQuerySpec("q", query)
		if len(set) > 0 {
			filters := make([]string, len(set))
			for i, name := range set {
				filter, err := p.cfg.Filter(name)
				if err != nil {
					return nil, err
				}
				filters[i] = filter
			}
			spec = spec.With("fq", strings.Join(filters, " AND "))
		}
		specs = append(specs, spec.With("rows", "0").With("wt", "json"))
	}
	return specs, nil
}

// Header returns the CSV header matching the rows of Run.
func Header(filterSets [][]string) []string {
	header := []string{"date", "query"}
	for _, set := range filterSets {
		if len(set) == 0 {
			header = append(header, "all")
			continue
		}
		header = append(header, strings.Join(set, "+"))
	}
	return header
}

// NumFound reads response.numFound from a JSON search response.
func NumFound(body []byte) (int64, error) {
	if !gjson.ValidBytes(body) {
		return 0, fmt.Errorf("%w: invalid response from Solr", fetch.ErrMalformedResponse)
	}
	numFound := gjson.GetBytes(body, "response.numFound")
	if numFound.Type != gjson.Number {
		return 0, fmt.Errorf("%w: invalid response from Solr: missing numFound", fetch.ErrMalformedResponse)
	}
	return numFound.Int(), nil
}

// FacetValues lists the values of a facet field in response order. Solr
// returns them as a flat [value, count, value, count, ...] array.
func FacetValues(body []byte, field string) ([]string, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid facet response from Solr", fetch.ErrMalformedResponse)
	}
	facet := gjson.GetBytes(body, "facet_counts.facet_fields."+gjson.Escape(field))
	if !facet.IsArray() {
		return nil, fmt.Errorf("%w: facet %s missing from Solr response", fetch.ErrMalformedResponse, field)
	}

	items := facet.Array()
	values := make([]string, 0, len(items)/2)
	for i := 0; i+1 < len(items); i += 2 {
		values = append(values, items[i].String())
	}
	return values, nil
}
