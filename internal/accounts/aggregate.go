// Package accounts counts user accounts per organisation and authentication
// method.
package accounts

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"finnastats/internal/period"
	"finnastats/internal/report"
)

// ActiveSuffix is appended to row names of the recency filtered table.
const ActiveSuffix = " - active"

// Filter restricts the rows a Source counts.
type Filter struct {
	// Subgroups limits counting to these methods; empty counts every method.
	Subgroups []Subgroup
	// Groups limits counting to these organisations, compared
	// case-insensitively; empty counts every organisation.
	Groups []string
	// MaxAge keeps accounts whose last activity is within MaxAge of the
	// store's own clock; zero disables the filter.
	MaxAge time.Duration
}

// Source is the backing store of an aggregation.
type Source interface {
	// Subgroups lists every distinct method, including the null method.
	Subgroups(ctx context.Context) ([]Subgroup, error)
	// Groups lists every distinct organisation.
	Groups(ctx context.Context) ([]string, error)
	// Counts streams grouped counts matching filter to fn, stopping at the
	// first error fn returns.
	Counts(ctx context.Context, filter Filter, fn func(Triple) error) error
}

// Options controls one aggregation.
type Options struct {
	// Subgroups is the known method set; empty discovers it from the source.
	Subgroups []Subgroup
	// Groups pre-populates these organisations in order; empty discovers
	// every organisation from the source.
	Groups []string
	// MaxAge keeps only accounts active within this duration, measured by
	// the store in its own time zone.
	MaxAge time.Duration
	Clock  period.TimeProvider
	Logger *slog.Logger
}

// Aggregate builds the count table: a total row followed by one zero-seeded
// row per known organisation, each with an entry for every known method.
// Discovered methods are ordered by lower-cased name with the null method
// first and discovered organisations by lower-cased name. Counts for an
// organisation or method outside the known sets are skipped and logged.
func Aggregate(ctx context.Context, src Source, opts Options) (*Table, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	clock := opts.Clock
	if clock == nil {
		clock = &period.DefaultTimeProvider{}
	}
	now := clock.Now(time.UTC)

	var filter Filter

	subgroups := uniqueSubgroups(opts.Subgroups)
	if len(subgroups) > 0 {
		filter.Subgroups = subgroups
	} else {
		discovered, err := Methods(ctx, src)
		if err != nil {
			return nil, err
		}
		subgroups = discovered
	}

	groups := uniqueGroups(opts.Groups)
	if len(groups) > 0 {
		filter.Groups = groups
	} else {
		discovered, err := src.Groups(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing organisations: %w", err)
		}
		sortGroups(discovered)
		groups = uniqueGroups(discovered)
	}

	if opts.MaxAge > 0 {
		filter.MaxAge = opts.MaxAge
	}

	table := newTable(now, subgroups, groups)
	skipped := 0
	err := src.Counts(ctx, filter, func(tr Triple) error {
		if !table.add(tr) {
			skipped++
			logger.Warn("Skipping counts outside the known organisations and methods",
				slog.String("organisation", tr.Group),
				slog.String("method", tr.Subgroup.Label()),
				slog.Int64("count", tr.Count))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("counting accounts: %w", err)
	}

	logger.Debug("Aggregated account counts",
		slog.Int("organisations", len(groups)),
		slog.Int("methods", len(subgroups)),
		slog.Int64("total", table.Total().Total),
		slog.Int("skipped", skipped))

	return table, nil
}

// Report aggregates all accounts and, when opts.MaxAge is set, the recently
// active ones as a second table whose rows are suffixed with ActiveSuffix.
func Report(ctx context.Context, src Source, opts Options) ([]*Table, error) {
	all := opts
	all.MaxAge = 0
	table, err := Aggregate(ctx, src, all)
	if err != nil {
		return nil, err
	}
	tables := []*Table{table}

	if opts.MaxAge > 0 {
		active, err := Aggregate(ctx, src, opts)
		if err != nil {
			return nil, err
		}
		tables = append(tables, active.Suffixed(ActiveSuffix))
	}

	return tables, nil
}

// Header returns the CSV header of a table.
func Header(subgroups []Subgroup) []string {
	header := []string{"date", "organisation", "total"}
	for _, s := range subgroups {
		header = append(header, s.Label())
	}
	return header
}

// Records renders tables as CSV records of date, organisation, total and one
// count per method, in table then row order.
func Records(tables []*Table) [][]string {
	var records [][]string
	for _, t := range tables {
		date := report.Timestamp(t.GeneratedAt)
		for _, row := range t.Rows {
			record := []string{date, row.Name, strconv.FormatInt(row.Total, 10)}
			for _, v := range row.Values(t.Subgroups) {
				record = append(record, strconv.FormatInt(v, 10))
			}
			records = append(records, record)
		}
	}
	return records
}

// Methods lists the distinct methods of src in discovery order. An empty
// method name collapses into the null method.
func Methods(ctx context.Context, src Source) ([]Subgroup, error) {
	discovered, err := src.Subgroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing authentication methods: %w", err)
	}
	subgroups := append([]Subgroup(nil), discovered...)
	sortSubgroups(subgroups)
	return uniqueSubgroups(subgroups), nil
}
