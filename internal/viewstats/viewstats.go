// Package viewstats builds one statistics workbook per search view from the
// analytics API.
package viewstats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"finnastats/internal/config"
	"finnastats/internal/fetch"
	"finnastats/internal/matomo"
	"finnastats/internal/period"
	"finnastats/internal/report"
	"finnastats/internal/views"
	"finnastats/internal/workbook"
)

// Options selects the views and period of one run.
type Options struct {
	Period       period.Period
	Institutions []string
	SiteIDs      []string
	OutputDir    string
}

// Runner generates the workbooks.
type Runner struct {
	client *matomo.Client
	cfg    *config.Config
	logger *slog.Logger
}

// NewRunner creates a Runner. cfg must have passed RequireViewStatistics.
func NewRunner(client *matomo.Client, cfg *config.Config, logger *slog.Logger) *Runner {
	return &Runner{client: client, cfg: cfg, logger: logger}
}

// Run fetches and writes the statistics of every selected view in order and
// returns the written files. Metadata is fetched once and fetched again for
// the next view after an API error. A failed batch aborts the run; failed
// writes are reported together after every view was processed.
func (r *Runner) Run(ctx context.Context, opts Options) ([]string, error) {
	vs := r.cfg.ViewStatistics

	all, err := views.Discover(vs.Views.BaseDir, r.logger)
	if err != nil {
		return nil, err
	}
	selected := views.Filter(all, opts.Institutions, opts.SiteIDs)

	r.logger.Info("Get statistics",
		slog.Int("sites", len(selected)),
		slog.String("date", opts.Period.Param()))
	for _, v := range selected {
		r.logger.Info("Selected view", slog.String("view", v.String()), slog.String("site_id", v.SiteID))
	}

	methods := make([]string, len(vs.Statistics))
	for i, stat := range vs.Statistics {
		methods[i] = stat.Method
	}

	var (
		written   []string
		writeErrs []error
		metadata  []matomo.MetadataResult
	)
	for i, view := range selected {
		r.logger.Info("Fetching statistics",
			slog.String("view", view.String()),
			slog.Int("position", i+1),
			slog.Int("of", len(selected)))

		if metadata == nil {
			metadata, err = r.client.Metadata(ctx, view.SiteID, methods)
			if err != nil {
				return written, err
			}
		}

		specs := make([]fetch.QuerySpec, len(vs.Statistics))
		for j, stat := range vs.Statistics {
			specs[j] = r.client.DataQuery(view.SiteID, stat.Method, r.cfg.StatisticLimit(stat), opts.Period)
		}
		data, err := r.client.Data(ctx, view.SiteID, specs)
		if err != nil {
			return written, err
		}

		docs, refetch := r.documentation(metadata)
		if refetch {
			metadata = nil
		}

		path, err := r.writeView(view, opts, docs, data)
		if err != nil {
			var writeErr *report.WriteError
			if !errors.As(err, &writeErr) {
				return written, err
			}
			r.logger.Error("Failed to write report", slog.String("path", writeErr.Path), slog.Any("error", writeErr.Err))
			writeErrs = append(writeErrs, err)
			continue
		}
		if path != "" {
			written = append(written, path)
		}
	}

	return written, errors.Join(writeErrs...)
}

// documentation merges the metric documentation of every statistic and
// reports whether any metadata request failed.
func (r *Runner) documentation(metadata []matomo.MetadataResult) ([]matomo.Entry, bool) {
	var merged matomo.Metadata
	failed := false
	for i, result := range metadata {
		if result.Err != nil {
			failed = true
			r.logger.Warn("Error fetching metadata",
				slog.String("method", r.cfg.ViewStatistics.Statistics[i].Method),
				slog.Any("error", result.Err))
			continue
		}
		merged.Merge(result.Metadata)
	}
	return merged.Entries, failed
}

// writeView saves the workbook of one view, skipping statistics the API
// refused. It returns "" when no statistic succeeded.
func (r *Runner) writeView(view views.View, opts Options, docs []matomo.Entry, data []matomo.DataResult) (string, error) {
	vs := r.cfg.ViewStatistics
	info := fmt.Sprintf("Statistics for view %s, period:  %s", view.Address(vs.Views.Domain), opts.Period.Label())

	wb, err := workbook.New()
	if err != nil {
		return "", err
	}
	defer wb.Close()

	if err := wb.AddCover(info, docs); err != nil {
		return "", fmt.Errorf("writing cover sheet: %w", err)
	}

	output := false
	for i, stat := range vs.Statistics {
		if data[i].Err != nil {
			r.logger.Warn("Error retrieving statistics",
				slog.String("statistic", stat.Label),
				slog.String("view", view.String()),
				slog.Any("error", data[i].Err))
			continue
		}
		if _, err := wb.AddStatistic(stat.Label, data[i].Rows, info, stat.Flip); err != nil {
			return "", fmt.Errorf("writing sheet %s: %w", stat.Label, err)
		}
		output = true
	}

	if !output {
		r.logger.Warn("No statistics for view, skipping report", slog.String("view", view.String()))
		return "", nil
	}

	path := filepath.Join(opts.OutputDir, view.FileStem()+".xlsx")
	if err := wb.Save(path); err != nil {
		return "", &report.WriteError{Path: path, Op: "save", Err: err}
	}
	r.logger.Info("Output", slog.String("path", path))
	return path, nil
}
