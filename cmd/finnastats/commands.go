package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"finnastats/internal"
	"finnastats/internal/accounts"
	"finnastats/internal/matomo"
	"finnastats/internal/period"
	"finnastats/internal/report"
	"finnastats/internal/solr"
	"finnastats/internal/userlists"
	"finnastats/internal/views"
	"finnastats/internal/viewstats"
)

// IndexCountsCommand appends search index record counts to a CSV file
type IndexCountsCommand struct{}

// Name returns the command name
func (c *IndexCountsCommand) Name() string { return "index-counts" }

// Description returns the command description
func (c *IndexCountsCommand) Description() string {
	return "Appends search index record counts per query and filter set"
}

// Execute implements the index-counts command
func (c *IndexCountsCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	cfg := app.Config
	output, err := outputFlag(c.Name(), args, cfg.IndexCounts.Output)
	if err != nil {
		return err
	}
	cfg.IndexCounts.Output = output
	if err := cfg.RequireIndexCounts(); err != nil {
		return err
	}

	processor := solr.NewProcessor(app.Fetcher(), cfg, app.Clock, app.Logger)
	rows, err := processor.Run(ctx)
	if err != nil {
		return err
	}

	return writeCSV(app, cfg.ResolvePath(output), solr.Header(cfg.IndexCounts.FilterSets), rows)
}

// UserCountsCommand appends account counts per organisation and method
type UserCountsCommand struct{}

// Name returns the command name
func (c *UserCountsCommand) Name() string { return "user-counts" }

// Description returns the command description
func (c *UserCountsCommand) Description() string {
	return "Appends account counts per organisation and authentication method"
}

// Execute implements the user-counts command
func (c *UserCountsCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	cfg := app.Config
	output, err := outputFlag(c.Name(), args, cfg.UserCounts.Output)
	if err != nil {
		return err
	}
	if err := cfg.RequireUserCounts(); err != nil {
		return err
	}
	if output == "" {
		return errors.New("user_counts.output is required")
	}

	store, err := accountStore(app)
	if err != nil {
		return err
	}

	tables, err := accounts.Report(ctx, store, accounts.Options{
		Subgroups: accounts.ParseSubgroups(cfg.UserCounts.AuthMethods),
		Groups:    cfg.UserCounts.Institutions,
		MaxAge:    cfg.UserCounts.MaxAgeDuration(),
		Clock:     app.Clock,
		Logger:    app.Logger,
	})
	if err != nil {
		return err
	}

	return writeCSV(app, cfg.ResolvePath(output), accounts.Header(tables[0].Subgroups), accounts.Records(tables))
}

// ListMethodsCommand prints every authentication method in use
type ListMethodsCommand struct{}

// Name returns the command name
func (c *ListMethodsCommand) Name() string { return "list-methods" }

// Description returns the command description
func (c *ListMethodsCommand) Description() string { return "Lists the authentication methods in use" }

// Execute implements the list-methods command
func (c *ListMethodsCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if err := app.Config.RequireUserCounts(); err != nil {
		return err
	}

	store, err := accountStore(app)
	if err != nil {
		return err
	}

	methods, err := accounts.Methods(ctx, store)
	if err != nil {
		return err
	}
	for _, m := range methods {
		fmt.Fprintln(app.Out, m.Label())
	}
	return nil
}

// UserListCountsCommand appends user list counts to a CSV file
type UserListCountsCommand struct{}

// Name returns the command name
func (c *UserListCountsCommand) Name() string { return "user-list-counts" }

// Description returns the command description
func (c *UserListCountsCommand) Description() string { return "Appends the number of user lists" }

// Execute implements the user-list-counts command
func (c *UserListCountsCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	cfg := app.Config
	output, err := outputFlag(c.Name(), args, cfg.UserListCounts.Output)
	if err != nil {
		return err
	}
	if err := cfg.RequireUserListCounts(); err != nil {
		return err
	}
	if output == "" {
		return errors.New("user_list_counts.output is required")
	}

	dbManager, err := app.Database()
	if err != nil {
		return err
	}
	stats, err := userlists.Count(ctx, dbManager.GetConnection(), dbManager.Dialect(), cfg.UserListCounts)
	if err != nil {
		return err
	}

	record := stats.Record(app.Clock.Now(time.UTC))
	return writeCSV(app, cfg.ResolvePath(output), userlists.Header(), [][]string{record})
}

// ViewStatisticsCommand writes one analytics workbook per view
type ViewStatisticsCommand struct{}

// Name returns the command name
func (c *ViewStatisticsCommand) Name() string { return "view-statistics" }

// Description returns the command description
func (c *ViewStatisticsCommand) Description() string {
	return "Writes analytics workbooks for the selected views (-date required)"
}

// Execute implements the view-statistics command
func (c *ViewStatisticsCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	cfg := app.Config

	fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	date := fs.String("date", "", "period as YYYY-MM-DD,YYYY-MM-DD, last-month or last-year")
	ids := fs.String("ids", "", "comma separated analytics site ids")
	institutions := fs.String("institutions", "", "comma separated institutions")
	output := fs.String("output", cfg.ViewStatistics.OutputDir, "directory for the workbooks")
	debug := fs.Bool("debug", false, "log every request")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *debug {
		app.Level.Set(slog.LevelDebug)
	}
	if err := cfg.RequireViewStatistics(); err != nil {
		return err
	}
	if *date == "" {
		return errors.New("no date given")
	}
	p, err := period.Resolve(*date, app.Clock)
	if err != nil {
		return err
	}

	dir := cfg.ResolvePath(*output)
	if dir == "" {
		dir = "."
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("output directory %s does not exist", dir)
	}

	client := matomo.NewClient(app.Fetcher(), cfg.ViewStatistics, app.Logger)
	runner := viewstats.NewRunner(client, cfg, app.Logger)
	written, err := runner.Run(ctx, viewstats.Options{
		Period:       p,
		Institutions: splitList(*institutions),
		SiteIDs:      splitList(*ids),
		OutputDir:    dir,
	})
	for _, path := range written {
		fmt.Fprintln(app.Out, path)
	}
	return err
}

// ListViewsCommand prints every view with an analytics site
type ListViewsCommand struct{}

// Name returns the command name
func (c *ListViewsCommand) Name() string { return "list-views" }

// Description returns the command description
func (c *ListViewsCommand) Description() string { return "Lists the views with an analytics site" }

// Execute implements the list-views command
func (c *ListViewsCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if err := app.Config.RequireViews(); err != nil {
		return err
	}

	all, err := views.Discover(app.Config.ViewStatistics.Views.BaseDir, app.Logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(app.Out, "%d sites in total:\n", len(all))
	fmt.Fprintln(app.Out, "---")
	for _, v := range all {
		fmt.Fprintf(app.Out, "%s (Piwik id %s)\n", v, v.SiteID)
	}
	return nil
}

// HelpCommand implements a command to show usage information
type HelpCommand struct{}

// Name returns the command name
func (c *HelpCommand) Name() string {
	return "help"
}

// Description returns the command description
func (c *HelpCommand) Description() string {
	return "Shows usage information"
}

// Execute implements the help command
func (c *HelpCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	printUsage(app.Out)
	return nil
}

// outputFlag parses the -output override of a CSV command.
func outputFlag(name string, args []string, fallback string) (string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	output := fs.String("output", fallback, "CSV file to append to")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	return *output, nil
}

func accountStore(app *internal.Application) (*accounts.Store, error) {
	dbManager, err := app.Database()
	if err != nil {
		return nil, err
	}
	return accounts.NewStore(dbManager.GetConnection(), dbManager.Dialect(), app.Config.UserCounts), nil
}

// writeCSV appends rows to path. A failed write is logged with its path and
// fails the command.
func writeCSV(app *internal.Application, path string, header []string, rows [][]string) error {
	if err := report.AppendCSV(path, header, rows); err != nil {
		var writeErr *report.WriteError
		if errors.As(err, &writeErr) {
			app.Logger.Error("Failed to write report", slog.String("path", writeErr.Path), slog.Any("error", writeErr.Err))
		}
		return err
	}
	app.Logger.Info("Report written", slog.String("path", path), slog.Int("rows", len(rows)))
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
