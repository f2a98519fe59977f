// Package internal wires the shared services of one reporting run.
package internal

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"finnastats/internal/config"
	"finnastats/internal/database"
	"finnastats/internal/fetch"
	"finnastats/internal/logging"
	"finnastats/internal/period"
)

// Application holds the configuration and services shared by the commands of
// one run. The database is opened on first use.
type Application struct {
	Config *config.Config
	Logger *slog.Logger
	Level  *slog.LevelVar
	Clock  period.TimeProvider
	RunID  string
	Out    io.Writer

	logCloser io.Closer
	dbManager *database.Manager
	fetcher   *fetch.Fetcher
}

// NewApp loads the settings document at configPath and sets up logging.
func NewApp(configPath string, out io.Writer) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, level, closer := logging.New(cfg)
	return NewAppWithConfig(cfg, logger, level, closer, out), nil
}

// NewAppWithConfig creates an application from already loaded parts. level
// and closer may be nil.
func NewAppWithConfig(cfg *config.Config, logger *slog.Logger, level *slog.LevelVar, closer io.Closer, out io.Writer) *Application {
	runID := uuid.NewString()
	if level == nil {
		level = new(slog.LevelVar)
	}
	return &Application{
		Config:    cfg,
		Logger:    logger.With(slog.String("run_id", runID)),
		Level:     level,
		Clock:     &period.DefaultTimeProvider{},
		RunID:     runID,
		Out:       out,
		logCloser: closer,
	}
}

// Database returns the connected database manager.
func (a *Application) Database() (*database.Manager, error) {
	if a.dbManager == nil {
		a.dbManager = database.NewManager(a.Config, a.Logger)
	}
	if _, err := a.dbManager.Connect(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return a.dbManager, nil
}

// Fetcher returns the HTTP fetcher configured from the http settings.
func (a *Application) Fetcher() *fetch.Fetcher {
	if a.fetcher == nil {
		a.fetcher = fetch.New(
			fetch.NewClient(a.Config.RequestTimeout()),
			a.Logger,
			fetch.WithMaxParallel(a.Config.HTTP.MaxParallel),
		)
	}
	return a.fetcher
}

// Shutdown closes the database and the log file.
func (a *Application) Shutdown() error {
	var errs []error
	if a.dbManager != nil {
		errs = append(errs, a.dbManager.Close())
	}
	if a.logCloser != nil {
		errs = append(errs, a.logCloser.Close())
	}
	return errors.Join(errs...)
}
