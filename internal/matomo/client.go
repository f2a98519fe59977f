// Package matomo talks to the Matomo (formerly Piwik) reporting API.
package matomo

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"finnastats/internal/config"
	"finnastats/internal/fetch"
	"finnastats/internal/period"
)

// Client builds and runs reporting API requests for one Matomo instance.
type Client struct {
	fetcher  *fetch.Fetcher
	url      string
	token    string
	maxLimit int
	logger   *slog.Logger
}

// NewClient creates a client for the configured instance.
func NewClient(fetcher *fetch.Fetcher, cfg config.ViewStatistics, logger *slog.Logger) *Client {
	return &Client{
		fetcher:  fetcher,
		url:      cfg.Piwik.URL,
		token:    cfg.Piwik.UserToken,
		maxLimit: cfg.MaxLimit,
		logger:   logger,
	}
}

// DataQuery requests one report of a site as TSV. The row limit is capped
// at the configured maximum.
func (c *Client) DataQuery(siteID, method string, limit int, p period.Period) fetch.QuerySpec {
	if c.maxLimit > 0 && limit > c.maxLimit {
		limit = c.maxLimit
	}
	return fetch.NewQuerySpec(
		"method", method,
		"expanded", "0",
		"filter_limit", strconv.Itoa(limit),
		"format_metrics", "1",
		"idSite", siteID,
		"module", "API",
		"date", p.Param(),
		"format", "TSV",
		"token_auth", c.token,
		"period", "range",
		"language", "en",
	)
}

// MetadataQuery requests the metric documentation of a Module.action report.
func (c *Client) MetadataQuery(siteID, method string) fetch.QuerySpec {
	module, action, _ := strings.Cut(method, ".")
	return fetch.NewQuerySpec(
		"module", "API",
		"method", "API.getMetadata",
		"apiModule", module,
		"apiAction", action,
		"token_auth", c.token,
		"language", "en",
		"idSite", siteID,
		"format", "json",
	)
}

// Metadata fetches the documentation of every method, in order. Each entry
// is either parsed metadata or the API error it returned.
func (c *Client) Metadata(ctx context.Context, siteID string, methods []string) ([]MetadataResult, error) {
	specs := make([]fetch.QuerySpec, len(methods))
	for i, method := range methods {
		specs[i] = c.MetadataQuery(siteID, method)
	}

	bodies, err := c.fetcher.FetchAll(ctx, c.url, specs)
	if err != nil {
		return nil, fmt.Errorf("fetching metadata for site %s: %w", siteID, err)
	}

	results := make([]MetadataResult, len(bodies))
	for i, body := range bodies {
		results[i].Metadata, results[i].Err = ParseMetadata(body)
	}
	return results, nil
}

// Data fetches the reports of one site. Each entry is either the decoded
// table or the API error it returned.
func (c *Client) Data(ctx context.Context, siteID string, specs []fetch.QuerySpec) ([]DataResult, error) {
	bodies, err := c.fetcher.FetchAll(ctx, c.url, specs)
	if err != nil {
		return nil, fmt.Errorf("fetching statistics for site %s: %w", siteID, err)
	}

	results := make([]DataResult, len(bodies))
	for i, body := range bodies {
		results[i].Rows, results[i].Err = DecodeTSV(body)
		c.logger.Debug("Decoded report", slog.String("site_id", siteID), slog.Int("index", i), slog.Int("rows", len(results[i].Rows)))
	}
	return results, nil
}

// MetadataResult is the outcome of one metadata request.
type MetadataResult struct {
	Metadata Metadata
	Err      error
}

// DataResult is the outcome of one report request.
type DataResult struct {
	Rows [][]string
	Err  error
}
