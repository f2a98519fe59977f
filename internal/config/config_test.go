package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finnastats/internal/config"
)

const settingsJSON = `{
  "environment": "test",
  "log": {"level": "DEBUG"},
  "database": {"driver": "sqlite", "dsn": "file::memory:"},
  "index_counts": {
    "url": "http://solr.local/select",
    "output": "index.csv",
    "filters": {"online": "online_boolean:1", "Free": "free_online_boolean:1"},
    "queries": ["*:*"],
    "filter_sets": [[], ["online"], ["online", "free"]]
  },
  "user_counts": {"institutions": ["LibA"], "auth_methods": ["shibboleth", "NULL"], "max_age": 3600},
  "view_statistics": {
    "piwik": {"url": "https://stats.local/index.php", "user_token": "secret"},
    "views": {"base_dir": "/srv/views"},
    "statistics": [{"label": "Visits", "method": "VisitsSummary.get", "limit": 5000}]
  }
}`

func writeSettings(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("reads settings and applies defaults", func(t *testing.T) {
		cfg, err := config.Load(writeSettings(t, settingsJSON))
		require.NoError(t, err)

		assert.Equal(t, config.Test, cfg.Environment)
		assert.Equal(t, config.LogLevelDebug, cfg.Log.Level)
		assert.Equal(t, "user", cfg.UserCounts.Table)
		assert.Equal(t, "username", cfg.UserCounts.UsernameColumn)
		assert.Equal(t, ":", cfg.UserCounts.Separator)
		assert.Equal(t, []string{"shibboleth", "NULL"}, cfg.UserCounts.AuthMethods)
		assert.Equal(t, 3600, cfg.UserCounts.MaxAge)
		assert.Equal(t, time.Hour, cfg.UserCounts.MaxAgeDuration())
		assert.Equal(t, "finna.fi", cfg.ViewStatistics.Views.Domain)
		assert.Equal(t, 120*time.Second, cfg.RequestTimeout())
		require.Len(t, cfg.IndexCounts.Facets, 2)
		assert.Equal(t, "format", cfg.IndexCounts.Facets[1].Field)
		assert.Equal(t, "0", cfg.IndexCounts.Facets[1].Prefix)
	})

	t.Run("environment overrides settings file", func(t *testing.T) {
		t.Setenv("FINNASTATS_PIWIK_TOKEN", "from-env")
		t.Setenv("FINNASTATS_DB_DSN", "file:other.db")

		cfg, err := config.Load(writeSettings(t, settingsJSON))
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.ViewStatistics.Piwik.UserToken)
		assert.Equal(t, "file:other.db", cfg.Database.DSN)
	})

	t.Run("missing file is a configuration error", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "missing.json"))
		assert.ErrorIs(t, err, config.ErrInvalidConfig)
	})

	t.Run("rejects unknown log level", func(t *testing.T) {
		_, err := config.Load(writeSettings(t, `{"log": {"level": "verbose"}}`))
		assert.ErrorIs(t, err, config.ErrInvalidConfig)
	})
}

func TestRequireIndexCounts(t *testing.T) {
	t.Run("accepts filters regardless of case", func(t *testing.T) {
		cfg, err := config.Load(writeSettings(t, settingsJSON))
		require.NoError(t, err)
		require.NoError(t, cfg.RequireIndexCounts())

		filter, err := cfg.Filter("FREE")
		require.NoError(t, err)
		assert.Equal(t, "free_online_boolean:1", filter)
	})

	t.Run("fails fast on unknown filter", func(t *testing.T) {
		cfg, err := config.Load(writeSettings(t, settingsJSON))
		require.NoError(t, err)
		cfg.IndexCounts.FilterSets = append(cfg.IndexCounts.FilterSets, []string{"missing"})

		err = cfg.RequireIndexCounts()
		require.Error(t, err)
		assert.ErrorIs(t, err, config.ErrInvalidConfig)
		assert.Contains(t, err.Error(), "invalid filter 'missing'")
	})
}

func TestRequireUserCounts(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*config.Config)
		valid  bool
	}{
		{name: "defaults", mutate: func(*config.Config) {}, valid: true},
		{name: "injected table name", mutate: func(c *config.Config) { c.UserCounts.Table = "user; DROP TABLE user" }},
		{name: "multi character separator", mutate: func(c *config.Config) { c.UserCounts.Separator = "::" }},
		{name: "placeholder separator", mutate: func(c *config.Config) { c.UserCounts.Separator = "?" }},
		{name: "negative max age", mutate: func(c *config.Config) { c.UserCounts.MaxAge = -1 }},
		{name: "unknown driver", mutate: func(c *config.Config) { c.Database.Driver = "oracle" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := config.Load(writeSettings(t, settingsJSON))
			require.NoError(t, err)
			tc.mutate(cfg)

			err = cfg.RequireUserCounts()
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, config.ErrInvalidConfig)
			}
		})
	}
}

func TestRequireViewStatistics(t *testing.T) {
	cfg, err := config.Load(writeSettings(t, settingsJSON))
	require.NoError(t, err)
	require.NoError(t, cfg.RequireViewStatistics())

	assert.Equal(t, 1000, cfg.StatisticLimit(cfg.ViewStatistics.Statistics[0]))
	assert.Equal(t, 25, cfg.StatisticLimit(config.Statistic{Method: "Actions.getPageUrls"}))

	cfg.ViewStatistics.Statistics[0].Method = "VisitsSummary"
	assert.ErrorIs(t, cfg.RequireViewStatistics(), config.ErrInvalidConfig)
}

func TestResolvePath(t *testing.T) {
	cfg := &config.Config{SourceFile: "/etc/finnastats/settings.json"}
	assert.Equal(t, "/etc/finnastats/out.csv", cfg.ResolvePath("out.csv"))
	assert.Equal(t, "/var/out.csv", cfg.ResolvePath("/var/out.csv"))
}
