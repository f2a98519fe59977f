// Package config provides configuration management using Viper
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Database drivers
const (
	SQLiteDatabase   = "sqlite"
	MySQLDatabase    = "mysql"
	PostgresDatabase = "postgres"
)

// NullMethod is the settings spelling of an account without an authentication method.
const NullMethod = "NULL"

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config holds all configuration parameters for one run
type Config struct {
	Environment string   `mapstructure:"environment"`
	Log         Log      `mapstructure:"log"`
	HTTP        HTTP     `mapstructure:"http"`
	Database    Database `mapstructure:"database"`

	IndexCounts    IndexCounts    `mapstructure:"index_counts"`
	UserCounts     UserCounts     `mapstructure:"user_counts"`
	UserListCounts UserListCounts `mapstructure:"user_list_counts"`
	ViewStatistics ViewStatistics `mapstructure:"view_statistics"`

	// Path of the settings document the values were read from.
	SourceFile string `mapstructure:"-"`
}

// Log holds logger settings
type Log struct {
	Level      LogLevel `mapstructure:"level"`
	Directory  string   `mapstructure:"dir"`
	MaxSizeMB  int      `mapstructure:"max_size_mb"`
	MaxBackups int      `mapstructure:"max_backups"`
	MaxAgeDays int      `mapstructure:"max_age_days"`
}

// HTTP holds settings shared by every outgoing request
type HTTP struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxParallel    int `mapstructure:"max_parallel"`
}

// Database holds the relational store connection settings
type Database struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	Hostname     string `mapstructure:"hostname"`
	Name         string `mapstructure:"database"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// Facet is a search index field whose values become extra count queries.
type Facet struct {
	Field  string `mapstructure:"field"`
	Prefix string `mapstructure:"prefix"`
}

// IndexCounts configures the search index count report
type IndexCounts struct {
	URL        string            `mapstructure:"url"`
	Output     string            `mapstructure:"output"`
	Filters    map[string]string `mapstructure:"filters"`
	Queries    []string          `mapstructure:"queries"`
	FilterSets [][]string        `mapstructure:"filter_sets"`
	Facets     []Facet           `mapstructure:"facets"`
}

// UserCounts configures the account count report
type UserCounts struct {
	Table           string   `mapstructure:"table"`
	Output          string   `mapstructure:"output"`
	Institutions    []string `mapstructure:"institutions"`
	AuthMethods     []string `mapstructure:"auth_methods"`
	MaxAge          int      `mapstructure:"max_age"`
	UsernameColumn  string   `mapstructure:"username_column"`
	MethodColumn    string   `mapstructure:"method_column"`
	LastLoginColumn string   `mapstructure:"last_login_column"`
	Separator       string   `mapstructure:"separator"`
}

// MaxAgeDuration returns max_age, given in seconds, as a duration
func (u UserCounts) MaxAgeDuration() time.Duration {
	return time.Duration(u.MaxAge) * time.Second
}

// UserListCounts configures the user list count report
type UserListCounts struct {
	Table        string `mapstructure:"table"`
	Output       string `mapstructure:"output"`
	PublicColumn string `mapstructure:"public_column"`
}

// Piwik holds the analytics API location and credentials
type Piwik struct {
	URL       string `mapstructure:"url"`
	UserToken string `mapstructure:"user_token"`
}

// Views locates the per-view configuration files
type Views struct {
	BaseDir string `mapstructure:"base_dir"`
	Domain  string `mapstructure:"domain"`
}

// Statistic is one analytics API method exported as a worksheet
type Statistic struct {
	Label  string `mapstructure:"label"`
	Method string `mapstructure:"method"`
	Limit  int    `mapstructure:"limit"`
	Flip   bool   `mapstructure:"flip"`
}

// ViewStatistics configures the per-view analytics workbook report
type ViewStatistics struct {
	Piwik      Piwik       `mapstructure:"piwik"`
	Views      Views       `mapstructure:"views"`
	Statistics []Statistic `mapstructure:"statistics"`
	Limit      int         `mapstructure:"limit"`
	MaxLimit   int         `mapstructure:"max_limit"`
	OutputDir  string      `mapstructure:"output_dir"`
}

// Load reads the settings document at path, applies environment overrides
// and validates the common sections.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("environment", Production)
	v.SetDefault("log.level", string(LogLevelInfo))
	v.SetDefault("log.dir", "")
	v.SetDefault("log.max_size_mb", 20)
	v.SetDefault("log.max_backups", 10)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("http.timeout_seconds", 120)
	v.SetDefault("http.max_parallel", 0)
	v.SetDefault("database.driver", MySQLDatabase)
	v.SetDefault("database.max_open_conns", 0)
	v.SetDefault("database.max_idle_conns", 0)
	v.SetDefault("index_counts.facets", []map[string]any{
		{"field": "sector_str_mv"},
		{"field": "format", "prefix": "0"},
	})
	v.SetDefault("user_counts.table", "user")
	v.SetDefault("user_counts.username_column", "username")
	v.SetDefault("user_counts.method_column", "auth_method")
	v.SetDefault("user_counts.last_login_column", "last_login")
	v.SetDefault("user_counts.separator", ":")
	v.SetDefault("user_list_counts.table", "user_list")
	v.SetDefault("user_list_counts.public_column", "public")
	v.SetDefault("view_statistics.views.domain", "finna.fi")
	v.SetDefault("view_statistics.limit", 25)
	v.SetDefault("view_statistics.max_limit", 1000)

	v.BindEnv("environment", "FINNASTATS_ENV")
	v.BindEnv("log.level", "FINNASTATS_LOG_LEVEL")
	v.BindEnv("log.dir", "FINNASTATS_LOGS_DIR")
	v.BindEnv("http.timeout_seconds", "FINNASTATS_HTTP_TIMEOUT_SECONDS")
	v.BindEnv("http.max_parallel", "FINNASTATS_HTTP_MAX_PARALLEL")
	v.BindEnv("database.driver", "FINNASTATS_DB_DRIVER")
	v.BindEnv("database.dsn", "FINNASTATS_DB_DSN")
	v.BindEnv("database.hostname", "FINNASTATS_DB_HOSTNAME")
	v.BindEnv("database.database", "FINNASTATS_DB_NAME")
	v.BindEnv("database.username", "FINNASTATS_DB_USERNAME")
	v.BindEnv("database.password", "FINNASTATS_DB_PASSWORD")
	v.BindEnv("view_statistics.piwik.user_token", "FINNASTATS_PIWIK_TOKEN")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: reading settings file %s: %v", ErrInvalidConfig, path, err)
		}
	}

	cfg := &Config{SourceFile: path}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: decoding settings: %v", ErrInvalidConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks the sections every command depends on
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return invalid("invalid environment: %s", c.Environment)
	}

	validLevels := map[LogLevel]bool{
		LogLevelDebug: true,
		LogLevelInfo:  true,
		LogLevelWarn:  true,
		LogLevelError: true,
	}
	c.Log.Level = LogLevel(strings.ToLower(string(c.Log.Level)))
	if !validLevels[c.Log.Level] {
		return invalid("invalid log level: %s", c.Log.Level)
	}

	if c.HTTP.TimeoutSeconds < 0 {
		return invalid("http.timeout_seconds must not be negative")
	}
	if c.HTTP.MaxParallel < 0 {
		return invalid("http.max_parallel must not be negative")
	}

	return nil
}

// RequireDatabase validates the database section
func (c *Config) RequireDatabase() error {
	validDrivers := map[string]bool{
		SQLiteDatabase:   true,
		MySQLDatabase:    true,
		PostgresDatabase: true,
	}
	if !validDrivers[c.Database.Driver] {
		return invalid("invalid database driver: %s", c.Database.Driver)
	}
	if c.Database.DSN == "" && c.Database.Driver != MySQLDatabase {
		return invalid("database.dsn is required for driver %s", c.Database.Driver)
	}
	if c.Database.DSN == "" && (c.Database.Hostname == "" || c.Database.Name == "") {
		return invalid("database.dsn or database.hostname and database.database are required")
	}
	return nil
}

// RequireIndexCounts validates the index count section, including every
// filter set reference.
func (c *Config) RequireIndexCounts() error {
	ic := c.IndexCounts
	if err := requireURL("index_counts.url", ic.URL); err != nil {
		return err
	}
	if ic.Output == "" {
		return invalid("index_counts.output is required")
	}
	if len(ic.FilterSets) == 0 {
		return invalid("index_counts.filter_sets must contain at least one filter set")
	}
	for i, set := range ic.FilterSets {
		for _, name := range set {
			if _, err := c.Filter(name); err != nil {
				return fmt.Errorf("index_counts.filter_sets[%d]: %w", i, err)
			}
		}
	}
	for i, facet := range ic.Facets {
		if strings.TrimSpace(facet.Field) == "" {
			return invalid("index_counts.facets[%d].field is required", i)
		}
	}
	return nil
}

// Filter returns the named index filter. Viper lower-cases map keys, so
// names are matched case-insensitively.
func (c *Config) Filter(name string) (string, error) {
	filter, ok := c.IndexCounts.Filters[strings.ToLower(name)]
	if !ok {
		return "", invalid("invalid filter '%s'", name)
	}
	return filter, nil
}

// RequireUserCounts validates the account count section
func (c *Config) RequireUserCounts() error {
	if err := c.RequireDatabase(); err != nil {
		return err
	}
	uc := c.UserCounts
	for _, ident := range []struct{ key, value string }{
		{"user_counts.table", uc.Table},
		{"user_counts.username_column", uc.UsernameColumn},
		{"user_counts.method_column", uc.MethodColumn},
		{"user_counts.last_login_column", uc.LastLoginColumn},
	} {
		if err := requireIdentifier(ident.key, ident.value); err != nil {
			return err
		}
	}
	if len([]rune(uc.Separator)) != 1 || uc.Separator == "'" || uc.Separator == "?" {
		return invalid("user_counts.separator must be a single character other than a quote or question mark")
	}
	if uc.MaxAge < 0 {
		return invalid("user_counts.max_age must not be negative")
	}
	return nil
}

// RequireUserListCounts validates the user list count section
func (c *Config) RequireUserListCounts() error {
	if err := c.RequireDatabase(); err != nil {
		return err
	}
	if err := requireIdentifier("user_list_counts.table", c.UserListCounts.Table); err != nil {
		return err
	}
	return requireIdentifier("user_list_counts.public_column", c.UserListCounts.PublicColumn)
}

// RequireViews validates the view discovery settings
func (c *Config) RequireViews() error {
	if c.ViewStatistics.Views.BaseDir == "" {
		return invalid("setting 'view_statistics.views.base_dir' not defined")
	}
	return nil
}

// RequireViewStatistics validates the analytics report section
func (c *Config) RequireViewStatistics() error {
	vs := c.ViewStatistics
	if err := c.RequireViews(); err != nil {
		return err
	}
	if err := requireURL("view_statistics.piwik.url", vs.Piwik.URL); err != nil {
		return err
	}
	if vs.Piwik.UserToken == "" {
		return invalid("view_statistics.piwik.user_token is required")
	}
	if len(vs.Statistics) == 0 {
		return invalid("view_statistics.statistics must not be empty")
	}
	for i, stat := range vs.Statistics {
		if stat.Label == "" {
			return invalid("view_statistics.statistics[%d].label is required", i)
		}
		module, action, ok := strings.Cut(stat.Method, ".")
		if !ok || module == "" || action == "" {
			return invalid("view_statistics.statistics[%d].method must be Module.action, got %q", i, stat.Method)
		}
	}
	if vs.Limit <= 0 || vs.MaxLimit <= 0 {
		return invalid("view_statistics.limit and max_limit must be positive")
	}
	return nil
}

// RequestTimeout returns the per-request deadline, zero meaning none
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// StatisticLimit caps a statistic row limit to the configured maximum
func (c *Config) StatisticLimit(stat Statistic) int {
	limit := stat.Limit
	if limit <= 0 {
		limit = c.ViewStatistics.Limit
	}
	return min(limit, c.ViewStatistics.MaxLimit)
}

// ResolvePath makes a relative output path relative to the settings file
// directory, matching how the settings document is usually deployed.
func (c *Config) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) || c.SourceFile == "" {
		return path
	}
	return filepath.Join(filepath.Dir(c.SourceFile), path)
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// GetMaxOpenConns returns the pool size; a reporting run is single-in-flight,
// so the default is 1 unless set explicitly.
func (c *Config) GetMaxOpenConns() int {
	if c.Database.MaxOpenConns > 0 {
		return c.Database.MaxOpenConns
	}
	return 1
}

// GetMaxIdleConns returns the idle pool size
func (c *Config) GetMaxIdleConns() int {
	if c.Database.MaxIdleConns > 0 {
		return c.Database.MaxIdleConns
	}
	return 1
}

func requireIdentifier(key, value string) error {
	if !identifierPattern.MatchString(value) {
		return invalid("%s is not a valid SQL identifier: %q", key, value)
	}
	return nil
}

func requireURL(key, value string) error {
	if value == "" {
		return invalid("%s is required", key)
	}
	if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		return invalid("%s must be an http(s) URL, got %q", key, value)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
