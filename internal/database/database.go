// Package database opens the relational store the account reports read from.
package database

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"finnastats/internal/config"
)

// ErrNotConnected is returned when a connection is used before Connect.
var ErrNotConnected = errors.New("database not connected")

// Manager owns the gorm connection for one run.
type Manager struct {
	cfg          config.Database
	maxOpenConns int
	maxIdleConns int
	logger       *slog.Logger
	db           *gorm.DB
	dialect      Dialect
}

// NewManager creates a manager for the configured driver; nothing is opened
// until Connect.
func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:          cfg.Database,
		maxOpenConns: cfg.GetMaxOpenConns(),
		maxIdleConns: cfg.GetMaxIdleConns(),
		logger:       logger,
		dialect:      DialectFor(cfg.Database.Driver),
	}
}

// Connect opens the connection and applies the pool limits.
func (m *Manager) Connect() (*gorm.DB, error) {
	if m.db != nil {
		return m.db, nil
	}

	dialector, err := m.dialector()
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		m.logger.Error("Failed to connect to database", slog.String("driver", m.cfg.Driver), slog.Any("error", err))
		return nil, fmt.Errorf("connecting to %s database: %w", m.cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(m.maxOpenConns)
	sqlDB.SetMaxIdleConns(m.maxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	m.db = db
	m.logger.Debug("Database connected", slog.String("driver", m.cfg.Driver))
	return db, nil
}

// GetConnection returns the open connection, or nil before Connect.
func (m *Manager) GetConnection() *gorm.DB {
	return m.db
}

// Dialect returns the SQL dialect of the configured driver.
func (m *Manager) Dialect() Dialect {
	return m.dialect
}

// Close releases the connection pool.
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	m.db = nil
	return sqlDB.Close()
}

func (m *Manager) dialector() (gorm.Dialector, error) {
	switch m.cfg.Driver {
	case config.SQLiteDatabase:
		return sqlite.Open(m.cfg.DSN), nil
	case config.MySQLDatabase:
		return mysql.Open(m.mysqlDSN()), nil
	case config.PostgresDatabase:
		pgConfig, err := pgx.ParseConfig(m.cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("parsing postgres dsn: %w", err)
		}
		return postgres.New(postgres.Config{Conn: stdlib.OpenDB(*pgConfig)}), nil
	default:
		return nil, fmt.Errorf("%w: unsupported database driver %q", config.ErrInvalidConfig, m.cfg.Driver)
	}
}

// mysqlDSN prefers an explicit DSN and otherwise builds one from the
// hostname, database and credential settings.
func (m *Manager) mysqlDSN() string {
	if m.cfg.DSN != "" {
		return m.cfg.DSN
	}
	dsn := mysqldriver.NewConfig()
	dsn.User = m.cfg.Username
	dsn.Passwd = m.cfg.Password
	dsn.Net = "tcp"
	dsn.Addr = m.cfg.Hostname
	dsn.DBName = m.cfg.Name
	dsn.ParseTime = true
	dsn.Params = map[string]string{"charset": "utf8mb4"}
	return dsn.FormatDSN()
}
