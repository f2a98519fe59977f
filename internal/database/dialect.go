package database

import (
	"fmt"
	"strings"

	"finnastats/internal/config"
)

// Dialect renders the few driver specific SQL fragments the reports need.
// Identifiers passed in are validated by the config package.
type Dialect interface {
	Name() string
	// Quote quotes a table or column name.
	Quote(ident string) string
	// PrefixExpr returns an expression yielding the part of column before the
	// first occurrence of sep, or the whole value when sep is absent.
	PrefixExpr(column, sep string) string
	// RecentExpr returns a condition, with one placeholder and its argument,
	// keeping rows whose column is within maxAge seconds of the database's
	// current time.
	RecentExpr(column string, maxAge int64) (string, any)
}

// DialectFor returns the dialect of a configured driver, falling back to
// MySQL, the production store.
func DialectFor(driver string) Dialect {
	switch driver {
	case config.SQLiteDatabase:
		return sqliteDialect{}
	case config.PostgresDatabase:
		return postgresDialect{}
	default:
		return mysqlDialect{}
	}
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string { return config.MySQLDatabase }

func (mysqlDialect) Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (d mysqlDialect) PrefixExpr(column, sep string) string {
	return fmt.Sprintf("SUBSTRING_INDEX(%s, %s, 1)", d.Quote(column), literal(sep))
}

func (d mysqlDialect) RecentExpr(column string, maxAge int64) (string, any) {
	return fmt.Sprintf("DATE_ADD(%s, INTERVAL ? SECOND) > NOW()", d.Quote(column)), maxAge
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return config.PostgresDatabase }

func (postgresDialect) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (d postgresDialect) PrefixExpr(column, sep string) string {
	return fmt.Sprintf("split_part(%s, %s, 1)", d.Quote(column), literal(sep))
}

func (d postgresDialect) RecentExpr(column string, maxAge int64) (string, any) {
	return fmt.Sprintf("%s > now() - make_interval(secs => ?)", d.Quote(column)), float64(maxAge)
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return config.SQLiteDatabase }

func (sqliteDialect) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (d sqliteDialect) PrefixExpr(column, sep string) string {
	col := d.Quote(column)
	sepLit := literal(sep)
	return fmt.Sprintf("CASE WHEN instr(%[1]s, %[2]s) > 0 THEN substr(%[1]s, 1, instr(%[1]s, %[2]s) - 1) ELSE %[1]s END", col, sepLit)
}

// RecentExpr normalises the stored value with datetime() so values written
// with a zone offset compare in UTC, as datetime('now') does.
func (d sqliteDialect) RecentExpr(column string, maxAge int64) (string, any) {
	return fmt.Sprintf("datetime(%s) > datetime('now', ?)", d.Quote(column)), fmt.Sprintf("-%d seconds", maxAge)
}

func literal(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
