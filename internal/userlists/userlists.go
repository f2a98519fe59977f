// Package userlists counts saved user lists.
package userlists

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"finnastats/internal/config"
	"finnastats/internal/database"
	"finnastats/internal/report"
)

// Stats is the number of lists and how many of them are public.
type Stats struct {
	Count  int64
	Public int64
}

// Count reads the list totals from the configured table.
func Count(ctx context.Context, db *gorm.DB, dialect database.Dialect, cfg config.UserListCounts) (Stats, error) {
	query := fmt.Sprintf(
		"SELECT COUNT(*), SUM(CASE WHEN %s = 1 THEN 1 ELSE 0 END) FROM %s",
		dialect.Quote(cfg.PublicColumn), dialect.Quote(cfg.Table),
	)

	var (
		count  int64
		public sql.NullInt64
	)
	if err := db.WithContext(ctx).Raw(query).Row().Scan(&count, &public); err != nil {
		return Stats{}, fmt.Errorf("counting user lists: %w", err)
	}

	return Stats{Count: count, Public: public.Int64}, nil
}

// Header is the CSV header of the report.
func Header() []string {
	return []string{"time", "count", "public"}
}

// Record renders the stats as one CSV row stamped with at.
func (s Stats) Record(at time.Time) []string {
	return []string{
		report.Timestamp(at),
		strconv.FormatInt(s.Count, 10),
		strconv.FormatInt(s.Public, 10),
	}
}
