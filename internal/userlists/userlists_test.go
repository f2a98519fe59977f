package userlists_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finnastats/internal/config"
	"finnastats/internal/database"
	"finnastats/internal/testsupport"
	"finnastats/internal/userlists"
)

func listConfig() config.UserListCounts {
	return config.UserListCounts{Table: "user_list", PublicColumn: "public"}
}

func TestCount(t *testing.T) {
	ctx := context.Background()
	dialect := database.DialectFor(config.SQLiteDatabase)

	t.Run("empty table", func(t *testing.T) {
		db := testsupport.SetupTestDB(t)

		stats, err := userlists.Count(ctx, db, dialect, listConfig())
		require.NoError(t, err)
		assert.Equal(t, userlists.Stats{}, stats)
	})

	t.Run("counts public lists", func(t *testing.T) {
		db := testsupport.SetupTestDB(t)
		testsupport.CreateTestUserLists(t, db, true, false, true, false, false)

		stats, err := userlists.Count(ctx, db, dialect, listConfig())
		require.NoError(t, err)
		assert.Equal(t, userlists.Stats{Count: 5, Public: 2}, stats)

		at := time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)
		assert.Equal(t, []string{"2024-06-01T03:00:00Z", "5", "2"}, stats.Record(at))
	})

	t.Run("missing table", func(t *testing.T) {
		db := testsupport.SetupTestDB(t)
		cfg := listConfig()
		cfg.Table = "missing"

		_, err := userlists.Count(ctx, db, dialect, cfg)
		assert.Error(t, err)
	})
}
