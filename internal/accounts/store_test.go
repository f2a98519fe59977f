package accounts_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finnastats/internal/accounts"
	"finnastats/internal/config"
	"finnastats/internal/database"
	"finnastats/internal/testsupport"
)

func userCountsConfig() config.UserCounts {
	return config.UserCounts{
		Table:           "user",
		UsernameColumn:  "username",
		MethodColumn:    "auth_method",
		LastLoginColumn: "last_login",
		Separator:       ":",
	}
}

func setupStore(t *testing.T) *accounts.Store {
	t.Helper()
	db := testsupport.SetupTestDB(t)

	// the recency filter runs on the database clock
	now := time.Now().UTC()
	recent := now.Add(-time.Hour)
	testsupport.CreateTestAccounts(t, db, "shibboleth", recent, "helmet:a")
	testsupport.CreateTestAccounts(t, db, "shibboleth", now.Add(-10*24*time.Hour), "helmet:b")
	testsupport.CreateTestAccounts(t, db, "NULL", recent, "Helmet:c", "nocolon")
	testsupport.CreateTestAccounts(t, db, "library_card", now.Add(-40*24*time.Hour), "vaski:d")
	testsupport.CreateTestAccounts(t, db, "Library_Card", recent, "vaski:e")

	return accounts.NewStore(db, database.DialectFor(config.SQLiteDatabase), userCountsConfig())
}

func keys(subgroups []accounts.Subgroup) []string {
	out := make([]string, len(subgroups))
	for i, s := range subgroups {
		out[i] = s.Key()
	}
	return out
}

func TestStoreDiscovery(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	subgroups, err := store.Subgroups(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"shibboleth", "", "library_card", "library_card"}, keys(subgroups))

	groups, err := store.Groups(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"helmet", "Helmet", "nocolon", "vaski"}, groups)
}

func TestStoreAggregate(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	t.Run("discovers organisations and methods", func(t *testing.T) {
		table, err := accounts.Aggregate(ctx, store, options())
		require.NoError(t, err)

		assert.Equal(t, []string{"", "library_card", "shibboleth"}, keys(table.Subgroups))
		names := make([]string, len(table.Rows))
		for i, r := range table.Rows {
			names[i] = r.Name
		}
		assert.Equal(t, []string{"total", "Helmet", "nocolon", "vaski"}, names)

		total := table.Total()
		assert.EqualValues(t, 6, total.Total)
		assert.Equal(t, []int64{2, 2, 2}, total.Values(table.Subgroups))

		helmet, _ := table.Row("helmet")
		assert.EqualValues(t, 3, helmet.Total)
		assert.Equal(t, []int64{1, 0, 2}, helmet.Values(table.Subgroups))

		vaski, _ := table.Row("vaski")
		assert.Equal(t, []int64{0, 2, 0}, vaski.Values(table.Subgroups))
	})

	t.Run("filters configured methods", func(t *testing.T) {
		opts := options()
		opts.Subgroups = accounts.ParseSubgroups([]string{"shibboleth", "NULL"})

		table, err := accounts.Aggregate(ctx, store, opts)
		require.NoError(t, err)

		assert.EqualValues(t, 4, table.Total().Total)
		vaski, ok := table.Row("vaski")
		require.True(t, ok)
		assert.Zero(t, vaski.Total)
	})

	t.Run("filters requested organisations", func(t *testing.T) {
		opts := options()
		opts.Groups = []string{"HELMET", "vaski", "empty"}

		table, err := accounts.Aggregate(ctx, store, opts)
		require.NoError(t, err)

		require.Len(t, table.Rows, 4)
		assert.Equal(t, "HELMET", table.Rows[1].Name)
		assert.EqualValues(t, 3, table.Rows[1].Total)
		assert.EqualValues(t, 2, table.Rows[2].Total)
		assert.Zero(t, table.Rows[3].Total)
		assert.EqualValues(t, 5, table.Total().Total)
	})

	t.Run("recency filter never increases a count", func(t *testing.T) {
		all, err := accounts.Aggregate(ctx, store, options())
		require.NoError(t, err)

		opts := options()
		opts.MaxAge = 7 * 24 * time.Hour
		active, err := accounts.Aggregate(ctx, store, opts)
		require.NoError(t, err)

		assert.EqualValues(t, 4, active.Total().Total)
		require.Len(t, active.Rows, len(all.Rows))
		for i := range all.Rows {
			assert.LessOrEqual(t, active.Rows[i].Total, all.Rows[i].Total, all.Rows[i].Name)
			for key, count := range all.Rows[i].Counts {
				assert.LessOrEqual(t, active.Rows[i].Counts[key], count, all.Rows[i].Name+"/"+key)
			}
		}
	})
}

func TestReport(t *testing.T) {
	store := setupStore(t)
	opts := options()
	opts.MaxAge = 7 * 24 * time.Hour

	tables, err := accounts.Report(context.Background(), store, opts)
	require.NoError(t, err)
	require.Len(t, tables, 2)

	assert.Equal(t, "total", tables[0].Rows[0].Name)
	assert.EqualValues(t, 6, tables[0].Total().Total)
	assert.Equal(t, "total - active", tables[1].Rows[0].Name)
	assert.Equal(t, "vaski - active", tables[1].Rows[3].Name)
	assert.EqualValues(t, 4, tables[1].Total().Total)

	opts.MaxAge = 0
	tables, err = accounts.Report(context.Background(), store, opts)
	require.NoError(t, err)
	assert.Len(t, tables, 1)
}

func TestStoreNullMethodFromSettings(t *testing.T) {
	store := setupStore(t)

	path := filepath.Join(t.TempDir(), "settings.json")
	settings := `{"user_counts": {"auth_methods": ["shibboleth", null]}}`
	require.NoError(t, os.WriteFile(path, []byte(settings), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)

	opts := options()
	opts.Subgroups = accounts.ParseSubgroups(cfg.UserCounts.AuthMethods)
	require.Equal(t, []accounts.Subgroup{sg("shibboleth"), accounts.NullSubgroup()}, opts.Subgroups)

	table, err := accounts.Aggregate(context.Background(), store, opts)
	require.NoError(t, err)

	assert.Equal(t, []string{"date", "organisation", "total", "shibboleth", "NULL"}, accounts.Header(table.Subgroups))
	assert.EqualValues(t, 4, table.Total().Total)
	assert.Equal(t, []int64{2, 2}, table.Total().Values(table.Subgroups))
}
