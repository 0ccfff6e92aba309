package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/criticalpoint/syncbridge/internal/config"
	"github.com/criticalpoint/syncbridge/internal/driver"
	"github.com/criticalpoint/syncbridge/internal/fault"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, config.JournalConfig{
		Driver: "sqlite3",
		DSN:    filepath.Join(t.TempDir(), "journal.sqlite3"),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, RunMigrations(ctx, db))
	return db
}

func TestJournalOneRowPerTick(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	j := New(db, 4, zap.NewNop())
	require.NoError(t, j.Begin(ctx, "Prefab.Scene.1", 60))

	for seq := uint64(1); seq <= 10; seq++ {
		require.NoError(t, j.Record(driver.TickRecord{
			Seq:      seq,
			Props:    2,
			States:   3,
			Bound:    1,
			Released: seq > 1,
			Duration: time.Millisecond,
		}))
	}
	assert.Equal(t, 2, j.Pending())

	s, err := j.Summary(ctx, j.RunID())
	require.NoError(t, err)
	assert.Equal(t, int64(8), s.Ticks)
	assert.False(t, s.Finished)

	require.NoError(t, j.End(ctx))
	assert.Zero(t, j.Pending())

	s, err = j.Summary(ctx, j.RunID())
	require.NoError(t, err)
	assert.Equal(t, "Prefab.Scene.1", s.Scene)
	assert.Equal(t, int64(10), s.Ticks)
	assert.Equal(t, int64(10), s.Advanced)
	assert.Equal(t, int64(9), s.Released)
	assert.True(t, s.Finished)
}

func TestJournalFlushBeforeBegin(t *testing.T) {
	db := openTestDB(t)
	j := New(db, 1, zap.NewNop())
	assert.Error(t, j.Record(driver.TickRecord{Seq: 1}))
}

func TestJournalMigrationsAreIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, RunMigrations(context.Background(), db))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.JournalConfig{Driver: "mysql"}, zap.NewNop())
	assert.True(t, fault.IsConfiguration(err))
}

func TestRebind(t *testing.T) {
	pg := &DB{dialect: "postgres"}
	assert.Equal(t, "SELECT $1, $2", pg.rebind("SELECT ?, ?"))
	assert.Equal(t, "SELECT '?', $1 WHERE a = 'it''s ?' AND b = $2",
		pg.rebind("SELECT '?', ? WHERE a = 'it''s ?' AND b = ?"))
	lite := &DB{dialect: "sqlite3"}
	assert.Equal(t, "SELECT ?, ?", lite.rebind("SELECT ?, ?"))
}
