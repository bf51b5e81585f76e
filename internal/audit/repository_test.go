package audit

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-hotel/internal/infrastructure/database"
	_ "github.com/nerrad567/gray-logic-hotel/migrations"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "audit.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	return db.DB
}

func TestCreate_FillsDefaults(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()

	entry := &AuditLog{
		Action:     ActionCommand,
		EntityType: EntityBreaker,
		EntityID:   "brk-101",
		UserID:     "usr-1",
		Details:    map[string]any{"action": "turn_on"},
	}
	require.NoError(t, repo.Create(ctx, entry))
	assert.Contains(t, entry.ID, "aud-")
	assert.Equal(t, "api", entry.Source)
	assert.False(t, entry.CreatedAt.IsZero())

	res, err := repo.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, res.Logs, 1)
	got := res.Logs[0]
	assert.Equal(t, "brk-101", got.EntityID)
	assert.Equal(t, "usr-1", got.UserID)
	assert.Equal(t, "turn_on", got.Details["action"])
	assert.WithinDuration(t, entry.CreatedAt, got.CreatedAt, time.Millisecond)
}

func TestList_FiltersAndPaging(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	entries := []AuditLog{
		{Action: ActionCreate, EntityType: EntityBreaker, EntityID: "brk-1", UserID: "usr-a", CreatedAt: base},
		{Action: ActionUpdate, EntityType: EntityBreaker, EntityID: "brk-1", UserID: "usr-b", CreatedAt: base.Add(time.Hour)},
		{Action: ActionConfigure, EntityType: EntityHub, EntityID: "hub-1", UserID: "usr-a", CreatedAt: base.Add(2 * time.Hour)},
		{Action: ActionStatus, EntityType: EntityRoom, EntityID: "room-101", UserID: "usr-c", CreatedAt: base.Add(3 * time.Hour)},
	}
	for i := range entries {
		require.NoError(t, repo.Create(ctx, &entries[i]))
	}

	all, err := repo.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 4, all.Total)
	assert.Equal(t, "room-101", all.Logs[0].EntityID, "newest first")

	byEntity, err := repo.List(ctx, Filter{EntityType: EntityBreaker, EntityID: "brk-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, byEntity.Total)

	byUser, err := repo.List(ctx, Filter{UserID: "usr-a", Action: ActionConfigure})
	require.NoError(t, err)
	require.Len(t, byUser.Logs, 1)
	assert.Equal(t, EntityHub, byUser.Logs[0].EntityType)

	window, err := repo.List(ctx, Filter{Since: base.Add(time.Hour), Until: base.Add(3 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, 2, window.Total)

	page, err := repo.List(ctx, Filter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	require.Len(t, page.Logs, 2)
	assert.Equal(t, "brk-1", page.Logs[0].EntityID)
}

func TestList_ClampsLimit(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))

	res, err := repo.List(context.Background(), Filter{Limit: 10_000, Offset: -3})
	require.NoError(t, err)
	assert.Equal(t, maxPageSize, res.Limit)
	assert.Equal(t, 0, res.Offset)
	assert.NotNil(t, res.Logs)
}
