package gateway

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-hotel/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-hotel/internal/infrastructure/secrets"
	_ "github.com/nerrad567/gray-logic-hotel/migrations"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "hotel.db"), BusyTimeout: 5})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	return db.DB
}

func testBox(t *testing.T, key string) *secrets.Box {
	t.Helper()
	box, err := secrets.NewBox(key)
	require.NoError(t, err)
	return box
}

func TestStore_NotConfigured(t *testing.T) {
	s := NewStore(testDB(t), testBox(t, "k1-0123456789abcdef0123456789abcdef"))

	_, err := s.Active(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = s.Credentials(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestStore_SaveAndCredentials(t *testing.T) {
	db := testDB(t)
	s := NewStore(db, testBox(t, "k1-0123456789abcdef0123456789abcdef"))
	ctx := context.Background()

	cfg, err := s.Save(ctx, " http://hub.local:8123/ ", testToken, "usr-1")
	require.NoError(t, err)
	assert.Equal(t, "http://hub.local:8123", cfg.BaseURL)
	assert.NotContains(t, cfg.TokenEncrypted, testToken)

	var stored string
	require.NoError(t, db.QueryRow(`SELECT token_encrypted FROM hub_config WHERE id = ?`, cfg.ID).Scan(&stored))
	assert.NotEqual(t, testToken, stored, "token is encrypted at rest")

	creds, err := s.Credentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, Credentials{BaseURL: "http://hub.local:8123", Token: testToken}, creds)

	active, err := s.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg.ID, active.ID)
	assert.Equal(t, "usr-1", active.CreatedBy)
}

func TestStore_SaveReplacesActive(t *testing.T) {
	db := testDB(t)
	s := NewStore(db, testBox(t, "k1-0123456789abcdef0123456789abcdef"))
	ctx := context.Background()

	first, err := s.Save(ctx, "http://hub-a.local", "token-a", "usr-1")
	require.NoError(t, err)

	// Empty token keeps the stored one.
	second, err := s.Save(ctx, "https://hub-b.local", "", "usr-2")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	creds, err := s.Credentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://hub-b.local", creds.BaseURL)
	assert.Equal(t, "token-a", creds.Token)

	var total, active int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*), SUM(is_active) FROM hub_config`).Scan(&total, &active))
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, active)
}

func TestStore_SaveValidation(t *testing.T) {
	s := NewStore(testDB(t), testBox(t, "k1-0123456789abcdef0123456789abcdef"))
	ctx := context.Background()

	for _, raw := range []string{"", "hub.local", "ftp://hub.local", "http://"} {
		_, err := s.Save(ctx, raw, "token", "")
		assert.ErrorIs(t, err, ErrInvalidConfig, "url %q", raw)
	}

	_, err := s.Save(ctx, "http://hub.local", "   ", "")
	assert.ErrorIs(t, err, ErrInvalidConfig, "first save needs a token")
}

func TestStore_WrongKeyIsDecryptionError(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_, err := NewStore(db, testBox(t, "k1-0123456789abcdef0123456789abcdef")).Save(ctx, "http://hub.local", testToken, "")
	require.NoError(t, err)

	rotated := NewStore(db, testBox(t, "k2-fedcba9876543210fedcba9876543210"))
	_, err = rotated.Credentials(ctx)
	assert.ErrorIs(t, err, ErrDecryption)

	c := NewClient(rotated, Options{})
	_, err = c.GetState(ctx, "switch.room_101")
	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	assert.True(t, gwErr.ConfigurationError())
}
