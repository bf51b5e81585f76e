package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-hotel/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-hotel/internal/infrastructure/secrets"
)

// HubConfig is one persisted hub configuration row. Only one row is
// active at a time; older rows are kept for the audit trail.
type HubConfig struct {
	ID             string    `json:"id"`
	BaseURL        string    `json:"base_url"`
	TokenEncrypted string    `json:"-"`
	IsActive       bool      `json:"is_active"`
	CreatedBy      string    `json:"created_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Credentials are what a hub call needs.
type Credentials struct {
	BaseURL string
	Token   string
}

// CredentialSource yields the current hub credentials.
type CredentialSource interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// Store persists hub configuration with the token encrypted at rest.
type Store struct {
	db  *sql.DB
	box *secrets.Box
}

// NewStore creates a Store. box seals and opens the token.
func NewStore(db *sql.DB, box *secrets.Box) *Store {
	return &Store{db: db, box: box}
}

// Active returns the active configuration or ErrNotConfigured.
func (s *Store) Active(ctx context.Context) (*HubConfig, error) {
	var cfg HubConfig
	var createdBy sql.NullString
	var active int
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, base_url, token_encrypted, is_active, created_by, created_at, updated_at
		 FROM hub_config WHERE is_active = 1`,
	).Scan(&cfg.ID, &cfg.BaseURL, &cfg.TokenEncrypted, &active, &createdBy, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotConfigured
		}
		return nil, fmt.Errorf("querying hub config: %w", err)
	}

	cfg.IsActive = active == 1
	cfg.CreatedBy = createdBy.String
	cfg.CreatedAt, _ = database.ParseTime(createdAt) //nolint:errcheck // format is controlled
	cfg.UpdatedAt, _ = database.ParseTime(updatedAt) //nolint:errcheck // format is controlled
	return &cfg, nil
}

// Save replaces the active configuration. An empty token keeps the
// currently stored one, so the URL can be changed on its own.
func (s *Store) Save(ctx context.Context, baseURL, token, userID string) (*HubConfig, error) {
	baseURL, err := normaliseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	var sealed string
	if token = strings.TrimSpace(token); token != "" {
		sealed, err = s.box.Encrypt(token)
		if err != nil {
			return nil, fmt.Errorf("encrypting token: %w", err)
		}
	} else {
		current, err := s.Active(ctx)
		if errors.Is(err, ErrNotConfigured) {
			return nil, fmt.Errorf("%w: token is required", ErrInvalidConfig)
		}
		if err != nil {
			return nil, err
		}
		sealed = current.TokenEncrypted
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	cfg := &HubConfig{
		ID:             "hub-" + uuid.NewString()[:8],
		BaseURL:        baseURL,
		TokenEncrypted: sealed,
		IsActive:       true,
		CreatedBy:      userID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	ts := database.FormatTime(now)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx,
		`UPDATE hub_config SET is_active = 0, updated_at = ? WHERE is_active = 1`, ts,
	); err != nil {
		return nil, fmt.Errorf("deactivating hub config: %w", err)
	}
	var createdBy any
	if userID != "" {
		createdBy = userID
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO hub_config (id, base_url, token_encrypted, is_active, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, 1, ?, ?, ?)`,
		cfg.ID, cfg.BaseURL, cfg.TokenEncrypted, createdBy, ts, ts,
	); err != nil {
		return nil, fmt.Errorf("inserting hub config: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing hub config: %w", err)
	}
	return cfg, nil
}

// Credentials implements CredentialSource.
func (s *Store) Credentials(ctx context.Context) (Credentials, error) {
	cfg, err := s.Active(ctx)
	if err != nil {
		return Credentials{}, err
	}
	token, err := s.box.Decrypt(cfg.TokenEncrypted)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return Credentials{BaseURL: cfg.BaseURL, Token: token}, nil
}

func normaliseBaseURL(raw string) (string, error) {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: base_url must be an http(s) URL", ErrInvalidConfig)
	}
	return raw, nil
}
