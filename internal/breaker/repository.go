package breaker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-hotel/internal/infrastructure/database"
)

const breakerColumns = `id, entity_id, name, room_id, auto_control_enabled, current_state,
	is_available, last_sync_at, consecutive_errors, last_error, is_active, created_at, updated_at`

// Repository defines breaker persistence. State fields change only through
// the Record* methods.
type Repository interface {
	Create(ctx context.Context, b *Breaker) error
	Get(ctx context.Context, id string) (*Breaker, error)
	GetActiveByRoom(ctx context.Context, roomID string) (*Breaker, error)
	List(ctx context.Context, filter Filter) ([]Breaker, error)
	Update(ctx context.Context, b *Breaker) error
	Deactivate(ctx context.Context, id string) error

	// RecordSync stores a successful state poll and clears the error streak.
	RecordSync(ctx context.Context, id string, state State, at time.Time) error
	// RecordCommand stores a successful command and clears the error streak.
	RecordCommand(ctx context.Context, id string, state State, at time.Time) error
	// RecordFailure extends the error streak and returns its new length.
	// markUnavailable also flips the breaker to unavailable.
	RecordFailure(ctx context.Context, id, message string, markUnavailable bool, at time.Time) (int, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed breaker repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a breaker. New breakers start unavailable until the first
// sync reports otherwise.
func (r *SQLiteRepository) Create(ctx context.Context, b *Breaker) error {
	if b.ID == "" {
		b.ID = "brk-" + uuid.NewString()[:8]
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	b.CreatedAt, b.UpdatedAt = now, now
	b.CurrentState = StateUnavailable
	b.IsAvailable = false
	b.IsActive = true

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO breakers (id, entity_id, name, room_id, auto_control_enabled, current_state,
			is_available, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, 1, ?, ?)`,
		b.ID, b.EntityID, b.Name, nullable(b.RoomID), database.BoolToInt(b.AutoControlEnabled),
		string(b.CurrentState), database.FormatTime(now), database.FormatTime(now),
	)
	if err != nil {
		return translateUnique(err, "inserting breaker")
	}
	return nil
}

// Get returns a breaker by ID, active or not.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Breaker, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+breakerColumns+` FROM breakers WHERE id = ?`, id)
	return scanBreaker(row)
}

// GetActiveByRoom returns the active breaker wired to roomID.
func (r *SQLiteRepository) GetActiveByRoom(ctx context.Context, roomID string) (*Breaker, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+breakerColumns+` FROM breakers WHERE room_id = ? AND is_active = 1`, roomID)
	return scanBreaker(row)
}

// List returns breakers ordered by name.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) ([]Breaker, error) {
	var conditions []string
	var args []any

	if !filter.IncludeInactive {
		conditions = append(conditions, "is_active = 1")
	}
	if filter.RoomID != "" {
		conditions = append(conditions, "room_id = ?")
		args = append(args, filter.RoomID)
	}
	if filter.AutoOnly {
		conditions = append(conditions, "auto_control_enabled = 1")
	}
	if filter.MinErrors > 0 {
		conditions = append(conditions, "consecutive_errors >= ?")
		args = append(args, filter.MinErrors)
	}

	query := `SELECT ` + breakerColumns + ` FROM breakers`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY name, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying breakers: %w", err)
	}
	defer rows.Close()

	breakers := []Breaker{}
	for rows.Next() {
		b, err := scanBreaker(rows)
		if err != nil {
			return nil, err
		}
		breakers = append(breakers, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating breakers: %w", err)
	}
	return breakers, nil
}

// Update writes the administrator-editable fields: name, room and the
// auto-control flag.
func (r *SQLiteRepository) Update(ctx context.Context, b *Breaker) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.db.ExecContext(ctx,
		`UPDATE breakers SET name = ?, room_id = ?, auto_control_enabled = ?, updated_at = ? WHERE id = ?`,
		b.Name, nullable(b.RoomID), database.BoolToInt(b.AutoControlEnabled), database.FormatTime(now), b.ID,
	)
	if err != nil {
		return translateUnique(err, "updating breaker")
	}
	if err := expectOne(result, ErrBreakerNotFound); err != nil {
		return err
	}
	b.UpdatedAt = now
	return nil
}

// Deactivate soft-deletes a breaker. History rows keep pointing at it.
func (r *SQLiteRepository) Deactivate(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE breakers SET is_active = 0, updated_at = ? WHERE id = ?`,
		database.FormatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("deactivating breaker: %w", err)
	}
	return expectOne(result, ErrBreakerNotFound)
}

// RecordSync implements Repository.
func (r *SQLiteRepository) RecordSync(ctx context.Context, id string, state State, at time.Time) error {
	ts := database.FormatTime(at)
	result, err := r.db.ExecContext(ctx,
		`UPDATE breakers SET current_state = ?, is_available = ?, last_sync_at = ?,
			consecutive_errors = 0, last_error = NULL, updated_at = ?
		 WHERE id = ?`,
		string(state), database.BoolToInt(state != StateUnavailable), ts, ts, id,
	)
	if err != nil {
		return fmt.Errorf("recording sync: %w", err)
	}
	return expectOne(result, ErrBreakerNotFound)
}

// RecordCommand implements Repository.
func (r *SQLiteRepository) RecordCommand(ctx context.Context, id string, state State, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE breakers SET current_state = ?, is_available = 1,
			consecutive_errors = 0, last_error = NULL, updated_at = ?
		 WHERE id = ?`,
		string(state), database.FormatTime(at), id,
	)
	if err != nil {
		return fmt.Errorf("recording command: %w", err)
	}
	return expectOne(result, ErrBreakerNotFound)
}

// RecordFailure implements Repository.
func (r *SQLiteRepository) RecordFailure(ctx context.Context, id, message string, markUnavailable bool, at time.Time) (int, error) {
	query := `UPDATE breakers SET consecutive_errors = consecutive_errors + 1, last_error = ?, updated_at = ?`
	if markUnavailable {
		query += `, is_available = 0, current_state = 'unavailable'`
	}
	query += ` WHERE id = ? RETURNING consecutive_errors`

	var count int
	err := r.db.QueryRowContext(ctx, query, message, database.FormatTime(at), id).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrBreakerNotFound
		}
		return 0, fmt.Errorf("recording failure: %w", err)
	}
	return count, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBreaker(s scanner) (*Breaker, error) {
	var b Breaker
	var roomID, lastSync, lastError sql.NullString
	var state, createdAt, updatedAt string
	var auto, available, active int

	err := s.Scan(&b.ID, &b.EntityID, &b.Name, &roomID, &auto, &state,
		&available, &lastSync, &b.ConsecutiveErrors, &lastError, &active, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBreakerNotFound
		}
		return nil, fmt.Errorf("scanning breaker: %w", err)
	}

	b.RoomID = roomID.String
	b.LastError = lastError.String
	b.CurrentState = State(state)
	b.AutoControlEnabled = auto != 0
	b.IsAvailable = available != 0
	b.IsActive = active != 0
	if b.LastSyncAt, err = database.ParseNullTime(lastSync); err != nil {
		return nil, err
	}
	b.CreatedAt, _ = database.ParseTime(createdAt) //nolint:errcheck // format is controlled
	b.UpdatedAt, _ = database.ParseTime(updatedAt) //nolint:errcheck // format is controlled
	return &b, nil
}

// translateUnique maps the two unique constraints on breakers to their
// sentinels.
func translateUnique(err error, op string) error {
	if database.IsUniqueViolation(err) {
		if strings.Contains(err.Error(), "room_id") {
			return ErrRoomHasBreaker
		}
		return ErrBreakerExists
	}
	return fmt.Errorf("%s: %w", op, err)
}

func expectOne(result sql.Result, notFound error) error {
	n, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if n == 0 {
		return notFound
	}
	return nil
}

// nullable returns nil for empty strings so optional TEXT columns store NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
