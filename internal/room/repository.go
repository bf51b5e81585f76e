package room

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

const roomColumns = `id, number, floor, room_type, status, checkout_due_at, created_at, updated_at`

// Repository defines room persistence.
type Repository interface {
	Create(ctx context.Context, room *Room) error
	Get(ctx context.Context, id string) (*Room, error)
	GetByNumber(ctx context.Context, number string) (*Room, error)
	List(ctx context.Context, filter Filter) ([]Room, error)
	// UpdateStatus stores the new status and returns the one it replaced.
	UpdateStatus(ctx context.Context, id string, status Status, at time.Time) (Status, error)
	SetCheckoutDue(ctx context.Context, id string, due *time.Time) error
	// ListOverdue returns occupied rooms whose checkout is due at or before now.
	ListOverdue(ctx context.Context, now time.Time) ([]Room, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed room repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a room. ID and timestamps are generated; status defaults
// to available.
func (r *SQLiteRepository) Create(ctx context.Context, room *Room) error {
	if room.ID == "" {
		room.ID = "room-" + uuid.NewString()[:8]
	}
	if room.Status == "" {
		room.Status = StatusAvailable
	}
	if room.Type == "" {
		room.Type = "standard"
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	room.CreatedAt, room.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO rooms (`+roomColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		room.ID, room.Number, room.Floor, room.Type, string(room.Status),
		database.NullTime(room.CheckoutDueAt),
		database.FormatTime(now), database.FormatTime(now),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrRoomExists
		}
		return fmt.Errorf("inserting room %s: %w", room.Number, err)
	}
	return nil
}

// Get returns a room by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Room, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id)
	return scanRoom(row)
}

// GetByNumber returns a room by its door number.
func (r *SQLiteRepository) GetByNumber(ctx context.Context, number string) (*Room, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE number = ?`, number)
	return scanRoom(row)
}

// List returns rooms ordered by floor then number.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) ([]Room, error) {
	var conditions []string
	var args []any
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Floor != nil {
		conditions = append(conditions, "floor = ?")
		args = append(args, *filter.Floor)
	}

	query := `SELECT ` + roomColumns + ` FROM rooms`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY floor, number"

	return r.queryRooms(ctx, query, args...)
}

// UpdateStatus writes the new status inside a transaction so the returned
// previous status is exactly the one replaced.
func (r *SQLiteRepository) UpdateStatus(ctx context.Context, id string, status Status, at time.Time) (Status, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var old string
	if err := tx.QueryRowContext(ctx, `SELECT status FROM rooms WHERE id = ?`, id).Scan(&old); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrRoomNotFound
		}
		return "", fmt.Errorf("reading room status: %w", err)
	}

	if Status(old) != status {
		if _, err := tx.ExecContext(ctx,
			`UPDATE rooms SET status = ?, updated_at = ? WHERE id = ?`,
			string(status), database.FormatTime(at), id,
		); err != nil {
			return "", fmt.Errorf("updating room status: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing status update: %w", err)
	}
	return Status(old), nil
}

// SetCheckoutDue sets or clears the expected checkout time.
func (r *SQLiteRepository) SetCheckoutDue(ctx context.Context, id string, due *time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE rooms SET checkout_due_at = ?, updated_at = ? WHERE id = ?`,
		database.NullTime(due), database.FormatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("updating checkout due: %w", err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if n == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// ListOverdue returns occupied rooms past their checkout time.
func (r *SQLiteRepository) ListOverdue(ctx context.Context, now time.Time) ([]Room, error) {
	return r.queryRooms(ctx,
		`SELECT `+roomColumns+` FROM rooms
		 WHERE status = ? AND checkout_due_at IS NOT NULL AND checkout_due_at <= ?
		 ORDER BY checkout_due_at`,
		string(StatusOccupied), database.FormatTime(now),
	)
}

func (r *SQLiteRepository) queryRooms(ctx context.Context, query string, args ...any) ([]Room, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying rooms: %w", err)
	}
	defer rows.Close()

	rooms := []Room{}
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, *rm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating room rows: %w", err)
	}
	return rooms, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRoom(s scanner) (*Room, error) {
	var rm Room
	var status, createdAt, updatedAt string
	var due sql.NullString

	err := s.Scan(&rm.ID, &rm.Number, &rm.Floor, &rm.Type, &status, &due, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("scanning room: %w", err)
	}

	rm.Status = Status(status)
	if rm.CheckoutDueAt, err = database.ParseNullTime(due); err != nil {
		return nil, err
	}
	rm.CreatedAt, _ = database.ParseTime(createdAt) //nolint:errcheck // format is controlled
	rm.UpdatedAt, _ = database.ParseTime(updatedAt) //nolint:errcheck // format is controlled
	return &rm, nil
}
