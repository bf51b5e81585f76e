package breaker

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-hotel/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-hotel/internal/room"
)

const (
	defaultActivityPageSize = 50
	maxActivityPageSize     = 1000
)

const activityColumns = `id, breaker_id, queue_item_id, action, trigger_origin, user_id,
	room_status_before, room_status_after, outcome, error_message, response_ms, created_at`

// ActivitySummary aggregates activity over a window.
type ActivitySummary struct {
	Count         int     `json:"count"`
	Successes     int     `json:"successes"`
	SuccessRate   float64 `json:"success_rate"`
	AvgResponseMs float64 `json:"avg_response_ms"`
}

// ActivityLog is the append-only record of hub interactions. It has no
// update method; Prune only removes rows older than the retention window.
type ActivityLog struct {
	db *sql.DB
}

// NewActivityLog creates an activity log over db.
func NewActivityLog(db *sql.DB) *ActivityLog {
	return &ActivityLog{db: db}
}

// Append stores entry. ID and CreatedAt are filled in when empty.
func (a *ActivityLog) Append(ctx context.Context, entry *ActivityEntry) error {
	if entry.ID == "" {
		entry.ID = "bal-" + uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.CreatedAt = entry.CreatedAt.UTC().Truncate(time.Millisecond)

	_, err := a.db.ExecContext(ctx,
		`INSERT INTO breaker_activity_logs (`+activityColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.BreakerID, nullable(entry.QueueItemID), string(entry.Action),
		string(entry.Origin), nullable(entry.UserID),
		nullable(string(entry.RoomStatusBefore)), nullable(string(entry.RoomStatusAfter)),
		string(entry.Outcome), nullable(entry.Error), entry.ResponseMs,
		database.FormatTime(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting activity entry: %w", err)
	}
	return nil
}

// List returns entries matching filter, newest first, with the total count.
func (a *ActivityLog) List(ctx context.Context, filter ActivityFilter) ([]ActivityEntry, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultActivityPageSize
	}
	if filter.Limit > maxActivityPageSize {
		filter.Limit = maxActivityPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	where, args := activityWhere(filter)

	var total int
	if err := a.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM breaker_activity_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting activity: %w", err)
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT `+activityColumns+` FROM breaker_activity_logs`+where+
			` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, filter.Limit, filter.Offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("querying activity: %w", err)
	}
	defer rows.Close()

	entries := []ActivityEntry{}
	for rows.Next() {
		e, err := scanActivity(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating activity: %w", err)
	}
	return entries, total, nil
}

// CountForQueueItem returns how many attempts were logged for one item.
func (a *ActivityLog) CountForQueueItem(ctx context.Context, itemID string) (int, error) {
	var n int
	if err := a.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM breaker_activity_logs WHERE queue_item_id = ?`, itemID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting item activity: %w", err)
	}
	return n, nil
}

// Summary aggregates command and sync activity since the given time.
func (a *ActivityLog) Summary(ctx context.Context, since time.Time) (ActivitySummary, error) {
	var s ActivitySummary
	var avg sql.NullFloat64
	err := a.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN outcome = 'success' THEN 1 ELSE 0 END), 0),
			AVG(response_ms)
		 FROM breaker_activity_logs WHERE created_at >= ?`,
		database.FormatTime(since),
	).Scan(&s.Count, &s.Successes, &avg)
	if err != nil {
		return s, fmt.Errorf("summarising activity: %w", err)
	}
	if s.Count > 0 {
		s.SuccessRate = float64(s.Successes) / float64(s.Count)
	}
	s.AvgResponseMs = avg.Float64
	return s, nil
}

// Prune deletes entries created before cutoff. It is the retention job's
// only way to remove history.
func (a *ActivityLog) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := a.db.ExecContext(ctx,
		`DELETE FROM breaker_activity_logs WHERE created_at < ?`, database.FormatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("pruning activity: %w", err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return n, nil
}

func activityWhere(filter ActivityFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.BreakerID != "" {
		conditions = append(conditions, "breaker_id = ?")
		args = append(args, filter.BreakerID)
	}
	if filter.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, string(filter.Action))
	}
	if filter.Origin != "" {
		conditions = append(conditions, "trigger_origin = ?")
		args = append(args, string(filter.Origin))
	}
	if filter.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, string(filter.Outcome))
	}
	if filter.Since != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, database.FormatTime(*filter.Since))
	}
	if filter.Until != nil {
		conditions = append(conditions, "created_at < ?")
		args = append(args, database.FormatTime(*filter.Until))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func scanActivity(s scanner) (*ActivityEntry, error) {
	var e ActivityEntry
	var itemID, userID, before, after, errMsg sql.NullString
	var responseMs sql.NullInt64
	var action, origin, outcome, createdAt string

	err := s.Scan(&e.ID, &e.BreakerID, &itemID, &action, &origin, &userID,
		&before, &after, &outcome, &errMsg, &responseMs, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("scanning activity: %w", err)
	}

	e.QueueItemID = itemID.String
	e.UserID = userID.String
	e.RoomStatusBefore = room.Status(before.String)
	e.RoomStatusAfter = room.Status(after.String)
	e.Error = errMsg.String
	e.ResponseMs = responseMs.Int64
	e.Action = Action(action)
	e.Origin = TriggerOrigin(origin)
	e.Outcome = Outcome(outcome)
	e.CreatedAt, _ = database.ParseTime(createdAt) //nolint:errcheck // format is controlled
	return &e, nil
}
