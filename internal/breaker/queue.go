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

const (
	// DefaultPriority is used for auto commands. Lower runs first.
	DefaultPriority = 5
	// ManualPriority puts staff commands ahead of automatic ones.
	ManualPriority = 1

	defaultMaxRetries     = 3
	defaultRetryBaseDelay = 3 * time.Second
	defaultQueuePageSize  = 50
	maxQueuePageSize      = 500
)

const queueColumns = `id, breaker_id, target_state, trigger_origin, user_id, priority, retry_count,
	max_retries, scheduled_at, status, error_message, created_at, updated_at, completed_at`

// QueueConfig tunes retry behaviour.
type QueueConfig struct {
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// EnqueueRequest describes a command to add.
type EnqueueRequest struct {
	BreakerID string
	Target    State
	Origin    TriggerOrigin
	UserID    string
	// Priority defaults to DefaultPriority when zero.
	Priority int
	// Debounce delays the earliest execution time.
	Debounce time.Duration
}

// Queue is the durable command queue backed by breaker_control_queue.
type Queue struct {
	db  *sql.DB
	cfg QueueConfig
	now func() time.Time
}

// NewQueue creates a queue over db.
func NewQueue(db *sql.DB, cfg QueueConfig) *Queue {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = defaultRetryBaseDelay
	}
	return &Queue{db: db, cfg: cfg, now: time.Now}
}

// Enqueue inserts a pending item scheduled at now+Debounce and, in the same
// transaction, cancels every other pending item for the breaker.
func (q *Queue) Enqueue(ctx context.Context, req EnqueueRequest) (*QueueItem, error) {
	if !req.Target.Commandable() {
		return nil, fmt.Errorf("%w: target %q", ErrInvalidValue, req.Target)
	}
	if !req.Origin.Valid() {
		return nil, fmt.Errorf("%w: origin %q", ErrInvalidValue, req.Origin)
	}
	if req.Debounce < 0 {
		req.Debounce = 0
	}
	if req.Priority <= 0 {
		req.Priority = DefaultPriority
	}

	now := q.now().UTC().Truncate(time.Millisecond)
	item := &QueueItem{
		ID:          "bcq-" + uuid.NewString(),
		BreakerID:   req.BreakerID,
		Target:      req.Target,
		Origin:      req.Origin,
		UserID:      req.UserID,
		Priority:    req.Priority,
		MaxRetries:  q.cfg.MaxRetries,
		ScheduledAt: now.Add(req.Debounce),
		Status:      QueuePending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	ts := database.FormatTime(now)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO breaker_control_queue (id, breaker_id, target_state, trigger_origin, user_id,
			priority, retry_count, max_retries, scheduled_at, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, 'pending', ?, ?)`,
		item.ID, item.BreakerID, string(item.Target), string(item.Origin), nullable(item.UserID),
		item.Priority, item.MaxRetries, database.FormatTime(item.ScheduledAt), ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting queue item: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE breaker_control_queue
		 SET status = 'cancelled', error_message = ?, updated_at = ?, completed_at = ?
		 WHERE breaker_id = ? AND status = 'pending' AND id != ?`,
		"superseded by "+item.ID, ts, ts, item.BreakerID, item.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("cancelling superseded items: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing enqueue: %w", err)
	}
	return item, nil
}

// ClaimDue claims up to limit pending items due at now, in priority then
// schedule order. Each row is claimed with a conditional update; rows
// another drain got to first are skipped.
func (q *Queue) ClaimDue(ctx context.Context, now time.Time, limit int) ([]QueueItem, error) {
	if limit <= 0 {
		limit = 1
	}

	candidates, err := q.query(ctx,
		`SELECT `+queueColumns+` FROM breaker_control_queue
		 WHERE status = 'pending' AND scheduled_at <= ?
		 ORDER BY priority ASC, scheduled_at ASC
		 LIMIT ?`,
		database.FormatTime(now), limit,
	)
	if err != nil {
		return nil, err
	}

	claimed := make([]QueueItem, 0, len(candidates))
	for _, item := range candidates {
		ok, err := q.claim(ctx, item.ID, now)
		if err != nil {
			return claimed, err
		}
		if !ok {
			continue
		}
		item.Status = QueueProcessing
		item.UpdatedAt = now.UTC().Truncate(time.Millisecond)
		claimed = append(claimed, item)
	}
	return claimed, nil
}

// Claim claims a single pending item regardless of its schedule. Manual
// control uses it to run a command immediately.
func (q *Queue) Claim(ctx context.Context, id string) (*QueueItem, error) {
	ok, err := q.claim(ctx, id, q.now())
	if err != nil {
		return nil, err
	}
	item, err := q.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotClaimable, id, item.Status)
	}
	return item, nil
}

func (q *Queue) claim(ctx context.Context, id string, now time.Time) (bool, error) {
	result, err := q.db.ExecContext(ctx,
		`UPDATE breaker_control_queue SET status = 'processing', updated_at = ?
		 WHERE id = ? AND status = 'pending'`,
		database.FormatTime(now), id,
	)
	if err != nil {
		return false, fmt.Errorf("claiming queue item %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claiming queue item %s: %w", id, err)
	}
	return n == 1, nil
}

// Complete marks a processing item as done.
func (q *Queue) Complete(ctx context.Context, id string) error {
	ts := database.FormatTime(q.now())
	result, err := q.db.ExecContext(ctx,
		`UPDATE breaker_control_queue
		 SET status = 'completed', error_message = NULL, updated_at = ?, completed_at = ?
		 WHERE id = ? AND status = 'processing'`,
		ts, ts, id,
	)
	if err != nil {
		return fmt.Errorf("completing queue item: %w", err)
	}
	return expectOne(result, ErrNotClaimable)
}

// Fail records a failed attempt. The retry count is incremented; once it
// reaches max_retries the item is terminally failed, otherwise it returns to
// pending at now + base*(retry_count+1).
func (q *Queue) Fail(ctx context.Context, id string, cause error) (*QueueItem, error) {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var retryCount, maxRetries int
	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT retry_count, max_retries, status FROM breaker_control_queue WHERE id = ?`, id,
	).Scan(&retryCount, &maxRetries, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQueueItemNotFound
		}
		return nil, fmt.Errorf("reading queue item: %w", err)
	}
	if QueueStatus(status) != QueueProcessing {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotClaimable, id, status)
	}

	now := q.now()
	ts := database.FormatTime(now)
	retryCount++

	if retryCount >= maxRetries {
		_, err = tx.ExecContext(ctx,
			`UPDATE breaker_control_queue
			 SET status = 'failed', retry_count = ?, error_message = ?, updated_at = ?, completed_at = ?
			 WHERE id = ?`,
			retryCount, msg, ts, ts, id,
		)
	} else {
		next := now.Add(q.RetryDelay(retryCount))
		_, err = tx.ExecContext(ctx,
			`UPDATE breaker_control_queue
			 SET status = 'pending', retry_count = ?, error_message = ?, scheduled_at = ?, updated_at = ?
			 WHERE id = ?`,
			retryCount, msg, database.FormatTime(next), ts, id,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("recording queue failure: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing queue failure: %w", err)
	}
	return q.Get(ctx, id)
}

// FailTerminal ends a processing item as failed without scheduling a retry.
// It is used when the hub cannot be used at all, so retrying is pointless.
func (q *Queue) FailTerminal(ctx context.Context, id string, cause error) (*QueueItem, error) {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	ts := database.FormatTime(q.now())
	result, err := q.db.ExecContext(ctx,
		`UPDATE breaker_control_queue
		 SET status = 'failed', retry_count = retry_count + 1, error_message = ?, updated_at = ?, completed_at = ?
		 WHERE id = ? AND status = 'processing'`,
		msg, ts, ts, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failing queue item: %w", err)
	}
	if err := expectOne(result, ErrNotClaimable); err != nil {
		return nil, err
	}
	return q.Get(ctx, id)
}

// RequeueStale returns items stuck in processing for longer than olderThan
// to pending, due immediately. A claimed item only stays in processing if
// the process died or its bookkeeping failed mid-execution.
//
// Returns the number of items requeued.
func (q *Queue) RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := q.now()
	ts := database.FormatTime(now)
	result, err := q.db.ExecContext(ctx,
		`UPDATE breaker_control_queue
		 SET status = 'pending', error_message = ?, scheduled_at = ?, updated_at = ?
		 WHERE status = 'processing' AND updated_at < ?`,
		"requeued after stalled processing", ts, ts, database.FormatTime(now.Add(-olderThan)),
	)
	if err != nil {
		return 0, fmt.Errorf("requeueing stale items: %w", err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return n, nil
}

// RetryDelay is the wait before the next attempt once retryCount attempts
// have failed. It grows linearly and never repeats.
func (q *Queue) RetryDelay(retryCount int) time.Duration {
	return q.cfg.RetryBaseDelay * time.Duration(retryCount+1)
}

// Cancel terminates a pending or processing item without running it.
func (q *Queue) Cancel(ctx context.Context, id, reason string) error {
	ts := database.FormatTime(q.now())
	result, err := q.db.ExecContext(ctx,
		`UPDATE breaker_control_queue
		 SET status = 'cancelled', error_message = ?, updated_at = ?, completed_at = ?
		 WHERE id = ? AND status IN ('pending', 'processing')`,
		reason, ts, ts, id,
	)
	if err != nil {
		return fmt.Errorf("cancelling queue item: %w", err)
	}
	return expectOne(result, ErrNotClaimable)
}

// CancelPending cancels every pending item for a breaker and returns how
// many were cancelled.
func (q *Queue) CancelPending(ctx context.Context, breakerID, reason string) (int64, error) {
	ts := database.FormatTime(q.now())
	result, err := q.db.ExecContext(ctx,
		`UPDATE breaker_control_queue
		 SET status = 'cancelled', error_message = ?, updated_at = ?, completed_at = ?
		 WHERE breaker_id = ? AND status = 'pending'`,
		reason, ts, ts, breakerID,
	)
	if err != nil {
		return 0, fmt.Errorf("cancelling pending items: %w", err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return n, nil
}

// Get returns one queue item.
func (q *Queue) Get(ctx context.Context, id string) (*QueueItem, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+queueColumns+` FROM breaker_control_queue WHERE id = ?`, id)
	return scanQueueItem(row)
}

// List returns items matching filter, newest first, with the total count.
func (q *Queue) List(ctx context.Context, filter QueueFilter) ([]QueueItem, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultQueuePageSize
	}
	if filter.Limit > maxQueuePageSize {
		filter.Limit = maxQueuePageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.BreakerID != "" {
		conditions = append(conditions, "breaker_id = ?")
		args = append(args, filter.BreakerID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM breaker_control_queue`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting queue items: %w", err)
	}

	items, err := q.query(ctx,
		`SELECT `+queueColumns+` FROM breaker_control_queue`+where+
			` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		append(args, filter.Limit, filter.Offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Counts returns the number of items in each status. Every status is
// present in the map, zero or not.
func (q *Queue) Counts(ctx context.Context) (map[QueueStatus]int, error) {
	counts := map[QueueStatus]int{
		QueuePending: 0, QueueProcessing: 0, QueueCompleted: 0, QueueFailed: 0, QueueCancelled: 0,
	}

	rows, err := q.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM breaker_control_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting queue items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning queue count: %w", err)
		}
		counts[QueueStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating queue counts: %w", err)
	}
	return counts, nil
}

func (q *Queue) query(ctx context.Context, query string, args ...any) ([]QueueItem, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying queue: %w", err)
	}
	defer rows.Close()

	items := []QueueItem{}
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating queue: %w", err)
	}
	return items, nil
}

func scanQueueItem(s scanner) (*QueueItem, error) {
	var item QueueItem
	var target, origin, status, scheduledAt, createdAt, updatedAt string
	var userID, errMsg, completedAt sql.NullString

	err := s.Scan(&item.ID, &item.BreakerID, &target, &origin, &userID, &item.Priority,
		&item.RetryCount, &item.MaxRetries, &scheduledAt, &status, &errMsg,
		&createdAt, &updatedAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQueueItemNotFound
		}
		return nil, fmt.Errorf("scanning queue item: %w", err)
	}

	item.Target = State(target)
	item.Origin = TriggerOrigin(origin)
	item.Status = QueueStatus(status)
	item.UserID = userID.String
	item.Error = errMsg.String
	if item.ScheduledAt, err = database.ParseTime(scheduledAt); err != nil {
		return nil, err
	}
	if item.CompletedAt, err = database.ParseNullTime(completedAt); err != nil {
		return nil, err
	}
	item.CreatedAt, _ = database.ParseTime(createdAt) //nolint:errcheck // format is controlled
	item.UpdatedAt, _ = database.ParseTime(updatedAt) //nolint:errcheck // format is controlled
	return &item, nil
}
