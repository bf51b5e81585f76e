package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-hotel/internal/room"
)

const (
	defaultDrainBatch = 20
	// defaultStaleAfter must exceed the longest hub call including retries.
	defaultStaleAfter = 5 * time.Minute
)

// ReconcilerDeps holds the reconciler's collaborators. Notifier, Metrics,
// Lease, Rooms and Logger are optional.
type ReconcilerDeps struct {
	Repo     Repository
	Queue    *Queue
	Activity *ActivityLog
	Gateway  Gateway
	Rooms    RoomStatusLookup
	Notifier Notifier
	Metrics  Metrics
	Lease    Lease
	Logger   Logger

	BatchSize      int
	AlertThreshold int
	// StaleAfter is how long an item may sit in processing before a drain
	// requeues it.
	StaleAfter time.Duration
}

// SyncReport summarises one SyncStates pass.
type SyncReport struct {
	Checked int  `json:"checked"`
	Failed  int  `json:"failed"`
	Skipped bool `json:"skipped"`
}

// DrainReport summarises one DrainQueue pass.
type DrainReport struct {
	Requeued  int  `json:"requeued"`
	Claimed   int  `json:"claimed"`
	Succeeded int  `json:"succeeded"`
	Failed    int  `json:"failed"`
	Skipped   bool `json:"skipped"`
}

// ExecutionResult is what happened to one queue item.
type ExecutionResult struct {
	Item     QueueItem     `json:"item"`
	Activity ActivityEntry `json:"activity"`
	// Err is the hub error, nil on success.
	Err error `json:"-"`
}

// Reconciler polls live breaker state and executes queued commands.
//
// Each of SyncStates and DrainQueue skips when a previous call of the same
// kind is still running. Items within a batch run one at a time.
type Reconciler struct {
	repo      Repository
	queue     *Queue
	activity  *ActivityLog
	gateway   Gateway
	rooms     RoomStatusLookup
	notifier  Notifier
	metrics   Metrics
	lease     Lease
	logger    Logger
	batch     int
	threshold int
	stale     time.Duration
	now       func() time.Time

	syncMu  sync.Mutex
	drainMu sync.Mutex
}

// NewReconciler creates a Reconciler from deps.
func NewReconciler(deps ReconcilerDeps) *Reconciler {
	r := &Reconciler{
		repo:      deps.Repo,
		queue:     deps.Queue,
		activity:  deps.Activity,
		gateway:   deps.Gateway,
		rooms:     deps.Rooms,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
		lease:     deps.Lease,
		logger:    deps.Logger,
		batch:     deps.BatchSize,
		threshold: deps.AlertThreshold,
		stale:     deps.StaleAfter,
		now:       time.Now,
	}
	if r.notifier == nil {
		r.notifier = noopNotifier{}
	}
	if r.metrics == nil {
		r.metrics = noopMetrics{}
	}
	if r.logger == nil {
		r.logger = noopLogger{}
	}
	if r.batch <= 0 {
		r.batch = defaultDrainBatch
	}
	if r.threshold <= 0 {
		r.threshold = defaultAlertThreshold
	}
	if r.stale <= 0 {
		r.stale = defaultStaleAfter
	}
	return r
}

// SyncStates polls every active breaker. A failing breaker is recorded and
// the batch continues. A hub configuration error stops the batch: the
// breaker that hit it gets its activity entry, but no breaker's error
// streak is touched, since no breaker is at fault.
func (r *Reconciler) SyncStates(ctx context.Context) (SyncReport, error) {
	if !r.syncMu.TryLock() {
		r.logger.Debug("state sync already running, skipping")
		return SyncReport{Skipped: true}, nil
	}
	defer r.syncMu.Unlock()

	breakers, err := r.repo.List(ctx, Filter{})
	if err != nil {
		return SyncReport{}, fmt.Errorf("listing breakers: %w", err)
	}

	var report SyncReport
	for i := range breakers {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		err := r.syncBreaker(ctx, &breakers[i])
		report.Checked++
		if err == nil {
			continue
		}
		if isConfigurationError(err) {
			return report, err
		}
		report.Failed++
		r.logger.Warn("breaker sync failed", "breaker_id", breakers[i].ID, "entity_id", breakers[i].EntityID, "error", err)
	}

	r.logger.Debug("state sync finished", "checked", report.Checked, "failed", report.Failed)
	return report, nil
}

// SyncOne polls a single breaker and returns its updated record. The hub
// error, if any, is returned alongside.
func (r *Reconciler) SyncOne(ctx context.Context, id string) (*Breaker, error) {
	b, err := r.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.IsActive {
		return nil, ErrBreakerInactive
	}

	syncErr := r.syncBreaker(ctx, b)
	updated, err := r.repo.Get(context.WithoutCancel(ctx), id)
	if err != nil {
		return nil, err
	}
	return updated, syncErr
}

func (r *Reconciler) syncBreaker(ctx context.Context, b *Breaker) error {
	start := r.now()
	state, callErr := r.gateway.GetState(ctx, b.EntityID)
	elapsed := r.now().Sub(start)

	// Bookkeeping must survive shutdown cancelling ctx mid-call.
	bg := context.WithoutCancel(ctx)
	status := r.roomStatus(bg, b.RoomID)
	now := r.now()

	entry := &ActivityEntry{
		BreakerID:        b.ID,
		Action:           ActionStatusSync,
		Origin:           OriginSystem,
		RoomStatusBefore: status,
		RoomStatusAfter:  status,
		Outcome:          outcomeFor(callErr),
		ResponseMs:       elapsed.Milliseconds(),
		CreatedAt:        now,
	}
	if callErr != nil {
		entry.Error = callErr.Error()
	}
	if err := r.activity.Append(bg, entry); err != nil {
		r.logger.Error("writing sync activity failed", "breaker_id", b.ID, "error", err)
	}
	r.metrics.RecordAction(b.ID, ActionStatusSync, entry.Outcome, entry.ResponseMs)

	if callErr != nil && isConfigurationError(callErr) {
		return callErr
	}

	if callErr == nil {
		if err := r.repo.RecordSync(bg, b.ID, state, now); err != nil {
			return fmt.Errorf("recording sync: %w", err)
		}
		r.metrics.RecordState(b.ID, state, state != StateUnavailable)
		r.afterChange(bg, b, state, 0)
		return nil
	}

	count, err := r.repo.RecordFailure(bg, b.ID, callErr.Error(), true, now)
	if err != nil {
		r.logger.Error("recording sync failure failed", "breaker_id", b.ID, "error", err)
		return callErr
	}
	r.metrics.RecordState(b.ID, StateUnavailable, false)
	r.afterChange(bg, b, StateUnavailable, count)
	return callErr
}

// DrainQueue claims due commands and executes them in order.
func (r *Reconciler) DrainQueue(ctx context.Context) (DrainReport, error) {
	if !r.drainMu.TryLock() {
		r.logger.Debug("queue drain already running, skipping")
		return DrainReport{Skipped: true}, nil
	}
	defer r.drainMu.Unlock()

	if r.lease != nil {
		release, ok, err := r.lease.TryAcquire(ctx)
		if err != nil {
			return DrainReport{}, fmt.Errorf("acquiring drain lease: %w", err)
		}
		if !ok {
			r.logger.Debug("drain lease held elsewhere, skipping")
			return DrainReport{Skipped: true}, nil
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				r.logger.Warn("releasing drain lease failed", "error", err)
			}
		}()
	}

	var report DrainReport
	requeued, err := r.queue.RequeueStale(ctx, r.stale)
	if err != nil {
		r.logger.Error("requeueing stale items failed", "error", err)
	} else if requeued > 0 {
		report.Requeued = int(requeued)
		r.logger.Warn("requeued stalled queue items", "count", requeued, "stale_after", r.stale.String())
	}

	// Items claimed before a claim error are still run; left alone they
	// would sit in processing until requeued.
	items, claimErr := r.queue.ClaimDue(ctx, r.now(), r.batch)
	if claimErr != nil {
		claimErr = fmt.Errorf("claiming due items: %w", claimErr)
		if len(items) == 0 {
			return report, claimErr
		}
		r.logger.Error("claim interrupted, running items already claimed", "claimed", len(items), "error", claimErr)
	}

	report.Claimed = len(items)
	for i := range items {
		res, err := r.execute(ctx, items[i])
		if err != nil {
			report.Failed++
			r.logger.Error("executing queue item failed", "queue_item_id", items[i].ID, "error", err)
			continue
		}
		if res.Err != nil {
			report.Failed++
			continue
		}
		report.Succeeded++
	}

	if report.Claimed > 0 {
		r.logger.Info("queue drained", "claimed", report.Claimed, "succeeded", report.Succeeded, "failed", report.Failed)
	}
	return report, claimErr
}

// Execute claims one pending item and runs it now, regardless of schedule.
func (r *Reconciler) Execute(ctx context.Context, itemID string) (*ExecutionResult, error) {
	item, err := r.queue.Claim(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return r.execute(ctx, *item)
}

// execute runs a claimed item and writes exactly one activity entry for it,
// unless the breaker is gone or deactivated, in which case the item is
// cancelled without touching the hub. Once the hub has been called the
// queue transition and breaker bookkeeping always run. A failed activity
// write is only logged; other bookkeeping errors are joined and returned
// after every step has been attempted.
func (r *Reconciler) execute(ctx context.Context, item QueueItem) (*ExecutionResult, error) {
	bg := context.WithoutCancel(ctx)

	b, err := r.repo.Get(bg, item.BreakerID)
	if err != nil || !b.IsActive {
		reason := "breaker deactivated"
		if err != nil {
			reason = err.Error()
		}
		if cerr := r.queue.Cancel(bg, item.ID, reason); cerr != nil {
			return nil, errors.Join(err, cerr)
		}
		if err == nil {
			err = ErrBreakerInactive
		}
		return nil, err
	}

	action := ActionFor(item.Target)
	before := r.roomStatus(bg, b.RoomID)

	start := r.now()
	callErr := r.gateway.Invoke(ctx, b.EntityID, action)
	elapsed := r.now().Sub(start)

	after := r.roomStatus(bg, b.RoomID)
	now := r.now()

	entry := ActivityEntry{
		BreakerID:        b.ID,
		QueueItemID:      item.ID,
		Action:           action,
		Origin:           item.Origin,
		UserID:           item.UserID,
		RoomStatusBefore: before,
		RoomStatusAfter:  after,
		Outcome:          outcomeFor(callErr),
		ResponseMs:       elapsed.Milliseconds(),
		CreatedAt:        now,
	}
	if callErr != nil {
		entry.Error = callErr.Error()
	}
	// The hub has already acted, so a failed activity write is logged and
	// must not stop the queue transition or the breaker bookkeeping below.
	if err := r.activity.Append(bg, &entry); err != nil {
		r.logger.Error("writing command activity failed",
			"breaker_id", b.ID, "queue_item_id", item.ID, "outcome", string(entry.Outcome), "error", err)
	}
	r.metrics.RecordAction(b.ID, action, entry.Outcome, entry.ResponseMs)

	result := &ExecutionResult{Activity: entry, Err: callErr}

	var errs []error
	switch {
	case callErr == nil:
		if err := r.queue.Complete(bg, item.ID); err != nil {
			errs = append(errs, err)
		}
		if err := r.repo.RecordCommand(bg, b.ID, item.Target, now); err != nil {
			errs = append(errs, err)
		} else {
			r.metrics.RecordState(b.ID, item.Target, true)
			r.afterChange(bg, b, item.Target, 0)
		}
		r.logger.Info("breaker command executed",
			"breaker_id", b.ID, "action", string(action), "origin", string(item.Origin), "response_ms", entry.ResponseMs)

	case isConfigurationError(callErr):
		// Not this breaker's fault: end the item, leave the error streak alone.
		if _, err := r.queue.FailTerminal(bg, item.ID, callErr); err != nil {
			errs = append(errs, err)
		}
		r.logger.Warn("breaker command abandoned, hub not usable",
			"breaker_id", b.ID, "action", string(action), "error", callErr)

	default:
		if _, err := r.queue.Fail(bg, item.ID, callErr); err != nil {
			errs = append(errs, err)
		}
		count, err := r.repo.RecordFailure(bg, b.ID, callErr.Error(), false, now)
		if err != nil {
			errs = append(errs, err)
		} else {
			r.afterChange(bg, b, b.CurrentState, count)
		}
		r.logger.Warn("breaker command failed",
			"breaker_id", b.ID, "action", string(action), "outcome", string(entry.Outcome), "error", callErr)
	}

	updated, err := r.queue.Get(bg, item.ID)
	if err != nil {
		errs = append(errs, err)
	} else {
		result.Item = *updated
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	r.notifier.CommandExecuted(bg, entry)
	return result, nil
}

// afterChange emits state and alert notifications. errorCount is the new
// streak length after a failure, zero after a success.
func (r *Reconciler) afterChange(ctx context.Context, before *Breaker, state State, errorCount int) {
	if state == before.CurrentState && errorCount != r.threshold {
		return
	}

	current, err := r.repo.Get(ctx, before.ID)
	if err != nil {
		r.logger.Warn("reloading breaker for notification failed", "breaker_id", before.ID, "error", err)
		return
	}

	if state != before.CurrentState {
		r.notifier.BreakerStateChanged(ctx, *current, before.CurrentState)
	}
	if errorCount == r.threshold {
		r.logger.Warn("breaker in alert",
			"breaker_id", current.ID, "consecutive_errors", current.ConsecutiveErrors, "last_error", current.LastError)
		r.notifier.BreakerAlert(ctx, *current)
	}
}

func (r *Reconciler) roomStatus(ctx context.Context, roomID string) room.Status {
	if roomID == "" || r.rooms == nil {
		return ""
	}
	status, err := r.rooms.Status(ctx, roomID)
	if err != nil {
		r.logger.Warn("reading room status failed", "room_id", roomID, "error", err)
		return ""
	}
	return status
}
