package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-hotel/internal/room"
)

func TestReconciler_CheckInScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rm := env.room("101")
	b := env.breaker("switch.room_101", rm.ID, true)

	_, err := env.rooms.SetStatus(ctx, rm.ID, room.StatusOccupied, "test")
	require.NoError(t, err)

	// Nothing runs inside the debounce window.
	report, err := env.rec.DrainQueue(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Claimed)

	env.clock.Advance(3 * time.Second)
	report, err = env.rec.DrainQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, DrainReport{Claimed: 1, Succeeded: 1}, report)
	assert.Equal(t, []string{"switch.room_101:turn_on"}, env.gw.calls())

	entries, total, err := env.activity.List(ctx, ActivityFilter{BreakerID: b.ID})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, ActionTurnOn, entries[0].Action)
	assert.Equal(t, OriginAuto, entries[0].Origin)
	assert.Equal(t, OutcomeSuccess, entries[0].Outcome)
	assert.Equal(t, room.StatusOccupied, entries[0].RoomStatusBefore)
	assert.Equal(t, room.StatusOccupied, entries[0].RoomStatusAfter)
	assert.NotEmpty(t, entries[0].QueueItemID)

	got := env.reload(b.ID)
	assert.Equal(t, StateOn, got.CurrentState)
	assert.True(t, got.IsAvailable)
	assert.Zero(t, got.ConsecutiveErrors)

	item, err := env.queue.Get(ctx, entries[0].QueueItemID)
	require.NoError(t, err)
	assert.Equal(t, QueueCompleted, item.Status)

	assert.Equal(t, []State{StateOn}, env.notifier.changes)
	assert.Len(t, env.notifier.executed, 1)
}

func TestReconciler_HubFailsThreeTimes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.breaker("switch.room_101", "", true)
	env.gw.failNext(errHub500, errHub500, errHub500)

	item, err := env.queue.Enqueue(ctx, EnqueueRequest{BreakerID: b.ID, Target: StateOn, Origin: OriginAuto})
	require.NoError(t, err)

	for drain := 1; drain <= 3; drain++ {
		report, err := env.rec.DrainQueue(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Claimed, "drain %d", drain)
		assert.Equal(t, 1, report.Failed, "drain %d", drain)
		env.clock.Advance(time.Minute)
	}

	// Nothing left to claim.
	report, err := env.rec.DrainQueue(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Claimed)

	final, err := env.queue.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, QueueFailed, final.Status)
	assert.Equal(t, 3, final.RetryCount)

	n, err := env.activity.CountForQueueItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "one activity row per attempt")

	got := env.reload(b.ID)
	assert.Equal(t, 3, got.ConsecutiveErrors)
	assert.Equal(t, "hub returned 500", got.LastError)
	assert.True(t, got.InAlert(3))
	require.Len(t, env.notifier.alerts, 1, "alert fires once on crossing")
	assert.Equal(t, b.ID, env.notifier.alerts[0].ID)

	stats, err := env.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Breakers.InAlert)
	assert.Equal(t, 1, stats.Queue.Failed)
}

func TestReconciler_EveryExecutionWritesOneActivityRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	var ids []string
	for _, entity := range []string{"switch.a", "switch.b", "switch.c"} {
		b := env.breaker(entity, "", true)
		item, err := env.queue.Enqueue(ctx, EnqueueRequest{BreakerID: b.ID, Target: StateOff, Origin: OriginAuto})
		require.NoError(t, err)
		ids = append(ids, item.ID)
	}
	env.gw.failNext(nil, &hubError{msg: "deadline", timeout: true})

	_, err := env.rec.DrainQueue(ctx)
	require.NoError(t, err)

	_, total, err := env.activity.List(ctx, ActivityFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	for _, id := range ids {
		n, err := env.activity.CountForQueueItem(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}

	timeouts, _, err := env.activity.List(ctx, ActivityFilter{Outcome: OutcomeTimeout})
	require.NoError(t, err)
	require.Len(t, timeouts, 1)
	assert.Equal(t, "deadline", timeouts[0].Error)
}

func TestReconciler_ExecuteManual(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.breaker("light.room_101", "", false)

	item, err := env.svc.RequestControl(ctx, b.ID, StateOn, "usr-7")
	require.NoError(t, err)

	res, err := env.rec.Execute(ctx, item.ID)
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Equal(t, QueueCompleted, res.Item.Status)
	assert.Equal(t, OriginManual, res.Activity.Origin)
	assert.Equal(t, "usr-7", res.Activity.UserID)
	assert.Equal(t, []string{"light.room_101:turn_on"}, env.gw.calls())

	// Already executed.
	_, err = env.rec.Execute(ctx, item.ID)
	assert.ErrorIs(t, err, ErrNotClaimable)
}

func TestReconciler_ExecuteReportsHubError(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.breaker("switch.room_101", "", false)
	env.gw.failNext(errHub500)

	item, err := env.svc.RequestControl(ctx, b.ID, StateOff, "usr-7")
	require.NoError(t, err)

	res, err := env.rec.Execute(ctx, item.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, errHub500)
	assert.Equal(t, OutcomeFailed, res.Activity.Outcome)
	assert.Equal(t, QueuePending, res.Item.Status, "manual command retries like any other")
	assert.Equal(t, 1, res.Item.RetryCount)
}

func TestReconciler_ExecuteDeactivatedBreakerCancels(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.breaker("switch.room_101", "", true)

	item, err := env.queue.Enqueue(ctx, EnqueueRequest{BreakerID: b.ID, Target: StateOn, Origin: OriginAuto})
	require.NoError(t, err)
	require.NoError(t, env.repo.Deactivate(ctx, b.ID))

	_, err = env.rec.Execute(ctx, item.ID)
	assert.ErrorIs(t, err, ErrBreakerInactive)
	assert.Empty(t, env.gw.calls())

	got, err := env.queue.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, QueueCancelled, got.Status)
}

func TestReconciler_SyncStates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rm := env.room("101")
	on := env.breaker("switch.on", rm.ID, true)
	gone := env.breaker("switch.gone", "", true)
	env.gw.states["switch.on"] = StateOn

	report, err := env.rec.SyncStates(ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncReport{Checked: 2}, report)

	got := env.reload(on.ID)
	assert.Equal(t, StateOn, got.CurrentState)
	assert.True(t, got.IsAvailable)
	require.NotNil(t, got.LastSyncAt)
	assert.Equal(t, env.clock.Now(), *got.LastSyncAt)

	// Missing on the hub: unavailable, but not an error.
	missing := env.reload(gone.ID)
	assert.Equal(t, StateUnavailable, missing.CurrentState)
	assert.False(t, missing.IsAvailable)
	assert.Zero(t, missing.ConsecutiveErrors)

	entries, total, err := env.activity.List(ctx, ActivityFilter{Action: ActionStatusSync})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, e := range entries {
		assert.Equal(t, OriginSystem, e.Origin)
		assert.Equal(t, OutcomeSuccess, e.Outcome)
	}
}

func TestReconciler_SyncFailureMarksUnavailable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.breaker("switch.room_101", "", true)
	env.gw.states["switch.room_101"] = StateOn

	_, err := env.rec.SyncStates(ctx)
	require.NoError(t, err)
	require.Equal(t, StateOn, env.reload(b.ID).CurrentState)

	env.gw.stateErr = errors.New("connection refused")
	for i := 0; i < 4; i++ {
		report, err := env.rec.SyncStates(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Failed)
	}

	got := env.reload(b.ID)
	assert.Equal(t, StateUnavailable, got.CurrentState)
	assert.False(t, got.IsAvailable)
	assert.Equal(t, 4, got.ConsecutiveErrors)
	assert.Equal(t, "connection refused", got.LastError)
	assert.Len(t, env.notifier.alerts, 1)

	failed, _, err := env.activity.List(ctx, ActivityFilter{Outcome: OutcomeFailed})
	require.NoError(t, err)
	assert.Len(t, failed, 4)

	// Recovery resets the streak.
	env.gw.stateErr = nil
	updated, err := env.rec.SyncOne(ctx, b.ID)
	require.NoError(t, err)
	assert.Zero(t, updated.ConsecutiveErrors)
	assert.Empty(t, updated.LastError)
	assert.Equal(t, StateOn, updated.CurrentState)
}

func TestReconciler_SyncStopsOnConfigurationError(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.breaker("switch.room_101", "", true)
	env.breaker("switch.room_102", "", true)
	env.gw.stateErr = &hubError{msg: "hub not configured", config: true}

	report, err := env.rec.SyncStates(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, report.Checked)

	assert.Zero(t, env.reload(b.ID).ConsecutiveErrors, "no breaker is blamed")
	entries, total, err := env.activity.List(ctx, ActivityFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, total, "the breaker that hit the error still gets its sync entry")
	assert.Equal(t, b.ID, entries[0].BreakerID)
	assert.Equal(t, ActionStatusSync, entries[0].Action)
	assert.Equal(t, OutcomeFailed, entries[0].Outcome)
}

type stubLease struct {
	acquired bool
	released int
}

func (l *stubLease) TryAcquire(context.Context) (func(context.Context) error, bool, error) {
	if !l.acquired {
		return nil, false, nil
	}
	return func(context.Context) error { l.released++; return nil }, true, nil
}

func TestReconciler_DrainRespectsLease(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.breaker("switch.room_101", "", true)
	_, err := env.queue.Enqueue(ctx, EnqueueRequest{BreakerID: b.ID, Target: StateOn, Origin: OriginAuto})
	require.NoError(t, err)

	lease := &stubLease{}
	env.rec.lease = lease

	report, err := env.rec.DrainQueue(ctx)
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Empty(t, env.gw.calls())

	lease.acquired = true
	report, err = env.rec.DrainQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, lease.released)
}

func TestReconciler_DrainSkipsWhileRunning(t *testing.T) {
	env := newTestEnv(t)
	env.rec.drainMu.Lock()
	defer env.rec.drainMu.Unlock()

	report, err := env.rec.DrainQueue(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Skipped)
}

func TestService_StatsAndPrune(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.breaker("switch.a", "", true)
	env.breaker("switch.b", "", false)
	c := env.breaker("switch.c", "", true)
	require.NoError(t, env.svc.Deactivate(ctx, c.ID))

	env.gw.states["switch.a"] = StateOn
	env.gw.states["switch.b"] = StateOff
	_, err := env.rec.SyncStates(ctx)
	require.NoError(t, err)

	_, err = env.queue.Enqueue(ctx, EnqueueRequest{BreakerID: a.ID, Target: StateOff, Origin: OriginAuto, Debounce: time.Hour})
	require.NoError(t, err)

	stats, err := env.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, BreakerCounts{Total: 3, Active: 2, AutoEnabled: 1, On: 1, Off: 1}, stats.Breakers)
	assert.Equal(t, QueueCounts{Pending: 1}, stats.Queue)
	assert.Equal(t, 2, stats.Activity24h.Count)
	assert.InDelta(t, 1.0, stats.Activity24h.SuccessRate, 0.0001)

	// Retention: nothing is old enough yet.
	n, err := env.svc.PruneActivity(ctx, 30)
	require.NoError(t, err)
	assert.Zero(t, n)

	env.clock.Advance(31 * 24 * time.Hour)
	n, err = env.svc.PruneActivity(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = env.svc.PruneActivity(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n, "zero retention disables pruning")
}
