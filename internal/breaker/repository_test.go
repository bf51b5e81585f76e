package breaker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_CreateAndGet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rm := env.room("101")

	b := &Breaker{EntityID: "switch.room_101", Name: "Room 101", RoomID: rm.ID, AutoControlEnabled: true}
	require.NoError(t, env.repo.Create(ctx, b))
	assert.NotEmpty(t, b.ID)

	got, err := env.repo.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "switch.room_101", got.EntityID)
	assert.Equal(t, rm.ID, got.RoomID)
	assert.Equal(t, StateUnavailable, got.CurrentState)
	assert.False(t, got.IsAvailable)
	assert.True(t, got.IsActive)
	assert.True(t, got.AutoControlEnabled)

	byRoom, err := env.repo.GetActiveByRoom(ctx, rm.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, byRoom.ID)

	_, err = env.repo.Get(ctx, "brk-missing")
	assert.ErrorIs(t, err, ErrBreakerNotFound)
}

func TestRepository_UniqueConstraints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rm := env.room("102")

	require.NoError(t, env.repo.Create(ctx, &Breaker{EntityID: "switch.a", Name: "A", RoomID: rm.ID}))

	err := env.repo.Create(ctx, &Breaker{EntityID: "switch.a", Name: "dup"})
	assert.ErrorIs(t, err, ErrBreakerExists)

	err = env.repo.Create(ctx, &Breaker{EntityID: "switch.b", Name: "B", RoomID: rm.ID})
	assert.ErrorIs(t, err, ErrRoomHasBreaker)
}

func TestRepository_DeactivateFreesRoom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rm := env.room("103")

	first := &Breaker{EntityID: "switch.old", Name: "old", RoomID: rm.ID}
	require.NoError(t, env.repo.Create(ctx, first))
	require.NoError(t, env.repo.Deactivate(ctx, first.ID))

	second := &Breaker{EntityID: "switch.new", Name: "new", RoomID: rm.ID}
	require.NoError(t, env.repo.Create(ctx, second))

	active, err := env.repo.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)

	all, err := env.repo.List(ctx, Filter{IncludeInactive: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	assert.ErrorIs(t, env.repo.Deactivate(ctx, "brk-missing"), ErrBreakerNotFound)
}

func TestRepository_FailureStreak(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	b := &Breaker{EntityID: "switch.streak", Name: "streak"}
	require.NoError(t, env.repo.Create(ctx, b))
	require.NoError(t, env.repo.RecordSync(ctx, b.ID, StateOn, at))

	n, err := env.repo.RecordFailure(ctx, b.ID, "hub returned 500", false, at)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = env.repo.RecordFailure(ctx, b.ID, "timeout", true, at)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got := env.reload(b.ID)
	assert.Equal(t, StateUnavailable, got.CurrentState)
	assert.False(t, got.IsAvailable)
	assert.Equal(t, "timeout", got.LastError)

	alerting, err := env.repo.List(ctx, Filter{MinErrors: 2})
	require.NoError(t, err)
	assert.Len(t, alerting, 1)

	require.NoError(t, env.repo.RecordCommand(ctx, b.ID, StateOff, at))
	got = env.reload(b.ID)
	assert.Equal(t, StateOff, got.CurrentState)
	assert.Zero(t, got.ConsecutiveErrors)
	assert.Empty(t, got.LastError)

	_, err = env.repo.RecordFailure(ctx, "brk-missing", "x", false, at)
	assert.ErrorIs(t, err, ErrBreakerNotFound)
}

func TestActivityLog_ListSummaryPrune(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)

	b := &Breaker{EntityID: "switch.log", Name: "log"}
	require.NoError(t, env.repo.Create(ctx, b))

	entries := []*ActivityEntry{
		{BreakerID: b.ID, Action: ActionTurnOn, Origin: OriginAuto, Outcome: OutcomeSuccess, ResponseMs: 100, CreatedAt: base},
		{BreakerID: b.ID, Action: ActionTurnOff, Origin: OriginManual, UserID: "usr-1", Outcome: OutcomeFailed, Error: "boom", ResponseMs: 300, CreatedAt: base.Add(time.Hour)},
		{BreakerID: b.ID, Action: ActionStatusSync, Origin: OriginSystem, Outcome: OutcomeSuccess, ResponseMs: 200, CreatedAt: base.Add(2 * time.Hour)},
	}
	for _, e := range entries {
		require.NoError(t, env.activity.Append(ctx, e))
	}

	all, total, err := env.activity.List(ctx, ActivityFilter{BreakerID: b.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, all, 3)
	assert.Equal(t, ActionStatusSync, all[0].Action, "newest first")

	manual, total, err := env.activity.List(ctx, ActivityFilter{Origin: OriginManual})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "usr-1", manual[0].UserID)
	assert.Equal(t, "boom", manual[0].Error)

	since := base.Add(30 * time.Minute)
	_, total, err = env.activity.List(ctx, ActivityFilter{Since: &since})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	summary, err := env.activity.Summary(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Count)
	assert.Equal(t, 2, summary.Successes)
	assert.InDelta(t, 2.0/3.0, summary.SuccessRate, 0.001)
	assert.InDelta(t, 200.0, summary.AvgResponseMs, 0.001)

	pruned, err := env.activity.Prune(ctx, base.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), pruned)

	_, total, err = env.activity.List(ctx, ActivityFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}
