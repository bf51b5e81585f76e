package breaker

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-hotel/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-hotel/internal/room"
	_ "github.com/nerrad567/gray-logic-hotel/migrations"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "hotel.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	return db.DB
}

// fakeClock is a settable time source shared by queue, service and reconciler.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// hubError mimics gateway errors for classification.
type hubError struct {
	msg     string
	timeout bool
	config  bool
}

func (e *hubError) Error() string            { return e.msg }
func (e *hubError) Timeout() bool            { return e.timeout }
func (e *hubError) ConfigurationError() bool { return e.config }

var errHub500 = &hubError{msg: "hub returned 500"}

type fakeGateway struct {
	mu         sync.Mutex
	states     map[string]State
	stateErr   error
	invokeErrs []error
	invoked    []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{states: map[string]State{}}
}

func (g *fakeGateway) GetState(_ context.Context, entityID string) (State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stateErr != nil {
		return "", g.stateErr
	}
	s, ok := g.states[entityID]
	if !ok {
		return StateUnavailable, nil
	}
	return s, nil
}

func (g *fakeGateway) Invoke(_ context.Context, entityID string, action Action) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.invoked = append(g.invoked, entityID+":"+string(action))
	if len(g.invokeErrs) > 0 {
		err := g.invokeErrs[0]
		g.invokeErrs = g.invokeErrs[1:]
		return err
	}
	return nil
}

func (g *fakeGateway) failNext(errs ...error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.invokeErrs = append(g.invokeErrs, errs...)
}

func (g *fakeGateway) calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.invoked...)
}

type recordingNotifier struct {
	mu       sync.Mutex
	changes  []State
	alerts   []Breaker
	executed []ActivityEntry
}

func (n *recordingNotifier) BreakerStateChanged(_ context.Context, b Breaker, _ State) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, b.CurrentState)
}

func (n *recordingNotifier) BreakerAlert(_ context.Context, b Breaker) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, b)
}

func (n *recordingNotifier) CommandExecuted(_ context.Context, e ActivityEntry) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.executed = append(n.executed, e)
}

type testEnv struct {
	t        *testing.T
	db       *sql.DB
	clock    *fakeClock
	rooms    *room.Service
	roomRepo *room.SQLiteRepository
	repo     *SQLiteRepository
	queue    *Queue
	activity *ActivityLog
	svc      *Service
	rec      *Reconciler
	gw       *fakeGateway
	notifier *recordingNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testDB(t)

	clock := &fakeClock{t: time.Date(2026, 10, 1, 14, 0, 0, 0, time.UTC)}
	roomRepo := room.NewSQLiteRepository(db)
	rooms := room.NewService(roomRepo)

	repo := NewSQLiteRepository(db)
	queue := NewQueue(db, QueueConfig{MaxRetries: 3, RetryBaseDelay: 3 * time.Second})
	queue.now = clock.Now
	activity := NewActivityLog(db)

	svc := NewService(repo, queue, activity, rooms, ServiceConfig{Debounce: 3 * time.Second, AlertThreshold: 3})
	svc.now = clock.Now
	rooms.AddListener(svc)

	gw := newFakeGateway()
	notifier := &recordingNotifier{}
	rec := NewReconciler(ReconcilerDeps{
		Repo:           repo,
		Queue:          queue,
		Activity:       activity,
		Gateway:        gw,
		Rooms:          rooms,
		Notifier:       notifier,
		AlertThreshold: 3,
		BatchSize:      10,
	})
	rec.now = clock.Now

	return &testEnv{
		t: t, db: db, clock: clock, rooms: rooms, roomRepo: roomRepo, repo: repo, queue: queue,
		activity: activity, svc: svc, rec: rec, gw: gw, notifier: notifier,
	}
}

func (e *testEnv) room(number string) *room.Room {
	e.t.Helper()
	rm := &room.Room{Number: number, Floor: 1}
	require.NoError(e.t, e.rooms.Create(context.Background(), rm))
	return rm
}

func (e *testEnv) breaker(entityID, roomID string, auto bool) *Breaker {
	e.t.Helper()
	b, err := e.svc.Create(context.Background(), CreateRequest{
		EntityID: entityID, Name: entityID, RoomID: roomID, AutoControlEnabled: auto,
	})
	require.NoError(e.t, err)
	return b
}

func (e *testEnv) reload(id string) *Breaker {
	e.t.Helper()
	b, err := e.repo.Get(context.Background(), id)
	require.NoError(e.t, err)
	return b
}

