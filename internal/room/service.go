package room

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const maxNumberLength = 16

// Logger defines the logging interface used by the Service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// StatusListener is told about every effective status change, after it
// has been persisted.
type StatusListener interface {
	OnRoomStatusChange(ctx context.Context, roomID string, from, to Status) error
}

// ListenerFunc adapts a function to StatusListener.
type ListenerFunc func(ctx context.Context, roomID string, from, to Status) error

// OnRoomStatusChange calls f.
func (f ListenerFunc) OnRoomStatusChange(ctx context.Context, roomID string, from, to Status) error {
	return f(ctx, roomID, from, to)
}

// Service owns room status transitions.
type Service struct {
	repo   Repository
	logger Logger
	now    func() time.Time

	mu        sync.RWMutex
	listeners []StatusListener
}

// NewService creates a room service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{
		repo:   repo,
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// AddListener registers l. Listeners run in registration order.
func (s *Service) AddListener(l StatusListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Create validates and stores a new room.
func (s *Service) Create(ctx context.Context, rm *Room) error {
	rm.Number = strings.TrimSpace(rm.Number)
	if rm.Number == "" || len(rm.Number) > maxNumberLength {
		return fmt.Errorf("%w: %q", ErrInvalidNumber, rm.Number)
	}
	if rm.Status != "" && !rm.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, rm.Status)
	}
	return s.repo.Create(ctx, rm)
}

// Get returns a room by ID.
func (s *Service) Get(ctx context.Context, id string) (*Room, error) {
	return s.repo.Get(ctx, id)
}

// List returns rooms matching filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]Room, error) {
	return s.repo.List(ctx, filter)
}

// Status returns the current status of a room. It satisfies the breaker
// package's room lookup.
func (s *Service) Status(ctx context.Context, id string) (Status, error) {
	rm, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return rm.Status, nil
}

// SetStatus moves a room to status and notifies listeners.
//
// Setting the status a room already has is a no-op: nothing is written and
// no listener fires. Listener errors are logged; the status change itself
// has already been committed.
func (s *Service) SetStatus(ctx context.Context, id string, status Status, source string) (*Room, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	old, err := s.repo.UpdateStatus(ctx, id, status, s.now())
	if err != nil {
		return nil, err
	}

	if old != status {
		s.logger.Info("room status changed",
			"room_id", id, "from", string(old), "to", string(status), "source", source)
		s.notify(ctx, id, old, status)
	}

	return s.repo.Get(ctx, id)
}

// SetCheckoutDue records when the current guest is due to leave.
func (s *Service) SetCheckoutDue(ctx context.Context, id string, due *time.Time) error {
	return s.repo.SetCheckoutDue(ctx, id, due)
}

// MarkOvertime moves every occupied room whose checkout has passed to
// occupied_overtime. It returns how many rooms changed.
func (s *Service) MarkOvertime(ctx context.Context, now time.Time) (int, error) {
	overdue, err := s.repo.ListOverdue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("listing overdue rooms: %w", err)
	}

	changed := 0
	for _, rm := range overdue {
		if _, err := s.SetStatus(ctx, rm.ID, StatusOccupiedOvertime, "overtime"); err != nil {
			s.logger.Warn("marking room overtime failed", "room_id", rm.ID, "error", err)
			continue
		}
		changed++
	}
	return changed, nil
}

func (s *Service) notify(ctx context.Context, id string, old, status Status) {
	s.mu.RLock()
	listeners := make([]StatusListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	for _, l := range listeners {
		if err := l.OnRoomStatusChange(ctx, id, old, status); err != nil {
			s.logger.Warn("room status listener failed", "room_id", id, "error", err)
		}
	}
}
