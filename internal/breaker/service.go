package breaker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-hotel/internal/room"
)

const (
	maxBreakerNameLength  = 100
	defaultDebounce       = 3 * time.Second
	defaultAlertThreshold = 3
)

// ServiceConfig tunes the auto trigger.
type ServiceConfig struct {
	Debounce       time.Duration
	AlertThreshold int
}

// CreateRequest registers a hub entity as a breaker.
type CreateRequest struct {
	EntityID           string
	Name               string
	RoomID             string
	AutoControlEnabled bool
}

// UpdateRequest changes administrator fields. Nil pointers are left alone;
// an empty RoomID unlinks the room.
type UpdateRequest struct {
	Name               *string
	RoomID             *string
	AutoControlEnabled *bool
}

// Service manages breakers and turns room status changes into commands.
type Service struct {
	repo     Repository
	queue    *Queue
	activity *ActivityLog
	rooms    RoomStatusLookup
	cfg      ServiceConfig
	logger   Logger
	now      func() time.Time
}

// NewService wires the breaker service.
func NewService(repo Repository, queue *Queue, activity *ActivityLog, rooms RoomStatusLookup, cfg ServiceConfig) *Service {
	if cfg.Debounce < 0 {
		cfg.Debounce = defaultDebounce
	}
	if cfg.AlertThreshold <= 0 {
		cfg.AlertThreshold = defaultAlertThreshold
	}
	return &Service{
		repo:     repo,
		queue:    queue,
		activity: activity,
		rooms:    rooms,
		cfg:      cfg,
		logger:   noopLogger{},
		now:      time.Now,
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// AlertThreshold returns the configured error streak that flags a breaker.
func (s *Service) AlertThreshold() int {
	return s.cfg.AlertThreshold
}

// Create validates and registers a breaker.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Breaker, error) {
	b := &Breaker{
		EntityID:           strings.TrimSpace(req.EntityID),
		Name:               strings.TrimSpace(req.Name),
		RoomID:             strings.TrimSpace(req.RoomID),
		AutoControlEnabled: req.AutoControlEnabled,
	}
	if err := validateEntityID(b.EntityID); err != nil {
		return nil, err
	}
	if b.Name == "" {
		b.Name = b.EntityID
	}
	if len(b.Name) > maxBreakerNameLength {
		return nil, fmt.Errorf("%w: name exceeds %d characters", ErrInvalidValue, maxBreakerNameLength)
	}
	if err := s.checkRoomFree(ctx, b.RoomID, ""); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, b); err != nil {
		return nil, err
	}
	s.logger.Info("breaker created", "breaker_id", b.ID, "entity_id", b.EntityID, "room_id", b.RoomID)
	return b, nil
}

// Get returns a breaker by ID.
func (s *Service) Get(ctx context.Context, id string) (*Breaker, error) {
	return s.repo.Get(ctx, id)
}

// List returns breakers matching filter. alertOnly keeps those at or past
// the alert threshold.
func (s *Service) List(ctx context.Context, filter Filter, alertOnly bool) ([]Breaker, error) {
	if alertOnly {
		filter.MinErrors = s.cfg.AlertThreshold
	}
	return s.repo.List(ctx, filter)
}

// Update applies administrator edits.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*Breaker, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.IsActive {
		return nil, ErrBreakerInactive
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" || len(name) > maxBreakerNameLength {
			return nil, fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidValue, maxBreakerNameLength)
		}
		b.Name = name
	}
	if req.RoomID != nil {
		roomID := strings.TrimSpace(*req.RoomID)
		if roomID != b.RoomID {
			if err := s.checkRoomFree(ctx, roomID, b.ID); err != nil {
				return nil, err
			}
		}
		b.RoomID = roomID
	}
	if req.AutoControlEnabled != nil {
		b.AutoControlEnabled = *req.AutoControlEnabled
	}

	if err := s.repo.Update(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Deactivate soft-deletes a breaker and cancels its pending commands.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	n, err := s.queue.CancelPending(ctx, id, "breaker deactivated")
	if err != nil {
		return err
	}
	s.logger.Info("breaker deactivated", "breaker_id", id, "cancelled_commands", n)
	return nil
}

// OnRoomStatusChange enqueues the command that brings the room's breaker
// to the state its new status calls for. Rooms without an active breaker,
// breakers with auto control off, and no-op transitions are ignored.
func (s *Service) OnRoomStatusChange(ctx context.Context, roomID string, from, to room.Status) error {
	if from == to {
		return nil
	}

	b, err := s.repo.GetActiveByRoom(ctx, roomID)
	if errors.Is(err, ErrBreakerNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("looking up breaker for room %s: %w", roomID, err)
	}
	if !b.AutoControlEnabled {
		s.logger.Debug("auto control disabled, ignoring room change", "breaker_id", b.ID, "room_id", roomID)
		return nil
	}

	target := TargetState(to)
	item, err := s.queue.Enqueue(ctx, EnqueueRequest{
		BreakerID: b.ID,
		Target:    target,
		Origin:    OriginAuto,
		Priority:  DefaultPriority,
		Debounce:  s.cfg.Debounce,
	})
	if err != nil {
		return err
	}

	s.logger.Info("auto command queued",
		"breaker_id", b.ID, "room_id", roomID, "from", string(from), "to", string(to),
		"target", string(target), "queue_item_id", item.ID, "scheduled_at", item.ScheduledAt)
	return nil
}

// RequestControl queues a manual command at high priority with no
// debounce. The caller normally executes it straight away with
// Reconciler.Execute.
func (s *Service) RequestControl(ctx context.Context, id string, target State, userID string) (*QueueItem, error) {
	if !target.Commandable() {
		return nil, fmt.Errorf("%w: target %q", ErrInvalidValue, target)
	}
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.IsActive {
		return nil, ErrBreakerInactive
	}
	return s.queue.Enqueue(ctx, EnqueueRequest{
		BreakerID: b.ID,
		Target:    target,
		Origin:    OriginManual,
		UserID:    userID,
		Priority:  ManualPriority,
	})
}

// Queue exposes the command queue for listings.
func (s *Service) Queue() *Queue { return s.queue }

// Activity exposes the activity log for listings and export.
func (s *Service) Activity() *ActivityLog { return s.activity }

// checkRoomFree ensures roomID exists and has no active breaker other than
// exceptID. An empty roomID is always free.
func (s *Service) checkRoomFree(ctx context.Context, roomID, exceptID string) error {
	if roomID == "" {
		return nil
	}
	if s.rooms != nil {
		if _, err := s.rooms.Status(ctx, roomID); err != nil {
			return err
		}
	}
	existing, err := s.repo.GetActiveByRoom(ctx, roomID)
	switch {
	case errors.Is(err, ErrBreakerNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != exceptID:
		return ErrRoomHasBreaker
	}
	return nil
}

// validateEntityID requires the hub's "domain.object" form.
func validateEntityID(id string) error {
	domain, object, ok := strings.Cut(id, ".")
	if !ok || domain == "" || object == "" || strings.ContainsAny(id, " /") {
		return fmt.Errorf("%w: entity_id %q must look like domain.object", ErrInvalidValue, id)
	}
	return nil
}
