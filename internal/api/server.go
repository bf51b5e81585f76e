package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-hotel/internal/audit"
	"github.com/nerrad567/gray-logic-hotel/internal/auth"
	"github.com/nerrad567/gray-logic-hotel/internal/breaker"
	"github.com/nerrad567/gray-logic-hotel/internal/gateway"
	"github.com/nerrad567/gray-logic-hotel/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hotel/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-hotel/internal/room"
	"github.com/nerrad567/gray-logic-hotel/internal/scheduler"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HubClient is the subset of gateway.Client used by the hub settings endpoints.
type HubClient interface {
	TestConnection(ctx context.Context) (*gateway.ConnectionInfo, error)
	ListEntities(ctx context.Context, domain string) ([]gateway.EntityState, error)
	Reset()
}

// HubSettings persists the hub URL and token. Implemented by gateway.Store.
type HubSettings interface {
	Active(ctx context.Context) (*gateway.HubConfig, error)
	Save(ctx context.Context, baseURL, token, userID string) (*gateway.HubConfig, error)
}

// JobReporter exposes scheduled job status. Implemented by scheduler.Scheduler.
type JobReporter interface {
	Status() []scheduler.JobStatus
}

// HealthChecker is implemented by the database and optional infrastructure.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Auth     *auth.Service
	Users    auth.UserRepository
	Rooms    *room.Service
	Breakers *breaker.Service
	// Reconciler executes manual commands and on-demand syncs.
	Reconciler  *breaker.Reconciler
	HubClient   HubClient
	HubSettings HubSettings
	Audit       audit.Repository
	// Hub is shared with the notification dispatcher; the server creates
	// its own when nil.
	Hub *Hub
	// Jobs, when set, adds scheduler status to GET /metrics.
	Jobs JobReporter
	// Health lists components reported by GET /health, keyed by name.
	Health  map[string]HealthChecker
	Version string
}

// Server is the HTTP API server for Hotel Core.
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	logger      *logging.Logger
	auth        *auth.Service
	users       auth.UserRepository
	rooms       *room.Service
	breakers    *breaker.Service
	reconciler  *breaker.Reconciler
	hubClient   HubClient
	hubSettings HubSettings
	auditRepo   audit.Repository
	auditCh     chan *audit.AuditLog
	auditDone   chan struct{}
	jobs        JobReporter
	health      map[string]HealthChecker
	version     string
	startTime   time.Time

	hub         *Hub
	externalHub bool
	tickets     *ticketStore

	server *http.Server
	cancel context.CancelFunc
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if deps.Auth == nil {
		return nil, errors.New("auth service is required")
	}
	if deps.Rooms == nil || deps.Breakers == nil || deps.Reconciler == nil {
		return nil, errors.New("room and breaker services are required")
	}

	s := &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		logger:      deps.Logger,
		auth:        deps.Auth,
		users:       deps.Users,
		rooms:       deps.Rooms,
		breakers:    deps.Breakers,
		reconciler:  deps.Reconciler,
		hubClient:   deps.HubClient,
		hubSettings: deps.HubSettings,
		auditRepo:   deps.Audit,
		jobs:        deps.Jobs,
		health:      deps.Health,
		version:     deps.Version,
		startTime:   time.Now(),
		tickets:     newTicketStore(ticketTTL),
	}

	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	} else {
		s.hub = NewHub(deps.WS, deps.Logger)
	}
	if s.auditRepo != nil {
		s.auditCh = make(chan *audit.AuditLog, auditChanSize)
	}

	return s, nil
}

// Hub returns the WebSocket hub, for wiring notification fan-out.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the router without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}
	go s.tickets.cleanLoop(srvCtx)
	if s.auditCh != nil {
		s.auditDone = make(chan struct{})
		go func() {
			defer close(s.auditDone)
			s.drainAuditLog(srvCtx)
		}()
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS", "address", s.server.Addr, "cert", s.cfg.TLS.CertFile)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting up to 10 seconds for
// in-flight requests. Queued audit entries are flushed before it returns.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	err := s.server.Shutdown(ctx)

	if s.cancel != nil {
		s.cancel()
	}
	if s.auditDone != nil {
		<-s.auditDone
	}

	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}
	if s.server == nil {
		return errors.New("api server not started")
	}
	return nil
}
