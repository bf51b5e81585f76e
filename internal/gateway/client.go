package gateway

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/nerrad567/gray-logic-hotel/internal/breaker"
)

const (
	defaultStateTimeout   = 5 * time.Second
	defaultServiceTimeout = 10 * time.Second
	defaultMaxAttempts    = 3
	defaultRetryBackoff   = time.Second

	// maxErrorBody caps how much of a hub error response ends up in logs
	// and last_error.
	maxErrorBody = 200
)

// Options tune a Client. Zero values take defaults.
type Options struct {
	StateTimeout   time.Duration
	ServiceTimeout time.Duration
	MaxAttempts    int
	RetryBackoff   time.Duration // multiplied by the attempt number
	RateLimit      float64       // requests per second, <= 0 for unlimited
	RateBurst      int
	InsecureTLS    bool
}

// Logger is the logging interface used by the client.
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

// EntityState is the hub's representation of one entity.
type EntityState struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	LastChanged string         `json:"last_changed,omitempty"`
}

// FriendlyName returns the hub's display name for the entity, if any.
func (e EntityState) FriendlyName() string {
	name, _ := e.Attributes["friendly_name"].(string) //nolint:errcheck // absent is fine
	return name
}

// ConnectionInfo is the result of TestConnection.
type ConnectionInfo struct {
	BaseURL     string `json:"base_url"`
	Message     string `json:"message"`
	Version     string `json:"version,omitempty"`
	EntityCount int    `json:"entity_count"`
	ResponseMs  int64  `json:"response_ms"`
}

// Client calls the hub REST API. It implements breaker.Gateway.
type Client struct {
	source  CredentialSource
	http    *resty.Client
	limiter *rate.Limiter
	opts    Options
	logger  Logger
	wait    func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	creds *Credentials
}

// NewClient creates a Client reading credentials from source.
func NewClient(source CredentialSource, opts Options) *Client {
	if opts.StateTimeout <= 0 {
		opts.StateTimeout = defaultStateTimeout
	}
	if opts.ServiceTimeout <= 0 {
		opts.ServiceTimeout = defaultServiceTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaultRetryBackoff
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.RateBurst
	if burst < 1 {
		burst = 1
	}

	httpClient := resty.New().
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if opts.InsecureTLS {
		httpClient.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec // opt-in for self-signed hubs on the LAN
	}

	return &Client{
		source:  source,
		http:    httpClient,
		limiter: rate.NewLimiter(limit, burst),
		opts:    opts,
		logger:  noopLogger{},
		wait:    sleepCtx,
	}
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// Reset drops the cached credentials. Call it after the hub configuration
// changes.
func (c *Client) Reset() {
	c.mu.Lock()
	c.creds = nil
	c.mu.Unlock()
}

func (c *Client) credentials(ctx context.Context) (Credentials, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.creds != nil {
		return *c.creds, nil
	}
	creds, err := c.source.Credentials(ctx)
	if err != nil {
		return Credentials{}, err
	}
	c.creds = &creds
	return creds, nil
}

// GetState reads one entity. A 404 means the hub does not know the entity
// and yields StateUnavailable with no error.
func (c *Client) GetState(ctx context.Context, entityID string) (breaker.State, error) {
	var entity EntityState
	status, err := c.call(ctx, http.MethodGet, "/api/states/"+url.PathEscape(entityID), nil, &entity, c.opts.StateTimeout)
	if status == http.StatusNotFound {
		return breaker.StateUnavailable, nil
	}
	if err != nil {
		return "", &Error{Op: "get_state", EntityID: entityID, StatusCode: status, Attempts: 1, Err: err}
	}
	return mapState(entity.State), nil
}

// Invoke calls turn_on or turn_off on the entity's domain, retrying
// transient failures.
func (c *Client) Invoke(ctx context.Context, entityID string, action breaker.Action) error {
	if action != breaker.ActionTurnOn && action != breaker.ActionTurnOff {
		return fmt.Errorf("gateway: action %q cannot be invoked", action)
	}
	domain, _, ok := strings.Cut(entityID, ".")
	if !ok || domain == "" {
		return fmt.Errorf("gateway: entity id %q has no domain", entityID)
	}
	path := "/api/services/" + url.PathEscape(domain) + "/" + string(action)
	body := map[string]string{"entity_id": entityID}

	var last *Error
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		status, err := c.call(ctx, http.MethodPost, path, body, nil, c.opts.ServiceTimeout)
		if err == nil {
			if attempt > 1 {
				c.logger.Info("hub call succeeded after retry", "entity_id", entityID, "action", string(action), "attempt", attempt)
			}
			return nil
		}

		last = &Error{Op: "invoke", EntityID: entityID, StatusCode: status, Attempts: attempt, Err: err}
		if !last.retryable() || attempt == c.opts.MaxAttempts {
			break
		}

		delay := c.opts.RetryBackoff * time.Duration(attempt)
		c.logger.Warn("hub call failed, retrying",
			"entity_id", entityID, "action", string(action), "attempt", attempt, "delay", delay, "error", err)
		if werr := c.wait(ctx, delay); werr != nil {
			last.Err = classifyTransport(werr)
			break
		}
	}
	return last
}

// TestConnection checks the hub answers with the stored credentials.
func (c *Client) TestConnection(ctx context.Context) (*ConnectionInfo, error) {
	start := time.Now()

	var root struct {
		Message string `json:"message"`
		Version string `json:"version"`
	}
	status, err := c.call(ctx, http.MethodGet, "/api/", nil, &root, c.opts.StateTimeout)
	if err != nil {
		return nil, &Error{Op: "test_connection", StatusCode: status, Attempts: 1, Err: err}
	}

	var states []EntityState
	status, err = c.call(ctx, http.MethodGet, "/api/states", nil, &states, c.opts.ServiceTimeout)
	if err != nil {
		return nil, &Error{Op: "test_connection", StatusCode: status, Attempts: 1, Err: err}
	}

	creds, _ := c.credentials(ctx) //nolint:errcheck // already loaded by call
	return &ConnectionInfo{
		BaseURL:     creds.BaseURL,
		Message:     root.Message,
		Version:     root.Version,
		EntityCount: len(states),
		ResponseMs:  time.Since(start).Milliseconds(),
	}, nil
}

// ListEntities returns hub entities whose id starts with domain + ".".
// An empty domain returns everything.
func (c *Client) ListEntities(ctx context.Context, domain string) ([]EntityState, error) {
	var states []EntityState
	status, err := c.call(ctx, http.MethodGet, "/api/states", nil, &states, c.opts.ServiceTimeout)
	if err != nil {
		return nil, &Error{Op: "list_entities", StatusCode: status, Attempts: 1, Err: err}
	}
	if domain == "" {
		return states, nil
	}

	prefix := strings.TrimSuffix(domain, ".") + "."
	out := make([]EntityState, 0, len(states))
	for _, s := range states {
		if strings.HasPrefix(s.EntityID, prefix) {
			out = append(out, s)
		}
	}
	return out, nil
}

// call performs one rate-limited request. It returns the HTTP status (zero
// without a response) and an error wrapping one of the package sentinels.
func (c *Client) call(ctx context.Context, method, path string, body, out any, timeout time.Duration) (int, error) {
	creds, err := c.credentials(ctx)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, classifyTransport(err)
	}

	req := c.http.R().SetContext(ctx).SetAuthToken(creds.Token)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, creds.BaseURL+path)
	if err != nil {
		return 0, classifyTransport(err)
	}

	status := resp.StatusCode()
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return status, ErrAuthentication
	case !resp.IsSuccess():
		return status, fmt.Errorf("%w: %s", ErrAPI, truncate(strings.TrimSpace(resp.String()), maxErrorBody))
	}

	if out != nil && len(resp.Body()) > 0 {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return status, fmt.Errorf("%w: decoding response: %v", ErrAPI, err)
		}
	}
	return status, nil
}

// classifyTransport maps a client-side failure to ErrTimeout or ErrConnection.
func classifyTransport(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrConnection, err)
}

// mapState translates hub state strings. Anything other than on/off
// (unavailable, unknown) is unavailable.
func mapState(s string) breaker.State {
	switch strings.ToLower(s) {
	case "on":
		return breaker.StateOn
	case "off":
		return breaker.StateOff
	default:
		return breaker.StateUnavailable
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
