package influxdb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-hotel/internal/breaker"
	"github.com/nerrad567/gray-logic-hotel/internal/infrastructure/config"
)

// recordingWriter captures points as line protocol.
type recordingWriter struct {
	mu      sync.Mutex
	lines   []string
	flushes int
}

func (w *recordingWriter) WritePoint(p *write.Point) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lines = append(w.lines, write.PointToLineProtocol(p, time.Nanosecond))
}

func (w *recordingWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushes++
}

func newRecordingClient() (*Client, *recordingWriter) {
	w := &recordingWriter{}
	return &Client{
		writer:    w,
		now:       func() time.Time { return time.Unix(1790000000, 0) },
		connected: true,
	}, w
}

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_PingsServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ping" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := Connect(config.InfluxDBConfig{Enabled: true, URL: srv.URL, Token: "t", Org: "hotel", Bucket: "breakers"})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !c.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() after Close = %v, want ErrNotConnected", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := Connect(config.InfluxDBConfig{Enabled: true, URL: url, Token: "t"})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestBreakerMetrics_RecordAction(t *testing.T) {
	c, w := newRecordingClient()
	m := NewBreakerMetrics(c)

	m.RecordAction("brk-1", breaker.ActionTurnOn, breaker.OutcomeSuccess, 120)

	if len(w.lines) != 1 {
		t.Fatalf("wrote %d points, want 1", len(w.lines))
	}
	want := "breaker_actions,action=turn_on,breaker_id=brk-1,outcome=success response_ms=120i 1790000000000000000"
	if got := strings.TrimSpace(w.lines[0]); got != want {
		t.Errorf("line = %q\nwant   %q", got, want)
	}
}

func TestBreakerMetrics_RecordState(t *testing.T) {
	c, w := newRecordingClient()
	m := NewBreakerMetrics(c)

	m.RecordState("brk-1", breaker.StateOn, true)
	m.RecordState("brk-2", breaker.StateUnavailable, false)

	if len(w.lines) != 2 {
		t.Fatalf("wrote %d points, want 2", len(w.lines))
	}
	if !strings.Contains(w.lines[0], "breaker_state,breaker_id=brk-1 available=1i,on=1i") {
		t.Errorf("line 0 = %q", w.lines[0])
	}
	if !strings.Contains(w.lines[1], "breaker_state,breaker_id=brk-2 available=0i,on=0i") {
		t.Errorf("line 1 = %q", w.lines[1])
	}
}

func TestClient_ClosedDropsWrites(t *testing.T) {
	c, w := newRecordingClient()
	c.connected = false

	c.WritePoint("x", nil, map[string]any{"v": 1})
	c.Flush()

	if len(w.lines) != 0 || w.flushes != 0 {
		t.Errorf("closed client wrote %d points, %d flushes", len(w.lines), w.flushes)
	}
}

func TestClient_OnErrorCallback(t *testing.T) {
	c, _ := newRecordingClient()
	got := make(chan error, 1)
	c.SetOnError(func(err error) { got <- err })

	errs := make(chan error, 1)
	go c.handleWriteErrors(errs)
	errs <- errors.New("bucket not found")
	close(errs)

	select {
	case err := <-got:
		if err.Error() != "bucket not found" {
			t.Errorf("callback got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("callback not invoked")
	}
}
