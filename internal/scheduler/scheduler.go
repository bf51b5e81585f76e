// Package scheduler runs named jobs at fixed intervals.
//
// Each job runs on its own goroutine. A job never overlaps itself: a tick
// that arrives while the previous run (or a RunNow call) is still going is
// skipped and counted. Start returns immediately; cancel the context and
// call Wait to shut down.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	// ErrInvalidJob is returned for a job without a name, interval or func.
	ErrInvalidJob = errors.New("scheduler: invalid job")

	// ErrDuplicateJob is returned when a job name is registered twice.
	ErrDuplicateJob = errors.New("scheduler: duplicate job")

	// ErrUnknownJob is returned by RunNow for an unregistered name.
	ErrUnknownJob = errors.New("scheduler: unknown job")

	// ErrBusy is returned by RunNow while the job is already running.
	ErrBusy = errors.New("scheduler: job already running")

	// ErrStarted is returned when adding jobs after Start.
	ErrStarted = errors.New("scheduler: already started")
)

// Job describes periodic work.
type Job struct {
	Name     string
	Interval time.Duration
	// RunOnStart runs the job once immediately instead of waiting a full
	// interval.
	RunOnStart bool
	Run        func(ctx context.Context) error
}

// JobStatus is a snapshot of one job's history.
type JobStatus struct {
	Name      string     `json:"name"`
	Interval  string     `json:"interval"`
	Runs      int        `json:"runs"`
	Failures  int        `json:"failures"`
	Skipped   int        `json:"skipped"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// Logger is the logging interface used by the scheduler.
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

type job struct {
	Job
	running sync.Mutex

	mu     sync.Mutex
	status JobStatus
}

// Scheduler owns a set of jobs.
type Scheduler struct {
	logger Logger

	mu      sync.Mutex
	jobs    map[string]*job
	started bool
	wg      sync.WaitGroup
}

// New creates an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{
		logger: noopLogger{},
		jobs:   make(map[string]*job),
	}
}

// SetLogger sets the logger for the scheduler.
func (s *Scheduler) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Add registers j. Jobs must be added before Start.
func (s *Scheduler) Add(j Job) error {
	if j.Name == "" || j.Interval <= 0 || j.Run == nil {
		return fmt.Errorf("%w: %q", ErrInvalidJob, j.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrStarted
	}
	if _, ok := s.jobs[j.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateJob, j.Name)
	}
	s.jobs[j.Name] = &job{Job: j, status: JobStatus{Name: j.Name, Interval: j.Interval.String()}}
	return nil
}

// Start launches every job. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	for _, j := range s.jobs {
		s.wg.Add(1)
		go func(j *job) {
			defer s.wg.Done()
			s.loop(ctx, j)
		}(j)
	}
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
}

// Wait blocks until every job loop has returned after ctx cancellation.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, j *job) {
	if j.RunOnStart {
		s.tick(ctx, j)
	}

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("job stopped", "job", j.Name)
			return
		case <-ticker.C:
			s.tick(ctx, j)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, j *job) {
	if err := s.run(ctx, j); errors.Is(err, ErrBusy) {
		s.logger.Debug("job still running, tick skipped", "job", j.Name)
	}
}

// RunNow runs the named job synchronously, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}
	return s.run(ctx, j)
}

func (s *Scheduler) run(ctx context.Context, j *job) error {
	if !j.running.TryLock() {
		j.mu.Lock()
		j.status.Skipped++
		j.mu.Unlock()
		return ErrBusy
	}
	defer j.running.Unlock()

	start := time.Now()
	err := safeRun(ctx, j.Run)

	j.mu.Lock()
	j.status.Runs++
	j.status.LastRun = &start
	j.status.LastError = ""
	if err != nil {
		j.status.Failures++
		j.status.LastError = err.Error()
	}
	j.mu.Unlock()

	if err != nil && ctx.Err() == nil {
		s.logger.Error("job failed", "job", j.Name, "duration", time.Since(start), "error", err)
	}
	return err
}

// safeRun converts a panic in fn into an error so one bad run does not
// take the loop down.
func safeRun(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

// Status returns a snapshot of every job, sorted by name.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	jobs := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	out := make([]JobStatus, 0, len(jobs))
	for _, j := range jobs {
		j.mu.Lock()
		out = append(out, j.status)
		j.mu.Unlock()
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}
