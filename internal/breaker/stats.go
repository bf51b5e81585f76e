package breaker

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-hotel/internal/infrastructure/database"
)

const statsWindow = 24 * time.Hour

// BreakerCounts describes the fleet. Everything except Total counts active
// breakers only.
type BreakerCounts struct {
	Total       int `json:"total"`
	Active      int `json:"active"`
	AutoEnabled int `json:"auto_enabled"`
	On          int `json:"on"`
	Off         int `json:"off"`
	Unavailable int `json:"unavailable"`
	InAlert     int `json:"in_alert"`
}

// QueueCounts describes outstanding work.
type QueueCounts struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Failed     int `json:"failed"`
}

// Stats is the dashboard snapshot.
type Stats struct {
	Breakers    BreakerCounts   `json:"breakers"`
	Queue       QueueCounts     `json:"queue"`
	Activity24h ActivitySummary `json:"activity_24h"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Stats computes the dashboard snapshot.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	now := s.now().UTC()
	stats := &Stats{GeneratedAt: now}

	err := s.queue.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(is_active), 0),
			COALESCE(SUM(CASE WHEN is_active = 1 AND auto_control_enabled = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_active = 1 AND current_state = 'on' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_active = 1 AND current_state = 'off' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_active = 1 AND current_state = 'unavailable' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_active = 1 AND consecutive_errors >= ? THEN 1 ELSE 0 END), 0)
		 FROM breakers`,
		s.cfg.AlertThreshold,
	).Scan(&stats.Breakers.Total, &stats.Breakers.Active, &stats.Breakers.AutoEnabled,
		&stats.Breakers.On, &stats.Breakers.Off, &stats.Breakers.Unavailable, &stats.Breakers.InAlert)
	if err != nil {
		return nil, fmt.Errorf("counting breakers: %w", err)
	}

	counts, err := s.queue.Counts(ctx)
	if err != nil {
		return nil, err
	}
	stats.Queue = QueueCounts{
		Pending:    counts[QueuePending],
		Processing: counts[QueueProcessing],
		Failed:     counts[QueueFailed],
	}

	stats.Activity24h, err = s.activity.Summary(ctx, now.Add(-statsWindow))
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// PruneActivity removes activity older than retentionDays. Zero keeps
// everything.
func (s *Service) PruneActivity(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-time.Duration(retentionDays) * statsWindow)
	n, err := s.activity.Prune(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("activity pruned", "deleted", n, "before", database.FormatTime(cutoff))
	}
	return n, nil
}
