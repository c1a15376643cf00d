// Package maintenance runs periodic retention sweeps over stored turns.
package maintenance

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fenggwsx/SportChat/internal/api"
	"github.com/fenggwsx/SportChat/internal/config"
)

// Cleaner deletes turns older than a number of days.
type Cleaner interface {
	CleanupOldData(ctx context.Context, daysOld int) api.CleanupResult
}

// Sweeper calls Cleaner on a fixed interval.
type Sweeper struct {
	cleaner  Cleaner
	days     int
	interval time.Duration
}

// NewSweeper returns a sweeper for cfg. Enabled reports false when
// cfg.RetentionDays is not positive.
func NewSweeper(cleaner Cleaner, cfg config.MaintenanceConfig) *Sweeper {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Sweeper{cleaner: cleaner, days: cfg.RetentionDays, interval: interval}
}

func (s *Sweeper) Enabled() bool { return s.days > 0 }

// Run sweeps once immediately and then every interval until ctx ends.
func (s *Sweeper) Run(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	log.Info().Str("component", "maintenance").Int("retention_days", s.days).Dur("interval", s.interval).Msg("sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.Sweep(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep performs a single cleanup pass.
func (s *Sweeper) Sweep(ctx context.Context) api.CleanupResult {
	res := s.cleaner.CleanupOldData(ctx, s.days)
	if !res.Success {
		log.Warn().Str("component", "maintenance").Str("error", res.Error).Msg("sweep failed")
		return res
	}
	log.Info().Str("component", "maintenance").
		Int64("deleted", res.DeletedConversations).Time("cutoff", res.CutoffDate).
		Msg("sweep done")
	return res
}
