// Package worker contains the background token-retention sweeper. Confirmed
// subscriptions keep their tokens for a grace window so late duplicate clicks
// still succeed; after that the rows are storage noise and get deleted.
// Pending subscribers are never touched; their tokens stay valid until they
// confirm.
package worker

import (
	"context"
	"log/slog"
	"time"
)

// TokenPruner is the narrow store interface the sweeper uses. The concrete
// implementation is *store.Store. In tests, any struct with a
// PruneExpiredTokens method satisfies the interface.
type TokenPruner interface {
	PruneExpiredTokens(ctx context.Context, retention time.Duration) (int64, error)
}

// SweeperConfig holds tuning parameters for the Sweeper. Zero values fall
// back to the defaults from DefaultSweeperConfig.
type SweeperConfig struct {
	// Interval is how often the sweep runs. Default: 1h.
	Interval time.Duration

	// Retention is how long tokens outlive their subscriber's confirmation.
	// Default: 72h.
	Retention time.Duration
}

// DefaultSweeperConfig returns safe production defaults.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:  time.Hour,
		Retention: 72 * time.Hour,
	}
}

// Sweeper periodically prunes confirmation tokens past their retention.
type Sweeper struct {
	pruner TokenPruner
	cfg    SweeperConfig
	logger *slog.Logger
}

// NewSweeper constructs a Sweeper. Call Start() to begin sweeping.
func NewSweeper(pruner TokenPruner, cfg SweeperConfig, logger *slog.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSweeperConfig().Interval
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultSweeperConfig().Retention
	}
	return &Sweeper{pruner: pruner, cfg: cfg, logger: logger}
}

// Start blocks until ctx is cancelled, sweeping once immediately and then on
// every Interval tick. Call it in a goroutine from main:
//
//	go sweeper.Start(ctx)
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("sweeper: starting",
		"interval", s.cfg.Interval,
		"retention", s.cfg.Retention,
	)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	// Run once on startup to clear anything accumulated while down.
	s.sweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper: stopped")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	deleted, err := s.pruner.PruneExpiredTokens(sweepCtx, s.cfg.Retention)
	if err != nil {
		s.logger.Error("sweeper: prune failed", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("sweeper: pruned tokens", "deleted", deleted)
	}
}
