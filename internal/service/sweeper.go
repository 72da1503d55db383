package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/burgerbus/memberclub/internal/storage"
)

// ExpirySweeper periodically expires pending intents that outlived their
// window. The backend owns this transition; clients only observe it.
type ExpirySweeper struct {
	store    storage.Store
	interval time.Duration
	logger   *slog.Logger
	nowFn    func() time.Time
}

// NewExpirySweeper constructs a sweeper with the given tick interval.
func NewExpirySweeper(store storage.Store, interval time.Duration, logger *slog.Logger) *ExpirySweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ExpirySweeper{
		store:    store,
		interval: interval,
		logger:   logger,
		nowFn:    time.Now,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *ExpirySweeper) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// Run sweeps until the context is cancelled.
func (s *ExpirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce expires overdue intents a single time.
func (s *ExpirySweeper) SweepOnce(ctx context.Context) {
	expired, err := s.store.ExpireIntents(ctx, s.nowFn().UTC())
	if err != nil {
		s.logger.Error("expiry sweep failed", "error", err)
		return
	}
	if expired > 0 {
		s.logger.Info("expired stale payment intents", "count", expired)
	}
}
