package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/simaogato/settlement-engine/internal/domain"
	"github.com/simaogato/settlement-engine/internal/telemetry"
)

// DefaultGrace is how long a cached request may go unacknowledged before it
// counts as stuck
const DefaultGrace = 30 * time.Second

// EntryLister lists the requests currently tracked by the cache
type EntryLister interface {
	Entries() []domain.CacheEntry
}

// Sweeper finds requests that were admitted to the cache but never
// acknowledged as enqueued. Those requests stay Held until an operator
// cancels or finishes them.
type Sweeper struct {
	cache  EntryLister
	acks   domain.AckLog
	grace  time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewSweeper creates a new Sweeper instance
func NewSweeper(cache EntryLister, acks domain.AckLog, grace time.Duration, logger *zap.Logger) *Sweeper {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Sweeper{
		cache:  cache,
		acks:   acks,
		grace:  grace,
		logger: telemetry.OrNop(logger),
		now:    time.Now,
	}
}

// Sweep returns the ids of cached requests older than the grace period that
// have no enqueue acknowledgement, oldest first.
func (s *Sweeper) Sweep(ctx context.Context) ([]uuid.UUID, error) {
	cutoff := s.now().Add(-s.grace)

	var stuck []uuid.UUID
	for _, e := range s.cache.Entries() {
		if e.AddedAt.After(cutoff) {
			continue
		}
		acked, err := s.acks.IsAcked(ctx, e.ID)
		if err != nil {
			return stuck, fmt.Errorf("failed to check request %s: %w", e.ID, err)
		}
		if acked {
			continue
		}

		stuck = append(stuck, e.ID)
		telemetry.StuckRequestsTotal.Inc()
		s.logger.Warn("request admitted but never enqueued",
			zap.String("request_id", e.ID.String()),
			zap.Time("added_at", e.AddedAt),
		)
	}
	return stuck, nil
}

// Run sweeps every interval until ctx is done
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				if domain.IsCancellation(err) {
					return err
				}
				s.logger.Error("reconciliation sweep failed", zap.Error(err))
			}
		}
	}
}
