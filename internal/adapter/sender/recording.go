package sender

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/simaogato/settlement-engine/internal/domain"
	"github.com/simaogato/settlement-engine/internal/telemetry"
)

// RecordingSender stores every reported outcome in an OutcomeRepository
type RecordingSender struct {
	repo   domain.OutcomeRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewRecordingSender creates a sender persisting outcomes to repo
func NewRecordingSender(repo domain.OutcomeRepository, logger *zap.Logger) *RecordingSender {
	return &RecordingSender{
		repo:   repo,
		logger: telemetry.OrNop(logger),
		now:    time.Now,
	}
}

// Send saves req's outcome; repository errors are logged and swallowed
func (s *RecordingSender) Send(ctx context.Context, req domain.Request) error {
	if req == nil {
		return domain.ErrNilRequest
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.repo.Save(ctx, domain.NewOutcome(req, s.now())); err != nil {
		telemetry.SendFailuresTotal.WithLabelValues("postgres").Inc()
		s.logger.Error("failed to record outcome",
			append(telemetry.TraceFields(ctx),
				zap.String("request_id", req.ID().String()),
				zap.Error(err),
			)...,
		)
	}
	return nil
}
