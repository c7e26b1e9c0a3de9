package sender

import (
	"context"

	"go.uber.org/zap"

	"github.com/simaogato/settlement-engine/internal/domain"
	"github.com/simaogato/settlement-engine/internal/telemetry"
)

// LogSender writes outcomes to the log. It is the reporting sink when no
// external system is configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a sender logging to logger
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: telemetry.OrNop(logger)}
}

func (s *LogSender) Send(ctx context.Context, req domain.Request) error {
	if req == nil {
		return domain.ErrNilRequest
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.logger.Info("request outcome",
		append(telemetry.TraceFields(ctx),
			zap.String("request_id", req.ID().String()),
			zap.String("state", string(req.CurrentState())),
			zap.Bool("cancelled", req.IsCancelled()),
			zap.Int("transfers", len(req.Transactions())),
		)...,
	)
	return nil
}

// Fanout reports to every sink in order
type Fanout struct {
	sinks []domain.Sender
}

// NewFanout creates a sender reporting to all sinks
func NewFanout(sinks ...domain.Sender) *Fanout {
	return &Fanout{sinks: sinks}
}

// Send forwards req to every sink. Sinks swallow their own transport
// failures, so only cancellation stops the fan-out early.
func (f *Fanout) Send(ctx context.Context, req domain.Request) error {
	if req == nil {
		return domain.ErrNilRequest
	}
	for _, sink := range f.sinks {
		if err := sink.Send(ctx, req); err != nil {
			return err
		}
	}
	return nil
}
