package sender

import (
	"context"

	"go.uber.org/zap"

	"github.com/simaogato/settlement-engine/internal/domain"
	"github.com/simaogato/settlement-engine/internal/telemetry"
)

// QueueSender hands new requests to the processing loop.
// The ctx passed to Send travels with the request and scopes its execution.
type QueueSender struct {
	queue  domain.QueueWriter
	logger *zap.Logger
}

// NewQueueSender creates a sender backed by queue
func NewQueueSender(queue domain.QueueWriter, logger *zap.Logger) *QueueSender {
	return &QueueSender{
		queue:  queue,
		logger: telemetry.OrNop(logger),
	}
}

// Send enqueues req with ctx as its cancellation scope.
// Unlike the reporting senders, enqueue failures are returned: the caller
// must know the request never reached the loop.
func (s *QueueSender) Send(ctx context.Context, req domain.Request) error {
	if req == nil {
		return domain.ErrNilRequest
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.queue.Enqueue(domain.Envelope{Request: req, Ctx: ctx}); err != nil {
		return err
	}

	s.logger.Debug("request enqueued", zap.String("request_id", req.ID().String()))
	return nil
}
