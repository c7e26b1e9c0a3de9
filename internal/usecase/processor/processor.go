package processor

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/simaogato/settlement-engine/internal/domain"
	"github.com/simaogato/settlement-engine/internal/telemetry"
)

// RequestExecutor runs a request's transfers
type RequestExecutor interface {
	Execute(ctx context.Context, req domain.Request) error
}

// Processor is the single consumer of the request queue.
// Requests are handled one at a time, so outcomes are reported in the order
// the requests were enqueued.
type Processor struct {
	queue    domain.QueueReader
	executor RequestExecutor
	sender   domain.Sender
	logger   *zap.Logger
}

// NewProcessor creates a new Processor instance
func NewProcessor(queue domain.QueueReader, executor RequestExecutor, sender domain.Sender, logger *zap.Logger) *Processor {
	return &Processor{
		queue:    queue,
		executor: executor,
		sender:   sender,
		logger:   telemetry.OrNop(logger),
	}
}

// Run processes requests until ctx is cancelled or the queue fails.
// It always returns a non-nil error; ctx.Err() on shutdown.
func (p *Processor) Run(ctx context.Context) error {
	p.logger.Info("request processor started")
	for {
		env, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Info("request processor stopped", zap.Error(err))
			return err
		}

		if err := p.Process(env); err != nil {
			p.logger.Error("request processor failed", zap.Error(err))
			return err
		}
	}
}

// Process runs one pass over a dequeued request.
// Logic:
//  1. OldState Finished or Aborted -> skip, nothing is executed or sent
//  2. Not cancelled -> execute its transfers under the request's own context
//  3. Send the request to the result sender, executed or not
//  4. Commit the state so a redelivery of a settled request is skipped
//
// A cancelled request context only ends this request's execution; the
// request is still reported. Other executor errors are defects and are
// returned.
func (p *Processor) Process(env domain.Envelope) error {
	req := env.Request
	if req == nil {
		return domain.ErrNilRequest
	}
	reqCtx := env.Context()

	ctx, span := telemetry.StartSpan(reqCtx, "processor.Process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("request_id", req.ID().String()),
			attribute.String("old_state", string(req.OldState())),
			attribute.Bool("cancelled", req.IsCancelled()),
		),
	)
	defer span.End()

	fields := append(telemetry.TraceFields(ctx), zap.String("request_id", req.ID().String()))

	if old := req.OldState(); old.IsTerminal() {
		telemetry.RequestsSkippedTotal.WithLabelValues(string(old)).Inc()
		p.logger.Info("request already settled, skipping", append(fields, zap.String("old_state", string(old)))...)
		span.SetAttributes(attribute.Bool("skipped", true))
		return nil
	}

	if req.IsCancelled() {
		p.logger.Info("request cancelled, reporting without execution", fields...)
	} else if err := p.executor.Execute(ctx, req); err != nil {
		if !domain.IsCancellation(err) {
			span.RecordError(err)
			return fmt.Errorf("failed to execute request %s: %w", req.ID(), err)
		}
		p.logger.Warn("request execution cancelled", append(fields, zap.Error(err))...)
	}

	// The request's own context may be done by now; reporting still happens
	if err := p.sender.Send(context.WithoutCancel(ctx), req); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to report request %s: %w", req.ID(), err)
	}

	telemetry.RequestsProcessedTotal.WithLabelValues(
		string(req.CurrentState()),
		strconv.FormatBool(req.IsCancelled()),
	).Inc()
	p.logger.Info("request reported", append(fields, zap.String("state", string(req.CurrentState())))...)

	req.CommitState()
	return nil
}
