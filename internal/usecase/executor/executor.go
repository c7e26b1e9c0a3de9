package executor

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/simaogato/settlement-engine/internal/domain"
	"github.com/simaogato/settlement-engine/internal/telemetry"
)

const (
	// DefaultDelay is the simulated service time of a single transfer
	DefaultDelay = 100 * time.Millisecond

	// DefaultFailureProbability is the chance a simulated transfer does not complete
	DefaultFailureProbability = 0.05
)

// Config holds the transfer simulation settings
type Config struct {
	Delay              time.Duration
	FailureProbability float64

	// Rand returns a value in [0, 1). Defaults to math/rand/v2.Float64.
	Rand func() float64
}

// DefaultConfig returns the production simulation settings
func DefaultConfig() Config {
	return Config{
		Delay:              DefaultDelay,
		FailureProbability: DefaultFailureProbability,
	}
}

// Executor runs a request's transfers concurrently and derives its state
type Executor struct {
	cfg    Config
	logger *zap.Logger

	randMu sync.Mutex
}

// NewExecutor creates a new Executor instance
func NewExecutor(cfg Config, logger *zap.Logger) *Executor {
	if cfg.Rand == nil {
		cfg.Rand = rand.Float64
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	return &Executor{
		cfg:    cfg,
		logger: telemetry.OrNop(logger),
	}
}

// Execute attempts every transfer of req and sets the aggregate state.
// Logic:
//  1. Launch one unit per transfer; every unit runs to the end, a failing
//     transfer does not stop the others
//  2. Each unit checks ctx, waits the simulated delay, then completes its
//     transfer unless the simulated external failure hits
//  3. All transfers completed -> Finished, otherwise Aborted
//
// Completed transfers stay completed when the request aborts; no retry and no
// rollback happen here. If ctx is cancelled, the context error is returned
// and the state is left untouched.
func (e *Executor) Execute(ctx context.Context, req domain.Request) error {
	if req == nil {
		return domain.ErrNilRequest
	}

	ctx, span := telemetry.StartSpan(ctx, "executor.Execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("request_id", req.ID().String()),
		attribute.Int("transfers", len(req.Transactions())),
	)

	start := time.Now()
	err := e.attemptAll(ctx, req, "execute")
	telemetry.RequestExecutionDuration.WithLabelValues("execute").Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	state := domain.RequestStateAborted
	if domain.AllCompleted(req) {
		state = domain.RequestStateFinished
	}
	req.SetCurrentState(state)

	span.SetAttributes(attribute.String("state", string(req.CurrentState())))
	e.logger.Debug("request executed",
		append(telemetry.TraceFields(ctx),
			zap.String("request_id", req.ID().String()),
			zap.String("state", string(req.CurrentState())),
		)...,
	)
	return nil
}

// Refund attempts to reverse every transfer of req and marks it Refunded
// regardless of the individual outcomes. It is never triggered by Execute.
func (e *Executor) Refund(ctx context.Context, req domain.Request) error {
	if req == nil {
		return domain.ErrNilRequest
	}

	ctx, span := telemetry.StartSpan(ctx, "executor.Refund")
	defer span.End()
	span.SetAttributes(attribute.String("request_id", req.ID().String()))

	start := time.Now()
	err := e.attemptAll(ctx, req, "refund")
	telemetry.RequestExecutionDuration.WithLabelValues("refund").Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	req.SetCurrentState(domain.RequestStateRefunded)
	e.logger.Info("request refunded",
		append(telemetry.TraceFields(ctx), zap.String("request_id", req.ID().String()))...,
	)
	return nil
}

// attemptAll fans out one unit per transfer and waits for all of them.
// The group is not bound to a derived context so one failing unit never
// cancels its siblings.
func (e *Executor) attemptAll(ctx context.Context, req domain.Request, operation string) error {
	var g errgroup.Group
	for _, tx := range req.Transactions() {
		g.Go(func() error {
			return e.attempt(ctx, tx, operation)
		})
	}
	return g.Wait()
}

// attempt simulates one call to the external transfer service
func (e *Executor) attempt(ctx context.Context, tx *domain.Transaction, operation string) error {
	if err := ctx.Err(); err != nil {
		telemetry.TransfersTotal.WithLabelValues(operation, "cancelled").Inc()
		return err
	}

	if e.cfg.Delay > 0 {
		timer := time.NewTimer(e.cfg.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			telemetry.TransfersTotal.WithLabelValues(operation, "cancelled").Inc()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if e.failed() {
		telemetry.TransfersTotal.WithLabelValues(operation, "failed").Inc()
		return nil
	}

	if err := tx.Complete(); err != nil && !errors.Is(err, domain.ErrAlreadyCompleted) {
		return err
	}
	telemetry.TransfersTotal.WithLabelValues(operation, "completed").Inc()
	return nil
}

func (e *Executor) failed() bool {
	if e.cfg.FailureProbability <= 0 {
		return false
	}
	e.randMu.Lock()
	defer e.randMu.Unlock()
	return e.cfg.Rand() < e.cfg.FailureProbability
}
