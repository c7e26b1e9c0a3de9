package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/simaogato/settlement-engine/internal/domain"
	"github.com/simaogato/settlement-engine/internal/telemetry"
)

// Direction selects how a created request is shaped around the clearing account
type Direction string

const (
	DirectionDirect   Direction = ""
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// ParseDirection converts a wire value into a Direction
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case DirectionDirect, DirectionInbound, DirectionOutbound:
		return d, nil
	case "direct":
		return DirectionDirect, nil
	default:
		return "", fmt.Errorf("%w: unknown direction %q", domain.ErrInvalidArgument, s)
	}
}

// TransferInput represents one requested transfer
type TransferInput struct {
	From   string
	To     string
	Amount decimal.Decimal
	Held   decimal.Decimal
}

// CreateInput represents the input for creating a transaction request
type CreateInput struct {
	ID        uuid.UUID
	Transfers []TransferInput
	Direction Direction

	// Timeout bounds the request's execution; zero means no deadline
	Timeout time.Duration

	// PriorState is set when the originating system redelivers a request
	PriorState domain.RequestState
}

// Result is the outcome of a command as seen by the caller
type Result struct {
	ID           uuid.UUID
	IsSuccess    bool
	ErrorMessage string
}

// Refunder reverses a request's transfers
type Refunder interface {
	Refund(ctx context.Context, req domain.Request) error
}

// Service handles the Create, Cancel, Finish and Refund commands.
// Business failures become unsuccessful Results; every other error is
// returned to the caller.
type Service struct {
	cache    domain.RequestCache
	enqueue  domain.Sender
	results  domain.Sender
	refunder Refunder
	acks     domain.AckLog
	clearing domain.BankAccount
	logger   *zap.Logger
}

// NewService creates a new Service instance.
// enqueue hands new requests to the processing queue, results reports
// finished and refunded requests.
func NewService(
	cache domain.RequestCache,
	enqueue domain.Sender,
	results domain.Sender,
	refunder Refunder,
	acks domain.AckLog,
	clearing domain.BankAccount,
	logger *zap.Logger,
) *Service {
	return &Service{
		cache:    cache,
		enqueue:  enqueue,
		results:  results,
		refunder: refunder,
		acks:     acks,
		clearing: clearing,
		logger:   telemetry.OrNop(logger),
	}
}

// Create admits a new request and hands it to the processing queue.
// Logic:
//  1. Build and validate the request; validation errors are returned as is
//  2. Wrap it in a clearing view when a direction is given
//  3. Add it to the cache
//  4. Enqueue it under a context detached from the caller's, bounded by Timeout
//  5. Acknowledge the enqueue in the ack log
//
// A failed enqueue leaves the request cached. The reconciliation sweep reports
// such requests since they never get acknowledged.
func (s *Service) Create(ctx context.Context, input CreateInput) (Result, error) {
	req, err := s.buildRequest(input)
	if err != nil {
		return s.result("create", input.ID, err)
	}

	if err := s.cache.Add(req); err != nil {
		return s.result("create", req.ID(), err)
	}

	// The request outlives the call that created it
	reqCtx := context.WithoutCancel(ctx)
	cancel := context.CancelFunc(func() {})
	if input.Timeout > 0 {
		reqCtx, cancel = context.WithTimeout(reqCtx, input.Timeout)
	}

	if err := s.enqueue.Send(reqCtx, req); err != nil {
		cancel()
		s.logger.Error("failed to enqueue request, left in cache",
			zap.String("request_id", req.ID().String()),
			zap.Error(err),
		)
		return s.result("create", req.ID(), fmt.Errorf("failed to enqueue request: %w", err))
	}
	// Released by its own deadline once enqueued
	_ = cancel

	if err := s.acks.Ack(context.WithoutCancel(ctx), req.ID()); err != nil {
		s.logger.Warn("failed to acknowledge enqueued request",
			zap.String("request_id", req.ID().String()),
			zap.Error(err),
		)
	}

	s.logger.Info("request created",
		zap.String("request_id", req.ID().String()),
		zap.Int("transfers", len(input.Transfers)),
		zap.String("direction", string(input.Direction)),
	)
	return s.result("create", req.ID(), nil)
}

// Cancel marks a cached request as cancelled and stops tracking it.
// The processor still reports it, without executing its transfers.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (Result, error) {
	req, err := s.claim(id)
	if err != nil {
		return s.result("cancel", id, err)
	}

	req.Cancel()
	s.forget(ctx, id)

	s.logger.Info("request cancelled", zap.String("request_id", id.String()))
	return s.result("cancel", id, nil)
}

// Finish reports a cached request through the result sender and stops
// tracking it. The request is claimed before sending so concurrent calls
// report it once.
func (s *Service) Finish(ctx context.Context, id uuid.UUID) (Result, error) {
	req, err := s.claim(id)
	if err != nil {
		return s.result("finish", id, err)
	}

	if err := s.results.Send(ctx, req); err != nil {
		s.restore(req)
		return s.result("finish", id, err)
	}
	s.forget(ctx, id)

	s.logger.Info("request finished",
		zap.String("request_id", id.String()),
		zap.String("state", string(req.CurrentState())),
	)
	return s.result("finish", id, nil)
}

// Refund reverses a cached request's transfers, reports it as Refunded and
// stops tracking it.
func (s *Service) Refund(ctx context.Context, id uuid.UUID) (Result, error) {
	req, err := s.claim(id)
	if err != nil {
		return s.result("refund", id, err)
	}

	if err := s.refunder.Refund(ctx, req); err != nil {
		s.restore(req)
		return s.result("refund", id, err)
	}
	if err := s.results.Send(ctx, req); err != nil {
		s.restore(req)
		return s.result("refund", id, err)
	}
	s.forget(ctx, id)

	s.logger.Info("request refunded", zap.String("request_id", id.String()))
	return s.result("refund", id, nil)
}

func (s *Service) buildRequest(input CreateInput) (domain.Request, error) {
	if len(input.Transfers) == 0 {
		return nil, fmt.Errorf("%w: request must have at least one transaction", domain.ErrInvalidArgument)
	}

	txs := make([]*domain.Transaction, 0, len(input.Transfers))
	for i, t := range input.Transfers {
		from, err := domain.NewBankAccount(t.From)
		if err != nil {
			return nil, fmt.Errorf("transfer %d: %w", i, err)
		}
		to, err := domain.NewBankAccount(t.To)
		if err != nil {
			return nil, fmt.Errorf("transfer %d: %w", i, err)
		}
		tx, err := domain.NewTransaction(from, to, t.Amount, t.Held)
		if err != nil {
			return nil, fmt.Errorf("transfer %d: %w", i, err)
		}
		txs = append(txs, tx)
	}

	req, err := domain.NewTransactionRequest(input.ID, txs, domain.WithPriorState(input.PriorState))
	if err != nil {
		return nil, err
	}

	var view *domain.ClearingView
	switch input.Direction {
	case DirectionDirect:
		return req, nil
	case DirectionInbound:
		view, err = domain.ToClearingAccount(req, s.clearing)
	case DirectionOutbound:
		view, err = domain.FromClearingAccount(req, s.clearing)
	default:
		return nil, fmt.Errorf("%w: unknown direction %q", domain.ErrInvalidArgument, input.Direction)
	}
	if err != nil {
		return nil, err
	}
	return view, nil
}

// claim removes the request from the cache so that only one command acts on it.
// Losing a race to another command reads as the request not existing.
func (s *Service) claim(id uuid.UUID) (domain.Request, error) {
	req, ok := s.cache.GetByKey(id)
	if !ok {
		return nil, domain.ErrRequestNotExist
	}
	if err := s.cache.Delete(req); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrRequestNotExist
		}
		return nil, err
	}
	return req, nil
}

// restore puts back a claimed request whose command did not complete
func (s *Service) restore(req domain.Request) {
	if err := s.cache.Add(req); err != nil {
		s.logger.Warn("failed to restore request after failed command",
			zap.String("request_id", req.ID().String()),
			zap.Error(err),
		)
	}
}

func (s *Service) forget(ctx context.Context, id uuid.UUID) {
	if err := s.acks.Forget(ctx, id); err != nil {
		s.logger.Warn("failed to forget request acknowledgement",
			zap.String("request_id", id.String()),
			zap.Error(err),
		)
	}
}

// result turns err into a command Result.
// Only business errors are recovered; anything else is a defect or a
// cancellation and goes back to the caller.
func (s *Service) result(command string, id uuid.UUID, err error) (Result, error) {
	if err != nil && !domain.IsBusinessError(err) {
		return Result{}, err
	}

	res := Result{ID: id, IsSuccess: err == nil}
	if err != nil {
		res.ErrorMessage = err.Error()
		s.logger.Info("command failed",
			zap.String("command", command),
			zap.String("request_id", id.String()),
			zap.String("reason", err.Error()),
		)
	}
	telemetry.CommandsTotal.WithLabelValues(command, strconv.FormatBool(res.IsSuccess)).Inc()
	return res, nil
}
