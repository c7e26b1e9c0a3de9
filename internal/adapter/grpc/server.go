package grpc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/settlement-engine/internal/domain"
	"github.com/simaogato/settlement-engine/internal/usecase/command"
)

// CommandService is the command surface exposed over gRPC
type CommandService interface {
	Create(ctx context.Context, input command.CreateInput) (command.Result, error)
	Cancel(ctx context.Context, id uuid.UUID) (command.Result, error)
	Finish(ctx context.Context, id uuid.UUID) (command.Result, error)
	Refund(ctx context.Context, id uuid.UUID) (command.Result, error)
}

// Server implements the SettlementService gRPC server
type Server struct {
	Commands CommandService
}

// NewServer creates a new gRPC server instance
func NewServer(commands CommandService) *Server {
	return &Server{Commands: commands}
}

// CreateRequest handles the CreateRequest RPC
func (s *Server) CreateRequest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	input, err := ParseCreateInput(req)
	if err != nil {
		return nil, mapError(err)
	}

	res, err := s.Commands.Create(ctx, input)
	if err != nil {
		return nil, mapError(err)
	}
	return resultStruct(res), nil
}

// CancelRequest handles the CancelRequest RPC
func (s *Server) CancelRequest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.byID(ctx, req, s.Commands.Cancel)
}

// FinishRequest handles the FinishRequest RPC
func (s *Server) FinishRequest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.byID(ctx, req, s.Commands.Finish)
}

// RefundRequest handles the RefundRequest RPC
func (s *Server) RefundRequest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.byID(ctx, req, s.Commands.Refund)
}

func (s *Server) byID(
	ctx context.Context,
	req *structpb.Struct,
	run func(context.Context, uuid.UUID) (command.Result, error),
) (*structpb.Struct, error) {
	id, err := ParseID(req)
	if err != nil {
		return nil, mapError(err)
	}

	res, err := run(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	return resultStruct(res), nil
}

// ParseCreateInput reads a create payload:
//
//	{id, direction?, timeout_ms?, old_state?, transactions: [{from, to, amount, held?}]}
//
// Amounts may be strings or numbers; strings keep full decimal precision.
func ParseCreateInput(req *structpb.Struct) (command.CreateInput, error) {
	id, err := ParseID(req)
	if err != nil {
		return command.CreateInput{}, err
	}
	fields := req.GetFields()

	direction, err := command.ParseDirection(fields["direction"].GetStringValue())
	if err != nil {
		return command.CreateInput{}, err
	}

	input := command.CreateInput{ID: id, Direction: direction}

	if v, ok := fields["timeout_ms"]; ok {
		timeout, err := parseTimeout(v)
		if err != nil {
			return command.CreateInput{}, err
		}
		input.Timeout = timeout
	}

	if v, ok := fields["old_state"]; ok {
		state, err := parseState(v.GetStringValue())
		if err != nil {
			return command.CreateInput{}, err
		}
		input.PriorState = state
	}

	list := fields["transactions"].GetListValue()
	if list == nil || len(list.GetValues()) == 0 {
		return command.CreateInput{}, invalid("transactions must have at least one entry")
	}

	for i, v := range list.GetValues() {
		t := v.GetStructValue()
		if t == nil {
			return command.CreateInput{}, invalid(fmt.Sprintf("transactions[%d] must be an object", i))
		}
		transfer, err := parseTransfer(t)
		if err != nil {
			return command.CreateInput{}, fmt.Errorf("transactions[%d]: %w", i, err)
		}
		input.Transfers = append(input.Transfers, transfer)
	}

	return input, nil
}

// ParseID reads the request id of a payload
func ParseID(req *structpb.Struct) (uuid.UUID, error) {
	raw := req.GetFields()["id"].GetStringValue()
	if raw == "" {
		return uuid.Nil, invalid("id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, invalid(fmt.Sprintf("invalid id format: %v", err))
	}
	return id, nil
}

func parseTransfer(t *structpb.Struct) (command.TransferInput, error) {
	fields := t.GetFields()

	amount, err := parseDecimal(fields["amount"], "amount")
	if err != nil {
		return command.TransferInput{}, err
	}

	held := decimal.Zero
	if v, ok := fields["held"]; ok {
		held, err = parseDecimal(v, "held")
		if err != nil {
			return command.TransferInput{}, err
		}
	}

	return command.TransferInput{
		From:   fields["from"].GetStringValue(),
		To:     fields["to"].GetStringValue(),
		Amount: amount,
		Held:   held,
	}, nil
}

func parseDecimal(v *structpb.Value, name string) (decimal.Decimal, error) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		d, err := decimal.NewFromString(k.StringValue)
		if err != nil {
			return decimal.Zero, invalid(fmt.Sprintf("invalid %s format: %v", name, err))
		}
		return d, nil
	case *structpb.Value_NumberValue:
		if !isFinite(k.NumberValue) {
			return decimal.Zero, invalid(name + " must be a finite number")
		}
		return decimal.NewFromFloat(k.NumberValue), nil
	default:
		return decimal.Zero, invalid(name + " is required")
	}
}

// maxTimeoutMillis keeps the converted duration within int64 nanoseconds
const maxTimeoutMillis = math.MaxInt64 / int64(time.Millisecond)

// parseTimeout reads timeout_ms. Fractions of a millisecond round up so a
// positive timeout never degrades into "no deadline".
func parseTimeout(v *structpb.Value) (time.Duration, error) {
	k, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || !isFinite(k.NumberValue) || k.NumberValue < 0 {
		return 0, invalid("timeout_ms must be a non-negative finite number")
	}
	ms := math.Ceil(k.NumberValue)
	if ms > float64(maxTimeoutMillis) {
		return 0, invalid(fmt.Sprintf("timeout_ms must not exceed %d", maxTimeoutMillis))
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func parseState(raw string) (domain.RequestState, error) {
	switch state := domain.RequestState(raw); state {
	case domain.RequestStateNone, domain.RequestStateHeld, domain.RequestStateFinished,
		domain.RequestStateAborted, domain.RequestStateRefunded:
		return state, nil
	default:
		return "", invalid(fmt.Sprintf("unknown old_state %q", raw))
	}
}

func resultStruct(res command.Result) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":            structpb.NewStringValue(res.ID.String()),
		"is_success":    structpb.NewBoolValue(res.IsSuccess),
		"error_message": structpb.NewStringValue(res.ErrorMessage),
	}}
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidArgument, msg)
}

// mapError converts command errors to gRPC status errors.
// Business failures never get here, they are returned as unsuccessful results.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return status.Errorf(codes.InvalidArgument, "%s", err.Error())
	case errors.Is(err, context.Canceled):
		return status.Errorf(codes.Canceled, "%s", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Errorf(codes.DeadlineExceeded, "%s", err.Error())
	default:
		return status.Errorf(codes.Internal, "%s", err.Error())
	}
}
