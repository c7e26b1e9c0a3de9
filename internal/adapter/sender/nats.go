package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/simaogato/settlement-engine/internal/domain"
	"github.com/simaogato/settlement-engine/internal/telemetry"
)

// DefaultSubject is where outcomes are published when none is configured
const DefaultSubject = "settlement.outcomes"

// Publisher is the subset of *nats.Conn used for reporting
type Publisher interface {
	Publish(subject string, data []byte) error
}

// OutcomeMessage is the JSON payload published for every reported request
type OutcomeMessage struct {
	RequestID  string            `json:"request_id"`
	State      string            `json:"state"`
	Cancelled  bool              `json:"cancelled"`
	Transfers  []TransferMessage `json:"transfers"`
	ReportedAt time.Time         `json:"reported_at"`
}

// TransferMessage is one transfer inside an OutcomeMessage
type TransferMessage struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    string `json:"amount"`
	Held      string `json:"held"`
	Completed bool   `json:"completed"`
}

// NATSSender publishes outcomes to a NATS subject
type NATSSender struct {
	publisher Publisher
	subject   string
	logger    *zap.Logger
	now       func() time.Time
}

// NewNATSSender creates a sender publishing on subject
func NewNATSSender(publisher Publisher, subject string, logger *zap.Logger) *NATSSender {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSSender{
		publisher: publisher,
		subject:   subject,
		logger:    telemetry.OrNop(logger),
		now:       time.Now,
	}
}

// Send publishes req's outcome. Marshal and publish failures are logged and
// swallowed.
func (s *NATSSender) Send(ctx context.Context, req domain.Request) error {
	if req == nil {
		return domain.ErrNilRequest
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(newOutcomeMessage(domain.NewOutcome(req, s.now())))
	if err != nil {
		s.fail(ctx, req, "failed to marshal outcome", err)
		return nil
	}

	if err := s.publisher.Publish(s.subject, data); err != nil {
		s.fail(ctx, req, "failed to publish outcome", err)
		return nil
	}

	s.logger.Debug("outcome published",
		zap.String("request_id", req.ID().String()),
		zap.String("subject", s.subject),
	)
	return nil
}

func (s *NATSSender) fail(ctx context.Context, req domain.Request, msg string, err error) {
	telemetry.SendFailuresTotal.WithLabelValues("nats").Inc()
	s.logger.Error(msg,
		append(telemetry.TraceFields(ctx),
			zap.String("request_id", req.ID().String()),
			zap.Error(err),
		)...,
	)
}

func newOutcomeMessage(o domain.Outcome) OutcomeMessage {
	transfers := make([]TransferMessage, 0, len(o.Transfers))
	for _, t := range o.Transfers {
		transfers = append(transfers, TransferMessage{
			From:      t.From.String(),
			To:        t.To.String(),
			Amount:    t.Amount,
			Held:      t.Held,
			Completed: t.Completed,
		})
	}
	return OutcomeMessage{
		RequestID:  o.RequestID.String(),
		State:      string(o.State),
		Cancelled:  o.Cancelled,
		Transfers:  transfers,
		ReportedAt: o.ReportedAt,
	}
}

// ConnectNATS opens a NATS connection with reconnect handling
func ConnectNATS(url string, logger *zap.Logger) (*nats.Conn, error) {
	logger = telemetry.OrNop(logger)
	opts := []nats.Option{
		nats.Name("settlement-engine"),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(10),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}
