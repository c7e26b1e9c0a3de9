package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RequestCache tracks in-flight requests keyed by request id.
// Implementations must be safe for concurrent use.
type RequestCache interface {
	// Add stores req; returns ErrDuplicateKey if its id is already tracked
	Add(req Request) error

	// GetByKey returns the tracked request and true, or nil and false
	GetByKey(id uuid.UUID) (Request, bool)

	// Delete removes req; returns ErrNotFound if its id is not tracked
	Delete(req Request) error

	// Contains reports whether id is tracked
	Contains(id uuid.UUID) bool
}

// CacheEntry describes a tracked request and the time it was admitted
type CacheEntry struct {
	ID      uuid.UUID
	AddedAt time.Time
}

// Envelope is a queued request together with the caller's cancellation scope.
// Ctx cancels only this request's execution, never the processing loop.
type Envelope struct {
	Request Request
	Ctx     context.Context
}

// Context returns the envelope's context, defaulting to context.Background
func (e Envelope) Context() context.Context {
	if e.Ctx == nil {
		return context.Background()
	}
	return e.Ctx
}

// QueueWriter is the producer side of the request queue. Enqueue never blocks.
type QueueWriter interface {
	Enqueue(env Envelope) error
}

// QueueReader is the consumer side of the request queue
type QueueReader interface {
	// Dequeue blocks until an envelope is available or ctx is done
	Dequeue(ctx context.Context) (Envelope, error)
}

// Sender delivers a request to its next destination: the queue for new
// requests, or the result-reporting system for processed ones.
// Transport failures are logged and swallowed; only a nil request and
// cancellation are returned as errors.
type Sender interface {
	Send(ctx context.Context, req Request) error
}

// Outcome is the reported result of a processing pass
type Outcome struct {
	RequestID  uuid.UUID
	State      RequestState
	Cancelled  bool
	Transfers  []TransferOutcome
	ReportedAt time.Time
}

// TransferOutcome is the reported result of a single transfer
type TransferOutcome struct {
	From      BankAccount
	To        BankAccount
	Amount    string
	Held      string
	Completed bool
}

// NewOutcome snapshots req into an Outcome
func NewOutcome(req Request, at time.Time) Outcome {
	txs := req.Transactions()
	transfers := make([]TransferOutcome, 0, len(txs))
	for _, tx := range txs {
		transfers = append(transfers, TransferOutcome{
			From:      tx.From,
			To:        tx.To,
			Amount:    tx.TransferBalance.String(),
			Held:      tx.HeldBalance.String(),
			Completed: tx.IsCompleted(),
		})
	}

	return Outcome{
		RequestID:  req.ID(),
		State:      req.CurrentState(),
		Cancelled:  req.IsCancelled(),
		Transfers:  transfers,
		ReportedAt: at,
	}
}

// OutcomeRepository defines the interface for outcome persistence operations
type OutcomeRepository interface {
	// Save stores an outcome together with its transfers
	Save(ctx context.Context, outcome Outcome) error

	// ListByRequest retrieves every outcome reported for a request, oldest first
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]Outcome, error)
}

// AckLog records which admitted requests were handed to the queue.
// The reconciliation sweep compares it against the cache.
type AckLog interface {
	// Ack marks id as enqueued
	Ack(ctx context.Context, id uuid.UUID) error

	// IsAcked reports whether id was marked as enqueued
	IsAcked(ctx context.Context, id uuid.UUID) (bool, error)

	// Forget removes id once the request leaves the cache
	Forget(ctx context.Context, id uuid.UUID) error
}
