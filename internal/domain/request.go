package domain

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// RequestState represents the lifecycle state of a transaction request
type RequestState string

const (
	// RequestStateNone is the state of a request that was never admitted
	RequestStateNone     RequestState = ""
	RequestStateHeld     RequestState = "HELD"
	RequestStateFinished RequestState = "FINISHED"
	RequestStateAborted  RequestState = "ABORTED"
	RequestStateRefunded RequestState = "REFUNDED"
)

// IsTerminal reports whether the processing loop must not execute a request
// that entered a pass in this state.
func (s RequestState) IsTerminal() bool {
	return s == RequestStateFinished || s == RequestStateAborted
}

// Request is the shape shared by TransactionRequest and its clearing views.
// The executor, processor and senders operate on it.
type Request interface {
	ID() uuid.UUID
	Transactions() []*Transaction
	IsCancelled() bool
	Cancel()
	CurrentState() RequestState
	SetCurrentState(state RequestState)
	OldState() RequestState
	// CommitState records the current state as the state before the next pass
	CommitState()
}

// TransactionRequest is a named batch of transactions tracked as one unit.
// The transaction set is fixed at construction.
type TransactionRequest struct {
	id           uuid.UUID
	transactions []*Transaction

	mu        sync.RWMutex
	cancelled bool
	current   RequestState
	old       RequestState
}

// RequestOption customizes a TransactionRequest at construction
type RequestOption func(*TransactionRequest)

// WithPriorState seeds OldState, used when a request is redelivered by the
// originating system after an earlier pass.
func WithPriorState(state RequestState) RequestOption {
	return func(r *TransactionRequest) {
		r.old = state
	}
}

// NewTransactionRequest creates a request in the Held state.
// Returns an error if the id is nil, the transaction set is empty or any
// transaction is nil.
func NewTransactionRequest(id uuid.UUID, transactions []*Transaction, opts ...RequestOption) (*TransactionRequest, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("%w: request id cannot be empty", ErrInvalidArgument)
	}

	if len(transactions) == 0 {
		return nil, fmt.Errorf("%w: request must have at least one transaction", ErrInvalidArgument)
	}

	txs := make([]*Transaction, len(transactions))
	for i, tx := range transactions {
		if tx == nil {
			return nil, fmt.Errorf("%w: transaction %d is nil", ErrInvalidArgument, i)
		}
		txs[i] = tx
	}

	r := &TransactionRequest{
		id:           id,
		transactions: txs,
		current:      RequestStateHeld,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *TransactionRequest) ID() uuid.UUID {
	return r.id
}

// Transactions returns a copy of the transaction slice.
// The transactions themselves are shared so completion is visible to callers.
func (r *TransactionRequest) Transactions() []*Transaction {
	txs := make([]*Transaction, len(r.transactions))
	copy(txs, r.transactions)
	return txs
}

func (r *TransactionRequest) IsCancelled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cancelled
}

func (r *TransactionRequest) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = true
}

func (r *TransactionRequest) CurrentState() RequestState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

func (r *TransactionRequest) SetCurrentState(state RequestState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = state
}

func (r *TransactionRequest) OldState() RequestState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.old
}

func (r *TransactionRequest) CommitState() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.old = r.current
}

// AllCompleted reports whether every transaction of req has completed
func AllCompleted(req Request) bool {
	for _, tx := range req.Transactions() {
		if !tx.IsCompleted() {
			return false
		}
	}
	return true
}
