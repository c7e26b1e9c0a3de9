package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransaction(t *testing.T, from, to BankAccount, amount int64) *Transaction {
	t.Helper()
	tx, err := NewTransaction(from, to, decimal.NewFromInt(amount), decimal.Zero)
	require.NoError(t, err)
	return tx
}

func TestNewTransactionRequest(t *testing.T) {
	tx := newTestTransaction(t, accountA, accountB, 10)

	tests := []struct {
		name    string
		id      uuid.UUID
		txs     []*Transaction
		wantErr string
	}{
		{
			name: "Valid request should start held",
			id:   uuid.New(),
			txs:  []*Transaction{tx},
		},
		{
			name:    "Nil id should fail",
			id:      uuid.Nil,
			txs:     []*Transaction{tx},
			wantErr: "request id cannot be empty",
		},
		{
			name:    "No transactions should fail",
			id:      uuid.New(),
			txs:     nil,
			wantErr: "request must have at least one transaction",
		},
		{
			name:    "Nil transaction should fail",
			id:      uuid.New(),
			txs:     []*Transaction{tx, nil},
			wantErr: "transaction 1 is nil",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewTransactionRequest(tt.id, tt.txs)
			if tt.wantErr != "" {
				assert.ErrorIs(t, err, ErrInvalidArgument)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, req.ID())
			assert.Equal(t, RequestStateHeld, req.CurrentState())
			assert.Equal(t, RequestStateNone, req.OldState())
			assert.False(t, req.IsCancelled())
			assert.Len(t, req.Transactions(), len(tt.txs))
		})
	}
}

func TestTransactionRequest_TransactionsAreFixed(t *testing.T) {
	txs := []*Transaction{newTestTransaction(t, accountA, accountB, 10)}
	req, err := NewTransactionRequest(uuid.New(), txs)
	require.NoError(t, err)

	// Mutating the caller's slice or the returned copy must not leak in
	txs[0] = newTestTransaction(t, accountA, accountC, 99)
	got := req.Transactions()
	got[0] = nil

	again := req.Transactions()
	require.Len(t, again, 1)
	assert.Equal(t, accountB, again[0].To)
}

func TestTransactionRequest_StateLifecycle(t *testing.T) {
	req, err := NewTransactionRequest(uuid.New(), []*Transaction{newTestTransaction(t, accountA, accountB, 10)})
	require.NoError(t, err)

	req.SetCurrentState(RequestStateFinished)
	assert.Equal(t, RequestStateFinished, req.CurrentState())
	assert.Equal(t, RequestStateNone, req.OldState())

	req.CommitState()
	assert.Equal(t, RequestStateFinished, req.OldState())
	assert.True(t, req.OldState().IsTerminal())

	req.Cancel()
	assert.True(t, req.IsCancelled())
}

func TestTransactionRequest_WithPriorState(t *testing.T) {
	req, err := NewTransactionRequest(uuid.New(),
		[]*Transaction{newTestTransaction(t, accountA, accountB, 10)},
		WithPriorState(RequestStateAborted),
	)
	require.NoError(t, err)

	assert.Equal(t, RequestStateAborted, req.OldState())
	assert.Equal(t, RequestStateHeld, req.CurrentState())
}

func TestRequestState_IsTerminal(t *testing.T) {
	assert.True(t, RequestStateFinished.IsTerminal())
	assert.True(t, RequestStateAborted.IsTerminal())
	assert.False(t, RequestStateHeld.IsTerminal())
	assert.False(t, RequestStateRefunded.IsTerminal())
	assert.False(t, RequestStateNone.IsTerminal())
}

func TestAllCompleted(t *testing.T) {
	first := newTestTransaction(t, accountA, accountB, 10)
	second := newTestTransaction(t, accountA, accountC, 5)
	req, err := NewTransactionRequest(uuid.New(), []*Transaction{first, second})
	require.NoError(t, err)

	assert.False(t, AllCompleted(req))
	require.NoError(t, first.Complete())
	assert.False(t, AllCompleted(req))
	require.NoError(t, second.Complete())
	assert.True(t, AllCompleted(req))
}
