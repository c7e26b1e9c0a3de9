package domain

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	accountA = MustBankAccount("11111111111111111111111111")
	accountB = MustBankAccount("22222222222222222222222222")
	accountC = MustBankAccount("33333333333333333333333333")
)

func TestNewTransaction(t *testing.T) {
	tests := []struct {
		name     string
		from     BankAccount
		to       BankAccount
		transfer decimal.Decimal
		held     decimal.Decimal
		wantErr  bool
		errMsg   string
	}{
		{
			name:     "Valid transaction should pass",
			from:     accountA,
			to:       accountB,
			transfer: decimal.NewFromInt(100),
			held:     decimal.Zero,
			wantErr:  false,
		},
		{
			name:     "Valid transaction with held balance should pass",
			from:     accountA,
			to:       accountB,
			transfer: decimal.RequireFromString("10.50"),
			held:     decimal.RequireFromString("2.25"),
			wantErr:  false,
		},
		{
			name:     "Zero transfer balance should fail",
			from:     accountA,
			to:       accountB,
			transfer: decimal.Zero,
			held:     decimal.Zero,
			wantErr:  true,
			errMsg:   "transfer balance must be positive",
		},
		{
			name:     "Negative transfer balance should fail",
			from:     accountA,
			to:       accountB,
			transfer: decimal.NewFromInt(-10),
			held:     decimal.Zero,
			wantErr:  true,
			errMsg:   "transfer balance must be positive",
		},
		{
			name:     "Negative held balance should fail",
			from:     accountA,
			to:       accountB,
			transfer: decimal.NewFromInt(10),
			held:     decimal.NewFromInt(-1),
			wantErr:  true,
			errMsg:   "held balance cannot be negative",
		},
		{
			name:     "Same account should fail",
			from:     accountA,
			to:       accountA,
			transfer: decimal.NewFromInt(10),
			held:     decimal.Zero,
			wantErr:  true,
			errMsg:   "cannot transfer to the same account",
		},
		{
			name:     "Empty account should fail",
			from:     "",
			to:       accountB,
			transfer: decimal.NewFromInt(10),
			held:     decimal.Zero,
			wantErr:  true,
			errMsg:   "transaction accounts cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := NewTransaction(tt.from, tt.to, tt.transfer, tt.held)
			if tt.wantErr {
				assert.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidArgument)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.Nil(t, tx)
			} else {
				require.NoError(t, err)
				assert.False(t, tx.IsCompleted())
				assert.True(t, tx.TransferBalance.Equal(tt.transfer))
			}
		})
	}
}

func TestTransaction_Complete(t *testing.T) {
	tx, err := NewTransaction(accountA, accountB, decimal.NewFromInt(5), decimal.Zero)
	require.NoError(t, err)

	assert.NoError(t, tx.Complete())
	assert.True(t, tx.IsCompleted())

	// Second completion is a programming error
	err = tx.Complete()
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
	assert.True(t, IsBusinessError(err))
	assert.True(t, tx.IsCompleted())
}

func TestTransaction_Complete_Concurrent(t *testing.T) {
	tx, err := NewTransaction(accountA, accountB, decimal.NewFromInt(5), decimal.Zero)
	require.NoError(t, err)

	const workers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tx.Complete() == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}
