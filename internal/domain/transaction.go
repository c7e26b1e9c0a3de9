package domain

import (
	"fmt"
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// Transaction is a single funds movement between two accounts.
// Its balances never change after construction; the only mutation is the
// one-way Complete action.
type Transaction struct {
	From            BankAccount
	To              BankAccount
	TransferBalance decimal.Decimal // always positive
	HeldBalance     decimal.Decimal // never negative

	completed atomic.Bool
}

// NewTransaction creates a Transaction after validating it.
// Returns an error if:
//   - either account is empty
//   - From and To are the same account
//   - TransferBalance is not positive
//   - HeldBalance is negative
func NewTransaction(from, to BankAccount, transfer, held decimal.Decimal) (*Transaction, error) {
	tx := &Transaction{
		From:            from,
		To:              to,
		TransferBalance: transfer,
		HeldBalance:     held,
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	return tx, nil
}

// Validate ensures the transaction adheres to domain rules
func (t *Transaction) Validate() error {
	if t.From == "" || t.To == "" {
		return fmt.Errorf("%w: transaction accounts cannot be empty", ErrInvalidArgument)
	}

	if t.From == t.To {
		return fmt.Errorf("%w: cannot transfer to the same account", ErrInvalidArgument)
	}

	if t.TransferBalance.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: transfer balance must be positive", ErrInvalidArgument)
	}

	if t.HeldBalance.LessThan(decimal.Zero) {
		return fmt.Errorf("%w: held balance cannot be negative", ErrInvalidArgument)
	}

	return nil
}

// Complete marks the transaction as completed.
// Only the first call succeeds; later calls return ErrAlreadyCompleted.
func (t *Transaction) Complete() error {
	if !t.completed.CompareAndSwap(false, true) {
		return ErrAlreadyCompleted
	}
	return nil
}

// IsCompleted reports whether Complete has succeeded
func (t *Transaction) IsCompleted() bool {
	return t.completed.Load()
}
