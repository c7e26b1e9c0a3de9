package domain

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// View tells which side of the clearing account a request represents
type View int

const (
	ViewDirect View = iota
	ViewInboundToClearing
	ViewOutboundFromClearing
)

func (v View) String() string {
	switch v {
	case ViewDirect:
		return "direct"
	case ViewInboundToClearing:
		return "inbound"
	case ViewOutboundFromClearing:
		return "outbound"
	default:
		return "unknown"
	}
}

// ApplyStateTransition returns the state a request under view ends up in when
// state is assigned to it.
// Funds reaching the clearing account are not final settlement, so an inbound
// view turns Finished into Held. All other assignments pass through.
func ApplyStateTransition(view View, state RequestState) RequestState {
	if view == ViewInboundToClearing && state == RequestStateFinished {
		return RequestStateHeld
	}
	return state
}

// ClearingView wraps a Request and reshapes its transfers around the
// platform's clearing account. Identity, cancellation and OldState are the
// wrapped request's.
type ClearingView struct {
	wrapped  Request
	view     View
	clearing BankAccount

	once         sync.Once
	transactions []*Transaction
	buildErr     error
}

// ToClearingAccount returns a view in which all of req's transfers are
// collapsed into one payment from their single sender into clearing.
// Returns ErrMultipleSenders if req names more than one sender account.
func ToClearingAccount(req Request, clearing BankAccount) (*ClearingView, error) {
	return newClearingView(req, ViewInboundToClearing, clearing)
}

// FromClearingAccount returns a view in which every transfer of req is paid
// out of clearing to its original recipient.
func FromClearingAccount(req Request, clearing BankAccount) (*ClearingView, error) {
	return newClearingView(req, ViewOutboundFromClearing, clearing)
}

func newClearingView(req Request, view View, clearing BankAccount) (*ClearingView, error) {
	if req == nil {
		return nil, ErrNilRequest
	}
	if clearing == "" {
		return nil, fmt.Errorf("%w: clearing account cannot be empty", ErrInvalidArgument)
	}

	v := &ClearingView{wrapped: req, view: view, clearing: clearing}
	if _, err := v.build(); err != nil {
		return nil, err
	}
	return v, nil
}

// View returns which side of the clearing account v represents
func (v *ClearingView) View() View {
	return v.view
}

// Unwrap returns the wrapped request
func (v *ClearingView) Unwrap() Request {
	return v.wrapped
}

func (v *ClearingView) ID() uuid.UUID {
	return v.wrapped.ID()
}

// Transactions returns the synthetic transfers, built once on first access
func (v *ClearingView) Transactions() []*Transaction {
	txs, _ := v.build()
	out := make([]*Transaction, len(txs))
	copy(out, txs)
	return out
}

func (v *ClearingView) IsCancelled() bool {
	return v.wrapped.IsCancelled()
}

func (v *ClearingView) Cancel() {
	v.wrapped.Cancel()
}

func (v *ClearingView) CurrentState() RequestState {
	return v.wrapped.CurrentState()
}

func (v *ClearingView) SetCurrentState(state RequestState) {
	v.wrapped.SetCurrentState(ApplyStateTransition(v.view, state))
}

func (v *ClearingView) OldState() RequestState {
	return v.wrapped.OldState()
}

func (v *ClearingView) CommitState() {
	v.wrapped.CommitState()
}

func (v *ClearingView) build() ([]*Transaction, error) {
	v.once.Do(func() {
		switch v.view {
		case ViewInboundToClearing:
			v.transactions, v.buildErr = inboundTransactions(v.wrapped.Transactions(), v.clearing)
		case ViewOutboundFromClearing:
			v.transactions, v.buildErr = outboundTransactions(v.wrapped.Transactions(), v.clearing)
		default:
			v.transactions = v.wrapped.Transactions()
		}
	})
	return v.transactions, v.buildErr
}

// inboundTransactions collapses txs into a single payment into clearing
func inboundTransactions(txs []*Transaction, clearing BankAccount) ([]*Transaction, error) {
	var sender BankAccount
	transfer := decimal.Zero
	held := decimal.Zero

	for _, tx := range txs {
		if sender == "" {
			sender = tx.From
		} else if tx.From != sender {
			return nil, ErrMultipleSenders
		}
		transfer = transfer.Add(tx.TransferBalance)
		held = held.Add(tx.HeldBalance)
	}

	tx, err := NewTransaction(sender, clearing, transfer, held)
	if err != nil {
		return nil, err
	}
	return []*Transaction{tx}, nil
}

// outboundTransactions pays every recipient of txs out of clearing
func outboundTransactions(txs []*Transaction, clearing BankAccount) ([]*Transaction, error) {
	out := make([]*Transaction, 0, len(txs))
	for _, tx := range txs {
		payout, err := NewTransaction(clearing, tx.To, tx.TransferBalance, tx.HeldBalance)
		if err != nil {
			return nil, err
		}
		out = append(out, payout)
	}
	return out, nil
}
