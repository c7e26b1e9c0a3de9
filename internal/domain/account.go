package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// accountNumberPattern matches the 26-digit NRB account number layout
var accountNumberPattern = regexp.MustCompile(`^\d{26}$`)

// BankAccount is a validated account number.
// The zero value is not a valid account; use NewBankAccount.
type BankAccount string

// NewBankAccount validates raw and returns it as a BankAccount.
// Whitespace is stripped before matching so "61 1090 1014 ..." is accepted.
func NewBankAccount(raw string) (BankAccount, error) {
	normalized := strings.Join(strings.Fields(raw), "")
	if !accountNumberPattern.MatchString(normalized) {
		return "", fmt.Errorf("%w: %q is not a valid account number", ErrInvalidArgument, raw)
	}
	return BankAccount(normalized), nil
}

// MustBankAccount is like NewBankAccount but panics on invalid input.
// Intended for constants and tests.
func MustBankAccount(raw string) BankAccount {
	account, err := NewBankAccount(raw)
	if err != nil {
		panic(err)
	}
	return account
}

// String returns the account number
func (a BankAccount) String() string {
	return string(a)
}
