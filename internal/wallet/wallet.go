// Package wallet implements the single-account ledger shared by riders
// and drivers. Settlement between two parties is two independent
// single-account operations; callers serialize them (see registry).
package wallet

import "errors"

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
)

type Wallet struct {
	Balance float64 `json:"balance"`
}

func (w *Wallet) Credit(amount float64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	w.Balance += amount
	return nil
}

// Debit fails without touching the balance when it would go negative.
func (w *Wallet) Debit(amount float64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if w.Balance < amount {
		return ErrInsufficientFunds
	}
	w.Balance -= amount
	return nil
}
