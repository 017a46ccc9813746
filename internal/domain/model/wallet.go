package model

import (
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TransactionCredit TransactionType = "credit"
	TransactionDebit  TransactionType = "debit"
)

// Transaction is one wallet ledger line. Amounts are always positive; Type
// carries the direction.
type Transaction struct {
	ID     string          `json:"id"`
	Type   TransactionType `json:"type"`
	Amount int64           `json:"amount"`
	Meta   string          `json:"meta,omitempty"`
	At     time.Time       `json:"ts"`
}

func NewTransaction(typ TransactionType, amount int64, meta string) Transaction {
	return Transaction{
		ID:     uuid.NewString(),
		Type:   typ,
		Amount: amount,
		Meta:   meta,
		At:     time.Now().UTC(),
	}
}

// WalletAccount is a read model: balance plus most-recent-first history.
type WalletAccount struct {
	UserID       int64
	Balance      int64
	Transactions []Transaction
}
