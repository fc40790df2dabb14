package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a movement. Withdrawals and deposits reuse the
// transfer schema: a withdrawal is a self-referencing record
// (sender == recipient), a deposit runs from the admin account to the target.
type TransactionType string

const (
	TypeTransfer   TransactionType = "transfer"
	TypeWithdrawal TransactionType = "withdrawal"
	TypeDeposit    TransactionType = "deposit"
)

type TransactionStatus string

const (
	TxSuccess TransactionStatus = "success"
	TxFailed  TransactionStatus = "failed"
)

// TransactionRecord is an append-only audit entry for one committed movement.
// Party emails and account numbers are denormalized at write time so the
// audit trail stays stable if the accounts are later edited.
type TransactionRecord struct {
	ID               string            `json:"id"`
	SenderID         string            `json:"-"`
	RecipientID      string            `json:"-"`
	SenderEmail      string            `json:"senderEmail"`
	RecipientEmail   string            `json:"recipientEmail"`
	SenderAccount    string            `json:"senderAccount"`
	RecipientAccount string            `json:"recipientAccount"`
	Amount           decimal.Decimal   `json:"amount"`
	Type             TransactionType   `json:"transactionType"`
	Status           TransactionStatus `json:"status"`
	Note             string            `json:"note,omitempty"`
	CreatedAt        time.Time         `json:"createdTimestamp"`
}

// TransferTotals aggregates everything an account has sent and received
// across the whole record log.
type TransferTotals struct {
	Sent     decimal.Decimal `json:"sent"`
	Received decimal.Decimal `json:"received"`
}
