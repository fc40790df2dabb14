package events

import "time"

// Event types
const (
	AccountCreated  = "account.created"
	AccountFrozen   = "account.frozen"
	AccountUnfrozen = "account.unfrozen"
	AccountClosed   = "account.closed"

	TransferCompleted = "transfer.completed"
	FundsWithdrawn    = "funds.withdrawn"
	FundsDeposited    = "funds.deposited"
)

// Stream names
const (
	LedgerEventsStream = "ledger.events"
)

// Base event structure. ID is assigned by the publisher.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Account lifecycle events
type AccountCreatedEvent struct {
	AccountID     string `json:"accountId"`
	AccountNumber string `json:"accountNumber"`
	Email         string `json:"email"`
	Role          string `json:"role"`
}

type AccountStatusEvent struct {
	AccountID     string `json:"accountId"`
	AccountNumber string `json:"accountNumber"`
	Status        string `json:"status"`
}

// Movement events. Balances are deliberately omitted: subscribers refresh
// their view from the store instead of trusting a possibly-stale payload.
type TransferCompletedEvent struct {
	TransactionID    string `json:"transactionId"`
	SenderID         string `json:"senderId"`
	RecipientID      string `json:"recipientId"`
	SenderAccount    string `json:"senderAccount"`
	RecipientAccount string `json:"recipientAccount"`
	Type             string `json:"type"`
}
