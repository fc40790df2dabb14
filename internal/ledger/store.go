package ledger

import (
	"context"
	"time"

	"github.com/finchbank/ledger-service/internal/domain"
	"github.com/shopspring/decimal"
)

// Scope is one atomic unit of work. Every read and write made through a scope
// either commits as a whole or leaves no trace. Overlapping scopes touching
// the same accounts serialize at the store.
type Scope interface {
	Commit() error
	Rollback() error
}

// AccountStore owns account rows. Reads within a scope take row locks and
// observe the scope's own writes. Mutations are field-level commands rather
// than whole-entity saves, so concurrently-changed fields are never clobbered.
type AccountStore interface {
	Begin(ctx context.Context) (Scope, error)

	Insert(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, scope Scope, id string) (*domain.Account, error)
	// Resolve looks an account up by email or account number.
	Resolve(ctx context.Context, scope Scope, identifier string) (*domain.Account, error)
	AccountNumberExists(ctx context.Context, accountNumber string) (bool, error)

	// Debit fails with KindInsufficientBalance if the balance would go
	// negative; the guard also runs inside the UPDATE itself so a stale
	// read can never overdraw the row.
	Debit(ctx context.Context, scope Scope, id string, amount decimal.Decimal) error
	Credit(ctx context.Context, scope Scope, id string, amount decimal.Decimal) error
	SetStatus(ctx context.Context, scope Scope, id string, status domain.Status) error
	// MarkClosed sets the terminal status, stamps closedAt and forces the
	// balance to zero in one command.
	MarkClosed(ctx context.Context, scope Scope, id string, closedAt time.Time) error
}

// TransactionRecorder owns the append-only movement log.
type TransactionRecorder interface {
	// Record appends one entry inside the given scope. Entries are never
	// mutated after creation.
	Record(ctx context.Context, scope Scope, record *domain.TransactionRecord) error
	// ListFor returns the most recent records where the account is sender
	// or recipient, newest first.
	ListFor(ctx context.Context, accountID string, limit int) ([]domain.TransactionRecord, error)
	// AggregateTotals sums amounts over all records where the account is
	// sender (sent) or recipient (received).
	AggregateTotals(ctx context.Context, accountID string) (*domain.TransferTotals, error)
}

// EventPublisher pushes domain events after a scope commits. Publish failures
// are logged by the engine, never surfaced to the caller.
type EventPublisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// Listing bounds for TransactionRecorder.ListFor.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ClampListLimit normalizes a caller-supplied limit to the allowed range.
func ClampListLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
