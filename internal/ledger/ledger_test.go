package ledger_test

import (
	"context"
	"sync"
	"time"

	"github.com/finchbank/ledger-service/internal/domain"
	"github.com/finchbank/ledger-service/internal/ledger"
	"github.com/shopspring/decimal"
)

// memLedger is an in-memory AccountStore + TransactionRecorder for engine
// tests. Begin takes the store mutex so scopes serialize like row locks do;
// Rollback restores a snapshot taken at Begin, so aborted scopes leave no
// trace, matching the all-or-nothing contract of the SQL implementation.
type memLedger struct {
	mu         sync.Mutex
	accounts   map[string]*domain.Account
	records    []domain.TransactionRecord
	openScopes int

	insertErrs []error // popped by Insert to simulate constraint races
	recordErr  error   // forced failure for Record
}

func newMemLedger() *memLedger {
	return &memLedger{accounts: make(map[string]*domain.Account)}
}

type memScope struct {
	l        *memLedger
	snapshot map[string]*domain.Account
	recLen   int
	done     bool
}

func (l *memLedger) Begin(ctx context.Context) (ledger.Scope, error) {
	l.mu.Lock()
	l.openScopes++
	snapshot := make(map[string]*domain.Account, len(l.accounts))
	for id, a := range l.accounts {
		cp := *a
		snapshot[id] = &cp
	}
	return &memScope{l: l, snapshot: snapshot, recLen: len(l.records)}, nil
}

func (s *memScope) Commit() error {
	if s.done {
		return nil
	}
	s.done = true
	s.l.openScopes--
	s.l.mu.Unlock()
	return nil
}

func (s *memScope) Rollback() error {
	if s.done {
		return nil
	}
	s.done = true
	s.l.openScopes--
	s.l.accounts = s.snapshot
	s.l.records = s.l.records[:s.recLen]
	s.l.mu.Unlock()
	return nil
}

// locked runs fn under the mutex unless an open scope already holds it.
func (l *memLedger) locked(scope ledger.Scope, fn func()) {
	if scope == nil {
		l.mu.Lock()
		defer l.mu.Unlock()
	}
	fn()
}

func (l *memLedger) Insert(ctx context.Context, account *domain.Account) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.insertErrs) > 0 {
		err := l.insertErrs[0]
		l.insertErrs = l.insertErrs[1:]
		if err != nil {
			return err
		}
	}
	for _, existing := range l.accounts {
		if existing.Email == account.Email {
			return ledger.ErrEmailTaken
		}
		if existing.AccountNumber == account.AccountNumber {
			return ledger.ErrAccountNumberTaken
		}
	}
	cp := *account
	l.accounts[account.ID] = &cp
	return nil
}

func (l *memLedger) GetByID(ctx context.Context, scope ledger.Scope, id string) (*domain.Account, error) {
	var account *domain.Account
	l.locked(scope, func() {
		if a, ok := l.accounts[id]; ok {
			cp := *a
			account = &cp
		}
	})
	if account == nil {
		return nil, ledger.NewError(ledger.KindNotFound, "account not found")
	}
	return account, nil
}

func (l *memLedger) Resolve(ctx context.Context, scope ledger.Scope, identifier string) (*domain.Account, error) {
	var account *domain.Account
	l.locked(scope, func() {
		for _, a := range l.accounts {
			if a.Email == identifier || a.AccountNumber == identifier {
				cp := *a
				account = &cp
				return
			}
		}
	})
	if account == nil {
		return nil, ledger.NewError(ledger.KindNotFound, "account not found")
	}
	return account, nil
}

func (l *memLedger) AccountNumberExists(ctx context.Context, accountNumber string) (bool, error) {
	exists := false
	l.locked(nil, func() {
		for _, a := range l.accounts {
			if a.AccountNumber == accountNumber {
				exists = true
				return
			}
		}
	})
	return exists, nil
}

func (l *memLedger) Debit(ctx context.Context, scope ledger.Scope, id string, amount decimal.Decimal) error {
	a, ok := l.accounts[id]
	if !ok {
		return ledger.NewError(ledger.KindNotFound, "account not found")
	}
	if a.Balance.LessThan(amount) {
		return ledger.NewError(ledger.KindInsufficientBalance, "insufficient balance")
	}
	a.Balance = a.Balance.Sub(amount)
	return nil
}

func (l *memLedger) Credit(ctx context.Context, scope ledger.Scope, id string, amount decimal.Decimal) error {
	a, ok := l.accounts[id]
	if !ok {
		return ledger.NewError(ledger.KindNotFound, "account not found")
	}
	a.Balance = a.Balance.Add(amount)
	return nil
}

func (l *memLedger) SetStatus(ctx context.Context, scope ledger.Scope, id string, status domain.Status) error {
	a, ok := l.accounts[id]
	if !ok {
		return ledger.NewError(ledger.KindNotFound, "account not found")
	}
	a.Status = status
	return nil
}

func (l *memLedger) MarkClosed(ctx context.Context, scope ledger.Scope, id string, closedAt time.Time) error {
	a, ok := l.accounts[id]
	if !ok {
		return ledger.NewError(ledger.KindNotFound, "account not found")
	}
	a.Status = domain.StatusClosed
	a.ClosedAt = &closedAt
	a.Balance = decimal.Zero
	return nil
}

func (l *memLedger) Record(ctx context.Context, scope ledger.Scope, record *domain.TransactionRecord) error {
	if l.recordErr != nil {
		return l.recordErr
	}
	l.records = append(l.records, *record)
	return nil
}

func (l *memLedger) ListFor(ctx context.Context, accountID string, limit int) ([]domain.TransactionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	limit = ledger.ClampListLimit(limit)
	var out []domain.TransactionRecord
	for i := len(l.records) - 1; i >= 0 && len(out) < limit; i-- {
		r := l.records[i]
		if r.SenderID == accountID || r.RecipientID == accountID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (l *memLedger) AggregateTotals(ctx context.Context, accountID string) (*domain.TransferTotals, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	totals := &domain.TransferTotals{Sent: decimal.Zero, Received: decimal.Zero}
	for _, r := range l.records {
		if r.SenderID == accountID {
			totals.Sent = totals.Sent.Add(r.Amount)
		}
		if r.RecipientID == accountID {
			totals.Received = totals.Received.Add(r.Amount)
		}
	}
	return totals, nil
}

// balance reads an account balance outside any scope.
func (l *memLedger) balance(id string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accounts[id].Balance
}

func (l *memLedger) totalBalance() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	sum := decimal.Zero
	for _, a := range l.accounts {
		sum = sum.Add(a.Balance)
	}
	return sum
}

func (l *memLedger) recordCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// openScopeCount reports scopes that were begun but neither committed nor
// rolled back. Any operation that leaves one behind has leaked a transaction.
func (l *memLedger) openScopeCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.openScopes
}
