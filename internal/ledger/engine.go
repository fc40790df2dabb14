package ledger

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/finchbank/ledger-service/internal/domain"
	"github.com/finchbank/ledger-service/internal/events"
	"github.com/finchbank/ledger-service/internal/utils"
	"github.com/shopspring/decimal"
)

// Caller is the verified identity supplied by the auth boundary. The engine
// trusts it and never re-verifies credentials.
type Caller struct {
	AccountID string
	Role      domain.Role
}

// AccountDraft is the input for account creation. The password hash is opaque
// to the engine.
type AccountDraft struct {
	Name         string
	Email        string
	PasswordHash string
	Role         domain.Role
	Balance      decimal.Decimal
}

// PartySummary describes the counterparty of a movement in a success payload.
type PartySummary struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	AccountNumber string          `json:"accountNumber"`
	Balance       decimal.Decimal `json:"balance"`
}

type TransferResult struct {
	Balance   decimal.Decimal           `json:"balance"`
	Recipient PartySummary              `json:"recipient"`
	Record    *domain.TransactionRecord `json:"-"`
}

type WithdrawResult struct {
	Balance decimal.Decimal           `json:"balance"`
	Record  *domain.TransactionRecord `json:"-"`
}

type DepositResult struct {
	Balance decimal.Decimal           `json:"balance"`
	Target  PartySummary              `json:"target"`
	Record  *domain.TransactionRecord `json:"-"`
}

// StatusResult reports an account's status after an admin lifecycle action.
type StatusResult struct {
	Email    string        `json:"email"`
	Status   domain.Status `json:"status"`
	ClosedAt *time.Time    `json:"closedAt,omitempty"`
}

// Engine orchestrates every balance and status mutation. Each operation runs
// inside exactly one atomic scope spanning all account reads, account writes
// and the transaction-record write; the first failing precondition aborts
// with nothing applied. No other code path writes balances or statuses.
type Engine struct {
	accounts  AccountStore
	records   TransactionRecorder
	allocator *AccountNumberAllocator
	publisher EventPublisher
}

// NewEngine wires the engine to its stores. publisher may be nil; event
// delivery is best effort and never fails an operation.
func NewEngine(accounts AccountStore, records TransactionRecorder, publisher EventPublisher) *Engine {
	return &Engine{
		accounts:  accounts,
		records:   records,
		allocator: NewAccountNumberAllocator(accounts),
		publisher: publisher,
	}
}

// insertRetries bounds how often CreateAccount restarts allocation after
// losing an account-number race at the store's unique constraint. Each
// restart runs a full allocation of up to allocatorAttempts draws.
const insertRetries = 3

// CreateAccount allocates an account number and inserts the account. The
// allocator pre-check can race with a concurrent creation; a store-level
// account-number collision restarts the allocation, a duplicate email is
// reported to the caller.
func (e *Engine) CreateAccount(ctx context.Context, draft AccountDraft) (*domain.Account, error) {
	if draft.Name == "" || draft.Email == "" || draft.PasswordHash == "" {
		return nil, NewError(KindValidation, "name, email, and password are required")
	}
	role := draft.Role
	if role == "" {
		role = domain.RoleUser
	}
	if draft.Balance.IsNegative() {
		return nil, NewError(KindValidation, "initial balance cannot be negative")
	}

	for attempt := 0; attempt < insertRetries; attempt++ {
		number, err := e.allocator.Allocate(ctx)
		if err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		account := &domain.Account{
			ID:            utils.GenerateID("acc"),
			AccountNumber: number,
			Name:          draft.Name,
			Email:         utils.NormalizeEmail(draft.Email),
			PasswordHash:  draft.PasswordHash,
			Role:          role,
			Balance:       draft.Balance,
			Status:        domain.StatusActive,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		err = e.accounts.Insert(ctx, account)
		if err == nil {
			e.publish(ctx, events.AccountCreated, events.AccountCreatedEvent{
				AccountID:     account.ID,
				AccountNumber: account.AccountNumber,
				Email:         account.Email,
				Role:          string(account.Role),
			})
			return account, nil
		}
		if errors.Is(err, ErrAccountNumberTaken) {
			// Lost the race on the unique constraint: redraw.
			continue
		}
		return nil, err
	}
	return nil, NewError(KindAllocationExhausted, "failed to generate account number")
}

// EnsureAdmin creates the admin account on first bootstrap. Idempotent: an
// existing account with the given email is returned untouched.
func (e *Engine) EnsureAdmin(ctx context.Context, name, email, passwordHash string, balance decimal.Decimal) (*domain.Account, error) {
	existing, err := e.accounts.Resolve(ctx, nil, utils.NormalizeEmail(email))
	if err == nil {
		return existing, nil
	}
	if KindOf(err) != KindNotFound {
		return nil, err
	}
	return e.CreateAccount(ctx, AccountDraft{
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         domain.RoleAdmin,
		Balance:      balance,
	})
}

// Transfer moves amount from the caller to the account resolved from
// toIdentifier (email or account number).
func (e *Engine) Transfer(ctx context.Context, caller Caller, toIdentifier string, amount decimal.Decimal, note string) (*TransferResult, error) {
	if err := validAmount(amount); err != nil {
		return nil, err
	}
	if toIdentifier == "" {
		return nil, NewError(KindValidation, "recipient email or account number is required")
	}
	if caller.Role == domain.RoleAdmin {
		return nil, NewError(KindForbidden, "admin accounts cannot transfer funds")
	}

	scope, err := e.accounts.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer rollbackUnlessDone(scope, &err)

	sender, err := e.accounts.GetByID(ctx, scope, caller.AccountID)
	if err != nil {
		return nil, err
	}
	if err = requireActive(sender, "account"); err != nil {
		return nil, err
	}

	recipient, err := e.accounts.Resolve(ctx, scope, utils.NormalizeEmail(toIdentifier))
	if err != nil {
		if KindOf(err) == KindNotFound {
			return nil, NewError(KindNotFound, "recipient account not found")
		}
		return nil, err
	}
	if recipient.ID == sender.ID {
		err = NewError(KindValidation, "cannot transfer funds to your own account")
		return nil, err
	}
	if err = requireActive(recipient, "recipient account"); err != nil {
		return nil, err
	}
	if sender.Balance.LessThan(amount) {
		err = NewError(KindInsufficientBalance, "insufficient balance")
		return nil, err
	}

	if err = e.accounts.Debit(ctx, scope, sender.ID, amount); err != nil {
		return nil, err
	}
	if err = e.accounts.Credit(ctx, scope, recipient.ID, amount); err != nil {
		return nil, err
	}

	record := newRecord(sender, recipient, amount, domain.TypeTransfer, note)
	if err = e.records.Record(ctx, scope, record); err != nil {
		return nil, err
	}
	if err = scope.Commit(); err != nil {
		return nil, err
	}

	e.publish(ctx, events.TransferCompleted, movementEvent(record))
	return &TransferResult{
		Balance: sender.Balance.Sub(amount),
		Recipient: PartySummary{
			ID:            recipient.ID,
			Name:          recipient.Name,
			Email:         recipient.Email,
			AccountNumber: recipient.AccountNumber,
			Balance:       recipient.Balance.Add(amount),
		},
		Record: record,
	}, nil
}

// Withdraw debits the caller's own account. The record is self-referencing:
// sender and recipient are both the caller.
func (e *Engine) Withdraw(ctx context.Context, caller Caller, amount decimal.Decimal, note string) (*WithdrawResult, error) {
	if err := validAmount(amount); err != nil {
		return nil, err
	}
	if caller.Role == domain.RoleAdmin {
		return nil, NewError(KindForbidden, "admin accounts cannot withdraw funds")
	}

	scope, err := e.accounts.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer rollbackUnlessDone(scope, &err)

	account, err := e.accounts.GetByID(ctx, scope, caller.AccountID)
	if err != nil {
		return nil, err
	}
	if err = requireActive(account, "account"); err != nil {
		return nil, err
	}
	if account.Balance.LessThan(amount) {
		err = NewError(KindInsufficientBalance, "insufficient balance")
		return nil, err
	}

	if err = e.accounts.Debit(ctx, scope, account.ID, amount); err != nil {
		return nil, err
	}

	record := newRecord(account, account, amount, domain.TypeWithdrawal, note)
	if err = e.records.Record(ctx, scope, record); err != nil {
		return nil, err
	}
	if err = scope.Commit(); err != nil {
		return nil, err
	}

	e.publish(ctx, events.FundsWithdrawn, movementEvent(record))
	return &WithdrawResult{Balance: account.Balance.Sub(amount), Record: record}, nil
}

// Deposit moves amount from the admin caller (the funding source) to the
// target account.
func (e *Engine) Deposit(ctx context.Context, caller Caller, targetIdentifier string, amount decimal.Decimal, note string) (*DepositResult, error) {
	if err := validAmount(amount); err != nil {
		return nil, err
	}
	if targetIdentifier == "" {
		return nil, NewError(KindValidation, "target email or account number is required")
	}
	if caller.Role != domain.RoleAdmin {
		return nil, NewError(KindForbidden, "only admins can deposit funds")
	}

	scope, err := e.accounts.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer rollbackUnlessDone(scope, &err)

	admin, err := e.accounts.GetByID(ctx, scope, caller.AccountID)
	if err != nil {
		return nil, err
	}
	if err = requireActive(admin, "account"); err != nil {
		return nil, err
	}

	target, err := e.accounts.Resolve(ctx, scope, utils.NormalizeEmail(targetIdentifier))
	if err != nil {
		if KindOf(err) == KindNotFound {
			return nil, NewError(KindNotFound, "target account not found")
		}
		return nil, err
	}
	if err = requireActive(target, "target account"); err != nil {
		return nil, err
	}
	if admin.Balance.LessThan(amount) {
		err = NewError(KindInsufficientBalance, "insufficient balance")
		return nil, err
	}

	if err = e.accounts.Debit(ctx, scope, admin.ID, amount); err != nil {
		return nil, err
	}
	if err = e.accounts.Credit(ctx, scope, target.ID, amount); err != nil {
		return nil, err
	}

	record := newRecord(admin, target, amount, domain.TypeDeposit, note)
	if err = e.records.Record(ctx, scope, record); err != nil {
		return nil, err
	}
	if err = scope.Commit(); err != nil {
		return nil, err
	}

	e.publish(ctx, events.FundsDeposited, movementEvent(record))
	return &DepositResult{
		Balance: admin.Balance.Sub(amount),
		Target: PartySummary{
			ID:            target.ID,
			Name:          target.Name,
			Email:         target.Email,
			AccountNumber: target.AccountNumber,
			Balance:       target.Balance.Add(amount),
		},
		Record: record,
	}, nil
}

// Freeze suspends an active user account. Admin-only; admin accounts can
// never be frozen.
func (e *Engine) Freeze(ctx context.Context, caller Caller, targetEmail string) (*StatusResult, error) {
	return e.setStatus(ctx, caller, targetEmail, domain.StatusActive, domain.StatusFrozen, events.AccountFrozen)
}

// Unfreeze reactivates a frozen user account.
func (e *Engine) Unfreeze(ctx context.Context, caller Caller, targetEmail string) (*StatusResult, error) {
	return e.setStatus(ctx, caller, targetEmail, domain.StatusFrozen, domain.StatusActive, events.AccountUnfrozen)
}

func (e *Engine) setStatus(ctx context.Context, caller Caller, targetEmail string, from, to domain.Status, eventType string) (*StatusResult, error) {
	target, scope, err := e.lockTarget(ctx, caller, targetEmail)
	if err != nil {
		return nil, err
	}
	defer rollbackUnlessDone(scope, &err)

	if target.Status == domain.StatusClosed {
		err = NewError(KindInvalidState, "account is closed")
		return nil, err
	}
	if target.Status != from {
		// No-op transitions fail rather than silently succeeding.
		err = NewError(KindInvalidState, "account is not "+string(from))
		return nil, err
	}
	if err = e.accounts.SetStatus(ctx, scope, target.ID, to); err != nil {
		return nil, err
	}
	if err = scope.Commit(); err != nil {
		return nil, err
	}

	e.publish(ctx, eventType, events.AccountStatusEvent{
		AccountID:     target.ID,
		AccountNumber: target.AccountNumber,
		Status:        string(to),
	})
	return &StatusResult{Email: target.Email, Status: to}, nil
}

// Close terminates an account. The status is terminal, closedAt is stamped
// and the remaining balance is forced to zero without a displacement record.
func (e *Engine) Close(ctx context.Context, caller Caller, targetEmail string) (*StatusResult, error) {
	target, scope, err := e.lockTarget(ctx, caller, targetEmail)
	if err != nil {
		return nil, err
	}
	defer rollbackUnlessDone(scope, &err)

	if target.Status == domain.StatusClosed {
		err = NewError(KindInvalidState, "account is already closed")
		return nil, err
	}
	closedAt := time.Now().UTC()
	if err = e.accounts.MarkClosed(ctx, scope, target.ID, closedAt); err != nil {
		return nil, err
	}
	if err = scope.Commit(); err != nil {
		return nil, err
	}

	e.publish(ctx, events.AccountClosed, events.AccountStatusEvent{
		AccountID:     target.ID,
		AccountNumber: target.AccountNumber,
		Status:        string(domain.StatusClosed),
	})
	return &StatusResult{Email: target.Email, Status: domain.StatusClosed, ClosedAt: &closedAt}, nil
}

// lockTarget opens a scope and resolves + locks the target of an admin
// lifecycle action, enforcing the admin-only and never-an-admin-target rules.
func (e *Engine) lockTarget(ctx context.Context, caller Caller, targetEmail string) (*domain.Account, Scope, error) {
	if caller.Role != domain.RoleAdmin {
		return nil, nil, NewError(KindForbidden, "admin access required")
	}
	if targetEmail == "" {
		return nil, nil, NewError(KindValidation, "target email is required")
	}

	scope, err := e.accounts.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	target, err := e.accounts.Resolve(ctx, scope, utils.NormalizeEmail(targetEmail))
	if err != nil {
		scope.Rollback()
		return nil, nil, err
	}
	if target.Role == domain.RoleAdmin {
		scope.Rollback()
		return nil, nil, NewError(KindInvalidState, "admin accounts cannot be frozen or closed")
	}
	return target, scope, nil
}

func (e *Engine) publish(ctx context.Context, eventType string, data any) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, events.LedgerEventsStream, eventType, data); err != nil {
		log.Printf("Failed to publish %s event: %v", eventType, err)
	}
}

func newRecord(sender, recipient *domain.Account, amount decimal.Decimal, txType domain.TransactionType, note string) *domain.TransactionRecord {
	return &domain.TransactionRecord{
		ID:               utils.GenerateID("tan"),
		SenderID:         sender.ID,
		RecipientID:      recipient.ID,
		SenderEmail:      sender.Email,
		RecipientEmail:   recipient.Email,
		SenderAccount:    sender.AccountNumber,
		RecipientAccount: recipient.AccountNumber,
		Amount:           amount,
		Type:             txType,
		Status:           domain.TxSuccess,
		Note:             note,
		CreatedAt:        time.Now().UTC(),
	}
}

func movementEvent(record *domain.TransactionRecord) events.TransferCompletedEvent {
	return events.TransferCompletedEvent{
		TransactionID:    record.ID,
		SenderID:         record.SenderID,
		RecipientID:      record.RecipientID,
		SenderAccount:    record.SenderAccount,
		RecipientAccount: record.RecipientAccount,
		Type:             string(record.Type),
	}
}

func validAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return NewError(KindValidation, "amount must be greater than zero")
	}
	return nil
}

// requireActive rejects frozen and closed parties. A closed account is gone
// for good, so the failure reads as a forbidden action rather than a
// transient state.
func requireActive(account *domain.Account, label string) error {
	switch account.Status {
	case domain.StatusClosed:
		return NewError(KindForbidden, label+" is closed")
	case domain.StatusFrozen:
		return NewError(KindInvalidState, label+" is frozen")
	}
	return nil
}

// rollbackUnlessDone aborts the scope when the surrounding operation returns
// an error before Commit. Rolling back after a successful commit is a no-op
// at the store, so the guard only checks the error.
func rollbackUnlessDone(scope Scope, errp *error) {
	if *errp != nil {
		scope.Rollback()
	}
}
