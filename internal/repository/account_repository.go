package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/finchbank/ledger-service/internal/domain"
	"github.com/finchbank/ledger-service/internal/ledger"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// sqlScope adapts *sql.Tx to the ledger's atomic scope. Row locks taken
// inside the scope are released on Commit or Rollback.
type sqlScope struct {
	tx *sql.Tx
}

func (s *sqlScope) Commit() error {
	if err := s.tx.Commit(); err != nil {
		return classify("commit transaction", err)
	}
	return nil
}

func (s *sqlScope) Rollback() error {
	if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return ledger.WrapInternal("failed to roll back transaction", err)
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// AccountRepository is the PostgreSQL AccountStore. All writes are
// field-level commands; reads inside a scope take row locks so two
// operations over the same accounts serialize.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Begin(ctx context.Context) (ledger.Scope, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, ledger.WrapInternal("failed to open transaction", err)
	}
	return &sqlScope{tx: tx}, nil
}

func (r *AccountRepository) q(scope ledger.Scope) querier {
	if s, ok := scope.(*sqlScope); ok && s != nil {
		return s.tx
	}
	return r.db
}

const accountColumns = `id, account_number, name, email, password_hash, role, balance, status, closed_at, created_at, updated_at`

func (r *AccountRepository) Insert(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		account.ID, account.AccountNumber, account.Name, account.Email,
		account.PasswordHash, account.Role, account.Balance, account.Status,
		account.ClosedAt, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return classify("create account", err)
	}
	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, scope ledger.Scope, id string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	if scope != nil {
		query += ` FOR UPDATE`
	}
	return r.scanAccount(r.q(scope).QueryRowContext(ctx, query, id))
}

// Resolve looks an account up by email or account number. Within a scope the
// row is locked for the remainder of the operation.
func (r *AccountRepository) Resolve(ctx context.Context, scope ledger.Scope, identifier string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1 OR account_number = $1`
	if scope != nil {
		query += ` FOR UPDATE`
	}
	return r.scanAccount(r.q(scope).QueryRowContext(ctx, query, identifier))
}

func (r *AccountRepository) AccountNumberExists(ctx context.Context, accountNumber string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE account_number = $1)`, accountNumber,
	).Scan(&exists)
	if err != nil {
		return false, ledger.WrapInternal("failed to check account number", err)
	}
	return exists, nil
}

// Debit subtracts amount with the non-negative guard inside the UPDATE
// predicate. With the row already locked by the scope's read, zero rows
// affected can only mean the balance is short.
func (r *AccountRepository) Debit(ctx context.Context, scope ledger.Scope, id string, amount decimal.Decimal) error {
	query := `
		UPDATE accounts
		SET balance = balance - $2, updated_at = NOW()
		WHERE id = $1 AND balance >= $2
	`
	result, err := r.q(scope).ExecContext(ctx, query, id, amount)
	if err != nil {
		return classify("debit account", err)
	}
	return requireRow(result, ledger.NewError(ledger.KindInsufficientBalance, "insufficient balance"))
}

func (r *AccountRepository) Credit(ctx context.Context, scope ledger.Scope, id string, amount decimal.Decimal) error {
	query := `
		UPDATE accounts
		SET balance = balance + $2, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.q(scope).ExecContext(ctx, query, id, amount)
	if err != nil {
		return classify("credit account", err)
	}
	return requireRow(result, ledger.NewError(ledger.KindNotFound, "account not found"))
}

func (r *AccountRepository) SetStatus(ctx context.Context, scope ledger.Scope, id string, status domain.Status) error {
	query := `
		UPDATE accounts
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.q(scope).ExecContext(ctx, query, id, status)
	if err != nil {
		return classify("update account status", err)
	}
	return requireRow(result, ledger.NewError(ledger.KindNotFound, "account not found"))
}

// MarkClosed is terminal: status, closedAt and the forced zero balance land
// in a single command.
func (r *AccountRepository) MarkClosed(ctx context.Context, scope ledger.Scope, id string, closedAt time.Time) error {
	query := `
		UPDATE accounts
		SET status = $2, closed_at = $3, balance = 0, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.q(scope).ExecContext(ctx, query, id, domain.StatusClosed, closedAt)
	if err != nil {
		return classify("close account", err)
	}
	return requireRow(result, ledger.NewError(ledger.KindNotFound, "account not found"))
}

func (r *AccountRepository) scanAccount(row *sql.Row) (*domain.Account, error) {
	var account domain.Account
	var closedAt sql.NullTime
	err := row.Scan(
		&account.ID, &account.AccountNumber, &account.Name, &account.Email,
		&account.PasswordHash, &account.Role, &account.Balance, &account.Status,
		&closedAt, &account.CreatedAt, &account.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ledger.NewError(ledger.KindNotFound, "account not found")
	}
	if err != nil {
		return nil, classify("get account", err)
	}
	if closedAt.Valid {
		account.ClosedAt = &closedAt.Time
	}
	return &account, nil
}

func requireRow(result sql.Result, missing error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return ledger.WrapInternal("failed to check rows affected", err)
	}
	if rows == 0 {
		return missing
	}
	return nil
}

// classify maps PostgreSQL errors onto ledger error kinds: unique violations
// become the matching conflict sentinel, deadlocks and serialization
// failures become retryable conflicts, anything else is internal.
func classify(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			switch pqErr.Constraint {
			case "accounts_email_key":
				return ledger.ErrEmailTaken
			case "accounts_account_number_key":
				return ledger.ErrAccountNumberTaken
			}
			return ledger.NewError(ledger.KindConflict, "duplicate value")
		case "40001", "40P01":
			return ledger.NewError(ledger.KindConflict, "concurrent update detected, please retry")
		}
	}
	return ledger.WrapInternal("failed to "+op, err)
}
