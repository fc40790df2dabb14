package repository

import (
	"context"
	"database/sql"

	"github.com/finchbank/ledger-service/internal/domain"
	"github.com/finchbank/ledger-service/internal/ledger"
)

// TransactionRepository is the PostgreSQL TransactionRecorder. Rows are
// append-only: there is no update or delete path.
type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `id, sender_id, recipient_id, sender_email, recipient_email,
		sender_account, recipient_account, amount, type, status, note, created_at`

// Record appends one entry inside the caller's scope so the record commits
// or aborts together with the balance mutations it justifies.
func (r *TransactionRepository) Record(ctx context.Context, scope ledger.Scope, record *domain.TransactionRecord) error {
	s, ok := scope.(*sqlScope)
	if !ok || s == nil {
		return ledger.NewError(ledger.KindInternal, "transaction record requires an open scope")
	}
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.tx.ExecContext(ctx, query,
		record.ID, record.SenderID, record.RecipientID,
		record.SenderEmail, record.RecipientEmail,
		record.SenderAccount, record.RecipientAccount,
		record.Amount, record.Type, record.Status,
		nullString(record.Note), record.CreatedAt,
	)
	if err != nil {
		return classify("record transaction", err)
	}
	return nil
}

// ListFor returns the account's most recent movements, newest first. The
// limit is clamped to the configured bounds before it reaches SQL.
func (r *TransactionRepository) ListFor(ctx context.Context, accountID string, limit int) ([]domain.TransactionRecord, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE sender_id = $1 OR recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, accountID, ledger.ClampListLimit(limit))
	if err != nil {
		return nil, classify("list transactions", err)
	}
	defer rows.Close()

	var records []domain.TransactionRecord
	for rows.Next() {
		var record domain.TransactionRecord
		var note sql.NullString
		if err := rows.Scan(
			&record.ID, &record.SenderID, &record.RecipientID,
			&record.SenderEmail, &record.RecipientEmail,
			&record.SenderAccount, &record.RecipientAccount,
			&record.Amount, &record.Type, &record.Status,
			&note, &record.CreatedAt,
		); err != nil {
			return nil, ledger.WrapInternal("failed to scan transaction", err)
		}
		if note.Valid {
			record.Note = note.String
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.WrapInternal("failed to list transactions", err)
	}
	return records, nil
}

// AggregateTotals sums everything the account sent and received over the
// whole log. Self-referencing withdrawal records count on both sides.
func (r *TransactionRepository) AggregateTotals(ctx context.Context, accountID string) (*domain.TransferTotals, error) {
	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE sender_id = $1), 0),
			COALESCE(SUM(amount) FILTER (WHERE recipient_id = $1), 0)
		FROM transactions
	`
	var totals domain.TransferTotals
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(&totals.Sent, &totals.Received)
	if err != nil {
		return nil, classify("aggregate transaction totals", err)
	}
	return &totals, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
