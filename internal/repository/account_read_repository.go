package repository

import (
	"context"
	"database/sql"
	"log"

	"github.com/finchbank/ledger-service/internal/domain"
	"github.com/finchbank/ledger-service/internal/events"
	"github.com/finchbank/ledger-service/internal/ledger"
	sharedredis "github.com/finchbank/ledger-service/internal/redis"
	goredis "github.com/redis/go-redis/v9"
)

const accountViewKeyPrefix = "account:view:"

// AccountReadRepository serves account profile reads. Redis holds the read
// model, keyed by internal account ID; PostgreSQL is the transparent
// fallback, warming the cache on every cold read. The ledger event
// subscriber invalidates entries after committed mutations.
type AccountReadRepository struct {
	db    *sql.DB
	cache *sharedredis.ViewCache[domain.AccountView]
}

func NewAccountReadRepository(db *sql.DB, redisClient *goredis.Client) *AccountReadRepository {
	return &AccountReadRepository{
		db:    db,
		cache: sharedredis.NewViewCache[domain.AccountView](redisClient, accountViewKeyPrefix, 0),
	}
}

// GetViewByID returns an AccountView, trying Redis first then PostgreSQL.
func (r *AccountReadRepository) GetViewByID(ctx context.Context, id string) (*domain.AccountView, error) {
	if view, ok := r.cache.Get(ctx, id); ok {
		return view, nil
	}

	query := `
		SELECT id, account_number, name, email, role, balance, status, closed_at, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`
	var view domain.AccountView
	var closedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&view.ID, &view.AccountNumber, &view.Name, &view.Email, &view.Role,
		&view.Balance, &view.Status, &closedAt, &view.CreatedAt, &view.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ledger.NewError(ledger.KindNotFound, "account not found")
	}
	if err != nil {
		return nil, ledger.WrapInternal("failed to get account view", err)
	}
	if closedAt.Valid {
		view.ClosedAt = &closedAt.Time
	}

	r.cache.Set(ctx, id, &view)
	return &view, nil
}

// InvalidateView drops the cached projection; the next read warms it from
// PostgreSQL.
func (r *AccountReadRepository) InvalidateView(ctx context.Context, id string) {
	r.cache.Delete(ctx, id)
}

// HandleLedgerEvent is the Redis stream subscriber handler. Every committed
// mutation invalidates the affected projections rather than patching them,
// so a stale event can never overwrite a fresher balance.
func (r *AccountReadRepository) HandleLedgerEvent(ctx context.Context, event events.Event) error {
	switch event.Type {
	case events.TransferCompleted, events.FundsWithdrawn, events.FundsDeposited:
		var data events.TransferCompletedEvent
		if err := events.DecodeData(event, &data); err != nil {
			return err
		}
		r.InvalidateView(ctx, data.SenderID)
		if data.RecipientID != data.SenderID {
			r.InvalidateView(ctx, data.RecipientID)
		}
	case events.AccountFrozen, events.AccountUnfrozen, events.AccountClosed:
		var data events.AccountStatusEvent
		if err := events.DecodeData(event, &data); err != nil {
			return err
		}
		r.InvalidateView(ctx, data.AccountID)
	default:
		log.Printf("Ignoring ledger event: %s", event.Type)
	}
	return nil
}
