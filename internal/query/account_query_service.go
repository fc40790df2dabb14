package query

import (
	"context"

	"github.com/finchbank/ledger-service/internal/domain"
	"github.com/finchbank/ledger-service/internal/ledger"
	"github.com/finchbank/ledger-service/internal/repository"
)

// AccountQueryService serves the read side: profile views, movement history
// and lifetime totals. Reads are side-effect-free apart from cache warming.
type AccountQueryService struct {
	readRepo *repository.AccountReadRepository
	records  ledger.TransactionRecorder
}

func NewAccountQueryService(readRepo *repository.AccountReadRepository, records ledger.TransactionRecorder) *AccountQueryService {
	return &AccountQueryService{readRepo: readRepo, records: records}
}

// Profile returns the caller's own account view.
func (s *AccountQueryService) Profile(ctx context.Context, caller ledger.Caller) (*domain.AccountView, error) {
	return s.readRepo.GetViewByID(ctx, caller.AccountID)
}

// History returns the caller's most recent movements, newest first.
func (s *AccountQueryService) History(ctx context.Context, caller ledger.Caller, limit int) ([]domain.TransactionRecord, error) {
	return s.records.ListFor(ctx, caller.AccountID, limit)
}

// Totals returns how much the caller has sent and received in total.
func (s *AccountQueryService) Totals(ctx context.Context, caller ledger.Caller) (*domain.TransferTotals, error) {
	return s.records.AggregateTotals(ctx, caller.AccountID)
}
