package ledger

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
)

// allocatorAttempts bounds the collision-retry loop. Six attempts against a
// 10-digit space means exhaustion only happens when the store is nearly full
// or the uniqueness check is broken.
const allocatorAttempts = 6

// AccountNumberAllocator draws random 10-digit account numbers and pre-checks
// them against the store. The pre-check is best effort: two concurrent
// allocations can both pass it, in which case the store's unique constraint
// rejects the second insert and the caller retries the whole allocation.
type AccountNumberAllocator struct {
	store AccountStore
}

func NewAccountNumberAllocator(store AccountStore) *AccountNumberAllocator {
	return &AccountNumberAllocator{store: store}
}

// Allocate returns a candidate account number that was unused at check time.
// Fails with KindAllocationExhausted once the attempt budget runs out.
func (a *AccountNumberAllocator) Allocate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < allocatorAttempts; attempt++ {
		candidate, err := randomAccountNumber()
		if err != nil {
			return "", WrapInternal("failed to draw account number", err)
		}
		exists, err := a.store.AccountNumberExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", NewError(KindAllocationExhausted, "failed to generate account number")
}

// randomAccountNumber draws a uniform 10-digit decimal string. The range
// [1000000000, 9999999999] keeps the leading digit non-zero so the width
// is fixed.
func randomAccountNumber() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+1000000000), nil
}
