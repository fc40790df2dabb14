package ledger

import "errors"

// Kind is a stable classification for ledger failures. The HTTP layer maps
// kinds to transport codes; the engine and stores only ever deal in kinds.
type Kind string

const (
	// KindValidation covers malformed or missing input: non-positive
	// amounts, empty identifiers. Recoverable by correcting the request.
	KindValidation Kind = "validation"

	// KindNotFound means the account or target does not exist.
	KindNotFound Kind = "not_found"

	// KindForbidden covers role and self-action violations.
	KindForbidden Kind = "forbidden"

	// KindInvalidState means the current account status disallows the
	// requested transition, e.g. freezing an already-frozen account.
	KindInvalidState Kind = "invalid_state"

	// KindInsufficientBalance means a debit would overdraw the account.
	KindInsufficientBalance Kind = "insufficient_balance"

	// KindAllocationExhausted means account-number allocation ran out of
	// retries. The whole registration is safe to retry.
	KindAllocationExhausted Kind = "allocation_exhausted"

	// KindConflict means a concurrent write was detected (unique violation,
	// deadlock, serialization failure). The whole operation may be retried.
	KindConflict Kind = "conflict"

	// KindInternal is an unexpected store failure. The scope is always
	// aborted; nothing partial is ever committed.
	KindInternal Kind = "internal"
)

// Error is a ledger failure with a stable kind and a human-readable message.
// Messages never carry balances or amounts.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.cause }

// Sentinel conflicts reported by AccountStore.Insert. The engine retries
// allocation on an account-number collision and surfaces a duplicate email
// to the caller.
var (
	ErrEmailTaken         = &Error{Kind: KindConflict, Message: "email already in use"}
	ErrAccountNumberTaken = &Error{Kind: KindConflict, Message: "account number already in use"}
)

// NewError builds a ledger error of the given kind.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapInternal classifies an unexpected store error without losing the cause.
func WrapInternal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, cause: cause}
}

// KindOf extracts the kind from err, or KindInternal for anything that is not
// a ledger error.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindInternal
}
