package core

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers match them with errors.Is; the concrete error
// usually carries more context through %w wrapping.
var (
	// ErrConnection marks failures to reach or prepare the database.
	ErrConnection = errors.New("database connection failed")

	// ErrInvalidArgument marks caller-correctable input problems such as a
	// non-numeric filter or an empty export set.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTransaction marks a rolled back transaction.
	ErrTransaction = errors.New("transaction failed")

	// ErrNotFound is returned by lookups that have nothing to return.
	ErrNotFound = errors.New("not found")
)

// TransactionError records which operation's transaction was rolled back.
// errors.Is(err, ErrTransaction) holds for every TransactionError and
// Unwrap exposes the driver error underneath.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s: transaction failed: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrTransaction.
func (e *TransactionError) Is(target error) bool {
	return target == ErrTransaction
}

func invalidArgf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
