package core

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
)

// withTx runs fn inside one transaction on db. A failure in Begin, fn or
// Commit is returned as a *TransactionError naming op. fn's error triggers a
// rollback; a failed Commit has already ended the transaction.
func withTx(ctx context.Context, db DB, op string, fn func(tx pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return &TransactionError{Op: op, Err: err}
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			slog.Warn("rollback failed", "op", op, "error", rbErr)
		}
		return &TransactionError{Op: op, Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return &TransactionError{Op: op, Err: err}
	}
	return nil
}
