// Package tx carries a SQL transaction through context so stores participating
// in one command (case row update, event append, block insert) commit or roll
// back together.
package tx

import (
	"context"
	"database/sql"
	"fmt"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Runner opens transactions against a database. Services hold a Runner and
// wrap each command in WithinTx; memory stores ignore the context transaction
// so the same service code runs in unit tests.
type Runner struct {
	db *sql.DB
}

// NewRunner builds a Runner. A nil db yields a pass-through runner for
// memory-backed wiring.
func NewRunner(db *sql.DB) *Runner {
	return &Runner{db: db}
}

// WithinTx runs fn inside a transaction carried on the context. Nested calls
// reuse the outer transaction. With a nil db, fn runs directly.
func (r *Runner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil || r.db == nil {
		return fn(ctx)
	}
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}

	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(WithTx(ctx, sqlTx)); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
