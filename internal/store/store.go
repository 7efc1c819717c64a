// Package store wraps db.Querier with transaction support and groups the
// multi-step write operations that must execute atomically: starting a
// subscription and redeeming a confirmation token.
//
// Single-query reads and the append-only deliveries log should be called
// directly on db.Querier; there is no value in proxying them through this
// package.
//
// Dependency rule: store imports db only. It never imports api, email, or
// worker.
package store

import (
	"context"
	"errors"
	"fmt"

	"database/sql"

	"github.com/lib/pq"
	"github.com/perchpress/newsletter-backend/internal/db"
)

// Store holds a *sql.DB for starting transactions and a db.Querier for
// executing queries outside of transactions.
type Store struct {
	// pool is the raw connection pool, used only to begin transactions.
	pool *sql.DB

	// q is the Querier used for non-transactional calls. Callers holding a
	// *Store can also access it directly via store.Q().
	q db.Querier
}

// New creates a Store from a live connection pool. The pool must already be
// open and verified (e.g. via db.PingContext) before calling New.
func New(pool *sql.DB, q db.Querier) *Store {
	return &Store{pool: pool, q: q}
}

// Q exposes the underlying Querier so callers can run single-query operations
// without going through a store method.
func (s *Store) Q() db.Querier {
	return s.q
}

// txQuerier is a function that receives a transactional Querier and returns an
// error. Returning a non-nil error causes withTx to roll back automatically.
type txQuerier func(ctx context.Context, q db.Querier) error

// withTx begins a transaction, passes a Querier scoped to that transaction to
// fn, and commits on success or rolls back on any error (including panics).
//
// Serializable isolation is used because both multi-step write operations are
// read-then-write: they check for an existing subscriber before inserting or
// updating, and the email-uniqueness invariant must hold against concurrent
// writers.
func (s *Store) withTx(ctx context.Context, fn txQuerier) error {
	tx, err := s.pool.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}

	// Roll back on panic so the connection is never left in a broken state.
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p) // re-panic after rollback
		}
	}()

	txQ := s.q.(*db.Queries).WithTx(tx)

	if err := fn(ctx, txQ); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			// Wrap both errors so the caller sees both failure reasons.
			return fmt.Errorf("store: fn error: %w; rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit transaction: %w", err)
	}
	return nil
}

// isWriteConflict reports whether err is a unique_violation or a
// serialization_failure, the two ways a concurrent writer can beat this
// transaction to the same email address. Both resolve by re-running the
// read-then-write, which then observes the winner's committed row.
func isWriteConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "23505" || pqErr.Code == "40001"
}
