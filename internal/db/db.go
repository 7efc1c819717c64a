// Package db is the low-level query layer over Postgres. It follows the
// Querier convention: a narrow interface of single-purpose query methods, a
// *Queries implementation bound to either a pool or a transaction, and
// optional statement preparation at startup. The store package composes these
// queries into atomic multi-step operations; handlers may call single-query
// reads directly.
package db

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// New returns a Queries bound to db without preparing statements.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Prepare returns a Queries with every statement prepared against db. Because
// preparation validates each query against the live schema, calling this at
// startup makes the process refuse to run when the schema is out of sync.
func Prepare(ctx context.Context, db DBTX) (*Queries, error) {
	q := Queries{db: db}
	var err error
	if q.createSubscriberStmt, err = db.PrepareContext(ctx, createSubscriber); err != nil {
		return nil, fmt.Errorf("prepare CreateSubscriber: %w", err)
	}
	if q.getSubscriberByEmailStmt, err = db.PrepareContext(ctx, getSubscriberByEmail); err != nil {
		return nil, fmt.Errorf("prepare GetSubscriberByEmail: %w", err)
	}
	if q.getSubscriberByTokenStmt, err = db.PrepareContext(ctx, getSubscriberByToken); err != nil {
		return nil, fmt.Errorf("prepare GetSubscriberByToken: %w", err)
	}
	if q.insertConfirmationTokenStmt, err = db.PrepareContext(ctx, insertConfirmationToken); err != nil {
		return nil, fmt.Errorf("prepare InsertConfirmationToken: %w", err)
	}
	if q.confirmSubscriberStmt, err = db.PrepareContext(ctx, confirmSubscriber); err != nil {
		return nil, fmt.Errorf("prepare ConfirmSubscriber: %w", err)
	}
	if q.recordDeliveryStmt, err = db.PrepareContext(ctx, recordDelivery); err != nil {
		return nil, fmt.Errorf("prepare RecordDelivery: %w", err)
	}
	if q.deleteExpiredConfirmationTokensStmt, err = db.PrepareContext(ctx, deleteExpiredConfirmationTokens); err != nil {
		return nil, fmt.Errorf("prepare DeleteExpiredConfirmationTokens: %w", err)
	}
	return &q, nil
}

// Queries executes the query set against its bound DBTX, reusing prepared
// statements when they exist.
type Queries struct {
	db DBTX
	tx *sql.Tx

	createSubscriberStmt                *sql.Stmt
	getSubscriberByEmailStmt            *sql.Stmt
	getSubscriberByTokenStmt            *sql.Stmt
	insertConfirmationTokenStmt         *sql.Stmt
	confirmSubscriberStmt               *sql.Stmt
	recordDeliveryStmt                  *sql.Stmt
	deleteExpiredConfirmationTokensStmt *sql.Stmt
}

// WithTx returns a copy of q scoped to tx. Prepared statements are carried
// over and re-bound to the transaction at execution time.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	out := *q
	out.db = tx
	out.tx = tx
	return &out
}

func (q *Queries) queryRow(ctx context.Context, stmt *sql.Stmt, query string, args ...any) *sql.Row {
	switch {
	case stmt != nil && q.tx != nil:
		return q.tx.StmtContext(ctx, stmt).QueryRowContext(ctx, args...)
	case stmt != nil:
		return stmt.QueryRowContext(ctx, args...)
	default:
		return q.db.QueryRowContext(ctx, query, args...)
	}
}

func (q *Queries) exec(ctx context.Context, stmt *sql.Stmt, query string, args ...any) (sql.Result, error) {
	switch {
	case stmt != nil && q.tx != nil:
		return q.tx.StmtContext(ctx, stmt).ExecContext(ctx, args...)
	case stmt != nil:
		return stmt.ExecContext(ctx, args...)
	default:
		return q.db.ExecContext(ctx, query, args...)
	}
}
