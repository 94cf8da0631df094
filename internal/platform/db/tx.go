package db

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgx shared by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type contextKey string

// TxKey is the context key holding the active transaction.
const TxKey contextKey = "db_tx"

// QuerierFromContext returns the transaction stored on ctx, or nil.
func QuerierFromContext(ctx context.Context) Querier {
	q, _ := ctx.Value(TxKey).(Querier)
	return q
}

const afterCommitKey contextKey = "db_after_commit"

type commitHooks struct {
	mu  sync.Mutex
	fns []func()
}

func (h *commitHooks) run() {
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func withCommitHooks(ctx context.Context) (context.Context, *commitHooks) {
	h := &commitHooks{}
	return context.WithValue(ctx, afterCommitKey, h), h
}

// AfterCommit defers fn until the transaction on ctx commits. It is dropped
// on rollback and runs immediately when ctx carries no transaction.
func AfterCommit(ctx context.Context, fn func()) {
	h, ok := ctx.Value(afterCommitKey).(*commitHooks)
	if !ok {
		fn()
		return
	}
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

// TxRunner runs fn so that every repository call made with the ctx it
// receives shares one transaction.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Transactor is the pgx-backed TxRunner.
type Transactor struct {
	pool *pgxpool.Pool
}

func NewTransactor(pool *pgxpool.Pool) *Transactor {
	return &Transactor{pool: pool}
}

// WithinTx begins a transaction, commits when fn returns nil and rolls back
// otherwise. Nested calls join the outer transaction.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if QuerierFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	txCtx, hooks := withCommitHooks(context.WithValue(ctx, TxKey, Querier(tx)))
	if err := fn(txCtx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	hooks.run()
	return nil
}

// Direct runs fn without a transaction. In-memory stores use it. AfterCommit
// hooks run when fn succeeds, as they would on commit.
type Direct struct{}

func (Direct) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, nested := ctx.Value(afterCommitKey).(*commitHooks); nested {
		return fn(ctx)
	}
	hookCtx, hooks := withCommitHooks(ctx)
	if err := fn(hookCtx); err != nil {
		return err
	}
	hooks.run()
	return nil
}

const uniqueViolation = "23505"

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation, optionally on the named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
