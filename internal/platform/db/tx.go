package db

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type txKey struct{}

// Querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx that the
// repositories need.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// TxFromContext retrieves the transaction started by WithTx, if any.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}

// Conn returns the transaction bound to ctx, falling back to the pool.
func Conn(ctx context.Context, pool *pgxpool.Pool) Querier {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// WithTx begins a transaction on pool and returns a context carrying it.
// Repositories resolving their connection through Conn join the transaction.
func WithTx(ctx context.Context, pool *pgxpool.Pool) (context.Context, pgx.Tx, error) {
	if pool == nil {
		return ctx, nil, fmt.Errorf("no database pool")
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		return ctx, nil, fmt.Errorf("begin transaction: %w", err)
	}
	return context.WithValue(ctx, txKey{}, tx), tx, nil
}

// InTx runs fn inside a transaction. The transaction commits when fn returns
// nil and rolls back otherwise. Nested calls reuse the outer transaction.
func InTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	txCtx, tx, err := WithTx(ctx, pool)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(txCtx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// LockOwner takes a transaction-scoped advisory lock for one owner within a
// namespace. It serializes check-then-write sequences (booking) per owner.
// The key covers the full 64-bit owner id.
func LockOwner(ctx context.Context, q Querier, namespace int32, ownerID int64) error {
	_, err := q.Exec(ctx, lockOwnerSQL, ownerLockKey(namespace, ownerID))
	if err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	return nil
}

const lockOwnerSQL = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`

func ownerLockKey(namespace int32, ownerID int64) string {
	return strconv.FormatInt(int64(namespace), 10) + ":" + strconv.FormatInt(ownerID, 10)
}

// Transactor runs a function inside a transaction. Services depend on it
// instead of a pool so tests can substitute a pass-through implementation.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type poolTransactor struct{ pool *pgxpool.Pool }

// NewTransactor returns a Transactor backed by pool.
func NewTransactor(pool *pgxpool.Pool) Transactor { return &poolTransactor{pool: pool} }

func (t *poolTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return InTx(ctx, t.pool, fn)
}
