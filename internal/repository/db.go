package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx, so repositories run the
// same SQL inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories groups table repositories bound to one DBTX.
type Repositories struct {
	Tickets    TicketRepository
	Contacts   ContactRepository
	Categories CategoryRepository
}

// NewRepositories binds every repository to db.
func NewRepositories(db DBTX) Repositories {
	return Repositories{
		Tickets:    NewTicketRepository(db),
		Contacts:   NewContactRepository(db),
		Categories: NewCategoryRepository(db),
	}
}

// TxScope is the view of an open transaction handed to callers.
type TxScope interface {
	Repos() Repositories
	// Isolate runs fn in a nested transaction (SAVEPOINT). An error from fn
	// rolls back only fn's writes; the outer transaction stays usable.
	Isolate(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// Transactor opens database transactions.
type Transactor interface {
	// WithinTransaction commits when fn returns nil and rolls back otherwise.
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx TxScope) error) error
}

// TxError reports a failure of the transaction machinery itself rather
// than of the work run inside it.
type TxError struct {
	Op  string
	Err error
}

func (e *TxError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *TxError) Unwrap() error { return e.Err }

type pgTransactor struct {
	pool *pgxpool.Pool
}

// NewTransactor builds a Transactor over a pgx pool.
func NewTransactor(pool *pgxpool.Pool) Transactor {
	return &pgTransactor{pool: pool}
}

func (t *pgTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx TxScope) error) error {
	if t.pool == nil {
		return fmt.Errorf("begin transaction: postgres not configured")
	}
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(ctx, &pgTxScope{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type pgTxScope struct {
	tx pgx.Tx
}

func (s *pgTxScope) Repos() Repositories {
	return NewRepositories(s.tx)
}

func (s *pgTxScope) Isolate(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	nested, err := s.tx.Begin(ctx)
	if err != nil {
		return &TxError{Op: "create savepoint", Err: err}
	}
	if err := fn(ctx, NewRepositories(nested)); err != nil {
		if rbErr := nested.Rollback(ctx); rbErr != nil {
			return &TxError{Op: "rollback savepoint", Err: rbErr}
		}
		return err
	}
	if err := nested.Commit(ctx); err != nil {
		return &TxError{Op: "release savepoint", Err: err}
	}
	return nil
}
