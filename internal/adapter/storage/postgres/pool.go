package postgres

import (
	"context"
	"errors"

	"marketplace-wallet/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Pool is the subset of pgxpool.Pool the repositories need. pgxmock
// implements it for tests.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgreSQL error codes that map to domain-level outcomes.
const (
	codeUniqueViolation  = "23505"
	codeSerialization    = "40001"
	codeDeadlockDetected = "40P01"
)

// translateError maps low-level pgx errors onto the API error taxonomy:
// unique violations become duplicate-entry conflicts, serialization and
// deadlock failures become retryable concurrency conflicts. Everything
// else passes through unchanged.
func translateError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return apperror.ErrDuplicateEntry()
	case codeSerialization, codeDeadlockDetected:
		return apperror.ErrConcurrencyConflict(err)
	}
	return err
}
