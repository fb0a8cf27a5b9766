package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"marketplace-wallet/internal/core/domain"
	"marketplace-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LedgerRepo implements ports.LedgerRepository. Entries are append-only:
// there is no update path for a completed entry.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

const ledgerColumns = `id, account_id, direction, amount, balance_before, balance_after,
		source, status, idempotency_key, metadata, created_at`

// Create inserts a ledger entry within a database transaction. The
// idempotency_key column carries a unique constraint, so a concurrent
// duplicate surfaces as a duplicate-entry conflict.
func (r *LedgerRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = tx.Exec(ctx, query,
		e.ID, e.AccountID.UUID(), e.Direction, e.Amount,
		e.BalanceBefore, e.BalanceAfter, e.Source, e.Status,
		e.IdempotencyKey, metadata, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", translateError(err))
	}
	return nil
}

// GetByIdempotencyKey fetches an entry by its unique idempotency key.
func (r *LedgerRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE idempotency_key = $1`
	return scanLedgerEntry(r.pool.QueryRow(ctx, query, key))
}

// ListByAccount fetches entries with filtering and pagination.
func (r *LedgerRepo) ListByAccount(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("account_id = $%d", argIdx))
	args = append(args, params.AccountID.UUID())
	argIdx++

	if params.Source != nil {
		conditions = append(conditions, fmt.Sprintf("source = $%d", argIdx))
		args = append(args, *params.Source)
		argIdx++
	}
	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM ledger_entries %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT `+ledgerColumns+` FROM ledger_entries %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntryRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan ledger row: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate ledger rows: %w", err)
	}
	return entries, total, nil
}

// SumCompletedByAccount computes the signed sum of completed entries.
func (r *LedgerRepo) SumCompletedByAccount(ctx context.Context, accountID domain.AccountID) (int64, error) {
	query := `SELECT COALESCE(SUM(CASE WHEN direction = 'credit' THEN amount ELSE -amount END), 0)
		FROM ledger_entries WHERE account_id = $1 AND status = 'completed'`

	var sum int64
	if err := r.pool.QueryRow(ctx, query, accountID.UUID()).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum completed entries: %w", err)
	}
	return sum, nil
}

// CountByAccount counts all entries for an account regardless of status.
func (r *LedgerRepo) CountByAccount(ctx context.Context, accountID domain.AccountID) (int64, error) {
	query := `SELECT COUNT(*) FROM ledger_entries WHERE account_id = $1`

	var count int64
	if err := r.pool.QueryRow(ctx, query, accountID.UUID()).Scan(&count); err != nil {
		return 0, fmt.Errorf("count ledger entries: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLedgerEntryRow(row rowScanner) (*domain.LedgerEntry, error) {
	e := &domain.LedgerEntry{}
	var accountID uuid.UUID
	var metadata []byte
	err := row.Scan(
		&e.ID, &accountID, &e.Direction, &e.Amount,
		&e.BalanceBefore, &e.BalanceAfter, &e.Source, &e.Status,
		&e.IdempotencyKey, &metadata, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.AccountID = domain.AccountIDFromUUID(accountID)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return e, nil
}

func scanLedgerEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	e, err := scanLedgerEntryRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan ledger entry: %w", translateError(err))
	}
	return e, nil
}
