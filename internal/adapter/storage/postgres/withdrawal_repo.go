package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace-wallet/internal/core/domain"
	"marketplace-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WithdrawalRepo implements ports.WithdrawalRepository.
type WithdrawalRepo struct {
	pool Pool
}

// NewWithdrawalRepo creates a new WithdrawalRepo.
func NewWithdrawalRepo(pool Pool) *WithdrawalRepo {
	return &WithdrawalRepo{pool: pool}
}

const withdrawalColumns = `id, reference, account_id, amount, fee, net_amount, bank_details,
		risk_score, risk_flags, status, reason, requested_at, processed_at, completed_at`

// Create inserts a classified withdrawal request.
func (r *WithdrawalRepo) Create(ctx context.Context, w *domain.WithdrawalRequest) error {
	bank, err := json.Marshal(w.Bank)
	if err != nil {
		return fmt.Errorf("marshal bank details: %w", err)
	}
	flags, err := json.Marshal(w.RiskFlags)
	if err != nil {
		return fmt.Errorf("marshal risk flags: %w", err)
	}

	query := `INSERT INTO withdrawal_requests (` + withdrawalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = r.pool.Exec(ctx, query,
		w.ID, w.Reference, w.AccountID.UUID(), w.Amount, w.Fee, w.NetAmount, bank,
		w.RiskScore, flags, w.Status, w.Reason, w.RequestedAt, w.ProcessedAt, w.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert withdrawal request: %w", translateError(err))
	}
	return nil
}

// GetByID fetches a withdrawal request.
func (r *WithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1`
	return scanWithdrawal(r.pool.QueryRow(ctx, query, id))
}

// GetByReference fetches a withdrawal request by its unique reference.
func (r *WithdrawalRepo) GetByReference(ctx context.Context, reference string) (*domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE reference = $1`
	return scanWithdrawal(r.pool.QueryRow(ctx, query, reference))
}

// UpdateStatus transitions a request within a database transaction.
// Terminal timestamps are stamped according to the new status.
func (r *WithdrawalRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.WithdrawalStatus, reason string) error {
	query := `UPDATE withdrawal_requests
		SET status = $1, reason = $2, processed_at = COALESCE(processed_at, NOW()),
			completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END
		WHERE id = $3`

	tag, err := tx.Exec(ctx, query, status, reason, id)
	if err != nil {
		return fmt.Errorf("update withdrawal status: %w", translateError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("withdrawal not found: %s", id)
	}
	return nil
}

// List fetches withdrawal requests for the monitoring views.
func (r *WithdrawalRepo) List(ctx context.Context, params ports.WithdrawalListParams) ([]domain.WithdrawalRequest, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.AccountID != nil {
		conditions = append(conditions, fmt.Sprintf("account_id = $%d", argIdx))
		args = append(args, params.AccountID.UUID())
		argIdx++
	}
	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM withdrawal_requests %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count withdrawal requests: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT `+withdrawalColumns+` FROM withdrawal_requests %s
		ORDER BY requested_at DESC LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list withdrawal requests: %w", err)
	}
	defer rows.Close()

	var reqs []domain.WithdrawalRequest
	for rows.Next() {
		w, err := scanWithdrawalRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan withdrawal row: %w", err)
		}
		reqs = append(reqs, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate withdrawal rows: %w", err)
	}
	return reqs, total, nil
}

// CountSince counts non-rejected requests created at or after the cutoff.
func (r *WithdrawalRepo) CountSince(ctx context.Context, accountID domain.AccountID, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM withdrawal_requests
		WHERE account_id = $1 AND requested_at >= $2 AND status != 'rejected_by_system'`

	var count int
	if err := r.pool.QueryRow(ctx, query, accountID.UUID(), since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count withdrawals since: %w", err)
	}
	return count, nil
}

// SumCompletedSince sums completed withdrawal amounts since the cutoff.
func (r *WithdrawalRepo) SumCompletedSince(ctx context.Context, accountID domain.AccountID, since time.Time) (int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM withdrawal_requests
		WHERE account_id = $1 AND requested_at >= $2 AND status IN ('processing', 'completed', 'pending')`

	var sum int64
	if err := r.pool.QueryRow(ctx, query, accountID.UUID(), since).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum withdrawals since: %w", err)
	}
	return sum, nil
}

// LatestRequestedAt returns the most recent request time for the account.
func (r *WithdrawalRepo) LatestRequestedAt(ctx context.Context, accountID domain.AccountID) (*time.Time, error) {
	query := `SELECT requested_at FROM withdrawal_requests
		WHERE account_id = $1 AND status != 'rejected_by_system'
		ORDER BY requested_at DESC LIMIT 1`

	var at time.Time
	err := r.pool.QueryRow(ctx, query, accountID.UUID()).Scan(&at)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest withdrawal time: %w", translateError(err))
	}
	return &at, nil
}

func scanWithdrawalRow(row rowScanner) (*domain.WithdrawalRequest, error) {
	w := &domain.WithdrawalRequest{}
	var accountID uuid.UUID
	var bank, flags []byte
	err := row.Scan(
		&w.ID, &w.Reference, &accountID, &w.Amount, &w.Fee, &w.NetAmount, &bank,
		&w.RiskScore, &flags, &w.Status, &w.Reason, &w.RequestedAt, &w.ProcessedAt, &w.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	w.AccountID = domain.AccountIDFromUUID(accountID)
	if len(bank) > 0 {
		if err := json.Unmarshal(bank, &w.Bank); err != nil {
			return nil, fmt.Errorf("unmarshal bank details: %w", err)
		}
	}
	if len(flags) > 0 {
		if err := json.Unmarshal(flags, &w.RiskFlags); err != nil {
			return nil, fmt.Errorf("unmarshal risk flags: %w", err)
		}
	}
	return w, nil
}

func scanWithdrawal(row pgx.Row) (*domain.WithdrawalRequest, error) {
	w, err := scanWithdrawalRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan withdrawal request: %w", translateError(err))
	}
	return w, nil
}
