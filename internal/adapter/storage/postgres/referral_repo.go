package postgres

import (
	"context"
	"errors"
	"fmt"

	"marketplace-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ReferralRepo implements ports.ReferralRepository.
type ReferralRepo struct {
	pool Pool
}

// NewReferralRepo creates a new ReferralRepo.
func NewReferralRepo(pool Pool) *ReferralRepo {
	return &ReferralRepo{pool: pool}
}

const referralColumns = `id, reference, referral_type, referrer_id, referee_id, status,
		bonus_description, referrer_bonus, referee_bonus, created_at, updated_at, bonus_paid_at`

// Create inserts a new referral record.
func (r *ReferralRepo) Create(ctx context.Context, rec *domain.ReferralRecord) error {
	query := `INSERT INTO referral_records (` + referralColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.pool.Exec(ctx, query,
		rec.ID, rec.Reference, rec.ReferralType,
		rec.ReferrerID.UUID(), rec.RefereeID.UUID(), rec.Status,
		rec.BonusDescription, rec.ReferrerBonus, rec.RefereeBonus,
		rec.CreatedAt, rec.UpdatedAt, rec.BonusPaidAt,
	)
	if err != nil {
		return fmt.Errorf("insert referral record: %w", translateError(err))
	}
	return nil
}

// GetByID fetches a referral record without locking.
func (r *ReferralRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ReferralRecord, error) {
	query := `SELECT ` + referralColumns + ` FROM referral_records WHERE id = $1`
	return scanReferral(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate locks the referral record row inside the crediting
// transaction so racing trigger events serialize on it.
func (r *ReferralRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.ReferralRecord, error) {
	query := `SELECT ` + referralColumns + ` FROM referral_records WHERE id = $1 FOR UPDATE`
	return scanReferral(tx.QueryRow(ctx, query, id))
}

// FindCreditableByReferee returns the oldest non-BonusPaid record of the
// given type where the user is referee, or nil.
func (r *ReferralRepo) FindCreditableByReferee(ctx context.Context, refereeID domain.AccountID, refType domain.ReferralType) (*domain.ReferralRecord, error) {
	query := `SELECT ` + referralColumns + ` FROM referral_records
		WHERE referee_id = $1 AND referral_type = $2 AND status != 'BonusPaid'
		ORDER BY created_at ASC LIMIT 1`
	return scanReferral(r.pool.QueryRow(ctx, query, refereeID.UUID(), refType))
}

// MarkBonusPaid transitions the record to BonusPaid within a transaction.
// The status guard makes the transition a no-op if another transaction
// already settled it.
func (r *ReferralRepo) MarkBonusPaid(ctx context.Context, tx pgx.Tx, id uuid.UUID, referrerBonus, refereeBonus int64) error {
	query := `UPDATE referral_records
		SET status = 'BonusPaid', referrer_bonus = $1, referee_bonus = $2,
			bonus_paid_at = NOW(), updated_at = NOW()
		WHERE id = $3 AND status != 'BonusPaid'`

	tag, err := tx.Exec(ctx, query, referrerBonus, refereeBonus, id)
	if err != nil {
		return fmt.Errorf("mark bonus paid: %w", translateError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("referral %s not in a creditable status", id)
	}
	return nil
}

func scanReferral(row pgx.Row) (*domain.ReferralRecord, error) {
	rec := &domain.ReferralRecord{}
	var referrerID, refereeID uuid.UUID
	err := row.Scan(
		&rec.ID, &rec.Reference, &rec.ReferralType,
		&referrerID, &refereeID, &rec.Status,
		&rec.BonusDescription, &rec.ReferrerBonus, &rec.RefereeBonus,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.BonusPaidAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan referral record: %w", translateError(err))
	}
	rec.ReferrerID = domain.AccountIDFromUUID(referrerID)
	rec.RefereeID = domain.AccountIDFromUUID(refereeID)
	return rec, nil
}
