package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"marketplace-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// ReferralSettingsRepo implements ports.ReferralSettingsRepository. One row
// per (referral_type, region); the empty region is the global fallback.
type ReferralSettingsRepo struct {
	pool Pool
}

// NewReferralSettingsRepo creates a new ReferralSettingsRepo.
func NewReferralSettingsRepo(pool Pool) *ReferralSettingsRepo {
	return &ReferralSettingsRepo{pool: pool}
}

const referralSettingsColumns = `id, referral_type, region, referrer_bonus, referee_bonus,
		usage_limit_mode, usage_count, min_order_amount, min_booking_amount,
		payout_cycle_days, created_at, updated_at`

// Upsert creates or replaces the settings document for its type+region.
func (r *ReferralSettingsRepo) Upsert(ctx context.Context, s *domain.ReferralSettings) error {
	referrerBonus, err := json.Marshal(s.ReferrerBonus)
	if err != nil {
		return fmt.Errorf("marshal referrer bonus: %w", err)
	}
	refereeBonus, err := json.Marshal(s.RefereeBonus)
	if err != nil {
		return fmt.Errorf("marshal referee bonus: %w", err)
	}

	query := `INSERT INTO referral_settings (` + referralSettingsColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (referral_type, region) DO UPDATE SET
			referrer_bonus = EXCLUDED.referrer_bonus,
			referee_bonus = EXCLUDED.referee_bonus,
			usage_limit_mode = EXCLUDED.usage_limit_mode,
			usage_count = EXCLUDED.usage_count,
			min_order_amount = EXCLUDED.min_order_amount,
			min_booking_amount = EXCLUDED.min_booking_amount,
			payout_cycle_days = EXCLUDED.payout_cycle_days,
			updated_at = EXCLUDED.updated_at`

	_, err = r.pool.Exec(ctx, query,
		s.ID, s.ReferralType, s.Region, referrerBonus, refereeBonus,
		s.UsageLimitMode, s.UsageCount, s.MinOrderAmount, s.MinBookingAmount,
		s.PayoutCycleDays, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert referral settings: %w", translateError(err))
	}
	return nil
}

// Get fetches the settings for a type and region, falling back to the
// global document when no regional one exists. Returns nil when neither
// is configured.
func (r *ReferralSettingsRepo) Get(ctx context.Context, refType domain.ReferralType, region string) (*domain.ReferralSettings, error) {
	query := `SELECT ` + referralSettingsColumns + ` FROM referral_settings
		WHERE referral_type = $1 AND region IN ($2, '')
		ORDER BY region DESC LIMIT 1`

	s, err := scanReferralSettings(r.pool.QueryRow(ctx, query, refType, region))
	if err != nil {
		return nil, err
	}
	return s, nil
}

// List returns all configured referral settings documents.
func (r *ReferralSettingsRepo) List(ctx context.Context) ([]domain.ReferralSettings, error) {
	query := `SELECT ` + referralSettingsColumns + ` FROM referral_settings
		ORDER BY referral_type, region`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list referral settings: %w", err)
	}
	defer rows.Close()

	var all []domain.ReferralSettings
	for rows.Next() {
		s, err := scanReferralSettingsRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan referral settings row: %w", err)
		}
		all = append(all, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate referral settings: %w", err)
	}
	return all, nil
}

func scanReferralSettingsRow(row rowScanner) (*domain.ReferralSettings, error) {
	s := &domain.ReferralSettings{}
	var referrerBonus, refereeBonus []byte
	err := row.Scan(
		&s.ID, &s.ReferralType, &s.Region, &referrerBonus, &refereeBonus,
		&s.UsageLimitMode, &s.UsageCount, &s.MinOrderAmount, &s.MinBookingAmount,
		&s.PayoutCycleDays, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(referrerBonus, &s.ReferrerBonus); err != nil {
		return nil, fmt.Errorf("unmarshal referrer bonus: %w", err)
	}
	if err := json.Unmarshal(refereeBonus, &s.RefereeBonus); err != nil {
		return nil, fmt.Errorf("unmarshal referee bonus: %w", err)
	}
	return s, nil
}

func scanReferralSettings(row pgx.Row) (*domain.ReferralSettings, error) {
	s, err := scanReferralSettingsRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan referral settings: %w", translateError(err))
	}
	return s, nil
}

// WalletSettingsRepo implements ports.WalletSettingsRepository as a
// single-row table. Engines always read it fresh, so an admin update is
// visible to the very next decision.
type WalletSettingsRepo struct {
	pool Pool
}

// NewWalletSettingsRepo creates a new WalletSettingsRepo.
func NewWalletSettingsRepo(pool Pool) *WalletSettingsRepo {
	return &WalletSettingsRepo{pool: pool}
}

// Get fetches the wallet policy singleton, or nil when unconfigured.
func (r *WalletSettingsRepo) Get(ctx context.Context) (*domain.WalletSettings, error) {
	query := `SELECT settings, updated_at FROM wallet_settings WHERE singleton = TRUE`

	var doc []byte
	s := &domain.WalletSettings{}
	err := r.pool.QueryRow(ctx, query).Scan(&doc, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet settings: %w", translateError(err))
	}
	if err := json.Unmarshal(doc, s); err != nil {
		return nil, fmt.Errorf("unmarshal wallet settings: %w", err)
	}
	return s, nil
}

// Save stores the wallet policy singleton.
func (r *WalletSettingsRepo) Save(ctx context.Context, s *domain.WalletSettings) error {
	doc, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal wallet settings: %w", err)
	}

	query := `INSERT INTO wallet_settings (singleton, settings, updated_at)
		VALUES (TRUE, $1, $2)
		ON CONFLICT (singleton) DO UPDATE SET settings = EXCLUDED.settings, updated_at = EXCLUDED.updated_at`

	if _, err := r.pool.Exec(ctx, query, doc, s.UpdatedAt); err != nil {
		return fmt.Errorf("save wallet settings: %w", translateError(err))
	}
	return nil
}
