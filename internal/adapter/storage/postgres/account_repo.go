package postgres

import (
	"context"
	"errors"
	"fmt"

	"marketplace-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

const accountColumns = `id, owner_name, role, balance, referred_by, created_at, updated_at`

// Create inserts a new wallet account.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	query := `INSERT INTO accounts (id, owner_name, role, balance, referred_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	var referredBy *uuid.UUID
	if a.ReferredBy != nil {
		id := a.ReferredBy.UUID()
		referredBy = &id
	}

	_, err := r.pool.Exec(ctx, query,
		a.ID.UUID(), a.OwnerName, a.Role, a.Balance,
		referredBy, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", translateError(err))
	}
	return nil
}

// GetByID fetches an account without locking.
func (r *AccountRepo) GetByID(ctx context.Context, id domain.AccountID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, id.UUID()))
}

// GetByIDForUpdate fetches an account with a pessimistic row lock.
// This MUST be called within a transaction; the lock serializes all
// balance mutations for the account.
func (r *AccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id domain.AccountID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
	return scanAccount(tx.QueryRow(ctx, query, id.UUID()))
}

// UpdateBalance stores the new running balance within a transaction.
func (r *AccountRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, id domain.AccountID, balance int64) error {
	query := `UPDATE accounts SET balance = $1, updated_at = NOW() WHERE id = $2`

	tag, err := tx.Exec(ctx, query, balance, id.UUID())
	if err != nil {
		return fmt.Errorf("update account balance: %w", translateError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account not found: %s", id)
	}
	return nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	a := &domain.Account{}
	var id uuid.UUID
	var referredBy *uuid.UUID
	err := row.Scan(&id, &a.OwnerName, &a.Role, &a.Balance, &referredBy, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan account: %w", translateError(err))
	}
	a.ID = domain.AccountIDFromUUID(id)
	if referredBy != nil {
		ref := domain.AccountIDFromUUID(*referredBy)
		a.ReferredBy = &ref
	}
	return a, nil
}
