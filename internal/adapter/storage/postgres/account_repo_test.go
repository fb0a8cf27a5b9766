package postgres

import (
	"context"
	"testing"
	"time"

	"marketplace-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAccount() *domain.Account {
	return &domain.Account{
		ID:        domain.NewAccountID(),
		OwnerName: "Asha Verma",
		Role:      domain.RoleCustomer,
		Balance:   10_000,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		UpdatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func accountColumnNames() []string {
	return []string{"id", "owner_name", "role", "balance", "referred_by", "created_at", "updated_at"}
}

func accountRow(a *domain.Account) *pgxmock.Rows {
	var referredBy *uuid.UUID
	if a.ReferredBy != nil {
		id := a.ReferredBy.UUID()
		referredBy = &id
	}
	return pgxmock.NewRows(accountColumnNames()).AddRow(
		a.ID.UUID(), a.OwnerName, a.Role, a.Balance,
		referredBy, a.CreatedAt, a.UpdatedAt,
	)
}

func TestAccountRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	a := newTestAccount()
	var referredBy *uuid.UUID

	mock.ExpectExec("INSERT INTO accounts").
		WithArgs(a.ID.UUID(), a.OwnerName, a.Role, a.Balance,
			referredBy, a.CreatedAt, a.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), a)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_Create_WithReferrer(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	a := newTestAccount()
	referrer := domain.NewAccountID()
	a.ReferredBy = &referrer
	referrerID := referrer.UUID()

	mock.ExpectExec("INSERT INTO accounts").
		WithArgs(a.ID.UUID(), a.OwnerName, a.Role, a.Balance,
			&referrerID, a.CreatedAt, a.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), a)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	a := newTestAccount()

	mock.ExpectQuery("SELECT .+ FROM accounts WHERE id").
		WithArgs(a.ID.UUID()).
		WillReturnRows(accountRow(a))

	result, err := repo.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, a.ID, result.ID)
	assert.Equal(t, a.Balance, result.Balance)
	assert.Nil(t, result.ReferredBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	id := domain.NewAccountID()

	mock.ExpectQuery("SELECT .+ FROM accounts WHERE id").
		WithArgs(id.UUID()).
		WillReturnRows(pgxmock.NewRows(accountColumnNames()))

	result, err := repo.GetByID(context.Background(), id)
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_GetByIDForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	a := newTestAccount()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM accounts WHERE id .+ FOR UPDATE").
		WithArgs(a.ID.UUID()).
		WillReturnRows(accountRow(a))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetByIDForUpdate(context.Background(), tx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, a.ID, result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_UpdateBalance(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	id := domain.NewAccountID()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE accounts SET balance").
		WithArgs(int64(15_000), id.UUID()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateBalance(context.Background(), tx, id, 15_000)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_UpdateBalance_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	id := domain.NewAccountID()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE accounts SET balance").
		WithArgs(int64(500), id.UUID()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateBalance(context.Background(), tx, id, 500)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "account not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}
