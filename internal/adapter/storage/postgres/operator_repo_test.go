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

func newTestOperator() *domain.Operator {
	return &domain.Operator{
		ID:           uuid.New(),
		Username:     "ops_admin",
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		Role:         "admin",
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

func operatorRow(o *domain.Operator) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "username", "password_hash", "role", "created_at"}).
		AddRow(o.ID, o.Username, o.PasswordHash, o.Role, o.CreatedAt)
}

func TestOperatorRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOperatorRepo(mock)
	o := newTestOperator()

	mock.ExpectExec("INSERT INTO operators").
		WithArgs(o.ID, o.Username, o.PasswordHash, o.Role, o.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), o)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOperatorRepo_GetByUsername(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOperatorRepo(mock)
	o := newTestOperator()

	mock.ExpectQuery("SELECT .+ FROM operators WHERE username").
		WithArgs(o.Username).
		WillReturnRows(operatorRow(o))

	result, err := repo.GetByUsername(context.Background(), o.Username)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, o.ID, result.ID)
	assert.Equal(t, o.PasswordHash, result.PasswordHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOperatorRepo_GetByUsername_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOperatorRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM operators WHERE username").
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "password_hash", "role", "created_at"}))

	result, err := repo.GetByUsername(context.Background(), "ghost")
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOperatorRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOperatorRepo(mock)
	o := newTestOperator()

	mock.ExpectQuery("SELECT .+ FROM operators WHERE id").
		WithArgs(o.ID).
		WillReturnRows(operatorRow(o))

	result, err := repo.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, o.Username, result.Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}
