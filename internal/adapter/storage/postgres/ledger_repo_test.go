package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"marketplace-wallet/internal/core/domain"
	"marketplace-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedgerEntry(accountID domain.AccountID) *domain.LedgerEntry {
	return &domain.LedgerEntry{
		ID:             uuid.New(),
		AccountID:      accountID,
		Direction:      domain.DirectionCredit,
		Amount:         5_000,
		BalanceBefore:  10_000,
		BalanceAfter:   15_000,
		Source:         domain.SourceAddMoney,
		Status:         domain.EntryStatusCompleted,
		IdempotencyKey: "WTX_1700000000000_ABCDEF1234",
		Metadata:       domain.Metadata{"order_id": "ORD_42"},
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
}

func ledgerColumnNames() []string {
	return []string{"id", "account_id", "direction", "amount", "balance_before", "balance_after",
		"source", "status", "idempotency_key", "metadata", "created_at"}
}

func ledgerRow(t *testing.T, e *domain.LedgerEntry) *pgxmock.Rows {
	t.Helper()
	metadata, err := json.Marshal(e.Metadata)
	require.NoError(t, err)
	return pgxmock.NewRows(ledgerColumnNames()).AddRow(
		e.ID, e.AccountID.UUID(), e.Direction, e.Amount,
		e.BalanceBefore, e.BalanceAfter, e.Source, e.Status,
		e.IdempotencyKey, metadata, e.CreatedAt,
	)
}

func TestLedgerRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	e := newTestLedgerEntry(domain.NewAccountID())
	metadata, err := json.Marshal(e.Metadata)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(e.ID, e.AccountID.UUID(), e.Direction, e.Amount,
			e.BalanceBefore, e.BalanceAfter, e.Source, e.Status,
			e.IdempotencyKey, metadata, e.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, e)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_GetByIdempotencyKey(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	e := newTestLedgerEntry(domain.NewAccountID())

	mock.ExpectQuery("FROM ledger_entries WHERE idempotency_key").
		WithArgs(e.IdempotencyKey).
		WillReturnRows(ledgerRow(t, e))

	result, err := repo.GetByIdempotencyKey(context.Background(), e.IdempotencyKey)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, e.ID, result.ID)
	assert.Equal(t, e.BalanceAfter, result.BalanceAfter)
	assert.Equal(t, "ORD_42", result.Metadata["order_id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_GetByIdempotencyKey_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)

	mock.ExpectQuery("FROM ledger_entries WHERE idempotency_key").
		WithArgs("WTX_MISSING").
		WillReturnRows(pgxmock.NewRows(ledgerColumnNames()))

	result, err := repo.GetByIdempotencyKey(context.Background(), "WTX_MISSING")
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_ListByAccount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	accountID := domain.NewAccountID()
	e := newTestLedgerEntry(accountID)
	source := domain.SourceAddMoney

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM ledger_entries`).
		WithArgs(accountID.UUID(), source).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("FROM ledger_entries WHERE account_id").
		WithArgs(accountID.UUID(), source, 20, 0).
		WillReturnRows(ledgerRow(t, e))

	entries, total, err := repo.ListByAccount(context.Background(), ports.LedgerListParams{
		AccountID: accountID,
		Source:    &source,
		Page:      1,
		PageSize:  20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.Equal(t, e.ID, entries[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_ListByAccount_SecondPageOffset(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	accountID := domain.NewAccountID()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM ledger_entries`).
		WithArgs(accountID.UUID()).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(25)))
	mock.ExpectQuery("FROM ledger_entries WHERE account_id").
		WithArgs(accountID.UUID(), 10, 10).
		WillReturnRows(pgxmock.NewRows(ledgerColumnNames()))

	entries, total, err := repo.ListByAccount(context.Background(), ports.LedgerListParams{
		AccountID: accountID,
		Page:      2,
		PageSize:  10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(25), total)
	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_SumCompletedByAccount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	accountID := domain.NewAccountID()

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(accountID.UUID()).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(int64(12_500)))

	sum, err := repo.SumCompletedByAccount(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(12_500), sum)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_CountByAccount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	accountID := domain.NewAccountID()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM ledger_entries`).
		WithArgs(accountID.UUID()).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))

	count, err := repo.CountByAccount(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
