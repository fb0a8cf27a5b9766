package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"marketplace-wallet/internal/core/domain"
	"marketplace-wallet/internal/core/ports"
	"marketplace-wallet/internal/core/ports/mocks"
	"marketplace-wallet/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type ledgerTestDeps struct {
	svc         *LedgerServiceImpl
	accountRepo *mocks.MockAccountRepository
	ledgerRepo  *mocks.MockLedgerRepository
	idempCache  *mocks.MockIdempotencyCache
	transactor  *mocks.MockDBTransactor
	ctrl        *gomock.Controller
}

func setupLedgerService(t *testing.T) *ledgerTestDeps {
	ctrl := gomock.NewController(t)
	d := &ledgerTestDeps{
		accountRepo: mocks.NewMockAccountRepository(ctrl),
		ledgerRepo:  mocks.NewMockLedgerRepository(ctrl),
		idempCache:  mocks.NewMockIdempotencyCache(ctrl),
		transactor:  mocks.NewMockDBTransactor(ctrl),
		ctrl:        ctrl,
	}
	d.svc = NewLedgerService(d.accountRepo, d.ledgerRepo, d.idempCache, d.transactor, zerolog.Nop())
	return d
}

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

func testAccount(balance int64) *domain.Account {
	return &domain.Account{
		ID:        domain.NewAccountID(),
		OwnerName: "Asha",
		Role:      domain.RoleCustomer,
		Balance:   balance,
		CreatedAt: time.Now().UTC().Add(-30 * 24 * time.Hour),
	}
}

// ==================== RecordTransaction Tests ====================

func TestLedgerService_RecordTransaction_Credit(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	account := testAccount(1000)
	tx := &mockTx{}

	req := ports.RecordTransactionRequest{
		AccountID:      account.ID,
		Direction:      domain.DirectionCredit,
		Amount:         500,
		Source:         domain.SourceAddMoney,
		IdempotencyKey: "WTX_1_CREDIT",
	}

	d.idempCache.EXPECT().Get(ctx, "WTX_1_CREDIT").Return(nil, nil)
	d.ledgerRepo.EXPECT().GetByIdempotencyKey(ctx, "WTX_1_CREDIT").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, account.ID).Return(account, nil)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, account.ID, int64(1500)).Return(nil)
	d.ledgerRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.idempCache.EXPECT().Set(ctx, "WTX_1_CREDIT", gomock.Any(), idempotencyTTL).Return(nil)

	entry, err := d.svc.RecordTransaction(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, int64(1000), entry.BalanceBefore)
	assert.Equal(t, int64(1500), entry.BalanceAfter)
	assert.Equal(t, domain.EntryStatusCompleted, entry.Status)
	assert.Equal(t, "WTX_1_CREDIT", entry.IdempotencyKey)
}

func TestLedgerService_RecordTransaction_DebitInsufficientBalance(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	account := testAccount(100)
	tx := &mockTx{}

	req := ports.RecordTransactionRequest{
		AccountID:      account.ID,
		Direction:      domain.DirectionDebit,
		Amount:         500,
		Source:         domain.SourceWithdrawal,
		IdempotencyKey: "WTX_2_DEBIT",
	}

	d.idempCache.EXPECT().Get(ctx, "WTX_2_DEBIT").Return(nil, nil)
	d.ledgerRepo.EXPECT().GetByIdempotencyKey(ctx, "WTX_2_DEBIT").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, account.ID).Return(account, nil)

	entry, err := d.svc.RecordTransaction(ctx, req)
	assert.Nil(t, entry)
	assertAppError(t, err, "LED_001")
}

func TestLedgerService_RecordTransaction_InvalidAmount(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	req := ports.RecordTransactionRequest{
		AccountID: domain.NewAccountID(),
		Direction: domain.DirectionCredit,
		Amount:    0,
		Source:    domain.SourceAddMoney,
	}

	entry, err := d.svc.RecordTransaction(context.Background(), req)
	assert.Nil(t, entry)
	assertAppError(t, err, "VAL_001")
}

func TestLedgerService_RecordTransaction_RedisHit(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := domain.NewAccountID()

	cachedEntry := &domain.LedgerEntry{
		AccountID:      accountID,
		Direction:      domain.DirectionCredit,
		Amount:         500,
		BalanceAfter:   1500,
		Status:         domain.EntryStatusCompleted,
		IdempotencyKey: "WTX_3_CACHED",
	}
	cachedJSON, _ := json.Marshal(cachedEntry)

	d.idempCache.EXPECT().Get(ctx, "WTX_3_CACHED").Return(cachedJSON, nil)

	entry, err := d.svc.RecordTransaction(ctx, ports.RecordTransactionRequest{
		AccountID:      accountID,
		Direction:      domain.DirectionCredit,
		Amount:         500,
		Source:         domain.SourceAddMoney,
		IdempotencyKey: "WTX_3_CACHED",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1500), entry.BalanceAfter)
	assert.Equal(t, "WTX_3_CACHED", entry.IdempotencyKey)
}

func TestLedgerService_RecordTransaction_DBIdempotencyHit(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := domain.NewAccountID()

	existing := &domain.LedgerEntry{
		AccountID:      accountID,
		Direction:      domain.DirectionCredit,
		Amount:         500,
		BalanceAfter:   1500,
		Status:         domain.EntryStatusCompleted,
		IdempotencyKey: "WTX_4_DB",
	}

	// Redis misses but the DB unique key finds the original entry; the
	// cache gets backfilled and no new entry is written.
	d.idempCache.EXPECT().Get(ctx, "WTX_4_DB").Return(nil, nil)
	d.ledgerRepo.EXPECT().GetByIdempotencyKey(ctx, "WTX_4_DB").Return(existing, nil)
	d.idempCache.EXPECT().Set(ctx, "WTX_4_DB", gomock.Any(), idempotencyTTL).Return(nil)

	entry, err := d.svc.RecordTransaction(ctx, ports.RecordTransactionRequest{
		AccountID:      accountID,
		Direction:      domain.DirectionCredit,
		Amount:         500,
		Source:         domain.SourceAddMoney,
		IdempotencyKey: "WTX_4_DB",
	})
	require.NoError(t, err)
	assert.Equal(t, existing.BalanceAfter, entry.BalanceAfter)
}

func TestLedgerService_RecordTransaction_AccountNotFound(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := domain.NewAccountID()
	tx := &mockTx{}

	d.idempCache.EXPECT().Get(ctx, "WTX_5_MISSING").Return(nil, nil)
	d.ledgerRepo.EXPECT().GetByIdempotencyKey(ctx, "WTX_5_MISSING").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, accountID).Return(nil, nil)

	entry, err := d.svc.RecordTransaction(ctx, ports.RecordTransactionRequest{
		AccountID:      accountID,
		Direction:      domain.DirectionCredit,
		Amount:         500,
		Source:         domain.SourceAddMoney,
		IdempotencyKey: "WTX_5_MISSING",
	})
	assert.Nil(t, entry)
	assertAppError(t, err, "ACC_001")
}

func TestLedgerService_RecordTransaction_DuplicateRaceReturnsWinner(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	account := testAccount(1000)
	tx := &mockTx{}

	winner := &domain.LedgerEntry{
		AccountID:      account.ID,
		Amount:         500,
		BalanceAfter:   1500,
		IdempotencyKey: "WTX_6_RACE",
	}

	d.idempCache.EXPECT().Get(ctx, "WTX_6_RACE").Return(nil, nil)
	d.ledgerRepo.EXPECT().GetByIdempotencyKey(ctx, "WTX_6_RACE").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, account.ID).Return(account, nil)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, account.ID, int64(1500)).Return(nil)
	d.ledgerRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(apperror.ErrDuplicateEntry())
	d.ledgerRepo.EXPECT().GetByIdempotencyKey(ctx, "WTX_6_RACE").Return(winner, nil)

	entry, err := d.svc.RecordTransaction(ctx, ports.RecordTransactionRequest{
		AccountID:      account.ID,
		Direction:      domain.DirectionCredit,
		Amount:         500,
		Source:         domain.SourceAddMoney,
		IdempotencyKey: "WTX_6_RACE",
	})
	require.NoError(t, err)
	assert.Equal(t, winner, entry)
}

// ==================== VerifyBalance Tests ====================

func TestLedgerService_VerifyBalance_Match(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	account := testAccount(750)

	d.accountRepo.EXPECT().GetByID(ctx, account.ID).Return(account, nil)
	d.ledgerRepo.EXPECT().SumCompletedByAccount(ctx, account.ID).Return(int64(750), nil)

	stored, derived, ok, err := d.svc.VerifyBalance(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(750), stored)
	assert.Equal(t, int64(750), derived)
}

func TestLedgerService_VerifyBalance_Mismatch(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	account := testAccount(750)

	d.accountRepo.EXPECT().GetByID(ctx, account.ID).Return(account, nil)
	d.ledgerRepo.EXPECT().SumCompletedByAccount(ctx, account.ID).Return(int64(700), nil)

	stored, derived, ok, err := d.svc.VerifyBalance(ctx, account.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(750), stored)
	assert.Equal(t, int64(700), derived)
}

// ==================== GetBalance / ListEntries Tests ====================

func TestLedgerService_GetBalance_NotFound(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := domain.NewAccountID()

	d.accountRepo.EXPECT().GetByID(ctx, accountID).Return(nil, nil)

	account, err := d.svc.GetBalance(ctx, accountID)
	assert.Nil(t, account)
	assertAppError(t, err, "ACC_001")
}

func TestLedgerService_ListEntries_DefaultsPagination(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := domain.NewAccountID()

	d.ledgerRepo.EXPECT().
		ListByAccount(ctx, ports.LedgerListParams{AccountID: accountID, Page: 1, PageSize: 20}).
		Return([]domain.LedgerEntry{}, int64(0), nil)

	_, total, err := d.svc.ListEntries(ctx, ports.LedgerListParams{AccountID: accountID})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

// ==================== Helper ====================

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}
