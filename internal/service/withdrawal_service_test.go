package service

import (
	"context"
	"testing"
	"time"

	"marketplace-wallet/internal/core/domain"
	"marketplace-wallet/internal/core/ports"
	"marketplace-wallet/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type withdrawalTestDeps struct {
	svc            *WithdrawalServiceImpl
	withdrawalRepo *mocks.MockWithdrawalRepository
	accountRepo    *mocks.MockAccountRepository
	ledgerRepo     *mocks.MockLedgerRepository
	settingsRepo   *mocks.MockWalletSettingsRepository
	transactor     *mocks.MockDBTransactor
	ctrl           *gomock.Controller
}

func setupWithdrawalService(t *testing.T) *withdrawalTestDeps {
	ctrl := gomock.NewController(t)
	d := &withdrawalTestDeps{
		withdrawalRepo: mocks.NewMockWithdrawalRepository(ctrl),
		accountRepo:    mocks.NewMockAccountRepository(ctrl),
		ledgerRepo:     mocks.NewMockLedgerRepository(ctrl),
		settingsRepo:   mocks.NewMockWalletSettingsRepository(ctrl),
		transactor:     mocks.NewMockDBTransactor(ctrl),
		ctrl:           ctrl,
	}
	d.svc = NewWithdrawalService(
		d.withdrawalRepo, d.accountRepo, d.ledgerRepo,
		d.settingsRepo, d.transactor, zerolog.Nop(),
	)
	return d
}

func seasonedAccount(balance int64) *domain.Account {
	return &domain.Account{
		ID:        domain.NewAccountID(),
		OwnerName: "Ravi",
		Role:      domain.RoleVendor,
		Balance:   balance,
		CreatedAt: time.Now().UTC().AddDate(0, -6, 0),
	}
}

func testBank() domain.BankDetails {
	return domain.BankDetails{AccountHolder: "Ravi", AccountNumber: "12345678", IFSC: "HDFC0001"}
}

// ==================== EvaluateWithdrawal Tests ====================

func TestWithdrawalService_Evaluate_LowRiskRoutesToProcessing(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	account := seasonedAccount(100_000)

	d.settingsRepo.EXPECT().Get(ctx).Return(nil, nil) // falls back to defaults
	d.accountRepo.EXPECT().GetByID(ctx, account.ID).Return(account, nil)
	d.withdrawalRepo.EXPECT().CountSince(ctx, account.ID, gomock.Any()).Return(0, nil)
	d.ledgerRepo.EXPECT().CountByAccount(ctx, account.ID).Return(int64(12), nil)

	assessment, err := d.svc.EvaluateWithdrawal(ctx, account.ID, 1_000, testBank())
	require.NoError(t, err)
	assert.Equal(t, 0, assessment.Score)
	assert.Empty(t, assessment.Flags)
	assert.Equal(t, domain.WithdrawalStatusProcessing, assessment.Routing)
}

func TestWithdrawalService_Evaluate_NewAccountPlusRapidRejects(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	account := seasonedAccount(100_000)
	account.CreatedAt = time.Now().UTC().AddDate(0, 0, -2) // inside the 7-day window

	d.settingsRepo.EXPECT().Get(ctx).Return(nil, nil)
	d.accountRepo.EXPECT().GetByID(ctx, account.ID).Return(account, nil)
	d.withdrawalRepo.EXPECT().CountSince(ctx, account.ID, gomock.Any()).Return(3, nil)
	d.ledgerRepo.EXPECT().CountByAccount(ctx, account.ID).Return(int64(4), nil)

	assessment, err := d.svc.EvaluateWithdrawal(ctx, account.ID, 1_000, testBank())
	require.NoError(t, err)
	// new_account (35) + rapid_withdrawal (35) = 70, at the high threshold
	assert.Equal(t, 70, assessment.Score)
	assert.ElementsMatch(t, []string{domain.FlagNewAccount, domain.FlagRapidWithdrawal}, assessment.Flags)
	assert.Equal(t, domain.WithdrawalStatusRejected, assessment.Routing)
}

func TestWithdrawalService_Evaluate_MediumRiskHoldsForReview(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	account := seasonedAccount(30_000)

	d.settingsRepo.EXPECT().Get(ctx).Return(nil, nil)
	d.accountRepo.EXPECT().GetByID(ctx, account.ID).Return(account, nil)
	d.withdrawalRepo.EXPECT().CountSince(ctx, account.ID, gomock.Any()).Return(0, nil)
	d.ledgerRepo.EXPECT().CountByAccount(ctx, account.ID).Return(int64(0), nil)

	// first_transaction (20) + large_percentage (15) + large_amount (15) = 50
	assessment, err := d.svc.EvaluateWithdrawal(ctx, account.ID, 28_000, testBank())
	require.NoError(t, err)
	assert.Equal(t, 50, assessment.Score)
	assert.ElementsMatch(t, []string{
		domain.FlagFirstTransaction, domain.FlagLargePercentage, domain.FlagLargeAmount,
	}, assessment.Flags)
	assert.Equal(t, domain.WithdrawalStatusPending, assessment.Routing)
}

func TestWithdrawalService_Evaluate_ScoreIsCapped(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	account := seasonedAccount(30_000)
	account.CreatedAt = time.Now().UTC().AddDate(0, 0, -1)

	d.settingsRepo.EXPECT().Get(ctx).Return(nil, nil)
	d.accountRepo.EXPECT().GetByID(ctx, account.ID).Return(account, nil)
	d.withdrawalRepo.EXPECT().CountSince(ctx, account.ID, gomock.Any()).Return(5, nil)
	d.ledgerRepo.EXPECT().CountByAccount(ctx, account.ID).Return(int64(0), nil)

	// All five rules fire: 35+35+20+15+15 = 120, capped at 100.
	assessment, err := d.svc.EvaluateWithdrawal(ctx, account.ID, 28_000, testBank())
	require.NoError(t, err)
	assert.Equal(t, 100, assessment.Score)
	assert.Len(t, assessment.Flags, 5)
	assert.Equal(t, domain.WithdrawalStatusRejected, assessment.Routing)
}

// ==================== SubmitWithdrawal Tests ====================

func TestWithdrawalService_Submit_Success(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	account := seasonedAccount(100_000)

	settings := domain.DefaultWalletSettings()
	settings.FeeType = domain.FeePercentage
	settings.FeeValue = 2

	d.settingsRepo.EXPECT().Get(ctx).Return(settings, nil)
	d.accountRepo.EXPECT().GetByID(ctx, account.ID).Return(account, nil)
	d.withdrawalRepo.EXPECT().CountSince(ctx, account.ID, gomock.Any()).Return(0, nil).Times(2)
	d.withdrawalRepo.EXPECT().SumCompletedSince(ctx, account.ID, gomock.Any()).Return(int64(0), nil)
	d.withdrawalRepo.EXPECT().LatestRequestedAt(ctx, account.ID).Return(nil, nil)
	d.ledgerRepo.EXPECT().CountByAccount(ctx, account.ID).Return(int64(8), nil)
	d.withdrawalRepo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, w *domain.WithdrawalRequest) error {
			assert.NotEmpty(t, w.Reference)
			assert.Equal(t, int64(10_000), w.Amount)
			assert.Equal(t, int64(200), w.Fee) // 2% of 10000
			assert.Equal(t, int64(9_800), w.NetAmount)
			assert.Equal(t, domain.WithdrawalStatusProcessing, w.Status)
			return nil
		})

	withdrawal, err := d.svc.SubmitWithdrawal(ctx, ports.SubmitWithdrawalRequest{
		AccountID: account.ID,
		Amount:    10_000,
		Bank:      testBank(),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusProcessing, withdrawal.Status)
	assert.Empty(t, withdrawal.Reason)
}

func TestWithdrawalService_Submit_BelowMinimum(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	d.settingsRepo.EXPECT().Get(ctx).Return(nil, nil)

	withdrawal, err := d.svc.SubmitWithdrawal(ctx, ports.SubmitWithdrawalRequest{
		AccountID: domain.NewAccountID(),
		Amount:    50, // default minimum is 100
		Bank:      testBank(),
	})
	assert.Nil(t, withdrawal)
	assertAppError(t, err, "WDR_002")
}

func TestWithdrawalService_Submit_InsufficientBalance(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	account := seasonedAccount(500)

	d.settingsRepo.EXPECT().Get(ctx).Return(nil, nil)
	d.accountRepo.EXPECT().GetByID(ctx, account.ID).Return(account, nil)

	withdrawal, err := d.svc.SubmitWithdrawal(ctx, ports.SubmitWithdrawalRequest{
		AccountID: account.ID,
		Amount:    1_000,
		Bank:      testBank(),
	})
	assert.Nil(t, withdrawal)
	assertAppError(t, err, "LED_001")
}

func TestWithdrawalService_Submit_NewAccountCap(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	account := seasonedAccount(100_000)
	account.CreatedAt = time.Now().UTC().AddDate(0, 0, -1)

	d.settingsRepo.EXPECT().Get(ctx).Return(nil, nil)
	d.accountRepo.EXPECT().GetByID(ctx, account.ID).Return(account, nil)

	// Default cap for new accounts is 5000; this submission never reaches
	// the scoring rules.
	withdrawal, err := d.svc.SubmitWithdrawal(ctx, ports.SubmitWithdrawalRequest{
		AccountID: account.ID,
		Amount:    10_000,
		Bank:      testBank(),
	})
	assert.Nil(t, withdrawal)
	assertAppError(t, err, "WDR_002")
}

func TestWithdrawalService_Submit_CooldownActive(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	account := seasonedAccount(100_000)
	recent := time.Now().UTC().Add(-10 * time.Minute)

	d.settingsRepo.EXPECT().Get(ctx).Return(nil, nil)
	d.accountRepo.EXPECT().GetByID(ctx, account.ID).Return(account, nil)
	d.withdrawalRepo.EXPECT().CountSince(ctx, account.ID, gomock.Any()).Return(1, nil)
	d.withdrawalRepo.EXPECT().SumCompletedSince(ctx, account.ID, gomock.Any()).Return(int64(0), nil)
	d.withdrawalRepo.EXPECT().LatestRequestedAt(ctx, account.ID).Return(&recent, nil)

	withdrawal, err := d.svc.SubmitWithdrawal(ctx, ports.SubmitWithdrawalRequest{
		AccountID: account.ID,
		Amount:    1_000,
		Bank:      testBank(),
	})
	assert.Nil(t, withdrawal)
	assertAppError(t, err, "WDR_002")
}

func TestWithdrawalService_Submit_SystemRejectionIsPersisted(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	account := seasonedAccount(100_000)
	account.CreatedAt = time.Now().UTC().AddDate(0, 0, -2)

	// Lift the hard caps so the scoring rules make the decision.
	settings := domain.DefaultWalletSettings()
	settings.NewAccountMaxAmount = 50_000
	settings.MaxWithdrawalsPerDay = 10
	settings.RapidMaxCount = 3

	d.settingsRepo.EXPECT().Get(ctx).Return(settings, nil)
	d.accountRepo.EXPECT().GetByID(ctx, account.ID).Return(account, nil)
	d.withdrawalRepo.EXPECT().CountSince(ctx, account.ID, gomock.Any()).Return(3, nil).Times(2)
	d.withdrawalRepo.EXPECT().SumCompletedSince(ctx, account.ID, gomock.Any()).Return(int64(0), nil)
	d.withdrawalRepo.EXPECT().LatestRequestedAt(ctx, account.ID).Return(nil, nil)
	d.ledgerRepo.EXPECT().CountByAccount(ctx, account.ID).Return(int64(4), nil)
	d.withdrawalRepo.EXPECT().Create(ctx, gomock.Any()).Return(nil)

	// new_account + rapid_withdrawal = 70: persisted as rejected, no error,
	// and the ledger is never touched.
	withdrawal, err := d.svc.SubmitWithdrawal(ctx, ports.SubmitWithdrawalRequest{
		AccountID: account.ID,
		Amount:    1_000,
		Bank:      testBank(),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusRejected, withdrawal.Status)
	assert.Equal(t, 70, withdrawal.RiskScore)
	assert.NotEmpty(t, withdrawal.Reason)
}

func TestWithdrawalService_Submit_MissingBankDetails(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()

	withdrawal, err := d.svc.SubmitWithdrawal(context.Background(), ports.SubmitWithdrawalRequest{
		AccountID: domain.NewAccountID(),
		Amount:    1_000,
		Bank:      domain.BankDetails{AccountHolder: "Ravi"},
	})
	assert.Nil(t, withdrawal)
	assertAppError(t, err, "VAL_001")
}

// ==================== CompleteWithdrawal Tests ====================

func TestWithdrawalService_Complete_DebitsLedger(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	account := seasonedAccount(50_000)
	tx := &mockTx{}

	withdrawal := &domain.WithdrawalRequest{
		ID:        uuid.New(),
		Reference: "WD_1_TEST",
		AccountID: account.ID,
		Amount:    10_000,
		NetAmount: 10_000,
		Status:    domain.WithdrawalStatusProcessing,
	}
	completed := *withdrawal
	completed.Status = domain.WithdrawalStatusCompleted

	d.withdrawalRepo.EXPECT().GetByID(ctx, withdrawal.ID).Return(withdrawal, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, account.ID).Return(account, nil)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, account.ID, int64(40_000)).Return(nil)
	d.ledgerRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ any, entry *domain.LedgerEntry) error {
			assert.Equal(t, domain.DirectionDebit, entry.Direction)
			assert.Equal(t, domain.SourceWithdrawal, entry.Source)
			assert.Equal(t, "WDPAY_WD_1_TEST", entry.IdempotencyKey)
			return nil
		})
	d.withdrawalRepo.EXPECT().UpdateStatus(ctx, tx, withdrawal.ID, domain.WithdrawalStatusCompleted, "").Return(nil)
	d.withdrawalRepo.EXPECT().GetByID(ctx, withdrawal.ID).Return(&completed, nil)

	result, err := d.svc.CompleteWithdrawal(ctx, withdrawal.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusCompleted, result.Status)
}

func TestWithdrawalService_Complete_TerminalStateConflict(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	withdrawal := &domain.WithdrawalRequest{
		ID:     uuid.New(),
		Status: domain.WithdrawalStatusCompleted,
	}

	d.withdrawalRepo.EXPECT().GetByID(ctx, withdrawal.ID).Return(withdrawal, nil)

	result, err := d.svc.CompleteWithdrawal(ctx, withdrawal.ID)
	assert.Nil(t, result)
	assertAppError(t, err, "WDR_003")
}

func TestWithdrawalService_Complete_NotFound(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()

	d.withdrawalRepo.EXPECT().GetByID(ctx, id).Return(nil, nil)

	result, err := d.svc.CompleteWithdrawal(ctx, id)
	assert.Nil(t, result)
	assertAppError(t, err, "WDR_001")
}

func TestWithdrawalService_Complete_InsufficientBalanceAborts(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	account := seasonedAccount(5_000)
	tx := &mockTx{}

	withdrawal := &domain.WithdrawalRequest{
		ID:        uuid.New(),
		Reference: "WD_2_TEST",
		AccountID: account.ID,
		Amount:    10_000,
		Status:    domain.WithdrawalStatusProcessing,
	}

	d.withdrawalRepo.EXPECT().GetByID(ctx, withdrawal.ID).Return(withdrawal, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, account.ID).Return(account, nil)

	result, err := d.svc.CompleteWithdrawal(ctx, withdrawal.ID)
	assert.Nil(t, result)
	assertAppError(t, err, "LED_001")
}

// ==================== FailWithdrawal Tests ====================

func TestWithdrawalService_Fail_MovesToFailed(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	withdrawal := &domain.WithdrawalRequest{
		ID:     uuid.New(),
		Status: domain.WithdrawalStatusProcessing,
	}
	failed := *withdrawal
	failed.Status = domain.WithdrawalStatusFailed
	failed.Reason = "bank transfer bounced"

	d.withdrawalRepo.EXPECT().GetByID(ctx, withdrawal.ID).Return(withdrawal, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.withdrawalRepo.EXPECT().UpdateStatus(ctx, tx, withdrawal.ID, domain.WithdrawalStatusFailed, "bank transfer bounced").Return(nil)
	d.withdrawalRepo.EXPECT().GetByID(ctx, withdrawal.ID).Return(&failed, nil)

	result, err := d.svc.FailWithdrawal(ctx, withdrawal.ID, domain.WithdrawalStatusFailed, "bank transfer bounced")
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusFailed, result.Status)
}

func TestWithdrawalService_Fail_RejectsNonFailureStatus(t *testing.T) {
	d := setupWithdrawalService(t)
	defer d.ctrl.Finish()

	result, err := d.svc.FailWithdrawal(context.Background(), uuid.New(), domain.WithdrawalStatusCompleted, "")
	assert.Nil(t, result)
	assertAppError(t, err, "VAL_001")
}
