package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-wallet/internal/core/domain"
	"marketplace-wallet/internal/core/ports"
	"marketplace-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Risk rule weights. The score is the capped sum of every matching rule.
const (
	weightNewAccount       = 35
	weightRapidWithdrawal  = 35
	weightFirstTransaction = 20
	weightLargePercentage  = 15
	weightLargeAmount      = 15
	maxRiskScore           = 100
)

// WithdrawalServiceImpl implements ports.WithdrawalService. Submissions are
// screened by the fraud rules and routed by score; the ledger is only
// debited when the payout collaborator confirms completion.
type WithdrawalServiceImpl struct {
	withdrawalRepo ports.WithdrawalRepository
	accountRepo    ports.AccountRepository
	ledgerRepo     ports.LedgerRepository
	settingsRepo   ports.WalletSettingsRepository
	transactor     ports.DBTransactor
	log            zerolog.Logger
}

// NewWithdrawalService creates a new WithdrawalServiceImpl.
func NewWithdrawalService(
	withdrawalRepo ports.WithdrawalRepository,
	accountRepo ports.AccountRepository,
	ledgerRepo ports.LedgerRepository,
	settingsRepo ports.WalletSettingsRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *WithdrawalServiceImpl {
	return &WithdrawalServiceImpl{
		withdrawalRepo: withdrawalRepo,
		accountRepo:    accountRepo,
		ledgerRepo:     ledgerRepo,
		settingsRepo:   settingsRepo,
		transactor:     transactor,
		log:            log,
	}
}

// EvaluateWithdrawal runs the fraud rules and returns the score, flags and
// routing decision without persisting anything.
func (s *WithdrawalServiceImpl) EvaluateWithdrawal(ctx context.Context, accountID domain.AccountID, amount int64, bank domain.BankDetails) (*domain.RiskAssessment, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	settings, err := s.loadSettings(ctx)
	if err != nil {
		return nil, err
	}

	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrUserNotFound("wallet")
	}

	return s.assess(ctx, account, amount, settings)
}

// SubmitWithdrawal validates limits, computes the fee, classifies risk and
// persists the request. System-rejected requests never touch the ledger.
func (s *WithdrawalServiceImpl) SubmitWithdrawal(ctx context.Context, req ports.SubmitWithdrawalRequest) (*domain.WithdrawalRequest, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.Bank.AccountHolder == "" {
		return nil, apperror.Validation("bank account holder is required")
	}
	if req.Bank.AccountNumber == "" && req.Bank.UPIID == "" {
		return nil, apperror.Validation("either bank account number or UPI id is required")
	}

	settings, err := s.loadSettings(ctx)
	if err != nil {
		return nil, err
	}

	if req.Amount < settings.MinWithdrawal {
		return nil, apperror.ErrWithdrawalLimit(fmt.Sprintf("amount is below the minimum withdrawal of %d", settings.MinWithdrawal))
	}
	if settings.MaxWithdrawal > 0 && req.Amount > settings.MaxWithdrawal {
		return nil, apperror.ErrWithdrawalLimit(fmt.Sprintf("amount exceeds the maximum withdrawal of %d", settings.MaxWithdrawal))
	}

	account, err := s.accountRepo.GetByID(ctx, req.AccountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrUserNotFound("wallet")
	}

	fee := settings.WithdrawalFee(req.Amount)
	if fee >= req.Amount {
		return nil, apperror.ErrWithdrawalLimit("withdrawal fee would consume the entire amount")
	}
	if req.Amount > account.Balance {
		return nil, apperror.ErrInsufficientBalance()
	}

	now := time.Now().UTC()

	// New accounts are hard-capped while inside the trust window.
	if settings.NewAccountWindowDays > 0 && settings.NewAccountMaxAmount > 0 {
		windowStart := now.AddDate(0, 0, -settings.NewAccountWindowDays)
		if account.CreatedAt.After(windowStart) && req.Amount > settings.NewAccountMaxAmount {
			return nil, apperror.ErrWithdrawalLimit(fmt.Sprintf("new accounts may withdraw at most %d", settings.NewAccountMaxAmount))
		}
	}

	dayStart := now.Add(-24 * time.Hour)
	if settings.MaxWithdrawalsPerDay > 0 {
		count, err := s.withdrawalRepo.CountSince(ctx, req.AccountID, dayStart)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("count withdrawals: %w", err))
		}
		if count >= settings.MaxWithdrawalsPerDay {
			return nil, apperror.ErrWithdrawalLimit(fmt.Sprintf("daily limit of %d withdrawal requests reached", settings.MaxWithdrawalsPerDay))
		}
	}
	if settings.DailyWithdrawalCap > 0 {
		sum, err := s.withdrawalRepo.SumCompletedSince(ctx, req.AccountID, dayStart)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("sum withdrawals: %w", err))
		}
		if sum+req.Amount > settings.DailyWithdrawalCap {
			return nil, apperror.ErrWithdrawalLimit(fmt.Sprintf("daily withdrawal cap of %d exceeded", settings.DailyWithdrawalCap))
		}
	}
	if settings.CooldownHours > 0 {
		latest, err := s.withdrawalRepo.LatestRequestedAt(ctx, req.AccountID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("latest withdrawal: %w", err))
		}
		if latest != nil && now.Sub(*latest) < time.Duration(settings.CooldownHours)*time.Hour {
			return nil, apperror.ErrWithdrawalLimit(fmt.Sprintf("wait %d hour(s) between withdrawal requests", settings.CooldownHours))
		}
	}

	assessment, err := s.assess(ctx, account, req.Amount, settings)
	if err != nil {
		return nil, err
	}

	withdrawal := &domain.WithdrawalRequest{
		ID:          uuid.New(),
		Reference:   domain.NewWithdrawalReference(),
		AccountID:   req.AccountID,
		Amount:      req.Amount,
		Fee:         fee,
		NetAmount:   req.Amount - fee,
		Bank:        req.Bank,
		RiskScore:   assessment.Score,
		RiskFlags:   assessment.Flags,
		Status:      assessment.Routing,
		RequestedAt: now,
	}
	if withdrawal.Status == domain.WithdrawalStatusRejected {
		withdrawal.Reason = "rejected by automatic risk screening"
	}

	if err := s.withdrawalRepo.Create(ctx, withdrawal); err != nil {
		return nil, translateRepoError(err, fmt.Errorf("create withdrawal: %w", err))
	}

	s.log.Info().
		Str("withdrawal_id", withdrawal.ID.String()).
		Str("account_id", req.AccountID.String()).
		Int64("amount", req.Amount).
		Int("risk_score", assessment.Score).
		Strs("risk_flags", assessment.Flags).
		Str("status", string(withdrawal.Status)).
		Msg("withdrawal request submitted")

	return withdrawal, nil
}

// CompleteWithdrawal debits the ledger and marks the request completed in
// one transaction. Only pending or processing requests can complete.
func (s *WithdrawalServiceImpl) CompleteWithdrawal(ctx context.Context, withdrawalID uuid.UUID) (*domain.WithdrawalRequest, error) {
	withdrawal, err := s.withdrawalRepo.GetByID(ctx, withdrawalID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get withdrawal: %w", err))
	}
	if withdrawal == nil {
		return nil, apperror.ErrWithdrawalNotFound()
	}
	if withdrawal.IsTerminal() {
		return nil, apperror.ErrWithdrawalNotProcessable(string(withdrawal.Status))
	}

	// Begin database transaction
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Lock & get account
	account, err := s.accountRepo.GetByIDForUpdate(ctx, dbTx, withdrawal.AccountID)
	if err != nil {
		return nil, translateRepoError(err, fmt.Errorf("lock account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrUserNotFound("wallet")
	}

	entry, err := domain.NewLedgerEntry(
		withdrawal.AccountID, domain.DirectionDebit, withdrawal.Amount,
		account.Balance, domain.SourceWithdrawal,
		"WDPAY_"+withdrawal.Reference,
		domain.Metadata{
			"withdrawal_id":  withdrawal.ID.String(),
			"withdrawal_ref": withdrawal.Reference,
		},
	)
	if err != nil {
		if errors.Is(err, domain.ErrDebitBelowZero) {
			return nil, apperror.ErrInsufficientBalance()
		}
		return nil, apperror.InternalError(fmt.Errorf("build withdrawal entry: %w", err))
	}

	if err := s.accountRepo.UpdateBalance(ctx, dbTx, withdrawal.AccountID, entry.BalanceAfter); err != nil {
		return nil, translateRepoError(err, fmt.Errorf("update balance: %w", err))
	}
	if err := s.ledgerRepo.Create(ctx, dbTx, entry); err != nil {
		if isDuplicate(err) {
			return nil, apperror.ErrDuplicateEntry()
		}
		return nil, translateRepoError(err, fmt.Errorf("create withdrawal entry: %w", err))
	}
	if err := s.withdrawalRepo.UpdateStatus(ctx, dbTx, withdrawalID, domain.WithdrawalStatusCompleted, ""); err != nil {
		return nil, translateRepoError(err, fmt.Errorf("complete withdrawal: %w", err))
	}

	// Commit
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("withdrawal_id", withdrawalID.String()).
		Str("account_id", withdrawal.AccountID.String()).
		Int64("amount", withdrawal.Amount).
		Int64("balance_after", entry.BalanceAfter).
		Msg("withdrawal completed and debited")

	return s.withdrawalRepo.GetByID(ctx, withdrawalID)
}

// FailWithdrawal moves a non-terminal request to failed or cancelled. The
// ledger is untouched because nothing was debited at submission.
func (s *WithdrawalServiceImpl) FailWithdrawal(ctx context.Context, withdrawalID uuid.UUID, status domain.WithdrawalStatus, reason string) (*domain.WithdrawalRequest, error) {
	if status != domain.WithdrawalStatusFailed && status != domain.WithdrawalStatusCancelled {
		return nil, apperror.Validation(fmt.Sprintf("status %q is not a failure state", status))
	}

	withdrawal, err := s.withdrawalRepo.GetByID(ctx, withdrawalID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get withdrawal: %w", err))
	}
	if withdrawal == nil {
		return nil, apperror.ErrWithdrawalNotFound()
	}
	if withdrawal.IsTerminal() {
		return nil, apperror.ErrWithdrawalNotProcessable(string(withdrawal.Status))
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.withdrawalRepo.UpdateStatus(ctx, dbTx, withdrawalID, status, reason); err != nil {
		return nil, translateRepoError(err, fmt.Errorf("fail withdrawal: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("withdrawal_id", withdrawalID.String()).
		Str("status", string(status)).
		Str("reason", reason).
		Msg("withdrawal closed without payout")

	return s.withdrawalRepo.GetByID(ctx, withdrawalID)
}

// List returns withdrawal requests for the monitoring views.
func (s *WithdrawalServiceImpl) List(ctx context.Context, params ports.WithdrawalListParams) ([]domain.WithdrawalRequest, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}
	requests, total, err := s.withdrawalRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list withdrawals: %w", err))
	}
	return requests, total, nil
}

// assess applies the risk rules in declaration order and routes by score.
func (s *WithdrawalServiceImpl) assess(ctx context.Context, account *domain.Account, amount int64, settings *domain.WalletSettings) (*domain.RiskAssessment, error) {
	now := time.Now().UTC()
	score := 0
	var flags []string

	if settings.NewAccountWindowDays > 0 {
		windowStart := now.AddDate(0, 0, -settings.NewAccountWindowDays)
		if account.CreatedAt.After(windowStart) {
			score += weightNewAccount
			flags = append(flags, domain.FlagNewAccount)
		}
	}

	if settings.RapidWindowHours > 0 && settings.RapidMaxCount > 0 {
		count, err := s.withdrawalRepo.CountSince(ctx, account.ID, now.Add(-time.Duration(settings.RapidWindowHours)*time.Hour))
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("count recent withdrawals: %w", err))
		}
		if count >= settings.RapidMaxCount {
			score += weightRapidWithdrawal
			flags = append(flags, domain.FlagRapidWithdrawal)
		}
	}

	entryCount, err := s.ledgerRepo.CountByAccount(ctx, account.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("count ledger entries: %w", err))
	}
	if entryCount == 0 {
		score += weightFirstTransaction
		flags = append(flags, domain.FlagFirstTransaction)
	}

	if settings.LargeBalanceFraction > 0 && account.Balance > 0 &&
		float64(amount) >= settings.LargeBalanceFraction*float64(account.Balance) {
		score += weightLargePercentage
		flags = append(flags, domain.FlagLargePercentage)
	}

	if settings.LargeAmountThreshold > 0 && amount >= settings.LargeAmountThreshold {
		score += weightLargeAmount
		flags = append(flags, domain.FlagLargeAmount)
	}

	if score > maxRiskScore {
		score = maxRiskScore
	}

	routing := domain.WithdrawalStatusProcessing
	switch {
	case score >= settings.HighRiskThreshold:
		routing = domain.WithdrawalStatusRejected
	case score >= settings.MediumRiskThreshold:
		routing = domain.WithdrawalStatusPending
	}

	return &domain.RiskAssessment{Score: score, Flags: flags, Routing: routing}, nil
}

// loadSettings returns the saved wallet policy, or the defaults when an
// admin has not configured one yet.
func (s *WithdrawalServiceImpl) loadSettings(ctx context.Context) (*domain.WalletSettings, error) {
	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet settings: %w", err))
	}
	if settings == nil {
		return domain.DefaultWalletSettings(), nil
	}
	return settings, nil
}
