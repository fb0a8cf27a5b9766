package service

import (
	"context"
	"fmt"

	"marketplace-wallet/internal/core/domain"
	"marketplace-wallet/internal/core/ports"
	"marketplace-wallet/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// ReferralServiceImpl implements ports.ReferralService. It settles referral
// bonuses: both wallet credits and the BonusPaid transition commit in one
// database transaction, so a crash can never pay one side only.
type ReferralServiceImpl struct {
	referralRepo ports.ReferralRepository
	settingsRepo ports.ReferralSettingsRepository
	accountRepo  ports.AccountRepository
	ledgerRepo   ports.LedgerRepository
	transactor   ports.DBTransactor
	log          zerolog.Logger
}

// NewReferralService creates a new ReferralServiceImpl.
func NewReferralService(
	referralRepo ports.ReferralRepository,
	settingsRepo ports.ReferralSettingsRepository,
	accountRepo ports.AccountRepository,
	ledgerRepo ports.LedgerRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *ReferralServiceImpl {
	return &ReferralServiceImpl{
		referralRepo: referralRepo,
		settingsRepo: settingsRepo,
		accountRepo:  accountRepo,
		ledgerRepo:   ledgerRepo,
		transactor:   transactor,
		log:          log,
	}
}

var alreadyProcessed = &ports.ReferralCreditResult{
	Success: false,
	Message: "already processed",
}

// CreditReferralBonus settles the bonus for one referral record. Calling it
// again for a record that already paid is a no-op, not an error.
func (s *ReferralServiceImpl) CreditReferralBonus(ctx context.Context, req ports.CreditReferralRequest) (*ports.ReferralCreditResult, error) {
	record, err := s.referralRepo.GetByID(ctx, req.ReferralID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get referral: %w", err))
	}
	if record == nil {
		return nil, apperror.ErrReferralNotFound()
	}
	if !record.Creditable() {
		return alreadyProcessed, nil
	}

	settings, err := s.settingsRepo.Get(ctx, record.ReferralType, req.Region)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get referral settings: %w", err))
	}
	if settings == nil {
		return nil, apperror.ErrSettingsNotConfigured("referral")
	}

	referrerBonus := payableBonus(settings.ReferrerBonus, req.TriggerEvent)
	refereeBonus := payableBonus(settings.RefereeBonus, req.TriggerEvent)
	if referrerBonus == 0 && refereeBonus == 0 {
		return &ports.ReferralCreditResult{
			Success: false,
			Message: "no wallet bonus configured for this referral",
		}, nil
	}

	// Begin database transaction
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Re-check the record under lock; a concurrent settlement may have won.
	locked, err := s.referralRepo.GetByIDForUpdate(ctx, dbTx, req.ReferralID)
	if err != nil {
		return nil, translateRepoError(err, fmt.Errorf("lock referral: %w", err))
	}
	if locked == nil {
		return nil, apperror.ErrReferralNotFound()
	}
	if !locked.Creditable() {
		return alreadyProcessed, nil
	}

	// Lock both accounts in canonical id order to avoid deadlocks.
	accounts := make(map[domain.AccountID]*domain.Account, 2)
	for _, id := range lockOrder(locked.ReferrerID, locked.RefereeID) {
		acc, err := s.accountRepo.GetByIDForUpdate(ctx, dbTx, id)
		if err != nil {
			return nil, translateRepoError(err, fmt.Errorf("lock account: %w", err))
		}
		if acc == nil {
			return nil, apperror.ErrUserNotFound("referral party")
		}
		accounts[id] = acc
	}

	meta := domain.Metadata{
		"referral_id":   locked.ID.String(),
		"referral_ref":  locked.Reference,
		"referral_type": string(locked.ReferralType),
	}
	if req.TriggerEvent != "" {
		meta["trigger_event"] = req.TriggerEvent
	}

	if referrerBonus > 0 {
		key := fmt.Sprintf("REFBONUS_%s_referrer", locked.ID)
		if err := s.credit(ctx, dbTx, accounts[locked.ReferrerID], referrerBonus, key, meta); err != nil {
			return nil, err
		}
	}
	if refereeBonus > 0 {
		key := fmt.Sprintf("REFBONUS_%s_referee", locked.ID)
		if err := s.credit(ctx, dbTx, accounts[locked.RefereeID], refereeBonus, key, meta); err != nil {
			return nil, err
		}
	}

	if err := s.referralRepo.MarkBonusPaid(ctx, dbTx, locked.ID, referrerBonus, refereeBonus); err != nil {
		return nil, translateRepoError(err, fmt.Errorf("mark bonus paid: %w", err))
	}

	// Commit
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("referral_id", locked.ID.String()).
		Str("referral_type", string(locked.ReferralType)).
		Int64("referrer_bonus", referrerBonus).
		Int64("referee_bonus", refereeBonus).
		Msg("referral bonus credited")

	return &ports.ReferralCreditResult{
		Success:        true,
		Message:        "referral bonus credited",
		ReferrerAmount: referrerBonus,
		RefereeAmount:  refereeBonus,
	}, nil
}

// CheckAndCreditReferralBonus is fired on signup/booking/order completion.
// It finds the user's unsettled referral, checks whether the configured
// credit time matches the event, and settles it. Safe to call repeatedly.
func (s *ReferralServiceImpl) CheckAndCreditReferralBonus(ctx context.Context, userID domain.AccountID, eventType string) (*ports.ReferralCreditResult, error) {
	trigger := normalizeTrigger(eventType)
	if trigger == "" {
		return nil, apperror.Validation(fmt.Sprintf("unknown referral trigger event %q", eventType))
	}

	for _, refType := range []domain.ReferralType{domain.ReferralC2C, domain.ReferralC2V, domain.ReferralV2V} {
		record, err := s.referralRepo.FindCreditableByReferee(ctx, userID, refType)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("find creditable referral: %w", err))
		}
		if record == nil {
			continue
		}

		settings, err := s.settingsRepo.Get(ctx, refType, "")
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get referral settings: %w", err))
		}
		if settings == nil || !triggerMatches(settings, trigger) {
			continue
		}

		return s.CreditReferralBonus(ctx, ports.CreditReferralRequest{
			ReferrerID:   record.ReferrerID,
			RefereeID:    record.RefereeID,
			ReferralID:   record.ID,
			TriggerEvent: string(trigger),
		})
	}

	return &ports.ReferralCreditResult{
		Success: false,
		Message: "no creditable referral for this event",
	}, nil
}

// credit writes one bonus ledger entry and the matching balance update.
func (s *ReferralServiceImpl) credit(ctx context.Context, dbTx pgx.Tx, account *domain.Account, amount int64, idempKey string, meta domain.Metadata) error {
	entry, err := domain.NewLedgerEntry(
		account.ID, domain.DirectionCredit, amount,
		account.Balance, domain.SourceReferralBonus, idempKey, meta,
	)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("build bonus entry: %w", err))
	}
	if err := s.accountRepo.UpdateBalance(ctx, dbTx, account.ID, entry.BalanceAfter); err != nil {
		return translateRepoError(err, fmt.Errorf("update balance: %w", err))
	}
	if err := s.ledgerRepo.Create(ctx, dbTx, entry); err != nil {
		if isDuplicate(err) {
			return apperror.ErrDuplicateEntry()
		}
		return translateRepoError(err, fmt.Errorf("create bonus entry: %w", err))
	}
	account.Balance = entry.BalanceAfter
	return nil
}

// payableBonus returns the wallet amount one side receives for the given
// trigger. Discount-type bonuses never touch the wallet.
func payableBonus(cfg domain.BonusConfig, triggerEvent string) int64 {
	if !cfg.Enabled || cfg.Type != domain.BonusTypeAmount || cfg.Value <= 0 {
		return 0
	}
	if triggerEvent != "" && string(cfg.CreditTime) != triggerEvent {
		return 0
	}
	return cfg.Value
}

// triggerMatches reports whether either configured side releases on this event.
func triggerMatches(settings *domain.ReferralSettings, trigger domain.CreditTime) bool {
	if settings.ReferrerBonus.Enabled && settings.ReferrerBonus.CreditTime == trigger {
		return true
	}
	if settings.RefereeBonus.Enabled && settings.RefereeBonus.CreditTime == trigger {
		return true
	}
	return false
}

// normalizeTrigger maps event names from collaborators onto credit times.
func normalizeTrigger(eventType string) domain.CreditTime {
	switch eventType {
	case "signup", string(domain.CreditOnSignup):
		return domain.CreditOnSignup
	case "first_booking", "booking_completed", string(domain.CreditOnFirstBooking):
		return domain.CreditOnFirstBooking
	case "first_order", "order_completed", string(domain.CreditOnFirstOrder):
		return domain.CreditOnFirstOrder
	}
	return ""
}

// lockOrder sorts two account ids into the canonical locking order.
func lockOrder(a, b domain.AccountID) []domain.AccountID {
	if b.Less(a) {
		return []domain.AccountID{b, a}
	}
	return []domain.AccountID{a, b}
}
