package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketplace-wallet/internal/core/domain"
	"marketplace-wallet/internal/core/ports"
	"marketplace-wallet/pkg/apperror"

	"github.com/rs/zerolog"
)

const idempotencyTTL = 24 * time.Hour

// LedgerServiceImpl implements ports.LedgerService.
type LedgerServiceImpl struct {
	accountRepo ports.AccountRepository
	ledgerRepo  ports.LedgerRepository
	idempCache  ports.IdempotencyCache
	transactor  ports.DBTransactor
	log         zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	accountRepo ports.AccountRepository,
	ledgerRepo ports.LedgerRepository,
	idempCache ports.IdempotencyCache,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
		idempCache:  idempCache,
		transactor:  transactor,
		log:         log,
	}
}

// RecordTransaction appends one entry to the ledger with pessimistic locking.
// The same idempotency key always returns the originally recorded entry.
func (s *LedgerServiceImpl) RecordTransaction(ctx context.Context, req ports.RecordTransactionRequest) (*domain.LedgerEntry, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if err := req.Metadata.Validate(); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	idempKey := req.IdempotencyKey
	if idempKey == "" {
		idempKey = domain.NewTransactionRef()
	}

	// Layer 1: Redis idempotency check
	cached, err := s.idempCache.Get(ctx, idempKey)
	if err != nil {
		s.log.Warn().Err(err).Str("key", idempKey).Msg("redis idempotency check failed, falling through to DB")
	}
	if cached != nil {
		return s.unmarshalCachedEntry(cached)
	}

	// Layer 2: DB idempotency check
	existing, err := s.ledgerRepo.GetByIdempotencyKey(ctx, idempKey)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	if existing != nil {
		s.cacheEntry(ctx, idempKey, existing)
		return existing, nil
	}

	// Begin database transaction
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Lock & get account
	account, err := s.accountRepo.GetByIDForUpdate(ctx, dbTx, req.AccountID)
	if err != nil {
		return nil, translateRepoError(err, fmt.Errorf("lock account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrUserNotFound("wallet")
	}

	entry, err := domain.NewLedgerEntry(
		req.AccountID, req.Direction, req.Amount,
		account.Balance, req.Source, idempKey, req.Metadata,
	)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDebitBelowZero):
			return nil, apperror.ErrInsufficientBalance()
		case errors.Is(err, domain.ErrNonPositiveAmount):
			return nil, apperror.ErrInvalidAmount()
		default:
			return nil, apperror.Validation(err.Error())
		}
	}

	// Persist: update account balance
	if err := s.accountRepo.UpdateBalance(ctx, dbTx, req.AccountID, entry.BalanceAfter); err != nil {
		return nil, translateRepoError(err, fmt.Errorf("update balance: %w", err))
	}

	// Persist: append ledger entry. A unique-key violation here means a
	// concurrent request with the same key committed first; return its entry.
	if err := s.ledgerRepo.Create(ctx, dbTx, entry); err != nil {
		if isDuplicate(err) {
			dbTx.Rollback(ctx) //nolint:errcheck
			winner, fetchErr := s.ledgerRepo.GetByIdempotencyKey(ctx, idempKey)
			if fetchErr == nil && winner != nil {
				return winner, nil
			}
			return nil, apperror.ErrDuplicateEntry()
		}
		return nil, translateRepoError(err, fmt.Errorf("create ledger entry: %w", err))
	}

	// Commit
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	// Post-process: cache in Redis (best-effort)
	s.cacheEntry(ctx, idempKey, entry)

	s.log.Info().
		Str("entry_id", entry.ID.String()).
		Str("account_id", req.AccountID.String()).
		Str("direction", string(req.Direction)).
		Str("source", string(req.Source)).
		Int64("amount", req.Amount).
		Int64("balance_after", entry.BalanceAfter).
		Msg("ledger entry recorded")

	return entry, nil
}

// GetBalance returns the account with its running balance.
func (s *LedgerServiceImpl) GetBalance(ctx context.Context, accountID domain.AccountID) (*domain.Account, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrUserNotFound("wallet")
	}
	return account, nil
}

// ListEntries returns a filtered, paginated slice of the account's ledger.
func (s *LedgerServiceImpl) ListEntries(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}
	entries, total, err := s.ledgerRepo.ListByAccount(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list ledger entries: %w", err))
	}
	return entries, total, nil
}

// VerifyBalance recomputes the balance from completed entries and compares
// it against the stored running total.
func (s *LedgerServiceImpl) VerifyBalance(ctx context.Context, accountID domain.AccountID) (int64, int64, bool, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return 0, 0, false, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return 0, 0, false, apperror.ErrUserNotFound("wallet")
	}

	derived, err := s.ledgerRepo.SumCompletedByAccount(ctx, accountID)
	if err != nil {
		return 0, 0, false, apperror.InternalError(fmt.Errorf("sum ledger entries: %w", err))
	}

	ok := account.Balance == derived
	if !ok {
		s.log.Error().
			Str("account_id", accountID.String()).
			Int64("stored", account.Balance).
			Int64("derived", derived).
			Msg("balance does not match ledger")
	}
	return account.Balance, derived, ok, nil
}

func (s *LedgerServiceImpl) cacheEntry(ctx context.Context, key string, entry *domain.LedgerEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := s.idempCache.Set(ctx, key, data, idempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to cache idempotency in redis")
	}
}

// unmarshalCachedEntry deserializes a cached ledger entry.
func (s *LedgerServiceImpl) unmarshalCachedEntry(data []byte) (*domain.LedgerEntry, error) {
	entry := &domain.LedgerEntry{}
	if err := json.Unmarshal(data, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached entry: %w", err))
	}
	return entry, nil
}

// isDuplicate reports whether err carries the duplicate-entry code.
func isDuplicate(err error) bool {
	var appErr *apperror.AppError
	return errors.As(err, &appErr) && appErr.Code == "LED_002"
}

// translateRepoError keeps retryable conflict errors intact and wraps
// everything else as internal.
func translateRepoError(err error, wrapped error) *apperror.AppError {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Retryable {
		return appErr
	}
	return apperror.InternalError(wrapped)
}
