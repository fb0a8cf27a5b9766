package ports

import (
	"context"
	"time"

	"marketplace-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountRepository defines persistence operations for wallet accounts.
// Methods accepting pgx.Tx run inside a unit of work with pessimistic locking.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id domain.AccountID) (*domain.Account, error)
	// GetByIDForUpdate locks the account row for the duration of the
	// transaction. Balance reads feeding a write MUST use this.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id domain.AccountID) (*domain.Account, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, id domain.AccountID, balance int64) error
}

// LedgerRepository defines persistence for append-only ledger entries.
type LedgerRepository interface {
	Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.LedgerEntry, error)
	ListByAccount(ctx context.Context, params LedgerListParams) ([]domain.LedgerEntry, int64, error)
	// SumCompletedByAccount returns the signed sum of completed entries,
	// used to audit the balance invariant.
	SumCompletedByAccount(ctx context.Context, accountID domain.AccountID) (int64, error)
	// CountByAccount counts entries of any status for an account.
	CountByAccount(ctx context.Context, accountID domain.AccountID) (int64, error)
}

// LedgerListParams holds filter + pagination for listing ledger entries.
type LedgerListParams struct {
	AccountID domain.AccountID
	Source    *domain.Source
	Status    *domain.EntryStatus
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// ReferralRepository defines persistence for referral records.
type ReferralRepository interface {
	Create(ctx context.Context, record *domain.ReferralRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ReferralRecord, error)
	// GetByIDForUpdate locks the record row inside the crediting unit of work.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.ReferralRecord, error)
	// FindCreditableByReferee returns the non-BonusPaid record of the given
	// type where the user is referee, or nil.
	FindCreditableByReferee(ctx context.Context, refereeID domain.AccountID, refType domain.ReferralType) (*domain.ReferralRecord, error)
	// MarkBonusPaid transitions the record to BonusPaid and stores the
	// realized bonus amounts. Must run inside the crediting transaction.
	MarkBonusPaid(ctx context.Context, tx pgx.Tx, id uuid.UUID, referrerBonus, refereeBonus int64) error
}

// ReferralSettingsRepository stores admin-managed referral bonus configuration.
type ReferralSettingsRepository interface {
	Upsert(ctx context.Context, settings *domain.ReferralSettings) error
	// Get returns the settings for a referral type and region, falling back
	// to the global (empty region) document. Nil when neither exists.
	Get(ctx context.Context, refType domain.ReferralType, region string) (*domain.ReferralSettings, error)
	List(ctx context.Context) ([]domain.ReferralSettings, error)
}

// WalletSettingsRepository stores the global wallet policy singleton.
type WalletSettingsRepository interface {
	Get(ctx context.Context) (*domain.WalletSettings, error) // Nil when unconfigured
	Save(ctx context.Context, settings *domain.WalletSettings) error
}

// WithdrawalRepository defines persistence for withdrawal requests.
type WithdrawalRepository interface {
	Create(ctx context.Context, req *domain.WithdrawalRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error)
	GetByReference(ctx context.Context, reference string) (*domain.WithdrawalRequest, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.WithdrawalStatus, reason string) error
	List(ctx context.Context, params WithdrawalListParams) ([]domain.WithdrawalRequest, int64, error)
	// CountSince counts requests for the account created at or after the
	// cutoff, excluding system-rejected ones. Feeds the rapid-withdrawal rule.
	CountSince(ctx context.Context, accountID domain.AccountID, since time.Time) (int, error)
	// SumCompletedSince sums completed withdrawal amounts since the cutoff.
	// Feeds the daily-cap rule.
	SumCompletedSince(ctx context.Context, accountID domain.AccountID, since time.Time) (int64, error)
	// LatestRequestedAt returns the most recent request time, or nil.
	LatestRequestedAt(ctx context.Context, accountID domain.AccountID) (*time.Time, error)
}

// WithdrawalListParams holds filter + pagination for the monitoring views.
type WithdrawalListParams struct {
	AccountID *domain.AccountID
	Status    *domain.WithdrawalStatus
	Page      int
	PageSize  int
}

// PaymentEventRepository reads the completed payment event stream.
type PaymentEventRepository interface {
	Create(ctx context.Context, event *domain.PaymentEvent) error
	ListByWindow(ctx context.Context, from, to time.Time, vendorID *domain.AccountID) ([]domain.PaymentEvent, error)
}

// TransferRepository reads recorded platform<->vendor transfers.
type TransferRepository interface {
	Create(ctx context.Context, transfer *domain.TransferRecord) error
	ListByWindow(ctx context.Context, from, to time.Time, vendorID *domain.AccountID) ([]domain.TransferRecord, error)
}

// OperatorRepository defines persistence for admin/CRM operators.
type OperatorRepository interface {
	Create(ctx context.Context, operator *domain.Operator) error
	GetByUsername(ctx context.Context, username string) (*domain.Operator, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Operator, error)
}

// DBTransactor provides database transaction management. Every multi-record
// unit of work begins here and commits or aborts as a whole.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
