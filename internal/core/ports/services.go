package ports

import (
	"context"
	"time"

	"marketplace-wallet/internal/core/domain"

	"github.com/google/uuid"
)

// --- Service Ports (Business Logic) ---

// LedgerService is the append-only transaction log plus derived balances.
type LedgerService interface {
	RecordTransaction(ctx context.Context, req RecordTransactionRequest) (*domain.LedgerEntry, error)
	GetBalance(ctx context.Context, accountID domain.AccountID) (*domain.Account, error)
	ListEntries(ctx context.Context, params LedgerListParams) ([]domain.LedgerEntry, int64, error)
	// VerifyBalance recomputes the balance from completed entries and
	// reports whether the stored balance matches.
	VerifyBalance(ctx context.Context, accountID domain.AccountID) (stored int64, derived int64, ok bool, err error)
}

// RecordTransactionRequest carries one ledger write.
type RecordTransactionRequest struct {
	AccountID      domain.AccountID
	Direction      domain.Direction
	Amount         int64
	Source         domain.Source
	IdempotencyKey string // Generated via domain.NewTransactionRef when empty
	Metadata       domain.Metadata
}

// ReferralService settles referral bonuses.
type ReferralService interface {
	CreditReferralBonus(ctx context.Context, req CreditReferralRequest) (*ReferralCreditResult, error)
	// CheckAndCreditReferralBonus is the event-driven entry point fired on
	// booking/order completion. Safe to call more than once per event.
	CheckAndCreditReferralBonus(ctx context.Context, userID domain.AccountID, eventType string) (*ReferralCreditResult, error)
}

// CreditReferralRequest identifies the referral being settled and the
// event that triggered settlement.
type CreditReferralRequest struct {
	ReferrerID   domain.AccountID
	RefereeID    domain.AccountID
	ReferralID   uuid.UUID
	TriggerEvent string
	Region       string // Optional settings scope; empty means global
}

// ReferralCreditResult reports the outcome of a settlement attempt.
// Success=false with a message is the idempotent no-op path, not an error.
type ReferralCreditResult struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	ReferrerAmount int64  `json:"referrer_amount"`
	RefereeAmount  int64  `json:"referee_amount"`
}

// WithdrawalService screens and tracks withdrawal requests.
type WithdrawalService interface {
	// EvaluateWithdrawal runs the fraud rules without persisting anything.
	EvaluateWithdrawal(ctx context.Context, accountID domain.AccountID, amount int64, bank domain.BankDetails) (*domain.RiskAssessment, error)
	// SubmitWithdrawal validates limits, computes fees, classifies risk and
	// persists the request. System-rejected requests never touch the ledger.
	SubmitWithdrawal(ctx context.Context, req SubmitWithdrawalRequest) (*domain.WithdrawalRequest, error)
	// CompleteWithdrawal is the payout collaborator's success callback: it
	// debits the ledger and marks the request completed, atomically.
	CompleteWithdrawal(ctx context.Context, withdrawalID uuid.UUID) (*domain.WithdrawalRequest, error)
	// FailWithdrawal is the payout failure/cancellation callback. No debit.
	FailWithdrawal(ctx context.Context, withdrawalID uuid.UUID, status domain.WithdrawalStatus, reason string) (*domain.WithdrawalRequest, error)
	List(ctx context.Context, params WithdrawalListParams) ([]domain.WithdrawalRequest, int64, error)
}

// SubmitWithdrawalRequest carries a withdrawal submission.
type SubmitWithdrawalRequest struct {
	AccountID domain.AccountID
	Amount    int64
	Bank      domain.BankDetails
}

// SettlementService is the read-only reconciliation calculator.
type SettlementService interface {
	Reconcile(ctx context.Context, req SettlementQuery) (*domain.SettlementReport, error)
}

// SettlementQuery scopes a settlement report.
type SettlementQuery struct {
	From           time.Time
	To             time.Time
	VendorID       *domain.AccountID
	CommissionRate float64 // 0 means domain.DefaultVendorCommissionRate
}

// AuthService defines operator authentication.
type AuthService interface {
	Register(ctx context.Context, username, password, role string) (*domain.Operator, error)
	Login(ctx context.Context, username, password string) (string, time.Time, error) // token, expiry, error
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(operatorID uuid.UUID, role string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	OperatorID uuid.UUID
	Role       string
}

// IdempotencyCache is the fast-path idempotency check in front of the
// ledger's DB-level unique key (layer 1 of 2).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Cached entry JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
