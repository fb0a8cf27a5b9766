package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Direction indicates whether an entry adds to or removes from a balance.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// Signed returns amount with the sign implied by the direction.
func (d Direction) Signed(amount int64) int64 {
	if d == DirectionDebit {
		return -amount
	}
	return amount
}

// Source identifies what business event produced a ledger entry.
type Source string

const (
	SourceAddMoney       Source = "add_money"
	SourceReferralBonus  Source = "referral_bonus"
	SourceRefund         Source = "refund"
	SourceWithdrawal     Source = "withdrawal"
	SourceBookingPayment Source = "booking_payment"
	SourceProductPayment Source = "product_payment"
	SourceAdminCredit    Source = "admin_credit"
	SourceAdminDebit     Source = "admin_debit"
)

// EntryStatus is the lifecycle state of a ledger entry.
type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "pending"
	EntryStatusCompleted EntryStatus = "completed"
	EntryStatusFailed    EntryStatus = "failed"
	EntryStatusCancelled EntryStatus = "cancelled"
)

// Metadata is the size-bounded key-value bag attached to a ledger entry
// (referral id, order id, trigger event). Bounded so the audit trail stays
// queryable.
type Metadata map[string]string

const (
	maxMetadataKeys     = 8
	maxMetadataValueLen = 256
)

// Validate rejects oversized metadata.
func (m Metadata) Validate() error {
	if len(m) > maxMetadataKeys {
		return fmt.Errorf("metadata has %d keys, max %d", len(m), maxMetadataKeys)
	}
	for k, v := range m {
		if k == "" {
			return errors.New("metadata key must not be empty")
		}
		if len(k) > maxMetadataValueLen || len(v) > maxMetadataValueLen {
			return fmt.Errorf("metadata entry %q exceeds %d bytes", k, maxMetadataValueLen)
		}
	}
	return nil
}

// Factory validation errors. Services translate these to API errors.
var (
	ErrNonPositiveAmount     = errors.New("amount must be greater than zero")
	ErrDebitBelowZero        = errors.New("debit would take balance below zero")
	ErrMissingIdempotencyKey = errors.New("idempotency key is required")
)

// LedgerEntry is one immutable, append-only record of a single credit or
// debit. Once written with status completed it is never mutated.
type LedgerEntry struct {
	ID             uuid.UUID   `json:"id"`
	AccountID      AccountID   `json:"account_id"`
	Direction      Direction   `json:"direction"`
	Amount         int64       `json:"amount"` // Always positive
	BalanceBefore  int64       `json:"balance_before"`
	BalanceAfter   int64       `json:"balance_after"`
	Source         Source      `json:"source"`
	Status         EntryStatus `json:"status"`
	IdempotencyKey string      `json:"idempotency_key"`
	Metadata       Metadata    `json:"metadata,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// NewLedgerEntry constructs a fully-formed completed entry. The balance
// arithmetic happens here so persistence never mutates an entry on save.
func NewLedgerEntry(
	accountID AccountID,
	direction Direction,
	amount int64,
	balanceBefore int64,
	source Source,
	idempotencyKey string,
	metadata Metadata,
) (*LedgerEntry, error) {
	if amount <= 0 {
		return nil, ErrNonPositiveAmount
	}
	if idempotencyKey == "" {
		return nil, ErrMissingIdempotencyKey
	}
	if err := metadata.Validate(); err != nil {
		return nil, err
	}

	balanceAfter := balanceBefore + direction.Signed(amount)
	if balanceAfter < 0 {
		return nil, ErrDebitBelowZero
	}

	return &LedgerEntry{
		ID:             uuid.New(),
		AccountID:      accountID,
		Direction:      direction,
		Amount:         amount,
		BalanceBefore:  balanceBefore,
		BalanceAfter:   balanceAfter,
		Source:         source,
		Status:         EntryStatusCompleted,
		IdempotencyKey: idempotencyKey,
		Metadata:       metadata,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// NewTransactionRef generates a unique idempotency key in the
// WTX_<timestamp>_<random> format.
func NewTransactionRef() string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	return fmt.Sprintf("WTX_%d_%s", time.Now().UnixMilli(), strings.ToUpper(random))
}
