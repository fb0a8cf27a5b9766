package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WithdrawalStatus is the withdrawal request lifecycle.
type WithdrawalStatus string

const (
	WithdrawalStatusPending    WithdrawalStatus = "pending" // Held for manual review
	WithdrawalStatusProcessing WithdrawalStatus = "processing"
	WithdrawalStatusCompleted  WithdrawalStatus = "completed"
	WithdrawalStatusFailed     WithdrawalStatus = "failed"
	WithdrawalStatusRejected   WithdrawalStatus = "rejected_by_system"
	WithdrawalStatusCancelled  WithdrawalStatus = "cancelled"
)

// Risk flags emitted by the withdrawal screening rules.
const (
	FlagNewAccount       = "new_account"
	FlagRapidWithdrawal  = "rapid_withdrawal"
	FlagFirstTransaction = "first_transaction_withdrawal"
	FlagLargePercentage  = "large_percentage_withdrawal"
	FlagLargeAmount      = "large_amount"
)

// BankDetails is the payout destination supplied on submission.
type BankDetails struct {
	AccountHolder string `json:"account_holder"`
	AccountNumber string `json:"account_number,omitempty"`
	IFSC          string `json:"ifsc,omitempty"`
	UPIID         string `json:"upi_id,omitempty"`
}

// WithdrawalRequest records a payout request and its risk classification.
// Only the risk engine (initial classification) and the payout callback
// (terminal states) may mutate it.
type WithdrawalRequest struct {
	ID          uuid.UUID        `json:"id"`
	Reference   string           `json:"reference"`
	AccountID   AccountID        `json:"account_id"`
	Amount      int64            `json:"amount"`
	Fee         int64            `json:"fee"`
	NetAmount   int64            `json:"net_amount"`
	Bank        BankDetails      `json:"bank"`
	RiskScore   int              `json:"risk_score"` // 0-100
	RiskFlags   []string         `json:"risk_flags,omitempty"`
	Status      WithdrawalStatus `json:"status"`
	Reason      string           `json:"reason,omitempty"` // Rejection or failure reason
	RequestedAt time.Time        `json:"requested_at"`
	ProcessedAt *time.Time       `json:"processed_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// IsTerminal reports whether no further transitions are allowed.
func (w *WithdrawalRequest) IsTerminal() bool {
	switch w.Status {
	case WithdrawalStatusCompleted, WithdrawalStatusFailed,
		WithdrawalStatusRejected, WithdrawalStatusCancelled:
		return true
	}
	return false
}

// NewWithdrawalReference generates a unique withdrawal reference.
func NewWithdrawalReference() string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("WD_%d_%s", time.Now().UnixMilli(), strings.ToUpper(random))
}

// RiskAssessment is the output of the fraud-rule evaluation.
type RiskAssessment struct {
	Score   int              `json:"risk_score"`
	Flags   []string         `json:"risk_flags"`
	Routing WithdrawalStatus `json:"routing"`
}

// FeeType selects the withdrawal fee schedule.
type FeeType string

const (
	FeeNone       FeeType = "none"
	FeePercentage FeeType = "percentage"
	FeeFixed      FeeType = "fixed"
)

// WalletSettings is the admin-managed global wallet policy. It is loaded
// fresh for every decision because admins can change it at any time.
type WalletSettings struct {
	MinWithdrawal        int64   `json:"min_withdrawal"`
	MaxWithdrawal        int64   `json:"max_withdrawal"`
	DailyWithdrawalCap   int64   `json:"daily_withdrawal_cap"`
	MaxWithdrawalsPerDay int     `json:"max_withdrawals_per_day"`
	CooldownHours        int     `json:"cooldown_hours"`
	FeeType              FeeType `json:"fee_type"`
	FeeValue             int64   `json:"fee_value"` // Fixed amount, or percent when FeeType is percentage

	// Fraud rule parameters.
	NewAccountWindowDays int     `json:"new_account_window_days"`
	NewAccountMaxAmount  int64   `json:"new_account_max_amount"` // Submission cap while inside the window
	RapidWindowHours     int     `json:"rapid_window_hours"`
	RapidMaxCount        int     `json:"rapid_max_count"`
	LargeAmountThreshold int64   `json:"large_amount_threshold"`
	LargeBalanceFraction float64 `json:"large_balance_fraction"`
	HighRiskThreshold    int     `json:"high_risk_threshold"`
	MediumRiskThreshold  int     `json:"medium_risk_threshold"`

	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultWalletSettings returns the policy used until an admin saves one.
func DefaultWalletSettings() *WalletSettings {
	return &WalletSettings{
		MinWithdrawal:        100,
		MaxWithdrawal:        50_000,
		DailyWithdrawalCap:   100_000,
		MaxWithdrawalsPerDay: 3,
		CooldownHours:        1,
		FeeType:              FeeNone,
		FeeValue:             0,
		NewAccountWindowDays: 7,
		NewAccountMaxAmount:  5_000,
		RapidWindowHours:     24,
		RapidMaxCount:        3,
		LargeAmountThreshold: 25_000,
		LargeBalanceFraction: 0.8,
		HighRiskThreshold:    70,
		MediumRiskThreshold:  40,
		UpdatedAt:            time.Now().UTC(),
	}
}

// WithdrawalFee computes the fee for a requested amount. Pure function of
// the fee schedule.
func (s *WalletSettings) WithdrawalFee(amount int64) int64 {
	switch s.FeeType {
	case FeeFixed:
		return s.FeeValue
	case FeePercentage:
		return amount * s.FeeValue / 100
	default:
		return 0
	}
}
