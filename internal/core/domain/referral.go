package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReferralType classifies who referred whom.
type ReferralType string

const (
	ReferralC2C ReferralType = "C2C" // customer referred customer
	ReferralC2V ReferralType = "C2V" // customer referred vendor
	ReferralV2V ReferralType = "V2V" // vendor referred vendor
)

// ReferralStatus is the referral record lifecycle. BonusPaid is terminal.
type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "Pending"
	ReferralStatusCompleted ReferralStatus = "Completed"
	ReferralStatusBonusPaid ReferralStatus = "BonusPaid"
)

// ReferralRecord tracks one referral relationship and whether its bonus
// has been settled. Exactly one successful bonus credit per record.
type ReferralRecord struct {
	ID               uuid.UUID      `json:"id"`
	Reference        string         `json:"reference"` // Human-readable unique reference
	ReferralType     ReferralType   `json:"referral_type"`
	ReferrerID       AccountID      `json:"referrer_id"`
	RefereeID        AccountID      `json:"referee_id"`
	Status           ReferralStatus `json:"status"`
	BonusDescription string         `json:"bonus_description,omitempty"`
	ReferrerBonus    int64          `json:"referrer_bonus"` // Realized amount, set when paid
	RefereeBonus     int64          `json:"referee_bonus"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	BonusPaidAt      *time.Time     `json:"bonus_paid_at,omitempty"`
}

// Creditable reports whether the record may still receive its bonus.
func (r *ReferralRecord) Creditable() bool {
	return r.Status == ReferralStatusPending || r.Status == ReferralStatusCompleted
}

// NewReferralReference generates a unique human-readable referral reference.
func NewReferralReference() string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("REF_%d_%s", time.Now().UnixMilli(), strings.ToUpper(random))
}

// BonusType distinguishes a direct wallet credit from a discount coupon.
type BonusType string

const (
	BonusTypeAmount   BonusType = "amount"
	BonusTypeDiscount BonusType = "discount"
)

// CreditTime says which trigger event releases the bonus.
type CreditTime string

const (
	CreditOnSignup       CreditTime = "on_signup"
	CreditOnFirstBooking CreditTime = "on_first_booking"
	CreditOnFirstOrder   CreditTime = "on_first_order"
)

// BonusConfig describes one side's reward.
type BonusConfig struct {
	Enabled    bool       `json:"enabled"`
	Type       BonusType  `json:"type"`
	Value      int64      `json:"value"` // Smallest currency unit; >= 0
	CreditTime CreditTime `json:"credit_time"`
}

// UsageLimitMode bounds how many referrals a single referrer may redeem.
type UsageLimitMode string

const (
	UsageUnlimited UsageLimitMode = "unlimited"
	UsageManual    UsageLimitMode = "manual"
)

// ReferralSettings is the admin-managed bonus configuration for one referral
// type, optionally scoped to a region (empty region = global fallback).
// Engines read it fresh at crediting time, never from a process cache.
type ReferralSettings struct {
	ID               uuid.UUID      `json:"id"`
	ReferralType     ReferralType   `json:"referral_type"`
	Region           string         `json:"region,omitempty"`
	ReferrerBonus    BonusConfig    `json:"referrer_bonus"`
	RefereeBonus     BonusConfig    `json:"referee_bonus"`
	UsageLimitMode   UsageLimitMode `json:"usage_limit_mode"`
	UsageCount       int            `json:"usage_count,omitempty"` // Cap when mode is manual
	MinOrderAmount   int64          `json:"min_order_amount"`
	MinBookingAmount int64          `json:"min_booking_amount"`
	PayoutCycleDays  int            `json:"payout_cycle_days"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Validate rejects bonus configurations that could corrupt the ledger.
func (s *ReferralSettings) Validate() error {
	if s.ReferralType != ReferralC2C && s.ReferralType != ReferralC2V && s.ReferralType != ReferralV2V {
		return fmt.Errorf("unknown referral type %q", s.ReferralType)
	}
	if s.ReferrerBonus.Value < 0 || s.RefereeBonus.Value < 0 {
		return fmt.Errorf("bonus value must not be negative")
	}
	if s.UsageLimitMode == UsageManual && s.UsageCount <= 0 {
		return fmt.Errorf("manual usage limit requires a positive count")
	}
	return nil
}
