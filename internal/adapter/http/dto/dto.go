package dto

// RegisterRequest is the request body for operator registration.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50,safe_id"`
	Password string `json:"password" binding:"required,min=8,max=128"`
	Role     string `json:"role" binding:"required,oneof=admin crm"`
}

// LoginRequest is the request body for operator login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterResponse is the response body for successful registration.
type RegisterResponse struct {
	OperatorID string `json:"operator_id"`
	Username   string `json:"username"`
	Role       string `json:"role"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// CreateAccountRequest opens a wallet account for a marketplace party.
type CreateAccountRequest struct {
	OwnerName  string  `json:"owner_name" binding:"required,min=1,max=100"`
	Role       string  `json:"role" binding:"required,oneof=customer vendor doctor supplier"`
	ReferredBy *string `json:"referred_by,omitempty" binding:"omitempty,uuid"`
}

// AccountResponse is the wallet account view.
type AccountResponse struct {
	ID         string  `json:"id"`
	OwnerName  string  `json:"owner_name"`
	Role       string  `json:"role"`
	Balance    int64   `json:"balance"`
	ReferredBy *string `json:"referred_by,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

// RecordTransactionRequest is the request body for a ledger write.
type RecordTransactionRequest struct {
	AccountID      string            `json:"account_id" binding:"required,uuid"`
	Direction      string            `json:"direction" binding:"required,oneof=credit debit"`
	Amount         int64             `json:"amount" binding:"required,gt=0"`
	Source         string            `json:"source" binding:"required,max=50"`
	IdempotencyKey string            `json:"idempotency_key,omitempty" binding:"omitempty,max=100,safe_id"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// LedgerEntryResponse is one ledger entry in API form.
type LedgerEntryResponse struct {
	ID             string            `json:"id"`
	AccountID      string            `json:"account_id"`
	Direction      string            `json:"direction"`
	Amount         int64             `json:"amount"`
	BalanceBefore  int64             `json:"balance_before"`
	BalanceAfter   int64             `json:"balance_after"`
	Source         string            `json:"source"`
	Status         string            `json:"status"`
	IdempotencyKey string            `json:"idempotency_key"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      string            `json:"created_at"`
}

// BalanceResponse is the response for a balance query.
type BalanceResponse struct {
	AccountID string `json:"account_id"`
	Balance   int64  `json:"balance"`
}

// VerifyBalanceResponse reports the balance audit for one account.
type VerifyBalanceResponse struct {
	AccountID  string `json:"account_id"`
	Stored     int64  `json:"stored_balance"`
	Derived    int64  `json:"derived_balance"`
	Consistent bool   `json:"consistent"`
}

// LedgerListResponse wraps a paginated ledger entry list.
type LedgerListResponse struct {
	Items      []LedgerEntryResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}

// CreateReferralRequest registers a referral relationship.
type CreateReferralRequest struct {
	ReferralType     string `json:"referral_type" binding:"required,oneof=C2C C2V V2V"`
	ReferrerID       string `json:"referrer_id" binding:"required,uuid"`
	RefereeID        string `json:"referee_id" binding:"required,uuid"`
	BonusDescription string `json:"bonus_description,omitempty" binding:"max=256"`
}

// ReferralResponse is the referral record view.
type ReferralResponse struct {
	ID            string `json:"id"`
	Reference     string `json:"reference"`
	ReferralType  string `json:"referral_type"`
	ReferrerID    string `json:"referrer_id"`
	RefereeID     string `json:"referee_id"`
	Status        string `json:"status"`
	ReferrerBonus int64  `json:"referrer_bonus"`
	RefereeBonus  int64  `json:"referee_bonus"`
	CreatedAt     string `json:"created_at"`
	BonusPaidAt   string `json:"bonus_paid_at,omitempty"`
}

// CreditReferralRequest settles one referral's bonus directly.
type CreditReferralRequest struct {
	ReferralID   string `json:"referral_id" binding:"required,uuid"`
	ReferrerID   string `json:"referrer_id" binding:"required,uuid"`
	RefereeID    string `json:"referee_id" binding:"required,uuid"`
	TriggerEvent string `json:"trigger_event" binding:"required,max=50"`
	Region       string `json:"region,omitempty" binding:"max=50"`
}

// ReferralEventRequest is the event-driven crediting entry point fired by
// booking/order collaborators on completion events.
type ReferralEventRequest struct {
	AccountID string `json:"account_id" binding:"required,uuid"`
	EventType string `json:"event_type" binding:"required,max=50"`
}

// ReferralCreditResponse reports a settlement attempt outcome.
type ReferralCreditResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	ReferrerAmount int64  `json:"referrer_amount"`
	RefereeAmount  int64  `json:"referee_amount"`
}

// BonusConfigDTO describes one side's reward in a settings document.
type BonusConfigDTO struct {
	Enabled    bool   `json:"enabled"`
	Type       string `json:"type" binding:"required,oneof=amount discount"`
	Value      int64  `json:"value" binding:"min=0"`
	CreditTime string `json:"credit_time" binding:"required,oneof=on_signup on_first_booking on_first_order"`
}

// ReferralSettingsRequest upserts the bonus configuration for one
// referral type, optionally scoped to a region.
type ReferralSettingsRequest struct {
	ReferralType     string         `json:"referral_type" binding:"required,oneof=C2C C2V V2V"`
	Region           string         `json:"region,omitempty" binding:"max=50"`
	ReferrerBonus    BonusConfigDTO `json:"referrer_bonus" binding:"required"`
	RefereeBonus     BonusConfigDTO `json:"referee_bonus" binding:"required"`
	UsageLimitMode   string         `json:"usage_limit_mode" binding:"required,oneof=unlimited manual"`
	UsageCount       int            `json:"usage_count,omitempty" binding:"min=0"`
	MinOrderAmount   int64          `json:"min_order_amount" binding:"min=0"`
	MinBookingAmount int64          `json:"min_booking_amount" binding:"min=0"`
	PayoutCycleDays  int            `json:"payout_cycle_days" binding:"min=0"`
}

// BankDetailsDTO is the payout destination on a withdrawal submission.
type BankDetailsDTO struct {
	AccountHolder string `json:"account_holder" binding:"required,min=1,max=100"`
	AccountNumber string `json:"account_number,omitempty" binding:"omitempty,max=34,safe_id"`
	IFSC          string `json:"ifsc,omitempty" binding:"omitempty,len=11,safe_id"`
	UPIID         string `json:"upi_id,omitempty" binding:"omitempty,max=100,upi"`
}

// EvaluateWithdrawalRequest runs the risk rules without persisting.
type EvaluateWithdrawalRequest struct {
	AccountID string         `json:"account_id" binding:"required,uuid"`
	Amount    int64          `json:"amount" binding:"required,gt=0"`
	Bank      BankDetailsDTO `json:"bank" binding:"required"`
}

// SubmitWithdrawalRequest is the request body for a withdrawal submission.
type SubmitWithdrawalRequest struct {
	AccountID string         `json:"account_id" binding:"required,uuid"`
	Amount    int64          `json:"amount" binding:"required,gt=0"`
	Bank      BankDetailsDTO `json:"bank" binding:"required"`
}

// FailWithdrawalRequest is the payout failure/cancellation callback body.
type FailWithdrawalRequest struct {
	Status string `json:"status" binding:"required,oneof=failed cancelled"`
	Reason string `json:"reason" binding:"required,max=256"`
}

// RiskAssessmentResponse is the dry-run screening outcome.
type RiskAssessmentResponse struct {
	RiskScore int      `json:"risk_score"`
	RiskFlags []string `json:"risk_flags"`
	Routing   string   `json:"routing"`
}

// WithdrawalResponse is one withdrawal request in API form.
type WithdrawalResponse struct {
	ID          string   `json:"id"`
	Reference   string   `json:"reference"`
	AccountID   string   `json:"account_id"`
	Amount      int64    `json:"amount"`
	Fee         int64    `json:"fee"`
	NetAmount   int64    `json:"net_amount"`
	RiskScore   int      `json:"risk_score"`
	RiskFlags   []string `json:"risk_flags,omitempty"`
	Status      string   `json:"status"`
	Reason      string   `json:"reason,omitempty"`
	RequestedAt string   `json:"requested_at"`
	CompletedAt string   `json:"completed_at,omitempty"`
}

// WithdrawalListResponse wraps a paginated withdrawal list.
type WithdrawalListResponse struct {
	Items      []WithdrawalResponse `json:"items"`
	Total      int64                `json:"total"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"page_size"`
	TotalPages int                  `json:"total_pages"`
}

// WalletSettingsRequest saves the global wallet policy.
type WalletSettingsRequest struct {
	MinWithdrawal        int64   `json:"min_withdrawal" binding:"required,gt=0"`
	MaxWithdrawal        int64   `json:"max_withdrawal" binding:"required,gt=0"`
	DailyWithdrawalCap   int64   `json:"daily_withdrawal_cap" binding:"required,gt=0"`
	MaxWithdrawalsPerDay int     `json:"max_withdrawals_per_day" binding:"required,gt=0"`
	CooldownHours        int     `json:"cooldown_hours" binding:"min=0"`
	FeeType              string  `json:"fee_type" binding:"required,oneof=none percentage fixed"`
	FeeValue             int64   `json:"fee_value" binding:"min=0"`
	NewAccountWindowDays int     `json:"new_account_window_days" binding:"min=0"`
	NewAccountMaxAmount  int64   `json:"new_account_max_amount" binding:"min=0"`
	RapidWindowHours     int     `json:"rapid_window_hours" binding:"min=0"`
	RapidMaxCount        int     `json:"rapid_max_count" binding:"min=0"`
	LargeAmountThreshold int64   `json:"large_amount_threshold" binding:"min=0"`
	LargeBalanceFraction float64 `json:"large_balance_fraction" binding:"min=0,max=1"`
	HighRiskThreshold    int     `json:"high_risk_threshold" binding:"required,gt=0,max=100"`
	MediumRiskThreshold  int     `json:"medium_risk_threshold" binding:"required,gt=0,max=100"`
}

// PaymentEventRequest ingests one completed appointment/service line
// from the booking collaborator.
type PaymentEventRequest struct {
	AppointmentID string `json:"appointment_id" binding:"required,max=100,safe_id"`
	VendorID      string `json:"vendor_id" binding:"required,uuid"`
	GrossAmount   int64  `json:"gross_amount" binding:"required,gt=0"`
	PlatformFee   int64  `json:"platform_fee" binding:"min=0"`
	ServiceTax    int64  `json:"service_tax" binding:"min=0"`
	ReceivedBy    string `json:"received_by" binding:"required,oneof=platform vendor"`
	PaidAt        string `json:"paid_at,omitempty"` // RFC3339; defaults to now
}

// TransferRequest records one settled platform<->vendor transfer.
type TransferRequest struct {
	VendorID      string `json:"vendor_id" binding:"required,uuid"`
	Direction     string `json:"direction" binding:"required,oneof=to_vendor to_admin"`
	Amount        int64  `json:"amount" binding:"required,gt=0"`
	Note          string `json:"note,omitempty" binding:"max=256"`
	TransferredAt string `json:"transferred_at,omitempty"` // RFC3339; defaults to now
}
