package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultVendorCommissionRate is the vendor's share of gross service value
// when no explicit rate is supplied.
const DefaultVendorCommissionRate = 0.7

// ReceivedBy says which party physically collected the client's money.
type ReceivedBy string

const (
	ReceivedByPlatform ReceivedBy = "platform" // paid online
	ReceivedByVendor   ReceivedBy = "vendor"   // paid in person
)

// PaymentEvent is one completed appointment/service line feeding the
// settlement calculator. Events are produced by the booking collaborator;
// this core only reads them.
type PaymentEvent struct {
	ID            uuid.UUID  `json:"id"`
	AppointmentID string     `json:"appointment_id"`
	VendorID      AccountID  `json:"vendor_id"`
	GrossAmount   int64      `json:"gross_amount"`
	PlatformFee   int64      `json:"platform_fee"`
	ServiceTax    int64      `json:"service_tax"`
	ReceivedBy    ReceivedBy `json:"received_by"`
	PaidAt        time.Time  `json:"paid_at"`
}

// TransferDirection labels a recorded money movement between platform and vendor.
type TransferDirection string

const (
	TransferToVendor TransferDirection = "to_vendor" // "Payment to Vendor"
	TransferToAdmin  TransferDirection = "to_admin"  // "Payment to Admin"
)

// TransferRecord is one settled transfer between the platform and a vendor.
type TransferRecord struct {
	ID            uuid.UUID         `json:"id"`
	VendorID      AccountID         `json:"vendor_id"`
	Direction     TransferDirection `json:"direction"`
	Amount        int64             `json:"amount"`
	Note          string            `json:"note,omitempty"`
	TransferredAt time.Time         `json:"transferred_at"`
}

// SettlementLine is the per-event breakdown in a settlement report.
type SettlementLine struct {
	EventID               uuid.UUID  `json:"event_id"`
	AppointmentID         string     `json:"appointment_id"`
	ReceivedBy            ReceivedBy `json:"received_by"`
	GrossAmount           int64      `json:"gross_amount"`
	PlatformFee           int64      `json:"platform_fee"`
	ServiceTax            int64      `json:"service_tax"`
	VendorServiceEarning  int64      `json:"vendor_service_earning"`
	SalonCommissionAmount int64      `json:"salon_commission_amount"`
	AdminOwesVendor       int64      `json:"admin_owes_vendor"`
	VendorOwesAdmin       int64      `json:"vendor_owes_admin"`
}

// SettlementReport is the read-only reconciliation of computed obligations
// against recorded transfers for a date window.
type SettlementReport struct {
	From                     time.Time        `json:"from"`
	To                       time.Time        `json:"to"`
	VendorID                 *AccountID       `json:"vendor_id,omitempty"`
	CommissionRate           float64          `json:"commission_rate"`
	Lines                    []SettlementLine `json:"lines"`
	TotalAdminOwesVendor     int64            `json:"total_admin_owes_vendor"`
	TotalVendorOwesAdmin     int64            `json:"total_vendor_owes_admin"`
	TotalTransferredToVendor int64            `json:"total_transferred_to_vendor"`
	TotalTransferredToAdmin  int64            `json:"total_transferred_to_admin"`
	NetSettlement            int64            `json:"net_settlement"`
	FinalBalance             int64            `json:"final_balance"`
}
