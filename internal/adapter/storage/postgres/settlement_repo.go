package postgres

import (
	"context"
	"fmt"
	"time"

	"marketplace-wallet/internal/core/domain"

	"github.com/google/uuid"
)

// PaymentEventRepo implements ports.PaymentEventRepository over the
// completed payment event stream written by the booking collaborator.
type PaymentEventRepo struct {
	pool Pool
}

// NewPaymentEventRepo creates a new PaymentEventRepo.
func NewPaymentEventRepo(pool Pool) *PaymentEventRepo {
	return &PaymentEventRepo{pool: pool}
}

// Create inserts a payment event.
func (r *PaymentEventRepo) Create(ctx context.Context, e *domain.PaymentEvent) error {
	query := `INSERT INTO payment_events (id, appointment_id, vendor_id, gross_amount, platform_fee, service_tax, received_by, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		e.ID, e.AppointmentID, e.VendorID.UUID(),
		e.GrossAmount, e.PlatformFee, e.ServiceTax, e.ReceivedBy, e.PaidAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment event: %w", translateError(err))
	}
	return nil
}

// ListByWindow fetches events inside the date window, optionally scoped
// to one vendor.
func (r *PaymentEventRepo) ListByWindow(ctx context.Context, from, to time.Time, vendorID *domain.AccountID) ([]domain.PaymentEvent, error) {
	query := `SELECT id, appointment_id, vendor_id, gross_amount, platform_fee, service_tax, received_by, paid_at
		FROM payment_events WHERE paid_at >= $1 AND paid_at <= $2`
	args := []any{from, to}
	if vendorID != nil {
		query += ` AND vendor_id = $3`
		args = append(args, vendorID.UUID())
	}
	query += ` ORDER BY paid_at ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list payment events: %w", err)
	}
	defer rows.Close()

	var events []domain.PaymentEvent
	for rows.Next() {
		var e domain.PaymentEvent
		var vendor uuid.UUID
		if err := rows.Scan(&e.ID, &e.AppointmentID, &vendor, &e.GrossAmount, &e.PlatformFee, &e.ServiceTax, &e.ReceivedBy, &e.PaidAt); err != nil {
			return nil, fmt.Errorf("scan payment event: %w", err)
		}
		e.VendorID = domain.AccountIDFromUUID(vendor)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment events: %w", err)
	}
	return events, nil
}

// TransferRepo implements ports.TransferRepository.
type TransferRepo struct {
	pool Pool
}

// NewTransferRepo creates a new TransferRepo.
func NewTransferRepo(pool Pool) *TransferRepo {
	return &TransferRepo{pool: pool}
}

// Create inserts a transfer record.
func (r *TransferRepo) Create(ctx context.Context, t *domain.TransferRecord) error {
	query := `INSERT INTO transfer_records (id, vendor_id, direction, amount, note, transferred_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		t.ID, t.VendorID.UUID(), t.Direction, t.Amount, t.Note, t.TransferredAt,
	)
	if err != nil {
		return fmt.Errorf("insert transfer record: %w", translateError(err))
	}
	return nil
}

// ListByWindow fetches transfers inside the date window, optionally scoped
// to one vendor.
func (r *TransferRepo) ListByWindow(ctx context.Context, from, to time.Time, vendorID *domain.AccountID) ([]domain.TransferRecord, error) {
	query := `SELECT id, vendor_id, direction, amount, note, transferred_at
		FROM transfer_records WHERE transferred_at >= $1 AND transferred_at <= $2`
	args := []any{from, to}
	if vendorID != nil {
		query += ` AND vendor_id = $3`
		args = append(args, vendorID.UUID())
	}
	query += ` ORDER BY transferred_at ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transfer records: %w", err)
	}
	defer rows.Close()

	var transfers []domain.TransferRecord
	for rows.Next() {
		var t domain.TransferRecord
		var vendor uuid.UUID
		if err := rows.Scan(&t.ID, &vendor, &t.Direction, &t.Amount, &t.Note, &t.TransferredAt); err != nil {
			return nil, fmt.Errorf("scan transfer record: %w", err)
		}
		t.VendorID = domain.AccountIDFromUUID(vendor)
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfer records: %w", err)
	}
	return transfers, nil
}
