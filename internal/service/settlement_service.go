package service

import (
	"context"
	"fmt"
	"math"

	"marketplace-wallet/internal/core/domain"
	"marketplace-wallet/internal/core/ports"
	"marketplace-wallet/pkg/apperror"

	"github.com/rs/zerolog"
)

// SettlementServiceImpl implements ports.SettlementService. Reconcile is a
// pure read: it computes obligations from the payment event stream and nets
// them against recorded transfers without writing anything.
type SettlementServiceImpl struct {
	eventRepo    ports.PaymentEventRepository
	transferRepo ports.TransferRepository
	log          zerolog.Logger
}

// NewSettlementService creates a new SettlementServiceImpl.
func NewSettlementService(
	eventRepo ports.PaymentEventRepository,
	transferRepo ports.TransferRepository,
	log zerolog.Logger,
) *SettlementServiceImpl {
	return &SettlementServiceImpl{
		eventRepo:    eventRepo,
		transferRepo: transferRepo,
		log:          log,
	}
}

// Reconcile builds the settlement report for a date window.
//
// Who owes whom depends on who physically collected the client's money:
// platform-collected events put the full gross on the admin side of the
// ledger, vendor-collected events put the platform fee plus tax on the
// vendor side.
func (s *SettlementServiceImpl) Reconcile(ctx context.Context, req ports.SettlementQuery) (*domain.SettlementReport, error) {
	if !req.From.Before(req.To) {
		return nil, apperror.Validation("settlement window start must be before its end")
	}

	rate := req.CommissionRate
	if rate == 0 {
		rate = domain.DefaultVendorCommissionRate
	}
	if rate < 0 || rate > 1 {
		return nil, apperror.Validation("commission rate must be between 0 and 1")
	}

	events, err := s.eventRepo.ListByWindow(ctx, req.From, req.To, req.VendorID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list payment events: %w", err))
	}
	transfers, err := s.transferRepo.ListByWindow(ctx, req.From, req.To, req.VendorID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list transfers: %w", err))
	}

	report := &domain.SettlementReport{
		From:           req.From,
		To:             req.To,
		VendorID:       req.VendorID,
		CommissionRate: rate,
		Lines:          make([]domain.SettlementLine, 0, len(events)),
	}

	for _, ev := range events {
		earning := int64(math.Round(float64(ev.GrossAmount) * rate))
		line := domain.SettlementLine{
			EventID:               ev.ID,
			AppointmentID:         ev.AppointmentID,
			ReceivedBy:            ev.ReceivedBy,
			GrossAmount:           ev.GrossAmount,
			PlatformFee:           ev.PlatformFee,
			ServiceTax:            ev.ServiceTax,
			VendorServiceEarning:  earning,
			SalonCommissionAmount: ev.GrossAmount - earning,
		}

		switch ev.ReceivedBy {
		case domain.ReceivedByPlatform:
			line.AdminOwesVendor = ev.GrossAmount
		case domain.ReceivedByVendor:
			line.VendorOwesAdmin = ev.PlatformFee + ev.ServiceTax
		}

		report.TotalAdminOwesVendor += line.AdminOwesVendor
		report.TotalVendorOwesAdmin += line.VendorOwesAdmin
		report.Lines = append(report.Lines, line)
	}

	for _, tr := range transfers {
		switch tr.Direction {
		case domain.TransferToVendor:
			report.TotalTransferredToVendor += tr.Amount
		case domain.TransferToAdmin:
			report.TotalTransferredToAdmin += tr.Amount
		}
	}

	report.NetSettlement = report.TotalAdminOwesVendor - report.TotalVendorOwesAdmin
	report.FinalBalance = report.NetSettlement - (report.TotalTransferredToVendor - report.TotalTransferredToAdmin)

	s.log.Debug().
		Time("from", req.From).
		Time("to", req.To).
		Int("events", len(events)).
		Int("transfers", len(transfers)).
		Int64("net_settlement", report.NetSettlement).
		Int64("final_balance", report.FinalBalance).
		Msg("settlement reconciled")

	return report, nil
}
