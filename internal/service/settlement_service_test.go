package service

import (
	"context"
	"testing"
	"time"

	"marketplace-wallet/internal/core/domain"
	"marketplace-wallet/internal/core/ports"
	"marketplace-wallet/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type settlementTestDeps struct {
	svc          *SettlementServiceImpl
	eventRepo    *mocks.MockPaymentEventRepository
	transferRepo *mocks.MockTransferRepository
	ctrl         *gomock.Controller
}

func setupSettlementService(t *testing.T) *settlementTestDeps {
	ctrl := gomock.NewController(t)
	d := &settlementTestDeps{
		eventRepo:    mocks.NewMockPaymentEventRepository(ctrl),
		transferRepo: mocks.NewMockTransferRepository(ctrl),
		ctrl:         ctrl,
	}
	d.svc = NewSettlementService(d.eventRepo, d.transferRepo, zerolog.Nop())
	return d
}

func settlementWindow() (time.Time, time.Time) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

func TestSettlementService_Reconcile_MixedCollection(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	from, to := settlementWindow()
	vendorID := domain.NewAccountID()

	events := []domain.PaymentEvent{
		{
			ID:            uuid.New(),
			AppointmentID: "APT-001",
			VendorID:      vendorID,
			GrossAmount:   10_000,
			PlatformFee:   500,
			ServiceTax:    300,
			ReceivedBy:    domain.ReceivedByPlatform,
		},
		{
			ID:            uuid.New(),
			AppointmentID: "APT-002",
			VendorID:      vendorID,
			GrossAmount:   6_000,
			PlatformFee:   400,
			ServiceTax:    200,
			ReceivedBy:    domain.ReceivedByVendor,
		},
	}
	transfers := []domain.TransferRecord{
		{ID: uuid.New(), VendorID: vendorID, Direction: domain.TransferToVendor, Amount: 4_000},
		{ID: uuid.New(), VendorID: vendorID, Direction: domain.TransferToAdmin, Amount: 1_000},
	}

	d.eventRepo.EXPECT().ListByWindow(ctx, from, to, &vendorID).Return(events, nil)
	d.transferRepo.EXPECT().ListByWindow(ctx, from, to, &vendorID).Return(transfers, nil)

	report, err := d.svc.Reconcile(ctx, ports.SettlementQuery{From: from, To: to, VendorID: &vendorID})
	require.NoError(t, err)
	require.Len(t, report.Lines, 2)

	// Platform collected: admin holds the vendor's gross.
	assert.Equal(t, int64(10_000), report.Lines[0].AdminOwesVendor)
	assert.Zero(t, report.Lines[0].VendorOwesAdmin)
	// Vendor collected: vendor owes the platform its fee plus tax.
	assert.Equal(t, int64(600), report.Lines[1].VendorOwesAdmin)
	assert.Zero(t, report.Lines[1].AdminOwesVendor)

	// Commission breakdown at the default 0.7 rate.
	assert.Equal(t, 0.7, report.CommissionRate)
	assert.Equal(t, int64(7_000), report.Lines[0].VendorServiceEarning)
	assert.Equal(t, int64(3_000), report.Lines[0].SalonCommissionAmount)

	assert.Equal(t, int64(10_000), report.TotalAdminOwesVendor)
	assert.Equal(t, int64(600), report.TotalVendorOwesAdmin)
	assert.Equal(t, int64(9_400), report.NetSettlement)
	// 9400 - (4000 - 1000) = 6400 still owed to the vendor.
	assert.Equal(t, int64(6_400), report.FinalBalance)
}

func TestSettlementService_Reconcile_EmptyWindow(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	from, to := settlementWindow()

	d.eventRepo.EXPECT().ListByWindow(ctx, from, to, nil).Return(nil, nil)
	d.transferRepo.EXPECT().ListByWindow(ctx, from, to, nil).Return(nil, nil)

	report, err := d.svc.Reconcile(ctx, ports.SettlementQuery{From: from, To: to})
	require.NoError(t, err)
	assert.Empty(t, report.Lines)
	assert.Zero(t, report.NetSettlement)
	assert.Zero(t, report.FinalBalance)
}

func TestSettlementService_Reconcile_CustomCommissionRate(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	from, to := settlementWindow()

	events := []domain.PaymentEvent{
		{ID: uuid.New(), GrossAmount: 9_999, ReceivedBy: domain.ReceivedByPlatform},
	}

	d.eventRepo.EXPECT().ListByWindow(ctx, from, to, nil).Return(events, nil)
	d.transferRepo.EXPECT().ListByWindow(ctx, from, to, nil).Return(nil, nil)

	report, err := d.svc.Reconcile(ctx, ports.SettlementQuery{From: from, To: to, CommissionRate: 0.5})
	require.NoError(t, err)
	// 9999 * 0.5 rounds to 5000; earning plus commission covers the gross.
	assert.Equal(t, int64(5_000), report.Lines[0].VendorServiceEarning)
	assert.Equal(t, int64(4_999), report.Lines[0].SalonCommissionAmount)
}

func TestSettlementService_Reconcile_InvalidWindow(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	from, to := settlementWindow()

	report, err := d.svc.Reconcile(context.Background(), ports.SettlementQuery{From: to, To: from})
	assert.Nil(t, report)
	assertAppError(t, err, "VAL_001")
}

func TestSettlementService_Reconcile_InvalidRate(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	from, to := settlementWindow()

	report, err := d.svc.Reconcile(context.Background(), ports.SettlementQuery{From: from, To: to, CommissionRate: 1.5})
	assert.Nil(t, report)
	assertAppError(t, err, "VAL_001")
}
