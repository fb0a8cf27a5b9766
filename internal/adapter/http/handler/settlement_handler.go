package handler

import (
	"strconv"
	"time"

	"marketplace-wallet/internal/adapter/http/dto"
	"marketplace-wallet/internal/core/domain"
	"marketplace-wallet/internal/core/ports"
	"marketplace-wallet/pkg/apperror"
	"marketplace-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SettlementHandler handles settlement reconciliation and the ingestion of
// payment events and transfer records from collaborating systems.
type SettlementHandler struct {
	settlementSvc ports.SettlementService
	eventRepo     ports.PaymentEventRepository
	transferRepo  ports.TransferRepository
}

// NewSettlementHandler creates a new SettlementHandler.
func NewSettlementHandler(
	settlementSvc ports.SettlementService,
	eventRepo ports.PaymentEventRepository,
	transferRepo ports.TransferRepository,
) *SettlementHandler {
	return &SettlementHandler{
		settlementSvc: settlementSvc,
		eventRepo:     eventRepo,
		transferRepo:  transferRepo,
	}
}

// Reconcile handles GET /api/v1/settlements/report.
func (h *SettlementHandler) Reconcile(c *gin.Context) {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		response.Error(c, apperror.Validation("from must be RFC3339"))
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		response.Error(c, apperror.Validation("to must be RFC3339"))
		return
	}

	query := ports.SettlementQuery{From: from, To: to}

	if raw := c.Query("vendor_id"); raw != "" {
		vendorID, err := domain.ParseAccountID(raw)
		if err != nil {
			response.Error(c, apperror.ErrInvalidAccountID(raw))
			return
		}
		query.VendorID = &vendorID
	}
	if raw := c.Query("commission_rate"); raw != "" {
		rate, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			response.Error(c, apperror.Validation("commission_rate must be a number"))
			return
		}
		query.CommissionRate = rate
	}

	report, err := h.settlementSvc.Reconcile(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, report)
}

// IngestEvent handles POST /api/v1/settlements/events.
func (h *SettlementHandler) IngestEvent(c *gin.Context) {
	var req dto.PaymentEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	vendorID, err := domain.ParseAccountID(req.VendorID)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAccountID(req.VendorID))
		return
	}
	paidAt, ok := parseOptionalTime(c, req.PaidAt, "paid_at")
	if !ok {
		return
	}

	event := &domain.PaymentEvent{
		ID:            uuid.New(),
		AppointmentID: req.AppointmentID,
		VendorID:      vendorID,
		GrossAmount:   req.GrossAmount,
		PlatformFee:   req.PlatformFee,
		ServiceTax:    req.ServiceTax,
		ReceivedBy:    domain.ReceivedBy(req.ReceivedBy),
		PaidAt:        paidAt,
	}

	if err := h.eventRepo.Create(c.Request.Context(), event); err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, event)
}

// RecordTransfer handles POST /api/v1/settlements/transfers.
func (h *SettlementHandler) RecordTransfer(c *gin.Context) {
	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	vendorID, err := domain.ParseAccountID(req.VendorID)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAccountID(req.VendorID))
		return
	}
	transferredAt, ok := parseOptionalTime(c, req.TransferredAt, "transferred_at")
	if !ok {
		return
	}

	transfer := &domain.TransferRecord{
		ID:            uuid.New(),
		VendorID:      vendorID,
		Direction:     domain.TransferDirection(req.Direction),
		Amount:        req.Amount,
		Note:          req.Note,
		TransferredAt: transferredAt,
	}

	if err := h.transferRepo.Create(c.Request.Context(), transfer); err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, transfer)
}

// parseOptionalTime parses an RFC3339 timestamp, defaulting to now when
// empty. Writes the error response itself on failure.
func parseOptionalTime(c *gin.Context, raw, field string) (time.Time, bool) {
	if raw == "" {
		return time.Now().UTC(), true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		response.Error(c, apperror.Validation(field+" must be RFC3339"))
		return time.Time{}, false
	}
	return t, true
}
