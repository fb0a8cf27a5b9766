package handler

import (
	"time"

	"marketplace-wallet/internal/adapter/http/dto"
	"marketplace-wallet/internal/core/domain"
	"marketplace-wallet/internal/core/ports"
	"marketplace-wallet/pkg/apperror"
	"marketplace-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReferralHandler handles referral records, bonus crediting, and the
// admin-managed bonus configuration.
type ReferralHandler struct {
	referralSvc  ports.ReferralService
	referralRepo ports.ReferralRepository
	settingsRepo ports.ReferralSettingsRepository
}

// NewReferralHandler creates a new ReferralHandler.
func NewReferralHandler(
	referralSvc ports.ReferralService,
	referralRepo ports.ReferralRepository,
	settingsRepo ports.ReferralSettingsRepository,
) *ReferralHandler {
	return &ReferralHandler{
		referralSvc:  referralSvc,
		referralRepo: referralRepo,
		settingsRepo: settingsRepo,
	}
}

// CreateReferral handles POST /api/v1/referrals.
func (h *ReferralHandler) CreateReferral(c *gin.Context) {
	var req dto.CreateReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	referrerID, err := domain.ParseAccountID(req.ReferrerID)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAccountID(req.ReferrerID))
		return
	}
	refereeID, err := domain.ParseAccountID(req.RefereeID)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAccountID(req.RefereeID))
		return
	}
	if referrerID == refereeID {
		response.Error(c, apperror.Validation("referrer and referee must differ"))
		return
	}

	now := time.Now().UTC()
	record := &domain.ReferralRecord{
		ID:               uuid.New(),
		Reference:        domain.NewReferralReference(),
		ReferralType:     domain.ReferralType(req.ReferralType),
		ReferrerID:       referrerID,
		RefereeID:        refereeID,
		Status:           domain.ReferralStatusPending,
		BonusDescription: req.BonusDescription,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := h.referralRepo.Create(c.Request.Context(), record); err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toReferralResponse(record))
}

// GetReferral handles GET /api/v1/referrals/:id.
func (h *ReferralHandler) GetReferral(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("malformed referral id"))
		return
	}

	record, err := h.referralRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if record == nil {
		response.Error(c, apperror.ErrReferralNotFound())
		return
	}

	response.OK(c, toReferralResponse(record))
}

// CreditBonus handles POST /api/v1/referrals/credit.
func (h *ReferralHandler) CreditBonus(c *gin.Context) {
	var req dto.CreditReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	referralID, err := uuid.Parse(req.ReferralID)
	if err != nil {
		response.Error(c, apperror.Validation("malformed referral id"))
		return
	}
	referrerID, err := domain.ParseAccountID(req.ReferrerID)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAccountID(req.ReferrerID))
		return
	}
	refereeID, err := domain.ParseAccountID(req.RefereeID)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAccountID(req.RefereeID))
		return
	}

	result, err := h.referralSvc.CreditReferralBonus(c.Request.Context(), ports.CreditReferralRequest{
		ReferralID:   referralID,
		ReferrerID:   referrerID,
		RefereeID:    refereeID,
		TriggerEvent: req.TriggerEvent,
		Region:       req.Region,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toReferralCreditResponse(result))
}

// TriggerEvent handles POST /api/v1/referrals/events — the entry point
// booking/order collaborators fire on completion events.
func (h *ReferralHandler) TriggerEvent(c *gin.Context) {
	var req dto.ReferralEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	accountID, err := domain.ParseAccountID(req.AccountID)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAccountID(req.AccountID))
		return
	}

	result, err := h.referralSvc.CheckAndCreditReferralBonus(c.Request.Context(), accountID, req.EventType)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toReferralCreditResponse(result))
}

// UpsertSettings handles PUT /api/v1/referrals/settings.
func (h *ReferralHandler) UpsertSettings(c *gin.Context) {
	var req dto.ReferralSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	settings := &domain.ReferralSettings{
		ID:               uuid.New(),
		ReferralType:     domain.ReferralType(req.ReferralType),
		Region:           req.Region,
		ReferrerBonus:    toBonusConfig(req.ReferrerBonus),
		RefereeBonus:     toBonusConfig(req.RefereeBonus),
		UsageLimitMode:   domain.UsageLimitMode(req.UsageLimitMode),
		UsageCount:       req.UsageCount,
		MinOrderAmount:   req.MinOrderAmount,
		MinBookingAmount: req.MinBookingAmount,
		PayoutCycleDays:  req.PayoutCycleDays,
		UpdatedAt:        time.Now().UTC(),
	}
	if err := settings.Validate(); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	if err := h.settingsRepo.Upsert(c.Request.Context(), settings); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, settings)
}

// ListSettings handles GET /api/v1/referrals/settings.
func (h *ReferralHandler) ListSettings(c *gin.Context) {
	settings, err := h.settingsRepo.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, settings)
}

func toBonusConfig(b dto.BonusConfigDTO) domain.BonusConfig {
	return domain.BonusConfig{
		Enabled:    b.Enabled,
		Type:       domain.BonusType(b.Type),
		Value:      b.Value,
		CreditTime: domain.CreditTime(b.CreditTime),
	}
}

func toReferralResponse(r *domain.ReferralRecord) dto.ReferralResponse {
	resp := dto.ReferralResponse{
		ID:            r.ID.String(),
		Reference:     r.Reference,
		ReferralType:  string(r.ReferralType),
		ReferrerID:    r.ReferrerID.String(),
		RefereeID:     r.RefereeID.String(),
		Status:        string(r.Status),
		ReferrerBonus: r.ReferrerBonus,
		RefereeBonus:  r.RefereeBonus,
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
	}
	if r.BonusPaidAt != nil {
		resp.BonusPaidAt = r.BonusPaidAt.Format(time.RFC3339)
	}
	return resp
}

func toReferralCreditResponse(r *ports.ReferralCreditResult) dto.ReferralCreditResponse {
	return dto.ReferralCreditResponse{
		Success:        r.Success,
		Message:        r.Message,
		ReferrerAmount: r.ReferrerAmount,
		RefereeAmount:  r.RefereeAmount,
	}
}
