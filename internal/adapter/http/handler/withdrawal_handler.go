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

// WithdrawalHandler handles withdrawal screening, lifecycle callbacks, and
// the global wallet policy.
type WithdrawalHandler struct {
	withdrawalSvc ports.WithdrawalService
	settingsRepo  ports.WalletSettingsRepository
}

// NewWithdrawalHandler creates a new WithdrawalHandler.
func NewWithdrawalHandler(withdrawalSvc ports.WithdrawalService, settingsRepo ports.WalletSettingsRepository) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawalSvc: withdrawalSvc, settingsRepo: settingsRepo}
}

// Evaluate handles POST /api/v1/withdrawals/evaluate — a dry run of the
// risk rules that persists nothing.
func (h *WithdrawalHandler) Evaluate(c *gin.Context) {
	var req dto.EvaluateWithdrawalRequest
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

	assessment, err := h.withdrawalSvc.EvaluateWithdrawal(c.Request.Context(), accountID, req.Amount, toBankDetails(req.Bank))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.RiskAssessmentResponse{
		RiskScore: assessment.Score,
		RiskFlags: assessment.Flags,
		Routing:   string(assessment.Routing),
	})
}

// Submit handles POST /api/v1/withdrawals.
func (h *WithdrawalHandler) Submit(c *gin.Context) {
	var req dto.SubmitWithdrawalRequest
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

	withdrawal, err := h.withdrawalSvc.SubmitWithdrawal(c.Request.Context(), ports.SubmitWithdrawalRequest{
		AccountID: accountID,
		Amount:    req.Amount,
		Bank:      toBankDetails(req.Bank),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toWithdrawalResponse(withdrawal))
}

// Complete handles POST /api/v1/withdrawals/:id/complete — the payout
// collaborator's success callback.
func (h *WithdrawalHandler) Complete(c *gin.Context) {
	id, ok := withdrawalIDParam(c)
	if !ok {
		return
	}

	withdrawal, err := h.withdrawalSvc.CompleteWithdrawal(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toWithdrawalResponse(withdrawal))
}

// Fail handles POST /api/v1/withdrawals/:id/fail — the payout failure or
// cancellation callback. No ledger debit happens here.
func (h *WithdrawalHandler) Fail(c *gin.Context) {
	id, ok := withdrawalIDParam(c)
	if !ok {
		return
	}

	var req dto.FailWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	withdrawal, err := h.withdrawalSvc.FailWithdrawal(c.Request.Context(), id, domain.WithdrawalStatus(req.Status), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toWithdrawalResponse(withdrawal))
}

// List handles GET /api/v1/withdrawals.
func (h *WithdrawalHandler) List(c *gin.Context) {
	var params ports.WithdrawalListParams
	params.Page, params.PageSize = parsePagination(c)

	if raw := c.Query("account_id"); raw != "" {
		accountID, err := domain.ParseAccountID(raw)
		if err != nil {
			response.Error(c, apperror.ErrInvalidAccountID(raw))
			return
		}
		params.AccountID = &accountID
	}
	if raw := c.Query("status"); raw != "" {
		status := domain.WithdrawalStatus(raw)
		params.Status = &status
	}

	withdrawals, total, err := h.withdrawalSvc.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.WithdrawalResponse, 0, len(withdrawals))
	for i := range withdrawals {
		items = append(items, toWithdrawalResponse(&withdrawals[i]))
	}

	response.OK(c, dto.WithdrawalListResponse{
		Items:      items,
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: totalPages(total, params.PageSize),
	})
}

// GetWalletSettings handles GET /api/v1/wallet-settings.
func (h *WithdrawalHandler) GetWalletSettings(c *gin.Context) {
	settings, err := h.settingsRepo.Get(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if settings == nil {
		settings = domain.DefaultWalletSettings()
	}
	response.OK(c, settings)
}

// SaveWalletSettings handles PUT /api/v1/wallet-settings.
func (h *WithdrawalHandler) SaveWalletSettings(c *gin.Context) {
	var req dto.WalletSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	if req.MinWithdrawal > req.MaxWithdrawal {
		response.Error(c, apperror.Validation("min_withdrawal must not exceed max_withdrawal"))
		return
	}
	if req.MediumRiskThreshold >= req.HighRiskThreshold {
		response.Error(c, apperror.Validation("medium_risk_threshold must be below high_risk_threshold"))
		return
	}

	settings := &domain.WalletSettings{
		MinWithdrawal:        req.MinWithdrawal,
		MaxWithdrawal:        req.MaxWithdrawal,
		DailyWithdrawalCap:   req.DailyWithdrawalCap,
		MaxWithdrawalsPerDay: req.MaxWithdrawalsPerDay,
		CooldownHours:        req.CooldownHours,
		FeeType:              domain.FeeType(req.FeeType),
		FeeValue:             req.FeeValue,
		NewAccountWindowDays: req.NewAccountWindowDays,
		NewAccountMaxAmount:  req.NewAccountMaxAmount,
		RapidWindowHours:     req.RapidWindowHours,
		RapidMaxCount:        req.RapidMaxCount,
		LargeAmountThreshold: req.LargeAmountThreshold,
		LargeBalanceFraction: req.LargeBalanceFraction,
		HighRiskThreshold:    req.HighRiskThreshold,
		MediumRiskThreshold:  req.MediumRiskThreshold,
		UpdatedAt:            time.Now().UTC(),
	}

	if err := h.settingsRepo.Save(c.Request.Context(), settings); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, settings)
}

func withdrawalIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("malformed withdrawal id"))
		return uuid.Nil, false
	}
	return id, true
}

func toBankDetails(b dto.BankDetailsDTO) domain.BankDetails {
	return domain.BankDetails{
		AccountHolder: b.AccountHolder,
		AccountNumber: b.AccountNumber,
		IFSC:          b.IFSC,
		UPIID:         b.UPIID,
	}
}

func toWithdrawalResponse(w *domain.WithdrawalRequest) dto.WithdrawalResponse {
	resp := dto.WithdrawalResponse{
		ID:          w.ID.String(),
		Reference:   w.Reference,
		AccountID:   w.AccountID.String(),
		Amount:      w.Amount,
		Fee:         w.Fee,
		NetAmount:   w.NetAmount,
		RiskScore:   w.RiskScore,
		RiskFlags:   w.RiskFlags,
		Status:      string(w.Status),
		Reason:      w.Reason,
		RequestedAt: w.RequestedAt.Format(time.RFC3339),
	}
	if w.CompletedAt != nil {
		resp.CompletedAt = w.CompletedAt.Format(time.RFC3339)
	}
	return resp
}
