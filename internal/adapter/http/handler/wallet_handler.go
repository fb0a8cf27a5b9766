package handler

import (
	"math"
	"strconv"
	"time"

	"marketplace-wallet/internal/adapter/http/dto"
	"marketplace-wallet/internal/core/domain"
	"marketplace-wallet/internal/core/ports"
	"marketplace-wallet/pkg/apperror"
	"marketplace-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles account and ledger endpoints.
type WalletHandler struct {
	ledgerSvc   ports.LedgerService
	accountRepo ports.AccountRepository
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledgerSvc ports.LedgerService, accountRepo ports.AccountRepository) *WalletHandler {
	return &WalletHandler{ledgerSvc: ledgerSvc, accountRepo: accountRepo}
}

// CreateAccount handles POST /api/v1/accounts.
func (h *WalletHandler) CreateAccount(c *gin.Context) {
	var req dto.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	now := time.Now().UTC()
	account := &domain.Account{
		ID:        domain.NewAccountID(),
		OwnerName: req.OwnerName,
		Role:      domain.AccountRole(req.Role),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.ReferredBy != nil {
		referrer, err := domain.ParseAccountID(*req.ReferredBy)
		if err != nil {
			response.Error(c, apperror.ErrInvalidAccountID(*req.ReferredBy))
			return
		}
		account.ReferredBy = &referrer
	}

	if err := h.accountRepo.Create(c.Request.Context(), account); err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toAccountResponse(account))
}

// RecordTransaction handles POST /api/v1/transactions.
func (h *WalletHandler) RecordTransaction(c *gin.Context) {
	var req dto.RecordTransactionRequest
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

	entry, err := h.ledgerSvc.RecordTransaction(c.Request.Context(), ports.RecordTransactionRequest{
		AccountID:      accountID,
		Direction:      domain.Direction(req.Direction),
		Amount:         req.Amount,
		Source:         domain.Source(req.Source),
		IdempotencyKey: req.IdempotencyKey,
		Metadata:       req.Metadata,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toLedgerEntryResponse(entry))
}

// GetBalance handles GET /api/v1/accounts/:id/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	accountID, ok := accountIDParam(c)
	if !ok {
		return
	}

	account, err := h.ledgerSvc.GetBalance(c.Request.Context(), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{
		AccountID: account.ID.String(),
		Balance:   account.Balance,
	})
}

// VerifyBalance handles GET /api/v1/accounts/:id/verify.
func (h *WalletHandler) VerifyBalance(c *gin.Context) {
	accountID, ok := accountIDParam(c)
	if !ok {
		return
	}

	stored, derived, consistent, err := h.ledgerSvc.VerifyBalance(c.Request.Context(), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.VerifyBalanceResponse{
		AccountID:  accountID.String(),
		Stored:     stored,
		Derived:    derived,
		Consistent: consistent,
	})
}

// ListEntries handles GET /api/v1/accounts/:id/transactions.
func (h *WalletHandler) ListEntries(c *gin.Context) {
	accountID, ok := accountIDParam(c)
	if !ok {
		return
	}

	params := ports.LedgerListParams{AccountID: accountID}
	params.Page, params.PageSize = parsePagination(c)

	if raw := c.Query("source"); raw != "" {
		source := domain.Source(raw)
		params.Source = &source
	}
	if raw := c.Query("status"); raw != "" {
		status := domain.EntryStatus(raw)
		params.Status = &status
	}
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, apperror.Validation("from must be RFC3339"))
			return
		}
		params.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, apperror.Validation("to must be RFC3339"))
			return
		}
		params.To = &to
	}

	entries, total, err := h.ledgerSvc.ListEntries(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.LedgerEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, toLedgerEntryResponse(&entries[i]))
	}

	response.OK(c, dto.LedgerListResponse{
		Items:      items,
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: totalPages(total, params.PageSize),
	})
}

// accountIDParam parses the :id path parameter, writing the error response
// itself on failure.
func accountIDParam(c *gin.Context) (domain.AccountID, bool) {
	raw := c.Param("id")
	accountID, err := domain.ParseAccountID(raw)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAccountID(raw))
		return domain.AccountID{}, false
	}
	return accountID, true
}

// parsePagination reads page/page_size query params with sane defaults.
func parsePagination(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

func totalPages(total int64, pageSize int) int {
	return int(math.Ceil(float64(total) / float64(pageSize)))
}

func toAccountResponse(a *domain.Account) dto.AccountResponse {
	resp := dto.AccountResponse{
		ID:        a.ID.String(),
		OwnerName: a.OwnerName,
		Role:      string(a.Role),
		Balance:   a.Balance,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
	if a.ReferredBy != nil {
		referrer := a.ReferredBy.String()
		resp.ReferredBy = &referrer
	}
	return resp
}

func toLedgerEntryResponse(e *domain.LedgerEntry) dto.LedgerEntryResponse {
	return dto.LedgerEntryResponse{
		ID:             e.ID.String(),
		AccountID:      e.AccountID.String(),
		Direction:      string(e.Direction),
		Amount:         e.Amount,
		BalanceBefore:  e.BalanceBefore,
		BalanceAfter:   e.BalanceAfter,
		Source:         string(e.Source),
		Status:         string(e.Status),
		IdempotencyKey: e.IdempotencyKey,
		Metadata:       e.Metadata,
		CreatedAt:      e.CreatedAt.Format(time.RFC3339),
	}
}
