package handler

import (
	"merchant-settlement/internal/adapter/http/dto"
	"merchant-settlement/internal/adapter/http/middleware"
	"merchant-settlement/internal/core/domain"
	"merchant-settlement/internal/core/ports"
	"merchant-settlement/pkg/apperror"
	"merchant-settlement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WithdrawalHandler handles merchant withdrawal requests and the admin review queue.
type WithdrawalHandler struct {
	withdrawalSvc ports.WithdrawalService
}

// NewWithdrawalHandler creates a new WithdrawalHandler.
func NewWithdrawalHandler(withdrawalSvc ports.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawalSvc: withdrawalSvc}
}

// Create handles POST /api/v1/withdrawals.
func (h *WithdrawalHandler) Create(c *gin.Context) {
	merchantID, _, err := callerID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	w, err := h.withdrawalSvc.RequestWithdrawal(c.Request.Context(), ports.WithdrawalRequestInput{
		MerchantID:  merchantID,
		AmountPaise: req.AmountPaise,
		UPIID:       req.UPIID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, w.ID.String())
	response.Created(c, dto.NewWithdrawalResponse(w))
}

// ListMine handles GET /api/v1/withdrawals.
func (h *WithdrawalHandler) ListMine(c *gin.Context) {
	merchantID, _, err := callerID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.list(c, &merchantID)
}

// List handles GET /api/v1/admin/withdrawals?status=&merchant_id=.
func (h *WithdrawalHandler) List(c *gin.Context) {
	var merchantID *uuid.UUID
	if raw := c.Query("merchant_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Error(c, apperror.Validation("invalid merchant_id"))
			return
		}
		merchantID = &id
	}
	h.list(c, merchantID)
}

func (h *WithdrawalHandler) list(c *gin.Context, merchantID *uuid.UUID) {
	page, pageSize := pagination(c)
	params := ports.WithdrawalListParams{
		MerchantID: merchantID,
		Page:       page,
		PageSize:   pageSize,
	}
	if s := c.Query("status"); s != "" {
		status := domain.WithdrawalStatus(s)
		if !status.IsValid() {
			response.Error(c, apperror.Validation("unknown status "+s))
			return
		}
		params.Status = &status
	}

	out, total, err := h.withdrawalSvc.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.WithdrawalResponse, 0, len(out))
	for i := range out {
		items = append(items, dto.NewWithdrawalResponse(&out[i]))
	}
	response.OK(c, response.NewPage(items, total, page, pageSize))
}

// Get handles GET /api/v1/admin/withdrawals/:id.
func (h *WithdrawalHandler) Get(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	w, err := h.withdrawalSvc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewWithdrawalResponse(w))
}

// Approve handles POST /api/v1/admin/withdrawals/:id/approve.
func (h *WithdrawalHandler) Approve(c *gin.Context) {
	adminID, id, ok := h.reviewTarget(c)
	if !ok {
		return
	}
	w, err := h.withdrawalSvc.Approve(c.Request.Context(), id, adminID)
	h.respond(c, w, err)
}

// Reject handles POST /api/v1/admin/withdrawals/:id/reject.
func (h *WithdrawalHandler) Reject(c *gin.Context) {
	adminID, id, ok := h.reviewTarget(c)
	if !ok {
		return
	}
	var req dto.ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrReasonRequired())
		return
	}
	dto.SanitizeStruct(&req)

	w, err := h.withdrawalSvc.Reject(c.Request.Context(), id, adminID, req.Reason)
	h.respond(c, w, err)
}

// MarkPaid handles POST /api/v1/admin/withdrawals/:id/paid.
func (h *WithdrawalHandler) MarkPaid(c *gin.Context) {
	adminID, id, ok := h.reviewTarget(c)
	if !ok {
		return
	}
	var req dto.PayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	w, err := h.withdrawalSvc.MarkPaid(c.Request.Context(), id, adminID, req.PayoutReference)
	h.respond(c, w, err)
}

// MarkFailed handles POST /api/v1/admin/withdrawals/:id/failed.
func (h *WithdrawalHandler) MarkFailed(c *gin.Context) {
	adminID, id, ok := h.reviewTarget(c)
	if !ok {
		return
	}
	var req dto.ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrReasonRequired())
		return
	}
	dto.SanitizeStruct(&req)

	w, err := h.withdrawalSvc.MarkFailed(c.Request.Context(), id, adminID, req.Reason)
	h.respond(c, w, err)
}

func (h *WithdrawalHandler) reviewTarget(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	adminID, _, err := callerID(c)
	if err != nil {
		response.Error(c, err)
		return uuid.Nil, uuid.Nil, false
	}
	id, err := pathUUID(c, "id")
	if err != nil {
		response.Error(c, err)
		return uuid.Nil, uuid.Nil, false
	}
	return adminID, id, true
}

func (h *WithdrawalHandler) respond(c *gin.Context, w *domain.WithdrawalRequest, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewWithdrawalResponse(w))
}
