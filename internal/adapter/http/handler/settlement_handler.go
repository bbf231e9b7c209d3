package handler

import (
	"merchant-settlement/internal/adapter/http/dto"
	"merchant-settlement/internal/adapter/http/middleware"
	"merchant-settlement/internal/core/ports"
	"merchant-settlement/pkg/apperror"
	"merchant-settlement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SettlementHandler handles settlement and invoice endpoints.
type SettlementHandler struct {
	settlementSvc ports.SettlementService
}

// NewSettlementHandler creates a new SettlementHandler.
func NewSettlementHandler(settlementSvc ports.SettlementService) *SettlementHandler {
	return &SettlementHandler{settlementSvc: settlementSvc}
}

// Settle handles POST /api/v1/settlements.
// Replays return the same invoice with 200.
func (h *SettlementHandler) Settle(c *gin.Context) {
	var req dto.SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	inv, err := h.settlementSvc.SettleByID(c.Request.Context(), uuid.MustParse(req.OrderID))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, inv.ID.String())
	response.OK(c, dto.NewInvoiceResponse(inv))
}

// GetInvoice handles GET /api/v1/invoices/:orderId.
// Merchants only see invoices of their own orders.
func (h *SettlementHandler) GetInvoice(c *gin.Context) {
	subject, role, err := callerID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	orderID, err := pathUUID(c, "orderId")
	if err != nil {
		response.Error(c, err)
		return
	}

	inv, err := h.settlementSvc.GetInvoice(c.Request.Context(), orderID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if role == ports.RoleMerchant && inv.MerchantID != subject {
		response.Error(c, apperror.ErrNotFound("invoice"))
		return
	}

	response.OK(c, dto.NewInvoiceResponse(inv))
}
