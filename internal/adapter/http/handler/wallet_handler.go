package handler

import (
	"merchant-settlement/internal/adapter/http/dto"
	"merchant-settlement/internal/core/domain"
	"merchant-settlement/internal/core/ports"
	"merchant-settlement/pkg/apperror"
	"merchant-settlement/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles merchant wallet endpoints.
type WalletHandler struct {
	ledger        ports.WalletLedger
	withdrawalSvc ports.WithdrawalService
	currency      string
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledger ports.WalletLedger, withdrawalSvc ports.WithdrawalService, currency string) *WalletHandler {
	return &WalletHandler{
		ledger:        ledger,
		withdrawalSvc: withdrawalSvc,
		currency:      currency,
	}
}

// GetBalance handles GET /api/v1/wallet/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	merchantID, _, err := callerID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	ctx := c.Request.Context()

	balance, err := h.ledger.GetBalance(ctx, merchantID)
	if err != nil {
		response.Error(c, apperror.ErrDatabaseError(err))
		return
	}
	outstanding, err := h.withdrawalSvc.OutstandingAmount(ctx, merchantID)
	if err != nil {
		response.Error(c, err)
		return
	}
	pending, err := h.withdrawalSvc.HasPendingRequest(ctx, merchantID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.WalletBalanceResponse{
		BalancePaise:     balance,
		Balance:          domain.FromPaise(balance).StringFixed(2),
		Currency:         h.currency,
		OutstandingPaise: outstanding,
		HasPending:       pending,
	})
}

// ListTransactions handles GET /api/v1/wallet/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	merchantID, _, err := callerID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	page, pageSize := pagination(c)
	params := ports.LedgerListParams{
		MerchantID: merchantID,
		Page:       page,
		PageSize:   pageSize,
	}
	if t := c.Query("type"); t != "" {
		entryType := domain.EntryType(t)
		if entryType != domain.EntryTypeCredit && entryType != domain.EntryTypeDebit {
			response.Error(c, apperror.Validation("type must be CREDIT or DEBIT"))
			return
		}
		params.Type = &entryType
	}

	txns, total, err := h.ledger.ListTransactions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, apperror.ErrDatabaseError(err))
		return
	}

	items := make([]dto.LedgerEntryResponse, 0, len(txns))
	for i := range txns {
		items = append(items, dto.NewLedgerEntryResponse(&txns[i]))
	}
	response.OK(c, response.NewPage(items, total, page, pageSize))
}
