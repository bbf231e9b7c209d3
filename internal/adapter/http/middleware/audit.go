package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"merchant-settlement/internal/core/domain"
	"merchant-settlement/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog creates an audit middleware that logs successful write operations.
// Actions are resolved from the matched route template.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only audit successful write operations (status 2xx)
		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead || c.Request.Method == http.MethodOptions {
			return
		}

		action, resourceType := mapRouteToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		entry := &domain.AuditLog{
			ID:           uuid.New(),
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   c.Param("id"),
			IPAddress:    c.ClientIP(),
			CreatedAt:    time.Now().UTC(),
		}
		if id, role, ok := Caller(c); ok {
			entry.ActorID = &id
			entry.ActorRole = role
		}
		if rid, ok := c.Get(CtxResourceID); ok {
			if s, ok := rid.(string); ok {
				entry.ResourceID = s
			}
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		})
		entry.Details = string(details)

		auditSvc.Log(c.Request.Context(), entry)
	}
}

// CtxResourceID lets a handler name the resource it created for the audit entry.
const CtxResourceID = "audit_resource_id"

func mapRouteToAction(route, method string) (domain.AuditAction, string) {
	if method != http.MethodPost {
		return "", ""
	}
	switch route {
	case "/api/v1/settlements":
		return domain.AuditActionSettle, "invoice"
	case "/api/v1/withdrawals":
		return domain.AuditActionWithdrawalRequest, "withdrawal"
	case "/api/v1/admin/withdrawals/:id/approve":
		return domain.AuditActionWithdrawalApprove, "withdrawal"
	case "/api/v1/admin/withdrawals/:id/reject":
		return domain.AuditActionWithdrawalReject, "withdrawal"
	case "/api/v1/admin/withdrawals/:id/paid":
		return domain.AuditActionWithdrawalPaid, "withdrawal"
	case "/api/v1/admin/withdrawals/:id/failed":
		return domain.AuditActionWithdrawalFailed, "withdrawal"
	}
	return "", ""
}
