package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"merchant-settlement/internal/core/domain"
	"merchant-settlement/internal/core/ports"
	"merchant-settlement/internal/core/ports/mocks"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuditLog_WithdrawalApproval(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)

	adminID := uuid.New()
	withdrawalID := uuid.New()
	done := make(chan *domain.AuditLog, 1)
	mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).Do(func(_ context.Context, entry *domain.AuditLog) {
		done <- entry
	})

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.POST("/api/v1/admin/withdrawals/:id/approve", func(c *gin.Context) {
		c.Set(CtxSubjectID, adminID)
		c.Set(CtxRole, ports.RoleAdmin)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/admin/withdrawals/"+withdrawalID.String()+"/approve", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	select {
	case entry := <-done:
		assert.Equal(t, domain.AuditActionWithdrawalApprove, entry.Action)
		assert.Equal(t, "withdrawal", entry.ResourceType)
		assert.Equal(t, withdrawalID.String(), entry.ResourceID)
		require.NotNil(t, entry.ActorID)
		assert.Equal(t, adminID, *entry.ActorID)
		assert.Equal(t, ports.RoleAdmin, entry.ActorRole)
		assert.Contains(t, entry.Details, `"status":200`)
	case <-time.After(time.Second):
		t.Fatal("audit not called")
	}
}

func TestAuditLog_HandlerNamesResource(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)

	created := uuid.NewString()
	mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).Do(func(_ context.Context, entry *domain.AuditLog) {
		assert.Equal(t, domain.AuditActionWithdrawalRequest, entry.Action)
		assert.Equal(t, created, entry.ResourceID)
	})

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.POST("/api/v1/withdrawals", func(c *gin.Context) {
		c.Set(CtxResourceID, created)
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/withdrawals", nil))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestAuditLog_SkipsReadsAndFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)
	// No expectations: Log must not be called.

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.GET("/api/v1/withdrawals", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/v1/settlements", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.POST("/api/v1/other", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/v1/withdrawals", nil),
		httptest.NewRequest(http.MethodPost, "/api/v1/settlements", nil),
		httptest.NewRequest(http.MethodPost, "/api/v1/other", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
}

func TestMapRouteToAction(t *testing.T) {
	tests := []struct {
		route, method string
		wantAction    domain.AuditAction
		wantResource  string
	}{
		{"/api/v1/settlements", http.MethodPost, domain.AuditActionSettle, "invoice"},
		{"/api/v1/withdrawals", http.MethodPost, domain.AuditActionWithdrawalRequest, "withdrawal"},
		{"/api/v1/admin/withdrawals/:id/approve", http.MethodPost, domain.AuditActionWithdrawalApprove, "withdrawal"},
		{"/api/v1/admin/withdrawals/:id/reject", http.MethodPost, domain.AuditActionWithdrawalReject, "withdrawal"},
		{"/api/v1/admin/withdrawals/:id/paid", http.MethodPost, domain.AuditActionWithdrawalPaid, "withdrawal"},
		{"/api/v1/admin/withdrawals/:id/failed", http.MethodPost, domain.AuditActionWithdrawalFailed, "withdrawal"},
		{"/api/v1/withdrawals", http.MethodGet, "", ""},
		{"/api/v1/unknown", http.MethodPost, "", ""},
	}
	for _, tt := range tests {
		action, resource := mapRouteToAction(tt.route, tt.method)
		assert.Equal(t, tt.wantAction, action, tt.route)
		assert.Equal(t, tt.wantResource, resource, tt.route)
	}
}
