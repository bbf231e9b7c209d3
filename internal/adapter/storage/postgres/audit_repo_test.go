package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"merchant-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	actor := uuid.New()
	entry := &domain.AuditLog{
		ID:           uuid.New(),
		ActorID:      &actor,
		ActorRole:    "admin",
		Action:       domain.AuditActionWithdrawalApprove,
		ResourceType: "withdrawal",
		ResourceID:   uuid.NewString(),
		IPAddress:    "10.0.0.1",
		CreatedAt:    time.Now(),
	}

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(entry.ID, entry.ActorID, "admin", "WITHDRAWAL_APPROVE", "withdrawal",
			entry.ResourceID, nil, "10.0.0.1", entry.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewAuditRepo(mock).Create(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_Create_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnError(errors.New("connection reset"))

	err = NewAuditRepo(mock).Create(context.Background(), &domain.AuditLog{
		ID:      uuid.New(),
		Action:  domain.AuditActionSettle,
		Details: `{"order_id":"x"}`,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert audit log")
}
