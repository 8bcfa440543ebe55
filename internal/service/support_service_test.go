package service

import (
	"context"
	"testing"

	"github.com/mehrbod2002/roivault/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestSupportTicketLifecycle(t *testing.T) {
	env := newTestEnv(t)
	svc := NewSupportService(env.repos.SupportTickets)
	ctx := context.Background()
	userID := primitive.NewObjectID()

	_, err := svc.CreateTicket(ctx, userID, " ", "help")
	assert.ErrorIs(t, err, ErrInvalidInput)

	ticket, err := svc.CreateTicket(ctx, userID, "Missing ROI", "Week 3 was not paid")
	require.NoError(t, err)
	assert.Equal(t, models.SupportTicketStatusOpen, ticket.Status)

	_, err = svc.UpdateStatus(ctx, ticket.ID, models.SupportTicketStatusResolved, "")
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	ticket, err = svc.UpdateStatus(ctx, ticket.ID, models.SupportTicketStatusInProgress, "Looking into it")
	require.NoError(t, err)
	assert.Equal(t, "Looking into it", ticket.AdminReply)

	ticket, err = svc.UpdateStatus(ctx, ticket.ID, models.SupportTicketStatusResolved, "")
	require.NoError(t, err)
	assert.Equal(t, "Looking into it", ticket.AdminReply)

	_, err = svc.UpdateStatus(ctx, ticket.ID, models.SupportTicketStatusClosed, "")
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, ticket.ID, models.SupportTicketStatusOpen, "")
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	closed, err := svc.GetTickets(ctx, models.SupportTicketStatusClosed)
	require.NoError(t, err)
	assert.Len(t, closed, 1)

	mine, err := svc.GetTicketsByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	_, err = svc.GetTicket(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSettingAndAudit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	settings := NewSettingService(env.repos.Settings)
	s, err := settings.GetSetting(ctx)
	require.NoError(t, err)
	assert.Empty(t, s.ID)

	logs := NewLogService(env.repos.Logs, zap.NewNop())
	userID := primitive.NewObjectID()
	require.NoError(t, logs.LogAction(ctx, models.ActorUser, userID, "withdrawal_submitted", "Submitted withdrawal", "127.0.0.1", nil))
	require.NoError(t, logs.LogAction(ctx, models.ActorAdmin, primitive.NewObjectID(), "plan_updated", "Updated plan", "127.0.0.1", nil))

	all, err := logs.GetAllLogs(ctx, 1, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := logs.GetLogsByUserID(ctx, userID, 1, 10)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, models.ActorUser, mine[0].Actor)
}
