package service

import (
	"context"
	"testing"

	"github.com/mehrbod2002/roivault/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestWithdrawalApprove(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.signup(t, "alice", nil)
	env.fund(t, user.ID, "500")

	w, err := env.withdrawals.Submit(ctx, user.ID, d("500"), "TXdest")
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusPending, w.Status)
	assert.False(t, w.TransactionID.IsZero())
	env.requireBalance(t, user.ID, "0")

	pending, err := env.withdrawals.GetPendingWithdrawals(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	approved, err := env.withdrawals.Approve(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusApproved, approved.Status)
	require.NotNil(t, approved.ProcessedAt)

	_, err = env.withdrawals.Submit(ctx, user.ID, d("500"), "TXdest")
	require.ErrorIs(t, err, ErrInsufficientFunds)

	withdrawals, err := env.withdrawals.GetWithdrawalsByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, withdrawals, 1)
	assert.Len(t, transactionsOfType(t, env, user.ID, models.TransactionTypeWithdraw), 1)
	env.requireBalance(t, user.ID, "0")
	env.requireInSync(t)
}

func TestWithdrawalReject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.signup(t, "alice", nil)
	env.fund(t, user.ID, "300")

	w, err := env.withdrawals.Submit(ctx, user.ID, d("120"), "TXdest")
	require.NoError(t, err)
	env.requireBalance(t, user.ID, "180")

	rejected, err := env.withdrawals.Reject(ctx, w.ID, "address blacklisted")
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusRejected, rejected.Status)
	assert.Equal(t, "address blacklisted", rejected.Reason)
	env.requireBalance(t, user.ID, "300")

	deposits := transactionsOfType(t, env, user.ID, models.TransactionTypeDeposit)
	require.Len(t, deposits, 2)
	assert.Equal(t, w.ID.Hex(), deposits[0].Meta["withdrawal_id"])
	env.requireInSync(t)
}

func TestWithdrawalTransitionsAreTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.signup(t, "alice", nil)
	env.fund(t, user.ID, "100")

	w, err := env.withdrawals.Submit(ctx, user.ID, d("50"), "TXdest")
	require.NoError(t, err)
	_, err = env.withdrawals.Approve(ctx, w.ID)
	require.NoError(t, err)

	_, err = env.withdrawals.Approve(ctx, w.ID)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	_, err = env.withdrawals.Reject(ctx, w.ID, "late")
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	env.requireBalance(t, user.ID, "50")

	_, err = env.withdrawals.Approve(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWithdrawalValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.signup(t, "alice", nil)
	env.fund(t, user.ID, "100")

	_, err := env.withdrawals.Submit(ctx, user.ID, d("5"), "TXdest")
	assert.ErrorIs(t, err, ErrBelowMinimum)
	_, err = env.withdrawals.Submit(ctx, user.ID, d("-20"), "TXdest")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = env.withdrawals.Submit(ctx, user.ID, d("20"), "  ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = env.withdrawals.Submit(ctx, user.ID, d("100.5"), "TXdest")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	withdrawals, err := env.withdrawals.GetWithdrawalsByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, withdrawals)
	env.requireBalance(t, user.ID, "100")
}
