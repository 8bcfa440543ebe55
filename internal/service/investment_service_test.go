package service

import (
	"context"
	"testing"

	"github.com/mehrbod2002/roivault/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestInvest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.signup(t, "alice", nil)
	plan := env.plan(t, "8", "100", 30)
	env.fund(t, user.ID, "1500")

	inv, err := env.investments.Invest(ctx, user.ID, plan.ID, d("1000"))
	require.NoError(t, err)
	assert.Equal(t, models.InvestmentStatusActive, inv.Status)
	assert.True(t, inv.ROIPercentage.Equal(d("8")))
	require.NotNil(t, inv.EndDate)
	assert.Equal(t, inv.StartDate.AddDate(0, 0, 30), *inv.EndDate)
	env.requireBalance(t, user.ID, "500")

	debits := transactionsOfType(t, env, user.ID, models.TransactionTypeInvestment)
	require.Len(t, debits, 1)
	assert.True(t, debits[0].Amount.Equal(d("-1000")))
	assert.Equal(t, inv.ID, *debits[0].InvestmentID)

	list, err := env.investments.GetInvestmentsByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	env.requireInSync(t)
}

func TestInvestRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.signup(t, "alice", nil)
	plan := env.plan(t, "8", "100", 30)
	env.fund(t, user.ID, "150")

	_, err := env.investments.Invest(ctx, user.ID, plan.ID, d("50"))
	assert.ErrorIs(t, err, ErrBelowMinimum)
	_, err = env.investments.Invest(ctx, user.ID, plan.ID, d("0"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = env.investments.Invest(ctx, user.ID, primitive.NewObjectID(), d("100"))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.investments.Invest(ctx, user.ID, plan.ID, d("200"))
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	inactive := false
	_, err = env.plans.UpdatePlan(ctx, plan.ID, PlanUpdate{IsActive: &inactive})
	require.NoError(t, err)
	_, err = env.investments.Invest(ctx, user.ID, plan.ID, d("100"))
	assert.ErrorIs(t, err, ErrPlanInactive)

	list, err := env.investments.GetInvestmentsByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
	env.requireBalance(t, user.ID, "150")
}

func TestFirstInvestmentCreatesReferralEdges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	g := env.signup(t, "g", nil)
	p := env.signup(t, "p", g)
	x := env.signup(t, "x", p)
	plan := env.plan(t, "8", "100", 30)

	edges, err := env.repos.Referrals.GetReferralsByReferredUser(ctx, x.ID)
	require.NoError(t, err)
	assert.Empty(t, edges)

	inv := env.invest(t, x, plan, "100")
	env.invest(t, x, plan, "100")

	edges, err = env.repos.Referrals.GetReferralsByReferredUser(ctx, x.ID)
	require.NoError(t, err)
	require.Len(t, edges, 2)
	byLevel := map[int]*models.Referral{}
	for _, e := range edges {
		byLevel[e.Level] = e
	}
	assert.Equal(t, p.ID, byLevel[1].ReferrerID)
	assert.True(t, byLevel[1].BonusPercentage.Equal(d("10")))
	assert.Equal(t, g.ID, byLevel[2].ReferrerID)
	assert.True(t, byLevel[2].BonusPercentage.Equal(d("5")))
	assert.Equal(t, inv.StartDate, byLevel[1].BonusStartDate)
	assert.Equal(t, inv.StartDate.AddDate(0, 0, 365), byLevel[1].BonusEndDate)
	assert.Equal(t, models.ReferralStatusActive, byLevel[2].Status)
}

func TestCancelInvestment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.signup(t, "alice", nil)
	plan := env.plan(t, "8", "100", 30)
	inv := env.invest(t, user, plan, "400")
	env.requireBalance(t, user.ID, "0")

	cancelled, err := env.investments.Cancel(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvestmentStatusCancelled, cancelled.Status)
	env.requireBalance(t, user.ID, "400")

	_, err = env.investments.Cancel(ctx, inv.ID)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	env.requireBalance(t, user.ID, "400")

	report, err := env.accrual.RunWeek(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Total)
	env.requireInSync(t)
}
