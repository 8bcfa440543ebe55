package service

import (
	"context"
	"testing"

	"github.com/mehrbod2002/roivault/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePlanValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	bad := []*models.SubscriptionPlan{
		{Name: "", MonthlyROI: d("5"), DurationDays: 30},
		{Name: "Gold", MonthlyROI: d("0"), DurationDays: 30},
		{Name: "Gold", MonthlyROI: d("5"), DurationDays: 0},
		{Name: "Gold", MonthlyROI: d("5"), DurationDays: 30, MinInvestment: d("-1")},
	}
	for _, plan := range bad {
		assert.ErrorIs(t, env.plans.CreatePlan(ctx, plan), ErrInvalidInput)
	}

	plans, err := env.plans.GetPlans(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestUpdatePlanLocksTermsOnceInvested(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	plan := env.plan(t, "8", "100", 30)

	roi := d("9")
	updated, err := env.plans.UpdatePlan(ctx, plan.ID, PlanUpdate{MonthlyROI: &roi})
	require.NoError(t, err)
	assert.True(t, updated.MonthlyROI.Equal(d("9")))

	user := env.signup(t, "alice", nil)
	env.invest(t, user, plan, "100")

	roi = d("12")
	_, err = env.plans.UpdatePlan(ctx, plan.ID, PlanUpdate{MonthlyROI: &roi})
	assert.ErrorIs(t, err, ErrPlanLocked)

	days := 60
	_, err = env.plans.UpdatePlan(ctx, plan.ID, PlanUpdate{DurationDays: &days})
	assert.ErrorIs(t, err, ErrPlanLocked)

	name, active := "Legacy", false
	updated, err = env.plans.UpdatePlan(ctx, plan.ID, PlanUpdate{Name: &name, IsActive: &active})
	require.NoError(t, err)
	assert.Equal(t, "Legacy", updated.Name)
	assert.True(t, updated.MonthlyROI.Equal(d("9")))

	plans, err := env.plans.GetPlans(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, plans)
}
