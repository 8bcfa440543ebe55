package service

import (
	"context"
	"testing"
	"time"

	"github.com/mehrbod2002/roivault/internal/lock"
	"github.com/mehrbod2002/roivault/internal/models"
	"github.com/mehrbod2002/roivault/internal/repository"
	"github.com/mehrbod2002/roivault/internal/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type envConfig struct {
	epoch           time.Time
	levels          []decimal.Decimal
	bonusDays       int
	policy          string
	returnPrincipal bool
	weeksPerMonth   decimal.Decimal
	minWithdrawal   decimal.Decimal
	workers         int
	maxRetries      int
	wrap            func(*repository.Repositories)
}

type testEnv struct {
	repos       *repository.Repositories
	locker      *lock.LocalLocker
	ledger      LedgerService
	referrals   ReferralService
	investments InvestmentService
	accrual     AccrualService
	withdrawals WithdrawalService
	transfers   TransferService
	users       UserService
	plans       PlanService
	cfg         envConfig
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// newTestEnv wires every service onto a fresh in-memory store. The default
// epoch puts the end of week 1 six days from now, so investments opened
// during the test are inside every week they are accrued for.
func newTestEnv(t *testing.T, opts ...func(*envConfig)) *testEnv {
	t.Helper()

	cfg := envConfig{
		epoch:           time.Now().UTC().Add(-24 * time.Hour),
		levels:          []decimal.Decimal{d("10"), d("5"), d("2")},
		bonusDays:       365,
		policy:          ReferralPolicySkip,
		returnPrincipal: true,
		weeksPerMonth:   d("4"),
		minWithdrawal:   d("10"),
		workers:         4,
		maxRetries:      5,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	repos := memory.New().Repositories()
	if cfg.wrap != nil {
		cfg.wrap(repos)
	}
	logger := zap.NewNop()

	ledger := NewLedgerService(repos, LedgerConfig{
		Currency:    "USDT",
		Scale:       8,
		MaxRetries:  cfg.maxRetries,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
	}, logger)
	referrals := NewReferralService(repos, ReferralConfig{Levels: cfg.levels, BonusDays: cfg.bonusDays}, logger)
	locker := lock.NewLocalLocker()

	return &testEnv{
		repos:       repos,
		locker:      locker,
		ledger:      ledger,
		referrals:   referrals,
		investments: NewInvestmentService(repos, ledger, referrals, cfg.returnPrincipal, logger),
		accrual: NewAccrualService(repos, ledger, referrals, locker, AccrualConfig{
			Epoch:           cfg.epoch,
			WeeksPerMonth:   cfg.weeksPerMonth,
			Scale:           8,
			Workers:         cfg.workers,
			ReferralPolicy:  cfg.policy,
			ReturnPrincipal: cfg.returnPrincipal,
		}, logger),
		withdrawals: NewWithdrawalService(repos, ledger, cfg.minWithdrawal, logger),
		transfers:   NewTransferService(repos, ledger, logger),
		users:       NewUserService(repos, ledger, "USDT", []int{2, 5}, logger),
		plans:       NewPlanService(repos),
		cfg:         cfg,
	}
}

func (e *testEnv) signup(t *testing.T, username string, referrer *models.User) *models.User {
	t.Helper()
	input := SignupInput{Username: username, Email: username + "@example.com", Password: "password123"}
	if referrer != nil {
		input.ReferralCode = referrer.ReferralCode
	}
	user, err := e.users.Signup(context.Background(), input)
	require.NoError(t, err)
	return user
}

func (e *testEnv) fund(t *testing.T, userID primitive.ObjectID, amount string) {
	t.Helper()
	_, err := e.ledger.Deposit(context.Background(), userID, d(amount), map[string]interface{}{"source": "test"})
	require.NoError(t, err)
}

func (e *testEnv) plan(t *testing.T, monthlyROI, minInvestment string, durationDays int) *models.SubscriptionPlan {
	t.Helper()
	plan := &models.SubscriptionPlan{
		Name:          "Plan " + monthlyROI,
		MinInvestment: d(minInvestment),
		MonthlyROI:    d(monthlyROI),
		DurationDays:  durationDays,
		IsActive:      true,
	}
	require.NoError(t, e.plans.CreatePlan(context.Background(), plan))
	return plan
}

func (e *testEnv) invest(t *testing.T, user *models.User, plan *models.SubscriptionPlan, amount string) *models.Investment {
	t.Helper()
	e.fund(t, user.ID, amount)
	inv, err := e.investments.Invest(context.Background(), user.ID, plan.ID, d(amount))
	require.NoError(t, err)
	return inv
}

func (e *testEnv) balance(t *testing.T, userID primitive.ObjectID) decimal.Decimal {
	t.Helper()
	b, err := e.ledger.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	return b
}

func (e *testEnv) requireBalance(t *testing.T, userID primitive.ObjectID, want string) {
	t.Helper()
	got := e.balance(t, userID)
	require.Truef(t, got.Equal(d(want)), "balance: want %s, got %s", want, got)
}

// requireInSync checks the ledger invariant for every user in the store.
func (e *testEnv) requireInSync(t *testing.T) {
	t.Helper()
	users, err := e.repos.Users.GetAllUsers(context.Background())
	require.NoError(t, err)
	for _, u := range users {
		rec, err := e.ledger.Reconcile(context.Background(), u.ID)
		require.NoError(t, err)
		require.Truef(t, rec.InSync, "user %s out of sync: ledger %s cached %s", u.Username, rec.LedgerBalance, rec.CachedBalance)
		require.False(t, rec.CachedBalance.IsNegative())
	}
}

func transactionsOfType(t *testing.T, e *testEnv, userID primitive.ObjectID, typ models.TransactionType) []*models.Transaction {
	t.Helper()
	all, err := e.repos.Transactions.GetTransactionsByUserID(context.Background(), userID, 1, 1000)
	require.NoError(t, err)
	var out []*models.Transaction
	for _, tx := range all {
		if tx.Type == typ {
			out = append(out, tx)
		}
	}
	return out
}
