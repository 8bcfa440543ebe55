package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mehrbod2002/roivault/internal/models"
	"github.com/mehrbod2002/roivault/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestWithTransactionRollsBackOnError(t *testing.T) {
	store := New()
	repos := store.Repositories()
	ctx := context.Background()

	user := &models.User{Username: "alice", ReferralCode: "ALICE001"}
	require.NoError(t, repos.Users.SaveUser(ctx, user))

	boom := errors.New("boom")
	err := repos.Transactor.WithTransaction(ctx, func(ctx context.Context) error {
		user.USDTBalance = decimal.NewFromInt(100)
		require.NoError(t, repos.Users.UpdateBalance(ctx, user))
		require.NoError(t, repos.Transactions.SaveTransaction(ctx, &models.Transaction{
			UserID: user.ID, Amount: decimal.NewFromInt(100), Status: models.TransactionStatusSuccess,
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, err := repos.Users.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.USDTBalance.IsZero())
	assert.Equal(t, int64(0), stored.Version)

	sum, err := repos.Transactions.SumSuccessful(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, sum.IsZero())
}

func TestNestedTransactionJoinsOuter(t *testing.T) {
	store := New()
	repos := store.Repositories()
	ctx := context.Background()

	err := repos.Transactor.WithTransaction(ctx, func(outer context.Context) error {
		return repos.Transactor.WithTransaction(outer, func(inner context.Context) error {
			return repos.Logs.SaveLog(inner, &models.LogEntry{Action: "nested"})
		})
	})
	require.NoError(t, err)

	logs, err := repos.Logs.GetAllLogs(ctx, 1, 10)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestUpdateBalanceDetectsStaleVersion(t *testing.T) {
	repos := New().Repositories()
	ctx := context.Background()

	user := &models.User{Username: "bob", ReferralCode: "BOB00001"}
	require.NoError(t, repos.Users.SaveUser(ctx, user))

	stale := *user
	user.USDTBalance = decimal.NewFromInt(5)
	require.NoError(t, repos.Users.UpdateBalance(ctx, user))
	assert.Equal(t, int64(1), user.Version)

	stale.USDTBalance = decimal.NewFromInt(7)
	assert.ErrorIs(t, repos.Users.UpdateBalance(ctx, &stale), repository.ErrConflict)
}

func TestUniqueConstraints(t *testing.T) {
	repos := New().Repositories()
	ctx := context.Background()

	invID := primitive.NewObjectID()
	require.NoError(t, repos.ROIRecords.SaveRecord(ctx, &models.ROIRecord{InvestmentID: &invID, WeekNumber: 3}))
	assert.ErrorIs(t, repos.ROIRecords.SaveRecord(ctx, &models.ROIRecord{InvestmentID: &invID, WeekNumber: 3}), repository.ErrDuplicateKey)
	require.NoError(t, repos.ROIRecords.SaveRecord(ctx, &models.ROIRecord{InvestmentID: &invID, WeekNumber: 4}))

	require.NoError(t, repos.Users.SaveUser(ctx, &models.User{Username: "carol", ReferralCode: "SAMECODE"}))
	assert.ErrorIs(t, repos.Users.SaveUser(ctx, &models.User{Username: "dave", ReferralCode: "SAMECODE"}), repository.ErrDuplicateReferralCode)
	err := repos.Users.SaveUser(ctx, &models.User{Username: "carol", ReferralCode: "OTHER001"})
	assert.ErrorIs(t, err, repository.ErrDuplicateKey)
	assert.NotErrorIs(t, err, repository.ErrDuplicateReferralCode)

	userID := primitive.NewObjectID()
	require.NoError(t, repos.Wallets.SaveWallet(ctx, &models.Wallet{UserID: userID, Currency: "USDT"}))
	assert.ErrorIs(t, repos.Wallets.SaveWallet(ctx, &models.Wallet{UserID: userID, Currency: "USDT"}), repository.ErrDuplicateKey)
}

func TestWithdrawalTransitionIsConditional(t *testing.T) {
	repos := New().Repositories()
	ctx := context.Background()

	w := &models.Withdrawal{UserID: primitive.NewObjectID(), Amount: decimal.NewFromInt(10), Status: models.WithdrawalStatusPending}
	require.NoError(t, repos.Withdrawals.SaveWithdrawal(ctx, w))

	w.Status = models.WithdrawalStatusApproved
	require.NoError(t, repos.Withdrawals.Transition(ctx, w, models.WithdrawalStatusPending))

	w.Status = models.WithdrawalStatusRejected
	assert.ErrorIs(t, repos.Withdrawals.Transition(ctx, w, models.WithdrawalStatusPending), repository.ErrConflict)
}

func TestGetAccruableInvestments(t *testing.T) {
	repos := New().Repositories()
	ctx := context.Background()
	asOf := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	before, after := asOf.AddDate(0, 0, -1), asOf.AddDate(0, 0, 1)

	save := func(status models.InvestmentStatus, end time.Time) primitive.ObjectID {
		inv := &models.Investment{Status: status, EndDate: &end}
		require.NoError(t, repos.Investments.SaveInvestment(ctx, inv))
		return inv.ID
	}
	active := save(models.InvestmentStatusActive, before)
	owed := save(models.InvestmentStatusCompleted, after)
	save(models.InvestmentStatusCompleted, before)
	save(models.InvestmentStatusCompleted, asOf)
	save(models.InvestmentStatusCancelled, after)

	got, err := repos.Investments.GetAccruableInvestments(ctx, asOf)
	require.NoError(t, err)
	ids := make([]primitive.ObjectID, 0, len(got))
	for _, inv := range got {
		ids = append(ids, inv.ID)
	}
	assert.ElementsMatch(t, []primitive.ObjectID{active, owed}, ids)
}
