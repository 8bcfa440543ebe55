package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/mehrbod2002/roivault/internal/models"
	"github.com/mehrbod2002/roivault/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Runs against a real server only when TEST_MONGO_URI points at a replica
// set, e.g. mongodb://localhost:27017/?replicaSet=rs0.
func newMongoRepos(t *testing.T) *repository.Repositories {
	t.Helper()
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := repository.Connect(ctx, uri)
	require.NoError(t, err)

	dbName := fmt.Sprintf("roivault_test_%d", time.Now().UnixNano())
	db := client.Database(dbName)
	require.NoError(t, repository.EnsureIndexes(ctx, db))

	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return repository.NewMongoRepositories(client, dbName)
}

func TestMongoUserDecimalAndVersioning(t *testing.T) {
	repos := newMongoRepos(t)
	ctx := context.Background()

	user := &models.User{
		Username:     "alice",
		ReferralCode: "ALICE001",
		USDTBalance:  decimal.RequireFromString("123.45678901"),
		IsActive:     true,
	}
	require.NoError(t, repos.Users.SaveUser(ctx, user))

	loaded, err := repos.Users.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, loaded.USDTBalance.Equal(user.USDTBalance), "got %s", loaded.USDTBalance)

	stale := *loaded
	loaded.USDTBalance = loaded.USDTBalance.Add(decimal.NewFromInt(1))
	require.NoError(t, repos.Users.UpdateBalance(ctx, loaded))
	assert.Equal(t, int64(1), loaded.Version)

	stale.USDTBalance = decimal.Zero
	assert.ErrorIs(t, repos.Users.UpdateBalance(ctx, &stale), repository.ErrConflict)

	_, err = repos.Users.GetUserByID(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, repository.ErrNotFound)

	dup := &models.User{Username: "alice", ReferralCode: "OTHER001"}
	err = repos.Users.SaveUser(ctx, dup)
	assert.ErrorIs(t, err, repository.ErrDuplicateKey)
	assert.NotErrorIs(t, err, repository.ErrDuplicateReferralCode)

	clash := &models.User{Username: "carol", ReferralCode: "ALICE001"}
	assert.ErrorIs(t, repos.Users.SaveUser(ctx, clash), repository.ErrDuplicateReferralCode)
}

func TestMongoROIRecordUniquePerWeek(t *testing.T) {
	repos := newMongoRepos(t)
	ctx := context.Background()

	invID := primitive.NewObjectID()
	record := func() *models.ROIRecord {
		return &models.ROIRecord{
			UserID:       primitive.NewObjectID(),
			InvestmentID: &invID,
			WeekNumber:   3,
			ROIAmount:    decimal.NewFromInt(20),
		}
	}

	require.NoError(t, repos.ROIRecords.SaveRecord(ctx, record()))
	assert.ErrorIs(t, repos.ROIRecords.SaveRecord(ctx, record()), repository.ErrDuplicateKey)

	exists, err := repos.ROIRecords.Exists(ctx, invID, 3)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repos.ROIRecords.Exists(ctx, invID, 4)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMongoTransactorRollsBack(t *testing.T) {
	repos := newMongoRepos(t)
	ctx := context.Background()

	user := &models.User{Username: "bob", ReferralCode: "BOB00001", IsActive: true}
	require.NoError(t, repos.Users.SaveUser(ctx, user))

	boom := errors.New("boom")
	err := repos.Transactor.WithTransaction(ctx, func(ctx context.Context) error {
		u, err := repos.Users.GetUserByID(ctx, user.ID)
		if err != nil {
			return err
		}
		u.USDTBalance = decimal.NewFromInt(50)
		if err := repos.Users.UpdateBalance(ctx, u); err != nil {
			return err
		}
		if err := repos.Transactions.SaveTransaction(ctx, &models.Transaction{
			UserID: user.ID,
			Type:   models.TransactionTypeDeposit,
			Amount: decimal.NewFromInt(50),
			Status: models.TransactionStatusSuccess,
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	loaded, err := repos.Users.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, loaded.USDTBalance.IsZero())
	assert.Equal(t, int64(0), loaded.Version)

	txs, err := repos.Transactions.GetTransactionsByUserID(ctx, user.ID, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestMongoGetAccruableInvestments(t *testing.T) {
	repos := newMongoRepos(t)
	ctx := context.Background()
	asOf := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	save := func(status models.InvestmentStatus, end time.Time) primitive.ObjectID {
		inv := &models.Investment{Status: status, EndDate: &end, AmountInvested: decimal.NewFromInt(100)}
		require.NoError(t, repos.Investments.SaveInvestment(ctx, inv))
		return inv.ID
	}
	active := save(models.InvestmentStatusActive, asOf.AddDate(0, 0, -1))
	owed := save(models.InvestmentStatusCompleted, asOf.AddDate(0, 0, 1))
	save(models.InvestmentStatusCompleted, asOf)
	save(models.InvestmentStatusCancelled, asOf.AddDate(0, 0, 1))

	got, err := repos.Investments.GetAccruableInvestments(ctx, asOf)
	require.NoError(t, err)
	ids := make([]primitive.ObjectID, 0, len(got))
	for _, inv := range got {
		ids = append(ids, inv.ID)
	}
	assert.ElementsMatch(t, []primitive.ObjectID{active, owed}, ids)
}
