package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mehrbod2002/roivault/internal/models"
	"github.com/mehrbod2002/roivault/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// conflictingUsers fails the first n balance updates with a version conflict.
type conflictingUsers struct {
	repository.UserRepository
	remaining int32
}

func (r *conflictingUsers) UpdateBalance(ctx context.Context, user *models.User) error {
	if atomic.AddInt32(&r.remaining, -1) >= 0 {
		return repository.ErrConflict
	}
	return r.UserRepository.UpdateBalance(ctx, user)
}

func TestDepositRecordsTransaction(t *testing.T) {
	env := newTestEnv(t)
	user := env.signup(t, "alice", nil)

	tx, err := env.ledger.Deposit(context.Background(), user.ID, d("125.5"), nil)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypeDeposit, tx.Type)
	assert.Equal(t, models.TransactionStatusSuccess, tx.Status)
	assert.Equal(t, "USDT", tx.Currency)
	assert.True(t, tx.BalanceAfter.Equal(d("125.5")))

	env.requireBalance(t, user.ID, "125.5")
	env.requireInSync(t)
}

func TestApplyEntryValidation(t *testing.T) {
	env := newTestEnv(t)
	user := env.signup(t, "alice", nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		entry Entry
		want  error
	}{
		{"zero amount", Entry{UserID: user.ID, Type: models.TransactionTypeDeposit, Amount: d("0")}, ErrInvalidAmount},
		{"unknown type", Entry{UserID: user.ID, Type: "BONUS", Amount: d("1")}, ErrInvalidTransactionType},
		{"foreign currency", Entry{UserID: user.ID, Type: models.TransactionTypeDeposit, Amount: d("1"), Currency: "BTC"}, ErrUnsupportedCurrency},
		{"too many decimals", Entry{UserID: user.ID, Type: models.TransactionTypeDeposit, Amount: d("0.000000001")}, ErrInvalidAmount},
		{"negative roi", Entry{UserID: user.ID, Type: models.TransactionTypeROI, Amount: d("-1")}, ErrInvalidAmount},
		{"positive withdraw", Entry{UserID: user.ID, Type: models.TransactionTypeWithdraw, Amount: d("1")}, ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.ledger.ApplyEntry(ctx, tt.entry)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	env.requireBalance(t, user.ID, "0")
	assert.Empty(t, transactionsOfType(t, env, user.ID, models.TransactionTypeDeposit))
}

func TestApplyEntryRejectsOverdraft(t *testing.T) {
	env := newTestEnv(t)
	user := env.signup(t, "alice", nil)
	env.fund(t, user.ID, "50")

	_, err := env.ledger.ApplyEntry(context.Background(), Entry{
		UserID: user.ID,
		Type:   models.TransactionTypeWithdraw,
		Amount: d("-50.00000001"),
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	env.requireBalance(t, user.ID, "50")
	assert.Empty(t, transactionsOfType(t, env, user.ID, models.TransactionTypeWithdraw))
}

func TestApplyEntryUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.ledger.Deposit(context.Background(), primitive.NewObjectID(), d("10"), nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAtomicRollsBackEveryEntry(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "alice", nil)
	bob := env.signup(t, "bob", nil)
	env.fund(t, alice.ID, "100")

	err := env.ledger.Atomic(context.Background(), func(ctx context.Context) error {
		if _, err := env.ledger.ApplyEntry(ctx, Entry{UserID: bob.ID, Type: models.TransactionTypeTransfer, Amount: d("80")}); err != nil {
			return err
		}
		_, err := env.ledger.ApplyEntry(ctx, Entry{UserID: alice.ID, Type: models.TransactionTypeTransfer, Amount: d("-180")})
		return err
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	env.requireBalance(t, alice.ID, "100")
	env.requireBalance(t, bob.ID, "0")
	assert.Empty(t, transactionsOfType(t, env, bob.ID, models.TransactionTypeTransfer))
	env.requireInSync(t)
}

func TestAtomicRetriesOnConflict(t *testing.T) {
	var users *conflictingUsers
	env := newTestEnv(t, func(c *envConfig) {
		c.wrap = func(repos *repository.Repositories) {
			users = &conflictingUsers{UserRepository: repos.Users}
			repos.Users = users
		}
	})
	user := env.signup(t, "alice", nil)

	atomic.StoreInt32(&users.remaining, 2)
	_, err := env.ledger.Deposit(context.Background(), user.ID, d("10"), nil)
	require.NoError(t, err)

	env.requireBalance(t, user.ID, "10")
	assert.Len(t, transactionsOfType(t, env, user.ID, models.TransactionTypeDeposit), 1)
	env.requireInSync(t)
}

func TestAtomicGivesUpAfterMaxRetries(t *testing.T) {
	var users *conflictingUsers
	env := newTestEnv(t, func(c *envConfig) {
		c.maxRetries = 2
		c.wrap = func(repos *repository.Repositories) {
			users = &conflictingUsers{UserRepository: repos.Users}
			repos.Users = users
		}
	})
	user := env.signup(t, "alice", nil)

	atomic.StoreInt32(&users.remaining, 100)
	_, err := env.ledger.Deposit(context.Background(), user.ID, d("10"), nil)
	require.ErrorIs(t, err, ErrConcurrentModification)

	atomic.StoreInt32(&users.remaining, 0)
	env.requireBalance(t, user.ID, "0")
	assert.Empty(t, transactionsOfType(t, env, user.ID, models.TransactionTypeDeposit))
}

func TestConcurrentEntriesKeepInvariant(t *testing.T) {
	env := newTestEnv(t)
	user := env.signup(t, "alice", nil)
	env.fund(t, user.ID, "100")

	var (
		wg        sync.WaitGroup
		succeeded int32
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.ledger.ApplyEntry(context.Background(), Entry{
				UserID: user.ID,
				Type:   models.TransactionTypeWithdraw,
				Amount: d("-7"),
			})
			if err == nil {
				atomic.AddInt32(&succeeded, 1)
				return
			}
			assert.ErrorIs(t, err, ErrInsufficientFunds)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 14, succeeded)
	env.requireBalance(t, user.ID, "2")
	env.requireInSync(t)
}

func TestWalletMirrorsLedgerBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.signup(t, "alice", nil)
	bob := env.signup(t, "bob", nil)
	env.fund(t, alice.ID, "40")

	wallet, err := env.users.RegisterWallet(ctx, alice.ID, "TXa1b2c3", "usdt")
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(d("40")))

	_, err = env.users.RegisterWallet(ctx, bob.ID, "bc1qxyz", "BTC")
	require.NoError(t, err)

	env.fund(t, alice.ID, "2.5")
	env.fund(t, bob.ID, "9")

	aliceWallet, err := env.users.GetWallet(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, aliceWallet.Balance.Equal(d("42.5")))

	bobWallet, err := env.users.GetWallet(ctx, bob.ID)
	require.NoError(t, err)
	assert.True(t, bobWallet.Balance.IsZero())

	env.requireInSync(t)
}

func TestRepairBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.signup(t, "alice", nil)
	env.fund(t, user.ID, "30")

	// Corrupt the cached balance behind the ledger's back.
	stored, err := env.repos.Users.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	stored.USDTBalance = d("31")
	require.NoError(t, env.repos.Users.UpdateBalance(ctx, stored))

	rec, err := env.ledger.Reconcile(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, rec.InSync)
	assert.True(t, rec.LedgerBalance.Equal(d("30")))
	assert.True(t, rec.CachedBalance.Equal(d("31")))

	rec, err = env.ledger.RepairBalance(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, rec.InSync)
	env.requireBalance(t, user.ID, "30")
}

func TestGetTransactionsNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	user := env.signup(t, "alice", nil)
	env.fund(t, user.ID, "1")
	env.fund(t, user.ID, "2")
	env.fund(t, user.ID, "3")

	txs, err := env.ledger.GetTransactions(context.Background(), user.ID, 1, 2)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.True(t, txs[0].Amount.Equal(d("3")))
	assert.True(t, txs[1].Amount.Equal(d("2")))
}
