// Package memory is an in-process implementation of every repository. It
// backs the service tests and local runs without MongoDB.
package memory

import (
	"bytes"
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/mehrbod2002/roivault/internal/models"
	"github.com/mehrbod2002/roivault/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type txKey struct{}

// Store keeps every collection in maps guarded by one mutex. A transaction
// holds the mutex for its whole duration and restores a snapshot on error,
// so units are serializable.
type Store struct {
	mu sync.Mutex

	users        map[primitive.ObjectID]models.User
	wallets      map[primitive.ObjectID]models.Wallet
	plans        map[primitive.ObjectID]models.SubscriptionPlan
	investments  map[primitive.ObjectID]models.Investment
	roiRecords   map[primitive.ObjectID]models.ROIRecord
	referrals    map[primitive.ObjectID]models.Referral
	transactions map[primitive.ObjectID]models.Transaction
	withdrawals  map[primitive.ObjectID]models.Withdrawal
	transfers    map[primitive.ObjectID]models.Transfer
	tickets      map[primitive.ObjectID]models.SupportTicket
	admins       map[primitive.ObjectID]models.AdminAccount
	logs         map[primitive.ObjectID]models.LogEntry
	setting      *models.Setting
}

func New() *Store {
	return &Store{
		users:        map[primitive.ObjectID]models.User{},
		wallets:      map[primitive.ObjectID]models.Wallet{},
		plans:        map[primitive.ObjectID]models.SubscriptionPlan{},
		investments:  map[primitive.ObjectID]models.Investment{},
		roiRecords:   map[primitive.ObjectID]models.ROIRecord{},
		referrals:    map[primitive.ObjectID]models.Referral{},
		transactions: map[primitive.ObjectID]models.Transaction{},
		withdrawals:  map[primitive.ObjectID]models.Withdrawal{},
		transfers:    map[primitive.ObjectID]models.Transfer{},
		tickets:      map[primitive.ObjectID]models.SupportTicket{},
		admins:       map[primitive.ObjectID]models.AdminAccount{},
		logs:         map[primitive.ObjectID]models.LogEntry{},
	}
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Users:          &userRepo{s},
		Wallets:        &walletRepo{s},
		Plans:          &planRepo{s},
		Investments:    &investmentRepo{s},
		ROIRecords:     &roiRecordRepo{s},
		Referrals:      &referralRepo{s},
		Transactions:   &transactionRepo{s},
		Withdrawals:    &withdrawalRepo{s},
		Transfers:      &transferRepo{s},
		Settings:       &settingRepo{s},
		SupportTickets: &ticketRepo{s},
		Admins:         &adminRepo{s},
		Logs:           &logRepo{s},
		Transactor:     s,
	}
}

func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// lock acquires the store mutex unless ctx already belongs to a running
// transaction on this store.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type snapshot struct {
	users        map[primitive.ObjectID]models.User
	wallets      map[primitive.ObjectID]models.Wallet
	plans        map[primitive.ObjectID]models.SubscriptionPlan
	investments  map[primitive.ObjectID]models.Investment
	roiRecords   map[primitive.ObjectID]models.ROIRecord
	referrals    map[primitive.ObjectID]models.Referral
	transactions map[primitive.ObjectID]models.Transaction
	withdrawals  map[primitive.ObjectID]models.Withdrawal
	transfers    map[primitive.ObjectID]models.Transfer
	tickets      map[primitive.ObjectID]models.SupportTicket
	admins       map[primitive.ObjectID]models.AdminAccount
	logs         map[primitive.ObjectID]models.LogEntry
	setting      *models.Setting
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		users:        maps.Clone(s.users),
		wallets:      maps.Clone(s.wallets),
		plans:        maps.Clone(s.plans),
		investments:  maps.Clone(s.investments),
		roiRecords:   maps.Clone(s.roiRecords),
		referrals:    maps.Clone(s.referrals),
		transactions: maps.Clone(s.transactions),
		withdrawals:  maps.Clone(s.withdrawals),
		transfers:    maps.Clone(s.transfers),
		tickets:      maps.Clone(s.tickets),
		admins:       maps.Clone(s.admins),
		logs:         maps.Clone(s.logs),
	}
	if s.setting != nil {
		cp := *s.setting
		snap.setting = &cp
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.users = snap.users
	s.wallets = snap.wallets
	s.plans = snap.plans
	s.investments = snap.investments
	s.roiRecords = snap.roiRecords
	s.referrals = snap.referrals
	s.transactions = snap.transactions
	s.withdrawals = snap.withdrawals
	s.transfers = snap.transfers
	s.tickets = snap.tickets
	s.admins = snap.admins
	s.logs = snap.logs
	s.setting = snap.setting
}

func now() time.Time {
	return time.Now().UTC()
}

// collect copies the values matching keep, ordered by id (insertion order).
func collect[T any](m map[primitive.ObjectID]T, keep func(*T) bool) []*T {
	ids := make([]primitive.ObjectID, 0, len(m))
	for id, v := range m {
		if keep(&v) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })

	out := make([]*T, 0, len(ids))
	for _, id := range ids {
		v := m[id]
		out = append(out, &v)
	}
	return out
}

func reverse[T any](items []*T) []*T {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items
}

func paginate[T any](items []*T, pageNum, limit int) []*T {
	if pageNum < 1 {
		pageNum = 1
	}
	if limit < 1 {
		limit = 50
	}
	start := (pageNum - 1) * limit
	if start >= len(items) {
		return []*T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

var _ repository.Transactor = (*Store)(nil)
