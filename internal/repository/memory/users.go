package memory

import (
	"context"

	"github.com/mehrbod2002/roivault/internal/models"
	"github.com/mehrbod2002/roivault/internal/repository"
	"github.com/shopspring/decimal"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type userRepo struct{ s *Store }

func (r *userRepo) SaveUser(ctx context.Context, user *models.User) error {
	defer r.s.lock(ctx)()

	for _, u := range r.s.users {
		if u.Username == user.Username {
			return repository.ErrDuplicateKey
		}
		if u.ReferralCode == user.ReferralCode {
			return repository.ErrDuplicateReferralCode
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	t := now()
	user.CreatedAt = t
	user.UpdatedAt = t
	r.s.users[user.ID] = *user
	return nil
}

func (r *userRepo) GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	defer r.s.lock(ctx)()

	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *userRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, func(u *models.User) bool { return u.Username == username })
}

func (r *userRepo) GetUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	return r.findOne(ctx, func(u *models.User) bool { return u.ReferralCode == code })
}

func (r *userRepo) findOne(ctx context.Context, match func(*models.User) bool) (*models.User, error) {
	defer r.s.lock(ctx)()

	found := collect(r.s.users, match)
	if len(found) == 0 {
		return nil, repository.ErrNotFound
	}
	return found[0], nil
}

func (r *userRepo) GetUsersByReferrer(ctx context.Context, referrerID primitive.ObjectID) ([]*models.User, error) {
	defer r.s.lock(ctx)()

	return collect(r.s.users, func(u *models.User) bool {
		return u.ReferredBy != nil && *u.ReferredBy == referrerID
	}), nil
}

func (r *userRepo) GetAllUsers(ctx context.Context) ([]*models.User, error) {
	defer r.s.lock(ctx)()

	return collect(r.s.users, func(*models.User) bool { return true }), nil
}

func (r *userRepo) UpdateBalance(ctx context.Context, user *models.User) error {
	return r.cas(ctx, user, func(stored *models.User) {
		stored.USDTBalance = user.USDTBalance
		stored.TotalEarnings = user.TotalEarnings
	})
}

func (r *userRepo) UpdateReferralStats(ctx context.Context, user *models.User) error {
	return r.cas(ctx, user, func(stored *models.User) {
		stored.TotalReferrals = user.TotalReferrals
		stored.CurrentLevel = user.CurrentLevel
	})
}

func (r *userRepo) cas(ctx context.Context, user *models.User, apply func(*models.User)) error {
	defer r.s.lock(ctx)()

	stored, ok := r.s.users[user.ID]
	if !ok || stored.Version != user.Version {
		return repository.ErrConflict
	}
	apply(&stored)
	stored.Version++
	stored.UpdatedAt = now()
	r.s.users[user.ID] = stored

	user.Version = stored.Version
	user.UpdatedAt = stored.UpdatedAt
	return nil
}

type walletRepo struct{ s *Store }

func (r *walletRepo) SaveWallet(ctx context.Context, wallet *models.Wallet) error {
	defer r.s.lock(ctx)()

	for _, w := range r.s.wallets {
		if w.UserID == wallet.UserID {
			return repository.ErrDuplicateKey
		}
	}
	wallet.ID = primitive.NewObjectID()
	t := now()
	wallet.CreatedAt = t
	wallet.UpdatedAt = t
	r.s.wallets[wallet.ID] = *wallet
	return nil
}

func (r *walletRepo) GetWalletByUserID(ctx context.Context, userID primitive.ObjectID) (*models.Wallet, error) {
	defer r.s.lock(ctx)()

	found := collect(r.s.wallets, func(w *models.Wallet) bool { return w.UserID == userID })
	if len(found) == 0 {
		return nil, repository.ErrNotFound
	}
	return found[0], nil
}

func (r *walletRepo) SetBalance(ctx context.Context, id primitive.ObjectID, balance decimal.Decimal) error {
	defer r.s.lock(ctx)()

	w, ok := r.s.wallets[id]
	if !ok {
		return repository.ErrNotFound
	}
	w.Balance = balance
	w.UpdatedAt = now()
	r.s.wallets[id] = w
	return nil
}

type adminRepo struct{ s *Store }

func (r *adminRepo) SaveAdmin(ctx context.Context, admin *models.AdminAccount) error {
	defer r.s.lock(ctx)()

	for _, a := range r.s.admins {
		if a.Username == admin.Username {
			return repository.ErrDuplicateKey
		}
	}
	if admin.ID.IsZero() {
		admin.ID = primitive.NewObjectID()
	}
	admin.CreatedAt = now()
	r.s.admins[admin.ID] = *admin
	return nil
}

func (r *adminRepo) GetAdminByID(ctx context.Context, id primitive.ObjectID) (*models.AdminAccount, error) {
	defer r.s.lock(ctx)()

	a, ok := r.s.admins[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r *adminRepo) GetAdminByUsername(ctx context.Context, username string) (*models.AdminAccount, error) {
	defer r.s.lock(ctx)()

	found := collect(r.s.admins, func(a *models.AdminAccount) bool { return a.Username == username })
	if len(found) == 0 {
		return nil, repository.ErrNotFound
	}
	return found[0], nil
}
