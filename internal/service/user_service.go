package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mehrbod2002/roivault/internal/models"
	"github.com/mehrbod2002/roivault/internal/repository"
	"github.com/shopspring/decimal"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type SignupInput struct {
	Username     string
	Email        string
	Password     string
	ReferralCode string
}

type UserService interface {
	Signup(ctx context.Context, input SignupInput) (*models.User, error)
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetAllUsers(ctx context.Context) ([]*models.User, error)
	// GetDirectReferrals lists the users who signed up with userID's code.
	GetDirectReferrals(ctx context.Context, userID primitive.ObjectID) ([]*models.User, error)
	RegisterWallet(ctx context.Context, userID primitive.ObjectID, address, currency string) (*models.Wallet, error)
	GetWallet(ctx context.Context, userID primitive.ObjectID) (*models.Wallet, error)
}

// referralCodeAttempts bounds how often signup draws a new referral code
// after a collision.
const referralCodeAttempts = 5

type userService struct {
	userRepo        repository.UserRepository
	walletRepo      repository.WalletRepository
	ledger          LedgerService
	currency        string
	levelThresholds []int
	newCode         func() string
	logger          *zap.Logger
}

func newReferralCode() string {
	return uuid.New().String()[:8]
}

func NewUserService(repos *repository.Repositories, ledger LedgerService, currency string, levelThresholds []int, logger *zap.Logger) UserService {
	return &userService{
		userRepo:        repos.Users,
		walletRepo:      repos.Wallets,
		ledger:          ledger,
		currency:        currency,
		levelThresholds: levelThresholds,
		newCode:         newReferralCode,
		logger:          logger.Named("user"),
	}
}

func (s *userService) Signup(ctx context.Context, input SignupInput) (*models.User, error) {
	input.Username = strings.TrimSpace(input.Username)
	if input.Username == "" || len(input.Password) < 6 {
		return nil, fmt.Errorf("%w: username and a password of at least 6 characters are required", ErrInvalidInput)
	}

	if _, err := s.userRepo.GetUserByUsername(ctx, input.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	var user *models.User
	for attempt := 1; ; attempt++ {
		user, err = s.createUser(ctx, input, string(hashedPassword), s.newCode())
		if !errors.Is(err, repository.ErrDuplicateReferralCode) || attempt == referralCodeAttempts {
			break
		}
		s.logger.Warn("referral code collision, retrying", zap.Int("attempt", attempt))
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("user signed up", zap.String("user_id", user.ID.Hex()), zap.String("username", user.Username))
	return user, nil
}

// createUser inserts the user and bumps the referrer's stats in one unit.
// A referral code clash is returned as is so the caller can draw a new code.
func (s *userService) createUser(ctx context.Context, input SignupInput, passwordHash, code string) (*models.User, error) {
	var user *models.User
	err := s.ledger.Atomic(ctx, func(ctx context.Context) error {
		user = &models.User{
			Username:      input.Username,
			Email:         strings.TrimSpace(input.Email),
			PasswordHash:  passwordHash,
			ReferralCode:  code,
			TotalEarnings: decimal.Zero,
			USDTBalance:   decimal.Zero,
			CurrentLevel:  models.LevelFor(0, s.levelThresholds),
			IsActive:      true,
		}

		var referrer *models.User
		if refCode := strings.TrimSpace(input.ReferralCode); refCode != "" {
			var err error
			referrer, err = s.userRepo.GetUserByReferralCode(ctx, refCode)
			if errors.Is(err, repository.ErrNotFound) {
				return ErrInvalidReferralCode
			}
			if err != nil {
				return err
			}
			user.ReferredBy = &referrer.ID
		}

		if err := s.userRepo.SaveUser(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicateReferralCode) {
				return err
			}
			if errors.Is(err, repository.ErrDuplicateKey) {
				return ErrUsernameTaken
			}
			return err
		}

		if referrer != nil {
			referrer.TotalReferrals++
			referrer.CurrentLevel = models.LevelFor(referrer.TotalReferrals, s.levelThresholds)
			if err := s.userRepo.UpdateReferralStats(ctx, referrer); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.userRepo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *userService) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return user, err
}

func (s *userService) GetAllUsers(ctx context.Context) ([]*models.User, error) {
	return s.userRepo.GetAllUsers(ctx)
}

func (s *userService) GetDirectReferrals(ctx context.Context, userID primitive.ObjectID) ([]*models.User, error) {
	return s.userRepo.GetUsersByReferrer(ctx, userID)
}

// RegisterWallet binds the user's single wallet. A wallet in the ledger
// currency starts out mirroring the current balance.
func (s *userService) RegisterWallet(ctx context.Context, userID primitive.ObjectID, address, currency string) (*models.Wallet, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("%w: wallet address is required", ErrInvalidInput)
	}
	if currency == "" {
		currency = s.currency
	}
	currency = strings.ToUpper(currency)

	var wallet *models.Wallet
	err := s.ledger.Atomic(ctx, func(ctx context.Context) error {
		user, err := s.userRepo.GetUserByID(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}

		wallet = &models.Wallet{
			UserID:   userID,
			Address:  address,
			Currency: currency,
			Balance:  decimal.Zero,
		}
		if strings.EqualFold(currency, s.currency) {
			wallet.Balance = user.USDTBalance
		}
		if err := s.walletRepo.SaveWallet(ctx, wallet); err != nil {
			if errors.Is(err, repository.ErrDuplicateKey) {
				return ErrWalletExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

func (s *userService) GetWallet(ctx context.Context, userID primitive.ObjectID) (*models.Wallet, error) {
	wallet, err := s.walletRepo.GetWalletByUserID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return wallet, err
}
