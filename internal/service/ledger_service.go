package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mehrbod2002/roivault/internal/metrics"
	"github.com/mehrbod2002/roivault/internal/models"
	"github.com/mehrbod2002/roivault/internal/repository"
	"github.com/shopspring/decimal"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Entry is a single signed balance movement. A negative Amount is a debit.
type Entry struct {
	UserID       primitive.ObjectID
	Type         models.TransactionType
	Amount       decimal.Decimal
	Currency     string
	InvestmentID *primitive.ObjectID
	Meta         map[string]interface{}
}

type Reconciliation struct {
	UserID        primitive.ObjectID `json:"user_id"`
	LedgerBalance decimal.Decimal    `json:"ledger_balance"`
	CachedBalance decimal.Decimal    `json:"cached_balance"`
	WalletBalance *decimal.Decimal   `json:"wallet_balance,omitempty"`
	InSync        bool               `json:"in_sync"`
}

type LedgerConfig struct {
	Currency    string
	Scale       int32
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		Currency:    "USDT",
		Scale:       8,
		MaxRetries:  5,
		BaseBackoff: 10 * time.Millisecond,
		MaxBackoff:  500 * time.Millisecond,
	}
}

// LedgerService is the only code path that changes a balance. Every change
// is paired with exactly one Transaction row inside the same atomic unit.
type LedgerService interface {
	ApplyEntry(ctx context.Context, entry Entry) (*models.Transaction, error)
	// Atomic runs fn as one unit, retrying the whole unit on concurrent
	// modification. Nested calls join the outer unit.
	Atomic(ctx context.Context, fn func(ctx context.Context) error) error
	Deposit(ctx context.Context, userID primitive.ObjectID, amount decimal.Decimal, meta map[string]interface{}) (*models.Transaction, error)
	GetBalance(ctx context.Context, userID primitive.ObjectID) (decimal.Decimal, error)
	GetTransactions(ctx context.Context, userID primitive.ObjectID, page, limit int) ([]*models.Transaction, error)
	Reconcile(ctx context.Context, userID primitive.ObjectID) (*Reconciliation, error)
	RepairBalance(ctx context.Context, userID primitive.ObjectID) (*Reconciliation, error)
}

type atomicKey struct{}

type ledgerService struct {
	userRepo        repository.UserRepository
	walletRepo      repository.WalletRepository
	transactionRepo repository.TransactionRepository
	transactor      repository.Transactor
	cfg             LedgerConfig
	logger          *zap.Logger
}

func NewLedgerService(repos *repository.Repositories, cfg LedgerConfig, logger *zap.Logger) LedgerService {
	if cfg.Currency == "" {
		cfg.Currency = "USDT"
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 10 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		cfg.MaxBackoff = cfg.BaseBackoff
	}
	return &ledgerService{
		userRepo:        repos.Users,
		walletRepo:      repos.Wallets,
		transactionRepo: repos.Transactions,
		transactor:      repos.Transactor,
		cfg:             cfg,
		logger:          logger.Named("ledger"),
	}
}

func (s *ledgerService) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if inAtomic(ctx) {
		return fn(ctx)
	}
	ctx = context.WithValue(ctx, atomicKey{}, true)

	backoff := s.cfg.BaseBackoff
	for attempt := 0; ; attempt++ {
		err := s.transactor.WithTransaction(ctx, fn)
		if err == nil {
			return nil
		}
		if !isConflict(err) {
			return err
		}
		if attempt >= s.cfg.MaxRetries {
			s.logger.Warn("giving up after repeated conflicts", zap.Int("attempts", attempt+1))
			return fmt.Errorf("%w: gave up after %d attempts", ErrConcurrentModification, attempt+1)
		}

		metrics.RecordLedgerRetry()
		s.logger.Debug("retrying atomic unit", zap.Int("attempt", attempt+1), zap.Duration("backoff", backoff))

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
		if backoff > s.cfg.MaxBackoff {
			backoff = s.cfg.MaxBackoff
		}
	}
}

func inAtomic(ctx context.Context) bool {
	v, _ := ctx.Value(atomicKey{}).(bool)
	return v
}

func isConflict(err error) bool {
	return errors.Is(err, ErrConcurrentModification) || errors.Is(err, repository.ErrConflict)
}

func (s *ledgerService) ApplyEntry(ctx context.Context, entry Entry) (*models.Transaction, error) {
	if err := s.validate(&entry); err != nil {
		metrics.RecordLedgerEntry(string(entry.Type), "invalid")
		return nil, err
	}

	var tx *models.Transaction
	err := s.Atomic(ctx, func(ctx context.Context) error {
		var err error
		tx, err = s.apply(ctx, entry)
		return err
	})

	switch {
	case err == nil:
		metrics.RecordLedgerEntry(string(entry.Type), "applied")
	case errors.Is(err, ErrInsufficientFunds):
		metrics.RecordLedgerEntry(string(entry.Type), "insufficient_funds")
	default:
		metrics.RecordLedgerEntry(string(entry.Type), "error")
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *ledgerService) validate(entry *Entry) error {
	if !entry.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTransactionType, entry.Type)
	}
	if entry.Currency == "" {
		entry.Currency = s.cfg.Currency
	}
	if !strings.EqualFold(entry.Currency, s.cfg.Currency) {
		return fmt.Errorf("%w: %s", ErrUnsupportedCurrency, entry.Currency)
	}
	if entry.Amount.IsZero() {
		return fmt.Errorf("%w: amount must not be zero", ErrInvalidAmount)
	}
	if !entry.Amount.Equal(entry.Amount.Truncate(s.cfg.Scale)) {
		return fmt.Errorf("%w: more than %d decimal places", ErrInvalidAmount, s.cfg.Scale)
	}

	switch entry.Type {
	case models.TransactionTypeDeposit, models.TransactionTypeROI, models.TransactionTypeReferralBonus:
		if entry.Amount.IsNegative() {
			return fmt.Errorf("%w: %s must be a credit", ErrInvalidAmount, entry.Type)
		}
	case models.TransactionTypeWithdraw:
		if entry.Amount.IsPositive() {
			return fmt.Errorf("%w: %s must be a debit", ErrInvalidAmount, entry.Type)
		}
	}
	return nil
}

func (s *ledgerService) apply(ctx context.Context, entry Entry) (*models.Transaction, error) {
	user, err := s.userRepo.GetUserByID(ctx, entry.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("user %s: %w", entry.UserID.Hex(), ErrNotFound)
		}
		return nil, err
	}

	balance := user.USDTBalance.Add(entry.Amount)
	if entry.Amount.IsNegative() && balance.IsNegative() {
		return nil, fmt.Errorf("%w: balance %s, debit %s", ErrInsufficientFunds, user.USDTBalance, entry.Amount.Abs())
	}

	user.USDTBalance = balance
	if entry.Type.Earning() {
		user.TotalEarnings = user.TotalEarnings.Add(entry.Amount)
	}
	if err := s.userRepo.UpdateBalance(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrConcurrentModification
		}
		return nil, err
	}

	if err := s.mirrorWallet(ctx, user.ID, balance); err != nil {
		return nil, err
	}

	tx := &models.Transaction{
		UserID:       entry.UserID,
		Type:         entry.Type,
		Amount:       entry.Amount,
		Currency:     s.cfg.Currency,
		Status:       models.TransactionStatusSuccess,
		BalanceAfter: balance,
		Meta:         entry.Meta,
		InvestmentID: entry.InvestmentID,
	}
	if err := s.transactionRepo.SaveTransaction(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// mirrorWallet copies the ledger balance onto the user's wallet when the
// wallet is denominated in the ledger currency.
func (s *ledgerService) mirrorWallet(ctx context.Context, userID primitive.ObjectID, balance decimal.Decimal) error {
	wallet, err := s.walletRepo.GetWalletByUserID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !strings.EqualFold(wallet.Currency, s.cfg.Currency) {
		return nil
	}
	return s.walletRepo.SetBalance(ctx, wallet.ID, balance)
}

func (s *ledgerService) Deposit(ctx context.Context, userID primitive.ObjectID, amount decimal.Decimal, meta map[string]interface{}) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: deposit must be positive", ErrInvalidAmount)
	}
	return s.ApplyEntry(ctx, Entry{
		UserID: userID,
		Type:   models.TransactionTypeDeposit,
		Amount: amount,
		Meta:   meta,
	})
}

func (s *ledgerService) GetBalance(ctx context.Context, userID primitive.ObjectID) (decimal.Decimal, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return decimal.Zero, ErrNotFound
		}
		return decimal.Zero, err
	}
	return user.USDTBalance, nil
}

func (s *ledgerService) GetTransactions(ctx context.Context, userID primitive.ObjectID, page, limit int) ([]*models.Transaction, error) {
	return s.transactionRepo.GetTransactionsByUserID(ctx, userID, page, limit)
}

func (s *ledgerService) Reconcile(ctx context.Context, userID primitive.ObjectID) (*Reconciliation, error) {
	var rec *Reconciliation
	err := s.Atomic(ctx, func(ctx context.Context) error {
		var err error
		rec, err = s.reconcile(ctx, userID)
		return err
	})
	return rec, err
}

func (s *ledgerService) reconcile(ctx context.Context, userID primitive.ObjectID) (*Reconciliation, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	sum, err := s.transactionRepo.SumSuccessful(ctx, userID)
	if err != nil {
		return nil, err
	}

	rec := &Reconciliation{
		UserID:        userID,
		LedgerBalance: sum,
		CachedBalance: user.USDTBalance,
		InSync:        sum.Equal(user.USDTBalance),
	}

	wallet, err := s.walletRepo.GetWalletByUserID(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return nil, err
	case strings.EqualFold(wallet.Currency, s.cfg.Currency):
		balance := wallet.Balance
		rec.WalletBalance = &balance
		rec.InSync = rec.InSync && balance.Equal(sum)
	}
	return rec, nil
}

func (s *ledgerService) RepairBalance(ctx context.Context, userID primitive.ObjectID) (*Reconciliation, error) {
	var rec *Reconciliation
	err := s.Atomic(ctx, func(ctx context.Context) error {
		before, err := s.reconcile(ctx, userID)
		if err != nil {
			return err
		}
		if before.InSync {
			rec = before
			return nil
		}

		user, err := s.userRepo.GetUserByID(ctx, userID)
		if err != nil {
			return err
		}
		user.USDTBalance = before.LedgerBalance
		if err := s.userRepo.UpdateBalance(ctx, user); err != nil {
			return err
		}
		if err := s.mirrorWallet(ctx, userID, before.LedgerBalance); err != nil {
			return err
		}

		s.logger.Warn("repaired cached balance",
			zap.String("user_id", userID.Hex()),
			zap.String("cached", before.CachedBalance.String()),
			zap.String("ledger", before.LedgerBalance.String()))

		rec, err = s.reconcile(ctx, userID)
		return err
	})
	return rec, err
}
