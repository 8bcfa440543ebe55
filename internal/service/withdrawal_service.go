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

type WithdrawalService interface {
	Submit(ctx context.Context, userID primitive.ObjectID, amount decimal.Decimal, destination string) (*models.Withdrawal, error)
	Approve(ctx context.Context, id primitive.ObjectID) (*models.Withdrawal, error)
	Reject(ctx context.Context, id primitive.ObjectID, reason string) (*models.Withdrawal, error)
	GetWithdrawal(ctx context.Context, id primitive.ObjectID) (*models.Withdrawal, error)
	GetWithdrawalsByUserID(ctx context.Context, userID primitive.ObjectID) ([]*models.Withdrawal, error)
	GetPendingWithdrawals(ctx context.Context) ([]*models.Withdrawal, error)
}

type withdrawalService struct {
	withdrawalRepo repository.WithdrawalRepository
	ledger         LedgerService
	minWithdrawal  decimal.Decimal
	logger         *zap.Logger
}

func NewWithdrawalService(repos *repository.Repositories, ledger LedgerService, minWithdrawal decimal.Decimal, logger *zap.Logger) WithdrawalService {
	return &withdrawalService{
		withdrawalRepo: repos.Withdrawals,
		ledger:         ledger,
		minWithdrawal:  minWithdrawal,
		logger:         logger.Named("withdrawal"),
	}
}

// Submit debits the amount immediately and parks the request as PENDING.
func (s *withdrawalService) Submit(ctx context.Context, userID primitive.ObjectID, amount decimal.Decimal, destination string) (*models.Withdrawal, error) {
	destination = strings.TrimSpace(destination)
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: withdrawal must be positive", ErrInvalidAmount)
	}
	if amount.LessThan(s.minWithdrawal) {
		return nil, fmt.Errorf("%w: minimum withdrawal is %s", ErrBelowMinimum, s.minWithdrawal)
	}
	if destination == "" {
		return nil, fmt.Errorf("%w: destination address is required", ErrInvalidInput)
	}

	var w *models.Withdrawal
	err := s.ledger.Atomic(ctx, func(ctx context.Context) error {
		tx, err := s.ledger.ApplyEntry(ctx, Entry{
			UserID: userID,
			Type:   models.TransactionTypeWithdraw,
			Amount: amount.Neg(),
			Meta:   map[string]interface{}{"destination_address": destination},
		})
		if err != nil {
			return err
		}

		w = &models.Withdrawal{
			UserID:             userID,
			Amount:             amount,
			DestinationAddress: destination,
			Status:             models.WithdrawalStatusPending,
			TransactionID:      tx.ID,
		}
		return s.withdrawalRepo.SaveWithdrawal(ctx, w)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordWithdrawal(string(models.WithdrawalStatusPending))
	s.logger.Info("withdrawal submitted", zap.String("withdrawal_id", w.ID.Hex()), zap.String("user_id", userID.Hex()), zap.String("amount", amount.String()))
	return w, nil
}

func (s *withdrawalService) Approve(ctx context.Context, id primitive.ObjectID) (*models.Withdrawal, error) {
	var w *models.Withdrawal
	err := s.ledger.Atomic(ctx, func(ctx context.Context) error {
		var err error
		w, err = s.transition(ctx, id, models.WithdrawalStatusApproved, "")
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordWithdrawal(string(models.WithdrawalStatusApproved))
	s.logger.Info("withdrawal approved", zap.String("withdrawal_id", id.Hex()))
	return w, nil
}

// Reject returns the debited amount to the user with a compensating DEPOSIT.
func (s *withdrawalService) Reject(ctx context.Context, id primitive.ObjectID, reason string) (*models.Withdrawal, error) {
	var w *models.Withdrawal
	err := s.ledger.Atomic(ctx, func(ctx context.Context) error {
		var err error
		w, err = s.transition(ctx, id, models.WithdrawalStatusRejected, reason)
		if err != nil {
			return err
		}
		_, err = s.ledger.ApplyEntry(ctx, Entry{
			UserID: w.UserID,
			Type:   models.TransactionTypeDeposit,
			Amount: w.Amount,
			Meta: map[string]interface{}{
				"withdrawal_id": w.ID.Hex(),
				"reason":        "withdrawal_rejected",
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordWithdrawal(string(models.WithdrawalStatusRejected))
	s.logger.Info("withdrawal rejected", zap.String("withdrawal_id", id.Hex()), zap.String("reason", reason))
	return w, nil
}

func (s *withdrawalService) transition(ctx context.Context, id primitive.ObjectID, to models.WithdrawalStatus, reason string) (*models.Withdrawal, error) {
	w, err := s.withdrawalRepo.GetWithdrawalByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if w.Status != models.WithdrawalStatusPending {
		return nil, fmt.Errorf("%w: withdrawal is %s", ErrInvalidStateTransition, w.Status)
	}

	processedAt := time.Now().UTC()
	w.Status = to
	w.Reason = reason
	w.ProcessedAt = &processedAt
	if err := s.withdrawalRepo.Transition(ctx, w, models.WithdrawalStatusPending); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: withdrawal was processed concurrently", ErrInvalidStateTransition)
		}
		return nil, err
	}
	return w, nil
}

func (s *withdrawalService) GetWithdrawal(ctx context.Context, id primitive.ObjectID) (*models.Withdrawal, error) {
	w, err := s.withdrawalRepo.GetWithdrawalByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return w, err
}

func (s *withdrawalService) GetWithdrawalsByUserID(ctx context.Context, userID primitive.ObjectID) ([]*models.Withdrawal, error) {
	return s.withdrawalRepo.GetWithdrawalsByUserID(ctx, userID)
}

func (s *withdrawalService) GetPendingWithdrawals(ctx context.Context) ([]*models.Withdrawal, error) {
	return s.withdrawalRepo.GetWithdrawalsByStatus(ctx, models.WithdrawalStatusPending)
}
