package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/mehrbod2002/roivault/internal/metrics"
	"github.com/mehrbod2002/roivault/internal/models"
	"github.com/mehrbod2002/roivault/internal/repository"
	"github.com/shopspring/decimal"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type TransferService interface {
	Transfer(ctx context.Context, senderID, receiverID primitive.ObjectID, amount decimal.Decimal, note string) (*models.Transfer, error)
	GetTransfersByUserID(ctx context.Context, userID primitive.ObjectID) ([]*models.Transfer, error)
}

type transferService struct {
	transferRepo repository.TransferRepository
	ledger       LedgerService
	logger       *zap.Logger
}

func NewTransferService(repos *repository.Repositories, ledger LedgerService, logger *zap.Logger) TransferService {
	return &transferService{
		transferRepo: repos.Transfers,
		ledger:       ledger,
		logger:       logger.Named("transfer"),
	}
}

type transferLeg struct {
	userID       primitive.ObjectID
	counterparty primitive.ObjectID
	amount       decimal.Decimal
	direction    string
}

// Transfer moves amount between two users in one unit. The legs are applied
// in ascending user id order. If the unit fails after validation a FAILED
// transfer row is still recorded.
func (s *transferService) Transfer(ctx context.Context, senderID, receiverID primitive.ObjectID, amount decimal.Decimal, note string) (*models.Transfer, error) {
	if senderID == receiverID {
		return nil, ErrSelfTransfer
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: transfer must be positive", ErrInvalidAmount)
	}

	legs := []transferLeg{
		{userID: senderID, counterparty: receiverID, amount: amount.Neg(), direction: "out"},
		{userID: receiverID, counterparty: senderID, amount: amount, direction: "in"},
	}
	sort.Slice(legs, func(i, j int) bool {
		return bytes.Compare(legs[i].userID[:], legs[j].userID[:]) < 0
	})

	var transfer *models.Transfer
	err := s.ledger.Atomic(ctx, func(ctx context.Context) error {
		for _, leg := range legs {
			if _, err := s.ledger.ApplyEntry(ctx, Entry{
				UserID: leg.userID,
				Type:   models.TransactionTypeTransfer,
				Amount: leg.amount,
				Meta: map[string]interface{}{
					"counterparty_id": leg.counterparty.Hex(),
					"direction":       leg.direction,
					"note":            note,
				},
			}); err != nil {
				return err
			}
		}

		transfer = &models.Transfer{
			SenderID:   senderID,
			ReceiverID: receiverID,
			Amount:     amount,
			Status:     models.TransferStatusSuccess,
			Note:       note,
		}
		return s.transferRepo.SaveTransfer(ctx, transfer)
	})
	if err != nil {
		s.recordFailure(ctx, senderID, receiverID, amount, note, err)
		return nil, err
	}

	metrics.RecordTransfer(string(models.TransferStatusSuccess))
	s.logger.Info("transfer completed",
		zap.String("transfer_id", transfer.ID.Hex()),
		zap.String("sender_id", senderID.Hex()),
		zap.String("receiver_id", receiverID.Hex()),
		zap.String("amount", amount.String()))
	return transfer, nil
}

func (s *transferService) recordFailure(ctx context.Context, senderID, receiverID primitive.ObjectID, amount decimal.Decimal, note string, cause error) {
	metrics.RecordTransfer(string(models.TransferStatusFailed))

	failed := &models.Transfer{
		SenderID:      senderID,
		ReceiverID:    receiverID,
		Amount:        amount,
		Status:        models.TransferStatusFailed,
		Note:          note,
		FailureReason: cause.Error(),
	}
	if err := s.transferRepo.SaveTransfer(context.WithoutCancel(ctx), failed); err != nil {
		s.logger.Error("failed to record failed transfer", zap.Error(err), zap.NamedError("cause", cause))
		return
	}
	s.logger.Warn("transfer failed",
		zap.String("transfer_id", failed.ID.Hex()),
		zap.String("sender_id", senderID.Hex()),
		zap.Error(cause))
}

func (s *transferService) GetTransfersByUserID(ctx context.Context, userID primitive.ObjectID) ([]*models.Transfer, error) {
	return s.transferRepo.GetTransfersByUserID(ctx, userID)
}
