package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mehrbod2002/roivault/internal/models"
	"github.com/mehrbod2002/roivault/internal/repository"
	"github.com/shopspring/decimal"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type InvestmentService interface {
	Invest(ctx context.Context, userID, planID primitive.ObjectID, amount decimal.Decimal) (*models.Investment, error)
	Cancel(ctx context.Context, id primitive.ObjectID) (*models.Investment, error)
	GetInvestment(ctx context.Context, id primitive.ObjectID) (*models.Investment, error)
	GetInvestmentsByUserID(ctx context.Context, userID primitive.ObjectID) ([]*models.Investment, error)
	GetROIRecords(ctx context.Context, investmentID primitive.ObjectID) ([]*models.ROIRecord, error)
}

type investmentService struct {
	planRepo        repository.PlanRepository
	investmentRepo  repository.InvestmentRepository
	recordRepo      repository.ROIRecordRepository
	ledger          LedgerService
	referrals       ReferralService
	returnPrincipal bool
	logger          *zap.Logger
}

func NewInvestmentService(repos *repository.Repositories, ledger LedgerService, referrals ReferralService, returnPrincipal bool, logger *zap.Logger) InvestmentService {
	return &investmentService{
		planRepo:        repos.Plans,
		investmentRepo:  repos.Investments,
		recordRepo:      repos.ROIRecords,
		ledger:          ledger,
		referrals:       referrals,
		returnPrincipal: returnPrincipal,
		logger:          logger.Named("investment"),
	}
}

func (s *investmentService) Invest(ctx context.Context, userID, planID primitive.ObjectID, amount decimal.Decimal) (*models.Investment, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: investment must be positive", ErrInvalidAmount)
	}

	plan, err := s.planRepo.GetPlanByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("plan %s: %w", planID.Hex(), ErrNotFound)
		}
		return nil, err
	}
	if !plan.IsActive {
		return nil, ErrPlanInactive
	}
	if amount.LessThan(plan.MinInvestment) {
		return nil, fmt.Errorf("%w: plan requires at least %s", ErrBelowMinimum, plan.MinInvestment)
	}

	var inv *models.Investment
	err = s.ledger.Atomic(ctx, func(ctx context.Context) error {
		previous, err := s.investmentRepo.CountByUser(ctx, userID)
		if err != nil {
			return err
		}

		start := time.Now().UTC()
		end := start.AddDate(0, 0, plan.DurationDays)
		inv = &models.Investment{
			UserID:         userID,
			PlanID:         plan.ID,
			AmountInvested: amount,
			ROIPercentage:  plan.MonthlyROI,
			StartDate:      start,
			EndDate:        &end,
			Status:         models.InvestmentStatusActive,
			TotalReturn:    decimal.Zero,
		}
		if err := s.investmentRepo.SaveInvestment(ctx, inv); err != nil {
			return err
		}

		if _, err := s.ledger.ApplyEntry(ctx, Entry{
			UserID:       userID,
			Type:         models.TransactionTypeInvestment,
			Amount:       amount.Neg(),
			InvestmentID: &inv.ID,
			Meta:         map[string]interface{}{"plan_id": plan.ID.Hex()},
		}); err != nil {
			return err
		}

		// The first investment qualifies the user's upline for bonuses.
		if previous == 0 {
			if _, err := s.referrals.CreateEdges(ctx, userID, start); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("investment opened",
		zap.String("investment_id", inv.ID.Hex()),
		zap.String("user_id", userID.Hex()),
		zap.String("amount", amount.String()))
	return inv, nil
}

func (s *investmentService) Cancel(ctx context.Context, id primitive.ObjectID) (*models.Investment, error) {
	var inv *models.Investment
	err := s.ledger.Atomic(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.investmentRepo.GetInvestmentByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		if inv.Status != models.InvestmentStatusActive {
			return fmt.Errorf("%w: investment is %s", ErrInvalidStateTransition, inv.Status)
		}
		return closeInvestment(ctx, s.investmentRepo, s.ledger, inv, models.InvestmentStatusCancelled, s.returnPrincipal)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// closeInvestment moves an ACTIVE investment to a terminal status and, when
// enabled, returns the principal as a positive INVESTMENT entry.
func closeInvestment(ctx context.Context, repo repository.InvestmentRepository, ledger LedgerService, inv *models.Investment, status models.InvestmentStatus, returnPrincipal bool) error {
	inv.Status = status
	if err := repo.UpdateInvestment(ctx, inv); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrConcurrentModification
		}
		return err
	}
	if !returnPrincipal {
		return nil
	}
	_, err := ledger.ApplyEntry(ctx, Entry{
		UserID:       inv.UserID,
		Type:         models.TransactionTypeInvestment,
		Amount:       inv.AmountInvested,
		InvestmentID: &inv.ID,
		Meta:         map[string]interface{}{"reason": "principal_return", "status": string(status)},
	})
	return err
}

func (s *investmentService) GetInvestment(ctx context.Context, id primitive.ObjectID) (*models.Investment, error) {
	inv, err := s.investmentRepo.GetInvestmentByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return inv, err
}

func (s *investmentService) GetInvestmentsByUserID(ctx context.Context, userID primitive.ObjectID) ([]*models.Investment, error) {
	return s.investmentRepo.GetInvestmentsByUserID(ctx, userID)
}

func (s *investmentService) GetROIRecords(ctx context.Context, investmentID primitive.ObjectID) ([]*models.ROIRecord, error) {
	return s.recordRepo.GetRecordsByInvestment(ctx, investmentID)
}
