package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mehrbod2002/roivault/internal/models"
	"github.com/mehrbod2002/roivault/internal/repository"
	"github.com/shopspring/decimal"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanUpdate carries the fields to change; nil means keep.
type PlanUpdate struct {
	Name          *string
	Description   *string
	IsActive      *bool
	MinInvestment *decimal.Decimal
	MonthlyROI    *decimal.Decimal
	DurationDays  *int
}

func (u PlanUpdate) touchesTerms() bool {
	return u.MinInvestment != nil || u.MonthlyROI != nil || u.DurationDays != nil
}

type PlanService interface {
	CreatePlan(ctx context.Context, plan *models.SubscriptionPlan) error
	GetPlan(ctx context.Context, id primitive.ObjectID) (*models.SubscriptionPlan, error)
	GetPlans(ctx context.Context, activeOnly bool) ([]*models.SubscriptionPlan, error)
	UpdatePlan(ctx context.Context, id primitive.ObjectID, update PlanUpdate) (*models.SubscriptionPlan, error)
}

type planService struct {
	planRepo       repository.PlanRepository
	investmentRepo repository.InvestmentRepository
}

func NewPlanService(repos *repository.Repositories) PlanService {
	return &planService{planRepo: repos.Plans, investmentRepo: repos.Investments}
}

func validatePlan(plan *models.SubscriptionPlan) error {
	switch {
	case strings.TrimSpace(plan.Name) == "":
		return fmt.Errorf("%w: plan name is required", ErrInvalidInput)
	case plan.MinInvestment.IsNegative():
		return fmt.Errorf("%w: minimum investment must not be negative", ErrInvalidInput)
	case !plan.MonthlyROI.IsPositive():
		return fmt.Errorf("%w: monthly ROI must be positive", ErrInvalidInput)
	case plan.DurationDays <= 0:
		return fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	}
	return nil
}

func (s *planService) CreatePlan(ctx context.Context, plan *models.SubscriptionPlan) error {
	if err := validatePlan(plan); err != nil {
		return err
	}
	return s.planRepo.SavePlan(ctx, plan)
}

func (s *planService) GetPlan(ctx context.Context, id primitive.ObjectID) (*models.SubscriptionPlan, error) {
	plan, err := s.planRepo.GetPlanByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return plan, err
}

func (s *planService) GetPlans(ctx context.Context, activeOnly bool) ([]*models.SubscriptionPlan, error) {
	return s.planRepo.GetPlans(ctx, activeOnly)
}

// UpdatePlan refuses to change financial terms once any investment
// references the plan; name, description and IsActive stay editable.
func (s *planService) UpdatePlan(ctx context.Context, id primitive.ObjectID, update PlanUpdate) (*models.SubscriptionPlan, error) {
	plan, err := s.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.touchesTerms() {
		n, err := s.investmentRepo.CountByPlan(ctx, id)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, ErrPlanLocked
		}
	}

	if update.Name != nil {
		plan.Name = *update.Name
	}
	if update.Description != nil {
		plan.Description = *update.Description
	}
	if update.IsActive != nil {
		plan.IsActive = *update.IsActive
	}
	if update.MinInvestment != nil {
		plan.MinInvestment = *update.MinInvestment
	}
	if update.MonthlyROI != nil {
		plan.MonthlyROI = *update.MonthlyROI
	}
	if update.DurationDays != nil {
		plan.DurationDays = *update.DurationDays
	}
	if err := validatePlan(plan); err != nil {
		return nil, err
	}

	if err := s.planRepo.UpdatePlan(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}
