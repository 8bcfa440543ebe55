package memory

import (
	"context"
	"time"

	"github.com/mehrbod2002/roivault/internal/models"
	"github.com/mehrbod2002/roivault/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type planRepo struct{ s *Store }

func (r *planRepo) SavePlan(ctx context.Context, plan *models.SubscriptionPlan) error {
	defer r.s.lock(ctx)()

	plan.ID = primitive.NewObjectID()
	t := now()
	plan.CreatedAt = t
	plan.UpdatedAt = t
	r.s.plans[plan.ID] = *plan
	return nil
}

func (r *planRepo) GetPlanByID(ctx context.Context, id primitive.ObjectID) (*models.SubscriptionPlan, error) {
	defer r.s.lock(ctx)()

	p, ok := r.s.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *planRepo) GetPlans(ctx context.Context, activeOnly bool) ([]*models.SubscriptionPlan, error) {
	defer r.s.lock(ctx)()

	return collect(r.s.plans, func(p *models.SubscriptionPlan) bool {
		return !activeOnly || p.IsActive
	}), nil
}

func (r *planRepo) UpdatePlan(ctx context.Context, plan *models.SubscriptionPlan) error {
	defer r.s.lock(ctx)()

	stored, ok := r.s.plans[plan.ID]
	if !ok {
		return repository.ErrNotFound
	}
	plan.CreatedAt = stored.CreatedAt
	plan.UpdatedAt = now()
	r.s.plans[plan.ID] = *plan
	return nil
}

type investmentRepo struct{ s *Store }

func (r *investmentRepo) SaveInvestment(ctx context.Context, inv *models.Investment) error {
	defer r.s.lock(ctx)()

	inv.ID = primitive.NewObjectID()
	t := now()
	inv.CreatedAt = t
	inv.UpdatedAt = t
	r.s.investments[inv.ID] = *inv
	return nil
}

func (r *investmentRepo) GetInvestmentByID(ctx context.Context, id primitive.ObjectID) (*models.Investment, error) {
	defer r.s.lock(ctx)()

	inv, ok := r.s.investments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &inv, nil
}

func (r *investmentRepo) GetInvestmentsByUserID(ctx context.Context, userID primitive.ObjectID) ([]*models.Investment, error) {
	defer r.s.lock(ctx)()

	return reverse(collect(r.s.investments, func(i *models.Investment) bool { return i.UserID == userID })), nil
}

func (r *investmentRepo) GetActiveInvestments(ctx context.Context) ([]*models.Investment, error) {
	defer r.s.lock(ctx)()

	return collect(r.s.investments, func(i *models.Investment) bool {
		return i.Status == models.InvestmentStatusActive
	}), nil
}

func (r *investmentRepo) GetAccruableInvestments(ctx context.Context, asOf time.Time) ([]*models.Investment, error) {
	defer r.s.lock(ctx)()

	return collect(r.s.investments, func(i *models.Investment) bool {
		switch i.Status {
		case models.InvestmentStatusActive:
			return true
		case models.InvestmentStatusCompleted:
			return i.EndDate != nil && i.EndDate.After(asOf)
		}
		return false
	}), nil
}

func (r *investmentRepo) CountByPlan(ctx context.Context, planID primitive.ObjectID) (int64, error) {
	defer r.s.lock(ctx)()

	return int64(len(collect(r.s.investments, func(i *models.Investment) bool { return i.PlanID == planID }))), nil
}

func (r *investmentRepo) CountByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	defer r.s.lock(ctx)()

	return int64(len(collect(r.s.investments, func(i *models.Investment) bool { return i.UserID == userID }))), nil
}

func (r *investmentRepo) UpdateInvestment(ctx context.Context, inv *models.Investment) error {
	defer r.s.lock(ctx)()

	stored, ok := r.s.investments[inv.ID]
	if !ok || stored.Version != inv.Version {
		return repository.ErrConflict
	}
	stored.TotalReturn = inv.TotalReturn
	stored.Status = inv.Status
	stored.Version++
	stored.UpdatedAt = now()
	r.s.investments[inv.ID] = stored

	inv.Version = stored.Version
	inv.UpdatedAt = stored.UpdatedAt
	return nil
}

type roiRecordRepo struct{ s *Store }

func (r *roiRecordRepo) SaveRecord(ctx context.Context, record *models.ROIRecord) error {
	defer r.s.lock(ctx)()

	if record.InvestmentID != nil {
		for _, existing := range r.s.roiRecords {
			if existing.InvestmentID != nil && *existing.InvestmentID == *record.InvestmentID && existing.WeekNumber == record.WeekNumber {
				return repository.ErrDuplicateKey
			}
		}
	}
	record.ID = primitive.NewObjectID()
	record.CreatedAt = now()
	r.s.roiRecords[record.ID] = *record
	return nil
}

func (r *roiRecordRepo) Exists(ctx context.Context, investmentID primitive.ObjectID, weekNumber int) (bool, error) {
	defer r.s.lock(ctx)()

	for _, existing := range r.s.roiRecords {
		if existing.InvestmentID != nil && *existing.InvestmentID == investmentID && existing.WeekNumber == weekNumber {
			return true, nil
		}
	}
	return false, nil
}

func (r *roiRecordRepo) GetRecordsByInvestment(ctx context.Context, investmentID primitive.ObjectID) ([]*models.ROIRecord, error) {
	defer r.s.lock(ctx)()

	return collect(r.s.roiRecords, func(rec *models.ROIRecord) bool {
		return rec.InvestmentID != nil && *rec.InvestmentID == investmentID
	}), nil
}

func (r *roiRecordRepo) GetRecordsByUser(ctx context.Context, userID primitive.ObjectID) ([]*models.ROIRecord, error) {
	defer r.s.lock(ctx)()

	return collect(r.s.roiRecords, func(rec *models.ROIRecord) bool { return rec.UserID == userID }), nil
}

type referralRepo struct{ s *Store }

func (r *referralRepo) SaveReferral(ctx context.Context, ref *models.Referral) error {
	defer r.s.lock(ctx)()

	for _, existing := range r.s.referrals {
		if existing.ReferrerID == ref.ReferrerID && existing.ReferredUserID == ref.ReferredUserID && existing.Level == ref.Level {
			return repository.ErrDuplicateKey
		}
	}
	ref.ID = primitive.NewObjectID()
	t := now()
	ref.CreatedAt = t
	ref.UpdatedAt = t
	r.s.referrals[ref.ID] = *ref
	return nil
}

func (r *referralRepo) GetReferralsByReferredUser(ctx context.Context, referredUserID primitive.ObjectID) ([]*models.Referral, error) {
	defer r.s.lock(ctx)()

	return collect(r.s.referrals, func(ref *models.Referral) bool { return ref.ReferredUserID == referredUserID }), nil
}

func (r *referralRepo) GetReferralsByReferrer(ctx context.Context, referrerID primitive.ObjectID) ([]*models.Referral, error) {
	defer r.s.lock(ctx)()

	return collect(r.s.referrals, func(ref *models.Referral) bool { return ref.ReferrerID == referrerID }), nil
}

func (r *referralRepo) ExpireBefore(ctx context.Context, asOf time.Time) (int64, error) {
	defer r.s.lock(ctx)()

	var n int64
	for id, ref := range r.s.referrals {
		if ref.Status == models.ReferralStatusActive && ref.BonusEndDate.Before(asOf) {
			ref.Status = models.ReferralStatusExpired
			ref.UpdatedAt = now()
			r.s.referrals[id] = ref
			n++
		}
	}
	return n, nil
}
