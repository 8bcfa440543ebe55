package service

import (
	"context"
	"errors"
	"time"

	"github.com/mehrbod2002/roivault/internal/models"
	"github.com/mehrbod2002/roivault/internal/repository"
	"github.com/shopspring/decimal"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// MaxReferralDepth bounds every upline walk regardless of configuration.
const MaxReferralDepth = 10

type UplineEntry struct {
	ReferrerID      primitive.ObjectID    `json:"referrer_id"`
	Level           int                   `json:"level"`
	BonusPercentage decimal.Decimal       `json:"bonus_percentage"`
	Status          models.ReferralStatus `json:"status"`
	BonusStartDate  time.Time             `json:"bonus_start_date"`
	BonusEndDate    time.Time             `json:"bonus_end_date"`
}

// InWindow reports whether t lies inside the bonus window.
func (e UplineEntry) InWindow(t time.Time) bool {
	return !t.Before(e.BonusStartDate) && !t.After(e.BonusEndDate)
}

type ReferralConfig struct {
	// Levels[i] is the bonus percentage for upline level i+1.
	Levels    []decimal.Decimal
	BonusDays int
}

type ReferralService interface {
	// Upline returns the referral edges paying out on userID's earnings,
	// ordered by level, with status derived as of asOf.
	Upline(ctx context.Context, userID primitive.ObjectID, maxLevel int, asOf time.Time) ([]UplineEntry, error)
	// CreateEdges records one edge per configured level for the user's
	// ancestors, with a bonus window starting at start. Existing edges are kept.
	CreateEdges(ctx context.Context, userID primitive.ObjectID, start time.Time) ([]*models.Referral, error)
	ExpireReferrals(ctx context.Context, asOf time.Time) (int64, error)
	GetReferralsByReferrer(ctx context.Context, referrerID primitive.ObjectID) ([]*models.Referral, error)
	MaxLevel() int
}

type referralService struct {
	userRepo     repository.UserRepository
	referralRepo repository.ReferralRepository
	cfg          ReferralConfig
	logger       *zap.Logger
}

func NewReferralService(repos *repository.Repositories, cfg ReferralConfig, logger *zap.Logger) ReferralService {
	if len(cfg.Levels) > MaxReferralDepth {
		cfg.Levels = cfg.Levels[:MaxReferralDepth]
	}
	if cfg.BonusDays <= 0 {
		cfg.BonusDays = 365
	}
	return &referralService{
		userRepo:     repos.Users,
		referralRepo: repos.Referrals,
		cfg:          cfg,
		logger:       logger.Named("referral"),
	}
}

func (s *referralService) MaxLevel() int {
	return len(s.cfg.Levels)
}

// ancestors walks ReferredBy pointers upwards, at most maxLevel steps.
// ancestors[i] is the referrer at level i+1. A cycle ends the walk.
func (s *referralService) ancestors(ctx context.Context, userID primitive.ObjectID, maxLevel int) ([]primitive.ObjectID, error) {
	if maxLevel > MaxReferralDepth {
		maxLevel = MaxReferralDepth
	}

	current, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	seen := map[primitive.ObjectID]bool{userID: true}
	var out []primitive.ObjectID
	for len(out) < maxLevel && current.ReferredBy != nil {
		parentID := *current.ReferredBy
		if seen[parentID] {
			s.logger.Warn("referral cycle detected", zap.String("user_id", userID.Hex()), zap.String("at", parentID.Hex()))
			break
		}
		seen[parentID] = true

		parent, err := s.userRepo.GetUserByID(ctx, parentID)
		if errors.Is(err, repository.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, parentID)
		current = parent
	}
	return out, nil
}

func (s *referralService) Upline(ctx context.Context, userID primitive.ObjectID, maxLevel int, asOf time.Time) ([]UplineEntry, error) {
	if maxLevel <= 0 {
		return nil, nil
	}
	ancestors, err := s.ancestors(ctx, userID, maxLevel)
	if err != nil || len(ancestors) == 0 {
		return nil, err
	}

	edges, err := s.referralRepo.GetReferralsByReferredUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	type edgeKey struct {
		referrer primitive.ObjectID
		level    int
	}
	byKey := make(map[edgeKey]*models.Referral, len(edges))
	for _, e := range edges {
		byKey[edgeKey{e.ReferrerID, e.Level}] = e
	}

	var upline []UplineEntry
	for i, referrerID := range ancestors {
		level := i + 1
		edge, ok := byKey[edgeKey{referrerID, level}]
		if !ok {
			continue
		}
		upline = append(upline, UplineEntry{
			ReferrerID:      referrerID,
			Level:           level,
			BonusPercentage: edge.BonusPercentage,
			Status:          edge.StatusAt(asOf),
			BonusStartDate:  edge.BonusStartDate,
			BonusEndDate:    edge.BonusEndDate,
		})
	}
	return upline, nil
}

func (s *referralService) CreateEdges(ctx context.Context, userID primitive.ObjectID, start time.Time) ([]*models.Referral, error) {
	ancestors, err := s.ancestors(ctx, userID, len(s.cfg.Levels))
	if err != nil {
		return nil, err
	}

	existing, err := s.referralRepo.GetReferralsByReferredUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	have := make(map[int]bool, len(existing))
	for _, e := range existing {
		have[e.Level] = true
	}

	end := start.AddDate(0, 0, s.cfg.BonusDays)
	var created []*models.Referral
	for i, referrerID := range ancestors {
		if have[i+1] {
			continue
		}
		ref := &models.Referral{
			ReferrerID:      referrerID,
			ReferredUserID:  userID,
			Level:           i + 1,
			BonusPercentage: s.cfg.Levels[i],
			BonusStartDate:  start,
			BonusEndDate:    end,
			Status:          models.ReferralStatusActive,
		}
		if err := s.referralRepo.SaveReferral(ctx, ref); err != nil {
			return nil, err
		}
		created = append(created, ref)
	}
	return created, nil
}

func (s *referralService) ExpireReferrals(ctx context.Context, asOf time.Time) (int64, error) {
	n, err := s.referralRepo.ExpireBefore(ctx, asOf)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired referral edges", zap.Int64("count", n), zap.Time("as_of", asOf))
	}
	return n, nil
}

func (s *referralService) GetReferralsByReferrer(ctx context.Context, referrerID primitive.ObjectID) ([]*models.Referral, error) {
	return s.referralRepo.GetReferralsByReferrer(ctx, referrerID)
}
