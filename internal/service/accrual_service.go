package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mehrbod2002/roivault/internal/lock"
	"github.com/mehrbod2002/roivault/internal/metrics"
	"github.com/mehrbod2002/roivault/internal/models"
	"github.com/mehrbod2002/roivault/internal/repository"
	"github.com/shopspring/decimal"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const weekDuration = 7 * 24 * time.Hour

var hundred = decimal.NewFromInt(100)

// WeekNumber returns how many whole weeks have passed between epoch and t,
// i.e. the most recent week that has fully ended. It is 0 before the first
// week closes.
func WeekNumber(epoch, t time.Time) int {
	if t.Before(epoch) {
		return 0
	}
	return int(t.Sub(epoch) / weekDuration)
}

// WeekEnd is the instant week n closes. Accrual for week n is dated here.
func WeekEnd(epoch time.Time, n int) time.Time {
	return epoch.Add(time.Duration(n) * weekDuration)
}

// firstWeekEndingAfter returns the first week n >= 1 with WeekEnd(n) >= t.
func firstWeekEndingAfter(epoch, t time.Time) int {
	if !t.After(epoch) {
		return 1
	}
	elapsed := t.Sub(epoch)
	n := int(elapsed / weekDuration)
	if elapsed%weekDuration != 0 {
		n++
	}
	return max(n, 1)
}

type AccrualOutcome string

const (
	OutcomeCredited    AccrualOutcome = "credited"
	OutcomeDuplicate   AccrualOutcome = "skipped_duplicate"
	OutcomeInactive    AccrualOutcome = "skipped_inactive"
	OutcomeNotStarted  AccrualOutcome = "skipped_not_started"
	OutcomeFailed      AccrualOutcome = "failed"
	OutcomeInterrupted AccrualOutcome = "interrupted"
)

// Referral propagation policies. With skip an ineligible level is passed
// over; with contiguous the walk stops at the first ineligible level.
const (
	ReferralPolicySkip       = "skip"
	ReferralPolicyContiguous = "contiguous"
)

type AccrualResult struct {
	InvestmentID primitive.ObjectID `json:"investment_id"`
	WeekNumber   int                `json:"week_number"`
	Outcome      AccrualOutcome     `json:"outcome"`
	ROI          decimal.Decimal    `json:"roi"`
	BonusTotal   decimal.Decimal    `json:"bonus_total"`
	BonusesPaid  int                `json:"bonuses_paid"`
	Completed    bool               `json:"completed"`
	Error        string             `json:"error,omitempty"`

	err error
}

type AccrualReport struct {
	RunID       string            `json:"run_id"`
	WeekNumber  int               `json:"week_number"`
	AccrualDate time.Time         `json:"accrual_date"`
	Total       int               `json:"total"`
	Credited    int               `json:"credited"`
	Duplicates  int               `json:"duplicates"`
	Skipped     int               `json:"skipped"`
	Failed      int               `json:"failed"`
	Completed   int               `json:"completed"`
	TotalROI    decimal.Decimal   `json:"total_roi"`
	TotalBonus  decimal.Decimal   `json:"total_bonus"`
	Interrupted bool              `json:"interrupted"`
	Failures    map[string]string `json:"failures,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
}

func (r *AccrualReport) add(res *AccrualResult) {
	switch res.Outcome {
	case OutcomeCredited:
		r.Credited++
		r.TotalROI = r.TotalROI.Add(res.ROI)
		r.TotalBonus = r.TotalBonus.Add(res.BonusTotal)
		if res.Completed {
			r.Completed++
		}
	case OutcomeDuplicate:
		r.Duplicates++
	case OutcomeInactive, OutcomeNotStarted:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
		r.Failures[res.InvestmentID.Hex()] = res.Error
	case OutcomeInterrupted:
		r.Interrupted = true
	}
}

type AccrualConfig struct {
	Epoch           time.Time
	WeeksPerMonth   decimal.Decimal
	Scale           int32
	Workers         int
	ReferralPolicy  string
	ReturnPrincipal bool
	LockTTL         time.Duration
}

type AccrualService interface {
	// RunWeek credits every investment owed the given week exactly once:
	// ACTIVE ones, and COMPLETED ones whose term covers the week but which
	// missed it. Per-investment failures are reported, not returned.
	RunWeek(ctx context.Context, weekNumber int) (*AccrualReport, error)
	AccrueInvestment(ctx context.Context, investmentID primitive.ObjectID, weekNumber int) (*AccrualResult, error)
	// OldestPendingWeek returns the lowest week in [from, to] that some
	// investment is owed but has no ROIRecord for, or 0 when none is.
	OldestPendingWeek(ctx context.Context, from, to int) (int, error)
	CurrentWeek(now time.Time) int
}

type accrualService struct {
	investmentRepo repository.InvestmentRepository
	recordRepo     repository.ROIRecordRepository
	ledger         LedgerService
	referrals      ReferralService
	locker         lock.Locker
	cfg            AccrualConfig
	logger         *zap.Logger
}

func NewAccrualService(repos *repository.Repositories, ledger LedgerService, referrals ReferralService, locker lock.Locker, cfg AccrualConfig, logger *zap.Logger) AccrualService {
	if cfg.WeeksPerMonth.IsZero() {
		cfg.WeeksPerMonth = decimal.NewFromInt(4)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 8
	}
	if cfg.ReferralPolicy == "" {
		cfg.ReferralPolicy = ReferralPolicySkip
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Hour
	}
	return &accrualService{
		investmentRepo: repos.Investments,
		recordRepo:     repos.ROIRecords,
		ledger:         ledger,
		referrals:      referrals,
		locker:         locker,
		cfg:            cfg,
		logger:         logger.Named("accrual"),
	}
}

func (s *accrualService) CurrentWeek(now time.Time) int {
	return WeekNumber(s.cfg.Epoch, now)
}

func (s *accrualService) RunWeek(ctx context.Context, weekNumber int) (*AccrualReport, error) {
	if weekNumber < 1 {
		return nil, ErrInvalidWeek
	}

	release, err := s.locker.Acquire(ctx, fmt.Sprintf("accrual:week:%d", weekNumber), s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return nil, ErrAccrualRunning
		}
		return nil, err
	}
	defer release()

	report := &AccrualReport{
		RunID:       uuid.NewString(),
		WeekNumber:  weekNumber,
		AccrualDate: WeekEnd(s.cfg.Epoch, weekNumber),
		TotalROI:    decimal.Zero,
		TotalBonus:  decimal.Zero,
		Failures:    map[string]string{},
		StartedAt:   time.Now().UTC(),
	}
	logger := s.logger.With(zap.String("run_id", report.RunID), zap.Int("week", weekNumber))

	investments, err := s.investmentRepo.GetAccruableInvestments(ctx, report.AccrualDate)
	if err != nil {
		return nil, fmt.Errorf("failed to list investments: %w", err)
	}
	report.Total = len(investments)
	logger.Info("accrual run started", zap.Int("investments", report.Total), zap.Time("accrual_date", report.AccrualDate))

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.cfg.Workers)

	for _, inv := range investments {
		if ctx.Err() != nil {
			break
		}
		id := inv.ID
		g.Go(func() error {
			res := s.accrue(ctx, id, weekNumber, report.AccrualDate, report.RunID)
			metrics.RecordAccrual(string(res.Outcome))
			if res.Outcome == OutcomeFailed {
				logger.Error("accrual failed", zap.String("investment_id", id.Hex()), zap.String("error", res.Error))
			}

			mu.Lock()
			report.add(res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		report.Interrupted = true
	}
	report.FinishedAt = time.Now().UTC()
	metrics.ObserveAccrualRun(report.FinishedAt.Sub(report.StartedAt), report.Interrupted)

	logger.Info("accrual run finished",
		zap.Int("credited", report.Credited),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int("completed", report.Completed),
		zap.String("total_roi", report.TotalROI.String()),
		zap.String("total_bonus", report.TotalBonus.String()),
		zap.Bool("interrupted", report.Interrupted))
	return report, nil
}

func (s *accrualService) AccrueInvestment(ctx context.Context, investmentID primitive.ObjectID, weekNumber int) (*AccrualResult, error) {
	if weekNumber < 1 {
		return nil, ErrInvalidWeek
	}
	res := s.accrue(ctx, investmentID, weekNumber, WeekEnd(s.cfg.Epoch, weekNumber), uuid.NewString())
	if res.err != nil {
		return res, fmt.Errorf("accrual of investment %s for week %d: %w", investmentID.Hex(), weekNumber, res.err)
	}
	return res, nil
}

func (s *accrualService) OldestPendingWeek(ctx context.Context, from, to int) (int, error) {
	from = max(from, 1)
	if to < from {
		return 0, nil
	}

	investments, err := s.investmentRepo.GetAccruableInvestments(ctx, WeekEnd(s.cfg.Epoch, from))
	if err != nil {
		return 0, fmt.Errorf("failed to list investments: %w", err)
	}

	oldest := 0
	for _, inv := range investments {
		first, last := s.owedWeeks(inv)
		first = max(first, from)
		last = min(last, to)
		if oldest > 0 {
			last = min(last, oldest-1)
		}
		if first > last {
			continue
		}

		records, err := s.recordRepo.GetRecordsByInvestment(ctx, inv.ID)
		if err != nil {
			return 0, err
		}
		paid := make(map[int]bool, len(records))
		for _, r := range records {
			paid[r.WeekNumber] = true
		}
		for w := first; w <= last; w++ {
			if !paid[w] {
				oldest = w
				break
			}
		}
		if oldest == from {
			break
		}
	}
	return oldest, nil
}

// owedWeeks is the inclusive range of weeks inv earns ROI for. The
// maturity week is only owed while the investment is still ACTIVE, since
// crediting it is what completes the investment.
func (s *accrualService) owedWeeks(inv *models.Investment) (int, int) {
	first := firstWeekEndingAfter(s.cfg.Epoch, inv.StartDate)
	last := math.MaxInt
	if inv.EndDate != nil {
		last = firstWeekEndingAfter(s.cfg.Epoch, *inv.EndDate)
		if inv.Status != models.InvestmentStatusActive {
			last--
		}
	}
	return first, last
}

// owed reports whether inv can still be credited for a week dated accrualDate.
func owed(inv *models.Investment, accrualDate time.Time) bool {
	switch inv.Status {
	case models.InvestmentStatusActive:
		return true
	case models.InvestmentStatusCompleted:
		return !inv.Matured(accrualDate)
	}
	return false
}

// accrue runs the whole weekly credit for one investment as a single unit:
// ROI credit, referral bonuses, investment update, then the ROIRecord.
func (s *accrualService) accrue(ctx context.Context, investmentID primitive.ObjectID, weekNumber int, accrualDate time.Time, runID string) *AccrualResult {
	var res *AccrualResult
	err := s.ledger.Atomic(ctx, func(ctx context.Context) error {
		res = &AccrualResult{InvestmentID: investmentID, WeekNumber: weekNumber, ROI: decimal.Zero, BonusTotal: decimal.Zero}

		exists, err := s.recordRepo.Exists(ctx, investmentID, weekNumber)
		if err != nil {
			return err
		}
		if exists {
			res.Outcome = OutcomeDuplicate
			return nil
		}

		inv, err := s.investmentRepo.GetInvestmentByID(ctx, investmentID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		if !owed(inv, accrualDate) {
			res.Outcome = OutcomeInactive
			return nil
		}
		if inv.StartDate.After(accrualDate) {
			res.Outcome = OutcomeNotStarted
			return nil
		}

		roi := s.weeklyROI(inv)
		meta := map[string]interface{}{"week_number": weekNumber, "run_id": runID}
		if roi.IsPositive() {
			if _, err := s.ledger.ApplyEntry(ctx, Entry{
				UserID:       inv.UserID,
				Type:         models.TransactionTypeROI,
				Amount:       roi,
				InvestmentID: &inv.ID,
				Meta:         meta,
			}); err != nil {
				return err
			}
		}
		res.ROI = roi

		bonusApplied := false
		if roi.IsPositive() {
			bonusApplied, err = s.payReferralBonuses(ctx, inv, roi, weekNumber, accrualDate, res)
			if err != nil {
				return err
			}
		}

		inv.TotalReturn = inv.TotalReturn.Add(roi)
		if inv.Status == models.InvestmentStatusActive && inv.Matured(accrualDate) {
			res.Completed = true
			if err := closeInvestment(ctx, s.investmentRepo, s.ledger, inv, models.InvestmentStatusCompleted, s.cfg.ReturnPrincipal); err != nil {
				return err
			}
		} else if err := s.investmentRepo.UpdateInvestment(ctx, inv); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrConcurrentModification
			}
			return err
		}

		if err := s.recordRepo.SaveRecord(ctx, &models.ROIRecord{
			UserID:                 inv.UserID,
			InvestmentID:           &inv.ID,
			WeekNumber:             weekNumber,
			ROIAmount:              roi,
			IsReferralBonusApplied: bonusApplied,
		}); err != nil {
			if errors.Is(err, repository.ErrDuplicateKey) {
				return ErrDuplicateAccrual
			}
			return err
		}

		res.Outcome = OutcomeCredited
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, ErrDuplicateAccrual):
		res = &AccrualResult{InvestmentID: investmentID, WeekNumber: weekNumber, Outcome: OutcomeDuplicate, ROI: decimal.Zero, BonusTotal: decimal.Zero}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		res = &AccrualResult{InvestmentID: investmentID, WeekNumber: weekNumber, Outcome: OutcomeInterrupted, Error: err.Error(), err: err}
	default:
		res = &AccrualResult{InvestmentID: investmentID, WeekNumber: weekNumber, Outcome: OutcomeFailed, Error: err.Error(), err: err}
	}
	return res
}

// weeklyROI is amount * pct / 100 / weeksPerMonth, truncated to the money scale.
func (s *accrualService) weeklyROI(inv *models.Investment) decimal.Decimal {
	numerator := inv.AmountInvested.Mul(inv.ROIPercentage)
	q, _ := numerator.QuoRem(hundred.Mul(s.cfg.WeeksPerMonth), s.cfg.Scale)
	return q
}

func (s *accrualService) payReferralBonuses(ctx context.Context, inv *models.Investment, roi decimal.Decimal, weekNumber int, accrualDate time.Time, res *AccrualResult) (bool, error) {
	upline, err := s.referrals.Upline(ctx, inv.UserID, s.referrals.MaxLevel(), accrualDate)
	if err != nil {
		return false, err
	}

	contiguous := s.cfg.ReferralPolicy == ReferralPolicyContiguous
	applied := false
	expected := 1
	for _, entry := range upline {
		if contiguous && entry.Level != expected {
			break
		}
		expected = entry.Level + 1

		// Eligibility is judged against the accrual date, not the stored status,
		// so a late sweep cannot change what a week pays.
		if !entry.InWindow(accrualDate) {
			if contiguous {
				break
			}
			continue
		}

		bonus, _ := roi.Mul(entry.BonusPercentage).QuoRem(hundred, s.cfg.Scale)
		if !bonus.IsPositive() {
			continue
		}
		if _, err := s.ledger.ApplyEntry(ctx, Entry{
			UserID:       entry.ReferrerID,
			Type:         models.TransactionTypeReferralBonus,
			Amount:       bonus,
			InvestmentID: &inv.ID,
			Meta: map[string]interface{}{
				"source_user_id": inv.UserID.Hex(),
				"level":          entry.Level,
				"week_number":    weekNumber,
			},
		}); err != nil {
			return false, err
		}
		applied = true
		res.BonusesPaid++
		res.BonusTotal = res.BonusTotal.Add(bonus)
	}
	return applied, nil
}
