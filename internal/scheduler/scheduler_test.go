package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mehrbod2002/roivault/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAccrual struct {
	service.AccrualService
	epoch time.Time
	err   error
	// failOnce makes the next run of a week report a failed investment.
	failOnce   map[int]bool
	pendingErr error

	mu      sync.Mutex
	weeks   []int
	settled map[int]bool
}

func (f *fakeAccrual) CurrentWeek(now time.Time) int {
	return service.WeekNumber(f.epoch, now)
}

func (f *fakeAccrual) OldestPendingWeek(_ context.Context, from, to int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pendingErr != nil {
		return 0, f.pendingErr
	}
	for w := max(from, 1); w <= to; w++ {
		if !f.settled[w] {
			return w, nil
		}
	}
	return 0, nil
}

func (f *fakeAccrual) RunWeek(_ context.Context, week int) (*service.AccrualReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.weeks = append(f.weeks, week)
	if f.err != nil {
		return nil, f.err
	}
	report := &service.AccrualReport{WeekNumber: week}
	if f.failOnce[week] {
		delete(f.failOnce, week)
		report.Failed = 1
		return report, nil
	}
	if f.settled == nil {
		f.settled = map[int]bool{}
	}
	f.settled[week] = true
	return report, nil
}

func (f *fakeAccrual) ran() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.weeks...)
}

type fakeReferrals struct {
	service.ReferralService
	asOf []time.Time
}

func (f *fakeReferrals) ExpireReferrals(_ context.Context, asOf time.Time) (int64, error) {
	f.asOf = append(f.asOf, asOf)
	return 0, nil
}

func newScheduler(t *testing.T, accrual *fakeAccrual, referrals *fakeReferrals, now time.Time) *Scheduler {
	t.Helper()
	s, err := New(accrual, referrals, Config{AccrualSpec: "0 0 * * 1", ExpirySpec: "30 0 * * *"}, zap.NewNop())
	require.NoError(t, err)
	s.clock = func() time.Time { return now }
	return s
}

var testEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func atWeek(n int) time.Time {
	return service.WeekEnd(testEpoch, n).Add(5 * time.Second)
}

func TestRunAccrualUsesLastCompletedWeek(t *testing.T) {
	accrual := &fakeAccrual{epoch: testEpoch, settled: map[int]bool{1: true, 2: true}}
	s := newScheduler(t, accrual, &fakeReferrals{}, atWeek(3))

	s.runAccrual()
	assert.Equal(t, []int{3}, accrual.ran())
}

func TestRunAccrualBeforeFirstWeek(t *testing.T) {
	accrual := &fakeAccrual{epoch: testEpoch}
	s := newScheduler(t, accrual, &fakeReferrals{}, testEpoch.Add(72*time.Hour))

	s.runAccrual()
	assert.Empty(t, accrual.ran())
}

func TestRunAccrualRetriesFailedAndMissedWeeks(t *testing.T) {
	accrual := &fakeAccrual{epoch: testEpoch, failOnce: map[int]bool{1: true}}
	s := newScheduler(t, accrual, &fakeReferrals{}, atWeek(1))

	s.runAccrual()
	assert.Equal(t, []int{1}, accrual.ran())

	// Week 1 reported a failure, so the next tick re-runs it first.
	s.clock = func() time.Time { return atWeek(2) }
	s.runAccrual()
	assert.Equal(t, []int{1, 1, 2}, accrual.ran())

	// The ticks for weeks 3 and 4 never fired.
	s.clock = func() time.Time { return atWeek(5) }
	s.runAccrual()
	assert.Equal(t, []int{1, 1, 2, 3, 4, 5}, accrual.ran())

	s.runAccrual()
	assert.Equal(t, []int{1, 1, 2, 3, 4, 5}, accrual.ran(), "nothing pending, nothing run")
}

func TestRunAccrualCatchUpIsBounded(t *testing.T) {
	accrual := &fakeAccrual{epoch: testEpoch}
	s := newScheduler(t, accrual, &fakeReferrals{}, atWeek(5))
	s.cfg.CatchUpWeeks = 2

	s.runAccrual()
	assert.Equal(t, []int{4, 5}, accrual.ran())
}

func TestRunAccrualFallsBackToCurrentWeek(t *testing.T) {
	accrual := &fakeAccrual{epoch: testEpoch, pendingErr: errors.New("mongo down")}
	s := newScheduler(t, accrual, &fakeReferrals{}, atWeek(4))

	s.runAccrual()
	assert.Equal(t, []int{4}, accrual.ran())
}

func TestRunAccrualToleratesErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want []int
	}{
		{"held elsewhere", service.ErrAccrualRunning, []int{1, 2, 3}},
		{"store failure", errors.New("mongo down"), []int{1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			accrual := &fakeAccrual{epoch: testEpoch, err: tc.err}
			s := newScheduler(t, accrual, &fakeReferrals{}, atWeek(3))
			assert.NotPanics(t, s.runAccrual)
			assert.Equal(t, tc.want, accrual.ran())
		})
	}
}

func TestRunExpiry(t *testing.T) {
	now := time.Date(2024, 3, 5, 0, 30, 0, 0, time.UTC)
	referrals := &fakeReferrals{}
	s := newScheduler(t, &fakeAccrual{}, referrals, now)

	s.runExpiry()
	assert.Equal(t, []time.Time{now}, referrals.asOf)
}

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := New(&fakeAccrual{}, &fakeReferrals{}, Config{AccrualSpec: "every monday", ExpirySpec: "30 0 * * *"}, zap.NewNop())
	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	s := newScheduler(t, &fakeAccrual{}, &fakeReferrals{}, time.Now())
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
