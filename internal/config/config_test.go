package config

import (
	"context"
	"testing"

	"github.com/mehrbod2002/roivault/internal/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, "roivault", cfg.MongoDB)
	assert.Equal(t, "USDT", cfg.Currency)
	assert.Equal(t, int32(8), cfg.MoneyScale)
	assert.True(t, cfg.WeeksPerMonth.Equal(decimal.NewFromInt(4)))
	assert.Equal(t, 8, cfg.AccrualWorkers)
	assert.Equal(t, ReferralPolicySkip, cfg.ReferralPolicy)
	assert.Len(t, cfg.ReferralLevels, 3)
	assert.Equal(t, []int{5, 20, 50}, cfg.LevelThresholds)
	assert.True(t, cfg.ReturnPrincipal)
	assert.Equal(t, 5, cfg.LedgerMaxRetries)
	assert.Equal(t, 12, cfg.AccrualCatchUpWeeks)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("REFERRAL_LEVELS", "7.5, 2.5")
	t.Setenv("REFERRAL_POLICY", "CONTIGUOUS")
	t.Setenv("ACCRUAL_EPOCH", "2025-03-03")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	require.Len(t, cfg.ReferralLevels, 2)
	assert.Equal(t, "7.5", cfg.ReferralLevels[0].String())
	assert.Equal(t, ReferralPolicyContiguous, cfg.ReferralPolicy)
	assert.Equal(t, 2025, cfg.AccrualEpoch.Year())
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"PORT":                  "abc",
		"REFERRAL_POLICY":       "random",
		"LEVEL_THRESHOLDS":      "10,5",
		"WEEKS_PER_MONTH":       "0",
		"MIN_WITHDRAWAL":        "-1",
		"ACCRUAL_WORKERS":       "0",
		"ACCRUAL_CATCHUP_WEEKS": "-1",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.EqualError(t, err, "invalid "+key+" value")
		})
	}
}

func TestEnsureAdminUserIsIdempotent(t *testing.T) {
	repos := memory.New().Repositories()
	ctx := context.Background()
	logger := zap.NewNop()

	require.NoError(t, EnsureAdminUser(ctx, repos.Admins, "root", "s3cret", logger))
	require.NoError(t, EnsureAdminUser(ctx, repos.Admins, "root", "other", logger))

	admin, err := repos.Admins.GetAdminByUsername(ctx, "root")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte("s3cret")))
}
