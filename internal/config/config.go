package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	ReferralPolicySkip       = "skip"
	ReferralPolicyContiguous = "contiguous"
)

type Config struct {
	Address string
	Port    int
	BaseURL string
	Env     string

	MongoURI string
	MongoDB  string

	AdminUser string
	AdminPass string
	JWTSecret string

	RedisAddr     string
	RedisPassword string

	LogLevel string

	Currency      string
	MoneyScale    int32
	WeeksPerMonth decimal.Decimal

	AccrualWorkers int
	AccrualEpoch   time.Time
	AccrualCron    string
	ExpiryCron     string

	// AccrualCatchUpWeeks bounds how far back a scheduled run retries
	// weeks that failed or were missed. Zero means all the way back.
	AccrualCatchUpWeeks int

	// ReferralLevels holds the bonus percentage paid to each upline level,
	// index 0 being the direct referrer.
	ReferralLevels    []decimal.Decimal
	ReferralBonusDays int
	ReferralPolicy    string
	LevelThresholds   []int

	MinWithdrawal    decimal.Decimal
	ReturnPrincipal  bool
	LedgerMaxRetries int

	RateLimitRPS   float64
	RateLimitBurst int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	portStr := getEnv("PORT", "7000")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, errors.New("invalid PORT value")
	}

	moneyScale, err := strconv.Atoi(getEnv("MONEY_SCALE", "8"))
	if err != nil || moneyScale < 0 || moneyScale > 18 {
		return nil, errors.New("invalid MONEY_SCALE value")
	}

	weeksPerMonth, err := decimal.NewFromString(getEnv("WEEKS_PER_MONTH", "4"))
	if err != nil || !weeksPerMonth.IsPositive() {
		return nil, errors.New("invalid WEEKS_PER_MONTH value")
	}

	accrualWorkers, err := strconv.Atoi(getEnv("ACCRUAL_WORKERS", "8"))
	if err != nil || accrualWorkers < 1 {
		return nil, errors.New("invalid ACCRUAL_WORKERS value")
	}

	accrualEpoch, err := time.Parse("2006-01-02", getEnv("ACCRUAL_EPOCH", "2024-01-01"))
	if err != nil {
		return nil, errors.New("invalid ACCRUAL_EPOCH value")
	}

	accrualCatchUpWeeks, err := strconv.Atoi(getEnv("ACCRUAL_CATCHUP_WEEKS", "12"))
	if err != nil || accrualCatchUpWeeks < 0 {
		return nil, errors.New("invalid ACCRUAL_CATCHUP_WEEKS value")
	}

	referralLevels, err := parseDecimals(getEnv("REFERRAL_LEVELS", "10,5,2"))
	if err != nil {
		return nil, errors.New("invalid REFERRAL_LEVELS value")
	}

	referralBonusDays, err := strconv.Atoi(getEnv("REFERRAL_BONUS_DAYS", "365"))
	if err != nil || referralBonusDays < 1 {
		return nil, errors.New("invalid REFERRAL_BONUS_DAYS value")
	}

	referralPolicy := strings.ToLower(getEnv("REFERRAL_POLICY", ReferralPolicySkip))
	if referralPolicy != ReferralPolicySkip && referralPolicy != ReferralPolicyContiguous {
		return nil, errors.New("invalid REFERRAL_POLICY value")
	}

	levelThresholds, err := parseInts(getEnv("LEVEL_THRESHOLDS", "5,20,50"))
	if err != nil {
		return nil, errors.New("invalid LEVEL_THRESHOLDS value")
	}

	minWithdrawal, err := decimal.NewFromString(getEnv("MIN_WITHDRAWAL", "10"))
	if err != nil || minWithdrawal.IsNegative() {
		return nil, errors.New("invalid MIN_WITHDRAWAL value")
	}

	returnPrincipal, err := strconv.ParseBool(getEnv("RETURN_PRINCIPAL", "true"))
	if err != nil {
		return nil, errors.New("invalid RETURN_PRINCIPAL value")
	}

	ledgerMaxRetries, err := strconv.Atoi(getEnv("LEDGER_MAX_RETRIES", "5"))
	if err != nil || ledgerMaxRetries < 0 {
		return nil, errors.New("invalid LEDGER_MAX_RETRIES value")
	}

	rateLimitRPS, err := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "10"), 64)
	if err != nil || rateLimitRPS <= 0 {
		return nil, errors.New("invalid RATE_LIMIT_RPS value")
	}

	rateLimitBurst, err := strconv.Atoi(getEnv("RATE_LIMIT_BURST", "20"))
	if err != nil || rateLimitBurst < 1 {
		return nil, errors.New("invalid RATE_LIMIT_BURST value")
	}

	return &Config{
		Address:           getEnv("ADDRESS", "0.0.0.0"),
		Port:              port,
		BaseURL:           getEnv("BASE_URL", "http://localhost:"+portStr),
		Env:               getEnv("ENV", "development"),
		MongoURI:          getEnv("MONGO_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
		MongoDB:           getEnv("MONGO_DB", "roivault"),
		AdminUser:         getEnv("ADMIN_USER", "admin"),
		AdminPass:         getEnv("ADMIN_PASS", "admin"),
		JWTSecret:         getEnv("JWT_SECRET", "default_jwt_secret"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		Currency:          getEnv("CURRENCY", "USDT"),
		MoneyScale:        int32(moneyScale),
		WeeksPerMonth:     weeksPerMonth,
		AccrualWorkers:    accrualWorkers,
		AccrualEpoch:      accrualEpoch.UTC(),
		AccrualCron:       getEnv("ACCRUAL_CRON", "0 0 * * 1"),
		ExpiryCron:        getEnv("EXPIRY_CRON", "30 0 * * *"),

		AccrualCatchUpWeeks: accrualCatchUpWeeks,

		ReferralLevels:    referralLevels,
		ReferralBonusDays: referralBonusDays,
		ReferralPolicy:    referralPolicy,
		LevelThresholds:   levelThresholds,
		MinWithdrawal:     minWithdrawal,
		ReturnPrincipal:   returnPrincipal,
		LedgerMaxRetries:  ledgerMaxRetries,
		RateLimitRPS:      rateLimitRPS,
		RateLimitBurst:    rateLimitBurst,
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDecimals(s string) ([]decimal.Decimal, error) {
	var out []decimal.Decimal
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := decimal.NewFromString(part)
		if err != nil || d.IsNegative() {
			return nil, errors.New("bad decimal " + part)
		}
		out = append(out, d)
	}
	return out, nil
}

func parseInts(s string) ([]int, error) {
	var out []int
	prev := 0
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n <= prev {
			return nil, errors.New("thresholds must be increasing positive integers")
		}
		out = append(out, n)
		prev = n
	}
	return out, nil
}
