package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mehrbod2002/roivault/internal/config"
	"github.com/mehrbod2002/roivault/internal/lock"
	"github.com/mehrbod2002/roivault/internal/repository/memory"
	"github.com/mehrbod2002/roivault/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const testSecret = "api-test-secret"

type testServer struct {
	t      *testing.T
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	repos := memory.New().Repositories()
	require.NoError(t, config.EnsureAdminUser(context.Background(), repos.Admins, "admin", "admin-pass", logger))

	ledger := service.NewLedgerService(repos, service.DefaultLedgerConfig(), logger)
	referrals := service.NewReferralService(repos, service.ReferralConfig{
		Levels:    []decimal.Decimal{decimal.NewFromInt(10), decimal.NewFromInt(5)},
		BonusDays: 365,
	}, logger)

	deps := Dependencies{
		JWTSecret:   testSecret,
		Logger:      logger,
		Users:       service.NewUserService(repos, ledger, "USDT", []int{5, 20}, logger),
		Admins:      service.NewAdminService(repos.Admins),
		Ledger:      ledger,
		Plans:       service.NewPlanService(repos),
		Investments: service.NewInvestmentService(repos, ledger, referrals, true, logger),
		Accrual: service.NewAccrualService(repos, ledger, referrals, lock.NewLocalLocker(), service.AccrualConfig{
			Epoch:         time.Now().UTC().Add(-24 * time.Hour),
			WeeksPerMonth: decimal.NewFromInt(4),
			Scale:         8,
			Workers:       2,
		}, logger),
		Referrals:   referrals,
		Withdrawals: service.NewWithdrawalService(repos, ledger, decimal.NewFromInt(10), logger),
		Transfers:   service.NewTransferService(repos, ledger, logger),
		Support:     service.NewSupportService(repos.SupportTickets),
		Settings:    service.NewSettingService(repos.Settings),
		Logs:        service.NewLogService(repos.Logs, logger),
	}

	r := gin.New()
	SetupRoutes(r, deps)
	return &testServer{t: t, router: r}
}

func (s *testServer) do(method, path, token string, body interface{}) (int, map[string]interface{}) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	out := map[string]interface{}{}
	if w.Body.Len() > 0 && w.Body.Bytes()[0] == '{' {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w.Code, out
}

func (s *testServer) signup(username, referralCode string) (token, userID, code string) {
	s.t.Helper()
	status, body := s.do(http.MethodPost, "/api/v1/users/signup", "", gin.H{
		"username":      username,
		"password":      "password123",
		"referral_code": referralCode,
	})
	require.Equal(s.t, http.StatusCreated, status, body)
	user := body["user"].(map[string]interface{})
	return body["token"].(string), user["_id"].(string), user["referral_code"].(string)
}

func (s *testServer) adminToken() string {
	s.t.Helper()
	status, body := s.do(http.MethodPost, "/api/v1/admin/login", "", gin.H{"username": "admin", "password": "admin-pass"})
	require.Equal(s.t, http.StatusOK, status, body)
	return body["token"].(string)
}

func TestInvestmentFlow(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken()

	_, referrerID, code := s.signup("referrer", "")
	token, userID, _ := s.signup("investor", code)

	status, body := s.do(http.MethodPost, "/api/v1/admin/users/"+userID+"/deposits", admin, gin.H{"amount": "1000", "reference": "tx-1"})
	require.Equal(t, http.StatusCreated, status, body)

	status, plan := s.do(http.MethodPost, "/api/v1/admin/plans", admin, gin.H{
		"name":           "Gold",
		"min_investment": "100",
		"monthly_roi":    "8",
		"duration_days":  90,
		"is_active":      true,
	})
	require.Equal(t, http.StatusCreated, status, plan)

	status, inv := s.do(http.MethodPost, "/api/v1/investments", token, gin.H{"plan_id": plan["_id"], "amount": "1000"})
	require.Equal(t, http.StatusCreated, status, inv)

	status, body = s.do(http.MethodPost, "/api/v1/admin/accrual/run?week=1", admin, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 1, body["credited"])

	status, body = s.do(http.MethodPost, "/api/v1/admin/accrual/run?week=1", admin, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 1, body["duplicates"])

	status, body = s.do(http.MethodGet, "/api/v1/balance", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "20", body["balance"])

	status, body = s.do(http.MethodGet, "/api/v1/admin/users/"+referrerID+"/reconcile", admin, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "2", body["cached_balance"])
	assert.Equal(t, true, body["in_sync"])

	status, body = s.do(http.MethodGet, "/api/v1/investments/"+inv["_id"].(string), token, nil)
	require.Equal(t, http.StatusOK, status)
	records := body["roi_records"].([]interface{})
	assert.Len(t, records, 1)

	status, body = s.do(http.MethodPost, "/api/v1/admin/investments/"+primitive.NewObjectID().Hex()+"/accrue?week=1", admin, nil)
	assert.Equal(t, http.StatusNotFound, status, body)

	status, body = s.do(http.MethodPost, "/api/v1/admin/investments/"+inv["_id"].(string)+"/accrue?week=1", admin, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "skipped_duplicate", body["outcome"])

	// Terms are locked once an investment exists.
	status, _ = s.do(http.MethodPut, "/api/v1/admin/plans/"+plan["_id"].(string), admin, gin.H{"monthly_roi": "12"})
	assert.Equal(t, http.StatusConflict, status)
}

func TestWithdrawalFlow(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken()
	token, userID, _ := s.signup("alice", "")

	status, _ := s.do(http.MethodPost, "/api/v1/admin/users/"+userID+"/deposits", admin, gin.H{"amount": "500"})
	require.Equal(t, http.StatusCreated, status)

	status, w := s.do(http.MethodPost, "/api/v1/withdrawals", token, gin.H{"amount": "500", "destination_address": "TXdest"})
	require.Equal(t, http.StatusCreated, status, w)
	assert.Equal(t, "PENDING", w["status"])

	status, _ = s.do(http.MethodPost, "/api/v1/withdrawals", token, gin.H{"amount": "500", "destination_address": "TXdest"})
	assert.Equal(t, http.StatusPaymentRequired, status)

	status, body := s.do(http.MethodPost, "/api/v1/admin/withdrawals/"+w["_id"].(string)+"/approve", admin, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "APPROVED", body["status"])

	status, _ = s.do(http.MethodPost, "/api/v1/admin/withdrawals/"+w["_id"].(string)+"/reject", admin, gin.H{"reason": "late"})
	assert.Equal(t, http.StatusConflict, status)
}

func TestTransferFlow(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken()
	aliceToken, aliceID, _ := s.signup("alice", "")
	_, bobID, _ := s.signup("bob", "")

	status, _ := s.do(http.MethodPost, "/api/v1/admin/users/"+aliceID+"/deposits", admin, gin.H{"amount": "100"})
	require.Equal(t, http.StatusCreated, status)

	status, body := s.do(http.MethodPost, "/api/v1/transfers", aliceToken, gin.H{"receiver_id": bobID, "amount": "60"})
	require.Equal(t, http.StatusCreated, status, body)

	status, _ = s.do(http.MethodPost, "/api/v1/transfers", aliceToken, gin.H{"receiver_id": bobID, "amount": "60"})
	assert.Equal(t, http.StatusPaymentRequired, status)

	status, _ = s.do(http.MethodPost, "/api/v1/transfers", aliceToken, gin.H{"receiver_id": aliceID, "amount": "1"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = s.do(http.MethodGet, "/api/v1/balance/reconcile", aliceToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "40", body["ledger_balance"])
	assert.Equal(t, true, body["in_sync"])
}

func TestAuthAndValidation(t *testing.T) {
	s := newTestServer(t)
	token, _, _ := s.signup("alice", "")

	status, _ := s.do(http.MethodGet, "/api/v1/balance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(http.MethodGet, "/api/v1/admin/users", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(http.MethodPost, "/api/v1/users/login", "", gin.H{"username": "alice", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(http.MethodPost, "/api/v1/users/signup", "", gin.H{"username": "alice", "password": "password123"})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = s.do(http.MethodPost, "/api/v1/users/signup", "", gin.H{"username": "bob", "password": "password123", "referral_code": "missing"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(http.MethodGet, "/api/v1/investments/not-an-id", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(http.MethodGet, "/api/v1/investments/"+"0123456789abcdef01234567", token, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestSupportTicketFlow(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken()
	token, _, _ := s.signup("alice", "")

	status, ticket := s.do(http.MethodPost, "/api/v1/tickets", token, gin.H{"subject": "ROI", "message": "Missing week"})
	require.Equal(t, http.StatusCreated, status, ticket)

	path := "/api/v1/admin/tickets/" + ticket["_id"].(string)
	status, _ = s.do(http.MethodPut, path, admin, gin.H{"status": "RESOLVED"})
	assert.Equal(t, http.StatusConflict, status)

	status, body := s.do(http.MethodPut, path, admin, gin.H{"status": "IN_PROGRESS", "reply": "Checking"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Checking", body["admin_reply"])
}
