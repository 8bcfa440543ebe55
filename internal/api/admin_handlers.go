package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/mehrbod2002/roivault/internal/middleware"
	"github.com/mehrbod2002/roivault/internal/models"
	"github.com/mehrbod2002/roivault/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type DepositRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
}

type RejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type PlanRequest struct {
	Name          *string          `json:"name"`
	Description   *string          `json:"description"`
	IsActive      *bool            `json:"is_active"`
	MinInvestment *decimal.Decimal `json:"min_investment"`
	MonthlyROI    *decimal.Decimal `json:"monthly_roi"`
	DurationDays  *int             `json:"duration_days"`
}

type UserReferralResponse struct {
	UserID       string                `json:"user_id"`
	Username     string                `json:"username"`
	ReferralCode string                `json:"referral_code"`
	ReferredBy   string                `json:"referred_by,omitempty"`
	Upline       []service.UplineEntry `json:"upline"`
}

type AdminHandler struct {
	admins      service.AdminService
	users       service.UserService
	ledger      service.LedgerService
	plans       service.PlanService
	investments service.InvestmentService
	accrual     service.AccrualService
	referrals   service.ReferralService
	withdrawals service.WithdrawalService
	logService  service.LogService
	jwtSecret   string
}

func NewAdminHandler(deps Dependencies) *AdminHandler {
	return &AdminHandler{
		admins:      deps.Admins,
		users:       deps.Users,
		ledger:      deps.Ledger,
		plans:       deps.Plans,
		investments: deps.Investments,
		accrual:     deps.Accrual,
		referrals:   deps.Referrals,
		withdrawals: deps.Withdrawals,
		logService:  deps.Logs,
		jwtSecret:   deps.JWTSecret,
	}
}

// @Summary Admin login
// @Description Authenticates an admin user and returns a JWT token
// @Tags Admin
// @Accept json
// @Produce json
// @Param credentials body AdminLoginRequest true "Admin credentials"
// @Success 200 {object} map[string]string "JWT token"
// @Failure 400 {object} map[string]string "Invalid JSON"
// @Failure 401 {object} map[string]string "Invalid credentials"
// @Router /admin/login [post]
func (h *AdminHandler) AdminLogin(c *gin.Context) {
	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	admin, err := h.admins.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := middleware.GenerateAdminJWT(admin.ID.Hex(), h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	audit(c, h.logService, models.ActorAdmin, admin.ID, "AdminLogin", "Admin logged in", nil)
	c.JSON(http.StatusOK, gin.H{
		"status": "Login successful",
		"token":  token,
	})
}

// @Summary List users
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.User
// @Router /admin/users [get]
func (h *AdminHandler) GetAllUsers(c *gin.Context) {
	users, err := h.users.GetAllUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// @Summary Get a user's referral upline
// @Description Returns who referred the user and the bonus edges paid on their earnings
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} UserReferralResponse
// @Failure 404 {object} map[string]string "User not found"
// @Router /admin/users/{id}/referrals [get]
func (h *AdminHandler) GetUserReferrals(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	user, err := h.users.GetUser(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	upline, err := h.referrals.Upline(ctx, id, h.referrals.MaxLevel(), time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}

	resp := UserReferralResponse{
		UserID:       user.ID.Hex(),
		Username:     user.Username,
		ReferralCode: user.ReferralCode,
		Upline:       upline,
	}
	if user.ReferredBy != nil {
		resp.ReferredBy = user.ReferredBy.Hex()
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Get a user's transactions
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {array} models.Transaction
// @Router /admin/users/{id}/transactions [get]
func (h *AdminHandler) GetUserTransactions(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	page, limit := pagination(c)
	txs, err := h.ledger.GetTransactions(c.Request.Context(), id, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

// @Summary Credit a deposit
// @Description Credits an externally confirmed deposit to a user's balance
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param deposit body DepositRequest true "Deposit"
// @Success 201 {object} models.Transaction
// @Failure 400 {object} map[string]string "Invalid amount"
// @Failure 404 {object} map[string]string "User not found"
// @Router /admin/users/{id}/deposits [post]
func (h *AdminHandler) Deposit(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	meta := map[string]interface{}{"admin_id": adminID(c).Hex()}
	if req.Reference != "" {
		meta["reference"] = req.Reference
	}
	tx, err := h.ledger.Deposit(c.Request.Context(), id, req.Amount, meta)
	if err != nil {
		respondError(c, err)
		return
	}

	audit(c, h.logService, models.ActorAdmin, adminID(c), "Deposit", "Admin credited deposit", map[string]interface{}{
		"user_id":        id.Hex(),
		"amount":         req.Amount.String(),
		"transaction_id": tx.ID.Hex(),
	})
	c.JSON(http.StatusCreated, tx)
}

// @Summary Reconcile a user's balance
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} service.Reconciliation
// @Router /admin/users/{id}/reconcile [get]
func (h *AdminHandler) Reconcile(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	rec, err := h.ledger.Reconcile(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// @Summary Repair a user's cached balance
// @Description Resets the cached balance to the ledger sum when they disagree
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} service.Reconciliation
// @Router /admin/users/{id}/repair [post]
func (h *AdminHandler) Repair(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	rec, err := h.ledger.RepairBalance(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.logService, models.ActorAdmin, adminID(c), "RepairBalance", "Admin repaired cached balance", map[string]interface{}{"user_id": id.Hex()})
	c.JSON(http.StatusOK, rec)
}

// @Summary Run weekly accrual
// @Description Credits ROI and referral bonuses for the given week. Defaults to the last completed week. Safe to re-run.
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param week query int false "Week number"
// @Success 200 {object} service.AccrualReport
// @Failure 400 {object} map[string]string "Invalid week"
// @Failure 503 {object} map[string]string "Accrual already running"
// @Router /admin/accrual/run [post]
func (h *AdminHandler) RunAccrual(c *gin.Context) {
	week := h.accrual.CurrentWeek(time.Now().UTC())
	if raw := c.Query("week"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid week"})
			return
		}
		week = n
	}

	report, err := h.accrual.RunWeek(c.Request.Context(), week)
	if err != nil {
		respondError(c, err)
		return
	}

	audit(c, h.logService, models.ActorAdmin, adminID(c), "RunAccrual", "Admin ran weekly accrual", map[string]interface{}{
		"week_number": week,
		"run_id":      report.RunID,
		"credited":    report.Credited,
		"failed":      report.Failed,
	})
	c.JSON(http.StatusOK, report)
}

// @Summary Accrue one investment
// @Description Runs the weekly accrual for a single investment, e.g. to retry a failure
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Investment ID"
// @Param week query int true "Week number"
// @Success 200 {object} service.AccrualResult
// @Failure 404 {object} map[string]interface{} "Investment not found"
// @Failure 503 {object} map[string]interface{} "Concurrent modification"
// @Router /admin/investments/{id}/accrue [post]
func (h *AdminHandler) AccrueInvestment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	week, err := strconv.Atoi(c.Query("week"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid week"})
		return
	}

	res, err := h.accrual.AccrueInvestment(c.Request.Context(), id, week)
	if err != nil {
		status := errorStatus(err)
		if res == nil || status == http.StatusInternalServerError {
			respondError(c, err)
			return
		}
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": err.Error(), "result": res})
		return
	}
	audit(c, h.logService, models.ActorAdmin, adminID(c), "AccrueInvestment", "Admin accrued single investment", map[string]interface{}{
		"investment_id": id.Hex(),
		"week_number":   week,
		"outcome":       string(res.Outcome),
	})
	c.JSON(http.StatusOK, res)
}

// @Summary Expire referral edges
// @Description Marks every edge whose bonus window has ended as EXPIRED
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]int64 "Expired count"
// @Router /admin/referrals/expire [post]
func (h *AdminHandler) ExpireReferrals(c *gin.Context) {
	n, err := h.referrals.ExpireReferrals(c.Request.Context(), time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expired": n})
}

// @Summary List all plans
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.SubscriptionPlan
// @Router /admin/plans [get]
func (h *AdminHandler) GetPlans(c *gin.Context) {
	plans, err := h.plans.GetPlans(c.Request.Context(), false)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

// @Summary Create plan
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param plan body models.SubscriptionPlan true "Plan"
// @Success 201 {object} models.SubscriptionPlan
// @Failure 400 {object} map[string]string "Invalid plan"
// @Router /admin/plans [post]
func (h *AdminHandler) CreatePlan(c *gin.Context) {
	var plan models.SubscriptionPlan
	if err := c.ShouldBindJSON(&plan); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if err := h.plans.CreatePlan(c.Request.Context(), &plan); err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.logService, models.ActorAdmin, adminID(c), "CreatePlan", "Admin created plan", map[string]interface{}{"plan_id": plan.ID.Hex()})
	c.JSON(http.StatusCreated, plan)
}

// @Summary Update plan
// @Description Name, description and active flag are always editable; financial terms only while no investment references the plan
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Param plan body PlanRequest true "Fields to change"
// @Success 200 {object} models.SubscriptionPlan
// @Failure 409 {object} map[string]string "Plan terms locked"
// @Router /admin/plans/{id} [put]
func (h *AdminHandler) UpdatePlan(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	plan, err := h.plans.UpdatePlan(c.Request.Context(), id, service.PlanUpdate{
		Name:          req.Name,
		Description:   req.Description,
		IsActive:      req.IsActive,
		MinInvestment: req.MinInvestment,
		MonthlyROI:    req.MonthlyROI,
		DurationDays:  req.DurationDays,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.logService, models.ActorAdmin, adminID(c), "UpdatePlan", "Admin updated plan", map[string]interface{}{"plan_id": id.Hex()})
	c.JSON(http.StatusOK, plan)
}

// @Summary Cancel investment
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Investment ID"
// @Success 200 {object} models.Investment
// @Failure 409 {object} map[string]string "Investment not active"
// @Router /admin/investments/{id}/cancel [post]
func (h *AdminHandler) CancelInvestment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	inv, err := h.investments.Cancel(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.logService, models.ActorAdmin, adminID(c), "CancelInvestment", "Admin cancelled investment", map[string]interface{}{"investment_id": id.Hex()})
	c.JSON(http.StatusOK, inv)
}

// @Summary List pending withdrawals
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Withdrawal
// @Router /admin/withdrawals [get]
func (h *AdminHandler) GetPendingWithdrawals(c *gin.Context) {
	list, err := h.withdrawals.GetPendingWithdrawals(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Approve withdrawal
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Withdrawal ID"
// @Success 200 {object} models.Withdrawal
// @Failure 409 {object} map[string]string "Already processed"
// @Router /admin/withdrawals/{id}/approve [post]
func (h *AdminHandler) ApproveWithdrawal(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	w, err := h.withdrawals.Approve(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.logService, models.ActorAdmin, adminID(c), "ApproveWithdrawal", "Admin approved withdrawal", map[string]interface{}{"withdrawal_id": id.Hex()})
	c.JSON(http.StatusOK, w)
}

// @Summary Reject withdrawal
// @Description Rejects a pending withdrawal and refunds the amount
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Withdrawal ID"
// @Param reject body RejectRequest true "Reason"
// @Success 200 {object} models.Withdrawal
// @Failure 409 {object} map[string]string "Already processed"
// @Router /admin/withdrawals/{id}/reject [post]
func (h *AdminHandler) RejectWithdrawal(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	w, err := h.withdrawals.Reject(c.Request.Context(), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.logService, models.ActorAdmin, adminID(c), "RejectWithdrawal", "Admin rejected withdrawal", map[string]interface{}{
		"withdrawal_id": id.Hex(),
		"reason":        req.Reason,
	})
	c.JSON(http.StatusOK, w)
}
