package api

import (
	"net/http"

	"github.com/mehrbod2002/roivault/internal/models"
	"github.com/mehrbod2002/roivault/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type InvestRequest struct {
	PlanID string          `json:"plan_id" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

type InvestmentHandler struct {
	investments service.InvestmentService
	plans       service.PlanService
	logService  service.LogService
}

func NewInvestmentHandler(investments service.InvestmentService, plans service.PlanService, logService service.LogService) *InvestmentHandler {
	return &InvestmentHandler{investments: investments, plans: plans, logService: logService}
}

// @Summary List active plans
// @Tags Plans
// @Produce json
// @Success 200 {array} models.SubscriptionPlan
// @Router /plans [get]
func (h *InvestmentHandler) GetPlans(c *gin.Context) {
	plans, err := h.plans.GetPlans(c.Request.Context(), true)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

// @Summary Invest in a plan
// @Description Debits the caller and opens an ACTIVE investment
// @Tags Investments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param investment body InvestRequest true "Investment data"
// @Success 201 {object} models.Investment
// @Failure 400 {object} map[string]string "Invalid request or plan inactive"
// @Failure 402 {object} map[string]string "Insufficient funds"
// @Failure 404 {object} map[string]string "Plan not found"
// @Router /investments [post]
func (h *InvestmentHandler) Invest(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req InvestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	planID, err := primitive.ObjectIDFromHex(req.PlanID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid plan ID"})
		return
	}

	inv, err := h.investments.Invest(c.Request.Context(), userID, planID, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	audit(c, h.logService, models.ActorUser, userID, "Invest", "User opened investment", map[string]interface{}{
		"investment_id": inv.ID.Hex(),
		"plan_id":       planID.Hex(),
		"amount":        req.Amount.String(),
	})
	c.JSON(http.StatusCreated, inv)
}

// @Summary List own investments
// @Tags Investments
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Investment
// @Router /investments [get]
func (h *InvestmentHandler) GetInvestments(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	list, err := h.investments.GetInvestmentsByUserID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Get investment with its weekly ROI records
// @Tags Investments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Investment ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string "Investment not found"
// @Router /investments/{id} [get]
func (h *InvestmentHandler) GetInvestment(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	inv, err := h.investments.GetInvestment(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if inv.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Investment not found"})
		return
	}

	records, err := h.investments.GetROIRecords(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"investment": inv, "roi_records": records})
}
