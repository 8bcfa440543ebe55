package api

import (
	"net/http"

	"github.com/mehrbod2002/roivault/internal/middleware"
	"github.com/mehrbod2002/roivault/internal/models"
	"github.com/mehrbod2002/roivault/internal/service"

	"github.com/gin-gonic/gin"
)

type SignupRequest struct {
	Username     string `json:"username" binding:"required"`
	Email        string `json:"email" binding:"omitempty,email"`
	Password     string `json:"password" binding:"required,min=6"`
	ReferralCode string `json:"referral_code"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type WalletRequest struct {
	Address  string `json:"address" binding:"required"`
	Currency string `json:"currency"`
}

type UserHandler struct {
	userService     service.UserService
	referralService service.ReferralService
	logService      service.LogService
	jwtSecret       string
}

func NewUserHandler(userService service.UserService, referralService service.ReferralService, logService service.LogService, jwtSecret string) *UserHandler {
	return &UserHandler{userService: userService, referralService: referralService, logService: logService, jwtSecret: jwtSecret}
}

// @Summary Sign up a new user
// @Description Creates a user, optionally attached to a referrer by referral code
// @Tags Users
// @Accept json
// @Produce json
// @Param user body SignupRequest true "Signup data"
// @Success 201 {object} map[string]interface{} "User created"
// @Failure 400 {object} map[string]string "Invalid JSON or referral code"
// @Failure 409 {object} map[string]string "Username taken"
// @Router /users/signup [post]
func (h *UserHandler) SignupUser(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	user, err := h.userService.Signup(c.Request.Context(), service.SignupInput{
		Username:     req.Username,
		Email:        req.Email,
		Password:     req.Password,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	metadata := map[string]interface{}{"username": user.Username}
	if user.ReferredBy != nil {
		metadata["referred_by"] = user.ReferredBy.Hex()
	}
	audit(c, h.logService, models.ActorUser, user.ID, "UserSignup", "User signed up", metadata)

	token, err := middleware.GenerateJWT(user.ID.Hex(), h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status": "User created",
		"token":  token,
		"user":   user,
	})
}

// @Summary User login
// @Description Authenticates a user and returns a JWT token
// @Tags Users
// @Accept json
// @Produce json
// @Param credentials body LoginRequest true "User credentials"
// @Success 200 {object} map[string]string "JWT token"
// @Failure 400 {object} map[string]string "Invalid JSON"
// @Failure 401 {object} map[string]string "Invalid credentials"
// @Router /users/login [post]
func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := middleware.GenerateJWT(user.ID.Hex(), h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	audit(c, h.logService, models.ActorUser, user.ID, "UserLogin", "User logged in", nil)
	c.JSON(http.StatusOK, gin.H{
		"status": "Login successful",
		"token":  token,
	})
}

// @Summary Get own profile
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /me [get]
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	user, err := h.userService.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// @Summary Register wallet
// @Description Binds the caller's payout wallet. Only one wallet per user.
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param wallet body WalletRequest true "Wallet data"
// @Success 201 {object} models.Wallet
// @Failure 400 {object} map[string]string "Invalid JSON"
// @Failure 409 {object} map[string]string "Wallet already registered"
// @Router /wallet [post]
func (h *UserHandler) RegisterWallet(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req WalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	wallet, err := h.userService.RegisterWallet(c.Request.Context(), userID, req.Address, req.Currency)
	if err != nil {
		respondError(c, err)
		return
	}

	audit(c, h.logService, models.ActorUser, userID, "RegisterWallet", "User registered wallet", map[string]interface{}{
		"address":  wallet.Address,
		"currency": wallet.Currency,
	})
	c.JSON(http.StatusCreated, wallet)
}

// @Summary Get wallet
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Wallet
// @Failure 404 {object} map[string]string "No wallet registered"
// @Router /wallet [get]
func (h *UserHandler) GetWallet(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	wallet, err := h.userService.GetWallet(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, wallet)
}

// @Summary Get referrals
// @Description Lists the caller's direct referrals and the bonus edges paying the caller
// @Tags Referrals
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /referrals [get]
func (h *UserHandler) GetReferrals(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	direct, err := h.userService.GetDirectReferrals(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	edges, err := h.referralService.GetReferralsByReferrer(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	users := make([]gin.H, 0, len(direct))
	for _, u := range direct {
		users = append(users, gin.H{
			"user_id":    u.ID.Hex(),
			"username":   u.Username,
			"created_at": u.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"direct_referrals": users,
		"edges":            edges,
	})
}
