package api

import (
	"context"

	"github.com/mehrbod2002/roivault/internal/metrics"
	"github.com/mehrbod2002/roivault/internal/middleware"
	"github.com/mehrbod2002/roivault/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

type Dependencies struct {
	JWTSecret string
	Logger    *zap.Logger
	Limiter   *middleware.RateLimiter
	// Ping backs /healthz. Nil reports healthy.
	Ping func(ctx context.Context) error

	Users       service.UserService
	Admins      service.AdminService
	Ledger      service.LedgerService
	Plans       service.PlanService
	Investments service.InvestmentService
	Accrual     service.AccrualService
	Referrals   service.ReferralService
	Withdrawals service.WithdrawalService
	Transfers   service.TransferService
	Support     service.SupportService
	Settings    service.SettingService
	Logs        service.LogService
}

func SetupRoutes(r *gin.Engine, deps Dependencies) {
	r.Use(middleware.LoggerMiddleware(deps.Logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader},
	}))

	userHandler := NewUserHandler(deps.Users, deps.Referrals, deps.Logs, deps.JWTSecret)
	transactionHandler := NewTransactionHandler(deps.Ledger, deps.Transfers, deps.Withdrawals, deps.Logs)
	investmentHandler := NewInvestmentHandler(deps.Investments, deps.Plans, deps.Logs)
	supportHandler := NewSupportHandler(deps.Support, deps.Settings, deps.Logs)
	adminHandler := NewAdminHandler(deps)
	logHandler := NewLogHandler(deps.Logs)
	healthHandler := NewHealthHandler(deps.Ping)

	r.GET("/healthz", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")
	if deps.Limiter != nil {
		v1.Use(deps.Limiter.Middleware())
	}
	{
		v1.POST("/users/signup", userHandler.SignupUser)
		v1.POST("/users/login", userHandler.Login)
		v1.POST("/admin/login", adminHandler.AdminLogin)
		v1.GET("/plans", investmentHandler.GetPlans)
		v1.GET("/settings", supportHandler.GetSettings)

		user := v1.Group("/").Use(middleware.UserAuthMiddleware(deps.JWTSecret, deps.Users))
		{
			user.GET("/me", userHandler.GetProfile)
			user.GET("/wallet", userHandler.GetWallet)
			user.POST("/wallet", userHandler.RegisterWallet)
			user.GET("/referrals", userHandler.GetReferrals)

			user.GET("/balance", transactionHandler.GetBalance)
			user.GET("/balance/reconcile", transactionHandler.Reconcile)
			user.GET("/transactions", transactionHandler.GetUserTransactions)
			user.POST("/transfers", transactionHandler.Transfer)
			user.GET("/transfers", transactionHandler.GetTransfers)
			user.POST("/withdrawals", transactionHandler.RequestWithdrawal)
			user.GET("/withdrawals", transactionHandler.GetWithdrawals)

			user.POST("/investments", investmentHandler.Invest)
			user.GET("/investments", investmentHandler.GetInvestments)
			user.GET("/investments/:id", investmentHandler.GetInvestment)

			user.POST("/tickets", supportHandler.CreateTicket)
			user.GET("/tickets", supportHandler.GetUserTickets)
		}

		admin := v1.Group("/admin").Use(middleware.AdminAuthMiddleware(deps.JWTSecret))
		{
			admin.GET("/users", adminHandler.GetAllUsers)
			admin.GET("/users/:id/referrals", adminHandler.GetUserReferrals)
			admin.GET("/users/:id/transactions", adminHandler.GetUserTransactions)
			admin.POST("/users/:id/deposits", adminHandler.Deposit)
			admin.GET("/users/:id/reconcile", adminHandler.Reconcile)
			admin.POST("/users/:id/repair", adminHandler.Repair)

			admin.POST("/accrual/run", adminHandler.RunAccrual)
			admin.POST("/investments/:id/accrue", adminHandler.AccrueInvestment)
			admin.POST("/investments/:id/cancel", adminHandler.CancelInvestment)
			admin.POST("/referrals/expire", adminHandler.ExpireReferrals)

			admin.GET("/plans", adminHandler.GetPlans)
			admin.POST("/plans", adminHandler.CreatePlan)
			admin.PUT("/plans/:id", adminHandler.UpdatePlan)

			admin.GET("/withdrawals", adminHandler.GetPendingWithdrawals)
			admin.POST("/withdrawals/:id/approve", adminHandler.ApproveWithdrawal)
			admin.POST("/withdrawals/:id/reject", adminHandler.RejectWithdrawal)

			admin.GET("/tickets", supportHandler.GetAllTickets)
			admin.PUT("/tickets/:id", supportHandler.UpdateTicketStatus)
			admin.PUT("/settings", supportHandler.UpdateSettings)

			admin.GET("/logs", logHandler.GetAllLogs)
			admin.GET("/logs/user/:user_id", logHandler.GetLogsByUser)
		}
	}
}
