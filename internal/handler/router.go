package handler

import (
	"escrowledger/internal/config"
	"escrowledger/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter wires middleware and routes.
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(MetricsMiddleware())
	r.Use(CORSMiddleware())

	h := NewHandler(db, rdb, cfg)

	api := r.Group("/api/v1")
	{
		escrow := api.Group("/escrow")
		{
			// hold is issued by the payment subsystem with a service
			// token, the remaining mutations by operators
			escrow.POST("/hold", AuthMiddleware(cfg, RoleAdmin, RoleService), h.HoldEscrow)
			escrow.POST("/release", AdminAuthMiddleware(cfg), h.ReleaseEscrow)
			escrow.POST("/refund", AdminAuthMiddleware(cfg), h.RefundEscrow)
			escrow.POST("/dispute", AdminAuthMiddleware(cfg), h.MarkDisputed)
			escrow.GET("/detail", h.GetTransaction)
			escrow.GET("/list", h.ListTransactions)
		}

		wallet := api.Group("/wallet")
		{
			wallet.GET("/balance", h.GetWallet)
			wallet.GET("/entries", h.ListEntries)
			wallet.GET("/entry", h.GetEntry)
		}

		withdrawal := api.Group("/withdrawal")
		{
			withdrawal.POST("/request", h.RequestWithdrawal)
			withdrawal.POST("/cancel", h.CancelWithdrawal)
			withdrawal.GET("/detail", h.GetWithdrawal)
			withdrawal.GET("/list", h.ListWithdrawals)
		}

		admin := api.Group("/admin")
		admin.Use(AdminAuthMiddleware(cfg))
		{
			admin.POST("/withdrawal/approve", h.ApproveWithdrawal)
			admin.POST("/withdrawal/reject", h.RejectWithdrawal)
			admin.POST("/payout", h.ProcessPayout)
			admin.POST("/adjustment", h.ApplyAdjustment)
			admin.GET("/summary", h.PlatformSummary)
			admin.GET("/reconcile", h.ReconcileShop)
			admin.GET("/wallets", h.ListWallets)

			settings := admin.Group("/settings")
			{
				settings.POST("/commission", h.SetCategoryCommission)
				settings.GET("/commission", h.ListCategoryCommissions)
				settings.POST("/escrow", h.SetEscrowSettings)
				settings.GET("/escrow", h.ListEscrowSettings)
				settings.POST("/global", h.SetGlobalSetting)
				settings.GET("/global", h.ListGlobalSettings)
				settings.POST("/flags", h.SetFeatureFlag)
				settings.GET("/flags", h.ListFeatureFlags)
			}
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	return r
}
