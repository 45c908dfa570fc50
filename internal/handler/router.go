package handler

import (
	"rispay/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 配置路由
// 角色权限在 service 层校验，这里只负责认证
func SetupRouter(h *Handler, resolver *auth.TokenResolver, mode string) *gin.Engine {
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(MetricsMiddleware())
	r.Use(CORSMiddleware())

	api := r.Group("/api/v1")
	api.Use(AuthMiddleware(resolver))
	{
		transactions := api.Group("/transactions")
		{
			transactions.POST("/preview", h.PreviewTransfer)
			transactions.POST("/send", h.SendTransfer)
			transactions.GET("", h.ListTransactions)
			transactions.GET("/insights", h.Insights)
		}

		accounts := api.Group("/accounts")
		{
			accounts.GET("", h.ListAccounts)
			accounts.POST("/:id/primary", h.SetPrimary)
			accounts.PUT("/:id/nickname", h.UpdateNickname)
		}

		api.PUT("/settings/pin", h.SetTransactionPin)

		provider := api.Group("/provider")
		{
			provider.GET("/banks", h.ListProviderBanks)
			provider.PUT("/banks/:id/fee", h.UpdateBankFee)
			provider.PUT("/banks/:id/interest", h.UpdateInterestRate)
			provider.PUT("/banks/:id/maintenance", h.SetMaintenanceMode)
			provider.POST("/vault/transfer", h.VaultTransfer)
		}

		admin := api.Group("/admin")
		{
			admin.POST("/vault/transfer", h.VaultTransfer)
			admin.POST("/accounts/credit-debit", h.CreditDebit)
			admin.POST("/economy/reset", h.ResetEconomy)
			admin.GET("/stats", h.Stats)
			admin.GET("/settings", h.GetSettings)
			admin.PUT("/settings", h.UpdateSettings)
			admin.GET("/banks", h.ListBanks)
			admin.POST("/banks", h.CreateBank)
			admin.GET("/audit-logs", h.ListAuditLogs)
			admin.POST("/jobs/interest", h.RunInterest)
			admin.POST("/jobs/inflation", h.RunInflation)
		}
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
