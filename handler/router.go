package handler

import "github.com/gin-gonic/gin"

// Handlers groups every HTTP handler of the API
type Handlers struct {
	Contracts *ContractHandler
	Alerts    *AlertHandler
	Dashboard *DashboardHandler
	Callback  *CallbackHandler
}

// Register mounts the API routes on router
func (h *Handlers) Register(router gin.IRouter) {
	router.GET("/health", h.Dashboard.Health)

	api := router.Group("/api")
	{
		api.POST("/contracts/upload", h.Contracts.Upload)
		api.POST("/contracts/text", h.Contracts.SubmitText)
		api.GET("/contracts", h.Contracts.List)
		api.GET("/contracts/:id", h.Contracts.Get)
		api.GET("/contracts/:id/status", h.Contracts.GetStatus)
		api.GET("/contracts/:id/breach-rules", h.Contracts.BreachRules)
		api.POST("/contracts/:id/breaches", h.Contracts.DetectBreaches)
		api.POST("/contracts/:id/penalties", h.Contracts.CalculatePenalties)
		api.POST("/contracts/:id/alerts", h.Contracts.AddAlert)
		api.GET("/contracts/:id/export", h.Contracts.Export)
		api.GET("/export", h.Contracts.ExportAll)

		api.GET("/alerts", h.Alerts.List)
		api.POST("/alerts", h.Alerts.Create)
		api.POST("/alerts/:id/ack", h.Alerts.Acknowledge)

		api.GET("/dashboard", h.Dashboard.Dashboard)

		if h.Callback != nil {
			api.POST("/mineru/callback", h.Callback.HandleCallback)
		}
	}
}
