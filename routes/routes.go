package routes

import (
	"time"

	"budvest_data_service/controllers"
	"budvest_data_service/middleware"
	"budvest_data_service/services/events"
	"budvest_data_service/services/store"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps are the services the HTTP surface is built on
type Deps struct {
	DB        *gorm.DB
	Store     *store.Store
	Jobs      controllers.JobRunner
	Runs      controllers.RunLister
	Hub       *events.Hub
	Mirror    controllers.StatusReporter
	JWTSecret string
}

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, deps Deps) {
	healthController := controllers.NewHealthController(deps.DB, deps.Jobs, deps.Mirror)
	marketController := controllers.NewMarketController(deps.Store)
	jobController := controllers.NewJobController(deps.Jobs, deps.Runs)

	loginLimiter := middleware.NewLoginLimiter(5, 15*time.Minute, 30*time.Minute)
	authController := controllers.NewAuthController(deps.DB, deps.JWTSecret, loginLimiter)
	readLimiter := middleware.NewIPRateLimiter(20, 40)

	// Health check
	router.GET("/health", healthController.Health)
	router.GET("/ready", healthController.Ready)

	// API v1 group
	api := router.Group("/api/v1")
	{
		// Job routes
		jobs := api.Group("/jobs")
		{
			jobs.GET("", jobController.ListJobs)
			jobs.GET("/runs", jobController.ListRuns)
		}

		// Market routes
		market := api.Group("/market", readLimiter.Middleware())
		{
			market.GET("/quotes", marketController.GetQuotes)
			market.GET("/indices", marketController.GetIndices)
			market.GET("/kline/:symbol", marketController.GetKline)
			market.GET("/news", marketController.GetNews)
			market.GET("/policy-news", marketController.GetPolicyNews)
			market.GET("/fund-flow/:symbol", marketController.GetFundFlow)
			market.GET("/margin/:symbol", marketController.GetMargin)
			market.GET("/earnings", marketController.GetEarnings)
		}

		// Admin routes
		admin := api.Group("/admin")
		{
			admin.POST("/login", loginLimiter.Middleware(), authController.Login)

			protected := admin.Group("", middleware.AdminAuth(deps.JWTSecret))
			{
				protected.POST("/jobs/:name/run", jobController.TriggerJob)
			}
		}
	}

	// Job event stream
	if deps.Hub != nil {
		router.GET("/ws/jobs", func(c *gin.Context) {
			deps.Hub.HandleWebSocket(c.Writer, c.Request)
		})
	}
}
