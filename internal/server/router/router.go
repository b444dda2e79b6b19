package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/milkmatrix/internal/server/handlers"
)

// Handlers groups the HTTP adapters mounted on the engine.
type Handlers struct {
	Auth   *handlers.AuthHandler
	Cows   *handlers.CowHandler
	Milk   *handlers.MilkHandler
	Health *handlers.HealthHandler
}

// New wires the Gin engine with required routes and middlewares.
func New(h Handlers, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/auth/login", h.Auth.Login)

	api := r.Group("/", h.Auth.RequireSession())

	api.POST("/auth/logout", h.Auth.Logout)
	api.GET("/profile", h.Auth.Profile)
	api.PUT("/profile", h.Auth.UpdateProfile)

	cows := api.Group("/cows")
	cows.GET("", h.Cows.List)
	cows.GET("/search", h.Cows.Search)
	cows.GET("/by-tag/:tag", h.Cows.ByTag)
	cows.GET("/:id", h.Cows.Get)
	cows.GET("/:id/records", h.Cows.Records)
	api.POST("/scan", h.Cows.Scan)

	milk := api.Group("/milk")
	milk.POST("", h.Milk.Create)
	milk.PUT("/:id", h.Milk.Update)
	milk.DELETE("/:id", h.Milk.Delete)
	milk.GET("/today", h.Milk.Today)
	milk.GET("/cow/:cowId", h.Milk.ByCow)
	milk.GET("/summary", h.Milk.Summary)
	milk.GET("/standards", h.Milk.Standards)
	milk.POST("/grade", h.Milk.Grade)
	milk.GET("/export", h.Milk.Export)
	milk.GET("/reports", h.Milk.Reports)

	events := api.Group("/health-events")
	events.POST("", h.Health.Create)
	events.PUT("/:id", h.Health.Update)
	events.DELETE("/:id", h.Health.Delete)
	events.GET("/recent", h.Health.Recent)
	events.GET("/alerts", h.Health.Alerts)
	events.GET("/cow/:cowId", h.Health.ByCow)

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
