package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yanqian/nutriai/internal/infra/config"
)

const requestIDHeader = "X-Request-ID"

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestID(),
		requestLogger(handler.logger),
		corsMiddleware(cfg.HTTP.AllowedOrigins),
		errorHandlingMiddleware(handler.logger),
		rateLimitMiddleware(cfg.HTTP.RateLimit, handler.logger),
	)

	router.GET(healthPath, handler.Health)

	api := router.Group("/api/v1")
	{
		api.POST("/glucose/analyze", handler.AnalyzeGlucose)
		api.POST("/macros/plan", handler.PlanMacros)
		api.POST("/macros/reconcile/meal", handler.ReconcileMeal)
		api.POST("/macros/reconcile/next-day", handler.ReconcileNextDay)
		api.POST("/scores/mas", handler.ScoreMAS)

		api.POST("/snapshots", handler.Snapshot)
		api.POST("/snapshots/batch", handler.SnapshotBatch)
		api.POST("/meals/log", handler.LogMeal)
		api.POST("/days/next", handler.NextDay)

		api.POST("/meal-plans", handler.GenerateMealPlan)
		api.POST("/meal-plans/stream", handler.StreamMealPlan)

		api.GET("/mcp/tools", handler.ListTools)
		api.POST("/mcp/tools/call", handler.CallTool)
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        withRetry(router, cfg.HTTP.Retry, handler.logger),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", latency.Milliseconds(),
			"request_id", c.GetString("requestID"),
		)
	}
}
