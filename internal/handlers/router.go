package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NewRouter wires the API routes. metrics may be nil.
func NewRouter(
	environment string,
	logger *zap.Logger,
	attendance *AttendanceHandler,
	security *SecurityHandler,
	health *HealthHandler,
	metrics http.Handler,
) *gin.Engine {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(LoggingMiddleware(logger))

	router.GET("/health", health.Health)
	router.GET("/ready", health.Ready)
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	api := router.Group("/api")
	{
		att := api.Group("/attendance")
		att.POST("/checkin", attendance.Checkin)
		att.POST("/checkout", attendance.Checkout)

		lockdowns := api.Group("/lockdowns")
		lockdowns.POST("", security.DeclareLockdown)
		lockdowns.POST("/:id/end", security.EndLockdown)
		lockdowns.POST("/:id/cancel", security.CancelLockdown)

		api.PATCH("/tamper-records/:id/review", security.ReviewTamper)
	}
	return router
}

// RequestIDMiddleware propagates or assigns X-Request-ID
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString("request_id")),
			zap.String("ip", c.ClientIP()),
		)
	}
}
