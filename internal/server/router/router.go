package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mamadbah2/daybook-sync/internal/server/handlers"
)

// New wires the Gin engine with required routes and middlewares.
func New(syncHandler *handlers.SyncHandler, businessHandler *handlers.BusinessHandler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	// Entry core fields are free-form; keep numbers exact.
	binding.EnableDecoderUseNumber = true

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.POST("/entries", syncHandler.CaptureEntry)
	r.POST("/sync", syncHandler.SyncNow)
	r.GET("/sync/status", syncHandler.Status)

	businesses := r.Group("/businesses/:businessID")
	businesses.GET("/reference", businessHandler.Reference)
	businesses.POST("/settlements", businessHandler.Settlements)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

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
