package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vibework/reportbot/internal/server/handlers"
)

// New wires the Gin engine with required routes and middlewares.
func New(handler *handlers.MiniAppHandler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	api := r.Group("/api", handler.Identify)
	api.POST("/register", handler.Register)

	authed := api.Group("", handler.RequireActor)
	authed.POST("/init", handler.Init)
	authed.POST("/reports", handler.SubmitForm)

	authed.POST("/drafts", handler.CreateDraft)
	authed.GET("/drafts/current", handler.CurrentDraft)
	authed.PATCH("/drafts/:id", handler.UpdateDraft)
	authed.POST("/drafts/:id/actions", handler.AddAction)
	authed.DELETE("/drafts/:id/actions/:index", handler.RemoveAction)
	authed.POST("/drafts/:id/submit", handler.SubmitDraft)

	authed.POST("/session/selection", handler.UpdateSelection)
	authed.POST("/session/commit", handler.CommitSelection)

	authed.GET("/sync", handler.SyncStatus)
	authed.POST("/sync/drain", handler.Drain)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

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
