package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ChaseRain/pdf2deck/internal/infra/logger"
	"github.com/ChaseRain/pdf2deck/internal/service/document"
	"github.com/ChaseRain/pdf2deck/internal/service/orchestrator"
	"github.com/ChaseRain/pdf2deck/internal/service/storage"
)

func NewRouter(orch *orchestrator.Orchestrator, reader *document.Reader, store *storage.Service, log *logger.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))

	handler := NewHandler(orch, reader, store, log)

	r.GET("/health", handler.Health)
	r.GET("/files/:name", handler.GetFile)

	v1 := r.Group("/v1")
	{
		v1.POST("/document", handler.LoadDocument)
		v1.DELETE("/document", handler.ClearDocument)
		v1.GET("/session", handler.Session)
		v1.POST("/generate", handler.Generate)
		v1.POST("/export", handler.Export)
	}

	return r
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		log.Debug("request started",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)
		c.Next()
		log.Info("request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		)
	}
}
