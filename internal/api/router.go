// Package api exposes the portal over HTTP: the staff API on gin and a
// read-only public document mirror on chi.
package api

import (
	"net/http"
	"time"

	"dataportal/internal/documents"
	"dataportal/internal/export"
	"dataportal/internal/ingest"
	"dataportal/internal/logging"
	"dataportal/internal/query"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Services are the application services the API routes to
type Services struct {
	Ingest    *ingest.Coordinator
	Query     *query.Service
	Export    *export.Composer
	Documents *documents.Service
}

// NewRouter builds the staff API
func NewRouter(s Services, logger *zap.Logger) *gin.Engine {
	logger = logging.OrNop(logger).Named("api")
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	th := NewTableHandler(s.Ingest, s.Query, s.Export, logger)
	tables := router.Group("/api/tables")
	{
		tables.GET("", th.ListTables)
		tables.GET("/:table", th.Describe)
		tables.POST("/:table/imports", th.Import)
		tables.GET("/:table/imports", th.ListImports)
		tables.GET("/:table/partitions", th.ListPartitions)
		tables.DELETE("/:table/partitions/:partition", th.DeletePartition)
		tables.GET("/:table/rows", th.ListRows)
		tables.POST("/:table/rows", th.InsertRow)
		tables.DELETE("/:table/rows", th.ClearTable)
		tables.GET("/:table/rows/:id", th.GetRow)
		tables.PUT("/:table/rows/:id", th.UpdateRow)
		tables.DELETE("/:table/rows/:id", th.DeleteRow)
		tables.GET("/:table/export", th.Export)
		tables.GET("/:table/columns/:column/summary", th.Summary)
		tables.GET("/:table/composition", th.Composition)
	}

	dh := NewDocumentHandler(s.Documents, logger)
	docs := router.Group("/api/documents")
	{
		docs.POST("/:category", dh.Upload)
		docs.GET("/:category", dh.List)
		docs.GET("/:category/:id", dh.Get)
		docs.GET("/:category/:id/file", dh.File)
		docs.DELETE("/:category/:id", dh.Delete)
	}

	return router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
