// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"github.com/labstack/echo/v4"
	"github.com/step-visualizer/backend/internal/batch"
	"github.com/step-visualizer/backend/internal/catalog"
	"github.com/step-visualizer/backend/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store           storage.Store
	SessionMgr      SessionManager
	Catalog         *catalog.Store
	NewOrchestrator func() *batch.Orchestrator
	Version         string
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Upload    UploadHandler
	Extract   ExtractHandler
	BOM       BOMHandler
	Rules     RulesHandler
	Batch     BatchHandler
	WebSocket *WebSocketHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(deps.Version),
		Upload:    NewUploadHandler(deps.Store),
		Extract:   NewExtractHandler(deps.Store, deps.SessionMgr),
		BOM:       NewBOMHandler(deps.SessionMgr),
		Rules:     NewRulesHandler(deps.Store),
		Batch:     NewBatchHandler(deps.NewOrchestrator, deps.Catalog),
		WebSocket: NewWebSocketHandler(deps.SessionMgr),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check
	e.GET("/health", handlers.Health.HandleHealth)

	// File upload routes
	fileGroup := e.Group("/api/files")
	fileGroup.POST("/upload", handlers.Upload.HandleUploadFile)
	fileGroup.POST("/upload/binary", handlers.Upload.HandleUploadBinary)
	fileGroup.GET("/recent", handlers.Upload.HandleGetRecentFiles)
	fileGroup.GET("/:id", handlers.Upload.HandleGetFile)
	fileGroup.DELETE("/:id", handlers.Upload.HandleDeleteFile)
	fileGroup.PUT("/:id", handlers.Upload.HandleRenameFile)

	// Extraction session routes
	extractGroup := e.Group("/api/extract")
	extractGroup.POST("", handlers.Extract.HandleStartExtract)
	extractGroup.GET("/:sessionId/status", handlers.Extract.HandleExtractStatus)
	extractGroup.POST("/:sessionId/keepalive", handlers.Extract.HandleSessionKeepAlive)
	extractGroup.GET("/:sessionId/progress", handlers.Extract.HandleExtractProgressStream)

	// Hierarchy query routes
	bomGroup := e.Group("/api/bom")
	bomGroup.GET("/:sessionId", handlers.BOM.HandleGetRecord)
	bomGroup.GET("/:sessionId/tree", handlers.BOM.HandleGetTree)
	bomGroup.GET("/:sessionId/tree/msgpack", handlers.BOM.HandleGetTreeMsgpack)
	bomGroup.GET("/:sessionId/nodes/:nodeId", handlers.BOM.HandleGetNode)
	bomGroup.GET("/:sessionId/nodes/:nodeId/children", handlers.BOM.HandleGetChildren)
	bomGroup.GET("/:sessionId/nodes/:nodeId/descendants", handlers.BOM.HandleGetDescendants)
	bomGroup.GET("/:sessionId/nodes/:nodeId/path", handlers.BOM.HandleGetPath)
	bomGroup.GET("/:sessionId/search", handlers.BOM.HandleSearch)
	bomGroup.GET("/:sessionId/parts", handlers.BOM.HandleGetParts)

	// Display rule routes
	rulesGroup := e.Group("/api/rules")
	rulesGroup.GET("", handlers.Rules.HandleGetRules)
	rulesGroup.POST("/upload", handlers.Rules.HandleUploadRules)

	// Batch pipeline and catalog routes
	batchGroup := e.Group("/api/batch")
	batchGroup.POST("", handlers.Batch.HandleStartBatch)
	batchGroup.GET("/status", handlers.Batch.HandleBatchStatus)
	batchGroup.POST("/cancel", handlers.Batch.HandleCancelBatch)

	catalogGroup := e.Group("/api/catalog")
	catalogGroup.GET("/documents", handlers.Batch.HandleListDocuments)
	catalogGroup.GET("/search", handlers.Batch.HandleCatalogSearch)
	catalogGroup.GET("/:doc/nodes/:nodeId/children", handlers.Batch.HandleCatalogChildren)
	catalogGroup.GET("/:doc/nodes/:nodeId/descendants", handlers.Batch.HandleCatalogDescendants)
}

// RegisterWebSocketRoutes registers WebSocket routes
func RegisterWebSocketRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/api/ws/progress", handlers.WebSocket.HandleWebSocket)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo) {
	// Use custom error handler
	e.HTTPErrorHandler = ErrorHandler
}
