// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/labstack/echo/v4"
	"github.com/step-visualizer/backend/internal/bom"
	"github.com/step-visualizer/backend/internal/models"
)

// UploadHandler handles document upload operations
type UploadHandler interface {
	HandleUploadFile(c echo.Context) error
	HandleUploadBinary(c echo.Context) error
	HandleGetRecentFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
	HandleRenameFile(c echo.Context) error
}

// ExtractHandler handles extraction session operations
type ExtractHandler interface {
	HandleStartExtract(c echo.Context) error
	HandleExtractStatus(c echo.Context) error
	HandleExtractProgressStream(c echo.Context) error
	HandleSessionKeepAlive(c echo.Context) error
}

// BOMHandler handles hierarchy query operations on extracted sessions
type BOMHandler interface {
	HandleGetRecord(c echo.Context) error
	HandleGetTree(c echo.Context) error
	HandleGetTreeMsgpack(c echo.Context) error
	HandleGetNode(c echo.Context) error
	HandleGetChildren(c echo.Context) error
	HandleGetDescendants(c echo.Context) error
	HandleGetPath(c echo.Context) error
	HandleSearch(c echo.Context) error
	HandleGetParts(c echo.Context) error
}

// RulesHandler handles display rule operations
type RulesHandler interface {
	HandleGetRules(c echo.Context) error
	HandleUploadRules(c echo.Context) error
	GetCurrentRules() (string, *models.DisplayRules)
	SetCurrentRules(rulesID string, rules *models.DisplayRules)
}

// BatchHandler handles batch pipeline operations and the BOM catalog
type BatchHandler interface {
	HandleStartBatch(c echo.Context) error
	HandleBatchStatus(c echo.Context) error
	HandleCancelBatch(c echo.Context) error
	HandleListDocuments(c echo.Context) error
	HandleCatalogSearch(c echo.Context) error
	HandleCatalogChildren(c echo.Context) error
	HandleCatalogDescendants(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SessionManager defines the interface for extraction session management
// This allows mocking in tests
type SessionManager interface {
	StartSession(fileID, filePath, filename string) (*models.ExtractSession, error)
	GetSession(id string) (*models.ExtractSession, bool)
	TouchSession(id string) bool
	GetRecord(id string) (*models.BOMDocument, bool)
	GetAnalyzer(id string) (*bom.Analyzer, bool)
	GetWarnings(id string) ([]string, bool)
}
