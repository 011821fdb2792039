// handlers_rules.go - Display rule handlers for viewer coloring
package api

import (
	"encoding/base64"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/step-visualizer/backend/internal/bom"
	"github.com/step-visualizer/backend/internal/models"
	"github.com/step-visualizer/backend/internal/storage"
)

// RulesHandlerImpl implements the RulesHandler interface
type RulesHandlerImpl struct {
	store storage.Store

	mu             sync.RWMutex
	currentRulesID string
	currentRules   *models.DisplayRules
}

// NewRulesHandler creates a new rules handler instance
func NewRulesHandler(store storage.Store) RulesHandler {
	return &RulesHandlerImpl{
		store: store,
	}
}

// HandleGetRules returns the currently active display rules
func (h *RulesHandlerImpl) HandleGetRules(c echo.Context) error {
	h.mu.RLock()
	rules := h.currentRules
	rulesID := h.currentRulesID
	h.mu.RUnlock()

	if rules == nil {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"active": false,
			"rules":  nil,
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"active": true,
		"id":     rulesID,
		"rules":  rules,
	})
}

// HandleUploadRules accepts a display rules YAML file as base64 JSON,
// validates it and activates it
func (h *RulesHandlerImpl) HandleUploadRules(c echo.Context) error {
	var req uploadFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	if err := req.validate(); err != nil {
		return err
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	// Parse YAML to validate before accepting
	rules, err := bom.ParseDisplayRulesFromBytes(decoded)
	if err != nil {
		return NewBadRequestError("invalid YAML format", err)
	}

	info, err := h.store.SaveBytes(req.Name, decoded)
	if err != nil {
		return NewInternalError("failed to save rules file", err)
	}

	h.mu.Lock()
	h.currentRulesID = info.ID
	h.currentRules = rules
	h.mu.Unlock()

	return c.JSON(http.StatusCreated, models.RulesInfo{
		ID:         info.ID,
		Name:       info.Name,
		UploadedAt: info.UploadedAt.Format(time.RFC3339),
		RulesCount: len(rules.Rules),
	})
}

// GetCurrentRules returns the active rules ID and rules
func (h *RulesHandlerImpl) GetCurrentRules() (string, *models.DisplayRules) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.currentRulesID, h.currentRules
}

// SetCurrentRules sets the active rules
func (h *RulesHandlerImpl) SetCurrentRules(rulesID string, rules *models.DisplayRules) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.currentRulesID = rulesID
	h.currentRules = rules
}
