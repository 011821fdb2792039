// handlers_extract.go - Extraction session operation handlers
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/step-visualizer/backend/internal/models"
	"github.com/step-visualizer/backend/internal/storage"
)

// ExtractHandlerImpl implements the ExtractHandler interface
type ExtractHandlerImpl struct {
	store      storage.Store
	sessionMgr SessionManager
}

// NewExtractHandler creates a new extract handler instance
func NewExtractHandler(store storage.Store, sessionMgr SessionManager) ExtractHandler {
	return &ExtractHandlerImpl{
		store:      store,
		sessionMgr: sessionMgr,
	}
}

// HandleStartExtract starts a new BOM extraction session for an uploaded file
func (h *ExtractHandlerImpl) HandleStartExtract(c echo.Context) error {
	var req startExtractRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	if req.FileID == "" {
		return NewValidationError("fileId")
	}

	info, err := h.store.Get(req.FileID)
	if err != nil {
		return NewNotFoundError("file", req.FileID)
	}

	path, err := h.store.GetFilePath(req.FileID)
	if err != nil {
		return NewInternalError("failed to get file path", err)
	}

	h.store.UpdateStatus(req.FileID, "extracting")

	sess, err := h.sessionMgr.StartSession(info.ID, path, info.Name)
	if err != nil {
		return NewInternalError("failed to start session", err)
	}

	return c.JSON(http.StatusAccepted, sess)
}

// HandleExtractStatus returns the current status of an extraction session
func (h *ExtractHandlerImpl) HandleExtractStatus(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	// Touch session to prevent cleanup while being viewed
	h.sessionMgr.TouchSession(id)

	return c.JSON(http.StatusOK, sess)
}

// HandleSessionKeepAlive extends session lifetime for active viewing
func (h *ExtractHandlerImpl) HandleSessionKeepAlive(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	if ok := h.sessionMgr.TouchSession(id); !ok {
		return NewNotFoundError("session", id)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleExtractProgressStream streams extraction progress via SSE
func (h *ExtractHandlerImpl) HandleExtractProgressStream(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	// Set SSE headers
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		h.sendSSEError(c, "session not found")
		return nil
	}

	// Send initial status
	h.sendSSEData(c, sess)

	// Stream updates until complete or error
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	timeout := time.NewTimer(15 * time.Minute)
	defer timeout.Stop()

	for {
		select {
		case <-ticker.C:
			sess, ok := h.sessionMgr.GetSession(id)
			if !ok {
				h.sendSSEError(c, "session not found")
				return nil
			}

			h.sendSSEData(c, sess)

			// Stop streaming if complete or error
			if sess.Status == models.SessionStatusComplete ||
				sess.Status == models.SessionStatusError {
				return nil
			}

		case <-timeout.C:
			h.sendSSEError(c, "stream timeout")
			return nil
		}
	}
}

// Request/Response types

type startExtractRequest struct {
	FileID string `json:"fileId"`
}

// Helper methods

func (h *ExtractHandlerImpl) sendSSEData(c echo.Context, data interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(c.Response(), "data: %s\n\n", jsonData)
	c.Response().Flush()
}

func (h *ExtractHandlerImpl) sendSSEError(c echo.Context, message string) {
	h.sendSSEData(c, map[string]string{"error": message})
}
