// handlers_batch.go - Batch pipeline and BOM catalog handlers
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/step-visualizer/backend/internal/batch"
	"github.com/step-visualizer/backend/internal/catalog"
	"github.com/step-visualizer/backend/internal/models"
)

// BatchHandlerImpl implements the BatchHandler interface
type BatchHandlerImpl struct {
	newOrchestrator func() *batch.Orchestrator
	catalog         *catalog.Store

	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	lastSummary *models.BatchSummary
}

// NewBatchHandler creates a new batch handler instance. The factory is
// invoked once per triggered run so each run gets fresh unique names.
func NewBatchHandler(newOrchestrator func() *batch.Orchestrator, cat *catalog.Store) BatchHandler {
	return &BatchHandlerImpl{
		newOrchestrator: newOrchestrator,
		catalog:         cat,
	}
}

// HandleStartBatch triggers a batch run over the model directory.
// Only one run may be active at a time.
func (h *BatchHandlerImpl) HandleStartBatch(c echo.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return NewConflictError("a batch run is already in progress")
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.running = true
	h.cancel = cancel
	h.mu.Unlock()

	orch := h.newOrchestrator()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				fmt.Printf("[API] PANIC recovered in batch run: %v\n", r)
			}
			h.mu.Lock()
			h.running = false
			h.cancel = nil
			h.mu.Unlock()
			cancel()
		}()

		summary := orch.ProcessAll(ctx)

		h.mu.Lock()
		h.lastSummary = summary
		h.mu.Unlock()
	}()

	return c.JSON(http.StatusAccepted, map[string]string{"status": "started"})
}

// HandleBatchStatus returns whether a run is active and the last summary
func (h *BatchHandlerImpl) HandleBatchStatus(c echo.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return c.JSON(http.StatusOK, batchStatusResponse{
		Running:     h.running,
		LastSummary: h.lastSummary,
	})
}

// HandleCancelBatch requests cancellation of the active run. The run
// stops at the next file boundary.
func (h *BatchHandlerImpl) HandleCancelBatch(c echo.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running || h.cancel == nil {
		return NewConflictError("no batch run in progress")
	}

	h.cancel()
	return c.JSON(http.StatusAccepted, map[string]string{"status": "cancelling"})
}

// HandleListDocuments returns cataloged documents, most recent first
func (h *BatchHandlerImpl) HandleListDocuments(c echo.Context) error {
	if h.catalog == nil {
		return NewServiceUnavailableError("catalog not available")
	}

	limit := queryLimit(c, 100)
	docs, err := h.catalog.ListDocuments(c.Request().Context(), limit)
	if err != nil {
		return NewInternalError("failed to list documents", err)
	}
	if docs == nil {
		docs = []catalog.DocumentInfo{}
	}

	return c.JSON(http.StatusOK, docs)
}

// HandleCatalogSearch searches node names across all cataloged documents
func (h *BatchHandlerImpl) HandleCatalogSearch(c echo.Context) error {
	if h.catalog == nil {
		return NewServiceUnavailableError("catalog not available")
	}

	term := c.QueryParam("q")
	if term == "" {
		return NewValidationError("q")
	}
	caseSensitive := c.QueryParam("caseSensitive") == "true"
	limit := queryLimit(c, 500)

	nodes, err := h.catalog.SearchNodes(c.Request().Context(), term, caseSensitive, limit)
	if err != nil {
		return NewInternalError("catalog search failed", err)
	}
	if nodes == nil {
		nodes = []catalog.NodeRow{}
	}

	return c.JSON(http.StatusOK, nodes)
}

// HandleCatalogChildren returns the direct children of a cataloged node
func (h *BatchHandlerImpl) HandleCatalogChildren(c echo.Context) error {
	return h.catalogRelation(c, func(ctx context.Context, doc string, id uint) ([]catalog.NodeRow, error) {
		return h.catalog.ChildrenOf(ctx, doc, id)
	})
}

// HandleCatalogDescendants returns all descendants of a cataloged node
func (h *BatchHandlerImpl) HandleCatalogDescendants(c echo.Context) error {
	return h.catalogRelation(c, func(ctx context.Context, doc string, id uint) ([]catalog.NodeRow, error) {
		return h.catalog.DescendantsOf(ctx, doc, id)
	})
}

func (h *BatchHandlerImpl) catalogRelation(c echo.Context, query func(context.Context, string, uint) ([]catalog.NodeRow, error)) error {
	if h.catalog == nil {
		return NewServiceUnavailableError("catalog not available")
	}

	doc := c.Param("doc")
	if doc == "" {
		return NewValidationError("doc")
	}
	nodeID, err := parseNodeID(c.Param("nodeId"))
	if err != nil {
		return NewBadRequestError("invalid node id", err)
	}

	nodes, err := query(c.Request().Context(), doc, nodeID)
	if err != nil {
		return NewInternalError("catalog query failed", err)
	}
	if nodes == nil {
		nodes = []catalog.NodeRow{}
	}

	return c.JSON(http.StatusOK, nodes)
}

// Response types

type batchStatusResponse struct {
	Running     bool                 `json:"running"`
	LastSummary *models.BatchSummary `json:"lastSummary,omitempty"`
}

func queryLimit(c echo.Context, fallback int) int {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 1000 {
		return fallback
	}
	return limit
}
