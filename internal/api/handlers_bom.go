// handlers_bom.go - Hierarchy query handlers over extracted sessions
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/step-visualizer/backend/internal/models"
	"github.com/vmihailenco/msgpack/v5"
)

// BOMHandlerImpl implements the BOMHandler interface
type BOMHandlerImpl struct {
	sessionMgr SessionManager
}

// NewBOMHandler creates a new BOM handler instance
func NewBOMHandler(sessionMgr SessionManager) BOMHandler {
	return &BOMHandlerImpl{
		sessionMgr: sessionMgr,
	}
}

// HandleGetRecord returns the full extracted BOM record for a session
func (h *BOMHandlerImpl) HandleGetRecord(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	record, ok := h.sessionMgr.GetRecord(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	h.sessionMgr.TouchSession(id)

	return c.JSON(http.StatusOK, record)
}

// HandleGetTree returns the nested hierarchy with orphan warnings
func (h *BOMHandlerImpl) HandleGetTree(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	analyzer, ok := h.sessionMgr.GetAnalyzer(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	h.sessionMgr.TouchSession(id)

	roots, warnings := analyzer.HierarchyTree()

	return c.JSON(http.StatusOK, treeResponse{
		Roots:    roots,
		Warnings: warnings,
	})
}

// HandleGetTreeMsgpack returns the flat assembly tree in MessagePack format.
// MessagePack is 30-50% smaller than JSON for large assemblies.
func (h *BOMHandlerImpl) HandleGetTreeMsgpack(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	record, ok := h.sessionMgr.GetRecord(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	h.sessionMgr.TouchSession(id)

	data, err := msgpack.Marshal(map[string]interface{}{
		"assemblyTree":    record.AssemblyTree,
		"totalParts":      record.TotalParts,
		"totalAssemblies": record.TotalAssemblies,
	})
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}

	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleGetNode returns a single node by ID
func (h *BOMHandlerImpl) HandleGetNode(c echo.Context) error {
	id := c.Param("sessionId")
	nodeID, err := parseNodeID(c.Param("nodeId"))
	if err != nil {
		return NewBadRequestError("invalid node id", err)
	}

	analyzer, ok := h.sessionMgr.GetAnalyzer(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	node, ok := analyzer.Node(nodeID)
	if !ok {
		return NewNotFoundError("node", c.Param("nodeId"))
	}

	return c.JSON(http.StatusOK, node)
}

// HandleGetChildren returns the direct children of a node
func (h *BOMHandlerImpl) HandleGetChildren(c echo.Context) error {
	id := c.Param("sessionId")
	nodeID, err := parseNodeID(c.Param("nodeId"))
	if err != nil {
		return NewBadRequestError("invalid node id", err)
	}

	analyzer, ok := h.sessionMgr.GetAnalyzer(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	return c.JSON(http.StatusOK, nodesResponse{Nodes: analyzer.Children(nodeID)})
}

// HandleGetDescendants returns all transitive descendants of a node
func (h *BOMHandlerImpl) HandleGetDescendants(c echo.Context) error {
	id := c.Param("sessionId")
	nodeID, err := parseNodeID(c.Param("nodeId"))
	if err != nil {
		return NewBadRequestError("invalid node id", err)
	}

	analyzer, ok := h.sessionMgr.GetAnalyzer(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	return c.JSON(http.StatusOK, nodesResponse{Nodes: analyzer.Descendants(nodeID)})
}

// HandleGetPath returns the root-to-node path for a node
func (h *BOMHandlerImpl) HandleGetPath(c echo.Context) error {
	id := c.Param("sessionId")
	nodeID, err := parseNodeID(c.Param("nodeId"))
	if err != nil {
		return NewBadRequestError("invalid node id", err)
	}

	analyzer, ok := h.sessionMgr.GetAnalyzer(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	return c.JSON(http.StatusOK, nodesResponse{Nodes: analyzer.PathToRoot(nodeID)})
}

// HandleSearch returns nodes whose name contains the search term
func (h *BOMHandlerImpl) HandleSearch(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	term := c.QueryParam("q")
	if term == "" {
		return NewValidationError("q")
	}
	caseSensitive := c.QueryParam("caseSensitive") == "true"

	analyzer, ok := h.sessionMgr.GetAnalyzer(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	return c.JSON(http.StatusOK, nodesResponse{Nodes: analyzer.SearchByName(term, caseSensitive)})
}

// HandleGetParts returns the flat parts list with full hierarchy paths
func (h *BOMHandlerImpl) HandleGetParts(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	analyzer, ok := h.sessionMgr.GetAnalyzer(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	parts := analyzer.PartsList()
	if parts == nil {
		parts = []models.PartEntry{}
	}

	return c.JSON(http.StatusOK, partsResponse{
		Parts: parts,
		Total: len(parts),
	})
}

// Response types

type treeResponse struct {
	Roots    []*models.TreeNode `json:"roots"`
	Warnings []string           `json:"warnings,omitempty"`
}

type nodesResponse struct {
	Nodes []models.AssemblyNode `json:"nodes"`
}

type partsResponse struct {
	Parts []models.PartEntry `json:"parts"`
	Total int                `json:"total"`
}

func parseNodeID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
