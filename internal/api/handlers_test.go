// handlers_test.go - Shared test helpers for API handlers
package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/step-visualizer/backend/internal/bom"
	"github.com/step-visualizer/backend/internal/models"
	"github.com/stretchr/testify/require"
)

// mockSessionManager implements SessionManager over in-memory maps.
type mockSessionManager struct {
	sessions  map[string]*models.ExtractSession
	records   map[string]*models.BOMDocument
	analyzers map[string]*bom.Analyzer
	warnings  map[string][]string

	startErr error
	started  []string // filenames passed to StartSession
	touched  []string
}

func newMockSessionManager() *mockSessionManager {
	return &mockSessionManager{
		sessions:  make(map[string]*models.ExtractSession),
		records:   make(map[string]*models.BOMDocument),
		analyzers: make(map[string]*bom.Analyzer),
		warnings:  make(map[string][]string),
	}
}

func (m *mockSessionManager) StartSession(fileID, filePath, filename string) (*models.ExtractSession, error) {
	if m.startErr != nil {
		return nil, m.startErr
	}
	m.started = append(m.started, filename)
	session := models.NewExtractSession("session-1", fileID)
	session.Status = models.SessionStatusExtracting
	m.sessions[session.ID] = session
	return session, nil
}

func (m *mockSessionManager) GetSession(id string) (*models.ExtractSession, bool) {
	s, ok := m.sessions[id]
	return s, ok
}

func (m *mockSessionManager) TouchSession(id string) bool {
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	m.touched = append(m.touched, id)
	return true
}

func (m *mockSessionManager) GetRecord(id string) (*models.BOMDocument, bool) {
	r, ok := m.records[id]
	return r, ok
}

func (m *mockSessionManager) GetAnalyzer(id string) (*bom.Analyzer, bool) {
	a, ok := m.analyzers[id]
	return a, ok
}

func (m *mockSessionManager) GetWarnings(id string) ([]string, bool) {
	if _, ok := m.sessions[id]; !ok {
		return nil, false
	}
	return m.warnings[id], true
}

// addCompletedSession registers a finished session with its record and
// analyzer under the given id.
func (m *mockSessionManager) addCompletedSession(id string, record *models.BOMDocument) {
	session := models.NewExtractSession(id, "file-1")
	session.Status = models.SessionStatusComplete
	session.Progress = 100
	session.TotalParts = record.TotalParts
	session.TotalAssemblies = record.TotalAssemblies
	m.sessions[id] = session
	m.records[id] = record
	m.analyzers[id] = bom.NewAnalyzerForDocument(record)
}

func uintPtr(v uint) *uint { return &v }

// testRecord is a small completed BOM record:
//
//	1 Robot (assembly, root)
//	├── 2 Arm (assembly)
//	│   ├── 3 Motor (part)
//	│   └── 4 Gripper (part)
//	└── 5 Base (part)
func testRecord() *models.BOMDocument {
	gray := models.DefaultColor()
	return &models.BOMDocument{
		Filename:        "robot.step",
		FullPath:        "/data/robot.step",
		Timestamp:       "2026-02-01T12:00:00Z",
		TotalParts:      3,
		TotalAssemblies: 2,
		AssemblyTree: models.AssemblyTree{
			{Name: "Robot", ID: 1, Kind: models.NodeKindAssembly, IsAssembly: true, ShapeKind: "Assembly", IsRoot: true},
			{Name: "Arm", ID: 2, ParentID: uintPtr(1), Kind: models.NodeKindAssembly, IsAssembly: true, ShapeKind: "Assembly"},
			{Name: "Motor", ID: 3, ParentID: uintPtr(2), Kind: models.NodeKindPart, ShapeKind: "Solid", Color: &gray},
			{Name: "Gripper", ID: 4, ParentID: uintPtr(2), Kind: models.NodeKindPart, ShapeKind: "Solid", Color: &gray},
			{Name: "Base", ID: 5, ParentID: uintPtr(1), Kind: models.NodeKindPart, ShapeKind: "Solid", Color: &gray},
		},
		BOMType:     models.BOMType,
		GeneratedBy: models.BOMGenerator,
		Version:     models.BOMVersion,
	}
}

// newJSONContext builds an echo context for a JSON request.
func newJSONContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// requireAPIError asserts that err is an APIError with the given status.
func requireAPIError(t *testing.T, err error, status int) *APIError {
	t.Helper()
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok, "expected *APIError, got %T: %v", err, err)
	require.Equal(t, status, apiErr.Status)
	return apiErr
}
