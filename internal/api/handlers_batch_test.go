// handlers_batch_test.go - Tests for batch pipeline and catalog handlers
package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/step-visualizer/backend/internal/batch"
	"github.com/step-visualizer/backend/internal/catalog"
	"github.com/step-visualizer/backend/internal/convert"
	"github.com/step-visualizer/backend/internal/models"
	"github.com/step-visualizer/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emptyBatchFactory(t *testing.T) func() *batch.Orchestrator {
	t.Helper()
	base := t.TempDir()
	return func() *batch.Orchestrator {
		return batch.NewOrchestrator(
			&testutil.FakeReader{},
			convert.NewSupervisor(&testutil.FakeConverter{}),
			nil,
			batch.Options{
				ModelDir:   filepath.Join(base, "model"),
				BOMBaseDir: filepath.Join(base, "bom"),
				GLBBaseDir: filepath.Join(base, "glb"),
			},
		)
	}
}

func waitForIdle(t *testing.T, h *BatchHandlerImpl) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		running := h.running
		h.mu.Unlock()
		if !running {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Timed out waiting for batch run to finish")
}

func TestHandleStartBatch(t *testing.T) {
	t.Run("starts a run and records the summary", func(t *testing.T) {
		h := NewBatchHandler(emptyBatchFactory(t), nil).(*BatchHandlerImpl)

		c, rec := newJSONContext(http.MethodPost, "/api/batch", "")
		require.NoError(t, h.HandleStartBatch(c))
		assert.Equal(t, http.StatusAccepted, rec.Code)

		waitForIdle(t, h)

		c, rec = newJSONContext(http.MethodGet, "/api/batch/status", "")
		require.NoError(t, h.HandleBatchStatus(c))

		var resp struct {
			Running     bool                 `json:"running"`
			LastSummary *models.BatchSummary `json:"lastSummary"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Running)
		require.NotNil(t, resp.LastSummary)
		assert.Equal(t, 0, resp.LastSummary.TotalFiles)
	})

	t.Run("concurrent run is rejected", func(t *testing.T) {
		h := NewBatchHandler(emptyBatchFactory(t), nil).(*BatchHandlerImpl)
		h.mu.Lock()
		h.running = true
		h.mu.Unlock()

		c, _ := newJSONContext(http.MethodPost, "/api/batch", "")
		requireAPIError(t, h.HandleStartBatch(c), http.StatusConflict)
	})
}

func TestHandleBatchStatus_Initial(t *testing.T) {
	h := NewBatchHandler(emptyBatchFactory(t), nil)

	c, rec := newJSONContext(http.MethodGet, "/api/batch/status", "")
	require.NoError(t, h.HandleBatchStatus(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Running bool `json:"running"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Running)
}

func TestHandleCancelBatch(t *testing.T) {
	t.Run("no active run", func(t *testing.T) {
		h := NewBatchHandler(emptyBatchFactory(t), nil)

		c, _ := newJSONContext(http.MethodPost, "/api/batch/cancel", "")
		requireAPIError(t, h.HandleCancelBatch(c), http.StatusConflict)
	})

	t.Run("cancels an active run", func(t *testing.T) {
		// A run over files the reader cannot load still iterates them, so
		// the run stays observable long enough to cancel.
		base := t.TempDir()
		modelDir := filepath.Join(base, "model")
		require.NoError(t, os.MkdirAll(modelDir, 0755))
		for _, name := range []string{"a.step", "b.step"} {
			require.NoError(t, os.WriteFile(filepath.Join(modelDir, name), []byte("x"), 0644))
		}

		factory := func() *batch.Orchestrator {
			return batch.NewOrchestrator(
				&testutil.FakeReader{},
				convert.NewSupervisor(&testutil.FakeConverter{}),
				nil,
				batch.Options{
					ModelDir:     modelDir,
					BOMBaseDir:   filepath.Join(base, "bom"),
					GLBBaseDir:   filepath.Join(base, "glb"),
					PauseSeconds: 1,
				},
			)
		}
		h := NewBatchHandler(factory, nil).(*BatchHandlerImpl)

		c, _ := newJSONContext(http.MethodPost, "/api/batch", "")
		require.NoError(t, h.HandleStartBatch(c))

		c, rec := newJSONContext(http.MethodPost, "/api/batch/cancel", "")
		require.NoError(t, h.HandleCancelBatch(c))
		assert.Equal(t, http.StatusAccepted, rec.Code)

		waitForIdle(t, h)
	})
}

func TestCatalogHandlers(t *testing.T) {
	t.Run("nil catalog is unavailable", func(t *testing.T) {
		h := NewBatchHandler(emptyBatchFactory(t), nil)

		c, _ := newJSONContext(http.MethodGet, "/api/catalog/documents", "")
		requireAPIError(t, h.HandleListDocuments(c), http.StatusServiceUnavailable)

		c, _ = newJSONContext(http.MethodGet, "/api/catalog/search?q=x", "")
		requireAPIError(t, h.HandleCatalogSearch(c), http.StatusServiceUnavailable)

		c, _ = newJSONContext(http.MethodGet, "/api/catalog/robot/nodes/1/children", "")
		c.SetParamNames("doc", "nodeId")
		c.SetParamValues("robot", "1")
		requireAPIError(t, h.HandleCatalogChildren(c), http.StatusServiceUnavailable)
	})

	t.Run("queries a populated catalog", func(t *testing.T) {
		store, err := catalog.OpenAtPath(filepath.Join(t.TempDir(), "catalog.duckdb"))
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })

		require.NoError(t, store.RecordDocument("robot", testRecord()))
		h := NewBatchHandler(emptyBatchFactory(t), store)

		c, rec := newJSONContext(http.MethodGet, "/api/catalog/documents", "")
		require.NoError(t, h.HandleListDocuments(c))

		var docs []catalog.DocumentInfo
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &docs))
		require.Len(t, docs, 1)
		assert.Equal(t, "robot", docs[0].UniqueName)

		c, rec = newJSONContext(http.MethodGet, "/api/catalog/search?q=motor", "")
		require.NoError(t, h.HandleCatalogSearch(c))

		var nodes []catalog.NodeRow
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &nodes))
		require.Len(t, nodes, 1)
		assert.Equal(t, "Motor", nodes[0].Name)

		c, rec = newJSONContext(http.MethodGet, "/api/catalog/robot/nodes/1/children", "")
		c.SetParamNames("doc", "nodeId")
		c.SetParamValues("robot", "1")
		require.NoError(t, h.HandleCatalogChildren(c))

		nodes = nil
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &nodes))
		assert.Len(t, nodes, 2)

		c, rec = newJSONContext(http.MethodGet, "/api/catalog/robot/nodes/1/descendants", "")
		c.SetParamNames("doc", "nodeId")
		c.SetParamValues("robot", "1")
		require.NoError(t, h.HandleCatalogDescendants(c))

		nodes = nil
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &nodes))
		assert.Len(t, nodes, 4)
	})

	t.Run("missing search term is rejected", func(t *testing.T) {
		store, err := catalog.OpenAtPath(filepath.Join(t.TempDir(), "catalog.duckdb"))
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		h := NewBatchHandler(emptyBatchFactory(t), store)

		c, _ := newJSONContext(http.MethodGet, "/api/catalog/search", "")
		requireAPIError(t, h.HandleCatalogSearch(c), http.StatusBadRequest)
	})

	t.Run("malformed node id is rejected", func(t *testing.T) {
		store, err := catalog.OpenAtPath(filepath.Join(t.TempDir(), "catalog.duckdb"))
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		h := NewBatchHandler(emptyBatchFactory(t), store)

		c, _ := newJSONContext(http.MethodGet, "/api/catalog/robot/nodes/abc/children", "")
		c.SetParamNames("doc", "nodeId")
		c.SetParamValues("robot", "abc")
		requireAPIError(t, h.HandleCatalogChildren(c), http.StatusBadRequest)
	})
}
