// writer_test.go - Tests for BOM record persistence
package bom

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/step-visualizer/backend/internal/models"
)

func TestSaveBOM(t *testing.T) {
	t.Run("writes and round-trips a record", func(t *testing.T) {
		dir := t.TempDir()

		record := &models.BOMDocument{
			Filename:        "part.step",
			FullPath:        "/data/part.step",
			Timestamp:       "2026-01-15T10:00:00Z",
			TotalParts:      2,
			TotalAssemblies: 1,
			AssemblyTree:    fixtureTree(),
			BOMType:         models.BOMType,
			GeneratedBy:     models.BOMGenerator,
			Version:         models.BOMVersion,
		}

		path, err := SaveBOM(record, dir, "part_bom.json")
		if err != nil {
			t.Fatalf("Failed to save record: %v", err)
		}
		if path != filepath.Join(dir, "part_bom.json") {
			t.Errorf("Unexpected output path %v", path)
		}

		loaded, err := LoadBOM(path)
		if err != nil {
			t.Fatalf("Failed to load record: %v", err)
		}
		if loaded.Filename != record.Filename {
			t.Errorf("Expected filename %v, got %v", record.Filename, loaded.Filename)
		}
		if len(loaded.AssemblyTree) != len(record.AssemblyTree) {
			t.Fatalf("Expected %d nodes, got %d", len(record.AssemblyTree), len(loaded.AssemblyTree))
		}
		// Emission order must survive serialization.
		for i, node := range loaded.AssemblyTree {
			if node.ID != record.AssemblyTree[i].ID {
				t.Errorf("Expected node %d at index %d, got %d", record.AssemblyTree[i].ID, i, node.ID)
			}
		}
		if loaded.AssemblyTree[2].ParentID == nil || *loaded.AssemblyTree[2].ParentID != 2 {
			t.Error("Expected parent links to survive serialization")
		}
	})

	t.Run("creates missing output directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "bom")

		_, err := SaveBOM(&models.BOMDocument{Filename: "a.step"}, dir, "a_bom.json")
		if err != nil {
			t.Fatalf("Failed to save into missing directory: %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "a_bom.json")); err != nil {
			t.Errorf("Expected output file to exist: %v", err)
		}
	})

	t.Run("stamps missing metadata", func(t *testing.T) {
		dir := t.TempDir()

		path, err := SaveBOM(&models.BOMDocument{Filename: "b.step"}, dir, "b_bom.json")
		if err != nil {
			t.Fatalf("Failed to save record: %v", err)
		}

		loaded, err := LoadBOM(path)
		if err != nil {
			t.Fatalf("Failed to load record: %v", err)
		}
		if loaded.BOMType != models.BOMType {
			t.Errorf("Expected stamped bom_type, got %v", loaded.BOMType)
		}
		if loaded.GeneratedBy != models.BOMGenerator {
			t.Errorf("Expected stamped generated_by, got %v", loaded.GeneratedBy)
		}
		if loaded.Version != models.BOMVersion {
			t.Errorf("Expected stamped version, got %v", loaded.Version)
		}
	})
}

func TestLoadBOM(t *testing.T) {
	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := LoadBOM(filepath.Join(t.TempDir(), "nope.json"))
		if err == nil {
			t.Error("Expected error for missing file")
		}
	})

	t.Run("returns error for malformed JSON", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
			t.Fatalf("Failed to write fixture: %v", err)
		}

		_, err := LoadBOM(path)
		if err == nil {
			t.Error("Expected error for malformed JSON")
		}
	})
}
