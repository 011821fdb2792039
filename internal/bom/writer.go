package bom

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/step-visualizer/backend/internal/models"
)

// SaveBOM writes a BOM record as indented JSON into outputDir/filename,
// creating the directory if needed. It returns the full output path.
func SaveBOM(record *models.BOMDocument, outputDir, filename string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	if record.BOMType == "" {
		record.BOMType = models.BOMType
	}
	if record.GeneratedBy == "" {
		record.GeneratedBy = models.BOMGenerator
	}
	if record.Version == "" {
		record.Version = models.BOMVersion
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding BOM record: %w", err)
	}

	outputFile := filepath.Join(outputDir, filename)
	if err := os.WriteFile(outputFile, data, 0644); err != nil {
		return "", fmt.Errorf("writing BOM record: %w", err)
	}

	return outputFile, nil
}

// LoadBOM reads a previously saved BOM record.
func LoadBOM(path string) (*models.BOMDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading BOM record: %w", err)
	}

	var record models.BOMDocument
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decoding BOM record: %w", err)
	}

	return &record, nil
}
