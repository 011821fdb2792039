// xml_config_test.go - Tests for XML configuration management
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	t.Run("creates default config when file missing", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "StepVisualizer.exe.config")

		cfg, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("Failed to load config: %v", err)
		}

		if cfg.Server.Port != 8090 {
			t.Errorf("Expected default port 8090, got %d", cfg.Server.Port)
		}
		if cfg.Processing.PauseSeconds != 2 {
			t.Errorf("Expected default pause 2s, got %d", cfg.Processing.PauseSeconds)
		}
		if cfg.Security.AllowedFileTypes != ".step,.stp" {
			t.Errorf("Expected default file types, got %v", cfg.Security.AllowedFileTypes)
		}

		// Default file is written for the operator to edit.
		data, err := os.ReadFile(configPath)
		if err != nil {
			t.Fatalf("Expected config file to be created: %v", err)
		}
		if !strings.Contains(string(data), "<StepVisualizer>") {
			t.Error("Expected XML config with StepVisualizer root element")
		}
		if !strings.Contains(string(data), "STEP Visualizer Configuration") {
			t.Error("Expected generated header comment")
		}
	})

	t.Run("parses existing config", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "StepVisualizer.exe.config")
		content := `<?xml version="1.0" encoding="UTF-8"?>
<StepVisualizer>
  <Server>
    <Port>9999</Port>
    <BindAddress>127.0.0.1</BindAddress>
  </Server>
  <Processing>
    <PauseBetweenFilesSeconds>5</PauseBetweenFilesSeconds>
  </Processing>
  <Conversion>
    <Enabled>true</Enabled>
    <ConverterPath>/opt/converter</ConverterPath>
    <LinearTolerance>0.2</LinearTolerance>
  </Conversion>
</StepVisualizer>`
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write config: %v", err)
		}

		cfg, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("Failed to load config: %v", err)
		}

		if cfg.Server.Port != 9999 {
			t.Errorf("Expected port 9999, got %d", cfg.Server.Port)
		}
		if cfg.Processing.PauseSeconds != 5 {
			t.Errorf("Expected pause 5s, got %d", cfg.Processing.PauseSeconds)
		}
		if cfg.Conversion.ConverterPath != "/opt/converter" {
			t.Errorf("Expected converter path, got %v", cfg.Conversion.ConverterPath)
		}
		if cfg.Conversion.LinearTolerance != 0.2 {
			t.Errorf("Expected linear tolerance 0.2, got %v", cfg.Conversion.LinearTolerance)
		}
	})

	t.Run("rejects malformed XML", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "bad.config")
		if err := os.WriteFile(configPath, []byte("<StepVisualizer><unclosed>"), 0644); err != nil {
			t.Fatalf("Failed to write config: %v", err)
		}

		if _, err := LoadConfig(configPath); err == nil {
			t.Error("Expected error for malformed XML")
		}
	})

	t.Run("environment overrides", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "StepVisualizer.exe.config")
		// Create the default file first, then reload with overrides.
		if _, err := LoadConfig(configPath); err != nil {
			t.Fatalf("Failed to create default config: %v", err)
		}

		t.Setenv("PORT", "7777")
		t.Setenv("MODEL_DIR", "/srv/model")

		cfg, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("Failed to load config: %v", err)
		}

		if cfg.Server.Port != 7777 {
			t.Errorf("Expected PORT override 7777, got %d", cfg.Server.Port)
		}
		if cfg.Storage.ModelDirectory != "/srv/model" {
			t.Errorf("Expected MODEL_DIR override, got %v", cfg.Storage.ModelDirectory)
		}
	})

	t.Run("resolves relative paths against config dir", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, "StepVisualizer.exe.config")
		if _, err := LoadConfig(configPath); err != nil {
			t.Fatalf("Failed to create default config: %v", err)
		}

		cfg, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("Failed to load config: %v", err)
		}

		for name, path := range map[string]string{
			"data":    cfg.Storage.DataDirectory,
			"uploads": cfg.Storage.UploadsDirectory,
			"model":   cfg.Storage.ModelDirectory,
			"bom":     cfg.Storage.BOMBaseDirectory,
			"glb":     cfg.Storage.GLBBaseDirectory,
		} {
			if !filepath.IsAbs(path) {
				t.Errorf("Expected %s directory to be absolute, got %v", name, path)
			}
			if !strings.HasPrefix(path, dir) {
				t.Errorf("Expected %s directory under config dir, got %v", name, path)
			}
		}
	})
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.resolvePaths(dir)

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("Failed to ensure directories: %v", err)
	}

	for _, path := range []string{
		cfg.Storage.DataDirectory,
		cfg.Storage.UploadsDirectory,
		cfg.Storage.ModelDirectory,
		cfg.Storage.BOMBaseDirectory,
		cfg.Storage.GLBBaseDirectory,
	} {
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			t.Errorf("Expected directory %s to exist", path)
		}
	}
}

func TestGetServerAddr(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.GetServerAddr(); got != "0.0.0.0:8090" {
		t.Errorf("Expected '0.0.0.0:8090', got %v", got)
	}
}
