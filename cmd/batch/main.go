package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/step-visualizer/backend/internal/batch"
	"github.com/step-visualizer/backend/internal/catalog"
	"github.com/step-visualizer/backend/internal/config"
	"github.com/step-visualizer/backend/internal/convert"
	"github.com/step-visualizer/backend/internal/kernel"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	exeDir := filepath.Dir(exePath)

	// Load XML configuration
	configPath := filepath.Join(exeDir, "StepVisualizer.exe.config")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	// Kernel bridge reader
	toolPath := os.Getenv("KERNEL_TOOL")
	if toolPath == "" {
		toolPath = filepath.Join(exeDir, "step-kernel-bridge")
	}
	reader := kernel.NewToolReader(toolPath)
	if !reader.Available() {
		fmt.Printf("Warning: kernel bridge tool not found at %s; BOM extraction will fail\n", toolPath)
	}

	// Converter
	converter := convert.NewExecConverter(cfg.Conversion.ConverterPath,
		"--linear-tolerance", fmt.Sprintf("%g", cfg.Conversion.LinearTolerance),
		"--angular-tolerance", fmt.Sprintf("%g", cfg.Conversion.AngularTolerance))
	supervisor := convert.NewSupervisor(converter)

	// BOM catalog (best-effort; batch runs proceed without it)
	var recorder batch.Recorder
	cat, err := catalog.Open(cfg.GetDataDir())
	if err != nil {
		fmt.Printf("Warning: failed to open BOM catalog: %v\n", err)
	} else {
		defer cat.Close()
		recorder = cat
	}

	orch := batch.NewOrchestrator(reader, supervisor, recorder, batch.Options{
		ModelDir:     cfg.Storage.ModelDirectory,
		BOMBaseDir:   cfg.Storage.BOMBaseDirectory,
		GLBBaseDir:   cfg.Storage.GLBBaseDirectory,
		PauseSeconds: cfg.Processing.PauseSeconds,
	})

	fmt.Printf("STEP Visualizer batch pipeline %s (built %s)\n", Version, BuildTime)
	fmt.Printf("Model dir: %s\n", cfg.Storage.ModelDirectory)

	// SIGINT/SIGTERM stop the run at the next file boundary
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary := orch.ProcessAll(ctx)

	if summary.Cancelled {
		fmt.Println("Batch run cancelled; partial summary above")
	}

	// Non-zero exit when nothing was produced
	if summary.TotalFiles > 0 && summary.SuccessfulBOM == 0 && summary.SuccessfulGLB == 0 {
		os.Exit(1)
	}
}
