package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/step-visualizer/backend/internal/api"
	"github.com/step-visualizer/backend/internal/batch"
	"github.com/step-visualizer/backend/internal/catalog"
	"github.com/step-visualizer/backend/internal/config"
	"github.com/step-visualizer/backend/internal/convert"
	"github.com/step-visualizer/backend/internal/kernel"
	"github.com/step-visualizer/backend/internal/session"
	"github.com/step-visualizer/backend/internal/storage"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Get the executable's directory for config resolution
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

	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	// Initialize storage
	fileStore, err := storage.NewLocalStore(cfg.GetUploadDir())
	if err != nil {
		fmt.Printf("Failed to initialize storage: %v\n", err)
		os.Exit(1)
	}

	// Initialize the kernel bridge reader
	reader := kernel.NewToolReader(kernelToolPath(exeDir))
	if !reader.Available() {
		fmt.Printf("Warning: kernel bridge tool not found at %s; extraction will fail until installed\n", reader.ToolPath)
	}

	// Initialize session manager with background cleanup
	sessionMgr := session.NewManager(reader)
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Processing.CleanupIntervalMinutes) * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			sessionMgr.CleanupOldSessions(time.Duration(cfg.Processing.SessionTimeoutMinutes) * time.Minute)
		}
	}()

	// Open the BOM catalog
	cat, err := catalog.Open(cfg.GetDataDir())
	if err != nil {
		fmt.Printf("Warning: failed to open BOM catalog: %v\n", err)
		cat = nil
	} else {
		defer cat.Close()
	}

	// Converter + batch orchestrator factory
	converter := convert.NewExecConverter(cfg.Conversion.ConverterPath,
		"--linear-tolerance", fmt.Sprintf("%g", cfg.Conversion.LinearTolerance),
		"--angular-tolerance", fmt.Sprintf("%g", cfg.Conversion.AngularTolerance))
	supervisor := convert.NewSupervisor(converter)

	newOrchestrator := func() *batch.Orchestrator {
		var recorder batch.Recorder
		if cat != nil {
			recorder = cat
		}
		return batch.NewOrchestrator(reader, supervisor, recorder, batch.Options{
			ModelDir:     cfg.Storage.ModelDirectory,
			BOMBaseDir:   cfg.Storage.BOMBaseDirectory,
			GLBBaseDir:   cfg.Storage.GLBBaseDirectory,
			PauseSeconds: cfg.Processing.PauseSeconds,
		})
	}

	// Initialize API handlers
	handlers := api.NewHandlers(&api.Dependencies{
		Store:           fileStore,
		SessionMgr:      sessionMgr,
		Catalog:         cat,
		NewOrchestrator: newOrchestrator,
		Version:         Version,
	})

	e := echo.New()
	e.HideBanner = true
	api.SetupMiddleware(e)

	// Configure middleware
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/status") ||
				strings.HasSuffix(path, "/progress") ||
				path == "/health"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize:         1024 * 4,
		DisablePrintStack: false,
		LogLevel:          0,
	}))

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.Contains(path, "/progress") ||
				strings.Contains(path, "/upload") ||
				strings.Contains(path, "/ws/") ||
				c.Request().Header.Get("Accept") == "text/event-stream"
		},
		ErrorMessage: "Request timeout - query took too long",
	}))

	// Body limit middleware
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// CORS configuration
	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}

	// Routes
	api.RegisterRoutes(e, handlers)
	api.RegisterWebSocketRoutes(e, handlers)

	// Configure server with settings from XML config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Print startup banner
	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           STEP Visualizer Server                          ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Printf("║  Model Dir: %-46s║\n", cfg.Storage.ModelDirectory)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	e.Logger.Fatal(e.StartServer(s))
}

// kernelToolPath resolves the bridge tool next to the executable, with a
// KERNEL_TOOL env override.
func kernelToolPath(exeDir string) string {
	if p := os.Getenv("KERNEL_TOOL"); p != "" {
		return p
	}
	return filepath.Join(exeDir, "step-kernel-bridge")
}
