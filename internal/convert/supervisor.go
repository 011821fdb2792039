// Package convert supervises bounded-time invocations of an external
// CAD-to-mesh converter.
package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Converter is the external mesh-conversion collaborator. Convert is
// expected to honor ctx cancellation so a timed-out conversion also releases
// the underlying work (subprocess kill or cooperative stop).
type Converter interface {
	Available() bool
	Convert(ctx context.Context, inputPath, outputPath string) error
}

// Result reports one conversion attempt. Exactly one of Success,
// Unavailable, TimedOut or Error describes the outcome; the supervisor
// never propagates a failure to the caller.
type Result struct {
	Success           bool   `json:"success"`
	ArtifactSize      int64  `json:"artifactSize"`
	Format            string `json:"format"`
	ThreeJSCompatible bool   `json:"threeJsCompatible"`
	Error             string `json:"error,omitempty"`
	Unavailable       bool   `json:"unavailable"`
	TimedOut          bool   `json:"timedOut"`
}

const megabyte = 1024 * 1024

// TimeoutForSize selects the conversion budget by input size tier.
// Bounds are inclusive: a 50MB input gets the 240s tier.
func TimeoutForSize(sizeBytes int64) time.Duration {
	sizeMB := float64(sizeBytes) / megabyte
	switch {
	case sizeMB <= 50:
		return 240 * time.Second
	case sizeMB <= 100:
		return 360 * time.Second
	case sizeMB <= 200:
		return 480 * time.Second
	default:
		return 600 * time.Second
	}
}

// Supervisor runs conversions with size-tiered timeouts.
type Supervisor struct {
	converter Converter
	// timeoutFor defaults to TimeoutForSize; tests substitute shorter budgets.
	timeoutFor func(int64) time.Duration
}

// NewSupervisor creates a supervisor around a converter implementation.
func NewSupervisor(converter Converter) *Supervisor {
	return &Supervisor{converter: converter}
}

// Convert runs one conversion of inputPath into outputPath, waiting at most
// the budget selected for sizeBytes. The converter runs on its own
// goroutine; on timeout the shared context is cancelled so the worker can
// stop, and the supervisor stops waiting either way.
func (s *Supervisor) Convert(inputPath, outputPath string, sizeBytes int64) Result {
	if s.converter == nil || !s.converter.Available() {
		return Result{
			Unavailable: true,
			Error:       "mesh converter not available",
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return Result{Error: fmt.Sprintf("creating output directory: %v", err)}
	}

	timeoutFor := s.timeoutFor
	if timeoutFor == nil {
		timeoutFor = TimeoutForSize
	}
	timeout := timeoutFor(sizeBytes)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("converter panic: %v", r)
			}
		}()
		done <- s.converter.Convert(ctx, inputPath, outputPath)
	}()

	select {
	case err := <-done:
		if err != nil {
			return Result{Error: err.Error()}
		}
	case <-ctx.Done():
		return Result{
			TimedOut: true,
			Error:    fmt.Sprintf("conversion timed out after %v", timeout),
		}
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return Result{Error: "converted artifact was not created"}
	}

	return Result{
		Success:           true,
		ArtifactSize:      info.Size(),
		Format:            "GLB",
		ThreeJSCompatible: true,
	}
}
