package convert

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// ExecConverter runs an external converter binary as
// `<tool> --input <in> --output <out>`. Cancellation kills the subprocess
// through exec.CommandContext.
type ExecConverter struct {
	ToolPath string
	// ExtraArgs are appended after the input/output flags, e.g. mesh
	// tolerance settings.
	ExtraArgs []string
}

var _ Converter = (*ExecConverter)(nil)

// NewExecConverter creates a converter around the binary at toolPath.
func NewExecConverter(toolPath string, extraArgs ...string) *ExecConverter {
	return &ExecConverter{ToolPath: toolPath, ExtraArgs: extraArgs}
}

// Available reports whether the converter binary exists on disk.
func (e *ExecConverter) Available() bool {
	if e.ToolPath == "" {
		return false
	}
	info, err := os.Stat(e.ToolPath)
	return err == nil && !info.IsDir()
}

// Convert invokes the converter binary, honoring ctx cancellation.
func (e *ExecConverter) Convert(ctx context.Context, inputPath, outputPath string) error {
	args := []string{"--input", inputPath, "--output", outputPath}
	args = append(args, e.ExtraArgs...)

	cmd := exec.CommandContext(ctx, e.ToolPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("converter exited with error: %v (%s)", err, string(output))
	}
	return nil
}
