// Package batch drives unattended sequential processing of CAD input files:
// per-file BOM extraction plus supervised mesh conversion, with per-file and
// per-stage failure isolation.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/step-visualizer/backend/internal/bom"
	"github.com/step-visualizer/backend/internal/convert"
	"github.com/step-visualizer/backend/internal/kernel"
	"github.com/step-visualizer/backend/internal/models"
)

// Recorder receives successfully extracted BOM records, typically for
// catalog indexing. A nil Recorder disables recording.
type Recorder interface {
	RecordDocument(uniqueName string, record *models.BOMDocument) error
}

// Options configures one orchestrator.
type Options struct {
	ModelDir     string
	BOMBaseDir   string
	GLBBaseDir   string
	PauseSeconds int // pause between files, 0 disables
}

// Orchestrator processes discovered input files strictly sequentially.
// Sequential scheduling is deliberate: document loads can be large and the
// kernel is not proven safe to hold concurrently, so one file at a time caps
// peak memory.
type Orchestrator struct {
	reader     kernel.DocumentReader
	supervisor *convert.Supervisor
	recorder   Recorder
	namer      *Namer
	opts       Options
}

// NewOrchestrator wires an orchestrator from its collaborators.
func NewOrchestrator(reader kernel.DocumentReader, supervisor *convert.Supervisor, recorder Recorder, opts Options) *Orchestrator {
	return &Orchestrator{
		reader:     reader,
		supervisor: supervisor,
		recorder:   recorder,
		namer:      NewNamer(),
		opts:       opts,
	}
}

// ProcessAll discovers input files and processes each in order, returning
// the aggregated summary. Cancellation via ctx is checked only at file
// boundaries, never mid-file; a cancelled run returns a partial summary
// covering the files completed so far. One bad file never aborts the batch.
func (o *Orchestrator) ProcessAll(ctx context.Context) *models.BatchSummary {
	batchStart := time.Now()
	summary := models.NewBatchSummary()

	files, err := ListInputFiles(o.opts.ModelDir)
	if err != nil {
		fmt.Printf("[Batch] failed to list input files: %v\n", err)
		return summary
	}
	if len(files) == 0 {
		fmt.Printf("[Batch] no STEP files found in %s\n", o.opts.ModelDir)
		return summary
	}

	summary.TotalFiles = len(files)
	fmt.Printf("[Batch] found %d files to process:\n", len(files))
	for i, path := range files {
		sizeMB := float64(fileSize(path)) / megabyte
		fmt.Printf("  %2d. %s (%.1f MB)\n", i+1, filepath.Base(path), sizeMB)
	}

	for i, path := range files {
		if ctx.Err() != nil {
			fmt.Printf("[Batch] cancelled at file %d/%d\n", i+1, len(files))
			summary.Cancelled = true
			break
		}

		result := o.processGuarded(path, i+1, len(files))
		summary.Results = append(summary.Results, result)
		summary.ProcessedFiles++

		if result.BOMError == "" {
			summary.SuccessfulBOM++
		}
		if result.ConversionError == "" {
			summary.SuccessfulGLB++
		}
		if result.Failed() {
			summary.FailedFiles = append(summary.FailedFiles, result.Filename)
		}

		// Between files, give the OS a chance to reclaim memory from the
		// previous document before loading the next one.
		if i < len(files)-1 && o.opts.PauseSeconds > 0 {
			fmt.Printf("[Batch] pausing %ds before next file...\n", o.opts.PauseSeconds)
			time.Sleep(time.Duration(o.opts.PauseSeconds) * time.Second)
			debug.FreeOSMemory()
		}
	}

	summary.TotalDuration = time.Since(batchStart).Seconds()
	o.printSummary(summary)
	return summary
}

// processGuarded shields the batch loop from any panic escaping a single
// file's processing, converting it into a failed-file result.
func (o *Orchestrator) processGuarded(path string, index, total int) (result *models.ProcessingResult) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("[Batch %d/%d] PANIC recovered: %v\n", index, total, r)
			if result == nil {
				result = &models.ProcessingResult{Filename: filepath.Base(path)}
			}
			if result.BOMError == "" {
				result.BOMError = fmt.Sprintf("processing panicked: %v", r)
			}
			if result.ConversionError == "" {
				result.ConversionError = fmt.Sprintf("processing panicked: %v", r)
			}
		}
	}()

	return o.ProcessFile(path, index, total)
}

// ProcessFile runs both stages for one input file. The BOM stage runs
// first; the conversion stage runs regardless of the BOM outcome. Errors
// land in the per-stage result fields and are never raised.
func (o *Orchestrator) ProcessFile(path string, index, total int) *models.ProcessingResult {
	start := time.Now()

	size := fileSize(path)
	uniqueName := o.namer.UniqueName(path)

	result := &models.ProcessingResult{
		Filename:   filepath.Base(path),
		UniqueName: uniqueName,
		Timestamp:  start.Format(time.RFC3339),
		FileSizeMB: float64(size) / megabyte,
	}

	fmt.Printf("\n[Batch %d/%d] %s\n", index, total, result.Filename)
	fmt.Printf("[Batch %d/%d] size: %.2f MB, identity: %s\n", index, total, result.FileSizeMB, uniqueName)

	o.runBOMStage(path, uniqueName, result)
	o.runConversionStage(path, uniqueName, size, result)

	result.ProcessingDuration = time.Since(start).Seconds()

	stageOK := 0
	if result.BOMError == "" {
		stageOK++
	}
	if result.ConversionError == "" {
		stageOK++
	}
	fmt.Printf("[Batch %d/%d] completed in %.1fs (%d/2 stages ok)\n", index, total, result.ProcessingDuration, stageOK)

	return result
}

func (o *Orchestrator) runBOMStage(path, uniqueName string, result *models.ProcessingResult) {
	if _, err := os.Stat(path); err != nil {
		result.BOMError = fmt.Sprintf("input file not found: %s", path)
		return
	}

	doc, err := o.reader.ReadDocument(path)
	if err != nil {
		result.BOMError = fmt.Sprintf("BOM extraction failed: %v", err)
		return
	}

	record := bom.NewTreeBuilder(doc, path).Build()

	outputDir := filepath.Join(o.opts.BOMBaseDir, uniqueName)
	outputFile, err := bom.SaveBOM(record, outputDir, uniqueName+"_bom.json")
	if err != nil {
		result.BOMError = fmt.Sprintf("saving BOM record: %v", err)
		return
	}

	result.TotalParts = record.TotalParts
	result.TotalAssemblies = record.TotalAssemblies
	result.BOMOutputFile = outputFile

	fmt.Printf("[Batch] BOM: %d parts, %d assemblies -> %s\n", record.TotalParts, record.TotalAssemblies, filepath.Base(outputFile))

	if o.recorder != nil {
		if err := o.recorder.RecordDocument(uniqueName, record); err != nil {
			// Catalog indexing is best-effort; the BOM stage itself succeeded.
			fmt.Printf("[Batch] warning: catalog insert failed for %s: %v\n", uniqueName, err)
		}
	}
}

func (o *Orchestrator) runConversionStage(path, uniqueName string, size int64, result *models.ProcessingResult) {
	glbName := uniqueName + "_model.glb"
	glbPath := filepath.Join(o.opts.GLBBaseDir, uniqueName, glbName)

	conv := o.supervisor.Convert(path, glbPath, size)

	switch {
	case conv.Unavailable:
		result.ConversionError = conv.Error
		fmt.Printf("[Batch] GLB unavailable: %s\n", conv.Error)
	case conv.TimedOut:
		result.ConversionError = conv.Error
		result.TimeoutOccurred = true
		fmt.Printf("[Batch] GLB timed out: %s\n", conv.Error)
	case conv.Error != "":
		result.ConversionError = conv.Error
		fmt.Printf("[Batch] GLB failed: %s\n", conv.Error)
	default:
		result.GLBFile = glbName
		result.GLBFilePath = glbPath
		result.GLBFileSize = conv.ArtifactSize
		result.GLBFormat = conv.Format
		result.ThreeJSCompatible = conv.ThreeJSCompatible
		fmt.Printf("[Batch] GLB: %.2f MB -> %s\n", float64(conv.ArtifactSize)/megabyte, glbName)
	}
}

func (o *Orchestrator) printSummary(summary *models.BatchSummary) {
	fmt.Printf("\n[Batch] ============================================\n")
	fmt.Printf("[Batch] sequential processing complete\n")
	fmt.Printf("[Batch] total files:      %d\n", summary.TotalFiles)
	fmt.Printf("[Batch] processed files:  %d\n", summary.ProcessedFiles)
	fmt.Printf("[Batch] successful BOM:   %d\n", summary.SuccessfulBOM)
	fmt.Printf("[Batch] successful GLB:   %d\n", summary.SuccessfulGLB)
	fmt.Printf("[Batch] failed files:     %d\n", len(summary.FailedFiles))
	fmt.Printf("[Batch] total duration:   %.1f min\n", summary.TotalDuration/60)

	for _, name := range summary.FailedFiles {
		fmt.Printf("[Batch]   failed: %s\n", name)
	}
}

const megabyte = 1024 * 1024

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
