package models

// ProcessingResult is the combined outcome of the BOM and conversion stages
// for one input file. The two error fields are independent: either stage may
// fail without the other.
type ProcessingResult struct {
	Filename   string  `json:"filename"`
	UniqueName string  `json:"uniqueName"`
	Timestamp  string  `json:"timestamp"`
	FileSizeMB float64 `json:"fileSizeMb"`

	TotalParts      int    `json:"totalParts"`
	TotalAssemblies int    `json:"totalAssemblies"`
	BOMOutputFile   string `json:"bomOutputFile,omitempty"`
	BOMError        string `json:"bomError,omitempty"`

	GLBFile           string `json:"glbFile,omitempty"`
	GLBFilePath       string `json:"glbFilePath,omitempty"`
	GLBFileSize       int64  `json:"glbFileSize,omitempty"`
	GLBFormat         string `json:"glbFormat,omitempty"`
	ThreeJSCompatible bool   `json:"threeJsCompatible"`
	ConversionError   string `json:"conversionError,omitempty"`
	TimeoutOccurred   bool   `json:"timeoutOccurred"`

	ProcessingDuration float64 `json:"processingDurationSec"`
}

// Failed reports whether the file counts as failed: both stages must have
// failed, a single success is partial success.
func (r *ProcessingResult) Failed() bool {
	return r.BOMError != "" && r.ConversionError != ""
}

// BatchSummary aggregates one sequential batch run.
type BatchSummary struct {
	TotalFiles     int                 `json:"totalFiles"`
	ProcessedFiles int                 `json:"processedFiles"`
	SuccessfulBOM  int                 `json:"successfulBom"`
	SuccessfulGLB  int                 `json:"successfulGlb"`
	FailedFiles    []string            `json:"failedFiles"`
	Results        []*ProcessingResult `json:"results"`
	TotalDuration  float64             `json:"totalDurationSec"`
	Cancelled      bool                `json:"cancelled"`
}

// NewBatchSummary returns an empty summary with initialized slices.
func NewBatchSummary() *BatchSummary {
	return &BatchSummary{
		FailedFiles: make([]string, 0),
		Results:     make([]*ProcessingResult, 0),
	}
}
