package models

// SessionStatus represents the status of an extraction session.
type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "pending"
	SessionStatusExtracting SessionStatus = "extracting"
	SessionStatusComplete   SessionStatus = "complete"
	SessionStatusError      SessionStatus = "error"
)

// ExtractSession represents one background BOM extraction over an uploaded file.
type ExtractSession struct {
	ID               string        `json:"id"`
	FileID           string        `json:"fileId"`
	Status           SessionStatus `json:"status"`
	Progress         float64       `json:"progress"` // 0-100
	TotalParts       int           `json:"totalParts,omitempty"`
	TotalAssemblies  int           `json:"totalAssemblies,omitempty"`
	OrphanCount      int           `json:"orphanCount,omitempty"`
	ProcessingTimeMs int64         `json:"processingTimeMs,omitempty"`
	Error            string        `json:"error,omitempty"`
}

// NewExtractSession creates a new ExtractSession in pending status.
func NewExtractSession(id, fileID string) *ExtractSession {
	return &ExtractSession{
		ID:     id,
		FileID: fileID,
		Status: SessionStatusPending,
	}
}
