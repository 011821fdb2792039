package session

import (
	"fmt"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/step-visualizer/backend/internal/bom"
	"github.com/step-visualizer/backend/internal/kernel"
	"github.com/step-visualizer/backend/internal/models"
)

// MaxSessions limits concurrent sessions to prevent memory exhaustion
const MaxSessions = 10

// SessionMaxAge is how long to keep completed sessions before cleanup
const SessionMaxAge = 30 * time.Minute

// SessionKeepAliveWindow is how long to keep sessions that are actively being used
const SessionKeepAliveWindow = 5 * time.Minute

// Manager handles active BOM extraction sessions.
type Manager struct {
	sessions map[string]*SessionState
	mu       sync.RWMutex
	reader   kernel.DocumentReader
}

// SessionState holds the session metadata and the extracted assembly data.
type SessionState struct {
	Session      *models.ExtractSession
	Record       *models.BOMDocument
	Analyzer     *bom.Analyzer
	Warnings     []string
	LastAccessed time.Time
}

// NewManager creates a new session manager backed by the given document reader.
func NewManager(reader kernel.DocumentReader) *Manager {
	return &Manager{
		sessions: make(map[string]*SessionState),
		reader:   reader,
	}
}

// StartSession begins BOM extraction for an uploaded file.
func (m *Manager) StartSession(fileID, filePath, filename string) (*models.ExtractSession, error) {
	// Clean up old sessions if at limit
	m.cleanupOldSessionsIfNeeded()

	sessionID := uuid.New().String()

	session := models.NewExtractSession(sessionID, fileID)
	session.Status = models.SessionStatusExtracting

	state := &SessionState{
		Session:      session,
		LastAccessed: time.Now(),
	}

	m.mu.Lock()
	m.sessions[sessionID] = state
	m.mu.Unlock()

	// Run extraction in a background goroutine
	go m.runExtract(sessionID, filePath, filename)

	return session, nil
}

func (m *Manager) runExtract(sessionID, filePath, filename string) {
	// Recover from panics to prevent backend crash
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("[Extract %s] PANIC recovered: %v\n", sessionID[:8], r)
			m.updateSessionError(sessionID, fmt.Sprintf("extraction panicked: %v", r))
		}
		// Return freed tree memory to the OS after each extraction
		debug.FreeOSMemory()
	}()

	start := time.Now()
	fmt.Printf("[Extract %s] Starting extraction of %s\n", sessionID[:8], filename)

	if info, err := os.Stat(filePath); err != nil {
		fmt.Printf("[Extract %s] ERROR stat file: %v\n", sessionID[:8], err)
		m.updateSessionError(sessionID, fmt.Sprintf("file not readable: %v", err))
		return
	} else {
		fmt.Printf("[Extract %s] File info: size=%d bytes\n", sessionID[:8], info.Size())
	}

	m.setProgress(sessionID, 10)

	doc, err := m.reader.ReadDocument(filePath)
	if err != nil {
		fmt.Printf("[Extract %s] ERROR: failed to read document: %v\n", sessionID[:8], err)
		m.updateSessionError(sessionID, fmt.Sprintf("failed to read document: %v", err))
		return
	}

	m.setProgress(sessionID, 40)
	fmt.Printf("[Extract %s] Document read, building assembly tree...\n", sessionID[:8])

	record := bom.NewTreeBuilder(doc, filename).Build()

	m.setProgress(sessionID, 80)

	analyzer := bom.NewAnalyzerForDocument(record)
	_, warnings := analyzer.HierarchyTree()
	for _, w := range warnings {
		fmt.Printf("[Extract %s] WARNING: %s\n", sessionID[:8], w)
	}

	elapsed := time.Since(start).Milliseconds()
	fmt.Printf("[Extract %s] Extraction complete: %d parts, %d assemblies in %dms\n",
		sessionID[:8], record.TotalParts, record.TotalAssemblies, elapsed)

	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[sessionID]
	if !ok {
		return
	}

	state.Record = record
	state.Analyzer = analyzer
	state.Warnings = warnings
	state.Session.Status = models.SessionStatusComplete
	state.Session.Progress = 100
	state.Session.TotalParts = record.TotalParts
	state.Session.TotalAssemblies = record.TotalAssemblies
	state.Session.OrphanCount = len(warnings)
	state.Session.ProcessingTimeMs = elapsed
}

func (m *Manager) setProgress(sessionID string, progress float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state, ok := m.sessions[sessionID]; ok {
		state.Session.Progress = progress
	}
}

func (m *Manager) updateSessionError(sessionID, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[sessionID]
	if !ok {
		return
	}

	state.Session.Status = models.SessionStatusError
	state.Session.Error = reason
}

// cleanupOldSessionsIfNeeded removes oldest completed sessions if at capacity
func (m *Manager) cleanupOldSessionsIfNeeded() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) < MaxSessions {
		return
	}

	var toDelete []string
	for id, state := range m.sessions {
		if state.Session.Status == models.SessionStatusComplete ||
			state.Session.Status == models.SessionStatusError {
			toDelete = append(toDelete, id)
		}
	}

	toFree := len(m.sessions) - MaxSessions + 1
	deleted := 0
	for _, id := range toDelete {
		if deleted >= toFree {
			break
		}
		delete(m.sessions, id)
		deleted++
		fmt.Printf("[Manager] Cleaned up old session %s to free memory\n", id[:8])
	}
}

// CleanupOldSessions removes sessions older than maxAge,
// but keeps sessions that have been accessed within SessionKeepAliveWindow.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	keepAliveCutoff := time.Now().Add(-SessionKeepAliveWindow)

	for id, state := range m.sessions {
		// Only clean up completed/error sessions
		if state.Session.Status != models.SessionStatusComplete &&
			state.Session.Status != models.SessionStatusError {
			continue
		}

		if state.LastAccessed.After(keepAliveCutoff) {
			continue
		}

		sessionTime := state.LastAccessed
		if sessionTime.IsZero() {
			sessionTime = time.Now().Add(-maxAge - time.Hour)
		}

		if sessionTime.Before(cutoff) {
			delete(m.sessions, id)
			fmt.Printf("[Manager] Cleaned up aged session %s (last accessed: %s ago)\n",
				id[:8], time.Since(state.LastAccessed).Round(time.Second))
		}
	}
}

// GetSession returns a session by ID.
func (m *Manager) GetSession(id string) (*models.ExtractSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return state.Session, true
}

// TouchSession updates the LastAccessed timestamp for a session.
// This should be called whenever a session is actively being used
// to prevent it from being cleaned up.
func (m *Manager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	state.LastAccessed = time.Now()
	return true
}

// GetRecord returns the extracted BOM record for a completed session.
func (m *Manager) GetRecord(id string) (*models.BOMDocument, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok || state.Record == nil {
		return nil, false
	}
	return state.Record, true
}

// GetAnalyzer returns the hierarchy analyzer for a completed session.
func (m *Manager) GetAnalyzer(id string) (*bom.Analyzer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok || state.Analyzer == nil {
		return nil, false
	}
	return state.Analyzer, true
}

// GetWarnings returns the hierarchy warnings recorded during extraction.
func (m *Manager) GetWarnings(id string) ([]string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return state.Warnings, true
}
