// manager_test.go - Tests for extraction session management
package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/step-visualizer/backend/internal/models"
	"github.com/step-visualizer/backend/internal/testutil"
)

func waitForTerminal(t *testing.T, m *Manager, sessionID string) *models.ExtractSession {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		session, ok := m.GetSession(sessionID)
		if !ok {
			t.Fatal("Session disappeared while waiting")
		}
		if session.Status == models.SessionStatusComplete || session.Status == models.SessionStatusError {
			return session
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Timed out waiting for session to finish")
	return nil
}

func testFixture(t *testing.T) (reader *testutil.FakeReader, filePath string) {
	t.Helper()

	filePath = filepath.Join(t.TempDir(), "robot.step")
	if err := os.WriteFile(filePath, []byte("ISO-10303-21;"), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}

	reader = &testutil.FakeReader{
		Docs: map[string]*testutil.FakeDocument{
			filePath: {
				Roots: []*testutil.FakeLabel{
					testutil.NewAssembly("Robot",
						testutil.NewComponent("Arm_1", testutil.NewPart("Arm", nil), nil),
						testutil.NewComponent("Base_1", testutil.NewPart("Base", nil), nil),
					),
				},
			},
		},
	}
	return reader, filePath
}

func TestManager_StartSession(t *testing.T) {
	t.Run("completes extraction in background", func(t *testing.T) {
		reader, filePath := testFixture(t)
		m := NewManager(reader)

		session, err := m.StartSession("file-1", filePath, "robot.step")
		if err != nil {
			t.Fatalf("Failed to start session: %v", err)
		}
		if session.ID == "" {
			t.Error("Expected session id to be set")
		}
		if session.FileID != "file-1" {
			t.Errorf("Expected fileId 'file-1', got %v", session.FileID)
		}
		if session.Status != models.SessionStatusExtracting {
			t.Errorf("Expected status 'extracting', got %v", session.Status)
		}

		final := waitForTerminal(t, m, session.ID)
		if final.Status != models.SessionStatusComplete {
			t.Fatalf("Expected completion, got status %v (%v)", final.Status, final.Error)
		}
		if final.Progress != 100 {
			t.Errorf("Expected progress 100, got %v", final.Progress)
		}
		if final.TotalParts != 2 || final.TotalAssemblies != 1 {
			t.Errorf("Expected 2 parts and 1 assembly, got %d/%d", final.TotalParts, final.TotalAssemblies)
		}
		if final.OrphanCount != 0 {
			t.Errorf("Expected no orphans, got %d", final.OrphanCount)
		}

		record, ok := m.GetRecord(session.ID)
		if !ok {
			t.Fatal("Expected the extracted record to be available")
		}
		if len(record.AssemblyTree) != 3 {
			t.Errorf("Expected 3 nodes in the record, got %d", len(record.AssemblyTree))
		}

		analyzer, ok := m.GetAnalyzer(session.ID)
		if !ok {
			t.Fatal("Expected the analyzer to be available")
		}
		if got := analyzer.Children(1); len(got) != 2 {
			t.Errorf("Expected 2 children of the root, got %d", len(got))
		}

		warnings, ok := m.GetWarnings(session.ID)
		if !ok || len(warnings) != 0 {
			t.Errorf("Expected empty warnings, got %v (%v)", warnings, ok)
		}
	})

	t.Run("missing file ends in error", func(t *testing.T) {
		reader, _ := testFixture(t)
		m := NewManager(reader)

		session, err := m.StartSession("file-1", "/nope/missing.step", "missing.step")
		if err != nil {
			t.Fatalf("Failed to start session: %v", err)
		}

		final := waitForTerminal(t, m, session.ID)
		if final.Status != models.SessionStatusError {
			t.Fatalf("Expected error status, got %v", final.Status)
		}
		if final.Error == "" {
			t.Error("Expected an error message")
		}
	})

	t.Run("unreadable document ends in error", func(t *testing.T) {
		_, filePath := testFixture(t)
		// Reader that knows no documents.
		m := NewManager(&testutil.FakeReader{Docs: map[string]*testutil.FakeDocument{}})

		session, err := m.StartSession("file-1", filePath, "robot.step")
		if err != nil {
			t.Fatalf("Failed to start session: %v", err)
		}

		final := waitForTerminal(t, m, session.ID)
		if final.Status != models.SessionStatusError {
			t.Fatalf("Expected error status, got %v", final.Status)
		}

		if _, ok := m.GetRecord(session.ID); ok {
			t.Error("Expected no record for a failed session")
		}
		if _, ok := m.GetAnalyzer(session.ID); ok {
			t.Error("Expected no analyzer for a failed session")
		}
	})
}

func TestManager_GetSession(t *testing.T) {
	reader, filePath := testFixture(t)
	m := NewManager(reader)

	if _, ok := m.GetSession("unknown"); ok {
		t.Error("Expected unknown session to be reported as missing")
	}

	session, err := m.StartSession("file-1", filePath, "robot.step")
	if err != nil {
		t.Fatalf("Failed to start session: %v", err)
	}
	if _, ok := m.GetSession(session.ID); !ok {
		t.Error("Expected started session to be retrievable")
	}
}

func TestManager_TouchSession(t *testing.T) {
	reader, filePath := testFixture(t)
	m := NewManager(reader)

	if m.TouchSession("unknown") {
		t.Error("Expected touching an unknown session to fail")
	}

	session, err := m.StartSession("file-1", filePath, "robot.step")
	if err != nil {
		t.Fatalf("Failed to start session: %v", err)
	}
	if !m.TouchSession(session.ID) {
		t.Error("Expected touching a live session to succeed")
	}
}

func TestManager_CleanupOldSessions(t *testing.T) {
	reader, filePath := testFixture(t)
	m := NewManager(reader)

	session, err := m.StartSession("file-1", filePath, "robot.step")
	if err != nil {
		t.Fatalf("Failed to start session: %v", err)
	}
	waitForTerminal(t, m, session.ID)

	t.Run("keeps recently accessed sessions", func(t *testing.T) {
		m.TouchSession(session.ID)
		m.CleanupOldSessions(time.Nanosecond)

		if _, ok := m.GetSession(session.ID); !ok {
			t.Error("Expected recently touched session to survive cleanup")
		}
	})

	t.Run("removes aged sessions", func(t *testing.T) {
		// Backdate the session past both the age and keep-alive windows.
		m.mu.Lock()
		m.sessions[session.ID].LastAccessed = time.Now().Add(-time.Hour)
		m.mu.Unlock()

		m.CleanupOldSessions(time.Minute)

		if _, ok := m.GetSession(session.ID); ok {
			t.Error("Expected aged session to be cleaned up")
		}
	})
}

func TestManager_SessionLimit(t *testing.T) {
	reader, filePath := testFixture(t)
	m := NewManager(reader)

	// Fill the manager with completed sessions up to the limit.
	ids := make([]string, 0, MaxSessions)
	for i := 0; i < MaxSessions; i++ {
		session, err := m.StartSession("file-1", filePath, "robot.step")
		if err != nil {
			t.Fatalf("Failed to start session %d: %v", i, err)
		}
		waitForTerminal(t, m, session.ID)
		ids = append(ids, session.ID)
	}

	// Starting one more evicts a completed session instead of growing.
	session, err := m.StartSession("file-1", filePath, "robot.step")
	if err != nil {
		t.Fatalf("Failed to start session past the limit: %v", err)
	}
	waitForTerminal(t, m, session.ID)

	m.mu.RLock()
	total := len(m.sessions)
	m.mu.RUnlock()
	if total > MaxSessions {
		t.Errorf("Expected at most %d sessions, got %d", MaxSessions, total)
	}

	evicted := 0
	for _, id := range ids {
		if _, ok := m.GetSession(id); !ok {
			evicted++
		}
	}
	if evicted == 0 {
		t.Error("Expected at least one completed session to be evicted")
	}
}
