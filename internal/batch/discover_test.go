// discover_test.go - Tests for input discovery and identity generation
package batch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFixture(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("ISO-10303-21;"), 0644); err != nil {
		t.Fatalf("Failed to write fixture %s: %v", name, err)
	}
}

func TestListInputFiles(t *testing.T) {
	t.Run("filters and sorts case-insensitively", func(t *testing.T) {
		dir := t.TempDir()
		writeFixture(t, dir, "Bravo.STEP")
		writeFixture(t, dir, "alpha.step")
		writeFixture(t, dir, "charlie.stp")
		writeFixture(t, dir, "notes.txt")
		writeFixture(t, dir, "model.glb")
		if err := os.Mkdir(filepath.Join(dir, "sub.step"), 0755); err != nil {
			t.Fatalf("Failed to create subdirectory: %v", err)
		}

		files, err := ListInputFiles(dir)
		if err != nil {
			t.Fatalf("Failed to list files: %v", err)
		}

		if len(files) != 3 {
			t.Fatalf("Expected 3 STEP files, got %d: %v", len(files), files)
		}
		expected := []string{"alpha.step", "Bravo.STEP", "charlie.stp"}
		for i, want := range expected {
			if filepath.Base(files[i]) != want {
				t.Errorf("Expected file %d to be %s, got %s", i, want, filepath.Base(files[i]))
			}
		}
	})

	t.Run("missing directory yields no files", func(t *testing.T) {
		files, err := ListInputFiles(filepath.Join(t.TempDir(), "nope"))
		if err != nil {
			t.Fatalf("Expected no error for missing directory, got %v", err)
		}
		if len(files) != 0 {
			t.Errorf("Expected no files, got %d", len(files))
		}
	})

	t.Run("empty directory yields no files", func(t *testing.T) {
		files, err := ListInputFiles(t.TempDir())
		if err != nil {
			t.Fatalf("Failed to list files: %v", err)
		}
		if len(files) != 0 {
			t.Errorf("Expected no files, got %d", len(files))
		}
	})
}

func TestSanitizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"bracket", "bracket"},
		{"my model:v2", "my model_v2"},
		{`a<b>c:"d"/e\f|g?h*i`, "a_b_c_d_e_f_g_h_i"},
		{"__lots___of____underscores__", "lots_of_underscores"},
		{"..leading.dots..", "leading.dots"},
	}

	for _, tc := range cases {
		if got := SanitizeName(tc.in); got != tc.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNamer_UniqueName(t *testing.T) {
	t.Run("embeds sanitized base and timestamp", func(t *testing.T) {
		n := NewNamer()
		fixed := time.Date(2026, 3, 14, 9, 26, 53, 589*1e6, time.UTC)
		n.now = func() time.Time { return fixed }

		name := n.UniqueName("/data/model/Gear Box:v2.step")
		want := "Gear Box_v2_20260314_092653_589"
		if name != want {
			t.Errorf("Expected %q, got %q", want, name)
		}
	})

	t.Run("same basename in same millisecond stays distinct", func(t *testing.T) {
		n := NewNamer()
		fixed := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
		n.now = func() time.Time { return fixed }

		first := n.UniqueName("/a/part.step")
		second := n.UniqueName("/b/part.step")
		third := n.UniqueName("/c/part.step")

		if first == second || second == third || first == third {
			t.Errorf("Expected distinct identities, got %q, %q, %q", first, second, third)
		}
	})

	t.Run("different basenames never collide", func(t *testing.T) {
		n := NewNamer()
		a := n.UniqueName("/data/alpha.step")
		b := n.UniqueName("/data/bravo.step")
		if a == b {
			t.Errorf("Expected distinct identities, got %q twice", a)
		}
	})
}
