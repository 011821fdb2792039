package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

var (
	invalidNameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	repeatUnderscore = regexp.MustCompile(`_+`)
)

// stepExtensions are the recognized CAD input extensions, matched
// case-insensitively.
var stepExtensions = map[string]bool{
	".step": true,
	".stp":  true,
}

// ListInputFiles returns the STEP files under modelDir in a fixed,
// deterministic order: case-insensitive lexicographic by basename. Repeated
// runs over the same input set therefore process files in the same sequence.
func ListInputFiles(modelDir string) ([]string, error) {
	entries, err := os.ReadDir(modelDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading model directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if stepExtensions[ext] {
			files = append(files, filepath.Join(modelDir, entry.Name()))
		}
	}

	sort.Slice(files, func(i, j int) bool {
		return strings.ToLower(filepath.Base(files[i])) < strings.ToLower(filepath.Base(files[j]))
	})

	return files, nil
}

// SanitizeName makes a filename safe for use as a directory name: filesystem
// metacharacters become underscores, runs of underscores collapse, and
// leading/trailing dots and underscores are trimmed.
func SanitizeName(name string) string {
	sanitized := invalidNameChars.ReplaceAllString(name, "_")
	sanitized = repeatUnderscore.ReplaceAllString(sanitized, "_")
	return strings.Trim(sanitized, "._")
}

// Namer generates collision-safe per-file identities within one batch run.
// The identity combines the sanitized base name with a millisecond
// timestamp; if two files would still collide (same base name processed in
// the same millisecond) a counter suffix keeps them distinct.
type Namer struct {
	used map[string]int
	now  func() time.Time
}

// NewNamer creates a Namer for one run.
func NewNamer() *Namer {
	return &Namer{used: make(map[string]int), now: time.Now}
}

// UniqueName derives the namespace identity for one input file.
func (n *Namer) UniqueName(inputPath string) string {
	base := filepath.Base(inputPath)
	base = SanitizeName(strings.TrimSuffix(base, filepath.Ext(base)))

	ts := n.now()
	name := fmt.Sprintf("%s_%s_%03d", base, ts.Format("20060102_150405"), ts.Nanosecond()/1e6)

	if count, taken := n.used[name]; taken {
		n.used[name] = count + 1
		name = fmt.Sprintf("%s_%d", name, count+1)
	}
	n.used[name] = 0

	return name
}
