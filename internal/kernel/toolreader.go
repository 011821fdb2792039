package kernel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/step-visualizer/backend/internal/models"
)

// ToolReader reads CAD documents through an external kernel bridge tool.
// The tool is invoked as `<tool> dump <file>` and must emit the document
// structure as JSON on stdout.
type ToolReader struct {
	ToolPath string
}

var _ DocumentReader = (*ToolReader)(nil)

// NewToolReader creates a reader backed by the bridge tool at toolPath.
func NewToolReader(toolPath string) *ToolReader {
	return &ToolReader{ToolPath: toolPath}
}

// Available reports whether the bridge tool exists on disk.
func (r *ToolReader) Available() bool {
	if r.ToolPath == "" {
		return false
	}
	info, err := os.Stat(r.ToolPath)
	return err == nil && !info.IsDir()
}

// ReadDocument invokes the bridge tool and decodes its structure dump.
func (r *ToolReader) ReadDocument(path string) (Document, error) {
	if !r.Available() {
		return nil, fmt.Errorf("%w: kernel bridge tool not found at %q", ErrUnreadableDocument, r.ToolPath)
	}

	cmd := exec.Command(r.ToolPath, "dump", path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v (%s)", ErrUnreadableDocument, path, err, stderr.String())
	}

	var dump documentDump
	if err := json.Unmarshal(stdout.Bytes(), &dump); err != nil {
		return nil, fmt.Errorf("%w: malformed structure dump for %s: %v", ErrUnreadableDocument, path, err)
	}

	return &toolDocument{roots: dump.Roots}, nil
}

// Structure dump types mirroring the bridge tool's JSON output.

type documentDump struct {
	Roots []*dumpLabel `json:"roots"`
}

type dumpLabel struct {
	EntryID    string           `json:"entry"`
	Name       *string          `json:"name"`
	Assembly   bool             `json:"assembly"`
	Shape      *dumpShape       `json:"shape"`
	Components []*dumpComponent `json:"components"`
}

type dumpComponent struct {
	EntryID   string         `json:"entry"`
	Name      *string        `json:"name"`
	Ref       *dumpLabel     `json:"ref"`
	Transform *dumpTransform `json:"transform"`
	Shape     *dumpShape     `json:"shape"`
}

type dumpShape struct {
	Code  int        `json:"code"`
	Color *dumpColor `json:"color"`
}

type dumpColor struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

type dumpTransform struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Z           float64 `json:"z"`
	HasRotation bool    `json:"hasRotation"`
	ScaleFactor float64 `json:"scaleFactor"`
}

// toolDocument implements Document over a structure dump. The dump inlines
// referenced labels, so reference resolution is a direct pointer walk.
type toolDocument struct {
	roots []*dumpLabel
}

var _ Document = (*toolDocument)(nil)

func (d *toolDocument) RootLabels() []Label {
	labels := make([]Label, len(d.roots))
	for i, r := range d.roots {
		labels[i] = r
	}
	return labels
}

func (d *toolDocument) IsAssembly(l Label) bool {
	if dl, ok := l.(*dumpLabel); ok {
		return dl.Assembly
	}
	return false
}

func (d *toolDocument) Components(l Label) []ComponentRef {
	dl, ok := l.(*dumpLabel)
	if !ok {
		return nil
	}
	comps := make([]ComponentRef, len(dl.Components))
	for i, c := range dl.Components {
		comps[i] = c
	}
	return comps
}

func (d *toolDocument) ResolveReference(c ComponentRef) (Label, bool) {
	dc, ok := c.(*dumpComponent)
	if !ok || dc.Ref == nil {
		return nil, false
	}
	return dc.Ref, true
}

func (d *toolDocument) Shape(l Label) (Shape, bool) {
	switch v := l.(type) {
	case *dumpLabel:
		if v.Shape != nil {
			return v.Shape, true
		}
	case *dumpComponent:
		if v.Shape != nil {
			return v.Shape, true
		}
	}
	return nil, false
}

func (d *toolDocument) ClassifyShape(s Shape) int {
	if ds, ok := s.(*dumpShape); ok {
		return ds.Code
	}
	return ShapeCompound
}

func (d *toolDocument) Color(s Shape) (models.RGBColor, bool) {
	ds, ok := s.(*dumpShape)
	if !ok || ds.Color == nil {
		return models.RGBColor{}, false
	}
	return models.NewRGBColor(ds.Color.R, ds.Color.G, ds.Color.B), true
}

func (d *toolDocument) InstanceTransform(c ComponentRef) *models.Transform {
	dc, ok := c.(*dumpComponent)
	if !ok || dc.Transform == nil {
		return nil
	}
	return &models.Transform{
		Translation: models.Translation{X: dc.Transform.X, Y: dc.Transform.Y, Z: dc.Transform.Z},
		HasRotation: dc.Transform.HasRotation,
		ScaleFactor: dc.Transform.ScaleFactor,
	}
}

func (d *toolDocument) Name(l Label) (string, bool) {
	switch v := l.(type) {
	case *dumpLabel:
		if v.Name != nil {
			return *v.Name, true
		}
	case *dumpComponent:
		if v.Name != nil {
			return *v.Name, true
		}
	}
	return "", false
}

// Entry implementations for the dump label types.

func (l *dumpLabel) Entry() string     { return l.EntryID }
func (c *dumpComponent) Entry() string { return c.EntryID }
