// fake_kernel.go - In-memory geometry kernel for testing the BOM pipeline
package testutil

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/step-visualizer/backend/internal/kernel"
	"github.com/step-visualizer/backend/internal/models"
)

// FakeShape is an in-memory geometry handle
type FakeShape struct {
	Code  int
	Color *models.RGBColor // nil = no explicit color recorded
}

// FakeLabel is an in-memory document label
type FakeLabel struct {
	EntryID    string
	LabelName  string
	Named      bool
	Assembly   bool
	Components []*FakeComponent
	Shape      *FakeShape // nil = no shape
}

// Entry implements kernel.Label
func (l *FakeLabel) Entry() string { return l.EntryID }

// FakeComponent is an in-memory component reference
type FakeComponent struct {
	EntryID   string
	CompName  string
	Named     bool
	Ref       *FakeLabel // nil = unresolved reference
	Transform *models.Transform
	Shape     *FakeShape // direct shape on the component label
}

// Entry implements kernel.Label
func (c *FakeComponent) Entry() string { return c.EntryID }

// FakeDocument implements kernel.Document over in-memory labels
type FakeDocument struct {
	Roots []*FakeLabel
}

var _ kernel.Document = (*FakeDocument)(nil)

func (d *FakeDocument) RootLabels() []kernel.Label {
	labels := make([]kernel.Label, len(d.Roots))
	for i, r := range d.Roots {
		labels[i] = r
	}
	return labels
}

func (d *FakeDocument) IsAssembly(l kernel.Label) bool {
	if fl, ok := l.(*FakeLabel); ok {
		return fl.Assembly
	}
	return false
}

func (d *FakeDocument) Components(l kernel.Label) []kernel.ComponentRef {
	fl, ok := l.(*FakeLabel)
	if !ok {
		return nil
	}
	comps := make([]kernel.ComponentRef, len(fl.Components))
	for i, c := range fl.Components {
		comps[i] = c
	}
	return comps
}

func (d *FakeDocument) ResolveReference(c kernel.ComponentRef) (kernel.Label, bool) {
	fc, ok := c.(*FakeComponent)
	if !ok || fc.Ref == nil {
		return nil, false
	}
	return fc.Ref, true
}

func (d *FakeDocument) Shape(l kernel.Label) (kernel.Shape, bool) {
	switch v := l.(type) {
	case *FakeLabel:
		if v.Shape != nil {
			return v.Shape, true
		}
	case *FakeComponent:
		if v.Shape != nil {
			return v.Shape, true
		}
	}
	return nil, false
}

func (d *FakeDocument) ClassifyShape(s kernel.Shape) int {
	if fs, ok := s.(*FakeShape); ok {
		return fs.Code
	}
	return kernel.ShapeCompound
}

func (d *FakeDocument) Color(s kernel.Shape) (models.RGBColor, bool) {
	if fs, ok := s.(*FakeShape); ok && fs.Color != nil {
		return *fs.Color, true
	}
	return models.RGBColor{}, false
}

func (d *FakeDocument) InstanceTransform(c kernel.ComponentRef) *models.Transform {
	if fc, ok := c.(*FakeComponent); ok {
		return fc.Transform
	}
	return nil
}

func (d *FakeDocument) Name(l kernel.Label) (string, bool) {
	switch v := l.(type) {
	case *FakeLabel:
		return v.LabelName, v.Named
	case *FakeComponent:
		return v.CompName, v.Named
	}
	return "", false
}

// Builders for readable test setups

var fakeEntryCounter int

func nextEntry() string {
	fakeEntryCounter++
	return fmt.Sprintf("0:1:%d", fakeEntryCounter)
}

// NewPart creates a named leaf label with a solid shape
func NewPart(name string, color *models.RGBColor) *FakeLabel {
	return &FakeLabel{
		EntryID:   nextEntry(),
		LabelName: name,
		Named:     name != "",
		Shape:     &FakeShape{Code: kernel.ShapeSolid, Color: color},
	}
}

// NewAssembly creates a named assembly label over the given components
func NewAssembly(name string, comps ...*FakeComponent) *FakeLabel {
	return &FakeLabel{
		EntryID:    nextEntry(),
		LabelName:  name,
		Named:      name != "",
		Assembly:   true,
		Components: comps,
	}
}

// NewComponent creates a component reference to a label
func NewComponent(name string, ref *FakeLabel, transform *models.Transform) *FakeComponent {
	return &FakeComponent{
		EntryID:   nextEntry(),
		CompName:  name,
		Named:     name != "",
		Ref:       ref,
		Transform: transform,
	}
}

// FakeReader implements kernel.DocumentReader over a path -> document map
type FakeReader struct {
	Docs map[string]*FakeDocument
	Err  error
}

var _ kernel.DocumentReader = (*FakeReader)(nil)

func (r *FakeReader) ReadDocument(path string) (kernel.Document, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	doc, ok := r.Docs[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", kernel.ErrUnreadableDocument, path)
	}
	return doc, nil
}

// FakeConverter implements convert.Converter for testing the supervisor
// and the batch pipeline
type FakeConverter struct {
	Unavailable bool
	Err         error
	Delay       time.Duration
	Artifact    []byte // written to the output path on success
}

func (f *FakeConverter) Available() bool {
	return !f.Unavailable
}

func (f *FakeConverter) Convert(ctx context.Context, inputPath, outputPath string) error {
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if f.Err != nil {
		return f.Err
	}

	artifact := f.Artifact
	if artifact == nil {
		artifact = []byte("glTF-binary")
	}
	return os.WriteFile(outputPath, artifact, 0644)
}
