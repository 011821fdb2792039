// Package kernel defines the contracts the BOM pipeline expects from an
// external CAD geometry kernel. The pipeline only reads document structure
// through these interfaces; it never mutates kernel state.
package kernel

import (
	"errors"
	"fmt"

	"github.com/step-visualizer/backend/internal/models"
)

// ErrUnreadableDocument is returned by DocumentReader implementations when
// the kernel reports a non-success read status for an input file.
var ErrUnreadableDocument = errors.New("kernel reported unreadable document")

// Shape type codes as classified by the kernel.
const (
	ShapeCompound  = 0
	ShapeCompSolid = 1
	ShapeSolid     = 2
	ShapeShell     = 3
	ShapeFace      = 4
	ShapeWire      = 5
	ShapeEdge      = 6
	ShapeVertex    = 7
)

var shapeKindNames = map[int]string{
	ShapeCompound:  "Compound",
	ShapeCompSolid: "CompSolid",
	ShapeSolid:     "Solid",
	ShapeShell:     "Shell",
	ShapeFace:      "Face",
	ShapeWire:      "Wire",
	ShapeEdge:      "Edge",
	ShapeVertex:    "Vertex",
}

// ShapeKindName maps a kernel shape-type code to its display name.
// Unrecognized codes map to "Unknown(code)".
func ShapeKindName(code int) string {
	if name, ok := shapeKindNames[code]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", code)
}

// Label is an opaque handle to one entry in the kernel's document structure.
type Label interface {
	// Entry returns the kernel's stable identifier for this label, used for
	// diagnostics and for cycle detection along a traversal path.
	Entry() string
}

// ComponentRef is a handle to one component reference owned by an assembly
// label. Component references are themselves labels in the kernel's document
// structure, so they carry a name and may carry a direct shape.
type ComponentRef interface {
	Label
}

// Shape is an opaque handle to concrete geometry attached to a label.
type Shape interface{}

// Document is one loaded CAD document.
type Document interface {
	// RootLabels returns the document's top-level labels in kernel order.
	RootLabels() []Label

	// IsAssembly reports whether a label is a composite assembly.
	IsAssembly(l Label) bool

	// Components returns the component references declared by an assembly
	// label, in declaration order.
	Components(l Label) []ComponentRef

	// ResolveReference resolves a component to its referenced label. The
	// second return is false when the component has no reference.
	ResolveReference(c ComponentRef) (Label, bool)

	// Shape returns the geometry handle for a label, or false if none.
	Shape(l Label) (Shape, bool)

	// ClassifyShape returns the kernel shape-type code for a shape handle.
	ClassifyShape(s Shape) int

	// Color returns the surface color of a shape, or false when the kernel
	// records no explicit color.
	Color(s Shape) (models.RGBColor, bool)

	// InstanceTransform returns the placement attached to a component
	// reference (not the referenced shape). nil means identity.
	InstanceTransform(c ComponentRef) *models.Transform

	// Name returns the label's name, or false when unnamed.
	Name(l Label) (string, bool)
}

// DocumentReader loads CAD documents from disk.
type DocumentReader interface {
	// ReadDocument opens and transfers one file into a Document. It returns
	// an error wrapping ErrUnreadableDocument when the kernel cannot read
	// the file.
	ReadDocument(path string) (Document, error)
}
