package models

import "fmt"

// NodeKind distinguishes composite assemblies from leaf parts.
type NodeKind string

const (
	NodeKindPart     NodeKind = "part"
	NodeKindAssembly NodeKind = "assembly"
)

// Translation is the positional part of an instance transform.
type Translation struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Transform describes the placement applied to a component reference.
// A nil *Transform means the placement is the identity.
type Transform struct {
	Translation Translation `json:"translation"`
	HasRotation bool        `json:"has_rotation"`
	ScaleFactor float64     `json:"scale_factor"`
}

// RGBColor is a display color in 0-255 channels plus its hex form.
type RGBColor struct {
	R   int    `json:"r"`
	G   int    `json:"g"`
	B   int    `json:"b"`
	Hex string `json:"hex"`
}

// DefaultColor is the mid-gray used when the kernel reports no explicit color.
func DefaultColor() RGBColor {
	return RGBColor{R: 128, G: 128, B: 128, Hex: "#808080"}
}

// NewRGBColor builds an RGBColor from 0-255 channels, deriving the hex form.
func NewRGBColor(r, g, b int) RGBColor {
	return RGBColor{R: r, G: g, B: b, Hex: fmt.Sprintf("#%02x%02x%02x", r, g, b)}
}

// AssemblyNode is one flattened entry of an assembly tree.
// IDs are assigned monotonically in pre-order emission; ParentID is nil only
// for the root and otherwise names a node emitted strictly earlier.
type AssemblyNode struct {
	Name           string     `json:"name"`
	ID             uint       `json:"id"`
	ParentID       *uint      `json:"parent_id"`
	Kind           NodeKind   `json:"type"`
	IsAssembly     bool       `json:"is_assembly"`
	Location       *Transform `json:"location"`
	Color          *RGBColor  `json:"color"`
	ShapeKind      string     `json:"shape_type"`
	ReferenceName  *string    `json:"reference_name,omitempty"`
	ComponentEntry string     `json:"component_entry,omitempty"`
	ReferenceEntry string     `json:"reference_entry,omitempty"`
	IsRoot         bool       `json:"is_root,omitempty"`
}

// AssemblyTree is the ordered flat form of one document's structure.
// Slice order is the pre-order traversal of the source graph and defines
// the default display order; it must survive serialization unchanged.
type AssemblyTree []AssemblyNode

// TreeNode is a nested view of an AssemblyNode used by hierarchy
// reconstruction. It copies the flat node so the canonical tree stays
// untouched.
type TreeNode struct {
	AssemblyNode
	Children []*TreeNode `json:"children"`
}
