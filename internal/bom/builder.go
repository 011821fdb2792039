package bom

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/step-visualizer/backend/internal/kernel"
	"github.com/step-visualizer/backend/internal/models"
)

// TreeBuilder flattens a kernel document's assembly graph into an ordered
// AssemblyTree. All traversal state lives in an explicit context value scoped
// to one Build call, so builders are re-entrant and never leak ids across
// documents.
type TreeBuilder struct {
	doc      kernel.Document
	filename string
}

// NewTreeBuilder creates a builder for one loaded document. filename is the
// source path, used for the record metadata and the synthetic root name.
func NewTreeBuilder(doc kernel.Document, filename string) *TreeBuilder {
	return &TreeBuilder{doc: doc, filename: filename}
}

// traversal carries the mutable state of one tree walk: the id sequencer,
// the ancestor-id stack whose top is the parent of every emitted node, and
// the kernel entries along the current recursion path for cycle detection.
type traversal struct {
	uids      *UIDSequencer
	ancestors []uint
	onPath    map[string]bool
}

func (t *traversal) parent() uint {
	return t.ancestors[len(t.ancestors)-1]
}

func (t *traversal) push(id uint, entry string) {
	t.ancestors = append(t.ancestors, id)
	if entry != "" {
		t.onPath[entry] = true
	}
}

func (t *traversal) pop(entry string) {
	t.ancestors = t.ancestors[:len(t.ancestors)-1]
	if entry != "" {
		delete(t.onPath, entry)
	}
}

// Build walks the document and returns the flattened BOM record. Nodes are
// emitted in pre-order; ids are 1..N in emission order and every non-root
// node's parent_id names a node emitted strictly earlier. Per-component
// failures are logged and skipped, never aborting the whole traversal.
func (b *TreeBuilder) Build() *models.BOMDocument {
	base := filepath.Base(b.filename)
	fullPath, err := filepath.Abs(b.filename)
	if err != nil {
		fullPath = b.filename
	}

	record := &models.BOMDocument{
		Filename:     base,
		FullPath:     fullPath,
		Timestamp:    time.Now().Format(time.RFC3339),
		AssemblyTree: models.AssemblyTree{},
		BOMType:      models.BOMType,
		GeneratedBy:  models.BOMGenerator,
		Version:      models.BOMVersion,
	}

	roots := b.doc.RootLabels()
	if len(roots) == 0 {
		fmt.Printf("[TreeBuilder] no shapes found in %s\n", base)
		return record
	}

	t := &traversal{
		uids:   &UIDSequencer{},
		onPath: make(map[string]bool),
	}

	root := roots[0]
	rootName, ok := b.doc.Name(root)
	if !ok || rootName == "" {
		rootName = strings.TrimSuffix(base, filepath.Ext(base))
	}

	var tree models.AssemblyTree

	if b.doc.IsAssembly(root) {
		rootID := t.uids.Next()
		tree = append(tree, models.AssemblyNode{
			Name:           rootName,
			ID:             rootID,
			ParentID:       nil,
			Kind:           models.NodeKindAssembly,
			IsAssembly:     true,
			ShapeKind:      "Assembly",
			ComponentEntry: root.Entry(),
			IsRoot:         true,
		})

		t.push(rootID, root.Entry())
		tree = append(tree, b.walkComponents(t, b.doc.Components(root))...)
		t.pop(root.Entry())
	} else {
		// No assembly structure: emit a synthetic root container and list
		// the document's top-level labels as sibling parts.
		rootID := t.uids.Next()
		tree = append(tree, models.AssemblyNode{
			Name:       strings.TrimSuffix(base, filepath.Ext(base)),
			ID:         rootID,
			ParentID:   nil,
			Kind:       models.NodeKindAssembly,
			IsAssembly: true,
			ShapeKind:  "Assembly",
			IsRoot:     true,
		})
		t.push(rootID, "")

		for i, label := range roots {
			name, ok := b.doc.Name(label)
			if !ok || name == "" {
				name = fmt.Sprintf("Part_%d", i+1)
			}
			color := b.colorOf(label)
			parentID := t.parent()
			tree = append(tree, models.AssemblyNode{
				Name:           name,
				ID:             t.uids.Next(),
				ParentID:       &parentID,
				Kind:           models.NodeKindPart,
				ShapeKind:      b.shapeKindOf(label),
				Color:          &color,
				ComponentEntry: label.Entry(),
			})
		}
		t.pop("")
	}

	for _, node := range tree {
		if node.IsAssembly {
			record.TotalAssemblies++
		} else {
			record.TotalParts++
		}
	}
	record.AssemblyTree = tree
	return record
}

// walkComponents expands one component list. Each entry is processed behind
// a recover guard: a misbehaving kernel call drops that entry and traversal
// continues with the next sibling.
func (b *TreeBuilder) walkComponents(t *traversal, comps []kernel.ComponentRef) []models.AssemblyNode {
	var nodes []models.AssemblyNode

	for i, comp := range comps {
		emitted, err := b.processComponent(t, comp, i)
		if err != nil {
			fmt.Printf("[TreeBuilder] error processing component %d (%s): %v\n", i+1, comp.Entry(), err)
			continue
		}
		nodes = append(nodes, emitted...)
	}

	return nodes
}

func (b *TreeBuilder) processComponent(t *traversal, comp kernel.ComponentRef, index int) (nodes []models.AssemblyNode, err error) {
	defer func() {
		if r := recover(); r != nil {
			nodes = nil
			err = fmt.Errorf("kernel panic: %v", r)
		}
	}()

	name, ok := b.doc.Name(comp)
	if !ok || name == "" {
		name = fmt.Sprintf("Component_%d", index+1)
	}

	ref, hasRef := b.doc.ResolveReference(comp)
	if !hasRef {
		// Component without a reference: fall back to whatever shape is
		// directly attached, rather than dropping the entry.
		color := b.colorOf(comp)
		parentID := t.parent()
		return []models.AssemblyNode{{
			Name:           name,
			ID:             t.uids.Next(),
			ParentID:       &parentID,
			Kind:           models.NodeKindPart,
			Location:       nil,
			Color:          &color,
			ShapeKind:      b.shapeKindOf(comp),
			ReferenceName:  nil,
			ComponentEntry: comp.Entry(),
		}}, nil
	}

	refName, ok := b.doc.Name(ref)
	if b.doc.IsAssembly(ref) {
		if t.onPath[ref.Entry()] {
			return nil, fmt.Errorf("cycle detected: assembly %s references an ancestor", ref.Entry())
		}
		if !ok || refName == "" {
			refName = "Unnamed_Assembly"
		}

		parentID := t.parent()
		id := t.uids.Next()
		nodes = append(nodes, models.AssemblyNode{
			Name:           name,
			ID:             id,
			ParentID:       &parentID,
			Kind:           models.NodeKindAssembly,
			IsAssembly:     true,
			Location:       b.doc.InstanceTransform(comp),
			Color:          nil,
			ShapeKind:      "Assembly",
			ReferenceName:  &refName,
			ComponentEntry: comp.Entry(),
			ReferenceEntry: ref.Entry(),
		})

		// Shared sub-assemblies are re-expanded per instance: the tree
		// reflects the instanced graph, not kernel-level sharing.
		t.push(id, ref.Entry())
		nodes = append(nodes, b.walkComponents(t, b.doc.Components(ref))...)
		t.pop(ref.Entry())
		return nodes, nil
	}

	if !ok || refName == "" {
		refName = "Unnamed_Reference"
	}
	color := b.colorOf(ref)
	parentID := t.parent()
	return []models.AssemblyNode{{
		Name:     name,
		ID:       t.uids.Next(),
		ParentID: &parentID,
		Kind:     models.NodeKindPart,
		// The instance transform of the referencing component, not any
		// transform on the referenced shape.
		Location:       b.doc.InstanceTransform(comp),
		Color:          &color,
		ShapeKind:      b.shapeKindOf(ref),
		ReferenceName:  &refName,
		ComponentEntry: comp.Entry(),
		ReferenceEntry: ref.Entry(),
	}}, nil
}

// colorOf returns the shape color for a label, defaulting to mid-gray when
// the label has no shape or the kernel records no explicit color.
func (b *TreeBuilder) colorOf(l kernel.Label) models.RGBColor {
	shape, ok := b.doc.Shape(l)
	if !ok {
		return models.DefaultColor()
	}
	color, ok := b.doc.Color(shape)
	if !ok {
		return models.DefaultColor()
	}
	return color
}

func (b *TreeBuilder) shapeKindOf(l kernel.Label) string {
	shape, ok := b.doc.Shape(l)
	if !ok {
		return "Unknown"
	}
	return kernel.ShapeKindName(b.doc.ClassifyShape(shape))
}
