package bom

import (
	"fmt"
	"strings"

	"github.com/step-visualizer/backend/internal/models"
)

// PathSeparator joins node names in a flattened parts-list path.
const PathSeparator = " → "

// Analyzer answers structural queries over one flattened assembly tree.
// The tree is never mutated: hierarchy reconstruction works on private
// copies, so one Analyzer can back any number of concurrent readers.
// Every query is total — unknown ids yield empty results, never panics.
type Analyzer struct {
	tree models.AssemblyTree
	byID map[uint]int // node id -> index in tree
}

// NewAnalyzer indexes a flat assembly tree for querying.
func NewAnalyzer(tree models.AssemblyTree) *Analyzer {
	byID := make(map[uint]int, len(tree))
	for i, node := range tree {
		byID[node.ID] = i
	}
	return &Analyzer{tree: tree, byID: byID}
}

// NewAnalyzerForDocument indexes the assembly tree of a persisted BOM record.
func NewAnalyzerForDocument(doc *models.BOMDocument) *Analyzer {
	return NewAnalyzer(doc.AssemblyTree)
}

// Tree returns the underlying flat tree in emission order.
func (a *Analyzer) Tree() models.AssemblyTree {
	return a.tree
}

// Node returns the node with the given id.
func (a *Analyzer) Node(id uint) (models.AssemblyNode, bool) {
	i, ok := a.byID[id]
	if !ok {
		return models.AssemblyNode{}, false
	}
	return a.tree[i], true
}

// Children returns the direct children of a node, in tree order.
func (a *Analyzer) Children(id uint) []models.AssemblyNode {
	var children []models.AssemblyNode
	for _, node := range a.tree {
		if node.ParentID != nil && *node.ParentID == id {
			children = append(children, node)
		}
	}
	return children
}

// Descendants returns the transitive closure of Children, depth-first in
// pre-order.
func (a *Analyzer) Descendants(id uint) []models.AssemblyNode {
	var descendants []models.AssemblyNode
	for _, child := range a.Children(id) {
		descendants = append(descendants, child)
		descendants = append(descendants, a.Descendants(child.ID)...)
	}
	return descendants
}

// PathToRoot walks parent links from id upward and returns the path ordered
// root-to-target. An unknown id yields an empty path; a broken parent chain
// yields the partial path that could be resolved.
func (a *Analyzer) PathToRoot(id uint) []models.AssemblyNode {
	var reversed []models.AssemblyNode

	current := &id
	for current != nil {
		node, ok := a.Node(*current)
		if !ok {
			break
		}
		reversed = append(reversed, node)
		current = node.ParentID
	}

	path := make([]models.AssemblyNode, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		path = append(path, reversed[i])
	}
	return path
}

// HierarchyTree reconstructs the nested structure from the flat form. Nodes
// whose parent_id does not resolve to a known id are surfaced as additional
// roots, with one structural warning each; they usually indicate a traversal
// bug upstream rather than valid data.
func (a *Analyzer) HierarchyTree() (roots []*models.TreeNode, warnings []string) {
	copies := make([]*models.TreeNode, len(a.tree))
	for i, node := range a.tree {
		copies[i] = &models.TreeNode{AssemblyNode: node, Children: []*models.TreeNode{}}
	}

	for i, node := range a.tree {
		if node.ParentID == nil {
			roots = append(roots, copies[i])
			continue
		}
		parentIdx, ok := a.byID[*node.ParentID]
		if !ok {
			warning := fmt.Sprintf("orphan node %d (%s): parent_id %d not found", node.ID, node.Name, *node.ParentID)
			fmt.Printf("[Analyzer] %s\n", warning)
			warnings = append(warnings, warning)
			roots = append(roots, copies[i])
			continue
		}
		copies[parentIdx].Children = append(copies[parentIdx].Children, copies[i])
	}

	return roots, warnings
}

// SearchByName returns all nodes whose name contains term, in tree order.
func (a *Analyzer) SearchByName(term string, caseSensitive bool) []models.AssemblyNode {
	if !caseSensitive {
		term = strings.ToLower(term)
	}

	var matches []models.AssemblyNode
	for _, node := range a.tree {
		name := node.Name
		if !caseSensitive {
			name = strings.ToLower(name)
		}
		if strings.Contains(name, term) {
			matches = append(matches, node)
		}
	}
	return matches
}

// PartsList returns every part node with its full assembly path.
func (a *Analyzer) PartsList() []models.PartEntry {
	var parts []models.PartEntry
	for _, node := range a.tree {
		if node.IsAssembly {
			continue
		}

		path := a.PathToRoot(node.ID)
		names := make([]string, len(path))
		for i, p := range path {
			names[i] = p.Name
		}

		parts = append(parts, models.PartEntry{
			Name:      node.Name,
			ID:        node.ID,
			Path:      strings.Join(names, PathSeparator),
			Color:     node.Color,
			ShapeKind: node.ShapeKind,
		})
	}
	return parts
}

// ChildrenCount returns the number of direct children per parent id.
func (a *Analyzer) ChildrenCount() map[uint]int {
	counts := make(map[uint]int)
	for _, node := range a.tree {
		if node.ParentID != nil {
			counts[*node.ParentID]++
		}
	}
	return counts
}
