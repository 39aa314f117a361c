// Package tree builds and queries the folder/file hierarchy shown in the
// dashboard. Trees are treated as immutable values: every function here
// either reads a tree or returns a new value.
package tree

import (
	"sort"

	"github.com/maneesh/fasttranscribe/internal/models"
)

// Build assembles a tree from flat records. Records whose parent is unknown
// or is a file are placed at the root. Siblings are ordered folders first,
// then by name.
func Build(records []models.NodeRecord) []*models.FolderNode {
	nodes := make(map[string]*models.FolderNode, len(records))
	for _, rec := range records {
		nodes[rec.ID] = &models.FolderNode{
			ID:       rec.ID,
			Name:     rec.Name,
			Type:     rec.Type,
			ParentID: rec.ParentID,
			Size:     rec.Size,
		}
	}

	var roots []*models.FolderNode
	for _, rec := range records {
		node := nodes[rec.ID]
		parent, ok := nodes[rec.ParentID]
		if rec.ParentID == "" || !ok || !parent.IsFolder() || parent == node {
			node.ParentID = ""
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	sortNodes(roots)
	return roots
}

func sortNodes(nodes []*models.FolderNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Type != nodes[j].Type {
			return nodes[i].IsFolder()
		}
		return nodes[i].Name < nodes[j].Name
	})
	for _, n := range nodes {
		sortNodes(n.Children)
	}
}

// Walk visits every node depth-first, parents before children. Returning
// false from fn stops the walk.
func Walk(roots []*models.FolderNode, fn func(node *models.FolderNode, depth int) bool) {
	walk(roots, 0, fn)
}

func walk(nodes []*models.FolderNode, depth int, fn func(*models.FolderNode, int) bool) bool {
	for _, n := range nodes {
		if !fn(n, depth) {
			return false
		}
		if !walk(n.Children, depth+1, fn) {
			return false
		}
	}
	return true
}

// FindByID finds a node by its ID (recursive).
func FindByID(roots []*models.FolderNode, id string) *models.FolderNode {
	var found *models.FolderNode
	Walk(roots, func(n *models.FolderNode, _ int) bool {
		if n.ID == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Count counts all nodes in a tree.
func Count(roots []*models.FolderNode) int {
	count := 0
	Walk(roots, func(*models.FolderNode, int) bool {
		count++
		return true
	})
	return count
}

// Contains reports whether id is node itself or one of its descendants.
func Contains(node *models.FolderNode, id string) bool {
	if node == nil {
		return false
	}
	return FindByID([]*models.FolderNode{node}, id) != nil
}

// IsAncestor reports whether ancestorID names a strict ancestor of id in
// roots.
func IsAncestor(roots []*models.FolderNode, ancestorID, id string) bool {
	if ancestorID == id {
		return false
	}
	return Contains(FindByID(roots, ancestorID), id)
}

// SubtreeIDs returns the ID of node and of every descendant, parents first.
func SubtreeIDs(node *models.FolderNode) []string {
	var ids []string
	Walk([]*models.FolderNode{node}, func(n *models.FolderNode, _ int) bool {
		ids = append(ids, n.ID)
		return true
	})
	return ids
}

// FolderRef is a folder entry in the flat upload target list.
type FolderRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Depth int    `json:"depth"`
}

// Folders lists every folder in display order.
func Folders(roots []*models.FolderNode) []FolderRef {
	refs := []FolderRef{}
	Walk(roots, func(n *models.FolderNode, depth int) bool {
		if n.IsFolder() {
			refs = append(refs, FolderRef{ID: n.ID, Name: n.Name, Depth: depth})
		}
		return true
	})
	return refs
}
