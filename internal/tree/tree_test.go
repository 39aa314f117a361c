package tree

import (
	"testing"

	"github.com/maneesh/fasttranscribe/internal/models"
)

func sampleRecords() []models.NodeRecord {
	return []models.NodeRecord{
		{ID: "file-2", Name: "entrevista-cliente.txt", Type: models.NodeFile, Size: 2048},
		{ID: "folder-1", Name: "Reuniões", Type: models.NodeFolder},
		{ID: "file-1", Name: "reuniao-equipe.txt", Type: models.NodeFile, ParentID: "folder-1", Size: 1024},
		{ID: "folder-2", Name: "2024", Type: models.NodeFolder, ParentID: "folder-1"},
		{ID: "file-3", Name: "q1.txt", Type: models.NodeFile, ParentID: "folder-2"},
	}
}

func TestBuild(t *testing.T) {
	roots := Build(sampleRecords())

	if len(roots) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(roots))
	}
	if roots[0].ID != "folder-1" {
		t.Errorf("folders should sort first, got %s", roots[0].ID)
	}
	if len(roots[0].Children) != 2 {
		t.Fatalf("expected 2 children under folder-1, got %d", len(roots[0].Children))
	}
	if roots[0].Children[0].ID != "folder-2" {
		t.Errorf("nested folder should sort before files, got %s", roots[0].Children[0].ID)
	}

	Walk(roots, func(n *models.FolderNode, _ int) bool {
		if !n.IsFolder() && n.Children != nil {
			t.Errorf("file %s has children", n.ID)
		}
		return true
	})
}

func TestBuildOrphansAndFileParents(t *testing.T) {
	roots := Build([]models.NodeRecord{
		{ID: "a", Name: "a.txt", Type: models.NodeFile},
		{ID: "b", Name: "b.txt", Type: models.NodeFile, ParentID: "a"},
		{ID: "c", Name: "c.txt", Type: models.NodeFile, ParentID: "missing"},
	})
	if len(roots) != 3 {
		t.Fatalf("expected all nodes at the root, got %d", len(roots))
	}
	for _, r := range roots {
		if r.ParentID != "" {
			t.Errorf("root %s kept parent %q", r.ID, r.ParentID)
		}
	}
}

func TestFindByID(t *testing.T) {
	roots := Build(sampleRecords())

	tests := []struct {
		id    string
		found bool
	}{
		{"folder-1", true},
		{"file-1", true},
		{"file-3", true},
		{"nonexistent", false},
	}
	for _, tt := range tests {
		node := FindByID(roots, tt.id)
		if (node != nil) != tt.found {
			t.Errorf("FindByID(%q) found=%v, want %v", tt.id, node != nil, tt.found)
		}
	}
	if FindByID(nil, "x") != nil {
		t.Error("FindByID(nil) should return nil")
	}
}

func TestCountContainsSubtree(t *testing.T) {
	roots := Build(sampleRecords())
	if got := Count(roots); got != 5 {
		t.Errorf("Count = %d, want 5", got)
	}

	folder := FindByID(roots, "folder-1")
	if !Contains(folder, "file-3") {
		t.Error("folder-1 should contain file-3")
	}
	if Contains(folder, "file-2") {
		t.Error("folder-1 should not contain file-2")
	}
	if Contains(nil, "file-2") {
		t.Error("nil contains nothing")
	}

	ids := SubtreeIDs(folder)
	if len(ids) != 4 || ids[0] != "folder-1" {
		t.Errorf("SubtreeIDs = %v", ids)
	}
}

func TestFolders(t *testing.T) {
	refs := Folders(Build(sampleRecords()))
	if len(refs) != 2 {
		t.Fatalf("expected 2 folders, got %v", refs)
	}
	if refs[1].ID != "folder-2" || refs[1].Depth != 1 {
		t.Errorf("unexpected nested ref %+v", refs[1])
	}
	if got := Folders(nil); got == nil || len(got) != 0 {
		t.Errorf("Folders(nil) = %v, want empty slice", got)
	}
}

func TestExpansionReducers(t *testing.T) {
	start := Expansion{}

	opened := Toggle(start, "folder-1")
	if !opened.IsExpanded("folder-1") {
		t.Fatal("toggle should expand")
	}
	if start.IsExpanded("folder-1") {
		t.Fatal("toggle mutated its input")
	}

	closed := Toggle(opened, "folder-1")
	if closed.IsExpanded("folder-1") || !opened.IsExpanded("folder-1") {
		t.Fatal("second toggle should collapse without touching the previous value")
	}

	e := Expand(start, "a")
	e = Expand(e, "b")
	e = Collapse(e, "a")
	if e.IsExpanded("a") || !e.IsExpanded("b") {
		t.Errorf("unexpected state %v", e)
	}
}

func TestPrune(t *testing.T) {
	roots := Build(sampleRecords())
	e := Expansion{"folder-1": true, "file-1": true, "gone": true}

	pruned := Prune(e, roots)
	if len(pruned) != 1 || !pruned.IsExpanded("folder-1") {
		t.Errorf("Prune = %v", pruned)
	}
	if len(e) != 3 {
		t.Error("Prune mutated its input")
	}
}

func TestIsAncestor(t *testing.T) {
	roots := Build(sampleRecords())
	tests := []struct {
		ancestor, id string
		want         bool
	}{
		{"folder-1", "file-3", true},
		{"folder-2", "file-3", true},
		{"folder-1", "folder-1", false},
		{"folder-2", "file-1", false},
		{"missing", "file-1", false},
	}
	for _, tt := range tests {
		if got := IsAncestor(roots, tt.ancestor, tt.id); got != tt.want {
			t.Errorf("IsAncestor(%q, %q) = %v, want %v", tt.ancestor, tt.id, got, tt.want)
		}
	}
}
