package tree

import "github.com/maneesh/fasttranscribe/internal/models"

// Expansion maps a folder ID to whether it is expanded. Missing IDs are
// collapsed. The reducers below never modify their input.
type Expansion map[string]bool

func (e Expansion) clone() Expansion {
	out := make(Expansion, len(e)+1)
	for k, v := range e {
		if v {
			out[k] = true
		}
	}
	return out
}

// IsExpanded reports the state of id.
func (e Expansion) IsExpanded(id string) bool {
	return e[id]
}

// Toggle flips the state of id.
func Toggle(e Expansion, id string) Expansion {
	out := e.clone()
	if out[id] {
		delete(out, id)
	} else {
		out[id] = true
	}
	return out
}

// Expand marks id as expanded.
func Expand(e Expansion, id string) Expansion {
	out := e.clone()
	out[id] = true
	return out
}

// Collapse marks id as collapsed.
func Collapse(e Expansion, id string) Expansion {
	out := e.clone()
	delete(out, id)
	return out
}

// Prune drops entries that no longer name a folder of roots, which happens
// after a reload removed or replaced nodes.
func Prune(e Expansion, roots []*models.FolderNode) Expansion {
	out := make(Expansion, len(e))
	for id, v := range e {
		if !v {
			continue
		}
		if n := FindByID(roots, id); n != nil && n.IsFolder() {
			out[id] = true
		}
	}
	return out
}
