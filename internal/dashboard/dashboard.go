// Package dashboard holds the per-session view state of the file browser:
// which folders are expanded and which file is shown in the preview pane.
package dashboard

import (
	"sync"

	"github.com/maneesh/fasttranscribe/internal/models"
	"github.com/maneesh/fasttranscribe/internal/tree"
)

// View is a snapshot of one session's dashboard
type View struct {
	SelectedFile *models.FolderNode `json:"selectedFile"`
	Content      string             `json:"content"`
	Loading      bool               `json:"loading"`
	Expanded     tree.Expansion     `json:"expanded"`
}

type state struct {
	selected *models.FolderNode
	content  string
	loading  bool
	expanded tree.Expansion
}

// Registry keys view state by session ID
type Registry struct {
	mu    sync.Mutex
	views map[string]*state
}

func NewRegistry() *Registry {
	return &Registry{views: make(map[string]*state)}
}

func (r *Registry) stateLocked(sessionID string) *state {
	st, ok := r.views[sessionID]
	if !ok {
		st = &state{expanded: tree.Expansion{}}
		r.views[sessionID] = st
	}
	return st
}

func (st *state) view() View {
	v := View{Content: st.content, Loading: st.loading, Expanded: st.expanded}
	if st.selected != nil {
		sel := *st.selected
		sel.Children = nil
		v.SelectedFile = &sel
	}
	return v
}

// Get returns the current view of a session
func (r *Registry) Get(sessionID string) View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked(sessionID).view()
}

// BeginSelect marks file as selected and loading, clearing the old content
func (r *Registry) BeginSelect(sessionID string, file *models.FolderNode) View {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.stateLocked(sessionID)
	st.selected = file
	st.content = ""
	st.loading = true
	return st.view()
}

// FinishSelect stores fetched content. It is dropped when another file was
// selected or the selection was cleared in the meantime.
func (r *Registry) FinishSelect(sessionID, fileID, content string) (View, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.stateLocked(sessionID)
	if st.selected == nil || st.selected.ID != fileID {
		return st.view(), false
	}
	st.content = content
	st.loading = false
	return st.view(), true
}

// FailSelect ends a load that errored, keeping the selection
func (r *Registry) FailSelect(sessionID, fileID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.stateLocked(sessionID)
	if st.selected != nil && st.selected.ID == fileID {
		st.loading = false
	}
}

// Toggle flips a folder's expansion for one session
func (r *Registry) Toggle(sessionID, folderID string) tree.Expansion {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.stateLocked(sessionID)
	st.expanded = tree.Toggle(st.expanded, folderID)
	return st.expanded
}

// Prune drops expansion entries of every session that no longer name a
// folder of roots.
func (r *Registry) Prune(roots []*models.FolderNode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range r.views {
		st.expanded = tree.Prune(st.expanded, roots)
	}
}

// ClearNode clears the preview of every session whose selected file lies in
// the deleted subtree.
func (r *Registry) ClearNode(deleted *models.FolderNode) int {
	if deleted == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cleared := 0
	for _, st := range r.views {
		if st.selected != nil && tree.Contains(deleted, st.selected.ID) {
			st.selected = nil
			st.content = ""
			st.loading = false
			cleared++
		}
	}
	return cleared
}

// Rename refreshes the name of a selected file in every session
func (r *Registry) Rename(node *models.FolderNode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range r.views {
		if st.selected != nil && st.selected.ID == node.ID {
			sel := *st.selected
			sel.Name = node.Name
			st.selected = &sel
		}
	}
}

// Drop forgets a session's state. It is the logout teardown.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	delete(r.views, sessionID)
	r.mu.Unlock()
}

// Len returns the number of tracked sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}
