package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/maneesh/fasttranscribe/internal/dashboard"
	"github.com/maneesh/fasttranscribe/internal/folders"
	"github.com/maneesh/fasttranscribe/internal/logging"
	"github.com/maneesh/fasttranscribe/internal/models"
	"github.com/maneesh/fasttranscribe/internal/preview"
	"github.com/maneesh/fasttranscribe/internal/session"
	"github.com/maneesh/fasttranscribe/internal/tree"
)

// TreeHandler serves the file browser
type TreeHandler struct {
	folders *folders.Service
	views   *dashboard.Registry
	objects ObjectDeleter
}

// NewTreeHandler creates a new tree handler
func NewTreeHandler(folderService *folders.Service, views *dashboard.Registry, objects ObjectDeleter) *TreeHandler {
	return &TreeHandler{
		folders: folderService,
		views:   views,
		objects: objects,
	}
}

// TreeResponse is the tree plus the caller's expand state
type TreeResponse struct {
	Roots    []*models.FolderNode `json:"roots"`
	Expanded tree.Expansion       `json:"expanded"`
}

// Tree handles GET /api/tree
func (th *TreeHandler) Tree(w http.ResponseWriter, r *http.Request) {
	roots := th.folders.Tree()
	if roots == nil {
		roots = []*models.FolderNode{}
	}
	s := session.FromContext(r.Context())
	writeJSON(w, http.StatusOK, TreeResponse{
		Roots:    roots,
		Expanded: th.views.Get(s.ID).Expanded,
	})
}

// Folders handles GET /api/folders, the flat upload target list
func (th *TreeHandler) Folders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, tree.Folders(th.folders.Tree()))
}

// Toggle handles POST /api/tree/{id}/toggle
func (th *TreeHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	node, err := th.folders.Get(id)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	if !node.IsFolder() {
		sendError(w, http.StatusBadRequest, "only folders can be expanded")
		return
	}
	s := session.FromContext(r.Context())
	writeJSON(w, http.StatusOK, th.views.Toggle(s.ID, id))
}

// CreateFolderRequest is the body of POST /api/folders
type CreateFolderRequest struct {
	ParentID string `json:"parentId"`
	Name     string `json:"name"`
}

// CreateFolder handles POST /api/folders
func (th *TreeHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "create_folder",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	var req CreateFolderRequest
	if err := decodeJSON(r, &req); err != nil {
		sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	span.SetAttributes(attribute.String("parent_id", req.ParentID))

	node, err := th.folders.CreateFolder(ctx, req.ParentID, req.Name)
	if err != nil {
		span.RecordError(err)
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, node)
}

// RenameRequest is the body of PUT /api/items/{id}
type RenameRequest struct {
	Name string `json:"name"`
}

// Rename handles PUT /api/items/{id}
func (th *TreeHandler) Rename(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "rename_item",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	id := mux.Vars(r)["id"]
	span.SetAttributes(attribute.String("node_id", id))

	var req RenameRequest
	if err := decodeJSON(r, &req); err != nil {
		sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	node, err := th.folders.Rename(ctx, id, req.Name)
	if err != nil {
		span.RecordError(err)
		sendServiceError(w, r, err)
		return
	}
	th.views.Rename(node)
	writeJSON(w, http.StatusOK, node)
}

// Delete handles DELETE /api/items/{id}. Folders go with everything under
// them, and previews showing a removed file are cleared.
func (th *TreeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "delete_item",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	id := mux.Vars(r)["id"]
	span.SetAttributes(attribute.String("node_id", id))

	deleted, err := th.folders.Delete(ctx, id)
	if err != nil {
		span.RecordError(err)
		sendServiceError(w, r, err)
		return
	}

	cleared := th.views.ClearNode(deleted)
	span.SetAttributes(attribute.Int("cleared_previews", cleared))

	if th.objects != nil {
		tree.Walk([]*models.FolderNode{deleted}, func(n *models.FolderNode, _ int) bool {
			if n.IsFolder() {
				return true
			}
			if err := th.objects.DeleteObject(ctx, preview.ObjectKey(n.ID)); err != nil {
				logging.WithContext(ctx).Warn("failed to delete transcript object",
					zap.String("node_id", n.ID),
					zap.Error(err),
				)
			}
			return true
		})
	}
	w.WriteHeader(http.StatusNoContent)
}
