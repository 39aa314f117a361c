package handlers

import (
	"mime"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/maneesh/fasttranscribe/internal/dashboard"
	"github.com/maneesh/fasttranscribe/internal/folders"
	"github.com/maneesh/fasttranscribe/internal/preview"
	"github.com/maneesh/fasttranscribe/internal/session"
)

// PreviewHandler selects files and serves their transcripts
type PreviewHandler struct {
	folders *folders.Service
	preview *preview.Service
	views   *dashboard.Registry
}

// NewPreviewHandler creates a new preview handler
func NewPreviewHandler(folderService *folders.Service, previewService *preview.Service, views *dashboard.Registry) *PreviewHandler {
	return &PreviewHandler{
		folders: folderService,
		preview: previewService,
		views:   views,
	}
}

// Select handles POST /api/preview/{id}: the file becomes the session's
// selection and its transcript is loaded.
func (ph *PreviewHandler) Select(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "select_file",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	id := mux.Vars(r)["id"]
	span.SetAttributes(attribute.String("node_id", id))

	node, err := ph.folders.Get(id)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	if node.IsFolder() {
		sendServiceError(w, r, preview.ErrNotFile)
		return
	}

	s := session.FromContext(ctx)
	ph.views.BeginSelect(s.ID, node)

	content, err := ph.preview.Fetch(ctx, node)
	if err != nil {
		span.RecordError(err)
		ph.views.FailSelect(s.ID, node.ID)
		sendServiceError(w, r, err)
		return
	}

	// A newer selection wins; the response reports whatever is current
	view, applied := ph.views.FinishSelect(s.ID, node.ID, content)
	span.SetAttributes(attribute.Bool("applied", applied))
	writeJSON(w, http.StatusOK, view)
}

// Get handles GET /api/preview
func (ph *PreviewHandler) Get(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	writeJSON(w, http.StatusOK, ph.views.Get(s.ID))
}

// Download handles GET /api/preview/download, serving the loaded transcript
// as a text file named after the selected file
func (ph *PreviewHandler) Download(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	view := ph.views.Get(s.ID)
	if view.SelectedFile == nil || view.Loading || view.Content == "" {
		sendError(w, http.StatusNotFound, "no transcript loaded")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": view.SelectedFile.Name}))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(view.Content))
}
