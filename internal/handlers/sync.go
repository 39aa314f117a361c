package handlers

import (
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/maneesh/fasttranscribe/internal/drivesync"
	"github.com/maneesh/fasttranscribe/internal/events"
	"github.com/maneesh/fasttranscribe/internal/models"
)

// SyncHandler starts and reports drive sync sessions
type SyncHandler struct {
	manager  *drivesync.Manager
	notifier *events.Broadcaster
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(manager *drivesync.Manager, notifier *events.Broadcaster) *SyncHandler {
	return &SyncHandler{manager: manager, notifier: notifier}
}

// RunningSync is the running session with its completion percentage
type RunningSync struct {
	models.SyncSession
	Percent int `json:"percent"`
}

// SyncResponse lists the history newest first
type SyncResponse struct {
	Sessions []models.SyncSession `json:"sessions"`
	Running  *RunningSync         `json:"running"`
}

// List handles GET /api/sync
func (sh *SyncHandler) List(w http.ResponseWriter, r *http.Request) {
	resp := SyncResponse{Sessions: sh.manager.List()}
	if resp.Sessions == nil {
		resp.Sessions = []models.SyncSession{}
	}
	if running, ok := sh.manager.Running(); ok {
		resp.Running = &RunningSync{SyncSession: running, Percent: percent(running)}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Start handles POST /api/sync
func (sh *SyncHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "start_sync",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	started, err := sh.manager.Start(ctx)
	if err != nil {
		span.RecordError(err)
		sendServiceError(w, r, err)
		return
	}

	span.SetAttributes(
		attribute.String("sync_id", started.ID),
		attribute.Int("total_files", started.TotalFiles),
	)
	sh.notifier.Notify("Sync started", fmt.Sprintf("Importing %d files from the drive", started.TotalFiles))
	writeJSON(w, http.StatusAccepted, started)
}

func percent(s models.SyncSession) int {
	if s.TotalFiles <= 0 {
		return 0
	}
	return s.ProcessedFiles * 100 / s.TotalFiles
}
