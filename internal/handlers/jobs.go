package handlers

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/maneesh/fasttranscribe/internal/events"
	"github.com/maneesh/fasttranscribe/internal/folders"
	"github.com/maneesh/fasttranscribe/internal/intake"
	"github.com/maneesh/fasttranscribe/internal/jobs"
	"github.com/maneesh/fasttranscribe/internal/logging"
	"github.com/maneesh/fasttranscribe/internal/metrics"
	"github.com/maneesh/fasttranscribe/internal/models"
)

// maxUploadMemory is the part of a multipart upload kept in memory; the
// rest spills to temporary files.
const maxUploadMemory = 32 << 20

// JobsHandler handles uploads and the transcription queue
type JobsHandler struct {
	queue    *jobs.Queue
	intake   *intake.Intake
	folders  *folders.Service
	notifier *events.Broadcaster
	objects  ObjectDeleter
}

// NewJobsHandler creates a new jobs handler
func NewJobsHandler(
	queue *jobs.Queue,
	in *intake.Intake,
	folderService *folders.Service,
	notifier *events.Broadcaster,
	objects ObjectDeleter,
) *JobsHandler {
	return &JobsHandler{
		queue:    queue,
		intake:   in,
		folders:  folderService,
		notifier: notifier,
		objects:  objects,
	}
}

// List handles GET /api/jobs
func (jh *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, jh.queue.List())
}

// Upload handles POST /api/uploads with a multipart "files" field and an
// optional "folder_id"
func (jh *JobsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "upload_batch",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		sendError(w, http.StatusBadRequest, "expected a multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		sendError(w, http.StatusBadRequest, "no files in upload")
		return
	}

	folderID := r.FormValue("folder_id")
	if folderID != "" {
		node, err := jh.folders.Get(folderID)
		if err != nil || !node.IsFolder() {
			sendError(w, http.StatusBadRequest, fmt.Sprintf("unknown folder %q", folderID))
			return
		}
	}

	// The batch is accepted or rejected as a whole
	for _, fh := range files {
		if err := intake.Check(fh.Filename); err != nil {
			sendError(w, http.StatusBadRequest, fmt.Sprintf("%s: %v", fh.Filename, err))
			return
		}
	}

	span.SetAttributes(
		attribute.Int("file_count", len(files)),
		attribute.String("folder_id", folderID),
	)

	batch := make([]models.Job, 0, len(files))
	var stored []string
	for _, fh := range files {
		jobID := uuid.New().String()
		audio, err := jh.store(ctx, jobID, fh)
		if err != nil {
			span.RecordError(err)
			jh.discard(ctx, stored)
			sendServiceError(w, r, err)
			return
		}
		if audio.ObjectKey != "" {
			stored = append(stored, audio.ObjectKey)
		}
		batch = append(batch, models.Job{
			ID:       jobID,
			FileName: audio.Name,
			FolderID: folderID,
			Size:     audio.Size,
			Hash:     audio.Hash,
		})
	}
	for _, job := range batch {
		metrics.RecordUpload(job.Size)
	}

	created := jh.queue.Enqueue(batch)
	logging.WithContext(ctx).Info("upload accepted",
		zap.Int("file_count", len(created)),
		zap.String("folder_id", folderID),
	)
	jh.notifier.Notify("Upload started", fmt.Sprintf("%d file(s) queued for transcription", len(created)))

	writeJSON(w, http.StatusCreated, created)
}

func (jh *JobsHandler) store(ctx context.Context, jobID string, fh *multipart.FileHeader) (*intake.Audio, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()
	return jh.intake.Store(ctx, jobID, fh.Filename, f, fh.Size)
}

// discard removes audio already written for a batch that failed part way
func (jh *JobsHandler) discard(ctx context.Context, keys []string) {
	if jh.objects == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := jh.objects.DeleteObject(ctx, key); err != nil {
			logging.WithContext(ctx).Warn("failed to discard audio object",
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}
}

// Remove handles DELETE /api/jobs/{id}. Only finished jobs can be removed.
func (jh *JobsHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "remove_job",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	jobID := mux.Vars(r)["id"]
	span.SetAttributes(attribute.String("job_id", jobID))

	job, err := jh.queue.Get(jobID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	if err := jh.queue.Remove(jobID); err != nil {
		sendServiceError(w, r, err)
		return
	}

	if jh.objects != nil {
		if err := jh.objects.DeleteObject(ctx, intake.ObjectKey(job.ID, job.FileName)); err != nil {
			// The job is gone either way
			logging.WithContext(ctx).Warn("failed to delete audio object",
				zap.String("job_id", job.ID),
				zap.Error(err),
			)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
