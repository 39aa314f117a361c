// Package jobs keeps the transcription job queue and applies progress
// reported by a Source.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maneesh/fasttranscribe/internal/events"
	"github.com/maneesh/fasttranscribe/internal/logging"
	"github.com/maneesh/fasttranscribe/internal/metrics"
	"github.com/maneesh/fasttranscribe/internal/models"
)

var (
	ErrNotFound  = errors.New("job not found")
	ErrJobActive = errors.New("job is still active")
)

// CompletionHook runs once per job after it reaches completed
type CompletionHook func(ctx context.Context, job models.Job)

// Queue holds jobs in upload order. Every mutation goes through the mutex;
// each job is advanced by its own tracking goroutine, so updates for one job
// are ordered while different jobs interleave freely.
type Queue struct {
	mu    sync.RWMutex
	jobs  []*models.Job
	index map[string]*models.Job

	source     Source
	publisher  events.Publisher
	onComplete CompletionHook

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewQueue creates a queue fed by source
func NewQueue(source Source, publisher events.Publisher) *Queue {
	if publisher == nil {
		publisher = events.Discard{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		index:     make(map[string]*models.Job),
		source:    source,
		publisher: publisher,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// OnComplete registers the completion hook. Call before enqueuing.
func (q *Queue) OnComplete(hook CompletionHook) {
	q.mu.Lock()
	q.onComplete = hook
	q.mu.Unlock()
}

// Enqueue appends jobs as pending with zero progress and starts tracking
// them. Only ID, FileName, FolderID, Size and Hash are taken from the input.
func (q *Queue) Enqueue(batch []models.Job) []models.Job {
	now := time.Now().UTC()
	created := make([]models.Job, 0, len(batch))

	q.mu.Lock()
	for _, in := range batch {
		job := &models.Job{
			ID:        in.ID,
			FileName:  in.FileName,
			FolderID:  in.FolderID,
			Size:      in.Size,
			Hash:      in.Hash,
			Status:    models.JobPending,
			CreatedAt: now,
		}
		if job.ID == "" {
			job.ID = uuid.New().String()
		}
		q.jobs = append(q.jobs, job)
		q.index[job.ID] = job
		created = append(created, *job)
	}
	metrics.SetJobsQueued(len(q.jobs))
	q.mu.Unlock()

	for _, job := range created {
		metrics.RecordJobTransition(string(models.JobPending))
		q.publisher.Publish(events.Event{Type: events.TypeJobUpdated, Data: job})
		q.track(job)
	}
	return created
}

func (q *Queue) track(job models.Job) {
	if q.source == nil {
		return
	}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.source.Track(q.ctx, job, func(u Update) {
			u.JobID = job.ID
			q.Apply(u)
		})
	}()
}

// Apply folds an update into its job and reports whether anything changed.
// Updates for unknown or terminal jobs are ignored, progress never moves
// backwards, and completion pins progress to 100.
func (q *Queue) Apply(u Update) (models.Job, bool) {
	q.mu.Lock()
	job, ok := q.index[u.JobID]
	if !ok || job.Status.Terminal() {
		q.mu.Unlock()
		return models.Job{}, false
	}

	prev := *job
	switch u.Status {
	case models.JobCompleted:
		job.Status = models.JobCompleted
		job.Progress = 100
		job.ETA = ""
	case models.JobFailed:
		job.Status = models.JobFailed
		job.ETA = ""
		job.Error = u.Error
		if job.Error == "" {
			job.Error = "processing failed"
		}
	case models.JobProcessing:
		job.Status = models.JobProcessing
		job.Progress = clamp(max(job.Progress, u.Progress), 0, 100)
		job.ETA = u.ETA
	default:
		// pending carries no new information once a job has started
		if job.Status == models.JobPending {
			job.Progress = clamp(max(job.Progress, u.Progress), 0, 100)
		}
	}
	updated := *job
	hook := q.onComplete
	q.mu.Unlock()

	if updated == prev {
		return updated, false
	}
	if updated.Status != prev.Status {
		metrics.RecordJobTransition(string(updated.Status))
		logging.Debug("job status changed",
			zap.String("job_id", updated.ID),
			zap.String("from", string(prev.Status)),
			zap.String("to", string(updated.Status)),
		)
	}
	q.publisher.Publish(events.Event{Type: events.TypeJobUpdated, Data: updated})

	if updated.Status == models.JobCompleted && hook != nil {
		hook(q.ctx, updated)
	}
	return updated, true
}

// List returns a snapshot of the queue in upload order
func (q *Queue) List() []models.Job {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]models.Job, len(q.jobs))
	for i, j := range q.jobs {
		out[i] = *j
	}
	return out
}

// Get returns a snapshot of one job
func (q *Queue) Get(id string) (models.Job, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	job, ok := q.index[id]
	if !ok {
		return models.Job{}, ErrNotFound
	}
	return *job, nil
}

// Remove drops a terminal job from the queue
func (q *Queue) Remove(id string) error {
	q.mu.Lock()
	job, ok := q.index[id]
	if !ok {
		q.mu.Unlock()
		return ErrNotFound
	}
	if !job.Status.Terminal() {
		q.mu.Unlock()
		return ErrJobActive
	}
	delete(q.index, id)
	for i, j := range q.jobs {
		if j.ID == id {
			q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
			break
		}
	}
	metrics.SetJobsQueued(len(q.jobs))
	q.mu.Unlock()

	q.publisher.Publish(events.Event{Type: events.TypeJobRemoved, Data: map[string]string{"id": id}})
	return nil
}

// Close stops all tracking goroutines and waits for them
func (q *Queue) Close() {
	q.cancel()
	q.wg.Wait()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
