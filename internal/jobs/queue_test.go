package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/maneesh/fasttranscribe/internal/events"
	"github.com/maneesh/fasttranscribe/internal/models"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(e events.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) jobUpdates(id string) []models.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Job
	for _, e := range r.events {
		if job, ok := e.Data.(models.Job); ok && e.Type == events.TypeJobUpdated && job.ID == id {
			out = append(out, job)
		}
	}
	return out
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func fastSimulator() *Simulator {
	return NewSimulator(SimulatorConfig{
		StartDelayMax: 5 * time.Millisecond,
		TickInterval:  time.Millisecond,
		StepMax:       20,
	})
}

func TestUploadScenarioReachesCompleted(t *testing.T) {
	rec := &recorder{}
	q := NewQueue(fastSimulator(), rec)
	defer q.Close()

	created := q.Enqueue([]models.Job{{FileName: "a.mp3"}})
	if len(created) != 1 {
		t.Fatalf("expected 1 job, got %d", len(created))
	}
	job := created[0]
	if job.Status != models.JobPending || job.Progress != 0 {
		t.Fatalf("new job = %+v, want pending at 0", job)
	}
	if job.ID == "" || job.CreatedAt.IsZero() {
		t.Fatal("new job should get an ID and creation time")
	}

	waitFor(t, 5*time.Second, func() bool {
		j, err := q.Get(job.ID)
		return err == nil && j.Status == models.JobCompleted
	})

	final, _ := q.Get(job.ID)
	if final.Progress != 100 {
		t.Errorf("completed progress = %d, want 100", final.Progress)
	}
	if final.ETA != "" {
		t.Errorf("completed job kept ETA %q", final.ETA)
	}
}

func TestProgressIsMonotonic(t *testing.T) {
	rec := &recorder{}
	q := NewQueue(fastSimulator(), rec)
	defer q.Close()

	created := q.Enqueue([]models.Job{{FileName: "a.mp3"}, {FileName: "b.wav"}, {FileName: "c.ogg"}})

	for _, job := range created {
		id := job.ID
		waitFor(t, 5*time.Second, func() bool {
			j, _ := q.Get(id)
			return j.Status == models.JobCompleted
		})

		updates := rec.jobUpdates(id)
		last := -1
		for _, u := range updates {
			if u.Progress < last {
				t.Fatalf("job %s progress went from %d to %d", id, last, u.Progress)
			}
			last = u.Progress
			if u.Status == models.JobCompleted && u.Progress != 100 {
				t.Fatalf("completed with progress %d", u.Progress)
			}
			if u.Status != models.JobCompleted && u.Progress >= 100 {
				t.Fatalf("progress %d reported while %s", u.Progress, u.Status)
			}
		}
		if updates[len(updates)-1].Status != models.JobCompleted {
			t.Errorf("last update for %s is %s", id, updates[len(updates)-1].Status)
		}
	}
}

func TestEnqueueKeepsBatchOrder(t *testing.T) {
	q := NewQueue(nil, nil)
	q.Enqueue([]models.Job{{FileName: "1.mp3"}, {FileName: "2.mp3"}})
	q.Enqueue([]models.Job{{FileName: "3.mp3", FolderID: "folder-1"}})

	list := q.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(list))
	}
	for i, want := range []string{"1.mp3", "2.mp3", "3.mp3"} {
		if list[i].FileName != want {
			t.Errorf("list[%d] = %s, want %s", i, list[i].FileName, want)
		}
	}
	if list[2].FolderID != "folder-1" {
		t.Errorf("folder id lost: %+v", list[2])
	}
}

func TestApplyInvariants(t *testing.T) {
	q := NewQueue(nil, nil)
	job := q.Enqueue([]models.Job{{ID: "job-1", FileName: "a.mp3"}})[0]

	if _, changed := q.Apply(Update{JobID: job.ID, Status: models.JobProcessing, Progress: 50}); !changed {
		t.Fatal("processing update should apply")
	}
	got, _ := q.Apply(Update{JobID: job.ID, Status: models.JobProcessing, Progress: 30})
	if got.Progress != 50 {
		t.Errorf("progress regressed to %d", got.Progress)
	}
	got, _ = q.Apply(Update{JobID: job.ID, Status: models.JobPending})
	if got.Status != models.JobProcessing {
		t.Errorf("status regressed to %s", got.Status)
	}
	got, _ = q.Apply(Update{JobID: job.ID, Status: models.JobProcessing, Progress: 250})
	if got.Progress != 100 {
		t.Errorf("progress not clamped: %d", got.Progress)
	}

	got, _ = q.Apply(Update{JobID: job.ID, Status: models.JobCompleted, Progress: 42})
	if got.Status != models.JobCompleted || got.Progress != 100 {
		t.Errorf("completion = %+v", got)
	}

	if _, changed := q.Apply(Update{JobID: job.ID, Status: models.JobFailed}); changed {
		t.Error("terminal job accepted another update")
	}
	if _, changed := q.Apply(Update{JobID: "missing", Status: models.JobProcessing}); changed {
		t.Error("unknown job accepted an update")
	}
}

func TestApplyFailure(t *testing.T) {
	q := NewQueue(nil, nil)
	job := q.Enqueue([]models.Job{{FileName: "a.mp3"}})[0]
	q.Apply(Update{JobID: job.ID, Status: models.JobProcessing, Progress: 10})

	got, changed := q.Apply(Update{JobID: job.ID, Status: models.JobFailed})
	if !changed || got.Status != models.JobFailed {
		t.Fatalf("failure not applied: %+v", got)
	}
	if got.Progress != 10 || got.Error == "" {
		t.Errorf("failed job = %+v", got)
	}
}

func TestCompletionHookRunsOnce(t *testing.T) {
	q := NewQueue(nil, nil)
	var calls int
	var seen models.Job
	q.OnComplete(func(_ context.Context, job models.Job) {
		calls++
		seen = job
	})

	job := q.Enqueue([]models.Job{{FileName: "a.mp3", FolderID: "folder-1"}})[0]
	q.Apply(Update{JobID: job.ID, Status: models.JobCompleted})
	q.Apply(Update{JobID: job.ID, Status: models.JobCompleted})

	if calls != 1 {
		t.Fatalf("hook ran %d times", calls)
	}
	if seen.FolderID != "folder-1" || seen.Progress != 100 {
		t.Errorf("hook saw %+v", seen)
	}
}

func TestRemove(t *testing.T) {
	rec := &recorder{}
	q := NewQueue(nil, rec)
	job := q.Enqueue([]models.Job{{FileName: "a.mp3"}})[0]

	if err := q.Remove(job.ID); !errors.Is(err, ErrJobActive) {
		t.Fatalf("removing active job: %v", err)
	}
	if err := q.Remove("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("removing unknown job: %v", err)
	}

	q.Apply(Update{JobID: job.ID, Status: models.JobCompleted})
	if err := q.Remove(job.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(q.List()) != 0 {
		t.Error("job still listed after removal")
	}
	if _, err := q.Get(job.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after remove: %v", err)
	}
}

func TestCloseStopsTracking(t *testing.T) {
	sim := NewSimulator(SimulatorConfig{
		StartDelayMax: time.Hour,
		TickInterval:  time.Hour,
		Rand:          func() float64 { return 0.5 },
	})
	q := NewQueue(sim, nil)
	q.Enqueue([]models.Job{{FileName: "a.mp3"}})

	done := make(chan struct{})
	go func() {
		q.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not stop the tracker")
	}
}

func TestEstimate(t *testing.T) {
	tests := []struct {
		total float64
		ticks int
		tick  time.Duration
		want  string
	}{
		{0, 0, time.Second, ""},
		{50, 5, time.Second, "5s"},
		{10, 1, time.Second, "9s"},
		{90, 9, 10 * time.Second, "10s"},
		{99, 99, time.Millisecond, "<1s"},
	}
	for _, tt := range tests {
		if got := estimate(tt.total, tt.ticks, tt.tick); got != tt.want {
			t.Errorf("estimate(%v, %d, %v) = %q, want %q", tt.total, tt.ticks, tt.tick, got, tt.want)
		}
	}
}
