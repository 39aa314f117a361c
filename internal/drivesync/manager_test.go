package drivesync

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
	mu       sync.Mutex
	sessions []models.SyncSession
}

func (r *recorder) Publish(e events.Event) {
	if s, ok := e.Data.(models.SyncSession); ok {
		r.mu.Lock()
		r.sessions = append(r.sessions, s)
		r.mu.Unlock()
	}
}

func (r *recorder) snapshot() []models.SyncSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.SyncSession(nil), r.sessions...)
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

func TestSyncScenarioCompletes(t *testing.T) {
	rec := &recorder{}
	m := NewManager(Config{TotalFiles: 25}, NewSimulator(SimulatorConfig{TickInterval: time.Millisecond}), rec)
	defer m.Close()

	s, err := m.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.Status != models.SyncRunning || s.TotalFiles != 25 || s.ProcessedFiles != 0 {
		t.Fatalf("new session = %+v", s)
	}
	if list := m.List(); len(list) != 1 || list[0].ID != s.ID {
		t.Fatalf("session not listed: %+v", list)
	}

	waitFor(t, 5*time.Second, func() bool {
		_, running := m.Running()
		return !running
	})

	final := m.List()[0]
	if final.Status != models.SyncCompleted || final.ProcessedFiles != 25 {
		t.Errorf("final session = %+v", final)
	}
	if final.CompletedAt == nil {
		t.Error("completedAt not stamped")
	}

	last := 0
	for _, u := range rec.snapshot() {
		if u.ProcessedFiles > u.TotalFiles {
			t.Fatalf("processed %d > total %d", u.ProcessedFiles, u.TotalFiles)
		}
		if u.ProcessedFiles < last {
			t.Fatalf("processed went from %d to %d", last, u.ProcessedFiles)
		}
		if u.ProcessedFiles == u.TotalFiles && (u.Status != models.SyncCompleted || u.CompletedAt == nil) {
			t.Fatalf("reached target without completing: %+v", u)
		}
		last = u.ProcessedFiles
	}
}

func TestStartRejectedWhileRunning(t *testing.T) {
	m := NewManager(Config{TotalFiles: 25}, nil, nil)
	defer m.Close()

	first, err := m.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	before := m.List()

	if _, err := m.Start(context.Background()); !errors.Is(err, ErrSyncRunning) {
		t.Fatalf("second Start = %v, want ErrSyncRunning", err)
	}
	after := m.List()
	if len(after) != len(before) || after[0].ID != first.ID {
		t.Errorf("history changed on rejection: %+v", after)
	}
}

func TestStartRejectedWhileStarting(t *testing.T) {
	m := NewManager(Config{TotalFiles: 25, StartLatency: 50 * time.Millisecond}, nil, nil)
	defer m.Close()

	done := make(chan error, 1)
	go func() {
		_, err := m.Start(context.Background())
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)

	if _, err := m.Start(context.Background()); !errors.Is(err, ErrSyncRunning) {
		t.Fatalf("concurrent Start = %v, want ErrSyncRunning", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if len(m.List()) != 1 {
		t.Errorf("expected exactly one session, got %d", len(m.List()))
	}
}

func TestStartCancelledDuringRoundTrip(t *testing.T) {
	m := NewManager(Config{StartLatency: time.Hour}, nil, nil)
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Start = %v, want context.Canceled", err)
	}
	if len(m.List()) != 0 {
		t.Fatal("cancelled start left a session")
	}

	m.cfg.StartLatency = 0
	if _, err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start after cancellation: %v", err)
	}
}

func TestNewSessionsArePrepended(t *testing.T) {
	m := NewManager(Config{TotalFiles: 3}, nil, nil)
	defer m.Close()

	first, _ := m.Start(context.Background())
	m.Apply(Update{SessionID: first.ID, Processed: 3})
	second, err := m.Start(context.Background())
	if err != nil {
		t.Fatalf("Start after completion: %v", err)
	}

	list := m.List()
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Errorf("unexpected order: %+v", list)
	}
}

func TestApplyClampsAndCompletes(t *testing.T) {
	m := NewManager(Config{TotalFiles: 25}, nil, nil)
	defer m.Close()
	s, _ := m.Start(context.Background())

	got, _ := m.Apply(Update{SessionID: s.ID, Status: models.SyncRunning, Processed: 10})
	if got.ProcessedFiles != 10 || got.Status != models.SyncRunning {
		t.Fatalf("after 10: %+v", got)
	}
	got, _ = m.Apply(Update{SessionID: s.ID, Status: models.SyncRunning, Processed: 4})
	if got.ProcessedFiles != 10 {
		t.Errorf("processed regressed to %d", got.ProcessedFiles)
	}
	got, _ = m.Apply(Update{SessionID: s.ID, Status: models.SyncRunning, Processed: 40})
	if got.ProcessedFiles != 25 || got.Status != models.SyncCompleted || got.CompletedAt == nil {
		t.Errorf("overshoot = %+v", got)
	}
	if _, changed := m.Apply(Update{SessionID: s.ID, Processed: 1}); changed {
		t.Error("finished session accepted an update")
	}
}

func TestApplyFailure(t *testing.T) {
	m := NewManager(Config{TotalFiles: 25}, nil, nil)
	defer m.Close()
	s, _ := m.Start(context.Background())

	got, _ := m.Apply(Update{SessionID: s.ID, Status: models.SyncFailed, Processed: 7, Error: "quota exceeded"})
	if got.Status != models.SyncFailed || got.Error != "quota exceeded" || got.ProcessedFiles != 7 {
		t.Errorf("failed session = %+v", got)
	}
	if _, running := m.Running(); running {
		t.Error("failed session still reported as running")
	}
}

func TestSimulatorStepBounds(t *testing.T) {
	var steps []int
	sim := NewSimulator(SimulatorConfig{
		TickInterval: time.Millisecond,
		StepMax:      5,
		Intn:         func(n int) int { return n - 1 },
	})
	sim.Run(context.Background(), models.SyncSession{ID: "s", TotalFiles: 12}, func(u Update) {
		steps = append(steps, u.Processed)
	})

	want := []int{5, 10, 12}
	if len(steps) != len(want) {
		t.Fatalf("steps = %v, want %v", steps, want)
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Errorf("steps = %v, want %v", steps, want)
		}
	}
}
