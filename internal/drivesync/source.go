package drivesync

import (
	"context"
	"math/rand"
	"time"

	"github.com/maneesh/fasttranscribe/internal/models"
)

// Update reports how far a sync session got
type Update struct {
	SessionID string
	Status    models.SyncStatus
	Processed int
	Error     string
}

// Source drives a session until it finishes or ctx is cancelled. emit is
// called from a single goroutine.
type Source interface {
	Run(ctx context.Context, session models.SyncSession, emit func(Update))
}

// SimulatorConfig controls the simulated import
type SimulatorConfig struct {
	TickInterval time.Duration
	StepMax      int

	// Intn returns values in [0, n). Defaults to math/rand.Intn.
	Intn func(n int) int
}

// Simulator imports between 1 and StepMax files per tick until the session
// target is reached. It never fails.
type Simulator struct {
	cfg SimulatorConfig
}

// NewSimulator creates a sync simulator
func NewSimulator(cfg SimulatorConfig) *Simulator {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 2 * time.Second
	}
	if cfg.StepMax <= 0 {
		cfg.StepMax = 5
	}
	if cfg.Intn == nil {
		cfg.Intn = rand.Intn
	}
	return &Simulator{cfg: cfg}
}

// Run implements Source
func (s *Simulator) Run(ctx context.Context, session models.SyncSession, emit func(Update)) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	processed := session.ProcessedFiles
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		processed += s.cfg.Intn(s.cfg.StepMax) + 1
		if processed >= session.TotalFiles {
			emit(Update{SessionID: session.ID, Status: models.SyncCompleted, Processed: session.TotalFiles})
			return
		}
		emit(Update{SessionID: session.ID, Status: models.SyncRunning, Processed: processed})
	}
}
