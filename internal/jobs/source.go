package jobs

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/maneesh/fasttranscribe/internal/models"
)

// Update is one status report for a job. Sources send them in order for a
// given job; the queue enforces the job invariants whatever they contain.
type Update struct {
	JobID    string
	Status   models.JobStatus
	Progress int
	ETA      string
	Error    string
}

// Source reports progress for a job. Track blocks until the job is terminal
// or ctx is cancelled, calling emit from a single goroutine.
type Source interface {
	Track(ctx context.Context, job models.Job, emit func(Update))
}

// SimulatorConfig controls the simulated processing timeline
type SimulatorConfig struct {
	StartDelayMax time.Duration
	TickInterval  time.Duration
	StepMax       float64

	// Rand returns values in [0, 1). It must be safe for concurrent use.
	// Defaults to math/rand.Float64.
	Rand func() float64
}

// Simulator is a Source that stands in for the transcription backend. Jobs
// start after a random delay and gain a random share of StepMax percent per
// tick until they reach 100. It never reports a failure.
type Simulator struct {
	cfg SimulatorConfig
}

// NewSimulator creates a progress simulator
func NewSimulator(cfg SimulatorConfig) *Simulator {
	if cfg.Rand == nil {
		cfg.Rand = rand.Float64
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.StepMax <= 0 {
		cfg.StepMax = 20
	}
	return &Simulator{cfg: cfg}
}

// Track implements Source
func (s *Simulator) Track(ctx context.Context, job models.Job, emit func(Update)) {
	delay := time.Duration(s.cfg.Rand() * float64(s.cfg.StartDelayMax))
	if !sleep(ctx, delay) {
		return
	}
	emit(Update{JobID: job.ID, Status: models.JobProcessing})

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	var total float64
	ticks := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		total += s.cfg.Rand() * s.cfg.StepMax
		ticks++
		if total >= 100 {
			emit(Update{JobID: job.ID, Status: models.JobCompleted, Progress: 100})
			return
		}
		emit(Update{
			JobID:    job.ID,
			Status:   models.JobProcessing,
			Progress: int(total),
			ETA:      estimate(total, ticks, s.cfg.TickInterval),
		})
	}
}

// estimate extrapolates the remaining time from the mean step so far
func estimate(total float64, ticks int, tick time.Duration) string {
	if ticks == 0 || total <= 0 {
		return ""
	}
	mean := total / float64(ticks)
	remaining := math.Ceil((100 - total) / mean)
	eta := time.Duration(remaining) * tick
	if eta < time.Second {
		return "<1s"
	}
	return eta.Round(time.Second).String()
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
