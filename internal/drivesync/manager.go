// Package drivesync runs the bulk import from the external drive. Only one
// session may run at a time.
package drivesync

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

var ErrSyncRunning = errors.New("a sync session is already running")

// Config holds the manager settings
type Config struct {
	TotalFiles   int
	StartLatency time.Duration
}

// Manager owns the session history, newest first
type Manager struct {
	mu       sync.RWMutex
	sessions []*models.SyncSession
	starting bool

	cfg       Config
	source    Source
	publisher events.Publisher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a sync manager
func NewManager(cfg Config, source Source, publisher events.Publisher) *Manager {
	if cfg.TotalFiles <= 0 {
		cfg.TotalFiles = 25
	}
	if publisher == nil {
		publisher = events.Discard{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:       cfg,
		source:    source,
		publisher: publisher,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start opens a new session after the simulated round trip. It fails with
// ErrSyncRunning, leaving the history untouched, while another session is
// running or being started.
func (m *Manager) Start(ctx context.Context) (models.SyncSession, error) {
	m.mu.Lock()
	if m.starting || m.runningLocked() != nil {
		m.mu.Unlock()
		return models.SyncSession{}, ErrSyncRunning
	}
	m.starting = true
	m.mu.Unlock()

	if err := wait(ctx, m.cfg.StartLatency); err != nil {
		m.mu.Lock()
		m.starting = false
		m.mu.Unlock()
		return models.SyncSession{}, err
	}

	session := &models.SyncSession{
		ID:         uuid.New().String(),
		Status:     models.SyncRunning,
		TotalFiles: m.cfg.TotalFiles,
		StartedAt:  time.Now().UTC(),
	}

	m.mu.Lock()
	m.sessions = append([]*models.SyncSession{session}, m.sessions...)
	m.starting = false
	snapshot := *session
	m.mu.Unlock()

	logging.Info("sync session started", zap.String("session_id", snapshot.ID), zap.Int("total_files", snapshot.TotalFiles))
	m.publisher.Publish(events.Event{Type: events.TypeSyncUpdated, Data: snapshot})

	if m.source != nil {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.source.Run(m.ctx, snapshot, func(u Update) {
				u.SessionID = snapshot.ID
				m.Apply(u)
			})
		}()
	}
	return snapshot, nil
}

// Apply folds an update into its session. processedFiles never decreases
// and never exceeds totalFiles; reaching the target completes the session.
func (m *Manager) Apply(u Update) (models.SyncSession, bool) {
	m.mu.Lock()
	s := m.findLocked(u.SessionID)
	if s == nil || s.Status != models.SyncRunning {
		m.mu.Unlock()
		return models.SyncSession{}, false
	}

	processed := max(s.ProcessedFiles, u.Processed)
	if processed > s.TotalFiles {
		processed = s.TotalFiles
	}
	s.ProcessedFiles = processed

	switch {
	case u.Status == models.SyncFailed:
		now := time.Now().UTC()
		s.Status = models.SyncFailed
		s.CompletedAt = &now
		s.Error = u.Error
		if s.Error == "" {
			s.Error = "sync failed"
		}
	case u.Status == models.SyncCompleted || s.ProcessedFiles == s.TotalFiles:
		now := time.Now().UTC()
		s.Status = models.SyncCompleted
		s.ProcessedFiles = s.TotalFiles
		s.CompletedAt = &now
	}
	snapshot := *s
	m.mu.Unlock()

	if snapshot.Status != models.SyncRunning {
		metrics.RecordSyncSession(string(snapshot.Status))
		logging.Info("sync session finished",
			zap.String("session_id", snapshot.ID),
			zap.String("status", string(snapshot.Status)),
			zap.Int("processed_files", snapshot.ProcessedFiles),
		)
	}
	m.publisher.Publish(events.Event{Type: events.TypeSyncUpdated, Data: snapshot})
	return snapshot, true
}

// List returns the history, newest first
func (m *Manager) List() []models.SyncSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.SyncSession, len(m.sessions))
	for i, s := range m.sessions {
		out[i] = *s
	}
	return out
}

// Running returns the running session, if any
func (m *Manager) Running() (models.SyncSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s := m.runningLocked(); s != nil {
		return *s, true
	}
	return models.SyncSession{}, false
}

// Close stops running sessions and waits for their sources
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) runningLocked() *models.SyncSession {
	for _, s := range m.sessions {
		if s.Status == models.SyncRunning {
			return s
		}
	}
	return nil
}

func (m *Manager) findLocked(id string) *models.SyncSession {
	for _, s := range m.sessions {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
