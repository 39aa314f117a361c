// Package folders serves the file browser tree. Mutations round-trip to the
// store and are followed by a full reload; the tree is never patched in
// place.
package folders

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/maneesh/fasttranscribe/internal/events"
	"github.com/maneesh/fasttranscribe/internal/logging"
	"github.com/maneesh/fasttranscribe/internal/metrics"
	"github.com/maneesh/fasttranscribe/internal/models"
	"github.com/maneesh/fasttranscribe/internal/tree"
)

var tracer = otel.Tracer("fasttranscribe-folders")

var (
	ErrNotFound    = errors.New("item not found")
	ErrExists      = errors.New("item already exists")
	ErrNotFolder   = errors.New("parent is not a folder")
	ErrInvalidName = errors.New("name must not be empty or contain '/'")
)

// Notifier receives the confirmation shown after each mutation
type Notifier interface {
	events.Publisher
	Notify(title, description string)
}

// Config holds the simulated timings
type Config struct {
	Latency     time.Duration
	ReloadDelay time.Duration
}

// Service owns the loaded tree
type Service struct {
	store    Store
	notifier Notifier
	cfg      Config

	// loadMu orders reloads so an older snapshot never replaces a newer one
	loadMu sync.Mutex

	mu       sync.RWMutex
	roots    []*models.FolderNode
	onReload []func(roots []*models.FolderNode)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a tree service over store
func NewService(store Store, notifier Notifier, cfg Config) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Load replaces the tree wholesale with what the store holds
func (s *Service) Load(ctx context.Context) ([]*models.FolderNode, error) {
	ctx, span := tracer.Start(ctx, "folders.load")
	defer span.End()

	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	start := time.Now()
	records, err := s.store.ListNodes(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load folders: %w", err)
	}
	roots := tree.Build(records)

	s.mu.Lock()
	s.roots = roots
	hooks := s.onReload
	s.mu.Unlock()

	for _, hook := range hooks {
		hook(roots)
	}

	n := tree.Count(roots)
	metrics.SetTreeSize(n)
	metrics.RecordTreeReload(time.Since(start))
	span.SetAttributes(attribute.Int("node_count", n))

	s.notifier.Publish(events.Event{Type: events.TypeTreeReloaded, Data: roots})
	return roots, nil
}

// OnReload registers fn to run with the new roots after every load
func (s *Service) OnReload(fn func(roots []*models.FolderNode)) {
	s.mu.Lock()
	s.onReload = append(s.onReload, fn)
	s.mu.Unlock()
}

// Tree returns the last loaded tree. Callers must treat it as read-only.
func (s *Service) Tree() []*models.FolderNode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roots
}

// Get finds a node in the loaded tree
func (s *Service) Get(id string) (*models.FolderNode, error) {
	node := tree.FindByID(s.Tree(), id)
	if node == nil {
		return nil, ErrNotFound
	}
	return node, nil
}

// CreateFolder adds a folder under parentID, or at the root when empty
func (s *Service) CreateFolder(ctx context.Context, parentID, name string) (*models.FolderNode, error) {
	ctx, span := tracer.Start(ctx, "folders.create",
		trace.WithAttributes(attribute.String("parent_id", parentID)),
	)
	defer span.End()

	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if parentID != "" {
		parent, err := s.Get(parentID)
		if err != nil {
			return nil, err
		}
		if !parent.IsFolder() {
			return nil, ErrNotFolder
		}
	}
	if err := wait(ctx, s.cfg.Latency); err != nil {
		return nil, err
	}

	rec := models.NodeRecord{
		ID:        uuid.New().String(),
		Name:      name,
		Type:      models.NodeFolder,
		ParentID:  parentID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateNode(ctx, rec); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}

	s.notifier.Notify("Folder created", fmt.Sprintf("The folder %q was created", name))
	if _, err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s.Get(rec.ID)
}

// Rename changes the name of a folder or file
func (s *Service) Rename(ctx context.Context, id, name string) (*models.FolderNode, error) {
	ctx, span := tracer.Start(ctx, "folders.rename",
		trace.WithAttributes(attribute.String("node_id", id)),
	)
	defer span.End()

	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	node, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if err := wait(ctx, s.cfg.Latency); err != nil {
		return nil, err
	}

	if err := s.store.RenameNode(ctx, id, name); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to rename item: %w", err)
	}

	s.notifier.Notify("Item renamed", fmt.Sprintf("%q was renamed to %q", node.Name, name))
	if _, err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s.Get(id)
}

// Delete removes a node and, for folders, everything under it. It returns
// the removed subtree as it was before the delete.
func (s *Service) Delete(ctx context.Context, id string) (*models.FolderNode, error) {
	ctx, span := tracer.Start(ctx, "folders.delete",
		trace.WithAttributes(attribute.String("node_id", id)),
	)
	defer span.End()

	if _, err := s.Get(id); err != nil {
		return nil, err
	}
	if err := wait(ctx, s.cfg.Latency); err != nil {
		return nil, err
	}

	// Descendants come from the store, not the loaded tree, which may not
	// show transcripts filed since the last reload yet.
	records, err := s.store.ListNodes(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to delete item: %w", err)
	}
	node := tree.FindByID(tree.Build(records), id)
	if node == nil {
		return nil, ErrNotFound
	}
	ids := tree.SubtreeIDs(node)
	span.SetAttributes(attribute.Int("deleted_count", len(ids)))
	if err := s.store.DeleteNodes(ctx, ids); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to delete item: %w", err)
	}

	s.notifier.Notify("Item deleted", fmt.Sprintf("%q was deleted", node.Name))
	if _, err := s.Load(ctx); err != nil {
		return nil, err
	}
	return node, nil
}

// JobCompleted files the transcript of a finished job under the job's
// folder and schedules a reload. Wired as the queue's completion hook.
func (s *Service) JobCompleted(ctx context.Context, job models.Job) {
	parentID := job.FolderID
	if parentID != "" {
		if parent, err := s.Get(parentID); err != nil || !parent.IsFolder() {
			parentID = ""
		}
	}

	rec := models.NodeRecord{
		ID:        uuid.New().String(),
		Name:      TranscriptName(job.FileName),
		Type:      models.NodeFile,
		ParentID:  parentID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateNode(ctx, rec); err != nil {
		logging.Error("failed to attach transcript",
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
	}
	s.ReloadAfter(s.cfg.ReloadDelay)
}

// ReloadAfter reloads the tree once delay has passed
func (s *Service) ReloadAfter(delay time.Duration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := wait(s.ctx, delay); err != nil {
			return
		}
		if _, err := s.Load(s.ctx); err != nil {
			logging.Error("scheduled tree reload failed", zap.Error(err))
		}
	}()
}

// Close cancels pending reloads and waits for them
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

// TranscriptName maps an audio file name to its transcript file name
func TranscriptName(audioName string) string {
	base := filepath.Base(audioName)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".txt"
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, "/") {
		return "", ErrInvalidName
	}
	return name, nil
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
