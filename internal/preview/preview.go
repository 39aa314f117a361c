// Package preview loads the transcript text shown for a selected file.
package preview

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/maneesh/fasttranscribe/internal/logging"
	"github.com/maneesh/fasttranscribe/internal/metrics"
	"github.com/maneesh/fasttranscribe/internal/models"
)

var tracer = otel.Tracer("fasttranscribe-preview")

var ErrNotFile = errors.New("only files have a transcript")

// Cache holds fetched transcripts. Get returns ok=false on a miss.
type Cache interface {
	GetPreview(ctx context.Context, key string) (string, bool, error)
	SetPreview(ctx context.Context, key, content string) error
}

// ObjectReader reads stored transcripts. It returns nil, nil when the
// object does not exist.
type ObjectReader interface {
	ReadObject(ctx context.Context, key string) ([]byte, error)
}

// Service fetches transcripts, cache first
type Service struct {
	cache   Cache
	objects ObjectReader
	latency time.Duration
}

// NewService creates a preview service. objects may be nil, in which case
// every file gets the placeholder transcript.
func NewService(cache Cache, objects ObjectReader, latency time.Duration) *Service {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Service{cache: cache, objects: objects, latency: latency}
}

// ObjectKey is where the transcript for a node is stored
func ObjectKey(nodeID string) string {
	return path.Join("transcripts", nodeID+".txt")
}

// Fetch returns the transcript of a file node
func (s *Service) Fetch(ctx context.Context, node *models.FolderNode) (string, error) {
	if node.IsFolder() {
		return "", ErrNotFile
	}
	ctx, span := tracer.Start(ctx, "preview.fetch")
	defer span.End()
	span.SetAttributes(attribute.String("node_id", node.ID), attribute.String("file_name", node.Name))

	// Every selection pays the fetch delay, cached or not.
	if err := wait(ctx, s.latency); err != nil {
		return "", err
	}

	// The placeholder depends on the name, so a rename must not serve the
	// old body.
	key := node.ID + ":" + node.Name
	content, ok, err := s.cache.GetPreview(ctx, key)
	if err != nil {
		logging.Warn("preview cache lookup failed", zap.Error(err))
	}
	if ok {
		metrics.RecordPreviewCache(true)
		span.SetAttributes(attribute.Bool("cache_hit", true))
		return content, nil
	}
	metrics.RecordPreviewCache(false)
	span.SetAttributes(attribute.Bool("cache_hit", false))

	content = Placeholder(node.Name)
	if s.objects != nil {
		data, err := s.objects.ReadObject(ctx, ObjectKey(node.ID))
		if err != nil {
			span.RecordError(err)
			return "", fmt.Errorf("failed to read transcript: %w", err)
		}
		if data != nil {
			content = string(data)
		}
	}

	if err := s.cache.SetPreview(ctx, key, content); err != nil {
		logging.Warn("failed to update preview cache", zap.Error(err))
	}
	return content, nil
}

// Placeholder is the mock transcript served until real transcripts exist
func Placeholder(fileName string) string {
	return fmt.Sprintf(`This is the transcription of the file %s.

Lorem ipsum dolor sit amet, consectetur adipiscing elit. Sed do eiusmod tempor incididunt ut labore et dolore magna aliqua. Ut enim ad minim veniam, quis nostrud exercitation ullamco laboris nisi ut aliquip ex ea commodo consequat.

Duis aute irure dolor in reprehenderit in voluptate velit esse cillum dolore eu fugiat nulla pariatur. Excepteur sint occaecat cupidatat non proident, sunt in culpa qui officia deserunt mollit anim id est laborum.

Sed ut perspiciatis unde omnis iste natus error sit voluptatem accusantium doloremque laudantium, totam rem aperiam, eaque ipsa quae ab illo inventore veritatis et quasi architecto beatae vitae dicta sunt explicabo.`, fileName)
}

// MemoryCache is an unbounded in-process Cache
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]string)}
}

func (c *MemoryCache) GetPreview(_ context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *MemoryCache) SetPreview(_ context.Context, key, content string) error {
	c.mu.Lock()
	c.entries[key] = content
	c.mu.Unlock()
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
