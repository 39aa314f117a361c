package folders

import (
	"context"
	"sync"
	"time"

	"github.com/maneesh/fasttranscribe/internal/models"
)

// Store persists the flat node records behind the tree
type Store interface {
	ListNodes(ctx context.Context) ([]models.NodeRecord, error)
	CreateNode(ctx context.Context, rec models.NodeRecord) error
	RenameNode(ctx context.Context, id, name string) error
	DeleteNodes(ctx context.Context, ids []string) error
}

// MemoryStore keeps records in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	records []models.NodeRecord
}

// NewMemoryStore creates a store holding records
func NewMemoryStore(records ...models.NodeRecord) *MemoryStore {
	return &MemoryStore{records: append([]models.NodeRecord(nil), records...)}
}

// DemoRecords is the sample library shown before anything is uploaded
func DemoRecords() []models.NodeRecord {
	now := time.Now().UTC()
	return []models.NodeRecord{
		{ID: "folder-1", Name: "Meetings", Type: models.NodeFolder, CreatedAt: now},
		{ID: "file-1", Name: "team-meeting.txt", Type: models.NodeFile, ParentID: "folder-1", Size: 1024, CreatedAt: now},
		{ID: "file-2", Name: "client-interview.txt", Type: models.NodeFile, Size: 2048, CreatedAt: now},
	}
}

func (m *MemoryStore) ListNodes(ctx context.Context) ([]models.NodeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.NodeRecord(nil), m.records...), nil
}

func (m *MemoryStore) CreateNode(ctx context.Context, rec models.NodeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == rec.ID {
			return ErrExists
		}
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *MemoryStore) RenameNode(ctx context.Context, id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID == id {
			m.records[i].Name = name
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) DeleteNodes(ctx context.Context, ids []string) error {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.records[:0]
	for _, r := range m.records {
		if _, ok := drop[r.ID]; !ok {
			kept = append(kept, r)
		}
	}
	m.records = kept
	return nil
}
