package preview

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/maneesh/fasttranscribe/internal/models"
)

type fakeObjects struct {
	data  map[string][]byte
	reads int
	err   error
}

func (f *fakeObjects) ReadObject(_ context.Context, key string) ([]byte, error) {
	f.reads++
	if f.err != nil {
		return nil, f.err
	}
	return f.data[key], nil
}

func TestFetchPlaceholder(t *testing.T) {
	svc := NewService(nil, nil, time.Millisecond)
	node := &models.FolderNode{ID: "file-1", Name: "team-meeting.txt", Type: models.NodeFile}

	content, err := svc.Fetch(context.Background(), node)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !strings.HasPrefix(content, "This is the transcription of the file team-meeting.txt.") {
		t.Errorf("unexpected content: %q", content[:60])
	}
	if content != Placeholder("team-meeting.txt") {
		t.Error("placeholder should depend only on the file name")
	}
}

func TestFetchRejectsFolders(t *testing.T) {
	svc := NewService(nil, nil, 0)
	_, err := svc.Fetch(context.Background(), &models.FolderNode{ID: "f", Type: models.NodeFolder})
	if !errors.Is(err, ErrNotFile) {
		t.Fatalf("Fetch(folder) = %v", err)
	}
}

func TestFetchPrefersStoredTranscript(t *testing.T) {
	objects := &fakeObjects{data: map[string][]byte{
		ObjectKey("file-9"): []byte("real words"),
	}}
	svc := NewService(nil, objects, 0)

	got, err := svc.Fetch(context.Background(), &models.FolderNode{ID: "file-9", Name: "x.txt", Type: models.NodeFile})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got != "real words" {
		t.Errorf("content = %q", got)
	}

	got, _ = svc.Fetch(context.Background(), &models.FolderNode{ID: "file-8", Name: "y.txt", Type: models.NodeFile})
	if got != Placeholder("y.txt") {
		t.Errorf("missing object should fall back to placeholder")
	}
}

func TestFetchUsesCache(t *testing.T) {
	objects := &fakeObjects{}
	svc := NewService(NewMemoryCache(), objects, 0)
	node := &models.FolderNode{ID: "file-1", Name: "a.txt", Type: models.NodeFile}

	svc.Fetch(context.Background(), node)
	svc.Fetch(context.Background(), node)
	if objects.reads != 1 {
		t.Errorf("expected one object read, got %d", objects.reads)
	}

	renamed := &models.FolderNode{ID: "file-1", Name: "b.txt", Type: models.NodeFile}
	got, _ := svc.Fetch(context.Background(), renamed)
	if got != Placeholder("b.txt") {
		t.Error("rename served a stale cached body")
	}
}

func TestFetchObjectError(t *testing.T) {
	svc := NewService(nil, &fakeObjects{err: errors.New("boom")}, 0)
	if _, err := svc.Fetch(context.Background(), &models.FolderNode{ID: "f", Name: "f.txt", Type: models.NodeFile}); err == nil {
		t.Fatal("expected error from object store")
	}
}

func TestCacheHitStillWaits(t *testing.T) {
	svc := NewService(NewMemoryCache(), nil, 20*time.Millisecond)
	node := &models.FolderNode{ID: "file-1", Name: "a.txt", Type: models.NodeFile}

	if _, err := svc.Fetch(context.Background(), node); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	start := time.Now()
	if _, err := svc.Fetch(context.Background(), node); err != nil {
		t.Fatalf("cached Fetch: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("cached fetch returned after %v", elapsed)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Fetch(ctx, node); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled cached Fetch = %v", err)
	}
}
