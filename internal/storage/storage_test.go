package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/maneesh/fasttranscribe/internal/folders"
	"github.com/maneesh/fasttranscribe/internal/handlers"
	"github.com/maneesh/fasttranscribe/internal/intake"
	"github.com/maneesh/fasttranscribe/internal/models"
	"github.com/maneesh/fasttranscribe/internal/preview"
	"github.com/maneesh/fasttranscribe/internal/session"
)

var (
	_ folders.Store          = (*TiDBClient)(nil)
	_ session.Store          = (*RedisClient)(nil)
	_ preview.Cache          = (*RedisClient)(nil)
	_ preview.ObjectReader   = (*MinioClient)(nil)
	_ intake.ObjectWriter    = (*MinioClient)(nil)
	_ handlers.ObjectDeleter = (*MinioClient)(nil)
)

func TestSessionKey(t *testing.T) {
	if got := sessionKey("abc"); got != "session:abc" {
		t.Errorf("sessionKey = %q", got)
	}
}

// The tests below talk to real backends and only run when their address
// is set, e.g. TEST_REDIS_ADDR=localhost:6379.

func TestRedisSessionRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rc, err := NewRedisClient(addr, "", 0)
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	defer rc.Close()

	ctx := context.Background()
	s := &session.Session{
		ID:        "test-session",
		User:      models.User{Email: "admin@example.com", IsAdmin: true},
		ExpiresAt: time.Now().Add(time.Minute),
	}
	if err := rc.SaveSession(ctx, s, time.Minute); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	got, err := rc.GetSession(ctx, s.ID)
	if err != nil || got == nil || got.User != s.User {
		t.Fatalf("GetSession = %+v, %v", got, err)
	}
	if err := rc.DeleteSession(ctx, s.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if got, _ := rc.GetSession(ctx, s.ID); got != nil {
		t.Error("session survived delete")
	}

	if _, ok, _ := rc.GetPreview(ctx, "missing"); ok {
		t.Error("unexpected cache hit")
	}
	rc.SetPreview(ctx, "file-1:a.txt", "words")
	if content, ok, _ := rc.GetPreview(ctx, "file-1:a.txt"); !ok || content != "words" {
		t.Errorf("GetPreview = %q, %v", content, ok)
	}
}

func TestTiDBNodes(t *testing.T) {
	dsn := os.Getenv("TEST_TIDB_DSN")
	if dsn == "" {
		t.Skip("TEST_TIDB_DSN not set")
	}
	tc, err := NewTiDBClient(dsn)
	if err != nil {
		t.Fatalf("NewTiDBClient: %v", err)
	}
	defer tc.Close()

	ctx := context.Background()
	if err := tc.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	rec := models.NodeRecord{ID: "test-folder", Name: "Test", Type: models.NodeFolder, CreatedAt: time.Now().UTC()}
	tc.DeleteNodes(ctx, []string{rec.ID})
	if err := tc.CreateNode(ctx, rec); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	if err := tc.CreateNode(ctx, rec); err != folders.ErrExists {
		t.Errorf("duplicate CreateNode = %v", err)
	}
	if err := tc.RenameNode(ctx, rec.ID, "Renamed"); err != nil {
		t.Fatalf("RenameNode: %v", err)
	}
	if err := tc.RenameNode(ctx, "missing-node", "x"); err != folders.ErrNotFound {
		t.Errorf("RenameNode(missing) = %v", err)
	}
	if err := tc.DeleteNodes(ctx, []string{rec.ID}); err != nil {
		t.Fatalf("DeleteNodes: %v", err)
	}
}
