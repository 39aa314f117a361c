package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/maneesh/fasttranscribe/internal/session"
)

const (
	// PreviewTTL is the time-to-live for cached transcripts (5 minutes)
	PreviewTTL = 5 * time.Minute
)

// RedisClient caches transcripts and holds sessions, with tracing
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient initializes a new Redis client
func NewRedisClient(addr, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test the connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &RedisClient{client: client}, nil
}

// Close closes the Redis connection
func (rc *RedisClient) Close() error {
	return rc.client.Close()
}

// GetPreview reads a cached transcript
func (rc *RedisClient) GetPreview(ctx context.Context, key string) (string, bool, error) {
	ctx, span := tracer.Start(ctx, "redis.get_preview",
		trace.WithAttributes(
			attribute.String("preview_key", key),
		),
	)
	defer span.End()

	data, err := rc.client.Get(ctx, "preview:"+key).Result()
	if err == redis.Nil {
		span.SetAttributes(
			attribute.Bool("cache_hit", false),
			attribute.String("cache_status", "miss"),
		)
		return "", false, nil // Cache miss, not an error
	} else if err != nil {
		span.RecordError(err)
		return "", false, fmt.Errorf("failed to get from cache: %w", err)
	}

	span.SetAttributes(
		attribute.Bool("cache_hit", true),
		attribute.String("cache_status", "hit"),
	)
	return data, true, nil
}

// SetPreview stores a transcript in the cache
func (rc *RedisClient) SetPreview(ctx context.Context, key, content string) error {
	ctx, span := tracer.Start(ctx, "redis.set_preview",
		trace.WithAttributes(
			attribute.String("preview_key", key),
			attribute.Int("size_bytes", len(content)),
		),
	)
	defer span.End()

	if err := rc.client.Set(ctx, "preview:"+key, content, PreviewTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set cache: %w", err)
	}

	span.SetAttributes(
		attribute.Bool("cache_set_success", true),
		attribute.Int64("ttl_seconds", int64(PreviewTTL.Seconds())),
	)
	return nil
}

// SaveSession stores a session until ttl passes
func (rc *RedisClient) SaveSession(ctx context.Context, s *session.Session, ttl time.Duration) error {
	ctx, span := tracer.Start(ctx, "redis.save_session",
		trace.WithAttributes(
			attribute.String("session_id", s.ID),
		),
	)
	defer span.End()

	data, err := json.Marshal(s)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := rc.client.Set(ctx, sessionKey(s.ID), data, ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession loads a session. Unknown or expired IDs return nil, nil.
func (rc *RedisClient) GetSession(ctx context.Context, id string) (*session.Session, error) {
	ctx, span := tracer.Start(ctx, "redis.get_session",
		trace.WithAttributes(
			attribute.String("session_id", id),
		),
	)
	defer span.End()

	data, err := rc.client.Get(ctx, sessionKey(id)).Result()
	if err == redis.Nil {
		span.SetAttributes(attribute.Bool("found", false))
		return nil, nil
	} else if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var s session.Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	span.SetAttributes(attribute.Bool("found", true))
	return &s, nil
}

// DeleteSession removes a session
func (rc *RedisClient) DeleteSession(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "redis.delete_session",
		trace.WithAttributes(
			attribute.String("session_id", id),
		),
	)
	defer span.End()

	if err := rc.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}
