package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/GTDGit/passport_api/internal/models"
)

// RedisSnapshotStore keeps passport snapshots in Redis without expiry.
// Keys: passport:{id}:original and passport:{id}:translated
type RedisSnapshotStore struct {
	redis *RedisClient
}

// NewRedisSnapshotStore creates a new RedisSnapshotStore.
func NewRedisSnapshotStore(redis *RedisClient) *RedisSnapshotStore {
	return &RedisSnapshotStore{redis: redis}
}

func (s *RedisSnapshotStore) key(id int64, slot string) string {
	return fmt.Sprintf("passport:%d:%s", id, slot)
}

// WriteOriginal stores the original payload.
func (s *RedisSnapshotStore) WriteOriginal(ctx context.Context, id int64, p *models.Payload) error {
	return s.write(ctx, s.key(id, slotOriginal), p)
}

// WriteTranslated stores the translated payload.
func (s *RedisSnapshotStore) WriteTranslated(ctx context.Context, id int64, p *models.Payload) error {
	return s.write(ctx, s.key(id, slotTranslated), p)
}

// ReadOriginal returns the original payload or nil.
func (s *RedisSnapshotStore) ReadOriginal(ctx context.Context, id int64) (*models.Payload, error) {
	return s.read(ctx, s.key(id, slotOriginal))
}

// ReadTranslated returns the translated payload or nil.
func (s *RedisSnapshotStore) ReadTranslated(ctx context.Context, id int64) (*models.Payload, error) {
	return s.read(ctx, s.key(id, slotTranslated))
}

// InvalidateTranslated drops the translated payload.
func (s *RedisSnapshotStore) InvalidateTranslated(ctx context.Context, id int64) error {
	return s.redis.Delete(ctx, s.key(id, slotTranslated))
}

// Delete drops both slots.
func (s *RedisSnapshotStore) Delete(ctx context.Context, id int64) error {
	return s.redis.Delete(ctx, s.key(id, slotOriginal), s.key(id, slotTranslated))
}

func (s *RedisSnapshotStore) write(ctx context.Context, key string, p *models.Payload) error {
	raw, err := encodeSnapshot(p)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, key, string(raw), 0); err != nil {
		return fmt.Errorf("failed to store snapshot %s: %w", key, err)
	}
	return nil
}

func (s *RedisSnapshotStore) read(ctx context.Context, key string) (*models.Payload, error) {
	raw, err := s.redis.Get(ctx, key)
	if errors.Is(err, ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %s: %w", key, err)
	}
	return decodeSnapshot([]byte(raw))
}
