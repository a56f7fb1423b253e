package analytics

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-redis/redis/v8"

	"github.com/switchyard-ai/switchyard/core"
)

// FileSnapshotStore persists snapshots as files under one directory.
// Writes go through a temp file and rename to avoid torn snapshots.
type FileSnapshotStore struct {
	dir string
}

// NewFileSnapshotStore creates the directory if needed
func NewFileSnapshotStore(dir string) (*FileSnapshotStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &core.CoreError{
			Op:      "analytics.NewFileSnapshotStore",
			Kind:    "config",
			Message: "snapshot directory not writable",
			Err:     err,
		}
	}
	return &FileSnapshotStore{dir: dir}, nil
}

// Save atomically writes a snapshot
func (s *FileSnapshotStore) Save(ctx context.Context, name string, data []byte) error {
	target := filepath.Join(s.dir, name)
	tmp := target + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, target)
}

// Load reads a snapshot
func (s *FileSnapshotStore) Load(ctx context.Context, name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.dir, name))
}

// RedisSnapshotStore persists snapshots as Redis string values, for
// deployments where routing state should survive pod restarts without
// a mounted volume.
type RedisSnapshotStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisSnapshotStore verifies connectivity before returning
func NewRedisSnapshotStore(ctx context.Context, redisURL, keyPrefix string) (*RedisSnapshotStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, &core.CoreError{
			Op:      "analytics.NewRedisSnapshotStore",
			Kind:    "config",
			Message: "invalid redis URL",
			Err:     err,
		}
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, &core.CoreError{
			Op:   "analytics.NewRedisSnapshotStore",
			Kind: "transport",
			Err:  err,
		}
	}

	if keyPrefix == "" {
		keyPrefix = "switchyard:snapshot:"
	}
	return &RedisSnapshotStore{client: client, keyPrefix: keyPrefix}, nil
}

// Save stores the snapshot under the prefixed key
func (s *RedisSnapshotStore) Save(ctx context.Context, name string, data []byte) error {
	return s.client.Set(ctx, s.keyPrefix+name, data, 0).Err()
}

// Load reads the snapshot; a missing key returns redis.Nil, which
// callers treat as no snapshot.
func (s *RedisSnapshotStore) Load(ctx context.Context, name string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.keyPrefix+name).Bytes()
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Close releases the Redis connection
func (s *RedisSnapshotStore) Close() error {
	return s.client.Close()
}
