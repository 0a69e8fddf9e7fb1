// Package snapshot persists queue snapshots in a JetStream KV bucket
// backed by file storage, so the state survives restarts without an
// external database.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"
)

const (
	bucketName  = "TURNERO_ESTADO"
	snapshotKey = "snapshot"
)

type KVStore struct {
	kv jetstream.KeyValue
}

// NewKVStore creates (or reuses) the snapshot bucket.
func NewKVStore(ctx context.Context, js jetstream.JetStream) (*KVStore, error) {
	kv, err := js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucketName,
		Description: "Snapshot del estado de la cola de pacientes",
		History:     5,
		MaxBytes:    10 * 1024 * 1024, // 10MB
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("no se pudo crear el KV store %s: %w", bucketName, err)
	}

	slog.Info("KV store de snapshots listo", "bucket", bucketName)
	return &KVStore{kv: kv}, nil
}

func (s *KVStore) Save(ctx context.Context, data []byte) error {
	_, err := s.kv.Put(ctx, snapshotKey, data)
	return err
}

// Load returns the latest snapshot, or (nil, nil) when none was ever
// saved.
func (s *KVStore) Load(ctx context.Context) ([]byte, error) {
	entry, err := s.kv.Get(ctx, snapshotKey)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry.Value(), nil
}
