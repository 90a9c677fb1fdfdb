package store

import (
	"context"
	"errors"
	"time"
)

// ErrETagMismatch indicates a save carried a stale ETag.
var ErrETagMismatch = errors.New("store: etag mismatch")

// Fields is one keyed record snapshot.
type Fields map[string]any

// Clone returns a shallow copy of the snapshot.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for key, value := range f {
		out[key] = value
	}
	return out
}

// Meta is storage-owned metadata used for trace/audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads/saves one field snapshot for a single record key.
type Store interface {
	Load(ctx context.Context, key string) (fields Fields, meta Meta, ok bool, err error)
	Save(ctx context.Context, key string, fields Fields, meta Meta) (Meta, error)
}
