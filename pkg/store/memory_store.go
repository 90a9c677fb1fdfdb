package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a minimal in-memory Store implementation intended for tests
// and examples. It detects stale ETags and mints a fresh SnapshotID/ETag pair
// on every save.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
}

type memoryRecord struct {
	fields Fields
	meta   Meta
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]memoryRecord{}}
}

func (s *MemoryStore) Load(_ context.Context, key string) (Fields, Meta, bool, error) {
	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return nil, Meta{}, false, nil
	}
	return record.fields.Clone(), cloneMeta(record.meta), true, nil
}

func (s *MemoryStore) Save(_ context.Context, key string, fields Fields, meta Meta) (Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[key]; ok {
		if meta.ETag != "" && existing.meta.ETag != "" && meta.ETag != existing.meta.ETag {
			return Meta{}, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, existing.meta.ETag, meta.ETag)
		}
	}

	saved := Meta{
		SnapshotID: uuid.NewString(),
		ETag:       uuid.NewString(),
		UpdatedAt:  time.Now(),
		Extra:      cloneExtra(meta.Extra),
	}
	s.records[key] = memoryRecord{fields: fields.Clone(), meta: cloneMeta(saved)}
	return saved, nil
}

func cloneMeta(meta Meta) Meta {
	out := meta
	out.Extra = cloneExtra(meta.Extra)
	return out
}

func cloneExtra(extra map[string]string) map[string]string {
	if extra == nil {
		return nil
	}
	out := make(map[string]string, len(extra))
	for k, v := range extra {
		out[k] = v
	}
	return out
}
