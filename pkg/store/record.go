package store

import (
	"context"
	"fmt"
	"sync"
)

// Record is a store-backed keyed record. It satisfies the changeset Record
// contract through Get/Set and the Saver contract through Save, so a
// changeset wrapping it persists through the underlying Store.
type Record struct {
	mu     sync.Mutex
	store  Store
	key    string
	fields Fields
	meta   Meta
}

// NewRecord constructs a record around fields without touching the store.
// The first Save creates the stored snapshot.
func NewRecord(s Store, key string, fields Fields) *Record {
	return &Record{
		store:  s,
		key:    key,
		fields: fields.Clone(),
	}
}

// Open loads the record for key from the store, or starts an empty one when
// the store has no snapshot yet.
func Open(ctx context.Context, s Store, key string) (*Record, error) {
	if s == nil {
		return nil, fmt.Errorf("store: store is required")
	}
	if key == "" {
		return nil, fmt.Errorf("store: key is required")
	}
	fields, meta, ok, err := s.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("store: load %q: %w", key, err)
	}
	if !ok {
		fields = Fields{}
		meta = Meta{}
	}
	return &Record{
		store:  s,
		key:    key,
		fields: fields,
		meta:   meta,
	}, nil
}

// Key returns the record's storage key.
func (r *Record) Key() string {
	return r.key
}

// Get returns the value stored under field, or nil when absent.
func (r *Record) Get(field string) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fields[field]
}

// Set stores value under field in memory; Save persists it.
func (r *Record) Set(field string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fields == nil {
		r.fields = Fields{}
	}
	r.fields[field] = value
}

// Fields returns a copy of the current field snapshot.
func (r *Record) Fields() Fields {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fields.Clone()
}

// Meta returns the storage metadata from the last load or save.
func (r *Record) Meta() Meta {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneMeta(r.meta)
}

// Save persists the current field snapshot through the store, carrying the
// last-seen metadata so stores can detect conflicts. On success the record
// adopts the storage-assigned metadata; on failure it is left unchanged.
func (r *Record) Save(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	r.mu.Lock()
	fields := r.fields.Clone()
	meta := cloneMeta(r.meta)
	r.mu.Unlock()

	saved, err := r.store.Save(ctx, r.key, fields, meta)
	if err != nil {
		return fmt.Errorf("store: save %q: %w", r.key, err)
	}

	r.mu.Lock()
	r.meta = cloneMeta(saved)
	r.mu.Unlock()
	return nil
}
