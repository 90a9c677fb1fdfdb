package changeset

import "context"

// Record is the minimal capability contract a changeset requires from the
// wrapped value: readable and writable access to named fields. Implementations
// are expected per concrete record type; the changeset never reflects over
// arbitrary structs.
type Record interface {
	Get(key string) any
	Set(key string, value any)
}

// Saver is the optional persistence capability. Records that implement it
// have Save invoked by Changeset.Save; records that do not are treated as
// successfully saved no-ops.
type Saver interface {
	Save(ctx context.Context) error
}

// MapRecord is a map-backed Record for plain keyed data, tests, and examples.
// It has no persistence capability.
type MapRecord map[string]any

// Get returns the value stored under key, or nil when absent.
func (r MapRecord) Get(key string) any {
	return r[key]
}

// Set stores value under key.
func (r MapRecord) Set(key string, value any) {
	r[key] = value
}
