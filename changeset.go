package changeset

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goliatone/go-changeset/pkg/activity"
)

// Changeset buffers proposed field changes for one wrapped record. Valid
// proposals are held pending until Execute applies them to the record;
// invalid proposals are recorded on the errors view instead. The record is
// never mutated by anything except Execute/Persist.
type Changeset struct {
	mu      sync.Mutex
	content Record
	cfg     config

	changeKeys []string
	changes    map[string]any
	errorKeys  []string
	errors     map[string]FieldError
}

// New wraps content in a changeset. The record is referenced, not copied;
// pending changes shadow its fields until Execute writes them through.
func New(content Record, opts ...Option) *Changeset {
	return &Changeset{
		content: content,
		cfg:     applyOptions(opts),
		changes: map[string]any{},
		errors:  map[string]FieldError{},
	}
}

// Content returns the wrapped record.
func (c *Changeset) Content() Record {
	return c.content
}

// Get returns the pending value for key when one exists, otherwise the
// record's live value. It never validates and has no side effects.
func (c *Changeset) Get(key string) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

func (c *Changeset) getLocked(key string) any {
	if value, ok := c.changes[key]; ok {
		return value
	}
	return c.content.Get(key)
}

// Set proposes a new value for key. The configured validator is invoked
// exactly once with (key, newValue, oldValue) where oldValue is pending-aware.
// An accepted proposal is stored on the changes view and clears any prior
// error for the key; a rejected one is stored on the errors view and discards
// any prior pending change for the key. Set returns the proposed value either
// way so rejected proposals stay inspectable.
func (c *Changeset) Set(key string, value any) any {
	c.mu.Lock()
	old := c.getLocked(key)

	var verr error
	if c.cfg.validator != nil {
		start := time.Now()
		verr = c.cfg.validator.ValidateField(key, value, old)
		c.validationLogger().LogValidation(ValidationLogEvent{
			Key:      key,
			Value:    value,
			OldValue: old,
			Duration: time.Since(start),
			Err:      verr,
		})
	}

	if verr == nil {
		c.storeChangeLocked(key, value)
	} else {
		c.storeErrorLocked(key, value, verr)
	}
	hooks := c.cfg.activityHooks
	c.mu.Unlock()

	if hooks.Enabled() {
		input := activity.ChangesetEventInput{Key: key, OldValue: old, NewValue: value}
		if verr == nil {
			_ = hooks.Notify(context.Background(), activity.BuildChangeProposedEvent(input))
		} else {
			input.Reason = verr.Error()
			_ = hooks.Notify(context.Background(), activity.BuildChangeRejectedEvent(input))
		}
	}
	return value
}

// Changes returns the pending changes in proposal order. The slice is a copy
// and stable across repeated reads absent mutation.
func (c *Changeset) Changes() []Change {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Change, 0, len(c.changeKeys))
	for _, key := range c.changeKeys {
		out = append(out, Change{Key: key, Value: c.changes[key]})
	}
	return out
}

// Errors returns the rejected proposals in rejection order.
func (c *Changeset) Errors() []FieldError {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]FieldError, 0, len(c.errorKeys))
	for _, key := range c.errorKeys {
		out = append(out, c.errors[key])
	}
	return out
}

// Error returns the error state for a single field, so callers can test one
// key without scanning the Errors slice.
func (c *Changeset) Error(key string) (FieldError, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fieldErr, ok := c.errors[key]
	return fieldErr, ok
}

// Err returns nil when the changeset is valid, otherwise an error joining a
// RejectionError per rejected field in rejection order.
func (c *Changeset) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.errorKeys) == 0 {
		return nil
	}
	errs := make([]error, 0, len(c.errorKeys))
	for _, key := range c.errorKeys {
		fieldErr := c.errors[key]
		errs = append(errs, wrapRejection(fieldErr.Key, fieldErr.Value, fieldErr.Err))
	}
	return errors.Join(errs...)
}

// IsValid reports whether no field currently holds a rejected proposal.
func (c *Changeset) IsValid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errors) == 0
}

// IsInvalid is the negation of IsValid.
func (c *Changeset) IsInvalid() bool {
	return !c.IsValid()
}

// HasChanges reports whether any validated proposals are pending.
func (c *Changeset) HasChanges() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.changes) > 0
}

// Execute writes every pending change onto the record field-by-field. It does
// not clear the changes or errors views; calling it with nothing pending is a
// no-op. Execute returns the changeset for chaining.
func (c *Changeset) Execute() *Changeset {
	c.mu.Lock()
	applied := make([]string, 0, len(c.changeKeys))
	for _, key := range c.changeKeys {
		c.content.Set(key, c.changes[key])
		applied = append(applied, key)
	}
	hooks := c.cfg.activityHooks
	c.mu.Unlock()

	if len(applied) > 0 && hooks.Enabled() {
		_ = hooks.Notify(context.Background(), activity.BuildChangesetExecutedEvent(
			activity.ChangesetEventInput{Keys: applied},
		))
	}
	return c
}

// Save invokes the record's persistence capability when it has one; records
// without one are treated as successfully saved. On success Save clears the
// pending changes that existed when it was invoked — proposals made for other
// keys while the save was in flight survive. On failure both the changes and
// errors views are left untouched for retry, and the error is returned. The
// errors view is never cleared by Save: only valid changes are ever committed,
// so a stale rejection on an untouched field stays visible.
func (c *Changeset) Save(ctx context.Context) error {
	c.mu.Lock()
	snapshot := append([]string(nil), c.changeKeys...)
	c.mu.Unlock()

	if saver, ok := c.content.(Saver); ok {
		if err := saver.Save(ctx); err != nil {
			return err
		}
	}

	c.mu.Lock()
	for _, key := range snapshot {
		c.deleteChangeLocked(key)
	}
	hooks := c.cfg.activityHooks
	c.mu.Unlock()

	if hooks.Enabled() {
		_ = hooks.Notify(ctx, activity.BuildChangesetSavedEvent(
			activity.ChangesetEventInput{Keys: snapshot},
		))
	}
	return nil
}

// Persist is the primary commit path: Execute followed by Save. Its
// success/failure follows Save's contract.
func (c *Changeset) Persist(ctx context.Context) error {
	return c.Execute().Save(ctx)
}

// Rollback unconditionally discards all pending changes and errors. The
// record is untouched. Rollback is idempotent and returns the changeset for
// chaining.
func (c *Changeset) Rollback() *Changeset {
	c.mu.Lock()
	discarded := len(c.changeKeys) > 0 || len(c.errorKeys) > 0
	c.changeKeys = nil
	c.changes = map[string]any{}
	c.errorKeys = nil
	c.errors = map[string]FieldError{}
	hooks := c.cfg.activityHooks
	c.mu.Unlock()

	if discarded && hooks.Enabled() {
		_ = hooks.Notify(context.Background(), activity.BuildChangesetRolledBackEvent(
			activity.ChangesetEventInput{},
		))
	}
	return c
}

func (c *Changeset) validationLogger() ValidationLogger {
	if c.cfg.logger != nil {
		return c.cfg.logger
	}
	return noopValidationLogger{}
}

// A key never holds a change and an error at the same time; the store helpers
// below maintain that invariant.

func (c *Changeset) storeChangeLocked(key string, value any) {
	if _, ok := c.changes[key]; !ok {
		c.changeKeys = append(c.changeKeys, key)
	}
	c.changes[key] = value
	c.deleteErrorLocked(key)
}

func (c *Changeset) storeErrorLocked(key string, value any, err error) {
	if _, ok := c.errors[key]; !ok {
		c.errorKeys = append(c.errorKeys, key)
	}
	c.errors[key] = FieldError{Key: key, Value: value, Err: err}
	c.deleteChangeLocked(key)
}

func (c *Changeset) deleteChangeLocked(key string) {
	if _, ok := c.changes[key]; !ok {
		return
	}
	delete(c.changes, key)
	c.changeKeys = removeKey(c.changeKeys, key)
}

func (c *Changeset) deleteErrorLocked(key string) {
	if _, ok := c.errors[key]; !ok {
		return
	}
	delete(c.errors, key)
	c.errorKeys = removeKey(c.errorKeys, key)
}

func removeKey(keys []string, key string) []string {
	for i, candidate := range keys {
		if candidate == key {
			return append(keys[:i], keys[i+1:]...)
		}
	}
	return keys
}
