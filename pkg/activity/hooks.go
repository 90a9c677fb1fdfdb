package activity

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Event describes one changeset lifecycle occurrence that can be fanned out
// to hooks. IDs are stringly-typed so call sites stay decoupled from any
// specific id scheme; sink adapters parse them as needed.
type Event struct {
	Verb           string
	ActorID        string
	UserID         string
	TenantID       string
	ObjectType     string
	ObjectID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	OccurredAt     time.Time
}

// Normalized returns a copy of the event with whitespace trimmed, metadata
// and recipients cloned, and a timestamp defaulted when missing.
func (e Event) Normalized() Event {
	out := e
	out.Verb = strings.TrimSpace(e.Verb)
	out.ActorID = strings.TrimSpace(e.ActorID)
	out.UserID = strings.TrimSpace(e.UserID)
	out.TenantID = strings.TrimSpace(e.TenantID)
	out.ObjectType = strings.TrimSpace(e.ObjectType)
	out.ObjectID = strings.TrimSpace(e.ObjectID)
	out.Channel = strings.TrimSpace(e.Channel)
	out.DefinitionCode = strings.TrimSpace(e.DefinitionCode)
	out.Metadata = cloneMap(e.Metadata)
	if len(e.Recipients) > 0 {
		out.Recipients = append([]string{}, e.Recipients...)
	} else {
		out.Recipients = nil
	}
	if out.OccurredAt.IsZero() {
		out.OccurredAt = time.Now()
	}
	return out
}

// routable reports whether the event carries the fields hooks need.
func (e Event) routable() bool {
	return e.Verb != "" && e.ObjectType != "" && e.ObjectID != ""
}

// Hook receives normalized changeset lifecycle events.
type Hook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc adapts a plain function to Hook.
type HookFunc func(ctx context.Context, event Event) error

// Notify dispatches to the underlying function.
func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Hooks fans out events to zero or more hooks.
type Hooks []Hook

// Enabled reports whether there are any hooks to notify.
func (h Hooks) Enabled() bool {
	return len(h) > 0
}

// Notify normalizes the event and forwards it to every hook, returning a
// joined error if any fail. Events missing required routing fields are
// dropped silently.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if len(h) == 0 {
		return nil
	}

	normalized := event.Normalized()
	if !normalized.routable() {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var errs []error
	for _, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, normalized); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
