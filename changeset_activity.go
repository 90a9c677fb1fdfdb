package changeset

import "github.com/goliatone/go-changeset/pkg/activity"

// WithActivityHooks attaches activity hooks to the changeset configuration.
// Hooks are cloned and nil entries dropped to preserve immutability.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *config) {
		cfg.activityHooks = normalized
	}
}

// ActivityHooks returns a cloned slice of the activity hooks configured on
// the changeset. The returned slice can be safely mutated by the caller.
func (c *Changeset) ActivityHooks() activity.Hooks {
	if c == nil {
		return nil
	}
	return cloneActivityHooks(c.cfg.activityHooks)
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make(activity.Hooks, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return normalized
}
