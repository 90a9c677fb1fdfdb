package activity

import (
	"strings"
	"time"
)

// ChangesetEventInput describes the common fields for changeset lifecycle
// events. Key/OldValue/NewValue/Reason describe per-field proposals; Keys
// lists the pending fields touched by buffer-wide operations.
type ChangesetEventInput struct {
	ActorID        string
	UserID         string
	TenantID       string
	ObjectID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	Key            string
	Keys           []string
	OldValue       any
	NewValue       any
	Reason         string
	OccurredAt     time.Time
}

// BuildChangeProposedEvent constructs a normalized activity event for a field
// proposal that passed validation.
func BuildChangeProposedEvent(input ChangesetEventInput) Event {
	return buildChangesetEvent("changeset.proposed", "changeset.field", input)
}

// BuildChangeRejectedEvent constructs a normalized activity event for a field
// proposal the validator rejected.
func BuildChangeRejectedEvent(input ChangesetEventInput) Event {
	return buildChangesetEvent("changeset.rejected", "changeset.field", input)
}

// BuildChangesetExecutedEvent constructs an activity event describing pending
// changes being written onto the record.
func BuildChangesetExecutedEvent(input ChangesetEventInput) Event {
	return buildChangesetEvent("changeset.executed", "changeset", input)
}

// BuildChangesetSavedEvent constructs an activity event describing a
// successful persistence of the record.
func BuildChangesetSavedEvent(input ChangesetEventInput) Event {
	return buildChangesetEvent("changeset.saved", "changeset", input)
}

// BuildChangesetRolledBackEvent constructs an activity event describing the
// discard of all pending changes and errors.
func BuildChangesetRolledBackEvent(input ChangesetEventInput) Event {
	return buildChangesetEvent("changeset.rolled_back", "changeset", input)
}

func buildChangesetEvent(verb, objectType string, input ChangesetEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.Key != "" {
		metadata = ensureMetadata(metadata)
		metadata["key"] = input.Key
	}
	if len(input.Keys) > 0 {
		metadata = ensureMetadata(metadata)
		metadata["keys"] = append([]string{}, input.Keys...)
	}
	if input.OldValue != nil {
		metadata = ensureMetadata(metadata)
		metadata["old_value"] = input.OldValue
	}
	if input.NewValue != nil {
		metadata = ensureMetadata(metadata)
		metadata["new_value"] = input.NewValue
	}
	if input.Reason != "" {
		metadata = ensureMetadata(metadata)
		metadata["reason"] = input.Reason
	}

	recipients := input.Recipients
	if len(recipients) > 0 {
		recipients = append([]string{}, input.Recipients...)
	}

	objectID := strings.TrimSpace(input.ObjectID)
	if objectID == "" {
		objectID = strings.TrimSpace(input.Key)
	}
	if objectID == "" {
		objectID = objectType
	}

	return Event{
		Verb:           verb,
		ActorID:        strings.TrimSpace(input.ActorID),
		UserID:         strings.TrimSpace(input.UserID),
		TenantID:       strings.TrimSpace(input.TenantID),
		ObjectType:     objectType,
		ObjectID:       objectID,
		Channel:        strings.TrimSpace(input.Channel),
		DefinitionCode: strings.TrimSpace(input.DefinitionCode),
		Recipients:     recipients,
		Metadata:       metadata,
		OccurredAt:     input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
