package activity

import (
	"strings"
	"time"
)

// Verbs emitted for container changes.
const (
	VerbPropertySet     = "property.value.set"
	VerbPropertyRemoved = "property.value.removed"
	VerbParentChanged   = "property.container.parent_changed"

	ObjectTypeContainer = "property.container"
)

// ScopeContext captures the scope a container belongs to.
type ScopeContext struct {
	Name       string
	Label      string
	Priority   int
	Metadata   map[string]any
	SnapshotID string
}

// PropertyEventInput describes the common fields for container change events.
type PropertyEventInput struct {
	ActorID        string
	UserID         string
	TenantID       string
	ContainerID    string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	Property       string
	PropertyType   string
	Source         string
	OldValue       any
	NewValue       any
	Scope          ScopeContext
	OccurredAt     time.Time
}

// BuildPropertySetEvent describes a value added to or replaced in a container.
func BuildPropertySetEvent(input PropertyEventInput) Event {
	return buildPropertyEvent(VerbPropertySet, input)
}

// BuildPropertyRemovedEvent describes a value removed from a container.
func BuildPropertyRemovedEvent(input PropertyEventInput) Event {
	return buildPropertyEvent(VerbPropertyRemoved, input)
}

// BuildParentChangedEvent describes a container relinked to a new parent.
// OldValue and NewValue carry the parent container identifiers.
func BuildParentChangedEvent(input PropertyEventInput) Event {
	return buildPropertyEvent(VerbParentChanged, input)
}

func buildPropertyEvent(verb string, input PropertyEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.Property != "" {
		metadata = ensureMetadata(metadata)
		metadata["property"] = input.Property
	}
	if input.PropertyType != "" {
		metadata = ensureMetadata(metadata)
		metadata["property_type"] = input.PropertyType
	}
	if input.Source != "" {
		metadata = ensureMetadata(metadata)
		metadata["source"] = input.Source
	}
	if input.Scope.Name != "" {
		metadata = ensureMetadata(metadata)
		metadata["scope_name"] = input.Scope.Name
		metadata["scope_priority"] = input.Scope.Priority
		if input.Scope.Label != "" {
			metadata["scope_label"] = input.Scope.Label
		}
		if len(input.Scope.Metadata) > 0 {
			metadata["scope_metadata"] = cloneMap(input.Scope.Metadata)
		}
	}
	if input.Scope.SnapshotID != "" {
		metadata = ensureMetadata(metadata)
		metadata["snapshot_id"] = input.Scope.SnapshotID
	}
	if input.OldValue != nil {
		metadata = ensureMetadata(metadata)
		metadata["old_value"] = input.OldValue
	}
	if input.NewValue != nil {
		metadata = ensureMetadata(metadata)
		metadata["new_value"] = input.NewValue
	}

	recipients := input.Recipients
	if len(recipients) > 0 {
		recipients = append([]string{}, input.Recipients...)
	}

	objectID := strings.TrimSpace(input.ContainerID)
	if objectID == "" {
		objectID = strings.TrimSpace(input.Scope.SnapshotID)
	}
	if objectID == "" {
		objectID = ObjectTypeContainer
	}

	return Event{
		Verb:           verb,
		ActorID:        strings.TrimSpace(input.ActorID),
		UserID:         strings.TrimSpace(input.UserID),
		TenantID:       strings.TrimSpace(input.TenantID),
		ObjectType:     ObjectTypeContainer,
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
