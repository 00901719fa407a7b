package props

import (
	"context"
	"fmt"

	"github.com/goliatone/go-props/pkg/activity"
	"github.com/google/uuid"
)

// MutableContainer is changed in place. It is not safe for concurrent
// mutation; callers must serialise writers.
type MutableContainer struct {
	id     string
	values []PropertyValue
	cfg    containerConfig
}

var (
	_ Container       = (*MutableContainer)(nil)
	_ ScopedContainer = (*MutableContainer)(nil)
)

// NewMutableContainer creates an empty mutable container.
func NewMutableContainer(opts ...ContainerOption) *MutableContainer {
	return &MutableContainer{
		id:  uuid.NewString(),
		cfg: applyContainerOptions(opts),
	}
}

// ID identifies the container in activity events.
func (c *MutableContainer) ID() string {
	if c == nil {
		return ""
	}
	return c.id
}

func (c *MutableContainer) Properties() []PropertyValue {
	if c == nil || len(c.values) == 0 {
		return nil
	}
	return append([]PropertyValue(nil), c.values...)
}

func (c *MutableContainer) entries() []PropertyValue {
	if c == nil {
		return nil
	}
	return c.values
}

func (c *MutableContainer) Count() int {
	if c == nil {
		return 0
	}
	return len(c.values)
}

func (c *MutableContainer) ParentSource() Container {
	if c == nil {
		return nil
	}
	return c.cfg.parent
}

func (c *MutableContainer) Scope() Scope {
	if c == nil {
		return Scope{}
	}
	return c.cfg.scope.clone()
}

func (c *MutableContainer) SnapshotID() string {
	if c == nil {
		return ""
	}
	return c.cfg.snapshotID
}

// Resolver returns the resolver pinned with WithResolver, if any.
func (c *MutableContainer) Resolver() *Resolver {
	if c == nil {
		return nil
	}
	return c.cfg.resolver
}

// Add appends pv without looking for an existing entry. Earlier entries for
// the same property keep shadowing it.
func (c *MutableContainer) Add(pv PropertyValue) error {
	return c.AddWithContext(context.Background(), pv)
}

// AddWithContext is Add with a context passed to activity hooks.
func (c *MutableContainer) AddWithContext(ctx context.Context, pv PropertyValue) error {
	if pv.IsZero() {
		return ErrPropertyRequired
	}
	c.values = append(c.values, pv)
	return c.emit(ctx, activity.BuildPropertySetEvent, pv.property, nil, pv)
}

// Set replaces the first entry matching pv's property under the replace
// comparer, or appends pv when none matches.
func (c *MutableContainer) Set(pv PropertyValue) error {
	return c.SetWithContext(context.Background(), pv)
}

// SetWithContext is Set with a context passed to activity hooks. A hook
// failure is returned after the value has been stored.
func (c *MutableContainer) SetWithContext(ctx context.Context, pv PropertyValue) error {
	if pv.IsZero() {
		return ErrPropertyRequired
	}
	var old any
	if i := indexOf(c.values, pv.property, c.cfg.replaceComparer()); i >= 0 {
		old = c.values[i].value
		c.values[i] = pv
	} else {
		c.values = append(c.values, pv)
	}
	return c.emit(ctx, activity.BuildPropertySetEvent, pv.property, old, pv)
}

// SetUntyped validates value against p and stores it as Defined.
func (c *MutableContainer) SetUntyped(p UntypedProperty, value any) error {
	pv, err := NewPropertyValue(p, value, SourceDefined)
	if err != nil {
		return err
	}
	return c.Set(pv)
}

// SetValue stores v for p as Defined.
func SetValue[T any](c *MutableContainer, p *Property[T], v T) error {
	return c.Set(ValueOf(p, v))
}

// Remove deletes the first entry matching p and reports whether one existed.
func (c *MutableContainer) Remove(p UntypedProperty) (bool, error) {
	if isNilProperty(p) {
		return false, ErrPropertyRequired
	}
	i := indexOf(c.values, p, c.cfg.replaceComparer())
	if i < 0 {
		return false, nil
	}
	removed := c.values[i]
	c.values = append(c.values[:i:i], c.values[i+1:]...)
	return true, c.emit(context.Background(), activity.BuildPropertyRemovedEvent, removed.property, removed.value, PropertyValue{})
}

// SetParent relinks the container. A nil parent detaches it.
func (c *MutableContainer) SetParent(parent Container) error {
	previous := c.cfg.parent
	c.cfg.parent = normalizeContainer(parent)
	if !c.cfg.emitter.Enabled() {
		return nil
	}
	input := c.eventInput()
	input.OldValue = containerID(previous)
	input.NewValue = containerID(c.cfg.parent)
	return c.cfg.emitter.Emit(context.Background(), activity.BuildParentChangedEvent(input))
}

// Freeze returns an immutable copy of the current state. opts are applied
// on top of the container's own configuration.
func (c *MutableContainer) Freeze(opts ...ContainerOption) *ImmutableContainer {
	frozen := &ImmutableContainer{cfg: c.cfg}
	frozen.cfg.emitter = nil
	if len(c.values) > 0 {
		frozen.values = append([]PropertyValue(nil), c.values...)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&frozen.cfg)
		}
	}
	return frozen
}

func (c *MutableContainer) emit(ctx context.Context, build func(activity.PropertyEventInput) activity.Event, p UntypedProperty, old any, pv PropertyValue) error {
	if !c.cfg.emitter.Enabled() {
		return nil
	}
	input := c.eventInput()
	input.Property = p.Name()
	input.PropertyType = typeString(p.Type())
	input.OldValue = old
	if !pv.IsZero() {
		input.NewValue = pv.value
		input.Source = pv.source.String()
	}
	if err := c.cfg.emitter.Emit(ctx, build(input)); err != nil {
		return fmt.Errorf("props: activity for %q: %w", p.Name(), err)
	}
	return nil
}

func (c *MutableContainer) eventInput() activity.PropertyEventInput {
	scope := c.cfg.scope
	return activity.PropertyEventInput{
		ContainerID: c.id,
		Scope: activity.ScopeContext{
			Name:       scope.Name,
			Label:      scope.Label,
			Priority:   scope.Priority,
			Metadata:   copyMetadata(scope.Metadata),
			SnapshotID: c.cfg.snapshotID,
		},
	}
}

func containerID(c Container) string {
	switch typed := c.(type) {
	case nil:
		return ""
	case interface{ ID() string }:
		return typed.ID()
	case ScopedContainer:
		if id := typed.SnapshotID(); id != "" {
			return id
		}
		return typed.Scope().Name
	}
	return ""
}
