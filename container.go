package props

import (
	"fmt"
	"reflect"

	"github.com/goliatone/go-props/pkg/activity"
)

// Container is an ordered collection of property values with an optional
// parent used as a fallback during resolution.
type Container interface {
	// Properties returns the stored values in insertion order. Callers may
	// modify the returned slice.
	Properties() []PropertyValue
	Count() int
	ParentSource() Container
}

// entrySource is implemented by containers that can expose their values
// without copying. The returned slice must not be modified.
type entrySource interface {
	entries() []PropertyValue
}

// ScopedContainer is implemented by containers that carry scope metadata.
type ScopedContainer interface {
	Scope() Scope
	SnapshotID() string
}

func entriesOf(c Container) []PropertyValue {
	if src, ok := c.(entrySource); ok {
		return src.entries()
	}
	return c.Properties()
}

func scopeOf(c Container) (Scope, string) {
	if scoped, ok := c.(ScopedContainer); ok {
		return scoped.Scope(), scoped.SnapshotID()
	}
	return Scope{}, ""
}

// isNilContainer reports nil interfaces and typed nil pointers.
func isNilContainer(c Container) bool {
	if c == nil {
		return true
	}
	v := reflect.ValueOf(c)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

func normalizeContainer(c Container) Container {
	if isNilContainer(c) {
		return nil
	}
	return c
}

type containerConfig struct {
	parent     Container
	scope      Scope
	snapshotID string
	resolver   *Resolver
	comparer   PropertyComparer
	emitter    *activity.Emitter
}

// ContainerOption configures a container at construction.
type ContainerOption func(*containerConfig)

// WithParent links the container to a parent. The parent is shared, never
// copied.
func WithParent(parent Container) ContainerOption {
	return func(cfg *containerConfig) {
		cfg.parent = normalizeContainer(parent)
	}
}

// WithScope tags the container with scope metadata reported in traces and
// activity events.
func WithScope(scope Scope) ContainerOption {
	return func(cfg *containerConfig) {
		cfg.scope = scope.clone()
	}
}

// WithSnapshotID records the identifier of the snapshot the container was
// loaded from.
func WithSnapshotID(id string) ContainerOption {
	return func(cfg *containerConfig) {
		cfg.snapshotID = id
	}
}

// WithResolver pins the resolver used by the package-level accessors when
// this container is the search root.
func WithResolver(resolver *Resolver) ContainerOption {
	return func(cfg *containerConfig) {
		cfg.resolver = resolver
	}
}

// WithReplaceComparer sets the comparer used to find the entry replaced by
// Set and With. Defaults to ByReferenceOrNameAndType.
func WithReplaceComparer(comparer PropertyComparer) ContainerOption {
	return func(cfg *containerConfig) {
		cfg.comparer = comparer
	}
}

// WithActivity attaches an emitter notified on mutable container changes.
func WithActivity(emitter *activity.Emitter) ContainerOption {
	return func(cfg *containerConfig) {
		cfg.emitter = emitter
	}
}

func applyContainerOptions(opts []ContainerOption) containerConfig {
	cfg := containerConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (cfg containerConfig) replaceComparer() PropertyComparer {
	if cfg.comparer != nil {
		return cfg.comparer
	}
	return ByReferenceOrNameAndType
}

// ImmutableContainer never changes after construction and is safe for
// concurrent reads. With methods return a new container sharing the parent.
type ImmutableContainer struct {
	values []PropertyValue
	cfg    containerConfig
}

var (
	_ Container       = (*ImmutableContainer)(nil)
	_ ScopedContainer = (*ImmutableContainer)(nil)
)

// NewContainer builds an immutable container holding a copy of values.
func NewContainer(values []PropertyValue, opts ...ContainerOption) (*ImmutableContainer, error) {
	for i, pv := range values {
		if pv.IsZero() {
			return nil, fmt.Errorf("%w: entry %d has no property", ErrPropertyRequired, i)
		}
	}
	c := &ImmutableContainer{cfg: applyContainerOptions(opts)}
	if len(values) > 0 {
		c.values = append(make([]PropertyValue, 0, len(values)), values...)
	}
	return c, nil
}

// MustContainer is like NewContainer but panics on error.
func MustContainer(values []PropertyValue, opts ...ContainerOption) *ImmutableContainer {
	c, err := NewContainer(values, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *ImmutableContainer) Properties() []PropertyValue {
	if c == nil || len(c.values) == 0 {
		return nil
	}
	return append([]PropertyValue(nil), c.values...)
}

func (c *ImmutableContainer) entries() []PropertyValue {
	if c == nil {
		return nil
	}
	return c.values
}

func (c *ImmutableContainer) Count() int {
	if c == nil {
		return 0
	}
	return len(c.values)
}

func (c *ImmutableContainer) ParentSource() Container {
	if c == nil {
		return nil
	}
	return c.cfg.parent
}

func (c *ImmutableContainer) Scope() Scope {
	if c == nil {
		return Scope{}
	}
	return c.cfg.scope.clone()
}

func (c *ImmutableContainer) SnapshotID() string {
	if c == nil {
		return ""
	}
	return c.cfg.snapshotID
}

// Resolver returns the resolver pinned with WithResolver, if any.
func (c *ImmutableContainer) Resolver() *Resolver {
	if c == nil {
		return nil
	}
	return c.cfg.resolver
}

// With returns a copy where the first entry matching pv's property is
// replaced, or pv appended when none matches.
func (c *ImmutableContainer) With(pv PropertyValue) (*ImmutableContainer, error) {
	if pv.IsZero() {
		return nil, ErrPropertyRequired
	}
	var cfg containerConfig
	var current []PropertyValue
	if c != nil {
		cfg = c.cfg
		current = c.values
	}
	next := make([]PropertyValue, len(current), len(current)+1)
	copy(next, current)
	if i := indexOf(next, pv.property, cfg.replaceComparer()); i >= 0 {
		next[i] = pv
	} else {
		next = append(next, pv)
	}
	return &ImmutableContainer{values: next, cfg: cfg}, nil
}

// WithUntyped validates value against p and returns a copy holding it.
func (c *ImmutableContainer) WithUntyped(p UntypedProperty, value any) (*ImmutableContainer, error) {
	pv, err := NewPropertyValue(p, value, SourceDefined)
	if err != nil {
		return nil, err
	}
	return c.With(pv)
}

// WithParent returns a copy linked to parent.
func (c *ImmutableContainer) WithParent(parent Container) *ImmutableContainer {
	next := &ImmutableContainer{}
	if c != nil {
		next.values = c.values
		next.cfg = c.cfg
	}
	next.cfg.parent = normalizeContainer(parent)
	return next
}

// WithValue returns a copy of c holding v for p. It panics when p is nil.
func WithValue[T any](c *ImmutableContainer, p *Property[T], v T) *ImmutableContainer {
	next, err := c.With(ValueOf(p, v))
	if err != nil {
		panic(err)
	}
	return next
}

func indexOf(values []PropertyValue, p UntypedProperty, comparer PropertyComparer) int {
	for i := range values {
		if comparer.Equal(p, values[i].property) {
			return i
		}
	}
	return -1
}
