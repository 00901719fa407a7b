package props

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
)

// UntypedProperty is the type-erased view every Property implements. It is
// what containers store and what comparers inspect.
type UntypedProperty interface {
	ID() string
	Name() string
	Alias() string
	Description() string
	Type() reflect.Type
	HasDefault() bool
	HasCalculator() bool
	Metadata() map[string]any

	defaultUntyped() (any, error)
	calculateUntyped(Container) (any, error)
}

// Calculator derives a property value from the container being searched.
type Calculator[T any] func(Container) (T, error)

// DefaultFunc lazily produces a fallback value.
type DefaultFunc[T any] func() (T, error)

// Property describes a named, typed slot independent of any container.
// Properties are immutable: every With method returns a new Property with a
// fresh ID.
type Property[T any] struct {
	id          string
	name        string
	alias       string
	description string
	typ         reflect.Type
	defaultFn   DefaultFunc[T]
	calculator  Calculator[T]
	metadata    map[string]any
}

// NewProperty creates a property named name holding values of type T.
func NewProperty[T any](name string) *Property[T] {
	return &Property[T]{
		id:   uuid.NewString(),
		name: name,
		typ:  reflect.TypeFor[T](),
	}
}

func (p *Property[T]) ID() string          { return p.id }
func (p *Property[T]) Name() string        { return p.name }
func (p *Property[T]) Alias() string       { return p.alias }
func (p *Property[T]) Description() string { return p.description }
func (p *Property[T]) Type() reflect.Type  { return p.typ }
func (p *Property[T]) HasDefault() bool    { return p.defaultFn != nil }
func (p *Property[T]) HasCalculator() bool { return p.calculator != nil }

// Metadata returns a copy of the attached metadata.
func (p *Property[T]) Metadata() map[string]any {
	return copyMetadata(p.metadata)
}

// Default returns the calculated default value. ok is false when the property
// has no default.
func (p *Property[T]) Default() (value T, ok bool, err error) {
	if p.defaultFn == nil {
		return value, false, nil
	}
	value, err = p.defaultFn()
	return value, true, err
}

// Calculator returns the configured calculator or nil.
func (p *Property[T]) Calculator() Calculator[T] {
	return p.calculator
}

func (p *Property[T]) String() string {
	return fmt.Sprintf("%s(%s)", p.name, typeString(p.typ))
}

func (p *Property[T]) clone() *Property[T] {
	next := *p
	next.id = uuid.NewString()
	next.metadata = copyMetadata(p.metadata)
	return &next
}

// WithName returns a copy renamed to name.
func (p *Property[T]) WithName(name string) *Property[T] {
	next := p.clone()
	next.name = name
	return next
}

// WithDescription returns a copy carrying description.
func (p *Property[T]) WithDescription(description string) *Property[T] {
	next := p.clone()
	next.description = description
	return next
}

// WithAlias returns a copy with an alternate name.
func (p *Property[T]) WithAlias(alias string) *Property[T] {
	next := p.clone()
	next.alias = alias
	return next
}

// WithDefault returns a copy whose default value is value.
func (p *Property[T]) WithDefault(value T) *Property[T] {
	return p.WithDefaultFunc(func() (T, error) { return value, nil })
}

// WithDefaultFunc returns a copy whose default is produced lazily by fn.
// A nil fn clears the default.
func (p *Property[T]) WithDefaultFunc(fn DefaultFunc[T]) *Property[T] {
	next := p.clone()
	next.defaultFn = fn
	return next
}

// WithCalculator returns a copy whose value is derived by fn when no
// container in the chain defines it. A nil fn clears the calculator.
func (p *Property[T]) WithCalculator(fn Calculator[T]) *Property[T] {
	next := p.clone()
	next.calculator = fn
	return next
}

// WithMetadata returns a copy with key set in its metadata.
func (p *Property[T]) WithMetadata(key string, value any) *Property[T] {
	next := p.clone()
	if next.metadata == nil {
		next.metadata = make(map[string]any, 1)
	}
	next.metadata[key] = value
	return next
}

// DefaultOf evaluates the default of p. ok is false when p declares none.
func DefaultOf(p UntypedProperty) (value any, ok bool, err error) {
	if isNilProperty(p) || !p.HasDefault() {
		return nil, false, nil
	}
	value, err = p.defaultUntyped()
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (p *Property[T]) defaultUntyped() (any, error) {
	if p.defaultFn == nil {
		return nil, nil
	}
	return p.defaultFn()
}

func (p *Property[T]) calculateUntyped(c Container) (any, error) {
	if p.calculator == nil {
		return nil, nil
	}
	return p.calculator(c)
}

func copyMetadata(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func isNilProperty(p UntypedProperty) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
