package props

import (
	"fmt"
	"reflect"
	"strings"
)

// ValueSource records where a resolved value came from.
type ValueSource int

const (
	// SourceNotDefined marks the sentinel returned when nothing matched.
	SourceNotDefined ValueSource = iota
	// SourceDefined marks a value explicitly stored in a container.
	SourceDefined
	// SourceCalculated marks a value produced by the property calculator.
	SourceCalculated
	// SourceDefaultValue marks a value produced by the property default.
	SourceDefaultValue
)

var sourceNames = [...]string{
	SourceNotDefined:   "not_defined",
	SourceDefined:      "defined",
	SourceCalculated:   "calculated",
	SourceDefaultValue: "default_value",
}

func (s ValueSource) String() string {
	if s < 0 || int(s) >= len(sourceNames) {
		return fmt.Sprintf("ValueSource(%d)", int(s))
	}
	return sourceNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s ValueSource) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(sourceNames) {
		return nil, fmt.Errorf("props: unknown value source %d", int(s))
	}
	return []byte(sourceNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ValueSource) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for i, candidate := range sourceNames {
		if candidate == name {
			*s = ValueSource(i)
			return nil
		}
	}
	return fmt.Errorf("props: unknown value source %q", string(text))
}

// PropertyValue is an immutable (property, value, source) triple.
type PropertyValue struct {
	property UntypedProperty
	value    any
	source   ValueSource
}

// NewPropertyValue validates that value can be stored under p.
// A nil value is accepted only for nilable property types.
func NewPropertyValue(p UntypedProperty, value any, source ValueSource) (PropertyValue, error) {
	if isNilProperty(p) {
		return PropertyValue{}, ErrPropertyRequired
	}
	if err := checkAssignable(p.Type(), value); err != nil {
		return PropertyValue{}, withProperty(err, p.Name())
	}
	return PropertyValue{property: p, value: value, source: source}, nil
}

// MustPropertyValue is like NewPropertyValue but panics on error.
func MustPropertyValue(p UntypedProperty, value any, source ValueSource) PropertyValue {
	pv, err := NewPropertyValue(p, value, source)
	if err != nil {
		panic(err)
	}
	return pv
}

// ValueOf builds a Defined value. It cannot fail since v is already a T.
func ValueOf[T any](p *Property[T], v T) PropertyValue {
	if p == nil {
		return PropertyValue{}
	}
	return PropertyValue{property: p, value: v, source: SourceDefined}
}

func notDefined(p UntypedProperty) PropertyValue {
	return PropertyValue{property: p, value: zeroOf(p.Type()), source: SourceNotDefined}
}

func (pv PropertyValue) Property() UntypedProperty { return pv.property }
func (pv PropertyValue) Value() any                 { return pv.value }
func (pv PropertyValue) Source() ValueSource        { return pv.source }

// IsDefined reports whether the value came from any source other than the
// NotDefined sentinel.
func (pv PropertyValue) IsDefined() bool {
	return pv.property != nil && pv.source != SourceNotDefined
}

// IsZero reports whether pv is the zero PropertyValue (no property attached).
func (pv PropertyValue) IsZero() bool {
	return pv.property == nil
}

func (pv PropertyValue) String() string {
	if pv.property == nil {
		return "<empty>"
	}
	return fmt.Sprintf("%s=%v (%s)", pv.property.Name(), pv.value, pv.source)
}

// TypedValue is the typed view of a resolved PropertyValue.
type TypedValue[T any] struct {
	Property UntypedProperty
	Value    T
	Source   ValueSource
}

// IsDefined reports whether Source is anything but NotDefined.
func (tv *TypedValue[T]) IsDefined() bool {
	return tv != nil && tv.Source != SourceNotDefined
}

// Untyped converts tv back to a PropertyValue.
func (tv *TypedValue[T]) Untyped() PropertyValue {
	if tv == nil {
		return PropertyValue{}
	}
	return PropertyValue{property: tv.Property, value: tv.Value, source: tv.Source}
}

func typed[T any](pv PropertyValue) (*TypedValue[T], error) {
	tv := &TypedValue[T]{Property: pv.property, Source: pv.source}
	if pv.value == nil {
		return tv, nil
	}
	value, ok := pv.value.(T)
	if !ok {
		return nil, &TypeMismatchError{
			Property: pv.property.Name(),
			Want:     reflect.TypeFor[T](),
			Got:      reflect.TypeOf(pv.value),
		}
	}
	tv.Value = value
	return tv, nil
}

func checkAssignable(want reflect.Type, value any) error {
	if want == nil {
		return nil
	}
	if value == nil {
		if nilable(want) {
			return nil
		}
		return &TypeMismatchError{Want: want}
	}
	got := reflect.TypeOf(value)
	if got.AssignableTo(want) {
		return nil
	}
	return &TypeMismatchError{Want: want, Got: got}
}

func nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

func zeroOf(t reflect.Type) any {
	if t == nil || t.Kind() == reflect.Interface {
		return nil
	}
	return reflect.Zero(t).Interface()
}
