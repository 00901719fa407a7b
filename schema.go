package props

import (
	"fmt"
	"reflect"
	"strings"
)

// FieldDescriptor describes one schema property for tooling.
type FieldDescriptor struct {
	Name        string `json:"name"`
	Alias       string `json:"alias,omitempty"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	HasDefault  bool   `json:"has_default,omitempty"`
	Calculated  bool   `json:"calculated,omitempty"`
}

// Schema is an ordered set of properties with unique names and aliases.
// It is immutable and safe for concurrent use.
type Schema struct {
	properties []UntypedProperty
	byName     map[string]UntypedProperty
	byFold     map[string]UntypedProperty
}

// NewSchema builds a schema. Names and aliases must be unique ignoring case.
func NewSchema(properties ...UntypedProperty) (*Schema, error) {
	s := &Schema{
		properties: make([]UntypedProperty, 0, len(properties)),
		byName:     make(map[string]UntypedProperty, len(properties)),
		byFold:     make(map[string]UntypedProperty, len(properties)),
	}
	for i, p := range properties {
		if isNilProperty(p) {
			return nil, fmt.Errorf("%w: schema entry %d", ErrPropertyRequired, i)
		}
		keys := []string{p.Name()}
		if alias := p.Alias(); alias != "" {
			keys = append(keys, alias)
		}
		for _, key := range keys {
			folded := strings.ToLower(key)
			if _, exists := s.byFold[folded]; exists {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateProperty, key)
			}
			s.byFold[folded] = p
			s.byName[key] = p
		}
		s.properties = append(s.properties, p)
	}
	return s, nil
}

// MustSchema is like NewSchema but panics on error.
func MustSchema(properties ...UntypedProperty) *Schema {
	s, err := NewSchema(properties...)
	if err != nil {
		panic(err)
	}
	return s
}

// Lookup finds a property by exact name or alias, then ignoring case.
func (s *Schema) Lookup(name string) (UntypedProperty, bool) {
	if s == nil {
		return nil, false
	}
	if p, ok := s.byName[name]; ok {
		return p, true
	}
	p, ok := s.byFold[strings.ToLower(name)]
	return p, ok
}

// PropertyOf returns the schema property named name when it holds T.
func PropertyOf[T any](s *Schema, name string) (*Property[T], error) {
	p, ok := s.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	typedProp, ok := p.(*Property[T])
	if !ok {
		return nil, &TypeMismatchError{Property: p.Name(), Want: reflect.TypeFor[T](), Got: p.Type()}
	}
	return typedProp, nil
}

// Properties returns the properties in declaration order.
func (s *Schema) Properties() []UntypedProperty {
	if s == nil {
		return nil
	}
	return append([]UntypedProperty(nil), s.properties...)
}

// Len returns the number of properties.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.properties)
}

// Describe returns descriptors in declaration order.
func (s *Schema) Describe() []FieldDescriptor {
	if s == nil {
		return nil
	}
	out := make([]FieldDescriptor, 0, len(s.properties))
	for _, p := range s.properties {
		out = append(out, FieldDescriptor{
			Name:        p.Name(),
			Alias:       p.Alias(),
			Type:        typeString(p.Type()),
			Description: p.Description(),
			HasDefault:  p.HasDefault(),
			Calculated:  p.HasCalculator(),
		})
	}
	return out
}
