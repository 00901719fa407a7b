// Package openapi renders a props.Schema as an OpenAPI 3 document whose single
// operation accepts the property payload, so form and client generators can
// consume the declared properties.
package openapi

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	props "github.com/goliatone/go-props"
)

var (
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
)

// Generator builds OpenAPI documents from property schemas.
type Generator struct {
	config generatorConfig
}

// NewGenerator constructs a Generator.
func NewGenerator(opts ...GeneratorOption) *Generator {
	cfg := defaultGeneratorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Generator{config: cfg}
}

// Generate renders schema. Each property becomes an object field keyed by its
// name; aliases, metadata and calculators are exposed through x- extensions
// and calculated properties are marked readOnly.
func (g *Generator) Generate(schema *props.Schema) (map[string]any, error) {
	if schema == nil {
		return nil, fmt.Errorf("openapi: schema cannot be nil")
	}
	object, err := objectSchema(schema)
	if err != nil {
		return nil, err
	}
	return newDocumentBuilder(g.config, object).build()
}

// Generate renders schema with a default Generator.
func Generate(schema *props.Schema, opts ...GeneratorOption) (map[string]any, error) {
	return NewGenerator(opts...).Generate(schema)
}

func objectSchema(schema *props.Schema) (map[string]any, error) {
	properties := make(map[string]any, schema.Len())
	for _, p := range schema.Properties() {
		field, err := propertySchema(p)
		if err != nil {
			return nil, err
		}
		properties[p.Name()] = field
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
	}, nil
}

func propertySchema(p props.UntypedProperty) (map[string]any, error) {
	out := typeSchema(p.Type(), nil)
	if desc := strings.TrimSpace(p.Description()); desc != "" {
		out["description"] = desc
	}
	if p.HasCalculator() {
		out["readOnly"] = true
		out["x-calculated"] = true
	}
	if alias := p.Alias(); alias != "" {
		out["x-alias"] = alias
	}
	if metadata := p.Metadata(); len(metadata) > 0 {
		out["x-metadata"] = metadata
	}
	value, ok, err := props.DefaultOf(p)
	if err != nil {
		return nil, fmt.Errorf("openapi: default for %q: %w", p.Name(), err)
	}
	if ok {
		out["default"] = defaultLiteral(value)
	}
	return out, nil
}

// typeSchema maps a Go type onto an OpenAPI schema. seen guards recursive
// struct types, which are rendered as open objects on re-entry.
func typeSchema(t reflect.Type, seen map[reflect.Type]bool) map[string]any {
	if t == nil {
		return map[string]any{}
	}
	switch t {
	case timeType:
		return map[string]any{"type": "string", "format": "date-time"}
	case durationType:
		return map[string]any{"type": "string", "format": "duration"}
	}

	switch t.Kind() {
	case reflect.Pointer:
		out := typeSchema(t.Elem(), seen)
		out["nullable"] = true
		return out
	case reflect.Interface:
		return map[string]any{}
	case reflect.Bool:
		return map[string]any{"type": "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return map[string]any{"type": "integer", "format": "int32"}
	case reflect.Int64, reflect.Uint64, reflect.Uintptr:
		return map[string]any{"type": "integer", "format": "int64"}
	case reflect.Float32:
		return map[string]any{"type": "number", "format": "float"}
	case reflect.Float64:
		return map[string]any{"type": "number", "format": "double"}
	case reflect.String:
		return map[string]any{"type": "string"}
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return map[string]any{"type": "string", "format": "byte"}
		}
		return map[string]any{"type": "array", "items": typeSchema(t.Elem(), seen)}
	case reflect.Map:
		out := map[string]any{"type": "object"}
		if t.Key().Kind() == reflect.String {
			out["additionalProperties"] = typeSchema(t.Elem(), seen)
		}
		return out
	case reflect.Struct:
		return structSchema(t, seen)
	default:
		return map[string]any{
			"type":   "string",
			"format": fmt.Sprintf("go:%s", t.String()),
		}
	}
}

func structSchema(t reflect.Type, seen map[reflect.Type]bool) map[string]any {
	if seen[t] {
		return map[string]any{"type": "object"}
	}
	if seen == nil {
		seen = map[reflect.Type]bool{}
	}
	seen[t] = true
	defer delete(seen, t)

	properties := map[string]any{}
	var required []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		omitEmpty := false
		if tag := field.Tag.Get("json"); tag != "" {
			parts := strings.Split(tag, ",")
			if parts[0] == "-" {
				continue
			}
			if parts[0] != "" {
				name = parts[0]
			}
			for _, part := range parts[1:] {
				if part == "omitempty" {
					omitEmpty = true
				}
			}
		}
		properties[name] = typeSchema(field.Type, seen)
		if !omitEmpty && field.Type.Kind() != reflect.Pointer {
			required = append(required, name)
		}
	}
	out := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sort.Strings(required)
		out["required"] = required
	}
	return out
}

// defaultLiteral renders values that do not marshal to the declared format.
func defaultLiteral(value any) any {
	switch v := value.(type) {
	case time.Duration:
		return v.String()
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	}
	return value
}
