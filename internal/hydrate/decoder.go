package hydrate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	props "github.com/goliatone/go-props"
)

var (
	// ErrUnknownKey is returned when DisallowUnknown is set and a payload key
	// has no schema property.
	ErrUnknownKey = errors.New("hydrate: unknown key")
	// ErrDuplicateKey is returned when two payload keys name the same property.
	ErrDuplicateKey = errors.New("hydrate: duplicate key")
)

// Context identifies the payload being decoded in errors and hooks.
type Context struct {
	Source string
	Scope  string
}

// PreHook lets callers mutate or normalise the payload before decoding.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook lets callers adjust or validate the decoded values.
type PostHook func(Context, []props.PropertyValue) ([]props.PropertyValue, error)

// DecoderOption configures a Decoder instance.
type DecoderOption func(*Decoder)

// Decoder converts loosely typed payloads (JSON, YAML, stored snapshots) into
// property values described by a schema.
type Decoder struct {
	schema          *props.Schema
	preHooks        []PreHook
	postHooks       []PostHook
	useNumber       bool
	disallowUnknown bool
}

// WithPreHook applies hook prior to decoding.
func WithPreHook(hook PreHook) DecoderOption {
	return func(d *Decoder) {
		d.preHooks = append(d.preHooks, hook)
	}
}

// WithPostHook applies hook after decoding completes.
func WithPostHook(hook PostHook) DecoderOption {
	return func(d *Decoder) {
		d.postHooks = append(d.postHooks, hook)
	}
}

// WithUseNumber keeps JSON numbers as json.Number while cloning payloads so
// large integers survive conversion.
func WithUseNumber() DecoderOption {
	return func(d *Decoder) {
		d.useNumber = true
	}
}

// WithDisallowUnknown rejects payload keys the schema does not know.
func WithDisallowUnknown() DecoderOption {
	return func(d *Decoder) {
		d.disallowUnknown = true
	}
}

// NewDecoder builds a decoder for schema.
func NewDecoder(schema *props.Schema, opts ...DecoderOption) *Decoder {
	d := &Decoder{schema: schema}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode converts payload into values ordered as the schema declares them.
// Keys are matched by name or alias, ignoring case. Values are coerced with
// props.ConvertTo and stored as Defined.
func (d *Decoder) Decode(ctx Context, payload map[string]any) ([]props.PropertyValue, error) {
	if payload == nil {
		return nil, fmt.Errorf("hydrate: payload is nil for source %q", ctx.Source)
	}
	if d.schema == nil {
		return nil, fmt.Errorf("hydrate: schema is required for source %q", ctx.Source)
	}

	current, err := clonePayload(payload, d.useNumber)
	if err != nil {
		return nil, fmt.Errorf("hydrate: clone payload for source %q: %w", ctx.Source, err)
	}

	for _, hook := range d.preHooks {
		if hook == nil {
			continue
		}
		next, err := hook(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("hydrate: pre-hook for source %q failed: %w", ctx.Source, err)
		}
		if next != nil {
			current = next
		}
	}

	keys := make([]string, 0, len(current))
	for key := range current {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	byProperty := make(map[props.UntypedProperty]string, len(keys))
	for _, key := range keys {
		p, ok := d.schema.Lookup(key)
		if !ok {
			if d.disallowUnknown {
				return nil, fmt.Errorf("%w: %q in source %q", ErrUnknownKey, key, ctx.Source)
			}
			continue
		}
		if previous, exists := byProperty[p]; exists {
			return nil, fmt.Errorf("%w: %q and %q in source %q", ErrDuplicateKey, previous, key, ctx.Source)
		}
		byProperty[p] = key
	}

	values := make([]props.PropertyValue, 0, len(byProperty))
	for _, p := range d.schema.Properties() {
		key, ok := byProperty[p]
		if !ok {
			continue
		}
		converted, err := props.ConvertTo(current[key], p.Type())
		if err != nil {
			return nil, fmt.Errorf("hydrate: decode %q in source %q: %w", key, ctx.Source, err)
		}
		pv, err := props.NewPropertyValue(p, converted, props.SourceDefined)
		if err != nil {
			return nil, fmt.Errorf("hydrate: decode %q in source %q: %w", key, ctx.Source, err)
		}
		values = append(values, pv)
	}

	for _, hook := range d.postHooks {
		if hook == nil {
			continue
		}
		next, err := hook(ctx, values)
		if err != nil {
			return nil, fmt.Errorf("hydrate: post-hook for source %q failed: %w", ctx.Source, err)
		}
		if next != nil {
			values = next
		}
	}
	return values, nil
}

// DecodeJSON reads a JSON object from r and decodes it.
func (d *Decoder) DecodeJSON(ctx Context, r io.Reader) ([]props.PropertyValue, error) {
	dec := json.NewDecoder(r)
	if d.useNumber {
		dec.UseNumber()
	}
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("hydrate: read source %q: %w", ctx.Source, err)
	}
	return d.Decode(ctx, payload)
}

// DecodeContainer decodes payload into an immutable container.
func (d *Decoder) DecodeContainer(ctx Context, payload map[string]any, opts ...props.ContainerOption) (*props.ImmutableContainer, error) {
	values, err := d.Decode(ctx, payload)
	if err != nil {
		return nil, err
	}
	return props.NewContainer(values, opts...)
}

// DecodeMutable decodes payload into a new mutable container. A nil payload
// yields an empty container.
func (d *Decoder) DecodeMutable(ctx Context, payload map[string]any, opts ...props.ContainerOption) (*props.MutableContainer, error) {
	c := props.NewMutableContainer(opts...)
	if payload == nil {
		return c, nil
	}
	values, err := d.Decode(ctx, payload)
	if err != nil {
		return nil, err
	}
	for _, pv := range values {
		if err := c.Add(pv); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Encode turns the values stored directly in c into a payload keyed by
// property name. Parents are not consulted and the first entry per name wins.
func Encode(c props.Container) map[string]any {
	out := make(map[string]any, c.Count())
	for _, pv := range c.Properties() {
		name := pv.Property().Name()
		if _, exists := out[name]; exists {
			continue
		}
		out[name] = pv.Value()
	}
	return out
}

func clonePayload(payload map[string]any, useNumber bool) (map[string]any, error) {
	buffer, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(buffer))
	if useNumber {
		dec.UseNumber()
	}
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
