package props

import (
	"encoding/json"
)

// Trace captures how each container in a chain contributed to a resolved
// property.
type Trace struct {
	Property string       `json:"property"`
	Found    bool         `json:"found"`
	Source   ValueSource  `json:"source"`
	Value    any          `json:"value,omitempty"`
	Layers   []Provenance `json:"layers"`
}

// Provenance details one container visited while tracing.
type Provenance struct {
	Scope      Scope       `json:"scope"`
	SnapshotID string      `json:"snapshot_id,omitempty"`
	Depth      int         `json:"depth"`
	Value      any         `json:"value,omitempty"`
	Source     ValueSource `json:"source"`
	Found      bool        `json:"found"`
}

// ResolveWithTrace resolves p like GetPropertyValueUntyped and also reports
// every container of the chain, including the ones shadowed by the winning
// value. The chain is walked fully even when SearchInParent is off so the
// trace shows what was skipped.
func ResolveWithTrace(c Container, p UntypedProperty, opts ...SearchOption) (PropertyValue, Trace, error) {
	if isNilProperty(p) {
		return PropertyValue{}, Trace{}, ErrPropertyRequired
	}
	pv, ok, err := GetPropertyValueUntyped(c, p, opts...)
	if err != nil {
		return PropertyValue{}, Trace{}, err
	}
	chain, err := chainOf(c, p.Name())
	if err != nil {
		return PropertyValue{}, Trace{}, err
	}

	match := matcherFor(p, applySearchOptions(opts).PropertyComparer)
	trace := Trace{Property: p.Name(), Layers: make([]Provenance, 0, len(chain))}
	if ok {
		trace.Found = pv.IsDefined()
		trace.Source = pv.source
		trace.Value = pv.value
	}
	for depth, container := range chain {
		scope, snapshotID := scopeOf(container)
		layer := Provenance{Scope: scope, SnapshotID: snapshotID, Depth: depth}
		for _, entry := range entriesOf(container) {
			if match(entry.property) {
				layer.Found = true
				layer.Value = entry.value
				layer.Source = entry.source
				break
			}
		}
		trace.Layers = append(trace.Layers, layer)
	}
	return pv, trace, nil
}

// ToJSON serialises the trace into JSON for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a JSON payload that was previously generated via
// ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}
