// Package state defines persistence-facing contracts for loading and saving
// per-scope property snapshots, plus a small resolver that turns stored
// snapshots into a linked container chain.
//
// Responsibilities:
//   - Store only loads/saves a single snapshot for a single Ref.
//   - Resolver decodes snapshots against a props.Schema and links them by
//     constructing props.Layer values and a props.Stack.
//   - The core props package remains persistence-agnostic; all persistence
//     logic stays behind Store implementations supplied by consumers.
//
// Data flow:
//
//	Store -> Resolver -> props.NewStack(...).Build(...) -> *props.ImmutableContainer
//
// Provenance:
//
//	Meta.SnapshotID is mapped onto props.Layer.SnapshotID (via
//	props.WithLayerSnapshotID) and from there onto each container, which makes
//	it observable through props.ResolveWithTrace.
//
// Deterministic keys:
//
//	Ref.Identifier() provides a canonical storage key format based on the
//	scope model (`system/tenant/org/team/user`).
package state
