package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	props "github.com/goliatone/go-props"
	"github.com/goliatone/go-props/internal/hydrate"
)

var ErrETagMismatch = errors.New("state: etag mismatch")

// DefaultsScopeName is reserved for the layer built by ResolveWithDefaults.
const DefaultsScopeName = "defaults"

// Ref identifies one persisted snapshot for one property domain.
type Ref struct {
	Domain string
	Scope  props.Scope
}

// Meta is storage-owned metadata used for trace/audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads/saves one snapshot for a single scope reference. Snapshots are
// payloads keyed by property name or alias.
type Store interface {
	Load(ctx context.Context, ref Ref) (snapshot map[string]any, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot map[string]any, meta Meta) (Meta, error)
}

// Resolver loads scoped snapshots, decodes them against Schema and links them
// into a container chain.
type Resolver struct {
	Store  Store
	Schema *props.Schema
	// Strict rejects snapshot keys that are not in Schema.
	Strict bool
	// Validate runs on the mutated container before Mutate saves it.
	Validate func(props.Container) error
	// Options apply to every container the resolver builds.
	Options []props.ContainerOption
}

// Mutator edits the container loaded for one scope.
type Mutator func(*props.MutableContainer) error

func (r Ref) Identifier() (string, error) {
	switch r.Scope.Name {
	case "system":
		return fmt.Sprintf("system/%s", r.Domain), nil
	case "tenant", "org", "team", "user":
		metadataKey := r.Scope.Name + "_id"
		id, ok := r.Scope.Metadata[metadataKey]
		if !ok {
			return "", fmt.Errorf("missing metadata key %q for scope %q", metadataKey, r.Scope.Name)
		}
		idString, ok := id.(string)
		if !ok || idString == "" {
			return "", fmt.Errorf("missing metadata key %q for scope %q", metadataKey, r.Scope.Name)
		}
		return fmt.Sprintf("%s/%s/%s", r.Scope.Name, idString, r.Domain), nil
	default:
		return "", fmt.Errorf("unsupported scope name %q", r.Scope.Name)
	}
}

func (r Resolver) check(domain string) error {
	if r.Store == nil {
		return fmt.Errorf("state: store is required")
	}
	if r.Schema == nil {
		return fmt.Errorf("state: schema is required")
	}
	if domain == "" {
		return fmt.Errorf("state: domain is required")
	}
	return nil
}

func (r Resolver) decoder() *hydrate.Decoder {
	var opts []hydrate.DecoderOption
	if r.Strict {
		opts = append(opts, hydrate.WithDisallowUnknown())
	}
	return hydrate.NewDecoder(r.Schema, opts...)
}

// Resolve loads the snapshot of every scope and returns the strongest
// container of the resulting chain. Scopes without a stored snapshot are
// skipped.
func (r Resolver) Resolve(ctx context.Context, domain string, scopes ...props.Scope) (*props.ImmutableContainer, error) {
	if err := r.check(domain); err != nil {
		return nil, err
	}
	if len(scopes) == 0 {
		return nil, fmt.Errorf("state: at least one scope is required")
	}

	layers, err := r.loadLayers(ctx, domain, scopes)
	if err != nil {
		return nil, err
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("state: no layers found for domain %q", domain)
	}
	return r.build(layers)
}

// ResolveWithDefaults is Resolve with an extra weakest layer decoded from
// defaults. The defaults layer is placed below every requested scope.
func (r Resolver) ResolveWithDefaults(ctx context.Context, domain string, defaults map[string]any, scopes ...props.Scope) (*props.ImmutableContainer, error) {
	if err := r.check(domain); err != nil {
		return nil, err
	}

	prioritySet := make(map[int]struct{}, len(scopes)+1)
	minPriority := 0
	if len(scopes) > 0 {
		minPriority = scopes[0].Priority
	}
	for _, scope := range scopes {
		if scope.Name == DefaultsScopeName {
			return nil, fmt.Errorf("state: scope name %q is reserved", DefaultsScopeName)
		}
		prioritySet[scope.Priority] = struct{}{}
		if scope.Priority < minPriority {
			minPriority = scope.Priority
		}
	}

	defaultsPriority := 0
	if len(scopes) > 0 {
		defaultsPriority = minPriority - 1
		for {
			if _, ok := prioritySet[defaultsPriority]; !ok {
				break
			}
			defaultsPriority--
		}
	}

	layers, err := r.loadLayers(ctx, domain, scopes)
	if err != nil {
		return nil, err
	}

	defaultsScope := props.NewScope(DefaultsScopeName, defaultsPriority, props.WithScopeLabel("Defaults"))
	if defaults == nil {
		defaults = map[string]any{}
	}
	values, err := r.decoder().Decode(hydrate.Context{Source: domain + "/" + DefaultsScopeName, Scope: DefaultsScopeName}, defaults)
	if err != nil {
		return nil, fmt.Errorf("state: decode defaults for %q: %w", domain, err)
	}
	layers = append(layers, props.NewLayer(defaultsScope, values))
	return r.build(layers)
}

func (r Resolver) loadLayers(ctx context.Context, domain string, scopes []props.Scope) ([]props.Layer, error) {
	decoder := r.decoder()
	layers := make([]props.Layer, 0, len(scopes)+1)
	for _, scope := range scopes {
		ref := Ref{Domain: domain, Scope: scope}
		snapshot, meta, ok, err := r.Store.Load(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("state: load %q for scope %q: %w", domain, scope.Name, err)
		}
		if !ok {
			continue
		}
		values, err := decoder.Decode(hydrateContext(ref, meta), snapshot)
		if err != nil {
			return nil, fmt.Errorf("state: decode %q for scope %q: %w", domain, scope.Name, err)
		}
		layers = append(layers, props.NewLayer(scope, values, props.WithLayerSnapshotID(meta.SnapshotID)))
	}
	return layers, nil
}

func (r Resolver) build(layers []props.Layer) (*props.ImmutableContainer, error) {
	stack, err := props.NewStack(layers...)
	if err != nil {
		return nil, fmt.Errorf("state: stack: %w", err)
	}
	return stack.Build(r.Options...)
}

// Mutate loads one snapshot, applies fn to it as a mutable container,
// validates the result, then saves. The returned container is frozen with the
// saved snapshot ID and has no parent.
func (r Resolver) Mutate(ctx context.Context, ref Ref, meta Meta, fn Mutator) (*props.ImmutableContainer, Meta, error) {
	if err := r.check(ref.Domain); err != nil {
		return nil, Meta{}, err
	}
	if ref.Scope.Name == "" {
		return nil, Meta{}, fmt.Errorf("state: scope name is required")
	}
	if fn == nil {
		return nil, Meta{}, fmt.Errorf("state: mutator is required")
	}

	snapshot, loadedMeta, ok, err := r.Store.Load(ctx, ref)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("state: load %q for scope %q: %w", ref.Domain, ref.Scope.Name, err)
	}
	if !ok {
		snapshot = nil
		loadedMeta = Meta{}
	}

	if meta.ETag != "" && loadedMeta.ETag != "" && meta.ETag != loadedMeta.ETag {
		return nil, loadedMeta, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loadedMeta.ETag)
	}

	decoder := r.decoder()
	containerOpts := append(r.Options[:len(r.Options):len(r.Options)], props.WithScope(ref.Scope), props.WithSnapshotID(loadedMeta.SnapshotID))
	mutable, err := decoder.DecodeMutable(hydrateContext(ref, loadedMeta), snapshot, containerOpts...)
	if err != nil {
		return nil, loadedMeta, fmt.Errorf("state: decode %q for scope %q: %w", ref.Domain, ref.Scope.Name, err)
	}

	if err := fn(mutable); err != nil {
		return nil, loadedMeta, err
	}

	payload := hydrate.Encode(mutable)
	// every stored property must still belong to the schema
	if _, err := hydrate.NewDecoder(r.Schema, hydrate.WithDisallowUnknown()).Decode(hydrateContext(ref, loadedMeta), payload); err != nil {
		return nil, loadedMeta, err
	}
	if r.Validate != nil {
		if err := r.Validate(mutable); err != nil {
			return nil, loadedMeta, err
		}
	}

	saveMeta := mergeMeta(loadedMeta, meta)
	savedMeta, err := r.Store.Save(ctx, ref, payload, saveMeta)
	if err != nil {
		return nil, loadedMeta, fmt.Errorf("state: save %q for scope %q: %w", ref.Domain, ref.Scope.Name, err)
	}

	frozen := mutable.Freeze(props.WithSnapshotID(savedMeta.SnapshotID), props.WithParent(nil))
	return frozen, savedMeta, nil
}

func hydrateContext(ref Ref, meta Meta) hydrate.Context {
	source := meta.SnapshotID
	if source == "" {
		if id, err := ref.Identifier(); err == nil {
			source = id
		} else {
			source = ref.Domain
		}
	}
	return hydrate.Context{Source: source, Scope: ref.Scope.Name}
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}
