package props

// Flatten copies every property visible from c into a parentless immutable
// container. Each property keeps its first value found walking child to
// parent, together with its original Source. Properties are deduplicated
// with the search comparer; SearchInParent=false flattens c alone.
func Flatten(c Container, opts ...SearchOption) (*ImmutableContainer, error) {
	if isNilContainer(c) {
		return nil, ErrContainerRequired
	}
	cfg := applySearchOptions(opts)
	chain, err := chainOf(c, "")
	if err != nil {
		return nil, err
	}
	if !cfg.SearchInParent {
		chain = chain[:1]
	}

	var values []PropertyValue
	for _, container := range chain {
		for _, entry := range entriesOf(container) {
			if indexOf(values, entry.property, cfg.PropertyComparer) >= 0 {
				continue
			}
			values = append(values, entry)
		}
	}
	return &ImmutableContainer{values: values, cfg: flattenedConfig(c)}, nil
}

// FlattenSchema resolves every property of schema against c, running
// calculators and defaults as the search options allow. Properties that
// resolve to nothing are left out unless ReturnNotDefined is set.
func FlattenSchema(c Container, schema *Schema, opts ...SearchOption) (*ImmutableContainer, error) {
	if isNilContainer(c) {
		return nil, ErrContainerRequired
	}
	resolver := resolverFor(c)
	var values []PropertyValue
	for _, p := range schema.Properties() {
		pv, ok, err := resolver.Resolve(c, p, opts...)
		if err != nil {
			return nil, err
		}
		if ok {
			values = append(values, pv)
		}
	}
	return &ImmutableContainer{values: values, cfg: flattenedConfig(c)}, nil
}

func flattenedConfig(c Container) containerConfig {
	scope, snapshotID := scopeOf(c)
	cfg := containerConfig{scope: scope, snapshotID: snapshotID}
	if owner, ok := c.(interface{ Resolver() *Resolver }); ok {
		cfg.resolver = owner.Resolver()
	}
	return cfg
}
