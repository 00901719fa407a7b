package props

// SearchOptions controls how a property is resolved against a container.
type SearchOptions struct {
	// SearchInParent continues into ParentSource on a local miss.
	SearchInParent bool
	// CalculateValue invokes the property calculator when no container
	// defines the property.
	CalculateValue bool
	// UseDefaultValue falls back to the property default.
	UseDefaultValue bool
	// ReturnNotDefined yields a NotDefined sentinel instead of absence.
	ReturnNotDefined bool
	// PropertyComparer matches requested against stored properties.
	PropertyComparer PropertyComparer
}

// DefaultSearchOptions returns the options used when none are supplied.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		SearchInParent:   true,
		CalculateValue:   true,
		UseDefaultValue:  true,
		PropertyComparer: ByReferenceOrNameAndType,
	}
}

// SearchOption mutates SearchOptions.
type SearchOption func(*SearchOptions)

// WithSearchInParent toggles parent chain traversal.
func WithSearchInParent(enabled bool) SearchOption {
	return func(o *SearchOptions) {
		o.SearchInParent = enabled
	}
}

// WithCalculateValue toggles calculator invocation.
func WithCalculateValue(enabled bool) SearchOption {
	return func(o *SearchOptions) {
		o.CalculateValue = enabled
	}
}

// WithUseDefaultValue toggles the default value fallback.
func WithUseDefaultValue(enabled bool) SearchOption {
	return func(o *SearchOptions) {
		o.UseDefaultValue = enabled
	}
}

// WithReturnNotDefined makes absence produce a NotDefined sentinel.
func WithReturnNotDefined(enabled bool) SearchOption {
	return func(o *SearchOptions) {
		o.ReturnNotDefined = enabled
	}
}

// WithComparer selects the property matching strategy. A nil comparer keeps
// the current one.
func WithComparer(comparer PropertyComparer) SearchOption {
	return func(o *SearchOptions) {
		if comparer != nil {
			o.PropertyComparer = comparer
		}
	}
}

// WithSearchOptions replaces every field with opts.
func WithSearchOptions(opts SearchOptions) SearchOption {
	return func(o *SearchOptions) {
		*o = opts
	}
}

// DefinedOnly restricts resolution to explicitly stored values in the
// container chain.
func DefinedOnly() SearchOption {
	return func(o *SearchOptions) {
		o.CalculateValue = false
		o.UseDefaultValue = false
	}
}

// LocalOnly restricts resolution to the container itself.
func LocalOnly() SearchOption {
	return func(o *SearchOptions) {
		o.SearchInParent = false
		o.CalculateValue = false
		o.UseDefaultValue = false
	}
}

func applySearchOptions(opts []SearchOption) SearchOptions {
	cfg := DefaultSearchOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.PropertyComparer == nil {
		cfg.PropertyComparer = ByReferenceOrNameAndType
	}
	return cfg
}
