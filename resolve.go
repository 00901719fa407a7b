package props

import "fmt"

// resolverFor returns the resolver pinned on c, or the default one.
func resolverFor(c Container) *Resolver {
	if owner, ok := c.(interface{ Resolver() *Resolver }); ok && !isNilContainer(c) {
		if r := owner.Resolver(); r != nil {
			return r
		}
	}
	return DefaultResolver()
}

// GetPropertyValue resolves p against c. It returns nil when nothing matched,
// or a NotDefined value when WithReturnNotDefined is set. Errors are reserved
// for cyclic chains, failing calculators or defaults, and type mismatches.
func GetPropertyValue[T any](c Container, p *Property[T], opts ...SearchOption) (*TypedValue[T], error) {
	if p == nil {
		return nil, ErrPropertyRequired
	}
	pv, ok, err := resolverFor(c).Resolve(c, p, opts...)
	if err != nil || !ok {
		return nil, err
	}
	return typed[T](pv)
}

// GetValue resolves p against c and returns T's zero value when nothing
// matched.
func GetValue[T any](c Container, p *Property[T], opts ...SearchOption) (T, error) {
	var zero T
	tv, err := GetPropertyValue(c, p, opts...)
	if err != nil || tv == nil {
		return zero, err
	}
	return tv.Value, nil
}

// RequireValue is GetValue for callers that treat absence as an error. The
// NotDefined sentinel also counts as absent.
func RequireValue[T any](c Container, p *Property[T], opts ...SearchOption) (T, error) {
	var zero T
	tv, err := GetPropertyValue(c, p, opts...)
	if err != nil {
		return zero, err
	}
	if !tv.IsDefined() {
		return zero, fmt.Errorf("%w: %s", ErrNotFound, p.Name())
	}
	return tv.Value, nil
}

// GetPropertyValueUntyped is the type-erased form of GetPropertyValue for
// adapters that only hold an UntypedProperty.
func GetPropertyValueUntyped(c Container, p UntypedProperty, opts ...SearchOption) (PropertyValue, bool, error) {
	return resolverFor(c).Resolve(c, p, opts...)
}

// GetValueUntyped returns the resolved value, or nil when nothing matched.
func GetValueUntyped(c Container, p UntypedProperty, opts ...SearchOption) (any, error) {
	pv, ok, err := GetPropertyValueUntyped(c, p, opts...)
	if err != nil || !ok {
		return nil, err
	}
	return pv.value, nil
}

// Has reports whether p resolves to a stored value in c or its ancestors.
// Calculators and defaults are not consulted.
func Has(c Container, p UntypedProperty, opts ...SearchOption) (bool, error) {
	opts = append(opts[:len(opts):len(opts)], DefinedOnly(), WithReturnNotDefined(false))
	_, ok, err := GetPropertyValueUntyped(c, p, opts...)
	return ok, err
}
