package props

import (
	"reflect"
	"strings"
)

type searchFlags uint8

const (
	flagSearchInParent searchFlags = 1 << iota
	flagCalculate
	flagUseDefault
	flagReturnNotDefined
)

func flagsOf(opts SearchOptions) searchFlags {
	var flags searchFlags
	if opts.SearchInParent {
		flags |= flagSearchInParent
	}
	if opts.CalculateValue {
		flags |= flagCalculate
	}
	if opts.UseDefaultValue {
		flags |= flagUseDefault
	}
	if opts.ReturnNotDefined {
		flags |= flagReturnNotDefined
	}
	return flags
}

// planKey identifies a plan. Properties are keyed by instance, so copies of a
// property sharing an ID still get their own plan.
type planKey struct {
	property UntypedProperty
	comparer any
	flags    searchFlags
}

// searchPlan is the per (property, options) resolution recipe.
type searchPlan struct {
	property       UntypedProperty
	match          func(stored UntypedProperty) bool
	searchInParent bool
	calculate      bool
	useDefault     bool
	notDefined     bool
}

func newSearchPlan(p UntypedProperty, opts SearchOptions) *searchPlan {
	return &searchPlan{
		property:       p,
		match:          matcherFor(p, opts.PropertyComparer),
		searchInParent: opts.SearchInParent,
		calculate:      opts.CalculateValue && p.HasCalculator(),
		useDefault:     opts.UseDefaultValue && p.HasDefault(),
		notDefined:     opts.ReturnNotDefined,
	}
}

// matcherFor specialises the built-in comparers so the scan avoids repeated
// interface calls on the requested property.
func matcherFor(p UntypedProperty, comparer PropertyComparer) func(UntypedProperty) bool {
	name, typ := p.Name(), p.Type()
	switch comparer.(type) {
	case byReference:
		return func(stored UntypedProperty) bool { return stored == p }
	case byName:
		return func(stored UntypedProperty) bool { return stored != nil && stored.Name() == name }
	case byNameIgnoreCase:
		return func(stored UntypedProperty) bool { return stored != nil && strings.EqualFold(stored.Name(), name) }
	case byNameAndType:
		return func(stored UntypedProperty) bool {
			return stored != nil && stored.Name() == name && stored.Type() == typ
		}
	case byReferenceOrNameAndType:
		return func(stored UntypedProperty) bool {
			if stored == p {
				return true
			}
			return stored != nil && stored.Name() == name && stored.Type() == typ
		}
	}
	return func(stored UntypedProperty) bool { return comparer.Equal(p, stored) }
}

// comparerKey returns the plan cache key for comparer. Only the built-in
// comparers and CacheableComparer implementations with a hashable key are
// cached.
func comparerKey(comparer PropertyComparer) (any, bool) {
	switch c := comparer.(type) {
	case byReference, byName, byNameIgnoreCase, byNameAndType, byNameOrAlias, byReferenceOrNameAndType:
		return comparer, true
	case CacheableComparer:
		key := c.CacheKey()
		if key == nil || !hashable(reflect.ValueOf(key)) {
			return nil, false
		}
		return customKey{typ: reflect.TypeOf(comparer), key: key}, true
	}
	return nil, false
}

// customKey scopes a CacheKey to the comparer type that produced it.
type customKey struct {
	typ reflect.Type
	key any
}

func hashable(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Func, reflect.Map, reflect.Slice:
		return false
	case reflect.Interface:
		return v.IsNil() || hashable(v.Elem())
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if !hashable(v.Index(i)) {
				return false
			}
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if !hashable(v.Field(i)) {
				return false
			}
		}
	}
	return true
}
