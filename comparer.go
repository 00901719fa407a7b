package props

import "strings"

// PropertyComparer decides whether a stored property satisfies a requested
// one. Resolution plans are cached for the built-in comparers and for
// CacheableComparer implementations; any other comparer builds a fresh plan
// on every search.
type PropertyComparer interface {
	Equal(requested, stored UntypedProperty) bool
}

// CacheableComparer lets a custom comparer share cached resolution plans.
// Comparers of the same type returning equal keys must match identically. A nil key, or one
// holding a func, map or slice, disables caching.
type CacheableComparer interface {
	PropertyComparer
	CacheKey() any
}

// PropertyComparerFunc adapts a function to PropertyComparer. Searches using
// one bypass the plan cache.
type PropertyComparerFunc func(requested, stored UntypedProperty) bool

// Equal implements PropertyComparer.
func (f PropertyComparerFunc) Equal(requested, stored UntypedProperty) bool {
	if f == nil {
		return false
	}
	return f(requested, stored)
}

type byReference struct{}

func (byReference) Equal(requested, stored UntypedProperty) bool {
	if requested == nil || stored == nil {
		return false
	}
	return requested == stored
}

type byName struct{}

func (byName) Equal(requested, stored UntypedProperty) bool {
	if requested == nil || stored == nil {
		return false
	}
	return requested.Name() == stored.Name()
}

type byNameIgnoreCase struct{}

func (byNameIgnoreCase) Equal(requested, stored UntypedProperty) bool {
	if requested == nil || stored == nil {
		return false
	}
	return strings.EqualFold(requested.Name(), stored.Name())
}

type byNameAndType struct{}

func (byNameAndType) Equal(requested, stored UntypedProperty) bool {
	if requested == nil || stored == nil {
		return false
	}
	return requested.Name() == stored.Name() && requested.Type() == stored.Type()
}

type byNameOrAlias struct{}

func (byNameOrAlias) Equal(requested, stored UntypedProperty) bool {
	if requested == nil || stored == nil {
		return false
	}
	if strings.EqualFold(requested.Name(), stored.Name()) {
		return true
	}
	if alias := stored.Alias(); alias != "" && strings.EqualFold(requested.Name(), alias) {
		return true
	}
	if alias := requested.Alias(); alias != "" && strings.EqualFold(alias, stored.Name()) {
		return true
	}
	return false
}

type byReferenceOrNameAndType struct{}

func (byReferenceOrNameAndType) Equal(requested, stored UntypedProperty) bool {
	if requested == nil || stored == nil {
		return false
	}
	if requested == stored {
		return true
	}
	return requested.Name() == stored.Name() && requested.Type() == stored.Type()
}

var (
	// ByReference matches only the identical property instance.
	ByReference PropertyComparer = byReference{}
	// ByName matches case-sensitive names regardless of type.
	ByName PropertyComparer = byName{}
	// ByNameIgnoreCase matches names case-insensitively regardless of type.
	ByNameIgnoreCase PropertyComparer = byNameIgnoreCase{}
	// ByNameAndType matches case-sensitive names with identical types.
	ByNameAndType PropertyComparer = byNameAndType{}
	// ByNameOrAlias matches names or aliases case-insensitively.
	ByNameOrAlias PropertyComparer = byNameOrAlias{}
	// ByReferenceOrNameAndType is the default comparer.
	ByReferenceOrNameAndType PropertyComparer = byReferenceOrNameAndType{}
)
