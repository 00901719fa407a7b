package props

// chainOf lists c followed by its ancestors. A container listing itself as
// parent ends the chain; longer cycles and chains deeper than MaxChainDepth
// are reported.
func chainOf(c Container, property string) ([]Container, error) {
	var chain []Container
	for current := normalizeContainer(c); current != nil; {
		if len(chain) >= MaxChainDepth || onStack(chain, current) {
			return nil, &CyclicParentChainError{Property: property, Depth: len(chain)}
		}
		chain = append(chain, current)
		parent := normalizeContainer(current.ParentSource())
		if sameContainer(parent, current) {
			break
		}
		current = parent
	}
	return chain, nil
}

// Snapshot flattens the values stored in c and its ancestors into a map keyed
// by property name. Child values shadow parent values and aliases are added
// as extra keys when they do not collide with a name. Calculators and
// defaults are not run.
func Snapshot(c Container) (map[string]any, error) {
	chain, err := chainOf(c, "")
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	var aliases []PropertyValue
	for _, container := range chain {
		for _, entry := range entriesOf(container) {
			name := entry.property.Name()
			if _, exists := out[name]; exists {
				continue
			}
			out[name] = entry.value
			if entry.property.Alias() != "" {
				aliases = append(aliases, entry)
			}
		}
	}
	for _, entry := range aliases {
		alias := entry.property.Alias()
		if _, exists := out[alias]; !exists {
			out[alias] = entry.value
		}
	}
	return out, nil
}
