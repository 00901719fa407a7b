package props

import (
	"reflect"
	"sync"
	"time"

	"github.com/goliatone/go-props/cache"
)

// DefaultPlanCapacity is the hot generation size of a resolver plan cache.
const DefaultPlanCapacity = 1024

// Resolver runs the resolution algorithm and memoizes search plans in a
// two-layer cache. It is safe for concurrent use.
type Resolver struct {
	plans  *cache.TwoLayer[planKey, *searchPlan]
	logger Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*resolverConfig)

type resolverConfig struct {
	capacity int
	name     string
	logger   Logger
}

// WithPlanCapacity sets the plan cache hot generation size.
func WithPlanCapacity(capacity int) ResolverOption {
	return func(cfg *resolverConfig) {
		cfg.capacity = capacity
	}
}

// WithPlanCacheName labels the plan cache in metrics.
func WithPlanCacheName(name string) ResolverOption {
	return func(cfg *resolverConfig) {
		if name != "" {
			cfg.name = name
		}
	}
}

// WithLogger attaches a logger receiving one event per resolution.
func WithLogger(logger Logger) ResolverOption {
	return func(cfg *resolverConfig) {
		cfg.logger = logger
	}
}

// NewResolver builds a resolver. It fails only when the plan capacity is not
// positive.
func NewResolver(opts ...ResolverOption) (*Resolver, error) {
	cfg := resolverConfig{capacity: DefaultPlanCapacity, name: "plans"}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	plans, err := cache.NewTwoLayer[planKey, *searchPlan](cfg.capacity, cache.WithName[planKey](cfg.name))
	if err != nil {
		return nil, err
	}
	return &Resolver{plans: plans, logger: loggerOrNoop(cfg.logger)}, nil
}

var defaultResolver = sync.OnceValue(func() *Resolver {
	r, err := NewResolver()
	if err != nil {
		panic(err)
	}
	return r
})

// DefaultResolver returns the process-wide resolver used by containers that
// were not given one with WithResolver.
func DefaultResolver() *Resolver {
	return defaultResolver()
}

// PlanStats reports the plan cache counters.
func (r *Resolver) PlanStats() cache.Stats {
	return r.plans.Stats()
}

func (r *Resolver) plan(p UntypedProperty, opts SearchOptions) *searchPlan {
	comparer, ok := comparerKey(opts.PropertyComparer)
	if !ok {
		return newSearchPlan(p, opts)
	}
	key := planKey{property: p, comparer: comparer, flags: flagsOf(opts)}
	return r.plans.GetOrAdd(key, func(planKey) *searchPlan {
		return newSearchPlan(p, opts)
	})
}

// Resolve searches c for p. ok is false when nothing matched and
// ReturnNotDefined is off; with ReturnNotDefined a miss yields a NotDefined
// sentinel and ok is true.
func (r *Resolver) Resolve(c Container, p UntypedProperty, opts ...SearchOption) (PropertyValue, bool, error) {
	if isNilProperty(p) {
		return PropertyValue{}, false, ErrPropertyRequired
	}
	if isNilContainer(c) {
		return PropertyValue{}, false, ErrContainerRequired
	}
	plan := r.plan(p, applySearchOptions(opts))

	_, quiet := r.logger.(noopLogger)
	var start time.Time
	if !quiet {
		start = time.Now()
	}
	pv, found, depth, err := r.run(c, plan)
	if !quiet {
		r.logger.LogResolution(ResolutionEvent{
			Property: p.Name(),
			Source:   pv.source,
			Found:    found,
			Depth:    depth,
			Duration: time.Since(start),
			Err:      err,
		})
	}
	if err != nil {
		return PropertyValue{}, false, err
	}
	if found {
		return pv, true, nil
	}
	if plan.notDefined {
		return notDefined(p), true, nil
	}
	return PropertyValue{}, false, nil
}

func (r *Resolver) run(root Container, plan *searchPlan) (PropertyValue, bool, int, error) {
	pv, found, depth, err := walkChain(root, plan)
	if err != nil || found {
		return pv, found, depth, err
	}
	p := plan.property
	if plan.calculate {
		value, err := p.calculateUntyped(root)
		if err == nil {
			err = withProperty(checkAssignable(p.Type(), value), p.Name())
		}
		if err != nil {
			return PropertyValue{}, false, depth, calculationError(root, p, StageCalculate, err)
		}
		return PropertyValue{property: p, value: value, source: SourceCalculated}, true, depth, nil
	}
	if plan.useDefault {
		value, err := p.defaultUntyped()
		if err == nil {
			err = withProperty(checkAssignable(p.Type(), value), p.Name())
		}
		if err != nil {
			return PropertyValue{}, false, depth, calculationError(root, p, StageDefault, err)
		}
		return PropertyValue{property: p, value: value, source: SourceDefaultValue}, true, depth, nil
	}
	return PropertyValue{}, false, depth, nil
}

func calculationError(root Container, p UntypedProperty, stage string, err error) error {
	scope, _ := scopeOf(root)
	return &CalculationError{Property: p.Name(), Stage: stage, Scope: scope.Name, Err: err}
}

// walkChain scans root and, when enabled, its ancestors. It returns the first
// match and the number of parent hops taken, or on a miss the number of
// containers searched. A container listing itself as parent ends the walk;
// any longer cycle, or a chain deeper than MaxChainDepth, is an error.
func walkChain(root Container, plan *searchPlan) (PropertyValue, bool, int, error) {
	var visited []Container
	depth := 0
	for current := root; current != nil; depth++ {
		if depth >= MaxChainDepth || onStack(visited, current) {
			return PropertyValue{}, false, depth, &CyclicParentChainError{Property: plan.property.Name(), Depth: depth}
		}
		visited = append(visited, current)

		for _, entry := range entriesOf(current) {
			if plan.match(entry.property) {
				return entry, true, depth, nil
			}
		}
		if !plan.searchInParent {
			break
		}
		parent := normalizeContainer(current.ParentSource())
		if sameContainer(parent, current) {
			break
		}
		current = parent
	}
	return PropertyValue{}, false, len(visited), nil
}

// MaxChainDepth bounds parent traversal. Containers that cannot be compared
// for identity would otherwise cycle forever.
const MaxChainDepth = 4096

func onStack(visited []Container, c Container) bool {
	for _, seen := range visited {
		if sameContainer(seen, c) {
			return true
		}
	}
	return false
}

func sameContainer(a, b Container) bool {
	if a == nil || b == nil {
		return false
	}
	t := reflect.TypeOf(a)
	if t != reflect.TypeOf(b) {
		return false
	}
	switch t.Kind() {
	case reflect.Map, reflect.Slice, reflect.Func:
		return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
	}
	if !t.Comparable() {
		return false
	}
	return a == b
}
