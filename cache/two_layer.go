package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrInvalidCapacity indicates a two-layer cache was configured with a
// non-positive max item count.
var ErrInvalidCapacity = errors.New("cache: max item count must be positive")

// Cache memoizes values derived from a key. Implementations must be safe for
// concurrent use.
type Cache[K comparable, V any] interface {
	GetOrAdd(key K, factory func(K) V) V
}

// Option configures a TwoLayer cache.
type Option[K comparable] func(*config[K])

type config[K comparable] struct {
	name      string
	normalize func(K) K
}

// WithName labels the cache in metrics and collectors.
func WithName[K comparable](name string) Option[K] {
	return func(cfg *config[K]) {
		cfg.name = name
	}
}

// WithKeyNormalizer maps every key before it touches either generation, which
// lets callers plug in their own key equality (e.g. case folding). The
// function must be idempotent.
func WithKeyNormalizer[K comparable](fn func(K) K) Option[K] {
	return func(cfg *config[K]) {
		cfg.normalize = fn
	}
}

type entry[V any] struct {
	value V
}

type generation[K comparable, V any] struct {
	items sync.Map
	size  atomic.Int64
}

func newGeneration[K comparable, V any]() *generation[K, V] {
	return &generation[K, V]{}
}

func (g *generation[K, V]) load(key K) (V, bool) {
	raw, ok := g.items.Load(key)
	if !ok {
		var zero V
		return zero, false
	}
	return raw.(entry[V]).value, true
}

// loadOrStore returns the value that ended up stored for key and whether it
// was already present.
func (g *generation[K, V]) loadOrStore(key K, value V) (V, bool) {
	raw, loaded := g.items.LoadOrStore(key, entry[V]{value: value})
	if !loaded {
		g.size.Add(1)
	}
	return raw.(entry[V]).value, loaded
}

// TwoLayer is a bounded concurrent cache split into a hot and a cold
// generation. New entries land in cold; reads that hit cold copy the entry
// into hot. Once hot grows past the configured max item count it becomes the
// new cold generation and a fresh hot generation is allocated, dropping the
// previous cold one. Live entries therefore stay around twice the max item
// count.
//
// Reads never lock. The only serialisation point is the generation flip.
type TwoLayer[K comparable, V any] struct {
	hot  atomic.Pointer[generation[K, V]]
	cold atomic.Pointer[generation[K, V]]

	maxItems  int
	name      string
	normalize func(K) K
	attrs     metric.MeasurementOption

	flipMu sync.Mutex

	hits       atomic.Int64
	misses     atomic.Int64
	promotions atomic.Int64
	flips      atomic.Int64
}

// NewTwoLayer constructs a cache whose hot generation holds at most maxItems
// entries between flips.
func NewTwoLayer[K comparable, V any](maxItems int, opts ...Option[K]) (*TwoLayer[K, V], error) {
	if maxItems <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, maxItems)
	}
	cfg := config[K]{name: "default"}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	c := &TwoLayer[K, V]{
		maxItems:  maxItems,
		name:      cfg.name,
		normalize: cfg.normalize,
		attrs:     metric.WithAttributes(attribute.String("cache.name", cfg.name)),
	}
	c.hot.Store(newGeneration[K, V]())
	c.cold.Store(newGeneration[K, V]())
	return c, nil
}

// Name returns the label configured through WithName.
func (c *TwoLayer[K, V]) Name() string {
	return c.name
}

// MaxItems returns the hot generation capacity.
func (c *TwoLayer[K, V]) MaxItems() int {
	return c.maxItems
}

func (c *TwoLayer[K, V]) key(key K) K {
	if c.normalize == nil {
		return key
	}
	return c.normalize(key)
}

// TryAdd stores value in the cold generation unless key is already present
// there. It reports whether the value was inserted.
func (c *TwoLayer[K, V]) TryAdd(key K, value V) bool {
	_, loaded := c.cold.Load().loadOrStore(c.key(key), value)
	return !loaded
}

// Get looks key up in hot, then cold. A cold hit is copied into hot and may
// trigger a generation flip.
func (c *TwoLayer[K, V]) Get(key K) (V, bool) {
	return c.get(c.key(key))
}

func (c *TwoLayer[K, V]) get(key K) (V, bool) {
	ctx := context.Background()
	if value, ok := c.hot.Load().load(key); ok {
		c.hits.Add(1)
		recordHit(ctx, c.attrs)
		return value, true
	}
	value, ok := c.cold.Load().load(key)
	if !ok {
		c.misses.Add(1)
		recordMiss(ctx, c.attrs)
		return value, false
	}
	c.hits.Add(1)
	recordHit(ctx, c.attrs)
	c.promote(ctx, key, value)
	return value, true
}

// promote copies a cold entry into hot. The cold copy is left in place.
func (c *TwoLayer[K, V]) promote(ctx context.Context, key K, value V) {
	hot := c.hot.Load()
	if _, loaded := hot.loadOrStore(key, value); loaded {
		return
	}
	c.promotions.Add(1)
	recordPromotion(ctx, c.attrs)
	if hot.size.Load() <= int64(c.maxItems) {
		return
	}

	c.flipMu.Lock()
	defer c.flipMu.Unlock()
	current := c.hot.Load()
	if current.size.Load() <= int64(c.maxItems) {
		return
	}
	// cold is replaced before hot so readers always find current entries in
	// at least one generation.
	c.cold.Store(current)
	c.hot.Store(newGeneration[K, V]())
	c.flips.Add(1)
	recordFlip(ctx, c.attrs)
}

// GetOrAdd returns the cached value for key, invoking factory on a miss.
// Racing misses may each invoke factory but converge on the single value
// stored in the cold generation.
func (c *TwoLayer[K, V]) GetOrAdd(key K, factory func(K) V) V {
	normalized := c.key(key)
	if value, ok := c.get(normalized); ok {
		return value
	}
	value, _ := c.cold.Load().loadOrStore(normalized, factory(key))
	return value
}

// GetOrCreate behaves like GetOrAdd for factories that can fail. Nothing is
// cached when factory returns an error.
func (c *TwoLayer[K, V]) GetOrCreate(key K, factory func(K) (V, error)) (V, error) {
	normalized := c.key(key)
	if value, ok := c.get(normalized); ok {
		return value, nil
	}
	created, err := factory(key)
	if err != nil {
		var zero V
		return zero, err
	}
	value, _ := c.cold.Load().loadOrStore(normalized, created)
	return value, nil
}

// Stats is a point-in-time view of cache counters. Sizes count insertions
// into each generation and include entries duplicated across both.
type Stats struct {
	Name       string
	MaxItems   int
	HotSize    int
	ColdSize   int
	Hits       int64
	Misses     int64
	Promotions int64
	Flips      int64
}

// Stats returns the current counters.
func (c *TwoLayer[K, V]) Stats() Stats {
	return Stats{
		Name:       c.name,
		MaxItems:   c.maxItems,
		HotSize:    int(c.hot.Load().size.Load()),
		ColdSize:   int(c.cold.Load().size.Load()),
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Promotions: c.promotions.Load(),
		Flips:      c.flips.Load(),
	}
}
