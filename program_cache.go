package props

import "github.com/goliatone/go-props/cache"

// DefaultProgramCapacity is the hot generation size used by NewProgramCache
// when given a non-positive capacity.
const DefaultProgramCapacity = 256

// ProgramCache stores compiled expression programs keyed by expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// TwoLayerProgramCache is a ProgramCache backed by a cache.TwoLayer.
type TwoLayerProgramCache struct {
	programs *cache.TwoLayer[string, any]
}

var _ ProgramCache = (*TwoLayerProgramCache)(nil)

// NewProgramCache builds a bounded program cache.
func NewProgramCache(maxItems int) *TwoLayerProgramCache {
	if maxItems <= 0 {
		maxItems = DefaultProgramCapacity
	}
	programs, err := cache.NewTwoLayer[string, any](maxItems, cache.WithName[string]("programs"))
	if err != nil {
		panic(err)
	}
	return &TwoLayerProgramCache{programs: programs}
}

// Get implements ProgramCache.
func (c *TwoLayerProgramCache) Get(key string) (any, bool) {
	return c.programs.Get(key)
}

// Set implements ProgramCache. An existing program for key is kept.
func (c *TwoLayerProgramCache) Set(key string, value any) {
	c.programs.TryAdd(key, value)
}

// Stats reports the underlying cache counters.
func (c *TwoLayerProgramCache) Stats() cache.Stats {
	return c.programs.Stats()
}
