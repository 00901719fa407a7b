// Package cache provides the generational hot/cold cache used to memoize
// derived objects such as compiled search plans and calculator programs.
//
// Lifecycle of a key:
//
//	absent -> cold -> hot and cold -> (flip) cold only
//
// TwoLayer favours lock-free reads over exact deduplication: a promoted entry
// stays in the cold generation until that generation is dropped by a later
// flip, so at steady state the cache holds roughly twice its max item count.
//
// Counters are exported through OpenTelemetry instruments on the global meter
// provider and can also be registered on a Prometheus registry with
// NewCollector.
package cache
