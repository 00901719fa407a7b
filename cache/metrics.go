package cache

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/goliatone/go-props/cache")

var (
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
	cachePromotions metric.Int64Counter
	cacheFlips      metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics creates the instruments on first use. Safe to call repeatedly.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		cacheHits, err = meter.Int64Counter(
			"props_cache_hits_total",
			metric.WithDescription("Total number of two-layer cache hits"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheMisses, err = meter.Int64Counter(
			"props_cache_misses_total",
			metric.WithDescription("Total number of two-layer cache misses"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cachePromotions, err = meter.Int64Counter(
			"props_cache_promotions_total",
			metric.WithDescription("Total number of cold to hot promotions"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheFlips, err = meter.Int64Counter(
			"props_cache_flips_total",
			metric.WithDescription("Total number of hot generation flips"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordHit(ctx context.Context, attrs metric.MeasurementOption) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheHits.Add(ctx, 1, attrs)
}

func recordMiss(ctx context.Context, attrs metric.MeasurementOption) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheMisses.Add(ctx, 1, attrs)
}

func recordPromotion(ctx context.Context, attrs metric.MeasurementOption) {
	if err := initMetrics(); err != nil {
		return
	}
	cachePromotions.Add(ctx, 1, attrs)
}

func recordFlip(ctx context.Context, attrs metric.MeasurementOption) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheFlips.Add(ctx, 1, attrs)
}
