package main

import (
	"fmt"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	props "github.com/goliatone/go-props"
	"github.com/goliatone/go-props/cache"
)

func newStatsCmd(a *app) *cobra.Command {
	var (
		src    sourceFlags
		rounds int
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Resolve every property and report cache counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			if rounds <= 0 {
				return fmt.Errorf("rounds must be positive, got %d", rounds)
			}
			s, err := a.open(src)
			if err != nil {
				return err
			}
			for i := 0; i < rounds; i++ {
				for _, p := range s.schema.Properties() {
					if _, _, err := props.GetPropertyValueUntyped(s.container, p); err != nil {
						return fmt.Errorf("resolve %s: %w", p.Name(), err)
					}
				}
			}

			registry := prometheus.NewRegistry()
			registry.MustRegister(
				cache.NewCollector("plans", cache.StatsFunc(s.resolver.PlanStats)),
				cache.NewCollector("programs", s.programs),
			)
			families, err := registry.Gather()
			if err != nil {
				return err
			}

			type sample struct {
				Metric string  `json:"metric"`
				Cache  string  `json:"cache"`
				Value  float64 `json:"value"`
			}
			var samples []sample
			for _, mf := range families {
				for _, m := range mf.GetMetric() {
					value := m.GetGauge().GetValue()
					if m.GetCounter() != nil {
						value = m.GetCounter().GetValue()
					}
					name := ""
					for _, label := range m.GetLabel() {
						if label.GetName() == "cache" {
							name = label.GetValue()
						}
					}
					samples = append(samples, sample{Metric: mf.GetName(), Cache: name, Value: value})
				}
			}
			sort.SliceStable(samples, func(i, j int) bool {
				if samples[i].Cache != samples[j].Cache {
					return samples[i].Cache < samples[j].Cache
				}
				return samples[i].Metric < samples[j].Metric
			})

			if a.jsonOutput {
				return writeJSON(a.out, samples)
			}
			for _, sm := range samples {
				fmt.Fprintf(a.out, "%s{cache=%q} %g\n", sm.Metric, sm.Cache, sm.Value)
			}
			return nil
		},
	}
	src.register(cmd)
	cmd.Flags().IntVar(&rounds, "rounds", 2, "resolution passes over the schema")
	return cmd
}
