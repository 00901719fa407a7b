package main

import (
	"fmt"

	"github.com/spf13/cobra"

	props "github.com/goliatone/go-props"
)

type resolvedValue struct {
	Property string       `json:"property"`
	Found    bool         `json:"found"`
	Source   string       `json:"source,omitempty"`
	Value    any          `json:"value,omitempty"`
	Trace    *props.Trace `json:"trace,omitempty"`
}

func newResolveCmd(a *app) *cobra.Command {
	var (
		src       sourceFlags
		search    searchFlags
		withTrace bool
	)
	cmd := &cobra.Command{
		Use:   "resolve [property...]",
		Short: "Resolve properties through the given layers",
		Long: `Resolve looks each property up in the strongest layer first, then in
weaker layers, then runs its calculator and finally falls back to its default.
Without arguments every schema property is resolved.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(src)
			if err != nil {
				return err
			}
			properties, err := s.properties(args)
			if err != nil {
				return err
			}

			results := make([]resolvedValue, 0, len(properties))
			for _, p := range properties {
				result, err := resolveOne(s.container, p, search.options(), withTrace)
				if err != nil {
					return err
				}
				results = append(results, result)
			}

			if a.jsonOutput {
				return writeJSON(a.out, results)
			}
			for _, r := range results {
				if !r.Found {
					fmt.Fprintf(a.out, "%s: not found\n", r.Property)
				} else {
					fmt.Fprintf(a.out, "%s = %s (%s)\n", r.Property, formatValue(r.Value), r.Source)
				}
				if r.Trace != nil {
					for _, layer := range r.Trace.Layers {
						marker := " "
						if layer.Found {
							marker = "*"
						}
						fmt.Fprintf(a.out, "  %s %d %s %s", marker, layer.Depth, layer.Scope.Name, orDash(layer.SnapshotID))
						if layer.Found {
							fmt.Fprintf(a.out, " = %s", formatValue(layer.Value))
						}
						fmt.Fprintln(a.out)
					}
				}
			}
			return nil
		},
	}
	src.register(cmd)
	search.register(cmd)
	cmd.Flags().BoolVar(&withTrace, "trace", false, "show every layer visited")
	return cmd
}

func resolveOne(c props.Container, p props.UntypedProperty, opts []props.SearchOption, withTrace bool) (resolvedValue, error) {
	result := resolvedValue{Property: p.Name()}
	var (
		pv  props.PropertyValue
		ok  bool
		err error
	)
	if withTrace {
		var trace props.Trace
		pv, trace, err = props.ResolveWithTrace(c, p, opts...)
		ok = err == nil && !pv.IsZero()
		result.Trace = &trace
	} else {
		pv, ok, err = props.GetPropertyValueUntyped(c, p, opts...)
	}
	if err != nil {
		return result, fmt.Errorf("resolve %s: %w", p.Name(), err)
	}
	if ok && pv.IsDefined() {
		result.Found = true
		result.Source = pv.Source().String()
		result.Value = pv.Value()
	}
	return result, nil
}
