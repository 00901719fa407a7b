package main

import (
	"fmt"

	"github.com/spf13/cobra"

	props "github.com/goliatone/go-props"
)

func newFlattenCmd(a *app) *cobra.Command {
	var (
		src    sourceFlags
		search searchFlags
	)
	cmd := &cobra.Command{
		Use:   "flatten",
		Short: "Resolve every schema property into a single layer",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(src)
			if err != nil {
				return err
			}
			flat, err := props.FlattenSchema(s.container, s.schema, search.options()...)
			if err != nil {
				return err
			}

			values := flat.Properties()
			if a.jsonOutput {
				out := make(map[string]any, len(values))
				for _, pv := range values {
					out[pv.Property().Name()] = map[string]any{
						"value":  pv.Value(),
						"source": pv.Source().String(),
					}
				}
				return writeJSON(a.out, out)
			}
			for _, pv := range values {
				fmt.Fprintf(a.out, "%s = %s (%s)\n", pv.Property().Name(), formatValue(pv.Value()), pv.Source())
			}
			return nil
		},
	}
	src.register(cmd)
	search.register(cmd)
	return cmd
}
