package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-props/pkg/schemadef"
	"github.com/goliatone/go-props/schema/openapi"
)

func newDescribeCmd(a *app) *cobra.Command {
	var (
		asOpenAPI bool
		title     string
	)
	cmd := &cobra.Command{
		Use:   "describe <schema.yaml>",
		Short: "List the properties declared by a schema file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := schemadef.Load(args[0])
			if err != nil {
				return err
			}
			if asOpenAPI {
				doc, err := openapi.Generate(schema, openapi.WithInfo(openapi.Info{Title: title}))
				if err != nil {
					return err
				}
				if a.jsonOutput {
					return writeJSON(a.out, doc)
				}
				enc := yaml.NewEncoder(a.out)
				enc.SetIndent(2)
				if err := enc.Encode(doc); err != nil {
					return err
				}
				return enc.Close()
			}

			descriptors := schema.Describe()
			if a.jsonOutput {
				return writeJSON(a.out, descriptors)
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tTYPE\tALIAS\tFLAGS\tDESCRIPTION")
			for _, d := range descriptors {
				var flags []string
				if d.HasDefault {
					flags = append(flags, "default")
				}
				if d.Calculated {
					flags = append(flags, "calculated")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.Name, d.Type, orDash(d.Alias), orDash(strings.Join(flags, ",")), d.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asOpenAPI, "openapi", false, "render the schema as an OpenAPI document (YAML unless --json)")
	cmd.Flags().StringVar(&title, "title", "", "OpenAPI info.title")
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
