package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	props "github.com/goliatone/go-props"
	"github.com/goliatone/go-props/internal/hydrate"
	"github.com/goliatone/go-props/pkg/schemadef"
)

// sourceFlags selects the schema and the layer files of one invocation.
type sourceFlags struct {
	schemaPath string
	layers     []string
	strict     bool
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.schemaPath, "schema", "s", "", "schema definition file (YAML)")
	cmd.Flags().StringArrayVarP(&f.layers, "layer", "l", nil, "scope layer as name[:priority]=file, strongest first (repeatable)")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "reject layer keys that are not in the schema")
	_ = cmd.MarkFlagRequired("schema")
}

// searchFlags maps CLI switches to search options.
type searchFlags struct {
	noParent  bool
	noCalc    bool
	noDefault bool
}

func (f *searchFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.noParent, "no-parent", false, "only search the strongest layer")
	cmd.Flags().BoolVar(&f.noCalc, "no-calc", false, "skip calculators")
	cmd.Flags().BoolVar(&f.noDefault, "no-default", false, "skip default values")
}

func (f searchFlags) options() []props.SearchOption {
	return []props.SearchOption{
		props.WithSearchInParent(!f.noParent),
		props.WithCalculateValue(!f.noCalc),
		props.WithUseDefaultValue(!f.noDefault),
	}
}

// session holds the schema, resolver and container chain built from flags.
type session struct {
	schema    *props.Schema
	resolver  *props.Resolver
	programs  *props.TwoLayerProgramCache
	container *props.ImmutableContainer
}

type layerSpec struct {
	name     string
	priority int
	path     string
}

// parseLayer parses name[:priority]=path. fallback is used when no priority
// is given.
func parseLayer(raw string, fallback int) (layerSpec, error) {
	head, path, ok := strings.Cut(raw, "=")
	if !ok || strings.TrimSpace(path) == "" {
		return layerSpec{}, fmt.Errorf("layer %q: expected name[:priority]=file", raw)
	}
	spec := layerSpec{name: strings.TrimSpace(head), priority: fallback, path: strings.TrimSpace(path)}
	if name, priority, hasPriority := strings.Cut(head, ":"); hasPriority {
		n, err := strconv.Atoi(strings.TrimSpace(priority))
		if err != nil {
			return layerSpec{}, fmt.Errorf("layer %q: invalid priority: %w", raw, err)
		}
		spec.name = strings.TrimSpace(name)
		spec.priority = n
	}
	if spec.name == "" {
		return layerSpec{}, fmt.Errorf("layer %q: scope name is required", raw)
	}
	return spec, nil
}

func (a *app) open(src sourceFlags) (*session, error) {
	logger := props.NewSlogLogger(a.logger)
	programs := props.NewProgramCache(a.cfg.ProgramCapacity)

	schema, err := schemadef.Load(src.schemaPath,
		schemadef.WithProgramCache(programs),
		schemadef.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	resolver, err := props.NewResolver(
		props.WithPlanCapacity(a.cfg.PlanCapacity),
		props.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	var decoderOpts []hydrate.DecoderOption
	if src.strict {
		decoderOpts = append(decoderOpts, hydrate.WithDisallowUnknown())
	}
	decoder := hydrate.NewDecoder(schema, decoderOpts...)

	layers := make([]props.Layer, 0, len(src.layers))
	for i, raw := range src.layers {
		spec, err := parseLayer(raw, (len(src.layers)-i)*100)
		if err != nil {
			return nil, err
		}
		payload, err := readPayload(spec.path)
		if err != nil {
			return nil, err
		}
		values, err := decoder.Decode(hydrate.Context{Source: spec.path, Scope: spec.name}, payload)
		if err != nil {
			return nil, err
		}
		a.logger.Debug("layer loaded", "scope", spec.name, "priority", spec.priority, "values", len(values), "file", spec.path)
		layers = append(layers, props.NewLayer(props.NewScope(spec.name, spec.priority), values, props.WithLayerSnapshotID(spec.path)))
	}

	s := &session{schema: schema, resolver: resolver, programs: programs}
	if len(layers) == 0 {
		s.container, err = props.NewContainer(nil, props.WithResolver(resolver))
		return s, err
	}
	stack, err := props.NewStack(layers...)
	if err != nil {
		return nil, err
	}
	s.container, err = stack.Build(props.WithResolver(resolver))
	if err != nil {
		return nil, err
	}
	return s, nil
}

// properties returns the schema properties named by args, or all of them.
func (s *session) properties(args []string) ([]props.UntypedProperty, error) {
	if len(args) == 0 {
		return s.schema.Properties(), nil
	}
	out := make([]props.UntypedProperty, 0, len(args))
	for _, name := range args {
		p, ok := s.schema.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown property %q", name)
		}
		out = append(out, p)
	}
	return out, nil
}

// readPayload reads a YAML or JSON object from path.
func readPayload(path string) (map[string]any, error) {
	data, err := schemadef.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var payload map[string]any
	if err := yaml.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return payload, nil
}
