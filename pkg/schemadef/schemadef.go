// Package schemadef loads property schemas from YAML documents.
//
// A document lists properties with a type name from a fixed table, optional
// alias, description, metadata, default value and calculator expression:
//
//	name: notifications
//	engine: expr
//	properties:
//	  - name: FirstName
//	    type: string
//	  - name: FullName
//	    type: string
//	    calculate: FirstName + " " + LastName
//	  - name: Retries
//	    type: int
//	    default: 3
//
// Calculators are compiled through the props evaluators, sharing one program
// cache per Loader.
//
// Thread Safety:
//
//	A Loader is safe for concurrent use once built.
package schemadef

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	props "github.com/goliatone/go-props"
)

const (
	// MaxFileSize is the largest schema file Load accepts (1MB).
	MaxFileSize = 1024 * 1024

	// MaxProperties is the largest number of properties per document.
	MaxProperties = 1000
)

var (
	// ErrUnknownType is returned for a property type missing from the type table.
	ErrUnknownType = errors.New("schemadef: unknown property type")
	// ErrInvalidDocument is returned when a document fails validation.
	ErrInvalidDocument = errors.New("schemadef: invalid document")
)

// Document is the root YAML structure.
type Document struct {
	Name       string        `yaml:"name"`
	Engine     string        `yaml:"engine,omitempty"`
	Properties []PropertyDef `yaml:"properties"`
}

// PropertyDef describes one property.
type PropertyDef struct {
	Name        string         `yaml:"name"`
	Type        string         `yaml:"type"`
	Alias       string         `yaml:"alias,omitempty"`
	Description string         `yaml:"description,omitempty"`
	Default     any            `yaml:"default,omitempty"`
	Metadata    map[string]any `yaml:"metadata,omitempty"`
	Calculate   *CalculateDef  `yaml:"calculate,omitempty"`
}

// CalculateDef is a calculator expression. It may be written as a plain
// string, which uses the document engine.
type CalculateDef struct {
	Expr   string         `yaml:"expr"`
	Engine string         `yaml:"engine,omitempty"`
	Args   map[string]any `yaml:"args,omitempty"`
}

// UnmarshalYAML accepts both the scalar and the mapping form.
func (c *CalculateDef) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		c.Expr = node.Value
		return nil
	}
	type plain CalculateDef
	var out plain
	if err := node.Decode(&out); err != nil {
		return err
	}
	*c = CalculateDef(out)
	return nil
}

type builder func(def PropertyDef, l *Loader, engine string) (props.UntypedProperty, error)

var types = map[string]builder{
	"string":   build[string],
	"int":      build[int],
	"int64":    build[int64],
	"float64":  build[float64],
	"bool":     build[bool],
	"time":     build[time.Time],
	"duration": build[time.Duration],
	"[]string": build[[]string],
	"map":      build[map[string]any],
	"any":      build[any],
}

// TypeNames lists the supported property type names in sorted order.
func TypeNames() []string {
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Option configures a Loader.
type Option func(*Loader)

// WithEvaluator registers evaluator under its engine name, replacing the
// built-in one.
func WithEvaluator(evaluator props.Evaluator) Option {
	return func(l *Loader) {
		if evaluator == nil {
			return
		}
		l.evaluators[evaluator.Engine()] = evaluator
	}
}

// WithProgramCache shares cache between the built-in evaluators.
func WithProgramCache(cache props.ProgramCache) Option {
	return func(l *Loader) {
		l.programs = cache
	}
}

// WithFunctionRegistry exposes registry to the built-in evaluators.
func WithFunctionRegistry(registry *props.FunctionRegistry) Option {
	return func(l *Loader) {
		l.registry = registry
	}
}

// WithLogger receives calculator evaluation events.
func WithLogger(logger props.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// Loader turns documents into schemas.
type Loader struct {
	mu         sync.Mutex
	evaluators map[string]props.Evaluator
	programs   props.ProgramCache
	registry   *props.FunctionRegistry
	logger     props.Logger
}

// NewLoader builds a Loader. Without WithProgramCache a private
// props.NewProgramCache is used.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{evaluators: map[string]props.Evaluator{}}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	if l.programs == nil {
		l.programs = props.NewProgramCache(props.DefaultProgramCapacity)
	}
	return l
}

// Decode parses data into a Document. Unknown fields are rejected.
func Decode(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidDocument)
		}
		return nil, fmt.Errorf("schemadef: parse: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks names, types and limits. Duplicate names are reported by
// props.NewSchema when the document is built.
func (d *Document) Validate() error {
	if len(d.Properties) == 0 {
		return fmt.Errorf("%w: no properties", ErrInvalidDocument)
	}
	if len(d.Properties) > MaxProperties {
		return fmt.Errorf("%w: %d properties (max %d)", ErrInvalidDocument, len(d.Properties), MaxProperties)
	}
	for i, def := range d.Properties {
		if strings.TrimSpace(def.Name) == "" {
			return fmt.Errorf("%w: property %d has no name", ErrInvalidDocument, i)
		}
		if _, ok := types[normalizeType(def.Type)]; !ok {
			return fmt.Errorf("%w: %q for property %q", ErrUnknownType, def.Type, def.Name)
		}
		if def.Calculate != nil && strings.TrimSpace(def.Calculate.Expr) == "" {
			return fmt.Errorf("%w: property %q has an empty calculator", ErrInvalidDocument, def.Name)
		}
	}
	return nil
}

// Build compiles d into a schema, keeping the declaration order.
func (l *Loader) Build(d *Document) (*props.Schema, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: nil document", ErrInvalidDocument)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	properties := make([]props.UntypedProperty, 0, len(d.Properties))
	for _, def := range d.Properties {
		p, err := types[normalizeType(def.Type)](def, l, d.Engine)
		if err != nil {
			return nil, fmt.Errorf("schemadef: property %q: %w", def.Name, err)
		}
		properties = append(properties, p)
	}
	return props.NewSchema(properties...)
}

// Parse decodes and builds data in one step.
func (l *Loader) Parse(data []byte) (*props.Schema, error) {
	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return l.Build(doc)
}

// Load reads and builds the schema file at path.
func (l *Loader) Load(path string) (*props.Schema, error) {
	data, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	schema, err := l.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return schema, nil
}

// ReadFile reads path after checking it against MaxFileSize.
func ReadFile(path string) ([]byte, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("schemadef: resolve path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("schemadef: stat: %w", err)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("schemadef: file too large: %d bytes (max %d)", info.Size(), MaxFileSize)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("schemadef: read: %w", err)
	}
	return data, nil
}

// Parse builds data with a default Loader.
func Parse(data []byte, opts ...Option) (*props.Schema, error) {
	return NewLoader(opts...).Parse(data)
}

// Load builds the schema file at path with a default Loader.
func Load(path string, opts ...Option) (*props.Schema, error) {
	return NewLoader(opts...).Load(path)
}

func (l *Loader) evaluator(engine string) (props.Evaluator, error) {
	engine = strings.ToLower(strings.TrimSpace(engine))
	if engine == "" {
		engine = props.EngineExpr
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if evaluator, ok := l.evaluators[engine]; ok {
		return evaluator, nil
	}
	evaluatorOpts := []props.EvaluatorOption{props.WithProgramCache(l.programs)}
	if l.registry != nil {
		evaluatorOpts = append(evaluatorOpts, props.WithFunctionRegistry(l.registry))
	}
	evaluator, err := props.NewEvaluator(engine, evaluatorOpts...)
	if err != nil {
		return nil, err
	}
	l.evaluators[engine] = evaluator
	return evaluator, nil
}

func build[T any](def PropertyDef, l *Loader, engine string) (props.UntypedProperty, error) {
	p := props.NewProperty[T](strings.TrimSpace(def.Name))
	if def.Alias != "" {
		p = p.WithAlias(def.Alias)
	}
	if def.Description != "" {
		p = p.WithDescription(def.Description)
	}
	keys := make([]string, 0, len(def.Metadata))
	for key := range def.Metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		p = p.WithMetadata(key, def.Metadata[key])
	}

	if def.Default != nil {
		value, err := props.Convert[T](def.Default)
		if err != nil {
			return nil, fmt.Errorf("default: %w", err)
		}
		p = p.WithDefault(value)
	}

	if def.Calculate == nil {
		return p, nil
	}
	if def.Calculate.Engine != "" {
		engine = def.Calculate.Engine
	}
	evaluator, err := l.evaluator(engine)
	if err != nil {
		return nil, err
	}
	exprOpts := []props.ExpressionOption{props.WithExpressionLogger(l.logger)}
	if len(def.Calculate.Args) > 0 {
		exprOpts = append(exprOpts, props.WithExpressionArgs(def.Calculate.Args))
	}
	if len(def.Metadata) > 0 {
		exprOpts = append(exprOpts, props.WithExpressionMetadata(def.Metadata))
	}
	return props.ExpressionProperty(p, evaluator, def.Calculate.Expr, exprOpts...)
}

func normalizeType(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "", "str":
		return "string"
	case "integer":
		return "int"
	case "float", "number":
		return "float64"
	case "boolean":
		return "bool"
	case "strings", "string[]":
		return "[]string"
	case "object":
		return "map"
	}
	return name
}
