package props

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Engine names accepted by NewEvaluator.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

var (
	// ErrUnknownEngine indicates NewEvaluator received an unsupported engine.
	ErrUnknownEngine = errors.New("props: unknown expression engine")
	// ErrEngineUnavailable indicates the engine was compiled out of the binary.
	ErrEngineUnavailable = errors.New("props: expression engine unavailable")
	// ErrNoEvaluator indicates an expression calculator was built without an
	// evaluator.
	ErrNoEvaluator = errors.New("props: evaluator not configured")
)

// EvalContext carries the inputs of an expression run. Values holds the
// container snapshot; every key becomes a top-level variable.
type EvalContext struct {
	Values    map[string]any
	Container Container
	Property  string
	Now       *time.Time
	Args      map[string]any
	Metadata  map[string]any
	Scope     Scope
}

func (ctx EvalContext) withDefaultNow() EvalContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx EvalContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx EvalContext) withDefaultMaps() EvalContext {
	if ctx.Values == nil {
		ctx.Values = map[string]any{}
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx EvalContext) withDefaults() EvalContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

func (ctx EvalContext) scopeLabel() string {
	return labelOrUnknown(ctx.Scope.Name)
}

func (ctx EvalContext) scopeBinding() map[string]any {
	if ctx.Scope.isZero() {
		return nil
	}
	binding := map[string]any{
		"name":     ctx.Scope.Name,
		"label":    ctx.Scope.Label,
		"priority": ctx.Scope.Priority,
	}
	if len(ctx.Scope.Metadata) > 0 {
		binding["metadata"] = copyMetadata(ctx.Scope.Metadata)
	}
	return binding
}

// Evaluator executes expressions against an evaluation context.
type Evaluator interface {
	Engine() string
	Evaluate(ctx EvalContext, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule is a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx EvalContext) (any, error)
}

// EvaluatorOption configures any built-in evaluator.
type EvaluatorOption func(*evaluatorConfig)

type evaluatorConfig struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// WithProgramCache stores compiled programs in cache. Keys are prefixed with
// the engine name so one cache can serve several evaluators.
func WithProgramCache(cache ProgramCache) EvaluatorOption {
	return func(cfg *evaluatorConfig) {
		cfg.cache = cache
	}
}

// WithFunctionRegistry exposes the registry functions to expressions. The
// registry is cloned.
func WithFunctionRegistry(registry *FunctionRegistry) EvaluatorOption {
	return func(cfg *evaluatorConfig) {
		if registry == nil {
			return
		}
		cfg.registry = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for the evaluator.
func WithCustomFunction(name string, fn Function) EvaluatorOption {
	return func(cfg *evaluatorConfig) {
		if cfg.registry == nil {
			cfg.registry = NewFunctionRegistry()
		}
		_ = cfg.registry.Register(name, fn)
	}
}

func applyEvaluatorOptions(opts []EvaluatorOption) evaluatorConfig {
	cfg := evaluatorConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// NewEvaluator builds the evaluator for engine ("expr", "cel" or "js"). An
// empty engine selects expr.
func NewEvaluator(engine string, opts ...EvaluatorOption) (Evaluator, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EngineExpr:
		return NewExprEvaluator(opts...), nil
	case EngineCEL:
		return NewCELEvaluator(opts...), nil
	case EngineJS:
		if !jsEvaluatorAvailable() {
			return nil, fmt.Errorf("%w: %s (build with -tags js_eval)", ErrEngineUnavailable, EngineJS)
		}
		return NewJSEvaluator(opts...), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, engine)
}

func programKey(engine, expression string) string {
	return engine + "\x00" + expression
}

func errEmptyExpression(engine string) error {
	return wrapEvaluatorError(engine, fmt.Errorf("expression must not be empty"))
}
