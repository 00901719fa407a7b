package props

import (
	"time"
)

// ExpressionOption configures expression calculators.
type ExpressionOption func(*expressionConfig)

type expressionConfig struct {
	logger   Logger
	property string
	args     map[string]any
	metadata map[string]any
	now      func() time.Time
}

// WithExpressionLogger receives one EvaluationEvent per run.
func WithExpressionLogger(logger Logger) ExpressionOption {
	return func(cfg *expressionConfig) {
		cfg.logger = logger
	}
}

// WithExpressionProperty names the property in logs and errors.
func WithExpressionProperty(name string) ExpressionOption {
	return func(cfg *expressionConfig) {
		cfg.property = name
	}
}

// WithExpressionArgs exposes args as the "args" variable.
func WithExpressionArgs(args map[string]any) ExpressionOption {
	return func(cfg *expressionConfig) {
		cfg.args = copyMetadata(args)
	}
}

// WithExpressionMetadata exposes metadata as the "metadata" variable.
func WithExpressionMetadata(metadata map[string]any) ExpressionOption {
	return func(cfg *expressionConfig) {
		cfg.metadata = copyMetadata(metadata)
	}
}

// WithExpressionClock overrides the "now" variable source.
func WithExpressionClock(now func() time.Time) ExpressionOption {
	return func(cfg *expressionConfig) {
		cfg.now = now
	}
}

// NewExpressionCalculator compiles expr once and returns a calculator that
// evaluates it against Snapshot(container). The result is coerced to T with
// Convert.
func NewExpressionCalculator[T any](evaluator Evaluator, expr string, opts ...ExpressionOption) (Calculator[T], error) {
	if evaluator == nil {
		return nil, ErrNoEvaluator
	}
	cfg := expressionConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	logger := loggerOrNoop(cfg.logger)
	rule, err := evaluator.Compile(expr)
	if err != nil {
		return nil, err
	}
	engine := evaluator.Engine()

	return func(c Container) (T, error) {
		var zero T
		values, err := Snapshot(c)
		if err != nil {
			return zero, err
		}
		scope, _ := scopeOf(c)
		ctx := EvalContext{
			Values:    values,
			Container: c,
			Property:  cfg.property,
			Args:      cfg.args,
			Metadata:  cfg.metadata,
			Scope:     scope,
		}
		if cfg.now != nil {
			now := cfg.now()
			ctx.Now = &now
		}

		start := time.Now()
		raw, err := rule.Evaluate(ctx)
		err = wrapEvaluationError(engine, expr, ctx.scopeLabel(), err)
		logger.LogEvaluation(EvaluationEvent{
			Engine:   engine,
			Expr:     expr,
			Property: cfg.property,
			Scope:    ctx.scopeLabel(),
			Duration: time.Since(start),
			Err:      err,
		})
		if err != nil {
			return zero, err
		}
		return Convert[T](raw)
	}, nil
}

// ExpressionProperty returns a copy of p whose calculator evaluates expr.
func ExpressionProperty[T any](p *Property[T], evaluator Evaluator, expr string, opts ...ExpressionOption) (*Property[T], error) {
	if p == nil {
		return nil, ErrPropertyRequired
	}
	opts = append([]ExpressionOption{WithExpressionProperty(p.Name())}, opts...)
	calculator, err := NewExpressionCalculator[T](evaluator, expr, opts...)
	if err != nil {
		return nil, err
	}
	return p.WithCalculator(calculator), nil
}
