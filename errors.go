package props

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var (
	// ErrTypeMismatch indicates a value is not assignable to a property type.
	ErrTypeMismatch = errors.New("props: type mismatch")
	// ErrCyclicParentChain indicates parent traversal revisited a container.
	ErrCyclicParentChain = errors.New("props: cyclic parent chain")
	// ErrCalculatorFailure indicates a property calculator returned an error.
	ErrCalculatorFailure = errors.New("props: calculator failed")
	// ErrDefaultValueFailure indicates a default value factory returned an error.
	ErrDefaultValueFailure = errors.New("props: default value failed")
	// ErrNotFound is returned by RequireValue when no source produced a value.
	ErrNotFound = errors.New("props: property not found")
	// ErrPropertyRequired indicates a nil property was supplied.
	ErrPropertyRequired = errors.New("props: property must be provided")
	// ErrContainerRequired indicates a nil container was supplied.
	ErrContainerRequired = errors.New("props: container must be provided")
	// ErrDuplicateProperty indicates a schema received two properties that
	// resolve to the same name.
	ErrDuplicateProperty = errors.New("props: duplicate property name")
)

// TypeMismatchError describes a value that cannot be stored under a property.
type TypeMismatchError struct {
	Property string
	Want     reflect.Type
	Got      reflect.Type
	Err      error
}

func (e *TypeMismatchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString("props: type mismatch")
	if e.Property != "" {
		fmt.Fprintf(&b, " for property %q", e.Property)
	}
	fmt.Fprintf(&b, ": want %s, got %s", typeString(e.Want), typeString(e.Got))
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

func (e *TypeMismatchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func typeString(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	return t.String()
}

// withProperty fills the property name on mismatch errors raised before the
// property was known.
func withProperty(err error, name string) error {
	var mismatch *TypeMismatchError
	if errors.As(err, &mismatch) && mismatch.Property == "" {
		mismatch.Property = name
	}
	return err
}

// CyclicParentChainError reports the property being resolved and the depth at
// which a container was revisited.
type CyclicParentChainError struct {
	Property string
	Depth    int
}

func (e *CyclicParentChainError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Property == "" {
		return fmt.Sprintf("props: cyclic parent chain at depth %d", e.Depth)
	}
	return fmt.Sprintf("props: cyclic parent chain resolving %q at depth %d", e.Property, e.Depth)
}

func (e *CyclicParentChainError) Is(target error) bool {
	return target == ErrCyclicParentChain
}

// Resolution stages that can fail while producing a value.
const (
	StageCalculate = "calculate"
	StageDefault   = "default"
)

// CalculationError wraps a failure raised by a calculator or default value
// factory during resolution.
type CalculationError struct {
	Property string
	Stage    string
	Scope    string
	Err      error
}

func (e *CalculationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("props: %s %q scope=%s: %v", e.Stage, e.Property, labelOrUnknown(e.Scope), e.Err)
}

func (e *CalculationError) Is(target error) bool {
	switch target {
	case ErrCalculatorFailure:
		return e.Stage == StageCalculate
	case ErrDefaultValueFailure:
		return e.Stage == StageDefault
	}
	return false
}

func (e *CalculationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func labelOrUnknown(label string) string {
	if label == "" {
		return "unknown"
	}
	return label
}

// EvaluationError captures evaluator metadata alongside the originating error.
type EvaluationError struct {
	Engine string
	Expr   string
	Scope  string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("props: %s evaluator %s scope=%s: %v", e.Engine, describeExpression(e.Expr), e.Scope, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}

	if strings.HasPrefix(err.Error(), "props:") {
		return err
	}
	return fmt.Errorf("props: %s evaluator: %w", engine, err)
}

func wrapEvaluationError(engine, expr, scope string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.Scope == "" {
			evalErr.Scope = scope
		}
		return evalErr
	}

	return &EvaluationError{
		Engine: engine,
		Expr:   expr,
		Scope:  scope,
		Err:    err,
	}
}
