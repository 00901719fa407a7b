package props

import (
	"context"
	"log/slog"
	"time"
)

// ResolutionEvent describes one resolution for logging.
type ResolutionEvent struct {
	Property string
	Source   ValueSource
	Found    bool
	// Depth is the number of parent hops taken before the value was found,
	// or the chain length searched on a miss.
	Depth    int
	Duration time.Duration
	Err      error
}

// EvaluationEvent describes an expression calculator run.
type EvaluationEvent struct {
	Engine   string
	Expr     string
	Property string
	Scope    string
	Duration time.Duration
	Err      error
}

// Logger records resolution and evaluation events.
type Logger interface {
	LogResolution(ResolutionEvent)
	LogEvaluation(EvaluationEvent)
}

// LoggerFuncs adapts functions to Logger. Nil fields are ignored.
type LoggerFuncs struct {
	Resolution func(ResolutionEvent)
	Evaluation func(EvaluationEvent)
}

// LogResolution implements Logger.
func (f LoggerFuncs) LogResolution(event ResolutionEvent) {
	if f.Resolution != nil {
		f.Resolution(event)
	}
}

// LogEvaluation implements Logger.
func (f LoggerFuncs) LogEvaluation(event EvaluationEvent) {
	if f.Evaluation != nil {
		f.Evaluation(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogResolution(ResolutionEvent) {}
func (noopLogger) LogEvaluation(EvaluationEvent) {}

func loggerOrNoop(logger Logger) Logger {
	if logger == nil {
		return noopLogger{}
	}
	return logger
}

type slogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger writes events at debug level, or warn level when they carry
// an error. A nil logger uses slog.Default().
func NewSlogLogger(logger *slog.Logger) Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return slogLogger{logger: logger}
}

func (l slogLogger) LogResolution(event ResolutionEvent) {
	level := levelFor(event.Err)
	ctx := context.Background()
	if !l.logger.Enabled(ctx, level) {
		return
	}
	attrs := []slog.Attr{
		slog.String("property", event.Property),
		slog.Bool("found", event.Found),
		slog.String("source", event.Source.String()),
		slog.Int("depth", event.Depth),
		slog.Duration("duration", event.Duration),
	}
	if event.Err != nil {
		attrs = append(attrs, slog.String("error", event.Err.Error()))
	}
	l.logger.LogAttrs(ctx, level, "property resolved", attrs...)
}

func (l slogLogger) LogEvaluation(event EvaluationEvent) {
	level := levelFor(event.Err)
	ctx := context.Background()
	if !l.logger.Enabled(ctx, level) {
		return
	}
	attrs := []slog.Attr{
		slog.String("engine", event.Engine),
		slog.String("expr", event.Expr),
		slog.String("property", event.Property),
		slog.String("scope", event.Scope),
		slog.Duration("duration", event.Duration),
	}
	if event.Err != nil {
		attrs = append(attrs, slog.String("error", event.Err.Error()))
	}
	l.logger.LogAttrs(ctx, level, "expression evaluated", attrs...)
}

func levelFor(err error) slog.Level {
	if err != nil {
		return slog.LevelWarn
	}
	return slog.LevelDebug
}
