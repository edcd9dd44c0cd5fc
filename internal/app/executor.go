package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/quote-keeper/internal/platform/logging"
)

// Collection changes that depend on untrusted input (an import file, a remote
// source) run as Validate → Perform → Verify → Archive → Respond. Nothing is
// written to the store until Verify has passed, so a failure at any earlier
// step leaves the collection exactly as it was.

// ExecutionStep represents a step of an operation.
type ExecutionStep string

const (
	StepValidate ExecutionStep = "validate"
	StepPerform  ExecutionStep = "perform"
	StepVerify   ExecutionStep = "verify"
	StepArchive  ExecutionStep = "archive"
	StepRespond  ExecutionStep = "respond"
)

// ExecutionError wraps errors with the step where they occurred.
type ExecutionError struct {
	Step    ExecutionStep
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s failed: %s: %v", e.Step, e.Message, e.Cause)
	}

	return fmt.Sprintf("%s failed: %s", e.Step, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Executor runs operations step by step, logging and tracing each one.
type Executor struct {
	logger *slog.Logger
	tracer trace.Tracer
}

// NewExecutor creates a new executor with the given logger.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		logger: logger,
		tracer: otel.Tracer(instrumentationName),
	}
}

// Operation defines the functions for each step. Nil steps are skipped.
type Operation[I, P, V, O any] struct {
	// Name identifies this operation for logging and tracing.
	Name string

	// Validate checks inputs and preconditions before any work is done.
	Validate func(ctx context.Context, input I) error

	// Perform does the work without touching the collection.
	Perform func(ctx context.Context, input I) (P, error)

	// Verify checks what Perform produced.
	Verify func(ctx context.Context, input I, performed P) (V, error)

	// Archive applies the verified result to the collection.
	Archive func(ctx context.Context, input I, verified V) error

	// Respond shapes the result for the caller.
	Respond func(ctx context.Context, input I, verified V) (O, error)
}

type stepRunner struct {
	logger *slog.Logger
	span   trace.Span
}

// run executes one step, recording it on the span and in the log.
func (r stepRunner) run(ctx context.Context, step ExecutionStep, message string, fn func() error) error {
	r.logger.DebugContext(ctx, "step started", slog.String("step", string(step)))

	if err := fn(); err != nil {
		level := slog.LevelError
		if step == StepValidate {
			level = slog.LevelWarn
		}

		r.logger.Log(ctx, level, "step failed", slog.String("step", string(step)), slog.Any("error", err))
		r.span.AddEvent("step failed", trace.WithAttributes(attribute.String("step", string(step))))

		return &ExecutionError{Step: step, Message: message, Cause: err}
	}

	r.span.AddEvent(string(step))

	return nil
}

// Execute runs op against input.
func Execute[I, P, V, O any](ctx context.Context, exec *Executor, op Operation[I, P, V, O], input I) (O, error) {
	var (
		zero      O
		performed P
		verified  V
		result    O
	)

	logger, ok := logging.Lookup(ctx)
	if !ok {
		logger = exec.logger
	}

	logger = logger.With(slog.String("operation", op.Name))

	ctx, span := exec.tracer.Start(ctx, "app."+op.Name)
	defer span.End()

	start := time.Now()
	r := stepRunner{logger: logger, span: span}

	steps := []struct {
		step    ExecutionStep
		message string
		fn      func() error
	}{
		{StepValidate, "input validation failed", func() error {
			if op.Validate == nil {
				return nil
			}

			return op.Validate(ctx, input)
		}},
		{StepPerform, "operation failed", func() (err error) {
			if op.Perform != nil {
				performed, err = op.Perform(ctx, input)
			}

			return err
		}},
		{StepVerify, "verification failed", func() (err error) {
			if op.Verify != nil {
				verified, err = op.Verify(ctx, input, performed)
			}

			return err
		}},
		{StepArchive, "state persistence failed", func() error {
			if op.Archive == nil {
				return nil
			}

			return op.Archive(ctx, input, verified)
		}},
		{StepRespond, "response failed", func() (err error) {
			if op.Respond != nil {
				result, err = op.Respond(ctx, input, verified)
			}

			return err
		}},
	}

	for _, s := range steps {
		if err := r.run(ctx, s.step, s.message, s.fn); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())

			return zero, err
		}
	}

	logger.InfoContext(ctx, "operation completed", slog.Duration("duration", time.Since(start)))

	return result, nil
}

// IsExecutionError checks if an error occurred during execution.
func IsExecutionError(err error) bool {
	var execErr *ExecutionError

	return errors.As(err, &execErr)
}

// GetExecutionStep extracts the step from an execution error.
func GetExecutionStep(err error) (ExecutionStep, bool) {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Step, true
	}

	return "", false
}
