// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noldarim/idexec/internal/logger"
)

const tracerName = "github.com/noldarim/idexec/internal/processor"

// ErrMalformedOutput marks mapper errors caused by unusable process output.
// Such errors select the fallback instead of reaching the caller.
var ErrMalformedOutput = errors.New("malformed process output")

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetExecLogger()
		log = &l
	})
	return log
}

// Output is what a success mapper receives.
type Output struct {
	Type  ContentType
	Text  string // Trimmed stdout, empty when Empty is set
	Empty bool   // The process succeeded without printing anything
}

// Decode unmarshals a JSON output into v. Failures wrap ErrMalformedOutput.
func (o Output) Decode(v any) error {
	if err := json.Unmarshal([]byte(o.Text), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return nil
}

// Mapper turns decoded output into the caller's result.
type Mapper[T any] func(out Output) (T, error)

// Call is the complete per-invocation configuration, assembled before Execute.
type Call[T any] struct {
	Input    Input
	Tokens   Tokens
	Success  map[ContentType]Mapper[T] // Keyed by Spec.Output.Type
	Fallback func() T                  // Nil means the zero T
}

func (c Call[T]) fallback() T {
	if c.Fallback == nil {
		var zero T
		return zero
	}
	return c.Fallback()
}

// Processor executes calls against external programs through a Runner.
type Processor[T any] struct {
	runner Runner
	tracer trace.Tracer
}

// New creates a processor for results of type T
func New[T any](runner Runner) *Processor[T] {
	return &Processor[T]{
		runner: runner,
		tracer: otel.Tracer(tracerName),
	}
}

// Execute runs one call. It returns exactly one of the mapper result or the
// fallback. The only errors returned are mapper errors not caused by malformed
// output; process failures never surface.
func (p *Processor[T]) Execute(ctx context.Context, spec Spec, call Call[T]) (T, error) {
	if !spec.Configured() {
		getLog().Debug().Msg("No command configured, using fallback")
		return call.fallback(), nil
	}

	ctx, span := p.tracer.Start(ctx, "processor.Execute", trace.WithAttributes(
		attribute.String("process.command", spec.Command),
		attribute.String("process.input.type", string(spec.Input.Type)),
		attribute.String("process.output.type", string(spec.Output.Type)),
	))
	defer span.End()

	stdin, err := Encode(spec, call.Input, call.Tokens)
	if err != nil {
		getLog().Error().Err(err).Str("command", spec.Command).Msg("Failed to encode process input, using fallback")
		span.RecordError(err)
		span.SetAttributes(attribute.String("process.outcome", "fallback"))
		return call.fallback(), nil
	}

	args := lo.Map(spec.Args, func(arg string, _ int) string {
		return call.Tokens.Render(arg)
	})

	preview := formatCommandForLogging(spec.Command, args)
	getLog().Debug().
		Str("command", preview).
		Int("stdinBytes", len(stdin)).
		Msg("Running external process")

	res, runErr := p.runner.Run(ctx, Command{
		Path:           spec.Command,
		Args:           args,
		Stdin:          stdin,
		Timeout:        spec.Timeout,
		MaxOutputBytes: spec.MaxOutputBytes,
	})
	if res != nil {
		span.SetAttributes(
			attribute.Int("process.exit_code", res.ExitCode),
			attribute.Bool("process.truncated", res.Truncated),
		)
	}

	outcome := Decode(res, runErr, spec.Output.Type)
	span.SetAttributes(attribute.String("process.decoded", outcome.Kind.String()))

	if outcome.Kind == OutcomeFailure {
		event := getLog().Warn().Str("command", preview)
		if runErr != nil {
			event = event.Err(runErr)
		} else {
			event = event.Str("stdoutPreview", truncateString(outcome.Text, 500))
		}
		if res != nil {
			event = event.
				Int("exitCode", res.ExitCode).
				Dur("duration", res.Duration).
				Int("stdoutLines", res.StdoutLines).
				Int("stdoutBytes", res.StdoutBytes).
				Bool("truncated", res.Truncated).
				Str("stderrPreview", truncateString(res.Stderr, 500))
		}
		event.Msg("External process produced no usable output, using fallback")

		if runErr != nil {
			span.RecordError(runErr)
		}
		span.SetAttributes(attribute.String("process.outcome", "fallback"))
		return call.fallback(), nil
	}

	mapper, ok := call.Success[spec.Output.Type]
	if !ok || mapper == nil {
		getLog().Error().
			Str("command", preview).
			Str("outputType", string(spec.Output.Type)).
			Msg("No success mapper for output type, using fallback")
		span.SetAttributes(attribute.String("process.outcome", "fallback"))
		return call.fallback(), nil
	}

	value, err := mapper(Output{
		Type:  spec.Output.Type,
		Text:  outcome.Text,
		Empty: outcome.Kind == OutcomeEmpty,
	})
	if err != nil {
		if errors.Is(err, ErrMalformedOutput) {
			getLog().Warn().Err(err).Str("command", preview).Msg("Unusable process output, using fallback")
			span.SetAttributes(attribute.String("process.outcome", "fallback"))
			return call.fallback(), nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var zero T
		return zero, err
	}

	if res != nil {
		getLog().Debug().
			Str("command", preview).
			Dur("duration", res.Duration).
			Int("stdoutLines", res.StdoutLines).
			Int("stdoutBytes", res.StdoutBytes).
			Str("outcome", outcome.Kind.String()).
			Msg("External process completed")
	}
	span.SetAttributes(attribute.String("process.outcome", "success"))
	return value, nil
}
