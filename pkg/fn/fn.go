// Package fn is the plumbing for the ingest pipeline: a Result that carries
// a value or an error, stages composed with Then, and span wrapping for
// traced stages.
package fn

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// Result is the outcome of a stage. Exactly one of value and err is
// meaningful; a nil error means success.
type Result[T any] struct {
	value T
	err   error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] { return Result[T]{value: v} }

// Err wraps a failure.
func Err[T any](err error) Result[T] { return Result[T]{err: err} }

// Errf wraps a failure built from a format string.
func Errf[T any](format string, args ...any) Result[T] {
	return Result[T]{err: fmt.Errorf(format, args...)}
}

// Unwrap returns the value and the error. Exactly one is set.
func (r Result[T]) Unwrap() (T, error) { return r.value, r.err }

// Failed reports whether the result carries an error.
func (r Result[T]) Failed() bool { return r.err != nil }

// Stage transforms In to Out under a context.
type Stage[In, Out any] func(context.Context, In) Result[Out]

// Then chains two stages. A failure in the first stage skips the second and
// carries the error through.
func Then[A, B, C any](first Stage[A, B], second Stage[B, C]) Stage[A, C] {
	return func(ctx context.Context, a A) Result[C] {
		mid, err := first(ctx, a).Unwrap()
		if err != nil {
			return Err[C](err)
		}
		return second(ctx, mid)
	}
}

// TracedStage runs the stage inside an OTel span named after it, recording
// the error on failure.
func TracedStage[In, Out any](name string, stage Stage[In, Out]) Stage[In, Out] {
	tracer := otel.Tracer("marketrag/fn")
	return func(ctx context.Context, in In) Result[Out] {
		ctx, span := tracer.Start(ctx, name)
		defer span.End()

		out := stage(ctx, in)
		if _, err := out.Unwrap(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return out
	}
}

// Map applies f to every element of items.
func Map[T, U any](items []T, f func(T) U) []U {
	out := make([]U, len(items))
	for i := range items {
		out[i] = f(items[i])
	}
	return out
}

// Chunk cuts items into consecutive batches of at most size elements. A
// non-positive size yields nil.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		return nil
	}
	batches := make([][]T, 0, (len(items)+size-1)/size)
	for len(items) > size {
		batches = append(batches, items[:size])
		items = items[size:]
	}
	if len(items) > 0 {
		batches = append(batches, items)
	}
	return batches
}
