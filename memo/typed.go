package memo

import (
	"context"
	"errors"
	"fmt"
)

// ErrResultType indicates a cached value cannot be returned as the
// function's declared result type.
var ErrResultType = errors.New("memo: cached result has unexpected type")

// Func1 memoizes a one-argument function. The identity defaults to the
// runtime name of fn.
func Func1[A, R any](name string, fn func(context.Context, A) (R, error), opts ...Option) func(context.Context, A) (R, error) {
	m := New(name, func(ctx context.Context, args Args) (any, error) {
		a, _ := args.Positional[0].(A)
		return fn(ctx, a)
	}, withDefaultIdentity(fn, opts)...)

	return func(ctx context.Context, a A) (R, error) {
		return typedCall[R](ctx, m, Pos(a))
	}
}

// Func2 memoizes a two-argument function.
func Func2[A, B, R any](name string, fn func(context.Context, A, B) (R, error), opts ...Option) func(context.Context, A, B) (R, error) {
	m := New(name, func(ctx context.Context, args Args) (any, error) {
		a, _ := args.Positional[0].(A)
		b, _ := args.Positional[1].(B)
		return fn(ctx, a, b)
	}, withDefaultIdentity(fn, opts)...)

	return func(ctx context.Context, a A, b B) (R, error) {
		return typedCall[R](ctx, m, Pos(a, b))
	}
}

func withDefaultIdentity(fn any, opts []Option) []Option {
	return append([]Option{WithIdentity(IdentityOf(fn))}, opts...)
}

func typedCall[R any](ctx context.Context, m *Memoizer, args Args) (R, error) {
	var zero R
	v, err := m.Call(ctx, args)
	if err != nil || v == nil {
		return zero, err
	}
	r, ok := v.(R)
	if !ok {
		return zero, fmt.Errorf("%w: %s returned %T", ErrResultType, m.Name(), v)
	}
	return r, nil
}
