package service

import (
	"context"
	"fmt"
)

// Adapter exposes a Performer as a Service bound to a route and method.
type Adapter[T Performer] struct {
	route  string
	method Method
	target T
}

var _ Service = (*Adapter[PerformerFunc])(nil)

// NewAdapter binds target to route and method.
func NewAdapter[T Performer](route string, method Method, target T) *Adapter[T] {
	return &Adapter[T]{
		route:  route,
		method: method,
		target: target,
	}
}

// Wrap builds a Service from a plain function.
func Wrap(route string, method Method, fn func(ctx context.Context, params Params) (any, error)) *Adapter[PerformerFunc] {
	return NewAdapter(route, method, PerformerFunc(fn))
}

func (a *Adapter[T]) Route() string  { return a.route }
func (a *Adapter[T]) Method() Method { return a.method }

// Target returns the wrapped business object.
func (a *Adapter[T]) Target() T { return a.target }

// Run forwards to the target. Errors and panics propagate to the caller untouched.
func (a *Adapter[T]) Run(ctx context.Context, params Params) (any, error) {
	return a.target.Perform(ctx, params)
}

func (a *Adapter[T]) String() string {
	return fmt.Sprintf("%s %s (%T)", a.method, a.route, a.target)
}
