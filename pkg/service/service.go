// Package service defines the contract between business logic and the HTTP dispatcher.
package service

import "context"

// Params holds the decoded JSON object of a request body.
type Params map[string]any

// Service is a unit of business logic reachable over one (route, method) pair.
//
// Route and Method are identity fields read at registration time only.
// Run returns any JSON-serializable value, or an error. Errors of type
// *errors.HTTPError are rendered with their own status; anything else is
// reported to the client as an internal error.
type Service interface {
	Route() string
	Method() Method
	Run(ctx context.Context, params Params) (any, error)
}

// Performer is a piece of business logic that knows nothing about routes or methods.
type Performer interface {
	Perform(ctx context.Context, params Params) (any, error)
}

// PerformerFunc adapts an ordinary function to Performer.
type PerformerFunc func(ctx context.Context, params Params) (any, error)

// Perform calls f(ctx, params).
func (f PerformerFunc) Perform(ctx context.Context, params Params) (any, error) {
	return f(ctx, params)
}
