package main

import (
	"context"
	"fmt"
	"time"

	httperrors "github.com/amirfounder/http-server/pkg/errors"
	"github.com/amirfounder/http-server/pkg/service"
)

// greeter answers POST / with a fixed greeting
type greeter struct {
	greeting string
}

func (g greeter) Perform(context.Context, service.Params) (any, error) {
	return g.greeting, nil
}

func echo(_ context.Context, params service.Params) (any, error) {
	return params, nil
}

func clock(context.Context, service.Params) (any, error) {
	return map[string]string{"now": time.Now().UTC().Format(time.RFC3339)}, nil
}

// greet builds a greeting for params["name"]
func greet(_ context.Context, params service.Params) (any, error) {
	name, ok := params["name"].(string)
	if !ok || name == "" {
		return nil, httperrors.NewBadRequest("name must be a non-empty string")
	}
	return fmt.Sprintf("Hello, %s!", name), nil
}

func bundledServices() []service.Service {
	return []service.Service{
		service.NewAdapter("/", service.MethodPost, greeter{greeting: "Haha"}),
		service.Wrap("/echo", service.MethodPost, echo),
		service.Wrap("/greet", service.MethodPost, greet),
		service.Wrap("/time", service.MethodGet, clock),
	}
}
