package server

import (
	"context"
	"testing"

	"github.com/amirfounder/http-server/pkg/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func constant(route string, method service.Method, out any) service.Service {
	return service.Wrap(route, method, func(context.Context, service.Params) (any, error) {
		return out, nil
	})
}

func TestRegistryLookupReturnsRegisteredInstance(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	services := []service.Service{
		constant("/", service.MethodPost, "root post"),
		constant("/", service.MethodGet, "root get"),
		constant("/users", service.MethodGet, "users"),
		constant("/users/", service.MethodDelete, "users slash"),
	}
	require.NoError(t, r.RegisterAll(services))

	for _, svc := range services {
		got, ok := r.Lookup(svc.Route(), svc.Method())
		require.True(t, ok, "%s %s", svc.Method(), svc.Route())
		assert.Same(t, svc, got)
	}
	assert.Equal(t, 4, r.Len())

	_, ok := r.Lookup("/users", service.MethodPost)
	assert.False(t, ok)
	_, ok = r.Lookup("/missing", service.MethodGet)
	assert.False(t, ok)
}

func TestRegistryRejectsDuplicateAndKeepsFirst(t *testing.T) {
	r := NewRegistry(nil)
	first := constant("/", service.MethodPost, "first")
	second := constant("/", service.MethodPost, "second")

	require.NoError(t, r.Register(first))
	err := r.Register(second)

	require.ErrorIs(t, err, ErrDuplicateService)
	assert.EqualError(t, err, "service already registered under route, method: / POST")
	got, _ := r.Lookup("/", service.MethodPost)
	assert.Same(t, first, got)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryRegisterAllFailsFast(t *testing.T) {
	r := NewRegistry(nil)
	a := constant("/a", service.MethodGet, 1)
	dup := constant("/a", service.MethodGet, 2)
	b := constant("/b", service.MethodGet, 3)

	err := r.RegisterAll([]service.Service{a, dup, b})

	require.ErrorIs(t, err, ErrDuplicateService)
	_, ok := r.Lookup("/a", service.MethodGet)
	assert.True(t, ok, "registrations before the failure are kept")
	_, ok = r.Lookup("/b", service.MethodGet)
	assert.False(t, ok, "registrations after the failure are skipped")
}

func TestRegistryValidation(t *testing.T) {
	tests := []struct {
		name string
		svc  service.Service
	}{
		{"nil service", nil},
		{"empty route", constant("", service.MethodGet, nil)},
		{"relative route", constant("users", service.MethodGet, nil)},
		{"param route", constant("/users/:id", service.MethodGet, nil)},
		{"wildcard route", constant("/files/*path", service.MethodGet, nil)},
		{"bad method", constant("/users", service.Method("BREW"), nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(nil)
			err := r.Register(tt.svc)
			assert.ErrorIs(t, err, ErrInvalidService)
			assert.Zero(t, r.Len())
			assert.Empty(t, r.Routes())
		})
	}
}

func TestRegistryRoutesAndMethodsOrder(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.RegisterAll([]service.Service{
		constant("/z", service.MethodDelete, nil),
		constant("/a", service.MethodGet, nil),
		constant("/z", service.MethodGet, nil),
		constant("/z", service.MethodPost, nil),
	}))

	assert.Equal(t, []string{"/z", "/a"}, r.Routes())
	assert.Equal(t,
		[]service.Method{service.MethodGet, service.MethodPost, service.MethodDelete},
		r.Methods("/z"))
	assert.Empty(t, r.Methods("/nope"))
}

func TestRegistrySealed(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(constant("/", service.MethodGet, nil)))
	assert.False(t, r.Sealed())

	r.Seal()

	assert.True(t, r.Sealed())
	assert.ErrorIs(t, r.Register(constant("/late", service.MethodGet, nil)), ErrRegistrySealed)
	_, ok := r.Lookup("/late", service.MethodGet)
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}
