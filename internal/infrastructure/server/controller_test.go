package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/amirfounder/http-server/internal/infrastructure/config"
	httperrors "github.com/amirfounder/http-server/pkg/errors"
	"github.com/amirfounder/http-server/pkg/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *HTTPServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	for _, m := range mutate {
		m(cfg)
	}
	srv, err := NewHTTPServer(HTTPServerOptions{Config: cfg, Logger: zap.NewNop()})
	require.NoError(t, err)
	return srv
}

func doRequest(h http.Handler, method, path, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

// paramRecorder remembers the params of its last call
type paramRecorder struct {
	got    service.Params
	calls  int
	result func(service.Params) (any, error)
}

func (p *paramRecorder) Perform(_ context.Context, params service.Params) (any, error) {
	p.calls++
	p.got = params
	if p.result == nil {
		return params, nil
	}
	return p.result(params)
}

func TestDispatchScenarioHaha(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.RegisterService(constant("/", service.MethodPost, "Haha")))
	h := srv.Handler()

	w := doRequest(h, http.MethodPost, "/", "application/json", `{}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `"Haha"`, w.Body.String())

	w = doRequest(h, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	body := decodeBody(t, w)
	assert.Len(t, body, 4)
	assert.Equal(t, float64(405), body["statusCode"])
	assert.Equal(t, "Not Allowed", body["errorLabel"])
	assert.Equal(t, "Method not allowed.", body["message"])
	_, err := time.Parse(time.RFC3339Nano, body["timestamp"].(string))
	assert.NoError(t, err)
}

func TestDispatchErrorStatusIsPassedThrough(t *testing.T) {
	// Error bodies must never travel with a 200.
	srv := newTestServer(t)
	require.NoError(t, srv.RegisterServices([]service.Service{
		service.Wrap("/missing", service.MethodGet, func(context.Context, service.Params) (any, error) {
			return nil, httperrors.NewNotFound("widget 7 not found")
		}),
		service.Wrap("/invalid", service.MethodPost, func(context.Context, service.Params) (any, error) {
			return nil, fmt.Errorf("validate: %w", httperrors.NewBadRequest("name is required"))
		}),
		service.Wrap("/teapot", service.MethodGet, func(context.Context, service.Params) (any, error) {
			return nil, httperrors.New(http.StatusTeapot, "Teapot", "short and stout")
		}),
	}))
	h := srv.Handler()

	w := doRequest(h, http.MethodGet, "/missing", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(404), body["statusCode"])
	assert.Equal(t, "Not Found", body["errorLabel"])
	assert.Equal(t, "widget 7 not found", body["message"])

	w = doRequest(h, http.MethodPost, "/invalid", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "name is required", decodeBody(t, w)["message"])

	w = doRequest(h, http.MethodGet, "/teapot", "", "")
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "Teapot", decodeBody(t, w)["errorLabel"])
}

func TestDispatchPassesParamsUnchanged(t *testing.T) {
	rec := &paramRecorder{}
	srv := newTestServer(t)
	require.NoError(t, srv.RegisterService(service.NewAdapter("/echo", service.MethodPut, rec)))

	payload := `{"name":"ada","age":36,"tags":["a","b"],"nested":{"ok":true}}`
	w := doRequest(srv.Handler(), http.MethodPut, "/echo", "application/json; charset=utf-8", payload)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.Params{
		"name":   "ada",
		"age":    float64(36),
		"tags":   []any{"a", "b"},
		"nested": map[string]any{"ok": true},
	}, rec.got)
	assert.JSONEq(t, payload, w.Body.String())
}

func TestDispatchNonJSONBodyGivesEmptyParams(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{"plain text", "text/plain", "hello"},
		{"form", "application/x-www-form-urlencoded", "a=1"},
		{"json without content type", "", `{"a":1}`},
		{"empty json body", "application/json", ""},
		{"json null", "application/json", "null"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &paramRecorder{result: func(service.Params) (any, error) { return "ok", nil }}
			srv := newTestServer(t)
			require.NoError(t, srv.RegisterService(service.NewAdapter("/", service.MethodPost, rec)))

			w := doRequest(srv.Handler(), http.MethodPost, "/", tt.contentType, tt.body)

			require.Equal(t, http.StatusOK, w.Code)
			require.Equal(t, 1, rec.calls)
			assert.NotNil(t, rec.got)
			assert.Empty(t, rec.got)
		})
	}
}

func TestDispatchJSONContentTypeIsCaseInsensitive(t *testing.T) {
	rec := &paramRecorder{}
	srv := newTestServer(t)
	require.NoError(t, srv.RegisterService(service.NewAdapter("/", service.MethodPost, rec)))

	w := doRequest(srv.Handler(), http.MethodPost, "/", "Application/JSON; charset=UTF-8", `{"a":"b"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.Params{"a": "b"}, rec.got)
}

func TestDispatchVendorJSONIsParsed(t *testing.T) {
	rec := &paramRecorder{}
	srv := newTestServer(t)
	require.NoError(t, srv.RegisterService(service.NewAdapter("/", service.MethodPost, rec)))

	w := doRequest(srv.Handler(), http.MethodPost, "/", "application/vnd.api+json", `{"a":"b"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.Params{"a": "b"}, rec.got)
}

func TestDispatchRejectsBadJSON(t *testing.T) {
	for name, body := range map[string]string{
		"malformed": `{"a":`,
		"array":     `[1,2,3]`,
		"scalar":    `"text"`,
		"trailing":  `{"a":1} garbage`,
		"two":       `{"a":1}{"b":2}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := &paramRecorder{}
			srv := newTestServer(t)
			require.NoError(t, srv.RegisterService(service.NewAdapter("/", service.MethodPost, rec)))

			w := doRequest(srv.Handler(), http.MethodPost, "/", "application/json", body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "Bad Request", decodeBody(t, w)["errorLabel"])
			assert.Zero(t, rec.calls)
		})
	}
}

func TestDispatchUntypedErrorBecomesInternalError(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.RegisterService(service.Wrap("/", service.MethodGet, func(context.Context, service.Params) (any, error) {
		return nil, fmt.Errorf("connection refused: secret-host:5432")
	})))

	w := doRequest(srv.Handler(), http.MethodGet, "/", "", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(500), body["statusCode"])
	assert.Equal(t, "Internal Service Error", body["errorLabel"])
	assert.Equal(t, "An error occurred.", body["message"])
	assert.NotContains(t, w.Body.String(), "secret-host")
}

func TestDispatchPanicIsContained(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.RegisterServices([]service.Service{
		service.Wrap("/boom", service.MethodGet, func(context.Context, service.Params) (any, error) {
			panic("nil map write")
		}),
		constant("/fine", service.MethodGet, "still here"),
	}))
	h := srv.Handler()

	w := doRequest(h, http.MethodGet, "/boom", "", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal Service Error", decodeBody(t, w)["errorLabel"])

	w = doRequest(h, http.MethodGet, "/fine", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `"still here"`, w.Body.String())
}

func TestDispatchMethodOutsideEnumeration(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.RegisterService(constant("/", service.MethodPost, "Haha")))

	w := doRequest(srv.Handler(), "TRACE", "/", "", "")

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "Not Allowed", decodeBody(t, w)["errorLabel"])
}

func TestDispatchUnknownPath(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.RegisterService(constant("/users", service.MethodGet, nil)))
	h := srv.Handler()

	for _, path := range []string{"/nope", "/users/"} {
		w := doRequest(h, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Equal(t, "Resource not found.", decodeBody(t, w)["message"])
	}
}

func TestDispatchNilResult(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.RegisterService(constant("/", service.MethodDelete, nil)))

	w := doRequest(srv.Handler(), http.MethodDelete, "/", "", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", w.Body.String())
}
