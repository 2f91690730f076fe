package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/amirfounder/http-server/internal/infrastructure/config"
	httperrors "github.com/amirfounder/http-server/pkg/errors"
	"github.com/amirfounder/http-server/pkg/metrics"
	"github.com/amirfounder/http-server/pkg/service"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

// Controller turns a matched request into a service call and the call's outcome into a response.
// Every error returned by a service stops here.
type Controller struct {
	registry *Registry
	logger   *zap.Logger
	envelope *Envelope
}

// NewController creates a Controller reading from registry
func NewController(registry *Registry, logger *zap.Logger, cfg config.DispatchConfig) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctl := &Controller{
		registry: registry,
		logger:   logger,
	}
	if cfg.Envelope {
		ctl.envelope = NewEnvelope(cfg.TruncatedLength)
	}
	return ctl
}

// Handler returns the gin handler bound to route
func (ctl *Controller) Handler(route string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctl.dispatch(c, route)
	}
}

func (ctl *Controller) dispatch(c *gin.Context, route string) {
	svc, method, found := ctl.lookup(route, c.Request.Method)
	if !found {
		ctl.writeError(c, httperrors.NewNotAllowed(""))
		return
	}

	params, err := parseParams(c)
	if err != nil {
		ctl.writeError(c, err)
		return
	}

	start := time.Now()
	result, err := run(c.Request.Context(), svc, params)
	end := time.Now()
	metrics.ServiceLatency.WithLabelValues(route, method.String()).Observe(end.Sub(start).Seconds())

	if err != nil {
		ctl.fail(c, route, method, err)
		return
	}
	metrics.DispatchOutcomes.WithLabelValues(route, method.String(), metrics.OutcomeOK).Inc()

	if ctl.envelope != nil {
		c.JSON(http.StatusOK, ctl.envelope.Wrap(Call{
			Path:      c.Request.URL.Path,
			Method:    method,
			RequestID: c.GetString(requestIDKey),
			Service:   svc,
			Params:    params,
			Result:    result,
			Start:     start,
			End:       end,
		}))
		return
	}

	c.JSON(http.StatusOK, result)
}

func (ctl *Controller) lookup(route, rawMethod string) (service.Service, service.Method, bool) {
	method, ok := service.ParseMethod(rawMethod)
	if !ok {
		return nil, "", false
	}
	svc, ok := ctl.registry.Lookup(route, method)
	return svc, method, ok
}

// fail renders err. Typed errors keep their status; anything else becomes a 500
// and is logged here, since the client never sees its detail.
func (ctl *Controller) fail(c *gin.Context, route string, method service.Method, err error) {
	if httpErr, ok := httperrors.AsHTTPError(err); ok {
		metrics.DispatchOutcomes.WithLabelValues(route, method.String(), metrics.OutcomeHTTPError).Inc()
		ctl.logger.Debug("Service returned HTTP error",
			zap.String("route", route),
			zap.String("method", method.String()),
			zap.Int("status", httpErr.StatusCode),
			zap.String("message", httpErr.Message))
		ctl.writeError(c, httpErr)
		return
	}

	fields := []zap.Field{
		zap.String("route", route),
		zap.String("method", method.String()),
		zap.String("request_id", c.GetString(requestIDKey)),
		zap.Error(err),
	}
	outcome := metrics.OutcomeInternalError
	if p, ok := err.(*panicError); ok {
		outcome = metrics.OutcomePanic
		fields = append(fields, zap.ByteString("stack", p.stack))
	}
	metrics.DispatchOutcomes.WithLabelValues(route, method.String(), outcome).Inc()
	ctl.logger.Error("Service failed", fields...)

	ctl.writeError(c, httperrors.NewInternalError("").WithCause(err))
}

// writeError renders err as a structured body with the error's own status code.
func (ctl *Controller) writeError(c *gin.Context, err error) {
	httpErr, ok := httperrors.AsHTTPError(err)
	if !ok {
		httpErr = httperrors.NewInternalError("").WithCause(err)
	}
	c.AbortWithStatusJSON(httpErr.StatusCode, httpErr.ToResponseBody())
}

type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string {
	return fmt.Sprintf("service panicked: %v", p.value)
}

// run calls svc, converting a panic into an error so one service cannot take the handler down.
func run(ctx context.Context, svc service.Service, params service.Params) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = &panicError{value: rec, stack: debug.Stack()}
		}
	}()
	return svc.Run(ctx, params)
}

// parseParams decodes a JSON object body. Bodies that are not declared as JSON yield empty params.
func parseParams(c *gin.Context) (service.Params, error) {
	params := service.Params{}
	if !isJSON(c.ContentType()) {
		return params, nil
	}

	body, err := c.GetRawData()
	if err != nil {
		return nil, httperrors.NewBadRequest("Could not read request body.").WithCause(err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return params, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&params); err != nil {
		return nil, httperrors.NewBadRequest("Request body must be a JSON object.").WithCause(err)
	}
	var trailing json.RawMessage
	if err := dec.Decode(&trailing); !errors.Is(err, io.EOF) {
		return nil, httperrors.NewBadRequest("Request body must be a single JSON object.")
	}
	if params == nil {
		// literal null
		params = service.Params{}
	}
	return params, nil
}

func isJSON(contentType string) bool {
	contentType = strings.ToLower(contentType)
	return contentType == binding.MIMEJSON ||
		(strings.HasPrefix(contentType, "application/") && strings.HasSuffix(contentType, "+json"))
}
