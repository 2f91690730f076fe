package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/amirfounder/http-server/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(config.TracingConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestTracerProviderExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	tp, err := NewTracerProvider("test-service", &buf)
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(context.Background(), "dispatch POST /")
	span.End()

	require.NoError(t, tp.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "dispatch POST /")
	assert.Contains(t, buf.String(), "test-service")
}
