// internal/telemetry/telemetry_test.go
package telemetry_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"librarydesk/internal/config"
	"librarydesk/internal/telemetry"
)

func Test_NewLogger_TextFiltersBelowLevel(t *testing.T) {
	var out bytes.Buffer
	logger, err := telemetry.NewLogger(&out, config.LogConfig{Level: "warn", Format: "text"})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "book_id", 7)

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "msg=shown")
	assert.Contains(t, out.String(), "book_id=7")
}

func Test_NewLogger_JSON(t *testing.T) {
	var out bytes.Buffer
	logger, err := telemetry.NewLogger(&out, config.LogConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)

	logger.Debug("loaded", "books", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &entry))
	assert.Equal(t, "loaded", entry["msg"])
	assert.Equal(t, float64(3), entry["books"])
}

func Test_NewLogger_Error_WhenUnknownLevelOrFormat(t *testing.T) {
	_, err := telemetry.NewLogger(&bytes.Buffer{}, config.LogConfig{Level: "loud", Format: "text"})
	assert.Error(t, err)

	_, err = telemetry.NewLogger(&bytes.Buffer{}, config.LogConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func Test_Setup_LeavesGlobalProvider_WhenNoEndpoint(t *testing.T) {
	before := otel.GetTracerProvider()

	shutdown, err := telemetry.Setup(context.Background(), config.TelemetryConfig{ServiceName: "librarydesk"})

	require.NoError(t, err)
	assert.Equal(t, before, otel.GetTracerProvider())
	assert.NoError(t, shutdown(context.Background()))
}

func Test_Setup_InstallsSDKProvider_WhenEndpointConfigured(t *testing.T) {
	before := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(before) })

	shutdown, err := telemetry.Setup(context.Background(), config.TelemetryConfig{
		OTLPEndpoint: "http://localhost:4318",
		ServiceName:  "librarydesk-test",
	})

	require.NoError(t, err)
	assert.IsType(t, &sdktrace.TracerProvider{}, otel.GetTracerProvider())
	assert.NoError(t, shutdown(context.Background()))
}
