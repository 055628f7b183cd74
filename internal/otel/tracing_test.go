package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInit_Disabled(t *testing.T) {
	t.Setenv("OTEL_SDK_DISABLED", "true")
	core, logs := observer.New(zap.InfoLevel)

	shutdown, err := Init(context.Background(), zap.New(core))
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	entries := logs.FilterMessage("tracing_configured").All()
	require.Len(t, entries, 1)
	assert.Equal(t, false, entries[0].ContextMap()["tracing_enabled"])
}

func TestInit_UnsupportedProtocolDegrades(t *testing.T) {
	t.Setenv("OTEL_SDK_DISABLED", "false")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "carrier-pigeon")
	core, logs := observer.New(zap.InfoLevel)

	shutdown, err := Init(context.Background(), zap.New(core))
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.Equal(t, 1, logs.FilterMessage("tracing_init_failed").Len())
}

func TestSampler(t *testing.T) {
	tests := []struct {
		name string
		arg  string
		want string
	}{
		{"always_on", "", trace.AlwaysSample().Description()},
		{"always_off", "", trace.NeverSample().Description()},
		{"traceidratio", "0.5", trace.TraceIDRatioBased(0.5).Description()},
		{"traceidratio", "bogus", trace.TraceIDRatioBased(1).Description()},
		{"unknown", "", trace.ParentBased(trace.AlwaysSample()).Description()},
	}
	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.arg, func(t *testing.T) {
			assert.Equal(t, tt.want, sampler(tt.name, tt.arg).Description())
		})
	}
}
