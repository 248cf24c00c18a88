package telemetry

import (
	"context"
	"sync"
	"testing"

	"github.com/clubledger/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (e *recordingExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.records = append(e.records, r.Clone())
	}
	return nil
}

func (e *recordingExporter) Shutdown(context.Context) error   { return nil }
func (e *recordingExporter) ForceFlush(context.Context) error { return nil }

func (e *recordingExporter) snapshot() []sdklog.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]sdklog.Record(nil), e.records...)
}

func attr(r sdklog.Record, key string) (string, bool) {
	var val string
	var found bool
	r.WalkAttributes(func(kv otellog.KeyValue) bool {
		if kv.Key == key {
			val, found = kv.Value.AsString(), true
			return false
		}
		return true
	})
	return val, found
}

func TestLoggerProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	lp, err := NewLoggerProvider(ctx, LogsConfig{Enabled: false}, nil)
	require.NoError(t, err)

	base := zap.NewNop()
	assert.False(t, lp.IsEnabled())
	assert.Same(t, base, lp.Bridge(base, zapcore.InfoLevel))
	assert.NoError(t, lp.ForceFlush(ctx))
	assert.NoError(t, lp.Shutdown(ctx))
}

func TestLoggerProvider_BridgeTeesEntries(t *testing.T) {
	ctx := context.Background()
	exp := &recordingExporter{}
	lp, err := newLoggerProvider(LogsConfig{Enabled: true, ServiceName: "clubledger-test"}, exp, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = lp.Shutdown(ctx) })

	core, local := observer.New(zapcore.DebugLevel)
	log := lp.Bridge(zap.New(core), zapcore.InfoLevel)

	log.Debug("sweeping idempotency keys")
	log.With(zap.String("tenant_id", "t-1")).Warn("webhook rejected", zap.String("gateway", "stripe"))
	require.NoError(t, lp.ForceFlush(ctx))

	assert.Equal(t, 2, local.Len(), "local sink keeps every level")

	records := exp.snapshot()
	require.Len(t, records, 1, "debug stays local")
	assert.Equal(t, "webhook rejected", records[0].Body().AsString())
	assert.Equal(t, otellog.SeverityWarn, records[0].Severity())
	tenant, ok := attr(records[0], "tenant_id")
	assert.True(t, ok)
	assert.Equal(t, "t-1", tenant)
	gw, _ := attr(records[0], "gateway")
	assert.Equal(t, "stripe", gw)
}

func TestLogsConfigFromApp(t *testing.T) {
	lc := LogsConfigFromApp(config.TelemetryConfig{
		LogsEnabled:       true,
		CollectorEndpoint: "otel:4317",
		ServiceName:       "clubledger",
		Insecure:          true,
	}, "1.2.3")
	assert.True(t, lc.Enabled)
	assert.Equal(t, "otel:4317", lc.CollectorEndpoint)
	assert.Equal(t, "1.2.3", lc.ServiceVersion)
	assert.True(t, lc.Insecure)
}

func TestProfiler(t *testing.T) {
	t.Run("disabled is a no-op", func(t *testing.T) {
		p, err := NewProfiler(ProfilerConfig{Enabled: false}, nil)
		require.NoError(t, err)
		assert.False(t, p.IsEnabled())
		assert.NoError(t, p.Stop())
		assert.NoError(t, p.Stop())
	})

	t.Run("enabled requires an address", func(t *testing.T) {
		_, err := NewProfiler(ProfilerConfig{Enabled: true, ApplicationName: "clubledger"}, nil)
		assert.ErrorContains(t, err, "server address")
	})

	t.Run("enabled requires an application name", func(t *testing.T) {
		_, err := NewProfiler(ProfilerConfig{Enabled: true, ServerAddress: "http://localhost:4040"}, nil)
		assert.ErrorContains(t, err, "application name")
	})

	t.Run("config from app", func(t *testing.T) {
		pc := ProfilerConfigFromApp(config.TelemetryConfig{
			ProfilingEnabled:       true,
			ProfilingServerAddress: "http://pyroscope:4040",
			ServiceName:            "clubledger",
		}, "1.2.3")
		assert.True(t, pc.Enabled)
		assert.Equal(t, "clubledger", pc.ApplicationName)
		assert.Equal(t, "1.2.3", pc.Version)
	})
}

func TestEnableSpanProfiles_DisabledTracing(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), Config{Enabled: false}, nil)
	require.NoError(t, err)
	tp.EnableSpanProfiles()
	assert.False(t, tp.IsEnabled())
}
