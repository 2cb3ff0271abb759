package telemetry_test

import (
	"context"
	"sync"
	"testing"

	"github.com/erp/labelprint/internal/infrastructure/config"
	"github.com/erp/labelprint/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type bodyExporter struct {
	mu     sync.Mutex
	bodies []string
}

func (e *bodyExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.bodies = append(e.bodies, r.Body().AsString())
	}
	return nil
}

func (e *bodyExporter) Shutdown(context.Context) error   { return nil }
func (e *bodyExporter) ForceFlush(context.Context) error { return nil }

func (e *bodyExporter) exported() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.bodies...)
}

func TestBridgeCore_FiltersByLevel(t *testing.T) {
	exporter := &bodyExporter{}
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exporter)))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	log := zap.New(telemetry.BridgeCore(provider, "labelprint-test", zapcore.InfoLevel))
	log.Debug("registration attempt")
	log.Info("job completed", zap.String("job_id", "j-1"))

	assert.Equal(t, []string{"job completed"}, exporter.exported())
}

func TestBridgeLogger_DisabledKeepsBase(t *testing.T) {
	p, err := telemetry.NewProviders(context.Background(), &config.TelemetryConfig{ExportLogs: true}, "test", nil)
	require.NoError(t, err)

	base := zap.NewNop()
	assert.Same(t, base, p.BridgeLogger(base, "labelprint"))
}
