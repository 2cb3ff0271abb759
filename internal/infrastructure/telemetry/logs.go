package telemetry

import (
	"context"
	"fmt"

	"github.com/erp/labelprint/internal/infrastructure/config"
	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLoggerProvider(ctx context.Context, cfg *config.TelemetryConfig, res *resource.Resource) (*sdklog.LoggerProvider, error) {
	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}
	return sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	), nil
}

// BridgeLogger tees base into the OTLP log pipeline when log export is on.
// Records below the level of base are not exported.
func (p *Providers) BridgeLogger(base *zap.Logger, service string) *zap.Logger {
	if p.logs == nil {
		return base
	}
	return base.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, BridgeCore(p.logs, service, zapcore.LevelOf(core)))
	}))
}

// BridgeCore is a zap core that emits records through provider
func BridgeCore(provider log.LoggerProvider, service string, level zapcore.LevelEnabler) zapcore.Core {
	otelCore := otelzap.NewCore(service, otelzap.WithLoggerProvider(provider))
	filtered, err := zapcore.NewIncreaseLevelCore(otelCore, level)
	if err != nil {
		return otelCore
	}
	return filtered
}
