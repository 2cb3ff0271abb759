package telemetry

import (
	"context"
	"fmt"
	"time"

	apprinting "github.com/erp/labelprint/internal/application/printing"
	"github.com/erp/labelprint/internal/domain/printing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/erp/labelprint/jobs"

// JobMetrics records label job outcomes as OpenTelemetry instruments
type JobMetrics struct {
	jobs        metric.Int64Counter
	labels      metric.Int64Counter
	codes       metric.Int64Counter
	attempts    metric.Int64Counter
	jobDuration metric.Float64Histogram
}

// NewJobMetrics creates the job instruments on the given meter
func NewJobMetrics(meter metric.Meter) (*JobMetrics, error) {
	m := &JobMetrics{}
	var err error

	if m.jobs, err = meter.Int64Counter("label_jobs_total",
		metric.WithDescription("Label jobs by outcome"),
		metric.WithUnit("{job}")); err != nil {
		return nil, fmt.Errorf("failed to create label_jobs_total: %w", err)
	}
	if m.labels, err = meter.Int64Counter("labels_printed_total",
		metric.WithDescription("Labels delivered to a printer"),
		metric.WithUnit("{label}")); err != nil {
		return nil, fmt.Errorf("failed to create labels_printed_total: %w", err)
	}
	if m.codes, err = meter.Int64Counter("qr_codes_registered_total",
		metric.WithDescription("Sale codes confirmed by the registration service"),
		metric.WithUnit("{code}")); err != nil {
		return nil, fmt.Errorf("failed to create qr_codes_registered_total: %w", err)
	}
	if m.attempts, err = meter.Int64Counter("registration_attempts_total",
		metric.WithDescription("Registration attempts by outcome"),
		metric.WithUnit("{attempt}")); err != nil {
		return nil, fmt.Errorf("failed to create registration_attempts_total: %w", err)
	}
	if m.jobDuration, err = meter.Float64Histogram("label_job_duration_seconds",
		metric.WithDescription("Wall time from job start to terminal result"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 2, 5, 10, 30, 60, 120)); err != nil {
		return nil, fmt.Errorf("failed to create label_job_duration_seconds: %w", err)
	}
	return m, nil
}

// RecordRegistrationAttempt counts one registration call
func (m *JobMetrics) RecordRegistrationAttempt(ctx context.Context, attempt int, kind printing.FailureKind) {
	outcome := "success"
	if kind != printing.FailureNone {
		outcome = string(kind)
	}
	m.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("attempt", attempt),
		attribute.String("outcome", outcome),
	))
}

// RecordJob counts a terminal job result
func (m *JobMetrics) RecordJob(ctx context.Context, result printing.PrintResult, reprint bool, duration time.Duration) {
	outcome := "success"
	if !result.Success {
		outcome = string(result.Kind)
	}
	attrs := metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.Bool("reprint", reprint),
	)
	m.jobs.Add(ctx, 1, attrs)
	m.jobDuration.Record(ctx, duration.Seconds(), attrs)
	if result.ItemsPrinted > 0 {
		m.labels.Add(ctx, int64(result.ItemsPrinted), metric.WithAttributes(attribute.Bool("reprint", reprint)))
	}
	if result.QRCodesRegistered > 0 && !reprint {
		m.codes.Add(ctx, int64(result.QRCodesRegistered))
	}
}

var _ apprinting.JobMetrics = (*JobMetrics)(nil)
