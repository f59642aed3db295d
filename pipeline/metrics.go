package pipeline

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

// Metric names reported by the composer.
const (
	MetricRequests        = "pipeline.requests"
	MetricDuration        = "pipeline.duration_seconds"
	MetricResourceFailure = "pipeline.resource_failures"
	MetricTeardownFailure = "pipeline.teardown_failures"
)

// Outcome tag values for MetricRequests.
const (
	OutcomeOK            = "ok"
	OutcomeInvalid       = "invalid"
	OutcomeAcquireFailed = "acquire_failed"
	OutcomeError         = "error"
)

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// TeardownReporter receives Destroy failures. Reports never change the
// outcome of the request.
type TeardownReporter interface {
	ReportTeardown(ctx context.Context, key HandlerKey, resource string, err error)
}

// TeardownReporterFunc adapts a function to TeardownReporter.
type TeardownReporterFunc func(ctx context.Context, key HandlerKey, resource string, err error)

func (f TeardownReporterFunc) ReportTeardown(ctx context.Context, key HandlerKey, resource string, err error) {
	if f != nil {
		f(ctx, key, resource, err)
	}
}

type logTeardownReporter struct {
	logger glog.Logger
}

func (r logTeardownReporter) ReportTeardown(ctx context.Context, key HandlerKey, resource string, err error) {
	r.logger.WithContext(ctx).Warn("resource teardown failed",
		"handler", key.String(),
		"resource", resource,
		"error", err,
	)
}

var (
	_ MetricsRecorder  = NopMetricsRecorder{}
	_ TeardownReporter = TeardownReporterFunc(nil)
	_ TeardownReporter = logTeardownReporter{}
)
