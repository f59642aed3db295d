// Package telemetry exports pipeline metrics to Prometheus.
package telemetry

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/go-auth-service/pipeline"
)

const DefaultNamespace = "authsvc"

// PrometheusRecorder implements pipeline.MetricsRecorder. Each metric name
// gets one vector on first use, labelled with the tag keys of that call.
// Later calls with other keys fill missing labels with "" and drop extras.
type PrometheusRecorder struct {
	namespace string
	registry  *prometheus.Registry
	buckets   []float64

	mu         sync.Mutex
	counters   map[string]*vec[*prometheus.CounterVec]
	histograms map[string]*vec[*prometheus.HistogramVec]
}

type vec[T any] struct {
	metric T
	labels []string
}

type Option func(*PrometheusRecorder)

func WithNamespace(namespace string) Option {
	return func(r *PrometheusRecorder) {
		r.namespace = sanitize(namespace)
	}
}

// WithRegistry registers the vectors on registry instead of a private one.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(r *PrometheusRecorder) {
		if registry != nil {
			r.registry = registry
		}
	}
}

func WithBuckets(buckets []float64) Option {
	return func(r *PrometheusRecorder) {
		if len(buckets) > 0 {
			r.buckets = append([]float64(nil), buckets...)
		}
	}
}

func NewPrometheusRecorder(opts ...Option) *PrometheusRecorder {
	r := &PrometheusRecorder{
		namespace:  DefaultNamespace,
		registry:   prometheus.NewRegistry(),
		buckets:    prometheus.DefBuckets,
		counters:   make(map[string]*vec[*prometheus.CounterVec]),
		histograms: make(map[string]*vec[*prometheus.HistogramVec]),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *PrometheusRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if value < 0 {
		return
	}
	r.mu.Lock()
	v, ok := r.counters[name]
	if !ok {
		labels := labelNames(tags)
		cv := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: r.namespace,
			Name:      sanitize(name) + "_total",
			Help:      "Count of " + name + ".",
		}, labels)
		v = &vec[*prometheus.CounterVec]{metric: registerOrExisting(r.registry, cv), labels: labels}
		r.counters[name] = v
	}
	r.mu.Unlock()

	v.metric.WithLabelValues(labelValues(v.labels, tags)...).Add(float64(value))
}

func (r *PrometheusRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	r.mu.Lock()
	v, ok := r.histograms[name]
	if !ok {
		labels := labelNames(tags)
		hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: r.namespace,
			Name:      sanitize(name),
			Help:      "Distribution of " + name + ".",
			Buckets:   r.buckets,
		}, labels)
		v = &vec[*prometheus.HistogramVec]{metric: registerOrExisting(r.registry, hv), labels: labels}
		r.histograms[name] = v
	}
	r.mu.Unlock()

	v.metric.WithLabelValues(labelValues(v.labels, tags)...).Observe(value)
}

func registerOrExisting[T prometheus.Collector](registry *prometheus.Registry, c T) T {
	if err := registry.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

func labelNames(tags map[string]string) []string {
	out := make([]string, 0, len(tags))
	for k := range tags {
		out = append(out, sanitize(k))
	}
	sort.Strings(out)
	return out
}

func labelValues(labels []string, tags map[string]string) []string {
	normalized := make(map[string]string, len(tags))
	for k, v := range tags {
		normalized[sanitize(k)] = v
	}
	out := make([]string, len(labels))
	for i, label := range labels {
		out[i] = normalized[label]
	}
	return out
}

// sanitize maps a dotted metric or tag name onto the Prometheus charset.
func sanitize(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

var _ pipeline.MetricsRecorder = (*PrometheusRecorder)(nil)
