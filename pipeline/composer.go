package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-auth-service/exception"
)

// Handler is the raw business function wrapped by the pipeline.
type Handler func(ctx context.Context, ev Event, rc *Context) (any, error)

// Middleware wraps a handler.
type Middleware func(next Handler) Handler

// Composed is a handler with validation, resource lifecycle and guards
// applied. A nil Context is replaced by an empty one.
type Composed func(ctx context.Context, raw RawEvent, rc *Context) (any, error)

// Composer turns declared handlers into Composed handlers.
type Composer struct {
	registry       *Registry
	providers      *Providers
	logger         glog.Logger
	metrics        MetricsRecorder
	teardown       TeardownReporter
	acquireTimeout time.Duration
}

type ComposerOption func(*Composer)

func WithRegistry(registry *Registry) ComposerOption {
	return func(c *Composer) {
		if registry != nil {
			c.registry = registry
		}
	}
}

func WithLogger(logger glog.Logger) ComposerOption {
	return func(c *Composer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) ComposerOption {
	return func(c *Composer) {
		if recorder != nil {
			c.metrics = recorder
		}
	}
}

func WithTeardownReporter(reporter TeardownReporter) ComposerOption {
	return func(c *Composer) {
		if reporter != nil {
			c.teardown = reporter
		}
	}
}

// WithAcquireTimeout bounds the acquire stage. Zero waits for every provider.
// The deadline reaches providers through their context.
func WithAcquireTimeout(timeout time.Duration) ComposerOption {
	return func(c *Composer) {
		if timeout >= 0 {
			c.acquireTimeout = timeout
		}
	}
}

func NewComposer(providers *Providers, opts ...ComposerOption) *Composer {
	if providers == nil {
		providers = NewProviders()
	}
	c := &Composer{
		registry:  NewRegistry(),
		providers: providers,
		logger:    glog.Nop(),
		metrics:   NopMetricsRecorder{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.teardown == nil {
		c.teardown = logTeardownReporter{logger: c.logger}
	}
	return c
}

func (c *Composer) Registry() *Registry {
	return c.registry
}

func (c *Composer) Providers() *Providers {
	return c.providers
}

// Compose wraps handler with the stages declared for key. Composing the same
// key again returns the first composition unchanged.
func (c *Composer) Compose(key HandlerKey, handler Handler) (Composed, error) {
	if key.Owner == "" || key.Name == "" {
		return nil, goerrors.New("handler key requires owner and name", goerrors.CategoryBadInput).
			WithTextCode("INVALID_HANDLER_KEY")
	}

	composed, created := c.registry.freeze(key, func(meta HandlerMetadata, guards []Guard) Composed {
		return c.build(key, meta, guards, handler)
	})
	if created {
		m := c.registry.Metadata(key)
		c.logger.Debug("handler composed",
			"handler", key.String(),
			"required", m.RequiredFields,
			"resources", m.ResourceNames,
			"guards", m.Guards,
		)
	}
	return composed, nil
}

func (c *Composer) build(key HandlerKey, meta HandlerMetadata, guards []Guard, handler Handler) Composed {
	var inner Handler
	if handler != nil {
		inner = handler
		for i := len(guards) - 1; i >= 0; i-- {
			inner = guards[i].Wrap(inner)
		}
	}

	return func(ctx context.Context, raw RawEvent, rc *Context) (result any, err error) {
		if rc == nil {
			rc = NewContext()
		}
		start := time.Now()
		outcome := OutcomeOK
		defer func() {
			c.observe(ctx, key, outcome, time.Since(start))
		}()

		ev, err := Validate(raw, meta.RequiredFields)
		if err != nil {
			outcome = OutcomeInvalid
			return nil, err
		}

		if inner == nil {
			outcome = OutcomeError
			return nil, exception.NewUnknown(exception.KeyReflectionError, map[string]string{
				"handler": key.String(),
			})
		}

		held, err := c.acquire(ctx, key, meta.ResourceNames, rc)
		if err != nil {
			outcome = OutcomeAcquireFailed
			return nil, err
		}
		defer c.release(ctx, key, held)

		result, err = inner(ctx, ev, rc)
		if err != nil {
			outcome = OutcomeError
		}
		return result, err
	}
}

type heldResource struct {
	name     string
	provider ResourceProvider
	value    any
}

type acquireError struct {
	name string
	err  error
}

func (e *acquireError) Error() string { return e.name + ": " + e.err.Error() }

func (e *acquireError) Unwrap() error { return e.err }

func (c *Composer) acquire(ctx context.Context, key HandlerKey, names []string, rc *Context) ([]heldResource, error) {
	pending := make([]heldResource, 0, len(names))
	for _, name := range names {
		provider, ok := c.providers.Lookup(name)
		if !ok {
			c.logger.Debug("no provider for declared resource, skipping",
				"handler", key.String(),
				"resource", name,
			)
			continue
		}
		pending = append(pending, heldResource{name: name, provider: provider})
	}
	if len(pending) == 0 {
		return nil, nil
	}

	actx := ctx
	if c.acquireTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, c.acquireTimeout)
		defer cancel()
	}

	created := make([]bool, len(pending))
	g, gctx := errgroup.WithContext(actx)
	for i := range pending {
		g.Go(func() error {
			value, err := pending[i].provider.Create(gctx)
			if err != nil {
				return &acquireError{name: pending[i].name, err: err}
			}
			pending[i].value = value
			created[i] = true
			return nil
		})
	}
	err := g.Wait()

	held := make([]heldResource, 0, len(pending))
	for i, ok := range created {
		if ok {
			held = append(held, pending[i])
		}
	}

	if err != nil {
		c.release(ctx, key, held)

		name := ""
		var failed *acquireError
		if errors.As(err, &failed) {
			name = failed.name
		}
		c.metrics.IncCounter(ctx, MetricResourceFailure, 1, map[string]string{
			"handler":  key.String(),
			"resource": name,
		})
		c.logger.WithContext(ctx).Warn("resource acquisition failed",
			"handler", key.String(),
			"resource", name,
			"error", err,
		)
		return nil, exception.Wrap(err, exception.Unknown, exception.KeyResourceNotFound, map[string]string{
			"resource": name,
		})
	}

	for _, h := range held {
		rc.Set(h.name, h.value)
	}
	return held, nil
}

// release destroys every held resource concurrently and waits for all of them.
// Failures go to the teardown reporter.
func (c *Composer) release(ctx context.Context, key HandlerKey, held []heldResource) {
	if len(held) == 0 {
		return
	}
	dctx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for _, h := range held {
		wg.Add(1)
		go func(h heldResource) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					c.reportTeardown(dctx, key, h.name, goerrors.New("resource destroy panicked", goerrors.CategoryInternal).
						WithMetadata(map[string]any{"panic": r}))
				}
			}()
			if err := h.provider.Destroy(dctx, h.value); err != nil {
				c.reportTeardown(dctx, key, h.name, err)
			}
		}(h)
	}
	wg.Wait()
}

func (c *Composer) reportTeardown(ctx context.Context, key HandlerKey, name string, err error) {
	c.metrics.IncCounter(ctx, MetricTeardownFailure, 1, map[string]string{
		"handler":  key.String(),
		"resource": name,
	})
	c.teardown.ReportTeardown(ctx, key, name, err)
}

func (c *Composer) observe(ctx context.Context, key HandlerKey, outcome string, elapsed time.Duration) {
	tags := map[string]string{
		"handler": key.String(),
		"outcome": outcome,
	}
	c.metrics.IncCounter(ctx, MetricRequests, 1, tags)
	c.metrics.ObserveHistogram(ctx, MetricDuration, elapsed.Seconds(), tags)
}
