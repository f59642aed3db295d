// Package httpapi exposes service dispatchers over HTTP. Every method is a
// POST /<service>/<method> route taking a JSON object and answering with the
// method result or the exception shape.
package httpapi

import (
	"context"
	"net/http"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-router"

	"github.com/goliatone/go-auth-service/exception"
	"github.com/goliatone/go-auth-service/pipeline"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// ContextFactory seeds the per request pipeline context.
type ContextFactory func(ctx router.Context) *pipeline.Context

type Controller struct {
	dispatchers []*pipeline.Dispatcher
	statuses    StatusMap
	labels      exception.Labels
	logger      glog.Logger
	newContext  ContextFactory
}

type Option func(*Controller)

func WithStatusMap(m StatusMap) Option {
	return func(c *Controller) {
		c.statuses = m
	}
}

// WithLabels sets the labels used to fill localeMessage. Nil disables it.
func WithLabels(labels exception.Labels) Option {
	return func(c *Controller) {
		c.labels = labels
	}
}

func WithLogger(logger glog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithContextFactory(factory ContextFactory) Option {
	return func(c *Controller) {
		if factory != nil {
			c.newContext = factory
		}
	}
}

func NewController(dispatchers []*pipeline.Dispatcher, opts ...Option) *Controller {
	c := &Controller{
		dispatchers: dispatchers,
		statuses:    DefaultStatusMap(),
		labels:      exception.DefaultLabels,
		logger:      glog.Nop(),
		newContext: func(router.Context) *pipeline.Context {
			return pipeline.NewContext()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Routes returns the registered paths, in registration order.
func (c *Controller) Routes() []string {
	var out []string
	for _, d := range c.dispatchers {
		for _, method := range d.Methods() {
			out = append(out, routePath(d.Owner(), method))
		}
	}
	return out
}

// RegisterRoutes adds one POST route per dispatcher method.
func (c *Controller) RegisterRoutes(group RouteRegistrar) {
	for _, d := range c.dispatchers {
		for _, method := range d.Methods() {
			group.Post(routePath(d.Owner(), method), c.Handle(d, method))
		}
	}
}

// Handle returns the route handler for one dispatcher method.
func (c *Controller) Handle(d *pipeline.Dispatcher, method string) router.HandlerFunc {
	return func(ctx router.Context) error {
		reqCtx := ctx.Context()
		if reqCtx == nil {
			reqCtx = context.Background()
		}

		body := map[string]any{}
		if err := ctx.Bind(&body); err != nil {
			return c.fail(ctx, reqCtx, d, method, exception.Wrap(err, exception.InvalidArgument, exception.KeyMalformedBody, nil))
		}

		result, err := d.Call(reqCtx, method, pipeline.RawEvent(body), c.newContext(ctx))
		if err != nil {
			return c.fail(ctx, reqCtx, d, method, err)
		}
		return ctx.JSON(http.StatusOK, result)
	}
}

func (c *Controller) fail(ctx router.Context, reqCtx context.Context, d *pipeline.Dispatcher, method string, err error) error {
	ex := exception.From(err)
	if c.labels != nil {
		ex.Localized = c.labels.Localize(ex)
	}
	status := c.statuses.Status(ex)

	log := c.logger.WithContext(reqCtx)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "route", routePath(d.Owner(), method), "status", status, "error", err)
	} else {
		log.Debug("request rejected", "route", routePath(d.Owner(), method), "status", status, "message", ex.MessageKey)
	}
	return ctx.JSON(status, ex)
}

func routePath(owner, method string) string {
	return strings.ToLower("/" + owner + "/" + method)
}
