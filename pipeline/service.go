package pipeline

import (
	"context"
	"sort"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-auth-service/exception"
)

// Option is a declaration bundle that can target a single method or every
// method of a service.
type Option struct {
	required  []string
	resources []string
	guards    []Guard
}

// Require declares required event fields.
func Require(fields ...string) Option {
	return Option{required: fields}
}

// Resources declares resources to acquire before the handler runs.
func Resources(names ...string) Option {
	return Option{resources: names}
}

// Use installs guards.
func Use(guards ...Guard) Option {
	return Option{guards: guards}
}

// Combine merges several options into one.
func Combine(opts ...Option) Option {
	var out Option
	for _, opt := range opts {
		out.required = append(out.required, opt.required...)
		out.resources = append(out.resources, opt.resources...)
		out.guards = append(out.guards, opt.guards...)
	}
	return out
}

func (o Option) declare(r *Registry, key HandlerKey) {
	r.DeclareRequired(key, o.required...)
	r.DeclareResource(key, o.resources...)
	r.DeclareGuard(key, o.guards...)
}

func (o Option) declareOwner(r *Registry, owner string) {
	r.DeclareOwnerRequired(owner, o.required...)
	r.DeclareOwnerResource(owner, o.resources...)
	r.DeclareOwnerGuard(owner, o.guards...)
}

type serviceMethod struct {
	name    string
	handler Handler
}

// Service collects the methods of one owner before composing them.
type Service struct {
	owner    string
	composer *Composer
	methods  []serviceMethod
	seen     map[string]struct{}
	err      error
}

// NewService starts a service builder. Owner wide options apply to every
// method, whenever it is added.
func NewService(owner string, composer *Composer, opts ...Option) *Service {
	s := &Service{
		owner:    strings.TrimSpace(owner),
		composer: composer,
		seen:     make(map[string]struct{}),
	}
	if s.owner == "" {
		s.err = goerrors.New("service owner is required", goerrors.CategoryBadInput).
			WithTextCode("INVALID_SERVICE")
		return s
	}
	if composer == nil {
		s.err = goerrors.New("service composer is required", goerrors.CategoryBadInput).
			WithTextCode("INVALID_SERVICE")
		return s
	}
	for _, opt := range opts {
		opt.declareOwner(composer.Registry(), s.owner)
	}
	return s
}

// With adds owner wide options.
func (s *Service) With(opts ...Option) *Service {
	if s.err != nil {
		return s
	}
	for _, opt := range opts {
		opt.declareOwner(s.composer.Registry(), s.owner)
	}
	return s
}

// Method registers a handler under name.
func (s *Service) Method(name string, handler Handler, opts ...Option) *Service {
	if s.err != nil {
		return s
	}
	name = strings.TrimSpace(name)
	if name == "" {
		s.err = goerrors.New("method name is required", goerrors.CategoryBadInput).
			WithTextCode("INVALID_METHOD")
		return s
	}
	if _, dup := s.seen[name]; dup {
		s.err = goerrors.New("method registered twice", goerrors.CategoryConflict).
			WithTextCode("DUPLICATE_METHOD").
			WithMetadata(map[string]any{"owner": s.owner, "method": name})
		return s
	}
	s.seen[name] = struct{}{}

	key := HandlerKey{Owner: s.owner, Name: name}
	for _, opt := range opts {
		opt.declare(s.composer.Registry(), key)
	}
	s.methods = append(s.methods, serviceMethod{name: name, handler: handler})
	return s
}

// Build composes every registered method.
func (s *Service) Build() (*Dispatcher, error) {
	if s.err != nil {
		return nil, s.err
	}
	d := &Dispatcher{
		owner:    s.owner,
		handlers: make(map[string]Composed, len(s.methods)),
		registry: s.composer.Registry(),
	}
	for _, m := range s.methods {
		composed, err := s.composer.Compose(HandlerKey{Owner: s.owner, Name: m.name}, m.handler)
		if err != nil {
			return nil, err
		}
		d.handlers[m.name] = composed
	}
	return d, nil
}

// Dispatcher routes calls to the composed methods of one service.
type Dispatcher struct {
	owner    string
	handlers map[string]Composed
	registry *Registry
}

func (d *Dispatcher) Owner() string {
	return d.owner
}

// Methods returns the method names in sorted order.
func (d *Dispatcher) Methods() []string {
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d *Dispatcher) Handler(method string) (Composed, bool) {
	h, ok := d.handlers[method]
	return h, ok
}

// Metadata returns the frozen metadata of method.
func (d *Dispatcher) Metadata(method string) HandlerMetadata {
	return d.registry.Metadata(HandlerKey{Owner: d.owner, Name: method})
}

// Call runs method with the raw event. Unknown methods fail with NotFound.
func (d *Dispatcher) Call(ctx context.Context, method string, raw RawEvent, rc *Context) (any, error) {
	h, ok := d.handlers[method]
	if !ok {
		return nil, exception.NewNotFound(exception.KeyMethodNotFound, map[string]string{
			"method": d.owner + "." + method,
		})
	}
	return h(ctx, raw, rc)
}
