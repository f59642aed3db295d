package pipeline

import (
	"sort"
	"strings"
	"sync"
)

// HandlerKey identifies a handler by its owning service and method name.
type HandlerKey struct {
	Owner string
	Name  string
}

func (k HandlerKey) String() string {
	return k.Owner + "." + k.Name
}

// HandlerMetadata is the declared contract of a handler. Slices are sorted and
// deduplicated.
type HandlerMetadata struct {
	RequiredFields []string
	ResourceNames  []string
	Guards         []string
	Composed       bool
}

// Requires reports whether field is a required event field.
func (m HandlerMetadata) Requires(field string) bool {
	return containsSorted(m.RequiredFields, field)
}

// Uses reports whether the handler declares the named resource.
func (m HandlerMetadata) Uses(resource string) bool {
	return containsSorted(m.ResourceNames, resource)
}

// Guard is a named middleware stage. Guards run after resources are acquired,
// ordered by Priority and then Name, so the chain is the same whatever order
// they were declared in.
type Guard struct {
	Name     string
	Priority int
	Wrap     Middleware
}

type declarations struct {
	required  map[string]struct{}
	resources map[string]struct{}
	guards    map[string]Guard
}

func newDeclarations() *declarations {
	return &declarations{
		required:  make(map[string]struct{}),
		resources: make(map[string]struct{}),
		guards:    make(map[string]Guard),
	}
}

type registryEntry struct {
	decl     *declarations
	frozen   *HandlerMetadata
	guards   []Guard
	composed Composed
}

// Registry accumulates handler declarations. Every declaration is a set union
// so order and repetition do not change the resulting metadata. Owner wide
// declarations apply to every handler of that owner, including handlers
// declared later.
type Registry struct {
	mu       sync.RWMutex
	handlers map[HandlerKey]*registryEntry
	owners   map[string]*declarations
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[HandlerKey]*registryEntry),
		owners:   make(map[string]*declarations),
	}
}

func (r *Registry) DeclareRequired(key HandlerKey, fields ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	addAll(r.entry(key).decl.required, fields)
}

func (r *Registry) DeclareResource(key HandlerKey, names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	addAll(r.entry(key).decl.resources, names)
}

func (r *Registry) DeclareGuard(key HandlerKey, guards ...Guard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	addGuards(r.entry(key).decl.guards, guards)
}

func (r *Registry) DeclareOwnerRequired(owner string, fields ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	addAll(r.owner(owner).required, fields)
}

func (r *Registry) DeclareOwnerResource(owner string, names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	addAll(r.owner(owner).resources, names)
}

func (r *Registry) DeclareOwnerGuard(owner string, guards ...Guard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	addGuards(r.owner(owner).guards, guards)
}

// Metadata returns the effective metadata for key. Once a handler has been
// composed its metadata is frozen; later declarations do not affect it.
func (r *Registry) Metadata(key HandlerKey) HandlerMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	meta, _ := r.snapshot(key)
	return meta
}

// Keys returns every handler key the registry knows about, sorted.
func (r *Registry) Keys() []HandlerKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]HandlerKey, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

func (r *Registry) snapshot(key HandlerKey) (HandlerMetadata, []Guard) {
	entry, ok := r.handlers[key]
	if ok && entry.frozen != nil {
		return *entry.frozen, entry.guards
	}

	required := make(map[string]struct{})
	resources := make(map[string]struct{})
	guards := make(map[string]Guard)

	if owner, ok := r.owners[key.Owner]; ok {
		addSet(required, owner.required)
		addSet(resources, owner.resources)
		for name, g := range owner.guards {
			guards[name] = g
		}
	}
	if ok {
		addSet(required, entry.decl.required)
		addSet(resources, entry.decl.resources)
		for name, g := range entry.decl.guards {
			guards[name] = g
		}
	}

	ordered := make([]Guard, 0, len(guards))
	for _, g := range guards {
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		return ordered[i].Name < ordered[j].Name
	})

	names := make([]string, len(ordered))
	for i, g := range ordered {
		names[i] = g.Name
	}

	return HandlerMetadata{
		RequiredFields: sortedKeys(required),
		ResourceNames:  sortedKeys(resources),
		Guards:         names,
	}, ordered
}

// freeze records the composition for key. When key was already composed the
// existing composition is returned with false.
func (r *Registry) freeze(key HandlerKey, build func(HandlerMetadata, []Guard) Composed) (Composed, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.entry(key)
	if entry.composed != nil {
		return entry.composed, false
	}

	meta, guards := r.snapshot(key)
	meta.Composed = true
	entry.frozen = &meta
	entry.guards = guards
	entry.composed = build(meta, guards)
	return entry.composed, true
}

func (r *Registry) entry(key HandlerKey) *registryEntry {
	entry, ok := r.handlers[key]
	if !ok {
		entry = &registryEntry{decl: newDeclarations()}
		r.handlers[key] = entry
	}
	return entry
}

func (r *Registry) owner(owner string) *declarations {
	decl, ok := r.owners[owner]
	if !ok {
		decl = newDeclarations()
		r.owners[owner] = decl
	}
	return decl
}

func addAll(set map[string]struct{}, values []string) {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
}

func addSet(dst, src map[string]struct{}) {
	for v := range src {
		dst[v] = struct{}{}
	}
}

func addGuards(set map[string]Guard, guards []Guard) {
	for _, g := range guards {
		if g.Name == "" || g.Wrap == nil {
			continue
		}
		set[g.Name] = g
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func containsSorted(values []string, v string) bool {
	i := sort.SearchStrings(values, v)
	return i < len(values) && values[i] == v
}
