// Package inject is a dependency injection container driven by a
// declaration graph.
//
// Each registered class is built from its constructor fields. Fields
// inherited from a generic ancestor are rewritten with the class's binding
// map, so a UserRepo deriving from Repo[User] depends on Store[User] where
// Repo declares Store[E].
package inject

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/funvibe/typebind/internal/config"
	"github.com/funvibe/typebind/internal/decl"
	"github.com/funvibe/typebind/internal/generics"
	"github.com/funvibe/typebind/internal/typesystem"
)

// Args maps constructor field names to resolved dependencies.
type Args map[string]any

// Factory builds an instance from its resolved dependencies.
type Factory func(ctx context.Context, args Args) (any, error)

// Instance is what the default factory builds.
type Instance struct {
	Type   typesystem.Type
	Fields Args
}

// Registration describes one provider.
type Registration struct {
	Type  typesystem.Type
	Scope string

	factory   Factory
	fields    []decl.Field
	hasFields bool
}

// RegisterOption configures a registration.
type RegisterOption func(*Registration)

// WithScope sets the provider scope. The default is transient.
func WithScope(scope string) RegisterOption {
	return func(r *Registration) { r.Scope = scope }
}

// WithFactory replaces the default factory.
func WithFactory(f Factory) RegisterOption {
	return func(r *Registration) { r.factory = f }
}

// WithFields overrides the constructor fields found in the declaration
// graph. Field types may mention the class's placeholders.
func WithFields(fields ...decl.Field) RegisterOption {
	return func(r *Registration) {
		r.fields = fields
		r.hasFields = true
	}
}

// Container resolves registered types. It is safe for concurrent use.
type Container struct {
	registry *decl.Registry
	engine   *generics.Engine
	logger   *slog.Logger

	mu         sync.RWMutex
	providers  map[string]*Registration
	aliases    map[string]string
	singletons *instanceCache
}

// Option configures a Container.
type Option func(*containerOptions)

type containerOptions struct {
	logger   *slog.Logger
	maxDepth int
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *containerOptions) { o.logger = logger }
}

// WithMaxDepth bounds inheritance recursion when building binding maps.
func WithMaxDepth(depth int) Option {
	return func(o *containerOptions) { o.maxDepth = depth }
}

// New creates a container over the declarations of registry.
func New(registry *decl.Registry, opts ...Option) *Container {
	o := containerOptions{maxDepth: config.DefaultMaxDepth}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return &Container{
		registry:   registry,
		engine:     generics.NewEngine(registry, generics.WithLogger(o.logger), generics.WithMaxDepth(o.maxDepth)),
		logger:     o.logger,
		providers:  map[string]*Registration{},
		aliases:    map[string]string{},
		singletons: newInstanceCache(),
	}
}

// Register adds a provider for t, a class or an instantiated template.
func (c *Container) Register(t typesystem.Type, opts ...RegisterOption) error {
	if _, _, ok := classOf(t); !ok {
		return fmt.Errorf("register %s: not a class", Key(t))
	}
	if _, err := typesystem.KindCheck(t); err != nil {
		return fmt.Errorf("register %s: %w", Key(t), err)
	}

	reg := &Registration{Type: t, Scope: config.ScopeTransient}
	for _, opt := range opts {
		opt(reg)
	}
	if !validScope(reg.Scope) {
		return fmt.Errorf("register %s: unknown scope %q", Key(t), reg.Scope)
	}
	if reg.factory == nil {
		reg.factory = func(_ context.Context, args Args) (any, error) {
			return &Instance{Type: t, Fields: args}, nil
		}
	}

	key := Key(t)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.providers[key]; dup {
		return fmt.Errorf("register %s: %w", key, ErrAlreadyRegistered)
	}
	c.providers[key] = reg
	c.logger.Debug("provider registered", "type", key, "scope", reg.Scope)
	return nil
}

// RegisterValue registers v as a singleton instance of t.
func (c *Container) RegisterValue(t typesystem.Type, v any) error {
	return c.Register(t,
		WithScope(config.ScopeSingleton),
		WithFields(),
		WithFactory(func(context.Context, Args) (any, error) { return v, nil }),
	)
}

// Alias makes alias resolve to the provider registered for target.
func (c *Container) Alias(alias, target typesystem.Type) error {
	akey, tkey := Key(alias), Key(target)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.providers[tkey]; !ok {
		return fmt.Errorf("alias %s: %w", akey, &NotRegisteredError{Type: target})
	}
	if akey == tkey {
		return nil
	}
	c.aliases[akey] = tkey
	c.logger.Debug("alias registered", "alias", akey, "target", tkey)
	return nil
}

// RegisterProvisions registers every class of r that carries provision
// metadata, along with its aliases. It returns the number of providers
// added.
func (c *Container) RegisterProvisions(r *decl.Registry) (int, error) {
	count := 0
	for _, class := range r.Provisions() {
		p := class.Provision
		scope := p.Scope
		if scope == "" {
			scope = config.ScopeTransient
		}
		if err := c.Register(class.Type, WithScope(scope)); err != nil {
			return count, err
		}
		for _, alias := range p.Aliases {
			if err := c.Alias(alias, class.Type); err != nil {
				return count, err
			}
		}
		count++
	}
	c.logger.Info("registered provisions", "count", count)
	return count, nil
}

// Registrations returns every provider ordered by key.
func (c *Container) Registrations() []Registration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.providers))
	for k := range c.providers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Registration, 0, len(keys))
	for _, k := range keys {
		out = append(out, *c.providers[k])
	}
	return out
}

// IsRegistered reports whether t resolves to a provider, directly or
// through an alias.
func (c *Container) IsRegistered(t typesystem.Type) bool {
	_, ok := c.lookup(Key(t))
	return ok
}

func (c *Container) lookup(key string) (*Registration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if target, ok := c.aliases[key]; ok {
		key = target
	}
	reg, ok := c.providers[key]
	return reg, ok
}

// Dependencies returns the constructor fields of t with every placeholder
// bound by t's binding map replaced. Fields come from the registration
// when it overrides them, else from the class, else from the first
// ancestor that declares any, in declaration order.
func (c *Container) Dependencies(t typesystem.Type) ([]decl.Field, error) {
	class, args, ok := classOf(t)
	if !ok {
		return nil, fmt.Errorf("dependencies of %s: not a class", Key(t))
	}

	var fields []decl.Field
	if reg, ok := c.lookup(Key(t)); ok && reg.hasFields {
		fields = reg.fields
	} else {
		fields, _ = c.declaredFields(class, map[string]bool{})
	}
	if len(fields) == 0 {
		return nil, nil
	}

	seed := typesystem.Subst{}
	if len(args) > 0 {
		seed = generics.Bind(generics.ParametersOf(c.registry, class), args, seed)
	}
	bindings := c.engine.BuildBindingMapFrom(class, seed)

	out := make([]decl.Field, len(fields))
	for i, f := range fields {
		out[i] = decl.Field{Name: f.Name, Type: typesystem.Resolve(f.Type, bindings)}
	}
	return out, nil
}

func (c *Container) declaredFields(class *typesystem.TCon, seen map[string]bool) ([]decl.Field, bool) {
	key := class.String()
	if seen[key] {
		return nil, false
	}
	seen[key] = true

	if d, ok := c.registry.Get(class); ok && d.Fields != nil {
		return slices.Clone(d.Fields), true
	}
	for _, a := range generics.AncestorsOf(c.registry, class) {
		next := a.Class
		if a.IsParameterized() {
			next = a.Origin
		}
		if fields, ok := c.declaredFields(next, seen); ok {
			return fields, true
		}
	}
	return nil, false
}
