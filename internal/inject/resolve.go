package inject

import (
	"context"
	"fmt"
	"slices"

	"github.com/funvibe/typebind/internal/config"
	"github.com/funvibe/typebind/internal/typesystem"
)

// Resolve returns an instance of t, building its dependencies first.
// Singletons are kept on the container and request-scoped instances on
// the RequestScope carried by ctx. Each is built once per key, also under
// concurrent calls.
//
// An optional type (a union with None) whose members are not registered
// resolves to nil.
func (c *Container) Resolve(ctx context.Context, t typesystem.Type) (any, error) {
	return c.resolve(ctx, t, nil, "")
}

// resolve builds t for a provider of scope parent. chain holds the keys of
// the providers being built.
func (c *Container) resolve(ctx context.Context, t typesystem.Type, chain []string, parent string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reg, ok := c.lookup(Key(t))
	if !ok {
		if u, isUnion := t.(*typesystem.TUnion); isUnion && hasNone(u) {
			return c.resolveOptional(ctx, u, chain, parent)
		}
		return nil, &NotRegisteredError{Type: t, Chain: slices.Clone(chain)}
	}

	key := Key(reg.Type)
	if slices.Contains(chain, key) {
		return nil, &CycleError{Chain: append(slices.Clone(chain), key)}
	}
	if !scopeAllows(parent, reg.Scope) {
		return nil, &ScopeError{Class: chain[len(chain)-1], Scope: parent, Dep: key, DepScope: reg.Scope}
	}

	switch reg.Scope {
	case config.ScopeSingleton:
		return c.singletons.get(ctx, key, func() (any, error) {
			return c.build(ctx, reg, append(slices.Clone(chain), key))
		})

	case config.ScopeRequest:
		scope, ok := RequestScopeFrom(ctx)
		if !ok {
			return nil, fmt.Errorf("resolving %s: %w", key, ErrNoRequestScope)
		}
		return scope.instances.get(ctx, key, func() (any, error) {
			return c.build(ctx, reg, append(slices.Clone(chain), key))
		})

	default:
		return c.build(ctx, reg, append(slices.Clone(chain), key))
	}
}

func (c *Container) resolveOptional(ctx context.Context, u *typesystem.TUnion, chain []string, parent string) (any, error) {
	for _, m := range u.Types {
		if typesystem.IsNone(m) || !c.IsRegistered(m) {
			continue
		}
		return c.resolve(ctx, m, chain, parent)
	}
	return nil, nil
}

func hasNone(u *typesystem.TUnion) bool {
	for _, m := range u.Types {
		if typesystem.IsNone(m) {
			return true
		}
	}
	return false
}

// build resolves the dependencies of reg and calls its factory. The last
// element of chain is reg's key.
func (c *Container) build(ctx context.Context, reg *Registration, chain []string) (any, error) {
	key := chain[len(chain)-1]
	fields, err := c.Dependencies(reg.Type)
	if err != nil {
		return nil, err
	}

	args := make(Args, len(fields))
	for _, f := range fields {
		if free := typesystem.FreeParams(f.Type); len(free) > 0 {
			names := make([]string, len(free))
			for i, p := range free {
				names[i] = p.QualifiedName()
			}
			return nil, &UnresolvedError{Class: key, Field: f.Name, Params: names}
		}
		v, err := c.resolve(ctx, f.Type, chain, reg.Scope)
		if err != nil {
			return nil, err
		}
		args[f.Name] = v
	}

	v, err := reg.factory(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", key, err)
	}
	c.logger.Debug("instance built", "type", key, "scope", reg.Scope, "dependencies", len(fields))
	return v, nil
}

// NewRequest opens a request scope and returns a context carrying it.
func (c *Container) NewRequest(ctx context.Context) (context.Context, *RequestScope) {
	scope := NewRequestScope()
	c.logger.Debug("request scope opened", "request_id", scope.ID.String())
	return WithRequestScope(ctx, scope), scope
}
