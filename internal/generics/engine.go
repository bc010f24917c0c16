package generics

import (
	"log/slog"

	"github.com/funvibe/typebind/internal/config"
	"github.com/funvibe/typebind/internal/typesystem"
)

// Engine builds binding maps against a declaration provider. An Engine
// holds no per-call state and is safe for concurrent use when its
// provider is.
type Engine struct {
	provider Provider
	logger   *slog.Logger
	maxDepth int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used to trace skipped ancestors and depth
// limits.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMaxDepth bounds inheritance recursion. Zero disables the limit.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		e.maxDepth = depth
	}
}

// NewEngine creates an engine over provider.
func NewEngine(provider Provider, opts ...Option) *Engine {
	e := &Engine{
		provider: provider,
		maxDepth: config.DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Provider returns the engine's declaration provider.
func (e *Engine) Provider() Provider {
	return e.provider
}

// BuildBindingMap computes the binding of every placeholder reachable from
// class through its ancestors. Ancestors are visited in declaration order;
// for a parameterized ancestor the arguments are bound first and the
// origin's own ancestry is merged afterwards, so deeper bindings replace
// earlier ones for the same placeholder.
//
// The result is never nil. Ancestors already on the current recursion
// path are skipped, which makes the call terminate on cyclic graphs.
func (e *Engine) BuildBindingMap(class *typesystem.TCon) typesystem.Subst {
	w := &walk{engine: e, path: map[string]bool{}}
	return w.build(class, typesystem.Subst{}, 0)
}

// BuildBindingMapFrom is like BuildBindingMap but starts from seed, so
// ancestors instantiated with the class's own placeholders pick up the
// bindings seed holds for them. seed is not modified.
func (e *Engine) BuildBindingMapFrom(class *typesystem.TCon, seed typesystem.Subst) typesystem.Subst {
	w := &walk{engine: e, path: map[string]bool{}}
	return w.build(class, seed.Clone(), 0)
}

// BuildBindingMap builds a binding map with a default engine.
func BuildBindingMap(p Provider, class *typesystem.TCon) typesystem.Subst {
	return NewEngine(p).BuildBindingMap(class)
}

// walk is the state of one BuildBindingMap call.
type walk struct {
	engine *Engine
	path   map[string]bool
}

func (w *walk) build(class *typesystem.TCon, acc typesystem.Subst, depth int) typesystem.Subst {
	if class == nil {
		return acc
	}
	key := class.String()
	if limit := w.engine.maxDepth; limit > 0 && depth >= limit {
		w.engine.logger.Warn("inheritance depth limit reached", "class", key, "max_depth", limit)
		return acc
	}
	if w.path[key] {
		w.engine.logger.Debug("skipping cyclic ancestor", "class", key, "depth", depth)
		return acc
	}
	w.path[key] = true
	defer delete(w.path, key)

	for _, base := range w.engine.provider.Bases(class) {
		ancestor, ok := classify(base)
		if !ok {
			w.engine.logger.Debug("dropping unclassifiable ancestor", "class", key, "base", base)
			continue
		}
		if !ancestor.IsParameterized() {
			acc = w.build(ancestor.Class, acc, depth+1)
			continue
		}
		params := ParametersOf(w.engine.provider, ancestor.Origin)
		if len(params) != len(ancestor.Args) {
			w.engine.logger.Debug("type argument count mismatch", "class", key,
				"ancestor", ancestor.String(), "params", len(params), "args", len(ancestor.Args))
		}
		acc = Bind(params, ancestor.Args, acc)
		acc = w.build(ancestor.Origin, acc, depth+1)
	}
	return acc
}
