// Package decl holds declaration graphs: which templates declare which
// placeholders, which classes derive from which ancestors, and the
// constructor fields and provision metadata the container consumes.
//
// Registry is the in-memory graph and implements generics.Provider.
// Document is its serializable form, shared by manifests, the catalog and
// snapshots.
package decl

import (
	"fmt"
	"slices"
	"sync"

	"github.com/funvibe/typebind/internal/typesystem"
)

// Field is a constructor parameter or exported field of a class.
type Field struct {
	Name string
	Type typesystem.Type
}

// Provision is scan-time registration metadata for a class.
type Provision struct {
	Scope   string
	Aliases []typesystem.Type
	Tags    []string
}

// Class is one node of the declaration graph.
type Class struct {
	Type      *typesystem.TCon
	Params    []typesystem.Type // declared placeholders, templates only
	Bases     []typesystem.Type // ordered raw ancestor list
	Fields    []Field           // nil when the class declares none
	Provision *Provision
}

// Registry is a thread-safe declaration graph.
type Registry struct {
	mu      sync.RWMutex
	params  map[string]*typesystem.TParam
	porder  []*typesystem.TParam
	classes map[string]*Class
	order   []string
}

func NewRegistry() *Registry {
	return &Registry{
		params:  make(map[string]*typesystem.TParam),
		classes: make(map[string]*Class),
	}
}

// Param declares a placeholder shared by any template that lists it.
// Declaring the same name twice returns the same placeholder.
func (r *Registry) Param(name string) *typesystem.TParam {
	return r.ScopedParam("", name)
}

// ScopedParam declares a placeholder owned by scope (usually a template
// name). Its qualified name is scope.name.
func (r *Registry) ScopedParam(scope, name string) *typesystem.TParam {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := &typesystem.TParam{Name: name, Scope: scope}
	if existing, ok := r.params[p.QualifiedName()]; ok {
		return existing
	}
	r.addParamLocked(p)
	return p
}

// AddParam registers an existing placeholder under its qualified name.
func (r *Registry) AddParam(p *typesystem.TParam) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.params[p.QualifiedName()]; !ok {
		r.addParamLocked(p)
	}
}

func (r *Registry) addParamLocked(p *typesystem.TParam) {
	r.params[p.QualifiedName()] = p
	r.porder = append(r.porder, p)
}

// Template declares a template with its ordered placeholders.
func (r *Registry) Template(name string, params ...*typesystem.TParam) *typesystem.TCon {
	module, short := splitName(name)
	con := &typesystem.TCon{Name: short, Module: module, Params: params}
	raw := make([]typesystem.Type, len(params))
	for i, p := range params {
		raw[i] = p
	}
	r.Declare(&Class{Type: con, Params: raw})
	return con
}

// Class declares a non-generic class with its ordered bases.
func (r *Registry) Class(name string, bases ...typesystem.Type) *typesystem.TCon {
	module, short := splitName(name)
	con := &typesystem.TCon{Name: short, Module: module}
	r.Declare(&Class{Type: con, Bases: bases})
	return con
}

// Declare adds or replaces a class.
func (r *Registry) Declare(c *Class) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := c.Type.String()
	if _, ok := r.classes[key]; !ok {
		r.order = append(r.order, key)
	}
	r.classes[key] = c
}

// SetBases replaces the ordered ancestor list of a declared class.
func (r *Registry) SetBases(con *typesystem.TCon, bases ...typesystem.Type) error {
	return r.update(con, func(c *Class) { c.Bases = bases })
}

// SetFields replaces the constructor fields of a declared class.
func (r *Registry) SetFields(con *typesystem.TCon, fields ...Field) error {
	if fields == nil {
		fields = []Field{}
	}
	return r.update(con, func(c *Class) { c.Fields = fields })
}

// Provide attaches provision metadata to a declared class.
func (r *Registry) Provide(con *typesystem.TCon, p Provision) error {
	return r.update(con, func(c *Class) { c.Provision = &p })
}

func (r *Registry) update(con *typesystem.TCon, fn func(*Class)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.classes[con.String()]
	if !ok {
		return fmt.Errorf("class %s is not declared", con)
	}
	updated := *c
	fn(&updated)
	r.classes[con.String()] = &updated
	return nil
}

// Lookup finds a declared class or template by qualified name.
func (r *Registry) Lookup(name string) (*typesystem.TCon, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[name]
	if !ok {
		return nil, false
	}
	return c.Type, true
}

// LookupParam finds a placeholder by qualified name.
func (r *Registry) LookupParam(name string) (*typesystem.TParam, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.params[name]
	return p, ok
}

// LookupType resolves a name to a placeholder or a class, in that order.
// It makes the registry usable as a typeparse.Scope.
func (r *Registry) LookupType(name string) (typesystem.Type, bool) {
	if p, ok := r.LookupParam(name); ok {
		return p, true
	}
	if c, ok := r.Lookup(name); ok {
		return c, true
	}
	return nil, false
}

// Get returns a copy of the declaration of con.
func (r *Registry) Get(con *typesystem.TCon) (Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[con.String()]
	if !ok {
		return Class{}, false
	}
	return *c, true
}

// Classes returns every declaration in declaration order.
func (r *Registry) Classes() []Class {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Class, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, *r.classes[key])
	}
	return out
}

// Params returns every placeholder in declaration order.
func (r *Registry) Params() []*typesystem.TParam {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.porder)
}

// Provisions returns the classes carrying provision metadata.
func (r *Registry) Provisions() []Class {
	var out []Class
	for _, c := range r.Classes() {
		if c.Provision != nil {
			out = append(out, c)
		}
	}
	return out
}

// Bases implements generics.Provider.
func (r *Registry) Bases(class *typesystem.TCon) []typesystem.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[class.String()]
	if !ok {
		return nil
	}
	return c.Bases
}

// Parameters implements generics.Provider.
func (r *Registry) Parameters(template *typesystem.TCon) []typesystem.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[template.String()]
	if !ok {
		return nil
	}
	return c.Params
}

// Merge copies every placeholder and class of other into r. Classes
// already declared in r are replaced.
func (r *Registry) Merge(other *Registry) {
	for _, p := range other.Params() {
		r.AddParam(p)
	}
	for _, c := range other.Classes() {
		c := c
		r.Declare(&c)
	}
}

func splitName(name string) (module, short string) {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[:i], name[i+1:]
		}
	}
	return "", name
}
