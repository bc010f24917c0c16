// Package generics builds binding maps for classes that derive from
// parameterized templates, possibly through several levels of inheritance
// and several ancestors.
//
// A caller builds the map once per class with Engine.BuildBindingMap and
// then feeds it to typesystem.Resolve for every type expression that
// mentions the template's placeholders.
package generics

import (
	"github.com/funvibe/typebind/internal/typesystem"
)

// Provider supplies the declaration graph. Bases returns the ordered raw
// ancestor list of a class; Parameters returns the ordered placeholders a
// template declares. Entries the engine cannot classify are skipped.
type Provider interface {
	Bases(class *typesystem.TCon) []typesystem.Type
	Parameters(template *typesystem.TCon) []typesystem.Type
}

// Ancestor is one classified entry of a class's ancestor list. Origin is
// nil for a plain ancestor.
type Ancestor struct {
	Class  *typesystem.TCon // plain ancestor
	Origin *typesystem.TCon // parameterized ancestor
	Args   []typesystem.Type
}

// IsParameterized reports whether the ancestor supplies type arguments.
func (a Ancestor) IsParameterized() bool {
	return a.Origin != nil
}

func (a Ancestor) String() string {
	if a.IsParameterized() {
		return (&typesystem.TApp{Constructor: a.Origin, Args: a.Args}).String()
	}
	return a.Class.String()
}

// AncestorsOf classifies the raw bases of class. A bare TCon is a plain
// ancestor, a TApp over a TCon with at least one argument is a
// parameterized ancestor, anything else is dropped.
func AncestorsOf(p Provider, class *typesystem.TCon) []Ancestor {
	bases := p.Bases(class)
	ancestors := make([]Ancestor, 0, len(bases))
	for _, base := range bases {
		if a, ok := classify(base); ok {
			ancestors = append(ancestors, a)
		}
	}
	return ancestors
}

func classify(base typesystem.Type) (Ancestor, bool) {
	switch b := base.(type) {
	case *typesystem.TCon:
		return Ancestor{Class: b}, true
	case *typesystem.TApp:
		origin, ok := b.Constructor.(*typesystem.TCon)
		if !ok || len(b.Args) == 0 {
			return Ancestor{}, false
		}
		return Ancestor{Origin: origin, Args: b.Args}, true
	default:
		return Ancestor{}, false
	}
}

// ParametersOf returns the placeholders declared by template, falling back
// to the template's own Params when the provider has none.
func ParametersOf(p Provider, template *typesystem.TCon) []typesystem.Type {
	if params := p.Parameters(template); len(params) > 0 {
		return params
	}
	params := make([]typesystem.Type, len(template.Params))
	for i, tp := range template.Params {
		params[i] = tp
	}
	return params
}
