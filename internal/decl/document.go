package decl

import (
	"fmt"
	"slices"

	"github.com/funvibe/typebind/internal/typeparse"
	"github.com/funvibe/typebind/internal/typesystem"
)

// Document is the serializable form of a Registry. Types are written in
// typeparse syntax.
type Document struct {
	// Params declares placeholders that templates refer to by name.
	// Placeholders listed only in a class's params are created on the fly,
	// scoped to that class.
	Params []ParamDoc `yaml:"params,omitempty" json:"params,omitempty" cbor:"1,keyasint,omitempty"`

	Classes []ClassDoc `yaml:"classes" json:"classes" cbor:"2,keyasint"`
}

type ParamDoc struct {
	Name  string `yaml:"name" json:"name" cbor:"1,keyasint"`
	Scope string `yaml:"scope,omitempty" json:"scope,omitempty" cbor:"2,keyasint,omitempty"`
	Bound string `yaml:"bound,omitempty" json:"bound,omitempty" cbor:"3,keyasint,omitempty"`
}

type ClassDoc struct {
	// Name is the qualified class name (module.Name).
	Name string `yaml:"name" json:"name" cbor:"1,keyasint"`

	// Params lists the template's placeholders in order.
	Params []string `yaml:"params,omitempty" json:"params,omitempty" cbor:"2,keyasint,omitempty"`

	// Bases lists the ancestors in declaration order.
	Bases []string `yaml:"bases,omitempty" json:"bases,omitempty" cbor:"3,keyasint,omitempty"`

	// Fields lists constructor fields. An explicitly empty list means the
	// class declares a constructor without parameters.
	Fields FieldList `yaml:"fields,omitempty" json:"fields,omitzero" cbor:"4,keyasint"`

	Provided *ProvisionDoc `yaml:"provided,omitempty" json:"provided,omitempty" cbor:"5,keyasint,omitempty"`
}

// FieldList keeps nil and empty apart: only a nil list is omitted when
// encoding.
type FieldList []FieldDoc

func (l FieldList) IsZero() bool { return l == nil }

type FieldDoc struct {
	Name string `yaml:"name" json:"name" cbor:"1,keyasint"`
	Type string `yaml:"type" json:"type" cbor:"2,keyasint"`
}

type ProvisionDoc struct {
	Scope   string   `yaml:"scope,omitempty" json:"scope,omitempty" cbor:"1,keyasint,omitempty"`
	Aliases []string `yaml:"aliases,omitempty" json:"aliases,omitempty" cbor:"2,keyasint,omitempty"`
	Tags    []string `yaml:"tags,omitempty" json:"tags,omitempty" cbor:"3,keyasint,omitempty"`
}

// classScope resolves a class's own placeholders by short name before
// falling back to the registry.
type classScope struct {
	registry *Registry
	own      map[string]*typesystem.TParam
}

func (s classScope) LookupType(name string) (typesystem.Type, bool) {
	if p, ok := s.own[name]; ok {
		return p, true
	}
	return s.registry.LookupType(name)
}

// FromDocument builds a registry from a document. path is used only for
// error messages.
func FromDocument(doc *Document, path string) (*Registry, error) {
	r := NewRegistry()

	for i, pd := range doc.Params {
		if pd.Name == "" {
			return nil, fmt.Errorf("%s: params[%d]: name is required", path, i)
		}
		p := &typesystem.TParam{Name: pd.Name, Scope: pd.Scope}
		if _, dup := r.LookupParam(p.QualifiedName()); dup {
			return nil, fmt.Errorf("%s: params[%d]: duplicate placeholder %q", path, i, p.QualifiedName())
		}
		r.AddParam(p)
	}

	// Declare every class first so bases may refer forward.
	scopes := make([]classScope, len(doc.Classes))
	for i, cd := range doc.Classes {
		if cd.Name == "" {
			return nil, fmt.Errorf("%s: classes[%d]: name is required", path, i)
		}
		if _, dup := r.Lookup(cd.Name); dup {
			return nil, fmt.Errorf("%s: classes[%d]: duplicate class %q", path, i, cd.Name)
		}
		module, short := splitName(cd.Name)
		con := &typesystem.TCon{Name: short, Module: module}
		scope := classScope{registry: r, own: map[string]*typesystem.TParam{}}
		raw := make([]typesystem.Type, 0, len(cd.Params))
		for _, name := range cd.Params {
			p, ok := r.LookupParam(name)
			if !ok {
				p = r.ScopedParam(cd.Name, name)
			}
			scope.own[p.Name] = p
			con.Params = append(con.Params, p)
			raw = append(raw, p)
		}
		r.Declare(&Class{Type: con, Params: raw})
		scopes[i] = scope
	}

	for i, pd := range doc.Params {
		if pd.Bound == "" {
			continue
		}
		bound, err := typeparse.ParseUnchecked(pd.Bound, r)
		if err != nil {
			return nil, fmt.Errorf("%s: params[%d] (%s): bound: %w", path, i, pd.Name, err)
		}
		p, _ := r.LookupParam((&typesystem.TParam{Name: pd.Name, Scope: pd.Scope}).QualifiedName())
		p.Bound = bound
	}

	for i, cd := range doc.Classes {
		con, _ := r.Lookup(cd.Name)
		scope := scopes[i]

		bases := make([]typesystem.Type, 0, len(cd.Bases))
		for j, b := range cd.Bases {
			t, err := typeparse.ParseUnchecked(b, scope)
			if err != nil {
				return nil, fmt.Errorf("%s: classes[%d] (%s): bases[%d]: %w", path, i, cd.Name, j, err)
			}
			bases = append(bases, t)
		}
		if err := r.SetBases(con, bases...); err != nil {
			return nil, fmt.Errorf("%s: classes[%d]: %w", path, i, err)
		}

		if cd.Fields != nil {
			fields := make([]Field, 0, len(cd.Fields))
			for j, fd := range cd.Fields {
				if fd.Name == "" {
					return nil, fmt.Errorf("%s: classes[%d] (%s): fields[%d]: name is required", path, i, cd.Name, j)
				}
				t, err := typeparse.ParseUnchecked(fd.Type, scope)
				if err != nil {
					return nil, fmt.Errorf("%s: classes[%d] (%s): fields[%d] (%s): %w", path, i, cd.Name, j, fd.Name, err)
				}
				fields = append(fields, Field{Name: fd.Name, Type: t})
			}
			if err := r.SetFields(con, fields...); err != nil {
				return nil, fmt.Errorf("%s: classes[%d]: %w", path, i, err)
			}
		}

		if cd.Provided != nil {
			prov := Provision{Scope: cd.Provided.Scope, Tags: slices.Clone(cd.Provided.Tags)}
			for j, a := range cd.Provided.Aliases {
				t, err := typeparse.ParseUnchecked(a, scope)
				if err != nil {
					return nil, fmt.Errorf("%s: classes[%d] (%s): provided.aliases[%d]: %w", path, i, cd.Name, j, err)
				}
				prov.Aliases = append(prov.Aliases, t)
			}
			if err := r.Provide(con, prov); err != nil {
				return nil, fmt.Errorf("%s: classes[%d]: %w", path, i, err)
			}
		}
	}

	return r, nil
}

// Document renders the registry in serializable form. FromDocument of the
// result yields an equivalent registry.
func (r *Registry) Document() *Document {
	doc := &Document{}
	for _, p := range r.Params() {
		pd := ParamDoc{Name: p.Name, Scope: p.Scope}
		if p.Bound != nil {
			pd.Bound = typeparse.Format(p.Bound, qualified)
		}
		doc.Params = append(doc.Params, pd)
	}

	for _, c := range r.Classes() {
		cd := ClassDoc{Name: c.Type.String()}
		for _, p := range c.Params {
			if tp, ok := p.(*typesystem.TParam); ok {
				cd.Params = append(cd.Params, tp.QualifiedName())
			}
		}
		for _, b := range c.Bases {
			cd.Bases = append(cd.Bases, typeparse.Format(b, qualified))
		}
		if c.Fields != nil {
			cd.Fields = make(FieldList, 0, len(c.Fields))
			for _, f := range c.Fields {
				cd.Fields = append(cd.Fields, FieldDoc{Name: f.Name, Type: typeparse.Format(f.Type, qualified)})
			}
		}
		if c.Provision != nil {
			pd := &ProvisionDoc{Scope: c.Provision.Scope, Tags: slices.Clone(c.Provision.Tags)}
			for _, a := range c.Provision.Aliases {
				pd.Aliases = append(pd.Aliases, typeparse.Format(a, qualified))
			}
			cd.Provided = pd
		}
		doc.Classes = append(doc.Classes, cd)
	}
	return doc
}

func qualified(p *typesystem.TParam) string {
	return p.QualifiedName()
}
