package goscan

import (
	"go/ast"
	"go/token"
	"go/types"
	"log/slog"

	"golang.org/x/tools/go/packages"

	"github.com/funvibe/typebind/internal/decl"
	"github.com/funvibe/typebind/internal/typesystem"
)

// builder converts go/types declarations into registry entries. Go type
// parameters map one-to-one to placeholders.
type builder struct {
	registry *decl.Registry
	params   map[*types.TypeParam]*typesystem.TParam
	logger   *slog.Logger
}

func newBuilder(r *decl.Registry, logger *slog.Logger) *builder {
	return &builder{
		registry: r,
		params:   make(map[*types.TypeParam]*typesystem.TParam),
		logger:   logger,
	}
}

// declarePackage declares every named type of pkg so that later passes can
// refer to them in any order.
func (b *builder) declarePackage(pkg *packages.Package) {
	scope := pkg.Types.Scope()
	for _, name := range scope.Names() {
		if tn, ok := scope.Lookup(name).(*types.TypeName); ok && !tn.IsAlias() {
			b.declare(tn)
		}
	}
}

// describePackage records bases and fields of every named type of pkg.
func (b *builder) describePackage(pkg *packages.Package) error {
	scope := pkg.Types.Scope()
	for _, name := range scope.Names() {
		tn, ok := scope.Lookup(name).(*types.TypeName)
		if !ok || tn.IsAlias() {
			continue
		}
		named, ok := tn.Type().(*types.Named)
		if !ok {
			continue
		}
		con := b.declare(tn)

		switch u := named.Underlying().(type) {
		case *types.Struct:
			var bases []typesystem.Type
			fields := []decl.Field{}
			for i := 0; i < u.NumFields(); i++ {
				f := u.Field(i)
				if f.Embedded() {
					if base := b.base(f.Type()); base != nil {
						bases = append(bases, base)
					}
					continue
				}
				if !f.Exported() {
					continue
				}
				fields = append(fields, decl.Field{Name: f.Name(), Type: b.convert(f.Type())})
			}
			if err := b.registry.SetBases(con, bases...); err != nil {
				return err
			}
			if err := b.registry.SetFields(con, fields...); err != nil {
				return err
			}

		case *types.Interface:
			var bases []typesystem.Type
			for i := 0; i < u.NumEmbeddeds(); i++ {
				if base := b.base(u.EmbeddedType(i)); base != nil {
					bases = append(bases, base)
				}
			}
			if err := b.registry.SetBases(con, bases...); err != nil {
				return err
			}
		}
	}
	return nil
}

// declare returns the registry entry for a named type, creating it and its
// placeholders on first use.
func (b *builder) declare(tn *types.TypeName) *typesystem.TCon {
	key := qualifiedName(tn)
	if con, ok := b.registry.Lookup(key); ok {
		return con
	}

	named, _ := tn.Type().(*types.Named)
	var params []*typesystem.TParam
	var goParams []*types.TypeParam
	if named != nil {
		if tparams := named.TypeParams(); tparams != nil {
			for i := 0; i < tparams.Len(); i++ {
				tp := tparams.At(i)
				p := b.registry.ScopedParam(key, tp.Obj().Name())
				b.params[tp] = p
				params = append(params, p)
				goParams = append(goParams, tp)
			}
		}
	}
	con := b.registry.Template(key, params...)

	// Bounds may refer back to the template, so they are set after it is
	// declared.
	for i, tp := range goParams {
		if isAnyConstraint(tp) {
			continue
		}
		if bound := b.convert(tp.Constraint()); bound != typesystem.Type(typesystem.Any) {
			params[i].Bound = bound
		}
	}
	return con
}

// base converts an embedded type into an ancestor entry. Only named types
// qualify.
func (b *builder) base(t types.Type) typesystem.Type {
	t = types.Unalias(t)
	if ptr, ok := t.(*types.Pointer); ok {
		t = types.Unalias(ptr.Elem())
	}
	if _, ok := t.(*types.Named); !ok {
		return nil
	}
	return b.convert(t)
}

// convert maps a Go type to a type expression. Pointers are transparent;
// slices, arrays and maps become list and dict; types without a nominal
// counterpart become Any.
func (b *builder) convert(t types.Type) typesystem.Type {
	switch t := types.Unalias(t).(type) {
	case *types.TypeParam:
		if p, ok := b.params[t]; ok {
			return p
		}
		return typesystem.Any

	case *types.Named:
		con := b.declare(t.Obj())
		targs := t.TypeArgs()
		if targs == nil || targs.Len() == 0 {
			return con
		}
		args := make([]typesystem.Type, targs.Len())
		for i := 0; i < targs.Len(); i++ {
			args[i] = b.convert(targs.At(i))
		}
		return typesystem.App(con, args...)

	case *types.Basic:
		return basicType(t)

	case *types.Pointer:
		return b.convert(t.Elem())

	case *types.Slice:
		if basic, ok := t.Elem().(*types.Basic); ok && basic.Kind() == types.Byte {
			return builtin("bytes")
		}
		return typesystem.App(typesystem.List, b.convert(t.Elem()))

	case *types.Array:
		return typesystem.App(typesystem.List, b.convert(t.Elem()))

	case *types.Map:
		return typesystem.App(typesystem.Dict, b.convert(t.Key()), b.convert(t.Elem()))

	default:
		return typesystem.Any
	}
}

func basicType(t *types.Basic) typesystem.Type {
	info := t.Info()
	switch {
	case info&types.IsBoolean != 0:
		return builtin("bool")
	case info&types.IsString != 0:
		return builtin("str")
	case info&types.IsInteger != 0:
		return builtin("int")
	case info&types.IsFloat != 0:
		return builtin("float")
	default:
		return typesystem.Any
	}
}

func builtin(name string) typesystem.Type {
	if t, ok := typesystem.Builtin(name); ok {
		return t
	}
	return typesystem.Any
}

func qualifiedName(tn *types.TypeName) string {
	if tn.Pkg() == nil {
		return tn.Name()
	}
	return tn.Pkg().Path() + "." + tn.Name()
}

func isAnyConstraint(tp *types.TypeParam) bool {
	constraint := tp.Constraint()
	if constraint == nil {
		return true
	}
	iface, ok := constraint.Underlying().(*types.Interface)
	if !ok {
		return false
	}
	return iface.NumMethods() == 0 && !iface.IsComparable() && iface.NumEmbeddeds() == 0
}

// typeSpecs yields every type declaration of pkg with its doc comment.
// A lone spec in a declaration falls back to the declaration's comment.
func typeSpecs(pkg *packages.Package, fn func(spec *ast.TypeSpec, doc *ast.CommentGroup) error) error {
	for _, file := range pkg.Syntax {
		for _, d := range file.Decls {
			gd, ok := d.(*ast.GenDecl)
			if !ok || gd.Tok != token.TYPE {
				continue
			}
			for _, s := range gd.Specs {
				spec := s.(*ast.TypeSpec)
				doc := spec.Doc
				if doc == nil && len(gd.Specs) == 1 {
					doc = gd.Doc
				}
				if doc == nil {
					continue
				}
				if err := fn(spec, doc); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
