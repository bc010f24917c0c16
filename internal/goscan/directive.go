package goscan

import (
	"fmt"
	"go/ast"
	"go/types"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/funvibe/typebind/internal/config"
	"github.com/funvibe/typebind/internal/decl"
	"github.com/funvibe/typebind/internal/typeparse"
	"github.com/funvibe/typebind/internal/typesystem"
)

// Directive is a parsed //typebind:provided comment.
type Directive struct {
	Scope   string
	Aliases []string
	Tags    []string
}

// ParseDirective parses the text following "//typebind:provided".
// Arguments are space separated key=value pairs; alias and tags take comma
// separated lists and may be repeated.
func ParseDirective(args string) (*Directive, error) {
	d := &Directive{Scope: config.ScopeTransient}
	for _, field := range strings.Fields(args) {
		key, value, ok := strings.Cut(field, "=")
		if !ok || value == "" {
			return nil, fmt.Errorf("malformed argument %q, want key=value", field)
		}
		switch key {
		case "scope":
			switch value {
			case config.ScopeTransient, config.ScopeSingleton, config.ScopeRequest:
				d.Scope = value
			default:
				return nil, fmt.Errorf("unknown scope %q", value)
			}
		case "alias":
			d.Aliases = append(d.Aliases, splitTopLevel(value)...)
		case "tags":
			for _, tag := range strings.Split(value, ",") {
				if tag != "" {
					d.Tags = append(d.Tags, tag)
				}
			}
		default:
			return nil, fmt.Errorf("unknown argument %q", key)
		}
	}
	return d, nil
}

// splitTopLevel splits on commas outside brackets, so an alias may carry
// type arguments: alias=Reader[User],Writer[Pair[A,B]].
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, ch := range s {
		switch ch {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// matchesTags reports whether a provision passes the tag filter.
func matchesTags(tags, wanted []string) bool {
	if len(wanted) == 0 {
		return true
	}
	for _, t := range tags {
		for _, w := range wanted {
			if t == w {
				return true
			}
		}
	}
	return false
}

// provisions records the provided directives of pkg and returns how many
// passed the tag filter.
func (b *builder) provisions(pkg *packages.Package, wanted []string) (int, error) {
	count := 0
	err := typeSpecs(pkg, func(spec *ast.TypeSpec, doc *ast.CommentGroup) error {
		for _, c := range doc.List {
			rest, ok := strings.CutPrefix(c.Text, config.DirectivePrefix)
			if !ok {
				continue
			}
			pos := pkg.Fset.Position(c.Pos())
			name, args, _ := strings.Cut(rest, " ")
			if name != config.ProvidedDirective {
				b.logger.Warn("unknown directive", "directive", name, "pos", pos.String())
				continue
			}

			d, err := ParseDirective(args)
			if err != nil {
				return fmt.Errorf("%s: %s: %w", pos, spec.Name.Name, err)
			}
			if !matchesTags(d.Tags, wanted) {
				b.logger.Debug("provision filtered by tags", "type", spec.Name.Name, "tags", d.Tags)
				continue
			}

			tn, ok := pkg.Types.Scope().Lookup(spec.Name.Name).(*types.TypeName)
			if !ok {
				continue
			}
			con := b.declare(tn)
			prov := decl.Provision{Scope: d.Scope, Tags: d.Tags}
			scope := aliasScope{builder: b, pkg: pkg}
			for _, alias := range d.Aliases {
				t, err := typeparse.ParseUnchecked(alias, scope)
				if err != nil {
					return fmt.Errorf("%s: %s: alias: %w", pos, spec.Name.Name, err)
				}
				prov.Aliases = append(prov.Aliases, t)
			}
			if err := b.registry.Provide(con, prov); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

// aliasScope resolves names in directive arguments the way Go source
// would: unqualified names from the declaring package, pkg.Name through
// the package's imports, and full import paths through the registry.
type aliasScope struct {
	builder *builder
	pkg     *packages.Package
}

func (s aliasScope) LookupType(name string) (typesystem.Type, bool) {
	if t, ok := s.builder.registry.LookupType(name); ok {
		return t, true
	}
	if tn, ok := s.pkg.Types.Scope().Lookup(name).(*types.TypeName); ok {
		return s.builder.declare(tn), true
	}
	pkgName, rest, ok := strings.Cut(name, ".")
	if !ok {
		return nil, false
	}
	for _, imp := range s.pkg.Imports {
		if imp.Types == nil || imp.Types.Name() != pkgName {
			continue
		}
		if tn, ok := imp.Types.Scope().Lookup(rest).(*types.TypeName); ok {
			return s.builder.declare(tn), true
		}
	}
	return nil, false
}
