package typesystem

import (
	"fmt"
	"sort"
	"strings"
)

// Type is the interface for every node of a type expression.
type Type interface {
	String() string
	Kind() Kind
}

// Compound is implemented by the types that have an origin and ordered
// children: TApp, TUnion and TAnnotated. The set is closed.
type Compound interface {
	Type
	Origin() Origin
	Children() []Type
}

// Origin identifies how a compound type is rebuilt from its children.
type Origin interface {
	isOrigin()
}

// AppOrigin is the origin of a parameterized type.
type AppOrigin struct {
	Constructor Type
}

// UnionOrigin is the origin of an explicit union (Union[A, B]).
type UnionOrigin struct{}

// JoinOrigin is the origin of an operator-joined union (A | B).
type JoinOrigin struct{}

// AnnotatedOrigin is the origin of a type-plus-metadata wrapper. The
// metadata values travel with the origin and are never substituted.
type AnnotatedOrigin struct {
	Metadata []any
}

func (AppOrigin) isOrigin()       {}
func (UnionOrigin) isOrigin()     {}
func (JoinOrigin) isOrigin()      {}
func (AnnotatedOrigin) isOrigin() {}

// TParam is a type placeholder declared by a template (e.g. T in Repo[T]).
// Placeholders are compared by pointer identity: two TParams with the same
// name are different placeholders.
type TParam struct {
	Name  string
	Scope string // declaring template, informational only
	Bound Type   // declared upper bound, recorded but never checked
}

// NewParam creates a fresh placeholder.
func NewParam(name string) *TParam {
	return &TParam{Name: name}
}

func (t *TParam) String() string { return t.Name }

func (t *TParam) Kind() Kind { return Star }

// QualifiedName returns Scope.Name, or Name when the placeholder has no scope.
func (t *TParam) QualifiedName() string {
	if t.Scope == "" {
		return t.Name
	}
	return t.Scope + "." + t.Name
}

// TCon is a nominal type: a class, a template or a builtin.
type TCon struct {
	Name    string
	Module  string    // optional module or package path
	KindVal Kind      // explicit kind; derived from Params when nil
	Params  []*TParam // placeholders declared by a template, in order
}

func (t *TCon) String() string {
	if t.Module != "" {
		return t.Module + "." + t.Name
	}
	return t.Name
}

func (t *TCon) Kind() Kind {
	if t.KindVal != nil {
		return t.KindVal
	}
	if len(t.Params) == 0 {
		return Star
	}
	kinds := make([]Kind, len(t.Params)+1)
	for i := range kinds {
		kinds[i] = Star
	}
	return MakeArrow(kinds...)
}

// IsTemplate reports whether the type accepts type arguments.
func (t *TCon) IsTemplate() bool {
	_, ok := t.Kind().(KStar)
	return !ok
}

// TApp is a parameterized type (e.g. Repo[User]).
type TApp struct {
	Constructor Type
	Args        []Type
}

func (t *TApp) Kind() Kind {
	k := t.Constructor.Kind()
	for range t.Args {
		switch arrow := k.(type) {
		case KArrow:
			k = arrow.Right
		case KWildcard:
			return Star
		default:
			return Star
		}
	}
	return k
}

func (t *TApp) String() string {
	if len(t.Args) == 0 {
		return t.Constructor.String()
	}
	return fmt.Sprintf("%s[%s]", t.Constructor.String(), joinTypes(t.Args, ", "))
}

func (t *TApp) Origin() Origin   { return AppOrigin{Constructor: t.Constructor} }
func (t *TApp) Children() []Type { return t.Args }

// TUnion is a union type. Joined marks the operator form (A | B); the
// explicit form is rendered as Union[A, B]. Both forms are Equal when they
// have the same members.
type TUnion struct {
	Types  []Type // at least 2, no duplicates
	Joined bool
}

func (t *TUnion) Kind() Kind { return Star }

func (t *TUnion) String() string {
	if t.Joined {
		return joinTypes(t.Types, " | ")
	}
	return fmt.Sprintf("Union[%s]", joinTypes(t.Types, ", "))
}

func (t *TUnion) Origin() Origin {
	if t.Joined {
		return JoinOrigin{}
	}
	return UnionOrigin{}
}

func (t *TUnion) Children() []Type { return t.Types }

// TAnnotated pairs a primary type with metadata values (e.g.
// Annotated[User, "primary"]).
type TAnnotated struct {
	Type     Type
	Metadata []any
}

func (t *TAnnotated) Kind() Kind { return t.Type.Kind() }

func (t *TAnnotated) String() string {
	parts := []string{t.Type.String()}
	for _, m := range t.Metadata {
		parts = append(parts, formatMetadata(m))
	}
	return fmt.Sprintf("Annotated[%s]", strings.Join(parts, ", "))
}

func (t *TAnnotated) Origin() Origin   { return AnnotatedOrigin{Metadata: t.Metadata} }
func (t *TAnnotated) Children() []Type { return []Type{t.Type} }

func formatMetadata(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", v)
}

func joinTypes(ts []Type, sep string) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, sep)
}

// Subst is a binding map from placeholders to the types bound to them.
// Unresolved placeholders are absent.
type Subst map[*TParam]Type

// Apply substitutes the bindings into t. See Resolve.
func (s Subst) Apply(t Type) Type {
	return Resolve(t, s)
}

// Clone returns a shallow copy of the map.
func (s Subst) Clone() Subst {
	out := make(Subst, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Update copies every binding of other into s, replacing existing keys.
func (s Subst) Update(other Subst) {
	for k, v := range other {
		s[k] = v
	}
}

// Lookup finds a binding by the placeholder's display name. Names are not
// unique, so the first match in qualified-name order wins.
func (s Subst) Lookup(name string) (Type, bool) {
	for _, p := range s.Params() {
		if p.Name == name || p.QualifiedName() == name {
			return s[p], true
		}
	}
	return nil, false
}

// Params returns the bound placeholders sorted by qualified name.
func (s Subst) Params() []*TParam {
	params := make([]*TParam, 0, len(s))
	for p := range s {
		params = append(params, p)
	}
	sort.Slice(params, func(i, j int) bool {
		return params[i].QualifiedName() < params[j].QualifiedName()
	})
	return params
}

func (s Subst) String() string {
	parts := []string{}
	for _, p := range s.Params() {
		parts = append(parts, fmt.Sprintf("%s=%s", p.QualifiedName(), s[p].String()))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// FreeParams returns the placeholders that occur in t, in first-seen order.
func FreeParams(t Type) []*TParam {
	var params []*TParam
	seen := map[*TParam]bool{}
	var walk func(Type)
	walk = func(t Type) {
		switch typ := t.(type) {
		case *TParam:
			if !seen[typ] {
				seen[typ] = true
				params = append(params, typ)
			}
		case *TApp:
			walk(typ.Constructor)
			for _, arg := range typ.Args {
				walk(arg)
			}
		case Compound:
			for _, child := range typ.Children() {
				walk(child)
			}
		}
	}
	walk(t)
	return params
}
