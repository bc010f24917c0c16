package typesystem

import "github.com/funvibe/typebind/internal/config"

var (
	None  = &TCon{Name: config.NoneTypeName}
	Any   = &TCon{Name: config.AnyTypeName}
	Never = &TCon{Name: config.NeverTypeName}

	List  = &TCon{Name: config.ListTypeName, KindVal: MakeArrow(Star, Star)}
	Set   = &TCon{Name: config.SetTypeName, KindVal: MakeArrow(Star, Star)}
	Dict  = &TCon{Name: config.DictTypeName, KindVal: MakeArrow(Star, Star, Star)}
	Tuple = &TCon{Name: config.TupleTypeName, KindVal: AnyKind}
)

var builtins = map[string]*TCon{}

func init() {
	for _, t := range []*TCon{None, Any, Never, List, Set, Dict, Tuple} {
		builtins[t.Name] = t
	}
	// Primitive leaves
	for _, name := range config.PrimitiveTypeNames {
		builtins[name] = &TCon{Name: name}
	}
}

// Builtin looks up a builtin type by name.
func Builtin(name string) (*TCon, bool) {
	t, ok := builtins[name]
	return t, ok
}

// IsNone reports whether t is the None type.
func IsNone(t Type) bool {
	return Equal(t, None)
}
