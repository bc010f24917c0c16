package typesystem

import "fmt"

// Reconstruct rebuilds a compound type from its origin and resolved
// children. It never fails: a constructor that rejects the arguments is
// returned bare.
func Reconstruct(origin Origin, args []Type) Type {
	switch o := origin.(type) {
	case AnnotatedOrigin:
		// First argument is the primary type, metadata comes from the origin.
		if len(args) == 0 {
			return Never
		}
		return Annotate(args[0], o.Metadata...)

	case UnionOrigin:
		return NewUnion(args...)

	case JoinOrigin:
		if len(args) == 0 {
			return Never
		}
		result := args[0]
		for _, arg := range args[1:] {
			result = Join(result, arg)
		}
		return result

	case AppOrigin:
		t, err := Instantiate(o.Constructor, args)
		if err != nil {
			return o.Constructor
		}
		return t

	default:
		// Origin is sealed; every implementation is handled above.
		return nil
	}
}

// Instantiate applies a template to type arguments. The constructor must be
// a TCon whose kind accepts exactly len(args) arguments.
func Instantiate(ctor Type, args []Type) (Type, error) {
	con, ok := ctor.(*TCon)
	if !ok {
		return nil, NewInstantiationError(ctor, len(args), "not a type constructor")
	}
	k := con.Kind()
	if !Accepts(k, len(args)) {
		arity := Arity(k)
		if arity == 0 {
			return nil, NewInstantiationError(ctor, len(args), "type is not generic")
		}
		return nil, NewInstantiationError(ctor, len(args), fmt.Sprintf("expects %d", arity))
	}
	return &TApp{Constructor: con, Args: args}, nil
}

// App builds a parameterized type without checking the constructor's kind.
// Declaration providers use it for ancestor entries, which may be
// malformed.
func App(ctor Type, args ...Type) *TApp {
	return &TApp{Constructor: ctor, Args: args}
}

// Annotate attaches metadata to t. Annotating an annotated type merges
// the metadata, inner values first, instead of nesting.
func Annotate(t Type, metadata ...any) Type {
	if inner, ok := t.(*TAnnotated); ok {
		merged := make([]any, 0, len(inner.Metadata)+len(metadata))
		merged = append(merged, inner.Metadata...)
		return &TAnnotated{Type: inner.Type, Metadata: append(merged, metadata...)}
	}
	return &TAnnotated{Type: t, Metadata: metadata}
}

// NewUnion builds an explicit union. Nested unions are flattened and
// duplicates dropped, keeping the first occurrence. A single remaining
// member is returned as is.
func NewUnion(types ...Type) Type {
	return normalizeUnion(types, false)
}

// Join is the union operator (a | b). Join(Join(a, b), c) is Equal to
// NewUnion(a, b, c).
func Join(a, b Type) Type {
	return normalizeUnion([]Type{a, b}, true)
}

// Optional is shorthand for NewUnion(t, None).
func Optional(t Type) Type {
	return NewUnion(t, None)
}

func normalizeUnion(types []Type, joined bool) Type {
	// Flatten nested unions
	flat := []Type{}
	for _, t := range types {
		if u, ok := t.(*TUnion); ok {
			flat = append(flat, u.Types...)
		} else {
			flat = append(flat, t)
		}
	}

	// Remove duplicates, order preserved
	unique := []Type{}
	for _, t := range flat {
		dup := false
		for _, u := range unique {
			if Equal(t, u) {
				dup = true
				break
			}
		}
		if !dup {
			unique = append(unique, t)
		}
	}

	switch len(unique) {
	case 0:
		return Never
	case 1:
		return unique[0]
	}
	return &TUnion{Types: unique, Joined: joined}
}
