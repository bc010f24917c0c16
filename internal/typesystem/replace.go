package typesystem

// Resolve substitutes the bindings of s into t.
//
// The result shares structure with t: a node is rebuilt only when one of
// its descendants changed, and t itself is returned when nothing did. With
// an empty map t is returned without traversal.
func Resolve(t Type, s Subst) Type {
	if len(s) == 0 || t == nil {
		return t
	}

	switch typ := t.(type) {
	case *TParam:
		if replacement, ok := s[typ]; ok {
			return replacement
		}
		return typ

	case Compound:
		children := typ.Children()
		if len(children) == 0 {
			return t
		}
		resolved := make([]Type, len(children))
		for i, child := range children {
			resolved[i] = Resolve(child, s)
		}
		if equalTypes(resolved, children) {
			return t
		}
		return Reconstruct(typ.Origin(), resolved)

	default:
		return t
	}
}

// ResolveAll resolves every type of ts. The input slice is returned when
// no element changed.
func ResolveAll(ts []Type, s Subst) []Type {
	if len(s) == 0 {
		return ts
	}
	var out []Type
	for i, t := range ts {
		r := Resolve(t, s)
		if out == nil && r != t {
			out = make([]Type, len(ts))
			copy(out, ts[:i])
		}
		if out != nil {
			out[i] = r
		}
	}
	if out == nil {
		return ts
	}
	return out
}

func equalTypes(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
