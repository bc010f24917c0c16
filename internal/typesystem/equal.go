package typesystem

import "reflect"

// Equal reports whether two type expressions denote the same type.
// Placeholders are equal only to themselves. Nominal types are equal when
// they share module and name. Unions are compared as sets, whatever their
// surface form.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	switch x := a.(type) {
	case *TParam:
		y, ok := b.(*TParam)
		return ok && x == y

	case *TCon:
		y, ok := b.(*TCon)
		return ok && (x == y || (x.Name == y.Name && x.Module == y.Module))

	case *TApp:
		y, ok := b.(*TApp)
		if !ok || x == y {
			return ok
		}
		return Equal(x.Constructor, y.Constructor) && equalTypes(x.Args, y.Args)

	case *TUnion:
		y, ok := b.(*TUnion)
		if !ok || x == y {
			return ok
		}
		return len(x.Types) == len(y.Types) && containsAll(x.Types, y.Types) && containsAll(y.Types, x.Types)

	case *TAnnotated:
		y, ok := b.(*TAnnotated)
		if !ok || x == y {
			return ok
		}
		return Equal(x.Type, y.Type) && reflect.DeepEqual(x.Metadata, y.Metadata)

	default:
		return reflect.DeepEqual(a, b)
	}
}

func containsAll(haystack, needles []Type) bool {
	for _, n := range needles {
		found := false
		for _, h := range haystack {
			if Equal(h, n) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
