package typesystem

import "fmt"

// KindCheck validates that a type is well-kinded and returns its kind.
// Every application must saturate its constructor, and union members and
// annotated types must be proper types.
func KindCheck(t Type) (Kind, error) {
	if t == nil {
		return nil, fmt.Errorf("cannot check kind of nil type")
	}

	switch typ := t.(type) {
	case *TCon:
		return typ.Kind(), nil
	case *TParam:
		if typ.Bound != nil {
			if _, err := KindCheck(typ.Bound); err != nil {
				return nil, fmt.Errorf("bound of %s: %w", typ.QualifiedName(), err)
			}
		}
		return typ.Kind(), nil
	case *TApp:
		return checkTAppKind(typ)
	case *TUnion:
		for _, member := range typ.Types {
			k, err := KindCheck(member)
			if err != nil {
				return nil, err
			}
			if !k.Equal(Star) {
				return nil, fmt.Errorf("union member %s must be a type (kind *), got kind %s", member, k)
			}
		}
		return Star, nil
	case *TAnnotated:
		k, err := KindCheck(typ.Type)
		if err != nil {
			return nil, err
		}
		if !k.Equal(Star) {
			return nil, fmt.Errorf("annotated type %s must be a type (kind *), got kind %s", typ.Type, k)
		}
		return Star, nil
	default:
		return Star, nil
	}
}

func checkTAppKind(t *TApp) (Kind, error) {
	kCtor, err := KindCheck(t.Constructor)
	if err != nil {
		return nil, err
	}
	if len(t.Args) == 0 {
		return nil, fmt.Errorf("%s: application without type arguments", t.Constructor)
	}

	currKind := kCtor
	for _, arg := range t.Args {
		kArg, err := KindCheck(arg)
		if err != nil {
			return nil, err
		}

		switch k := currKind.(type) {
		case KWildcard:
			continue
		case KArrow:
			if !k.Left.Equal(kArg) {
				return nil, fmt.Errorf("kind mismatch in %s: expected argument of kind %s, got %s", t, k.Left, kArg)
			}
			currKind = k.Right
		default:
			return nil, NewInstantiationError(t.Constructor, len(t.Args), fmt.Sprintf("expects %d", Arity(kCtor)))
		}
	}
	if _, ok := currKind.(KArrow); ok {
		return nil, NewInstantiationError(t.Constructor, len(t.Args), fmt.Sprintf("expects %d", Arity(kCtor)))
	}
	if _, ok := currKind.(KWildcard); ok {
		return Star, nil
	}
	return currKind, nil
}
