package generics

import "github.com/funvibe/typebind/internal/typesystem"

// Bind pairs declared placeholders with supplied arguments by position and
// returns existing extended with the new bindings. existing is not
// modified.
//
// Pairing stops at the shorter list. A declared entry that is not a
// placeholder is skipped. A placeholder argument is looked up in existing
// and bound only when found there; placeholders are never bound to
// placeholders.
func Bind(declared, supplied []typesystem.Type, existing typesystem.Subst) typesystem.Subst {
	bound := existing.Clone()
	n := min(len(declared), len(supplied))
	for i := 0; i < n; i++ {
		param, ok := declared[i].(*typesystem.TParam)
		if !ok {
			continue
		}
		arg := supplied[i]
		if argParam, ok := arg.(*typesystem.TParam); ok {
			if resolved, found := existing[argParam]; found {
				bound[param] = resolved
			}
			continue
		}
		bound[param] = arg
	}
	return bound
}
