package typesystem

import (
	"fmt"
)

// Kind represents the "type of a type".
// * (Star) is the kind of proper types (User, Repo[User]).
// * -> * is the kind of a template with one placeholder (Repo).
type Kind interface {
	String() string
	Equal(Kind) bool
}

// KStar represents the kind of a proper type (*).
type KStar struct{}

func (k KStar) String() string { return "*" }
func (k KStar) Equal(other Kind) bool {
	if _, ok := other.(KWildcard); ok {
		return true
	}
	_, ok := other.(KStar)
	return ok
}

// KWildcard represents a kind that matches any other kind.
// Used for variadic builtins like tuple that accept any number of arguments.
type KWildcard struct{}

func (k KWildcard) String() string        { return "?" }
func (k KWildcard) Equal(other Kind) bool { return true }

// KArrow represents a higher-kinded type (k1 -> k2).
type KArrow struct {
	Left  Kind
	Right Kind
}

func (k KArrow) String() string {
	return fmt.Sprintf("(%s -> %s)", k.Left.String(), k.Right.String())
}

func (k KArrow) Equal(other Kind) bool {
	if _, ok := other.(KWildcard); ok {
		return true
	}
	o, ok := other.(KArrow)
	if !ok {
		return false
	}
	return k.Left.Equal(o.Left) && k.Right.Equal(o.Right)
}

var Star Kind = KStar{}
var AnyKind Kind = KWildcard{}

// Helper to create N-ary arrows
// e.g. Dict :: * -> * -> *
func MakeArrow(args ...Kind) Kind {
	if len(args) == 0 {
		return Star
	}
	if len(args) == 1 {
		return args[0]
	}
	return KArrow{Left: args[0], Right: MakeArrow(args[1:]...)}
}

// Arity returns the number of type arguments a kind expects, or -1 for a
// wildcard kind.
func Arity(k Kind) int {
	n := 0
	for {
		switch arrow := k.(type) {
		case KWildcard:
			return -1
		case KArrow:
			n++
			k = arrow.Right
		default:
			return n
		}
	}
}

// Accepts reports whether a type of kind k can be applied to exactly n
// arguments. A wildcard kind accepts any positive count.
func Accepts(k Kind, n int) bool {
	arity := Arity(k)
	if arity < 0 {
		return n > 0
	}
	return n > 0 && arity == n
}
