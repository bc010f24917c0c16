package inject

import (
	"errors"
	"fmt"
	"strings"

	"github.com/funvibe/typebind/internal/typesystem"
)

var (
	// ErrNoRequestScope is returned when a request-scoped dependency is
	// resolved outside a request scope.
	ErrNoRequestScope = errors.New("no request scope in context")

	// ErrAlreadyRegistered is returned by Register for a type that already
	// has a provider.
	ErrAlreadyRegistered = errors.New("provider already registered")
)

// NotRegisteredError is returned when no provider matches a requested type.
type NotRegisteredError struct {
	Type  typesystem.Type
	Chain []string // keys of the providers being built, outermost first
}

func (e *NotRegisteredError) Error() string {
	msg := fmt.Sprintf("no provider registered for %s", Key(e.Type))
	if len(e.Chain) > 0 {
		msg += " (required by " + strings.Join(e.Chain, " -> ") + ")"
	}
	return msg
}

// CycleError is returned when a provider depends on itself.
type CycleError struct {
	Chain []string // starts and ends with the same key
}

func (e *CycleError) Error() string {
	return "dependency cycle: " + strings.Join(e.Chain, " -> ")
}

// UnresolvedError is returned when a dependency still mentions a
// placeholder after the class's binding map has been applied.
type UnresolvedError struct {
	Class  string
	Field  string
	Params []string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("%s: field %s: unresolved placeholders %s", e.Class, e.Field, strings.Join(e.Params, ", "))
}

// ScopeError is returned when a provider depends on a provider with a
// shorter lifetime.
type ScopeError struct {
	Class    string
	Scope    string
	Dep      string
	DepScope string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("%s provider %s cannot depend on %s provider %s", e.Scope, e.Class, e.DepScope, e.Dep)
}
