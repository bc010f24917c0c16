package inject

import (
	"context"

	"github.com/google/uuid"

	"github.com/funvibe/typebind/internal/config"
)

// allowedScopes lists, per scope, the scopes its dependencies may have.
var allowedScopes = map[string][]string{
	config.ScopeSingleton: {config.ScopeSingleton},
	config.ScopeRequest:   {config.ScopeRequest, config.ScopeSingleton},
	config.ScopeTransient: {config.ScopeTransient, config.ScopeRequest, config.ScopeSingleton},
}

func validScope(scope string) bool {
	_, ok := allowedScopes[scope]
	return ok
}

func scopeAllows(parent, dep string) bool {
	if parent == "" {
		return true
	}
	for _, s := range allowedScopes[parent] {
		if s == dep {
			return true
		}
	}
	return false
}

// RequestScope holds the request-scoped instances of one request.
type RequestScope struct {
	ID uuid.UUID

	instances *instanceCache
}

func NewRequestScope() *RequestScope {
	return &RequestScope{ID: uuid.New(), instances: newInstanceCache()}
}

// Len returns the number of instances built in the scope.
func (s *RequestScope) Len() int {
	return s.instances.len()
}

type requestScopeKey struct{}

// WithRequestScope returns a context carrying s.
func WithRequestScope(ctx context.Context, s *RequestScope) context.Context {
	return context.WithValue(ctx, requestScopeKey{}, s)
}

// RequestScopeFrom returns the request scope carried by ctx.
func RequestScopeFrom(ctx context.Context) (*RequestScope, bool) {
	s, ok := ctx.Value(requestScopeKey{}).(*RequestScope)
	return s, ok
}
