package typesystem

import "fmt"

// InstantiationError indicates that a constructor rejected its type arguments.
type InstantiationError struct {
	Constructor Type
	Args        int
	Reason      string
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("cannot instantiate %s with %d type arguments: %s", e.Constructor, e.Args, e.Reason)
}

func NewInstantiationError(ctor Type, args int, reason string) *InstantiationError {
	return &InstantiationError{Constructor: ctor, Args: args, Reason: reason}
}
