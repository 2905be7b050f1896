package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound        = errors.New("resource not found")
	ErrModelNotFound   = fmt.Errorf("%w: causal model", ErrNotFound)
	ErrUnknownVariable = fmt.Errorf("%w: variable", ErrNotFound)

	// Graph precondition errors
	ErrCycle             = errors.New("arc would create a cycle")
	ErrDuplicateVariable = errors.New("duplicate variable name")
	ErrInvalidArc        = errors.New("invalid arc")
	ErrInvalidLatent     = errors.New("invalid latent variable")

	// Query errors
	ErrMalformedQuery = errors.New("malformed causal query")

	// Table errors
	ErrInvalidTable = errors.New("invalid probability table")

	// Algorithm errors
	ErrInvariantViolated = errors.New("identification invariant violated")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewUnknownVariableError(name string) error {
	return fmt.Errorf("%w %q", ErrUnknownVariable, name)
}

func NewCycleError(from, to string) error {
	return fmt.Errorf("%w: %s->%s", ErrCycle, from, to)
}

func NewMalformedQueryError(reason string) error {
	return fmt.Errorf("%w: %s", ErrMalformedQuery, reason)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsGraphError(err error) bool {
	return errors.Is(err, ErrCycle) ||
		errors.Is(err, ErrDuplicateVariable) ||
		errors.Is(err, ErrInvalidArc) ||
		errors.Is(err, ErrInvalidLatent)
}

func IsQueryError(err error) bool {
	return errors.Is(err, ErrMalformedQuery) ||
		errors.Is(err, ErrUnknownVariable)
}
