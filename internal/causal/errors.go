package causal

import (
	"fmt"
	"strings"
)

// HedgeError reports a query that no method can identify from the causal
// graph. Observables is the variable set of the failing subproblem and Hedge
// the c-component witnessing the failure.
type HedgeError struct {
	Observables []string
	Hedge       []string
}

func (e *HedgeError) Error() string {
	return fmt.Sprintf("hedge found: observables {%s}, c-component {%s}",
		strings.Join(e.Observables, ", "), strings.Join(e.Hedge, ", "))
}

// UnidentifiableError reports a query a given strategy could not identify.
// It does not prove non-identifiability, unlike HedgeError.
type UnidentifiableError struct {
	On     []string
	Doing  []string
	Reason string
}

func (e *UnidentifiableError) Error() string {
	return fmt.Sprintf("P(%s | do(%s)) not identified: %s",
		strings.Join(e.On, ","), strings.Join(e.Doing, ","), e.Reason)
}
