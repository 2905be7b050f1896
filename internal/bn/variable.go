package bn

import (
	"fmt"
	"slices"
	"strconv"

	"gocausal/domain/core"
)

// Variable is a discrete random variable with named outcomes
type Variable struct {
	Name   string
	Labels []string
}

// NewVariable creates a variable whose labels are "0".."domain-1"
func NewVariable(name string, domain int) Variable {
	labels := make([]string, domain)
	for i := range labels {
		labels[i] = strconv.Itoa(i)
	}
	return Variable{Name: name, Labels: labels}
}

// NewLabelizedVariable creates a variable with explicit labels
func NewLabelizedVariable(name string, labels ...string) Variable {
	return Variable{Name: name, Labels: slices.Clone(labels)}
}

// Domain is the number of outcomes
func (v Variable) Domain() int {
	return len(v.Labels)
}

// Index returns the position of label
func (v Variable) Index(label string) (int, error) {
	if i := slices.Index(v.Labels, label); i >= 0 {
		return i, nil
	}
	return 0, fmt.Errorf("%w: %q is not a label of %s %v", core.ErrInvalidTable, label, v.Name, v.Labels)
}

// Label returns the label at position i
func (v Variable) Label(i int) string {
	return v.Labels[i]
}

func (v Variable) String() string {
	return fmt.Sprintf("%s%v", v.Name, v.Labels)
}
