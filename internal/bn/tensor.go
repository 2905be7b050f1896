package bn

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"gocausal/domain/core"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
)

// Tensor is a dense table over discrete variables. Values are laid out with
// the first variable varying fastest. Variables are identified by name:
// binary operations align operands by name and broadcast over the union of
// their variables.
//
// Like gonum/mat, operations panic on structural misuse (two variables with
// the same name but different domains, unknown variables in Get/Set).
type Tensor struct {
	vars   []Variable
	values []float64
}

// NewTensor creates a zero-filled tensor. A tensor with no variable holds a
// single scalar cell.
func NewTensor(vars ...Variable) *Tensor {
	seen := make(map[string]bool, len(vars))
	for _, v := range vars {
		if seen[v.Name] {
			panic(fmt.Sprintf("bn: variable %s appears twice in tensor", v.Name))
		}
		seen[v.Name] = true
	}
	return &Tensor{vars: slices.Clone(vars), values: make([]float64, domainSize(vars))}
}

// Ones creates a tensor filled with 1
func Ones(vars ...Variable) *Tensor {
	return NewTensor(vars...).FillWith(1)
}

func domainSize(vars []Variable) int {
	n := 1
	for _, v := range vars {
		n *= v.Domain()
	}
	return n
}

func strides(vars []Variable) []int {
	st := make([]int, len(vars))
	s := 1
	for i, v := range vars {
		st[i] = s
		s *= v.Domain()
	}
	return st
}

func (t *Tensor) axis(name string) int {
	return slices.IndexFunc(t.vars, func(v Variable) bool { return v.Name == name })
}

// Vars returns the variables in axis order
func (t *Tensor) Vars() []Variable { return slices.Clone(t.vars) }

// Names returns the variable names in axis order
func (t *Tensor) Names() []string {
	names := make([]string, len(t.vars))
	for i, v := range t.vars {
		names[i] = v.Name
	}
	return names
}

// Has reports whether the tensor has a variable called name
func (t *Tensor) Has(name string) bool { return t.axis(name) >= 0 }

func (t *Tensor) NbrDim() int { return len(t.vars) }

// Size is the number of cells
func (t *Tensor) Size() int { return len(t.values) }

// Values returns a copy of the cells in layout order
func (t *Tensor) Values() []float64 { return slices.Clone(t.values) }

// Fill replaces all cells
func (t *Tensor) Fill(values []float64) error {
	if len(values) != len(t.values) {
		return fmt.Errorf("%w: %d values for a table of %d cells", core.ErrInvalidTable, len(values), len(t.values))
	}
	copy(t.values, values)
	return nil
}

// FillWith sets every cell to v and returns t
func (t *Tensor) FillWith(v float64) *Tensor {
	for i := range t.values {
		t.values[i] = v
	}
	return t
}

func (t *Tensor) offset(inst map[string]int) int {
	st := strides(t.vars)
	off := 0
	for i, v := range t.vars {
		idx, ok := inst[v.Name]
		if !ok {
			panic(fmt.Sprintf("bn: instantiation misses variable %s", v.Name))
		}
		if idx < 0 || idx >= v.Domain() {
			panic(fmt.Sprintf("bn: index %d out of range for %s", idx, v.Name))
		}
		off += idx * st[i]
	}
	return off
}

// Get returns the cell at inst, which must index every variable
func (t *Tensor) Get(inst map[string]int) float64 {
	return t.values[t.offset(inst)]
}

// Set writes the cell at inst
func (t *Tensor) Set(inst map[string]int, v float64) {
	t.values[t.offset(inst)] = v
}

// Copy returns an independent tensor
func (t *Tensor) Copy() *Tensor {
	return &Tensor{vars: slices.Clone(t.vars), values: slices.Clone(t.values)}
}

// gather lays out t over target. srcStride[k] is the step in t.values for a
// unit step of target[k] (0 when t does not depend on it); base is the
// offset of the fixed part.
func (t *Tensor) gather(target []Variable, srcStride []int, base int) []float64 {
	n := domainSize(target)
	out := make([]float64, n)
	idx := make([]int, len(target))
	src := base
	for off := 0; off < n; off++ {
		out[off] = t.values[src]
		for k := range target {
			idx[k]++
			src += srcStride[k]
			if idx[k] < target[k].Domain() {
				break
			}
			src -= srcStride[k] * idx[k]
			idx[k] = 0
		}
	}
	return out
}

// expand broadcasts t over target, which must contain every variable of t
func (t *Tensor) expand(target []Variable) []float64 {
	st := strides(t.vars)
	srcStride := make([]int, len(target))
	for k, v := range target {
		if a := t.axis(v.Name); a >= 0 {
			if t.vars[a].Domain() != v.Domain() {
				panic(fmt.Sprintf("bn: variable %s has domains %d and %d", v.Name, t.vars[a].Domain(), v.Domain()))
			}
			srcStride[k] = st[a]
		}
	}
	return t.gather(target, srcStride, 0)
}

func unionVars(a, b []Variable) []Variable {
	out := slices.Clone(a)
	for _, v := range b {
		if !slices.ContainsFunc(out, func(w Variable) bool { return w.Name == v.Name }) {
			out = append(out, v)
		}
	}
	return out
}

func (t *Tensor) combine(o *Tensor, op func(dst, a, b []float64)) *Tensor {
	vars := unionVars(t.vars, o.vars)
	a, b := t.expand(vars), o.expand(vars)
	res := &Tensor{vars: vars, values: make([]float64, len(a))}
	op(res.values, a, b)
	return res
}

// Add returns t + o
func (t *Tensor) Add(o *Tensor) *Tensor {
	return t.combine(o, func(dst, a, b []float64) { floats.AddTo(dst, a, b) })
}

// Sub returns t - o
func (t *Tensor) Sub(o *Tensor) *Tensor {
	return t.combine(o, func(dst, a, b []float64) { floats.SubTo(dst, a, b) })
}

// Mul returns t * o
func (t *Tensor) Mul(o *Tensor) *Tensor {
	return t.combine(o, func(dst, a, b []float64) { floats.MulTo(dst, a, b) })
}

// Div returns t / o. A cell divided by zero is 0, so conditioning on an
// impossible configuration yields an all-zero slice rather than NaN.
func (t *Tensor) Div(o *Tensor) *Tensor {
	return t.combine(o, func(dst, a, b []float64) {
		for i := range dst {
			if b[i] == 0 {
				dst[i] = 0
				continue
			}
			dst[i] = a[i] / b[i]
		}
	})
}

// Scale returns f * t
func (t *Tensor) Scale(f float64) *Tensor {
	c := t.Copy()
	floats.Scale(f, c.values)
	return c
}

// marginal sums t onto keep
func (t *Tensor) marginal(keep []Variable) *Tensor {
	res := NewTensor(keep...)
	rst := strides(keep)
	dstStride := make([]int, len(t.vars))
	for k, v := range t.vars {
		if a := slices.IndexFunc(keep, func(w Variable) bool { return w.Name == v.Name }); a >= 0 {
			dstStride[k] = rst[a]
		}
	}
	idx := make([]int, len(t.vars))
	dst := 0
	for off := range t.values {
		res.values[dst] += t.values[off]
		for k := range t.vars {
			idx[k]++
			dst += dstStride[k]
			if idx[k] < t.vars[k].Domain() {
				break
			}
			dst -= dstStride[k] * idx[k]
			idx[k] = 0
		}
	}
	return res
}

// SumOut sums over the named variables. Names the tensor does not carry are
// ignored.
func (t *Tensor) SumOut(names ...string) *Tensor {
	keep := make([]Variable, 0, len(t.vars))
	for _, v := range t.vars {
		if !slices.Contains(names, v.Name) {
			keep = append(keep, v)
		}
	}
	if len(keep) == len(t.vars) {
		return t.Copy()
	}
	return t.marginal(keep)
}

// SumIn keeps the named variables and sums over the others
func (t *Tensor) SumIn(names ...string) *Tensor {
	keep := make([]Variable, 0, len(names))
	for _, v := range t.vars {
		if slices.Contains(names, v.Name) {
			keep = append(keep, v)
		}
	}
	return t.marginal(keep)
}

// Extract fixes the variables of inst and returns the remaining slice.
// Names the tensor does not carry are ignored.
func (t *Tensor) Extract(inst map[string]int) *Tensor {
	st := strides(t.vars)
	base := 0
	var rest []Variable
	var restStride []int
	for i, v := range t.vars {
		idx, fixed := inst[v.Name]
		if !fixed {
			rest = append(rest, v)
			restStride = append(restStride, st[i])
			continue
		}
		if idx < 0 || idx >= v.Domain() {
			panic(fmt.Sprintf("bn: index %d out of range for %s", idx, v.Name))
		}
		base += idx * st[i]
	}
	return &Tensor{vars: rest, values: t.gather(rest, restStride, base)}
}

// Reorganize permutes the axes to follow names, which must name exactly the
// tensor's variables.
func (t *Tensor) Reorganize(names []string) (*Tensor, error) {
	if len(names) != len(t.vars) {
		return nil, fmt.Errorf("%w: reorganize on %v but tensor has %v", core.ErrInvalidTable, names, t.Names())
	}
	vars := make([]Variable, len(names))
	for i, n := range names {
		a := t.axis(n)
		if a < 0 || slices.Contains(names[:i], n) {
			return nil, fmt.Errorf("%w: reorganize on %v but tensor has %v", core.ErrInvalidTable, names, t.Names())
		}
		vars[i] = t.vars[a]
	}
	return &Tensor{vars: vars, values: t.expand(vars)}, nil
}

// Sum of all cells
func (t *Tensor) Sum() float64 {
	return floats.Sum(t.values)
}

// Normalize scales the cells to sum to 1. An all-zero tensor is returned as is.
func (t *Tensor) Normalize() *Tensor {
	s := t.Sum()
	if s == 0 {
		return t.Copy()
	}
	return t.Scale(1 / s)
}

// IsClose compares two tensors over the same variables up to tol
func (t *Tensor) IsClose(o *Tensor, tol float64) bool {
	if len(t.vars) != len(o.vars) {
		return false
	}
	aligned, err := o.Reorganize(t.Names())
	if err != nil {
		return false
	}
	for i, v := range t.vars {
		if aligned.vars[i].Domain() != v.Domain() {
			return false
		}
	}
	return floats.EqualApprox(t.values, aligned.values, tol)
}

// Summary describes the cell values of a table
type Summary struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
	Sum  float64 `json:"sum"`
}

// Summary computes min, max, mean and sum of the cells
func (t *Tensor) Summary() (Summary, error) {
	data := stats.Float64Data(t.values)
	var s Summary
	var err error
	if s.Min, err = stats.Min(data); err != nil {
		return s, err
	}
	if s.Max, err = stats.Max(data); err != nil {
		return s, err
	}
	if s.Mean, err = stats.Mean(data); err != nil {
		return s, err
	}
	if s.Sum, err = stats.Sum(data); err != nil {
		return s, err
	}
	return s, nil
}

// Cell is one instantiation of a table with its value
type Cell struct {
	Labels map[string]string `json:"labels"`
	Value  float64           `json:"value"`
}

// Cells lists every instantiation in layout order
func (t *Tensor) Cells() []Cell {
	cells := make([]Cell, len(t.values))
	idx := make([]int, len(t.vars))
	for off := range t.values {
		labels := make(map[string]string, len(t.vars))
		for k, v := range t.vars {
			labels[v.Name] = v.Label(idx[k])
		}
		cells[off] = Cell{Labels: labels, Value: t.values[off]}
		for k := range t.vars {
			idx[k]++
			if idx[k] < t.vars[k].Domain() {
				break
			}
			idx[k] = 0
		}
	}
	return cells
}

func (t *Tensor) String() string {
	var b strings.Builder
	names := t.Names()
	for _, n := range names {
		fmt.Fprintf(&b, "%-8s", n)
	}
	b.WriteString("| value\n")
	for _, c := range t.Cells() {
		for _, n := range names {
			fmt.Fprintf(&b, "%-8s", c.Labels[n])
		}
		v := c.Value
		if math.Abs(v) < 5e-10 {
			v = 0
		}
		fmt.Fprintf(&b, "| %.6f\n", v)
	}
	return b.String()
}
