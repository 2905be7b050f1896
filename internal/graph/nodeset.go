package graph

import (
	"slices"
	"strconv"
	"strings"
)

// NodeSet is an unordered set of node ids. Iteration helpers return ids in
// ascending order so callers get reproducible results.
type NodeSet map[int64]struct{}

// NewNodeSet builds a set from ids
func NewNodeSet(ids ...int64) NodeSet {
	s := make(NodeSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s NodeSet) Add(ids ...int64) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

func (s NodeSet) Remove(ids ...int64) {
	for _, id := range ids {
		delete(s, id)
	}
}

func (s NodeSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

func (s NodeSet) Len() int { return len(s) }

func (s NodeSet) IsEmpty() bool { return len(s) == 0 }

func (s NodeSet) Clone() NodeSet {
	c := make(NodeSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// Union returns s ∪ o as a new set
func (s NodeSet) Union(o NodeSet) NodeSet {
	c := s.Clone()
	for id := range o {
		c[id] = struct{}{}
	}
	return c
}

// Intersect returns s ∩ o as a new set
func (s NodeSet) Intersect(o NodeSet) NodeSet {
	small, large := s, o
	if len(large) < len(small) {
		small, large = large, small
	}
	c := make(NodeSet)
	for id := range small {
		if large.Has(id) {
			c[id] = struct{}{}
		}
	}
	return c
}

// Minus returns s \ o as a new set
func (s NodeSet) Minus(o NodeSet) NodeSet {
	c := make(NodeSet, len(s))
	for id := range s {
		if !o.Has(id) {
			c[id] = struct{}{}
		}
	}
	return c
}

func (s NodeSet) Intersects(o NodeSet) bool {
	small, large := s, o
	if len(large) < len(small) {
		small, large = large, small
	}
	for id := range small {
		if large.Has(id) {
			return true
		}
	}
	return false
}

func (s NodeSet) IsSubsetOf(o NodeSet) bool {
	if len(s) > len(o) {
		return false
	}
	for id := range s {
		if !o.Has(id) {
			return false
		}
	}
	return true
}

func (s NodeSet) Equal(o NodeSet) bool {
	return len(s) == len(o) && s.IsSubsetOf(o)
}

// Sorted returns the ids in ascending order
func (s NodeSet) Sorted() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Min returns the smallest id, or -1 for an empty set
func (s NodeSet) Min() int64 {
	first := true
	var m int64 = -1
	for id := range s {
		if first || id < m {
			m, first = id, false
		}
	}
	return m
}

func (s NodeSet) String() string {
	ids := s.Sorted()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
