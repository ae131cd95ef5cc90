package set

import (
	"fmt"
	"sort"
	"strings"
)

type Set[T comparable] map[T]struct{}

func SetOf[T comparable](vs ...T) Set[T] {
	s := make(Set[T], len(vs))
	s.Add(vs...)
	return s
}

func (s Set[T]) Add(vs ...T) {
	for _, v := range vs {
		s[v] = struct{}{}
	}
}

func (s Set[T]) AddFrom(other Set[T]) {
	for k := range other {
		s[k] = struct{}{}
	}
}

func (s Set[T]) Remove(v T) bool {
	_, ok := s[v]
	delete(s, v)
	return ok
}

func (s Set[T]) Contains(v T) bool {
	_, ok := s[v]
	return ok
}

func (s Set[T]) Len() int {
	return len(s)
}

func (s Set[T]) ToSlice() []T {
	slice := make([]T, 0, len(s))
	for k := range s {
		slice = append(slice, k)
	}
	return slice
}

// Sorted returns the members of the set ordered by less, for callers that need deterministic output.
func (s Set[T]) Sorted(less func(a, b T) bool) []T {
	slice := s.ToSlice()
	sort.Slice(slice, func(i, j int) bool { return less(slice[i], slice[j]) })
	return slice
}

// Difference returns the members of s that are not in other.
func (s Set[T]) Difference(other Set[T]) Set[T] {
	diff := make(Set[T])
	for k := range s {
		if !other.Contains(k) {
			diff.Add(k)
		}
	}
	return diff
}

func (s Set[T]) Union(other Set[T]) Set[T] {
	union := make(Set[T], len(s)+len(other))
	union.AddFrom(s)
	union.AddFrom(other)
	return union
}

func (s Set[T]) String() string {
	items := make([]string, 0, len(s))
	for k := range s {
		items = append(items, fmt.Sprintf("%v", k))
	}
	sort.Strings(items)
	return "{" + strings.Join(items, ", ") + "}"
}
