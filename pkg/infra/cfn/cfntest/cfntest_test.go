package cfntest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name   string
		want   any
		actual any
		match  bool
	}{
		{name: "subset", want: map[string]any{"a": 1.0}, actual: map[string]any{"a": 1.0, "b": "x"}, match: true},
		{name: "missing key", want: map[string]any{"c": 1.0}, actual: map[string]any{"a": 1.0}},
		{
			name:   "nested subset",
			want:   map[string]any{"a": map[string]any{"b": true}},
			actual: map[string]any{"a": map[string]any{"b": true, "c": false}},
			match:  true,
		},
		{name: "list exact length", want: []any{"a"}, actual: []any{"a", "b"}},
		{
			name:   "list items are subsets",
			want:   []any{map[string]any{"Key": "Name"}},
			actual: []any{map[string]any{"Key": "Name", "Value": "vpc"}},
			match:  true,
		},
		{name: "scalar type", want: "1", actual: 1.0},
		{name: "not a map", want: map[string]any{}, actual: "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.match, Match(tt.want, tt.actual))
		})
	}
}
