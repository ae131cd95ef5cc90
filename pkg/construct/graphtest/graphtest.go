package graphtest

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dominikbraun/graph"
	"github.com/metasolutions/itada-infra/pkg/construct"
	"github.com/stretchr/testify/assert"
)

func AssertGraphEqual(t *testing.T, expect, actual construct.Graph, message string, args ...any) {
	assert := assert.New(t)
	must := func(v any, err error) any {
		if err != nil {
			t.Fatal(err)
		}
		return v
	}

	msg := func(subMessage string) []any {
		if message == "" {
			return []any{subMessage}
		}
		return append([]any{message + ": " + subMessage}, args...)
	}

	assert.Equal(must(expect.Order()), must(actual.Order()), msg("order (# of nodes) mismatch")...)
	assert.Equal(must(expect.Size()), must(actual.Size()), msg("size (# of edges) mismatch")...)

	// Compare the string forms so that the diffs are readable
	eStr := must(construct.String(expect))
	aStr := must(construct.String(actual))
	assert.Equal(eStr, aStr, msg("graph mismatch")...)
}

// AssertGraphContains checks that every vertex and edge of expect is also in actual.
func AssertGraphContains(t *testing.T, expect, actual construct.Graph) {
	assert := assert.New(t)

	expectIds, err := construct.SortedIds(expect)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range expectIds {
		_, err := actual.Vertex(id)
		assert.NoError(err, "missing resource %s", id)
	}

	expectEdges, err := expect.Edges()
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range expectEdges {
		_, err := actual.Edge(e.Source, e.Target)
		assert.NoError(err, "missing edge %s -> %s", e.Source, e.Target)
	}
}

func ParseId(t *testing.T, str string) (id construct.ResourceId) {
	if err := id.UnmarshalText([]byte(str)); err != nil {
		t.Fatalf("failed to parse resource id %q: %v", str, err)
	}
	return
}

func ParseRef(t *testing.T, str string) (ref construct.PropertyRef) {
	if err := ref.UnmarshalText([]byte(str)); err != nil {
		t.Fatalf("failed to parse property ref %q: %v", str, err)
	}
	return
}

func ParseEdge(t *testing.T, str string) construct.Edge {
	source, target, found := strings.Cut(str, " -> ")
	if !found {
		t.Fatalf("failed to parse edge %q: expected `source -> target`", str)
	}
	return construct.Edge{
		Source: ParseId(t, source),
		Target: ParseId(t, target),
	}
}

// AddElement adds an element to the graph, see [MakeGraph] for the supported element types. Returns whether
// adding the element failed.
func AddElement(t *testing.T, g construct.Graph, e any) (failed bool) {
	if estr, ok := e.(string); ok {
		if strings.Contains(estr, " -> ") {
			e = ParseEdge(t, estr)
		} else {
			e = ParseId(t, estr)
		}
	}

	try := func(err error) bool {
		if err != nil {
			t.Error(err)
			return true
		}
		return false
	}
	addIfMissing := func(res *construct.Resource) bool {
		_, err := g.Vertex(res.ID)
		switch {
		case errors.Is(err, graph.ErrVertexNotFound):
			return try(g.AddVertex(res))
		case err != nil:
			return try(fmt.Errorf("could not check vertex %s: %w", res.ID, err))
		}
		return false
	}

	switch e := e.(type) {
	case construct.ResourceId:
		return addIfMissing(construct.CreateResource(e))

	case construct.Resource:
		return try(g.AddVertex(&e))

	case *construct.Resource:
		return try(g.AddVertex(e))

	case construct.Edge:
		if addIfMissing(construct.CreateResource(e.Source)) || addIfMissing(construct.CreateResource(e.Target)) {
			return true
		}
		return try(g.AddEdge(e.Source, e.Target))

	default:
		t.Errorf("invalid element of type %T", e)
		return true
	}
}

// MakeGraph is a utility function for creating a graph from a list of elements which can be of types:
// - ResourceId : adds an empty resource with the given ID
// - Resource, *Resource : adds the given resource as-is (no reference edges are added)
// - Edge : adds the given edge, adding empty resources for missing ends
// - string : parses the string as either a ResourceId or an edge (`a -> b`) and adds it as above
func MakeGraph(t *testing.T, g construct.Graph, elements ...any) construct.Graph {
	failed := false
	for i, e := range elements {
		if AddElement(t, g, e) {
			t.Errorf("failed to add element[%d] (%v) to graph", i, e)
			failed = true
		}
	}
	if failed {
		// the rest of the test would only produce noise
		t.FailNow()
	}
	return g
}
