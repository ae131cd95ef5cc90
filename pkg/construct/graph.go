package construct

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dominikbraun/graph"
)

type (
	// Graph holds resources as vertices. An edge `A -> B` means A depends on B: B must exist before A
	// can be created.
	Graph = graph.Graph[ResourceId, *Resource]
	Edge  = graph.Edge[ResourceId]
)

// ErrMissingDependency is returned when a resource refers to, or depends on, a resource not in the graph.
var ErrMissingDependency = errors.New("missing dependency")

func ResourceHasher(r *Resource) ResourceId {
	return r.ID
}

func NewGraph() Graph {
	return graph.New(
		ResourceHasher,
		graph.Directed(),
		graph.Acyclic(),
		graph.PreventCycles(),
	)
}

// AddResource adds r to the graph along with an edge to every resource it references through its properties.
// All referenced resources must already be in the graph, which forces resources to be declared in dependency order.
func AddResource(g Graph, r *Resource) error {
	if err := r.ID.Validate(); err != nil {
		return err
	}

	refs := r.References()
	var errs error
	deps := make([]ResourceId, 0, len(refs))
	seen := make(map[ResourceId]struct{}, len(refs))
	for _, ref := range refs {
		if ref.Resource == r.ID {
			errs = errors.Join(errs, fmt.Errorf("%s cannot reference itself (%s)", r.ID, ref))
			continue
		}
		if _, ok := seen[ref.Resource]; ok {
			continue
		}
		seen[ref.Resource] = struct{}{}
		if _, err := g.Vertex(ref.Resource); err != nil {
			if errors.Is(err, graph.ErrVertexNotFound) {
				err = ErrMissingDependency
			}
			errs = errors.Join(errs, fmt.Errorf("%s references %s: %w", r.ID, ref, err))
			continue
		}
		deps = append(deps, ref.Resource)
	}
	if errs != nil {
		return errs
	}

	if err := g.AddVertex(r); err != nil {
		if errors.Is(err, graph.ErrVertexAlreadyExists) {
			return fmt.Errorf("resource %s already exists: %w", r.ID, err)
		}
		return fmt.Errorf("could not add resource %s: %w", r.ID, err)
	}
	for _, dep := range deps {
		if err := g.AddEdge(r.ID, dep); err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
			errs = errors.Join(errs, fmt.Errorf("could not add dependency %s -> %s: %w", r.ID, dep, err))
		}
	}
	return errs
}

// AddDependency records that `from` depends on `to` without either referring to the other's properties.
func AddDependency(g Graph, from, to ResourceId) error {
	var errs error
	for _, id := range []ResourceId{from, to} {
		if _, err := g.Vertex(id); err != nil {
			if errors.Is(err, graph.ErrVertexNotFound) {
				err = ErrMissingDependency
			}
			errs = errors.Join(errs, fmt.Errorf("dependency %s -> %s on %s: %w", from, to, id, err))
		}
	}
	if errs != nil {
		return errs
	}
	err := g.AddEdge(from, to)
	if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
		return fmt.Errorf("could not add dependency %s -> %s: %w", from, to, err)
	}
	return nil
}

func Hash(g Graph) ([]byte, error) {
	sum := sha256.New()
	err := stringTo(g, sum)
	return sum.Sum(nil), err
}

func String(g Graph) (string, error) {
	w := new(strings.Builder)
	err := stringTo(g, w)
	return w.String(), err
}

func stringTo(g Graph, w io.Writer) error {
	topo, err := TopologicalSort(g)
	if err != nil {
		return err
	}
	adjacent, err := g.AdjacencyMap()
	if err != nil {
		return err
	}

	for _, id := range topo {
		if _, err := fmt.Fprintf(w, "%s\n", id); err != nil {
			return err
		}

		targets := make([]ResourceId, 0, len(adjacent[id]))
		for t := range adjacent[id] {
			targets = append(targets, t)
		}
		sort.Sort(sortedIds(targets))

		for _, t := range targets {
			if _, err := fmt.Fprintf(w, "-> %s\n", t); err != nil {
				return err
			}
		}
	}
	return nil
}
