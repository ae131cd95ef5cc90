package construct

import (
	"sort"

	"github.com/metasolutions/itada-infra/pkg/set"
)

// AllDownstreamDependencies returns every resource the given resource transitively depends on.
// For A -> B -> C -> D the downstream dependencies of B are [C, D].
func AllDownstreamDependencies(g Graph, r ResourceId) ([]ResourceId, error) {
	adj, err := g.AdjacencyMap()
	if err != nil {
		return nil, err
	}
	return allDependencies(adj, r), nil
}

// DirectDownstreamDependencies returns the resources the given resource directly depends on.
func DirectDownstreamDependencies(g Graph, r ResourceId) ([]ResourceId, error) {
	adj, err := g.AdjacencyMap()
	if err != nil {
		return nil, err
	}
	return sortedKeys(adj[r]), nil
}

// AllUpstreamDependencies returns every resource that transitively depends on the given resource.
// For A -> B -> C -> D the upstream dependencies of C are [B, A] (in that order).
func AllUpstreamDependencies(g Graph, r ResourceId) ([]ResourceId, error) {
	pred, err := g.PredecessorMap()
	if err != nil {
		return nil, err
	}
	return allDependencies(pred, r), nil
}

func DirectUpstreamDependencies(g Graph, r ResourceId) ([]ResourceId, error) {
	pred, err := g.PredecessorMap()
	if err != nil {
		return nil, err
	}
	return sortedKeys(pred[r]), nil
}

func sortedKeys(m map[ResourceId]Edge) []ResourceId {
	ids := make([]ResourceId, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Sort(sortedIds(ids))
	return ids
}

func allDependencies(deps map[ResourceId]map[ResourceId]Edge, r ResourceId) []ResourceId {
	visited := set.SetOf(r)
	queue := sortedKeys(deps[r])
	visited.Add(queue...)

	var ids []ResourceId
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		ids = append(ids, id)

		for _, d := range sortedKeys(deps[id]) {
			if visited.Contains(d) {
				continue
			}
			visited.Add(d)
			queue = append(queue, d)
		}
	}
	return ids
}

func Neighbors(g Graph, r ResourceId) (upstream, downstream set.Set[ResourceId], err error) {
	adj, err := g.AdjacencyMap()
	if err != nil {
		return nil, nil, err
	}
	pred, err := g.PredecessorMap()
	if err != nil {
		return nil, nil, err
	}

	downstream = make(set.Set[ResourceId])
	for d := range adj[r] {
		downstream.Add(d)
	}
	upstream = make(set.Set[ResourceId])
	for u := range pred[r] {
		upstream.Add(u)
	}
	return upstream, downstream, nil
}
