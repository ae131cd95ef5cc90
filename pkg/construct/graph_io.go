package construct

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type ioEdge struct {
	Source ResourceId
	Target ResourceId
}

func (e ioEdge) String() string {
	return fmt.Sprintf("%s -> %s", e.Source, e.Target)
}

func (e ioEdge) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

func (e *ioEdge) UnmarshalText(data []byte) error {
	s := string(data)

	source, target, found := strings.Cut(s, " -> ")
	if !found {
		target, source, found = strings.Cut(s, " <- ")
		if !found {
			return errors.New("invalid edge format, expected either `source -> target` or `target <- source`")
		}
	}

	srcErr := e.Source.UnmarshalText([]byte(source))
	tgtErr := e.Target.UnmarshalText([]byte(target))
	return errors.Join(srcErr, tgtErr)
}

func scalarNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

// GraphToYAML renders the graph `g` as YAML to `w`. Resources are written in creation order, property keys
// and edges are sorted so the output is stable.
func GraphToYAML(g Graph, w io.Writer) error {
	order, err := ReverseTopologicalSort(g)
	if err != nil {
		return err
	}
	adj, err := g.AdjacencyMap()
	if err != nil {
		return err
	}

	var errs error
	resources := &yaml.Node{Kind: yaml.MappingNode}
	attributes := &yaml.Node{Kind: yaml.MappingNode}
	for _, rid := range order {
		r, err := g.Vertex(rid)
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		props := new(yaml.Node)
		if len(r.Properties) == 0 {
			props.Kind = yaml.MappingNode
		} else if err := props.Encode(map[string]any(r.Properties)); err != nil {
			errs = errors.Join(errs, fmt.Errorf("could not encode %s: %w", rid, err))
			continue
		}
		resources.Content = append(resources.Content, scalarNode(rid.String()), props)

		if len(r.Attributes) > 0 {
			attrs := new(yaml.Node)
			if err := attrs.Encode(map[string]any(r.Attributes)); err != nil {
				errs = errors.Join(errs, fmt.Errorf("could not encode attributes of %s: %w", rid, err))
				continue
			}
			attributes.Content = append(attributes.Content, scalarNode(rid.String()), attrs)
		}
	}

	edges := &yaml.Node{Kind: yaml.SequenceNode}
	sources := make([]ResourceId, 0, len(adj))
	for source := range adj {
		sources = append(sources, source)
	}
	sort.Sort(sortedIds(sources))
	for _, source := range sources {
		for _, target := range sortedKeys(adj[source]) {
			edges.Content = append(edges.Content, scalarNode(ioEdge{Source: source, Target: target}.String()))
		}
	}
	if errs != nil {
		return errs
	}

	doc := &yaml.Node{Kind: yaml.MappingNode}
	doc.Content = append(doc.Content, scalarNode("resources"), resources)
	if len(attributes.Content) > 0 {
		doc.Content = append(doc.Content, scalarNode("attributes"), attributes)
	}
	doc.Content = append(doc.Content, scalarNode("edges"), edges)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	return errors.Join(enc.Encode(doc), enc.Close())
}

// AddFromYAML reads a graph written by [GraphToYAML]. Property references come back as their text form since
// the YAML carries no type information for them, the edges preserve the dependencies.
func AddFromYAML(g Graph, r io.Reader) error {
	var y struct {
		Resources  map[ResourceId]Properties `yaml:"resources"`
		Attributes map[ResourceId]Properties `yaml:"attributes"`
		Edges      []ioEdge                  `yaml:"edges"`
	}
	if err := yaml.NewDecoder(r).Decode(&y); err != nil {
		return err
	}

	ids := make([]ResourceId, 0, len(y.Resources))
	for rid := range y.Resources {
		ids = append(ids, rid)
	}
	sort.Sort(sortedIds(ids))

	var errs error
	for _, rid := range ids {
		props := y.Resources[rid]
		if props == nil {
			props = make(Properties)
		}
		errs = errors.Join(errs, g.AddVertex(&Resource{
			ID:         rid,
			Properties: props,
			Attributes: y.Attributes[rid],
		}))
	}
	for _, e := range y.Edges {
		errs = errors.Join(errs, g.AddEdge(e.Source, e.Target))
	}
	return errs
}
