package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/vmware-labs/yaml-jsonpath/pkg/yamlpath"
	"gopkg.in/yaml.v3"
)

// Document is a synthesized template, either the JSON or the YAML rendition. JSON is read as YAML so both load the
// same way.
type Document struct {
	Path string
	root yaml.Node
}

func Load(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read template: %w", err)
	}
	doc, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("could not parse template %s: %w", path, err)
	}
	doc.Path = path
	return doc, nil
}

func Parse(content []byte) (*Document, error) {
	doc := &Document{}
	if err := yaml.Unmarshal(content, &doc.root); err != nil {
		return nil, err
	}
	if doc.root.Kind != yaml.DocumentNode || len(doc.root.Content) == 0 || doc.root.Content[0].Kind != yaml.MappingNode {
		return nil, errors.New("template is not a mapping")
	}
	return doc, nil
}

// Value decodes the whole document.
func (d *Document) Value() (map[string]any, error) {
	var v map[string]any
	if err := d.root.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Query returns the nodes matching a JSONPath-like expression, for example `$.Resources.*.Type` or
// `$.Resources[?(@.Type=="AWS::Glue::Job")].Properties.Name`.
func (d *Document) Query(expr string) ([]*yaml.Node, error) {
	p, err := yamlpath.NewPath(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", expr, err)
	}
	found, err := p.Find(&d.root)
	if err != nil {
		return nil, fmt.Errorf("could not evaluate %q: %w", expr, err)
	}
	return found, nil
}

// MarshalNodes renders query results as a stream of YAML documents.
func MarshalNodes(nodes []*yaml.Node) ([]byte, error) {
	buf := new(bytes.Buffer)
	for i, n := range nodes {
		if i > 0 {
			buf.WriteString("---\n")
		}
		b, err := yaml.Marshal(n)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	return buf.Bytes(), nil
}
