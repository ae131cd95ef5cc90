package cfn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/metasolutions/itada-infra/pkg/construct"
	kio "github.com/metasolutions/itada-infra/pkg/io"
	"github.com/metasolutions/itada-infra/pkg/logging"
	"go.uber.org/zap"
	"sigs.k8s.io/yaml"
)

type Plugin struct {
	// StackName prefixes the generated files.
	StackName   string
	Description string
}

func (p Plugin) Name() string {
	return "cloudformation"
}

// Translate renders the template as JSON and YAML, along with the graph it was built from.
func (p Plugin) Translate(ctx context.Context, g construct.Graph) ([]kio.File, error) {
	log := logging.GetLogger(ctx).Named(p.Name())

	t, err := BuildTemplate(g, p.Description)
	if err != nil {
		return nil, fmt.Errorf("could not build template for %s: %w", p.StackName, err)
	}

	jsonContent, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return nil, err
	}
	jsonContent = append(jsonContent, '\n')

	yamlContent, err := yaml.JSONToYAML(jsonContent)
	if err != nil {
		return nil, fmt.Errorf("could not convert template to yaml: %w", err)
	}

	graphBuf := new(bytes.Buffer)
	if err := construct.GraphToYAML(g, graphBuf); err != nil {
		return nil, fmt.Errorf("could not write graph: %w", err)
	}

	log.Info("Translated stack",
		logging.StackField(p.StackName),
		zap.Int("resources", len(t.Resources)),
		zap.Int("parameters", len(t.Parameters)),
		zap.Int("outputs", len(t.Outputs)),
		logging.SizeField("template_size", int64(len(jsonContent))),
	)

	return []kio.File{
		&kio.RawFile{FPath: p.StackName + ".template.json", Content: jsonContent},
		&kio.RawFile{FPath: p.StackName + ".template.yaml", Content: yamlContent},
		&kio.RawFile{FPath: p.StackName + ".graph.yaml", Content: graphBuf.Bytes()},
	}, nil
}
