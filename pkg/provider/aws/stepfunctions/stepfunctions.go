package stepfunctions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/metasolutions/itada-infra/pkg/config"
	"github.com/metasolutions/itada-infra/pkg/construct"
	kio "github.com/metasolutions/itada-infra/pkg/io"
	"github.com/metasolutions/itada-infra/pkg/logging"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/resources"
	"github.com/metasolutions/itada-infra/pkg/templateutils"
	"go.uber.org/zap"
)

const ScopeName = "StepFunctions"

type (
	Outputs struct {
		StateMachines map[string]*construct.Resource
	}

	// TemplateData is available to the definition substitutions, eg `{{ .Functions.AuroraSyncFunc }}` is the name
	// of that function. All maps are keyed by construct id.
	TemplateData struct {
		Functions map[string]string
		Jobs      map[string]string
		Buckets   map[string]string
	}

	// RoleLookup finds the role the state machines run as.
	RoleLookup interface {
		Role(key string) (*construct.Resource, error)
	}
)

// Arns returns the ARN of each state machine, keyed by construct id.
func (o *Outputs) Arns() map[string]construct.PropertyRef {
	arns := make(map[string]construct.PropertyRef, len(o.StateMachines))
	for key, sm := range o.StateMachines {
		arns[key] = sm.Ref()
	}
	return arns
}

// Build registers the state machines. Definitions are passed through as written, they are only checked to be
// JSON. Substitutions are rendered with data and may use `${AWS::Region}` style pseudo parameters.
func Build(s *resources.Scope, cfg config.StepFunctions, roles RoleLookup, data TemplateData) (*Outputs, error) {
	out := &Outputs{StateMachines: make(map[string]*construct.Resource, len(cfg.StateMachines))}
	if len(cfg.StateMachines) == 0 {
		s.Done()
		return out, nil
	}
	role, err := roles.Role(cfg.Role)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Name, err)
	}

	for _, key := range resources.SortedKeys(cfg.StateMachines) {
		sm := cfg.StateMachines[key]
		definition, err := ReadDefinition(sm.DefinitionFile)
		if err != nil {
			return nil, fmt.Errorf("state machine %s: %w", key, err)
		}
		s.Log.Debug("Read definition", logging.FileField(sm.DefinitionFile), logging.SizeField("size", int64(len(definition))))

		props := construct.Properties{
			"StateMachineName": sm.Name,
			"RoleArn":          role.Attr("Arn"),
			"DefinitionString": definition,
		}
		if sm.Type != "" {
			props["StateMachineType"] = sm.Type
		}
		if len(sm.Substitutions) > 0 {
			subs, err := renderSubstitutions(key, sm.Substitutions, data)
			if err != nil {
				return nil, fmt.Errorf("state machine %s: %w", key, err)
			}
			props["DefinitionSubstitutions"] = subs
		}

		r, err := s.Add(resources.StateMachineType, key, props)
		if err != nil {
			return nil, err
		}
		out.StateMachines[key] = r
		s.Log.Debug("Added state machine", zap.String("name", sm.Name), zap.Int("substitutions", len(sm.Substitutions)))
	}
	s.Done()
	return out, nil
}

// ReadDefinition reads a state machine definition and checks that it is a JSON document.
func ReadDefinition(path string) (string, error) {
	buf := new(bytes.Buffer)
	if _, err := (&kio.FileRef{FPath: path}).WriteTo(buf); err != nil {
		return "", fmt.Errorf("could not read definition: %w", err)
	}
	content := buf.Bytes()
	if !json.Valid(content) {
		return "", fmt.Errorf("definition %s (%s) is not valid JSON", path, humanize.Bytes(uint64(len(content))))
	}
	return string(content), nil
}

func renderSubstitutions(key string, subs map[string]string, data TemplateData) (map[string]any, error) {
	rendered := make(map[string]any, len(subs))
	for _, name := range resources.SortedKeys(subs) {
		v, err := templateutils.Render(key+"."+name, subs[name], data)
		if err != nil {
			return nil, err
		}
		if strings.Contains(v, "${") {
			rendered[name] = resources.Sub(v)
		} else {
			rendered[name] = v
		}
	}
	return rendered, nil
}
