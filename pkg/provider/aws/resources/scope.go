package resources

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dominikbraun/graph"
	"github.com/iancoleman/strcase"
	"github.com/metasolutions/itada-infra/pkg/config"
	"github.com/metasolutions/itada-infra/pkg/construct"
	"github.com/metasolutions/itada-infra/pkg/logging"
	"go.uber.org/zap"
)

type (
	// Options are shared by every scope of a stack.
	Options struct {
		Graph         construct.Graph
		RemovalPolicy config.RemovalPolicy
		Secrets       config.SecretsMode
		// Lookup reads environment variables, [os.LookupEnv] when nil.
		Lookup config.LookupFunc
	}

	// Scope is the namespace a layer adds its resources under. The name becomes the resource namespace and so
	// the prefix of every logical id in the template.
	Scope struct {
		Options
		Name string
		Log  *zap.Logger

		added int
	}

	addOptions struct {
		removalPolicy config.RemovalPolicy
		dependsOn     []construct.ResourceId
	}

	AddOption func(*addOptions)
)

func NewScope(ctx context.Context, name string, opts Options) *Scope {
	return &Scope{
		Options: opts,
		Name:    name,
		Log:     logging.GetLogger(ctx).Named(strings.ToLower(name)),
	}
}

// WithRemovalPolicy overrides the scope's removal policy for one resource.
func WithRemovalPolicy(p config.RemovalPolicy) AddOption {
	return func(o *addOptions) {
		o.removalPolicy = p
	}
}

// DependsOn adds explicit ordering dependencies that are not expressed through a property reference.
func DependsOn(ids ...construct.ResourceId) AddOption {
	return func(o *addOptions) {
		o.dependsOn = append(o.dependsOn, ids...)
	}
}

func (s *Scope) Id(t, name string) construct.ResourceId {
	return construct.ResourceId{Provider: AwsProvider, Type: t, Namespace: s.Name, Name: name}
}

// Add creates a resource of the registered kind and adds it to the graph. All resources it references must
// already have been added.
func (s *Scope) Add(t, name string, props construct.Properties, opts ...AddOption) (*construct.Resource, error) {
	k, ok := LookupKind(t)
	if !ok {
		return nil, fmt.Errorf("%s: unknown resource kind %q", s.Name, t)
	}
	o := addOptions{removalPolicy: s.RemovalPolicy}
	for _, opt := range opts {
		opt(&o)
	}

	r := construct.CreateResource(s.Id(t, name))
	for key, v := range props {
		r.Properties[key] = v
	}
	applyRemovalPolicy(r, k, o.removalPolicy)

	if err := s.add(r); err != nil {
		return nil, err
	}
	for _, dep := range o.dependsOn {
		if err := construct.AddDependency(s.Graph, r.ID, dep); err != nil {
			return nil, fmt.Errorf("%s: %w", s.Name, err)
		}
	}
	return r, nil
}

func (s *Scope) add(r *construct.Resource) error {
	if err := construct.AddResource(s.Graph, r); err != nil {
		return fmt.Errorf("%s: %w", s.Name, err)
	}
	s.added++
	s.Log.Debug("Added resource", logging.ResourceField(r.ID))
	return nil
}

// applyRemovalPolicy sets the deletion attributes. Kinds which cannot be snapshotted are retained instead.
func applyRemovalPolicy(r *construct.Resource, k Kind, p config.RemovalPolicy) {
	var policy string
	switch p {
	case config.RemovalDestroy:
		policy = "Delete"
	case config.RemovalRetain:
		policy = "Retain"
	case config.RemovalSnapshot:
		policy = "Retain"
		if k.Snapshottable {
			policy = "Snapshot"
		}
	default:
		return
	}
	r.SetAttribute("DeletionPolicy", policy)
	r.SetAttribute("UpdateReplacePolicy", policy)
}

// Input resolves a configured value. In [config.SecretsParameter] mode a secret value becomes a `NoEcho` template
// parameter and a reference to it is returned instead, so the value never appears in the template. Values
// resolved from the same environment variable share one parameter.
func (s *Scope) Input(name string, v config.Value) (any, error) {
	if v.Secret && s.Secrets == config.SecretsParameter {
		return s.secretParameter(name, v)
	}
	val, err := v.Resolve(s.Lookup)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", s.Name, name, err)
	}
	if val == "" && v.Optional {
		return nil, nil
	}
	return val, nil
}

func (s *Scope) secretParameter(name string, v config.Value) (construct.PropertyRef, error) {
	paramName := strcase.ToCamel(s.Name + "_" + name)
	if v.Env != "" {
		paramName = strcase.ToCamel(strings.ToLower(v.Env))
	}
	id := construct.ResourceId{Provider: CfnProvider, Type: ParameterType, Name: paramName}

	_, err := s.Graph.Vertex(id)
	switch {
	case err == nil:
		return construct.PropertyRef{Resource: id}, nil
	case !errors.Is(err, graph.ErrVertexNotFound):
		return construct.PropertyRef{}, err
	}

	r := construct.CreateResource(id)
	r.Properties["Type"] = "String"
	r.Properties["NoEcho"] = true
	r.Properties["Description"] = fmt.Sprintf("%s %s (%s)", s.Name, name, v)
	if err := s.add(r); err != nil {
		return construct.PropertyRef{}, err
	}
	return r.Ref(), nil
}

// AddMapping adds a template mapping, eg region to AMI id. Use [FindInMap] with the returned reference.
func (s *Scope) AddMapping(name string, mapping map[string]map[string]any) (construct.PropertyRef, error) {
	r := construct.CreateResource(construct.ResourceId{
		Provider:  CfnProvider,
		Type:      MappingType,
		Namespace: s.Name,
		Name:      name,
	})
	for k, v := range mapping {
		r.Properties[k] = v
	}
	if err := s.add(r); err != nil {
		return construct.PropertyRef{}, err
	}
	return r.Ref(), nil
}

// AddOutput adds a stack output. Output names are global to the template and are not namespaced.
func (s *Scope) AddOutput(name string, value any, description string) error {
	r := construct.CreateResource(construct.ResourceId{Provider: CfnProvider, Type: OutputType, Name: name})
	r.Properties["Value"] = value
	if description != "" {
		r.Properties["Description"] = description
	}
	return s.add(r)
}

// Done logs the completion of the layer.
func (s *Scope) Done() {
	s.Log.Info("Built layer", zap.Int("resources", s.added))
}

// Added is the number of resources added through the scope.
func (s *Scope) Added() int {
	return s.added
}
