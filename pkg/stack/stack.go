package stack

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/metasolutions/itada-infra/pkg/config"
	"github.com/metasolutions/itada-infra/pkg/construct"
	"github.com/metasolutions/itada-infra/pkg/logging"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/alb"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/aurora"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/glue"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/iam"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/lambda"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/network"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/redshift"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/resources"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/stepfunctions"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/storage"
	"go.uber.org/zap"
)

var ErrUnknownStack = errors.New("unknown stack")

type (
	Stack struct {
		Name   string
		Config config.Application
		// Lookup reads environment variables, [os.LookupEnv] when nil.
		Lookup config.LookupFunc

		Graph   construct.Graph
		Outputs Outputs
	}

	// Outputs of each layer, nil for the layers that were not built.
	Outputs struct {
		Iam           *iam.Outputs
		Network       *network.Outputs
		Alb           *alb.Outputs
		Storage       *storage.Outputs
		Redshift      *redshift.Outputs
		Aurora        *aurora.Outputs
		Lambda        *lambda.Outputs
		Glue          *glue.Outputs
		StepFunctions *stepfunctions.Outputs
	}

	layer struct {
		scope string
		// enabled reports whether the config has a section for the layer.
		enabled func(cfg config.Application) bool
		build   func(st *Stack, s *resources.Scope) error
	}
)

const (
	Itada             = "itada"
	ResourceMigration = "resource-migration"

	outputsScope = "Outputs"
)

var (
	iamLayer = layer{
		scope:   iam.ScopeName,
		enabled: always,
		build: func(st *Stack, s *resources.Scope) (err error) {
			st.Outputs.Iam, err = iam.Build(s, st.Config.IAM)
			return
		},
	}
	networkLayer = layer{
		scope:   network.ScopeName,
		enabled: always,
		build: func(st *Stack, s *resources.Scope) (err error) {
			st.Outputs.Network, err = network.Build(s, st.Config.Network, st.Outputs.Iam)
			return
		},
	}
	albLayer = layer{
		scope:   alb.ScopeName,
		enabled: func(cfg config.Application) bool { return cfg.ALB != nil },
		build: func(st *Stack, s *resources.Scope) (err error) {
			st.Outputs.Alb, err = alb.Build(s, *st.Config.ALB, st.Outputs.Network)
			return
		},
	}
	storageLayer = layer{
		scope:   storage.ScopeName,
		enabled: always,
		build: func(st *Stack, s *resources.Scope) (err error) {
			st.Outputs.Storage, err = storage.Build(s, st.Config.Storage)
			return
		},
	}
	redshiftLayer = layer{
		scope:   redshift.ScopeName,
		enabled: func(cfg config.Application) bool { return cfg.Redshift != nil },
		build: func(st *Stack, s *resources.Scope) (err error) {
			st.Outputs.Redshift, err = redshift.Build(s, *st.Config.Redshift, st.Outputs.Network)
			return
		},
	}
	auroraLayer = layer{
		scope:   aurora.ScopeName,
		enabled: func(cfg config.Application) bool { return cfg.Aurora != nil },
		build: func(st *Stack, s *resources.Scope) (err error) {
			st.Outputs.Aurora, err = aurora.Build(s, *st.Config.Aurora, st.Outputs.Network)
			return
		},
	}
	lambdaLayer = layer{
		scope:   lambda.ScopeName,
		enabled: func(cfg config.Application) bool { return cfg.Lambda != nil },
		build: func(st *Stack, s *resources.Scope) (err error) {
			st.Outputs.Lambda, err = lambda.Build(s, *st.Config.Lambda,
				st.Outputs.Network, st.Outputs.Iam, st.Outputs.Storage)
			return
		},
	}
	glueLayer = layer{
		scope:   glue.ScopeName,
		enabled: func(cfg config.Application) bool { return cfg.Glue != nil },
		build: func(st *Stack, s *resources.Scope) (err error) {
			st.Outputs.Glue, err = glue.Build(s, *st.Config.Glue,
				st.Outputs.Network, st.Outputs.Iam, st.Outputs.Redshift)
			return
		},
	}
	stepFunctionsLayer = layer{
		scope:   stepfunctions.ScopeName,
		enabled: func(cfg config.Application) bool { return cfg.StepFunctions != nil },
		build: func(st *Stack, s *resources.Scope) (err error) {
			st.Outputs.StepFunctions, err = stepfunctions.Build(s, *st.Config.StepFunctions,
				st.Outputs.Iam, TemplateData(st.Config))
			return
		},
	}

	stacks = map[string][]layer{
		Itada: {
			iamLayer, networkLayer, albLayer, storageLayer, redshiftLayer,
			auroraLayer, lambdaLayer, glueLayer, stepFunctionsLayer,
		},
		ResourceMigration: {
			iamLayer, networkLayer, storageLayer, redshiftLayer, auroraLayer, glueLayer,
		},
	}
)

func always(config.Application) bool { return true }

// Names lists the known stacks.
func Names() []string {
	names := make([]string, 0, len(stacks))
	for name := range stacks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Layers lists the scopes of the stack's layers in build order.
func Layers(name string) ([]string, error) {
	layers, ok := stacks[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (known: %s)", ErrUnknownStack, name, strings.Join(Names(), ", "))
	}
	scopes := make([]string, len(layers))
	for i, l := range layers {
		scopes[i] = l.scope
	}
	return scopes, nil
}

func New(name string, cfg config.Application) (*Stack, error) {
	if _, err := Layers(name); err != nil {
		return nil, err
	}
	return &Stack{Name: name, Config: cfg, Graph: construct.NewGraph()}, nil
}

// Build composes the layers of the named stack into a new graph.
func Build(ctx context.Context, name string, cfg config.Application) (construct.Graph, error) {
	st, err := New(name, cfg)
	if err != nil {
		return nil, err
	}
	if err := st.Build(ctx); err != nil {
		return nil, err
	}
	return st.Graph, nil
}

// Build adds every layer whose config section is present, in order, then the stack outputs. Later layers use
// the outputs of earlier ones.
func (st *Stack) Build(ctx context.Context) error {
	log := logging.GetLogger(ctx).Named("stack")
	ctx = logging.WithLogger(ctx, log)
	opts := resources.Options{
		Graph:         st.Graph,
		RemovalPolicy: st.Config.RemovalPolicy,
		Secrets:       st.Config.Secrets,
		Lookup:        st.Lookup,
	}
	log.Info("Building stack", logging.StackField(st.Name))

	for _, l := range stacks[st.Name] {
		if !l.enabled(st.Config) {
			log.Debug("Skipping layer without config", zap.String("layer", l.scope))
			continue
		}
		if err := l.build(st, resources.NewScope(ctx, l.scope, opts)); err != nil {
			return fmt.Errorf("could not build %s layer: %w", l.scope, err)
		}
	}
	st.warnIgnored(log)

	if err := st.addOutputs(resources.NewScope(ctx, outputsScope, opts)); err != nil {
		return fmt.Errorf("could not add stack outputs: %w", err)
	}
	n, _ := st.Graph.Order()
	log.Info("Built stack", logging.StackField(st.Name), zap.Int("resources", n))
	return nil
}

// warnIgnored logs config sections for layers which are not part of the stack.
func (st *Stack) warnIgnored(log *zap.Logger) {
	built := make(map[string]bool)
	for _, l := range stacks[st.Name] {
		built[l.scope] = true
	}
	for _, l := range stacks[Itada] {
		if !built[l.scope] && l.enabled(st.Config) {
			log.Warn("Config section is not used by the stack", zap.String("layer", l.scope))
		}
	}
}

func (st *Stack) addOutputs(s *resources.Scope) error {
	out := st.Outputs
	var errs error
	add := func(name string, value any, description string) {
		errs = errors.Join(errs, s.AddOutput(name, value, description))
	}
	add("VpcId", out.Network.Vpc.Ref(), "Id of the VPC")
	if out.Alb != nil {
		dns := out.Alb.DnsNames()
		for _, site := range resources.SortedKeys(dns) {
			add(site+"LoadBalancerDns", dns[site], fmt.Sprintf("DNS name of the %s load balancer", site))
		}
	}
	if out.Redshift != nil {
		add("RedshiftEndpoint", out.Redshift.EndpointAddress, "Address of the Redshift cluster")
		add("RedshiftPort", out.Redshift.EndpointPort, "Port of the Redshift cluster")
	}
	if out.Aurora != nil {
		add("AuroraEndpoint", out.Aurora.EndpointAddress, "Address of the Aurora cluster")
	}
	return errs
}

// TemplateData collects the names state machine definitions may refer to.
func TemplateData(cfg config.Application) stepfunctions.TemplateData {
	data := stepfunctions.TemplateData{
		Functions: map[string]string{},
		Jobs:      map[string]string{},
		Buckets:   map[string]string{},
	}
	if cfg.Lambda != nil {
		for key, fn := range cfg.Lambda.Functions {
			data.Functions[key] = fn.FunctionName
		}
	}
	if cfg.Glue != nil {
		for _, set := range cfg.Glue.JobSets {
			for key, job := range set.Jobs {
				data.Jobs[key] = job.Name
			}
		}
	}
	for key, name := range cfg.Storage.Imported {
		data.Buckets[key] = name
	}
	for key, b := range cfg.Storage.Buckets {
		data.Buckets[key] = b.BucketName
	}
	return data
}
