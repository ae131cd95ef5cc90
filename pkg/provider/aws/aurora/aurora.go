package aurora

import (
	"fmt"
	"strings"

	"github.com/coreos/go-semver/semver"
	"github.com/metasolutions/itada-infra/pkg/config"
	"github.com/metasolutions/itada-infra/pkg/construct"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/network"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/resources"
)

const (
	ScopeName = "Aurora"

	Engine     = "aurora-postgresql"
	EngineMode = "serverless"
)

type Outputs struct {
	Cluster         *construct.Resource
	EndpointAddress construct.PropertyRef
	EndpointPort    construct.PropertyRef
}

// Build adds a serverless PostgreSQL compatible cluster in the public subnets of the network.
func Build(s *resources.Scope, cfg config.Aurora, net *network.Outputs) (*Outputs, error) {
	family, err := ParameterGroupFamily(cfg.EngineVersion)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Name, err)
	}
	sgs, err := net.SecurityGroupIds(cfg.SecurityGroups)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Name, err)
	}
	username, err := s.Input("Username", cfg.Username)
	if err != nil {
		return nil, err
	}
	password, err := s.Input("Password", cfg.Password)
	if err != nil {
		return nil, err
	}

	subnetGroup, err := s.Add(resources.RdsSubnetGroupType, "ClusterSubnetGroup", construct.Properties{
		"DBSubnetGroupName":        cfg.SubnetGroupName,
		"DBSubnetGroupDescription": "Group of public subnets for Aurora to deploy",
		"SubnetIds":                network.SubnetIds(net.PublicSubnets),
	})
	if err != nil {
		return nil, err
	}

	cluster, err := s.Add(resources.RdsClusterType, "Cluster", construct.Properties{
		"Engine":                      Engine,
		"EngineMode":                  EngineMode,
		"EngineVersion":               cfg.EngineVersion,
		"DBClusterIdentifier":         cfg.ClusterIdentifier,
		"DBClusterParameterGroupName": "default." + family,
		"DatabaseName":                cfg.DatabaseName,
		"MasterUsername":              username,
		"MasterUserPassword":          password,
		"EnableHttpEndpoint":          cfg.EnableDataApi,
		"StorageEncrypted":            true,
		"CopyTagsToSnapshot":          true,
		"DBSubnetGroupName":           subnetGroup.Ref(),
		"VpcSecurityGroupIds":         sgs,
	})
	if err != nil {
		return nil, err
	}

	s.Done()
	return &Outputs{
		Cluster:         cluster,
		EndpointAddress: cluster.Attr("Endpoint.Address"),
		EndpointPort:    cluster.Attr("Endpoint.Port"),
	}, nil
}

// ParameterGroupFamily is the family of the default parameter group for the engine version. From version 10 on
// the family only carries the major version, eg `13.6` is `aurora-postgresql13`.
func ParameterGroupFamily(engineVersion string) (string, error) {
	v, err := parseVersion(engineVersion)
	if err != nil {
		return "", fmt.Errorf("invalid engine version %q: %w", engineVersion, err)
	}
	if v.Major < 10 {
		return fmt.Sprintf("%s%d.%d", Engine, v.Major, v.Minor), nil
	}
	return fmt.Sprintf("%s%d", Engine, v.Major), nil
}

// parseVersion accepts the short `major.minor` versions the engine uses.
func parseVersion(s string) (*semver.Version, error) {
	switch strings.Count(s, ".") {
	case 0:
		s += ".0.0"
	case 1:
		s += ".0"
	}
	return semver.NewVersion(s)
}
