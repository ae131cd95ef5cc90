package redshift

import (
	"fmt"

	"github.com/metasolutions/itada-infra/pkg/config"
	"github.com/metasolutions/itada-infra/pkg/construct"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/network"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/resources"
)

const (
	ScopeName = "Redshift"

	MultiNode  = "multi-node"
	SingleNode = "single-node"
)

// Outputs are what a JDBC connection to the warehouse needs.
type Outputs struct {
	Cluster         *construct.Resource
	EndpointAddress construct.PropertyRef
	EndpointPort    construct.PropertyRef
	DbName          string
}

// Build adds the data warehouse cluster in the public subnets of the network.
func Build(s *resources.Scope, cfg config.Redshift, net *network.Outputs) (*Outputs, error) {
	sgs, err := net.SecurityGroupIds(cfg.SecurityGroups)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Name, err)
	}
	username, err := s.Input("MasterUsername", cfg.MasterUsername)
	if err != nil {
		return nil, err
	}
	password, err := s.Input("MasterUserPassword", cfg.MasterUserPassword)
	if err != nil {
		return nil, err
	}

	subnetGroup, err := s.Add(resources.RedshiftClusterSubnetGroupType, "ClusterSubnetGroup", construct.Properties{
		"Description": "Group of public subnets for Redshift to deploy",
		"SubnetIds":   network.SubnetIds(net.PublicSubnets),
		"Tags":        resources.NameTag(cfg.SubnetGroupName),
	})
	if err != nil {
		return nil, err
	}

	props := construct.Properties{
		"ClusterIdentifier":      cfg.ClusterIdentifier,
		"ClusterType":            cfg.ClusterType,
		"NodeType":               cfg.NodeType,
		"DBName":                 cfg.DbName,
		"Port":                   cfg.Port,
		"MasterUsername":         username,
		"MasterUserPassword":     password,
		"ClusterSubnetGroupName": subnetGroup.Ref(),
		"VpcSecurityGroupIds":    sgs,
	}
	// single-node clusters reject a node count
	if cfg.ClusterType == MultiNode {
		props["NumberOfNodes"] = cfg.NumberOfNodes
	}
	cluster, err := s.Add(resources.RedshiftClusterType, "Cluster", props)
	if err != nil {
		return nil, err
	}

	s.Done()
	return &Outputs{
		Cluster:         cluster,
		EndpointAddress: cluster.Attr("Endpoint.Address"),
		EndpointPort:    cluster.Attr("Endpoint.Port"),
		DbName:          cfg.DbName,
	}, nil
}

// JdbcUrl is the connection URL of the cluster's database, eg `jdbc:redshift://host:5439/dev`.
func (o *Outputs) JdbcUrl() any {
	return resources.Join("", "jdbc:redshift://", o.EndpointAddress, ":", o.EndpointPort, "/", o.DbName)
}
