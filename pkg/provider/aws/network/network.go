package network

import (
	"fmt"

	"github.com/metasolutions/itada-infra/pkg/config"
	"github.com/metasolutions/itada-infra/pkg/construct"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/resources"
)

const ScopeName = "Ec2"

type (
	Subnet struct {
		Resource         *construct.Resource
		AvailabilityZone any
	}

	Outputs struct {
		Vpc *construct.Resource
		// DefaultSecurityGroup is the id of the security group every VPC is created with.
		DefaultSecurityGroup construct.PropertyRef
		PublicSubnets        []Subnet
		PrivateSubnets       []Subnet
		SecurityGroups       map[string]*construct.Resource
		Instances            map[string]*construct.Resource
	}

	// RoleLookup finds the role an instance profile is created for.
	RoleLookup interface {
		Role(key string) (*construct.Resource, error)
	}
)

func Build(s *resources.Scope, cfg config.Network, roles RoleLookup) (*Outputs, error) {
	out, err := buildVpc(s, cfg.Vpc)
	if err != nil {
		return nil, err
	}
	if err := buildSecurityGroups(s, cfg.SecurityGroups, out); err != nil {
		return nil, err
	}
	if err := buildInstances(s, cfg.Instances, roles, out); err != nil {
		return nil, err
	}
	s.Done()
	return out, nil
}

// SecurityGroupIds resolves security group keys to their ids. [config.DefaultSecurityGroup] is the VPC's default
// security group.
func (o *Outputs) SecurityGroupIds(keys []string) ([]any, error) {
	ids := make([]any, 0, len(keys))
	for _, key := range keys {
		if key == config.DefaultSecurityGroup {
			ids = append(ids, o.DefaultSecurityGroup)
			continue
		}
		sg, ok := o.SecurityGroups[key]
		if !ok {
			return nil, fmt.Errorf("unknown security group %s", key)
		}
		ids = append(ids, sg.Attr("GroupId"))
	}
	return ids, nil
}

// SubnetIds returns the references of the subnets, in order.
func SubnetIds(subnets []Subnet) []any {
	ids := make([]any, len(subnets))
	for i, sn := range subnets {
		ids[i] = sn.Resource.Ref()
	}
	return ids
}
