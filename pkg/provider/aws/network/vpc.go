package network

import (
	"fmt"
	"math/bits"
	"net/netip"

	"github.com/metasolutions/itada-infra/pkg/config"
	"github.com/metasolutions/itada-infra/pkg/construct"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/resources"
	"go.uber.org/zap"
)

const (
	PublicSubnet  = "Public"
	PrivateSubnet = "Private"

	allIpv4 = "0.0.0.0/0"
)

// buildVpc creates a public and a private subnet in each availability zone. Private subnets route out through
// a NAT gateway in the public subnet of the same zone, or round robin when there are fewer gateways than zones.
func buildVpc(s *resources.Scope, cfg config.Vpc) (*Outputs, error) {
	cidrs, err := SplitCidr(cfg.Cidr, 2*cfg.MaxAzs)
	if err != nil {
		return nil, fmt.Errorf("vpc %s: %w", cfg.Name, err)
	}
	natCount := cfg.MaxAzs
	if cfg.NatGateways != nil && *cfg.NatGateways < natCount {
		natCount = *cfg.NatGateways
	}

	vpc, err := s.Add(resources.VpcType, cfg.Name, construct.Properties{
		"CidrBlock":          cfg.Cidr,
		"EnableDnsHostnames": true,
		"EnableDnsSupport":   true,
		"InstanceTenancy":    "default",
		"Tags":               resources.NameTag(cfg.Name),
	})
	if err != nil {
		return nil, err
	}
	out := &Outputs{
		Vpc:                  vpc,
		DefaultSecurityGroup: vpc.Attr("DefaultSecurityGroup"),
	}

	igw, err := s.Add(resources.InternetGatewayType, cfg.Name+"Igw", construct.Properties{
		"Tags": resources.NameTag(cfg.Name),
	})
	if err != nil {
		return nil, err
	}
	attachment, err := s.Add(resources.VpcGatewayAttachmentType, cfg.Name+"VpcGw", construct.Properties{
		"VpcId":             vpc.Ref(),
		"InternetGatewayId": igw.Ref(),
	})
	if err != nil {
		return nil, err
	}

	var natGateways []*construct.Resource
	for i := 0; i < cfg.MaxAzs; i++ {
		sn, rt, err := addSubnet(s, cfg.Name, vpc, PublicSubnet, i, cidrs[i])
		if err != nil {
			return nil, err
		}
		if _, err := s.Add(resources.RouteType, sn.Resource.ID.Name+"DefaultRoute", construct.Properties{
			"RouteTableId":         rt.Ref(),
			"DestinationCidrBlock": allIpv4,
			"GatewayId":            igw.Ref(),
		}, resources.DependsOn(attachment.ID)); err != nil {
			return nil, err
		}
		out.PublicSubnets = append(out.PublicSubnets, sn)

		if i >= natCount {
			continue
		}
		eip, err := s.Add(resources.ElasticIpType, sn.Resource.ID.Name+"Eip", construct.Properties{
			"Domain": "vpc",
			"Tags":   resources.NameTag(sn.Resource.ID.Name),
		})
		if err != nil {
			return nil, err
		}
		nat, err := s.Add(resources.NatGatewayType, sn.Resource.ID.Name+"NatGateway", construct.Properties{
			"AllocationId": eip.Attr("AllocationId"),
			"SubnetId":     sn.Resource.Ref(),
			"Tags":         resources.NameTag(sn.Resource.ID.Name),
		}, resources.DependsOn(attachment.ID))
		if err != nil {
			return nil, err
		}
		natGateways = append(natGateways, nat)
	}

	for i := 0; i < cfg.MaxAzs; i++ {
		sn, rt, err := addSubnet(s, cfg.Name, vpc, PrivateSubnet, i, cidrs[cfg.MaxAzs+i])
		if err != nil {
			return nil, err
		}
		if len(natGateways) > 0 {
			if _, err := s.Add(resources.RouteType, sn.Resource.ID.Name+"DefaultRoute", construct.Properties{
				"RouteTableId":         rt.Ref(),
				"DestinationCidrBlock": allIpv4,
				"NatGatewayId":         natGateways[i%len(natGateways)].Ref(),
			}); err != nil {
				return nil, err
			}
		}
		out.PrivateSubnets = append(out.PrivateSubnets, sn)
	}

	s.Log.Debug("Created vpc",
		zap.String("cidr", cfg.Cidr),
		zap.Int("azs", cfg.MaxAzs),
		zap.Int("nat_gateways", len(natGateways)),
	)
	return out, nil
}

func addSubnet(
	s *resources.Scope,
	vpcName string,
	vpc *construct.Resource,
	subnetType string,
	index int,
	cidr netip.Prefix,
) (Subnet, *construct.Resource, error) {
	name := fmt.Sprintf("%s%sSubnet%d", vpcName, subnetType, index+1)
	az := resources.Select(index, resources.GetAZs(""))
	subnet, err := s.Add(resources.SubnetType, name, construct.Properties{
		"VpcId":               vpc.Ref(),
		"AvailabilityZone":    az,
		"CidrBlock":           cidr.String(),
		"MapPublicIpOnLaunch": subnetType == PublicSubnet,
		"Tags": resources.Tags(map[string]string{
			"Name":        name,
			"subnet-type": subnetType,
		}),
	})
	if err != nil {
		return Subnet{}, nil, err
	}
	rt, err := s.Add(resources.RouteTableType, name+"RouteTable", construct.Properties{
		"VpcId": vpc.Ref(),
		"Tags":  resources.NameTag(name),
	})
	if err != nil {
		return Subnet{}, nil, err
	}
	if _, err := s.Add(resources.SubnetRouteTableAssociation, name+"RouteTableAssociation", construct.Properties{
		"RouteTableId": rt.Ref(),
		"SubnetId":     subnet.Ref(),
	}); err != nil {
		return Subnet{}, nil, err
	}
	return Subnet{Resource: subnet, AvailabilityZone: subnet.Attr("AvailabilityZone")}, rt, nil
}

// SplitCidr divides an IPv4 CIDR into `count` equal blocks, using the smallest power of two that fits them all.
func SplitCidr(cidr string, count int) ([]netip.Prefix, error) {
	if count <= 0 {
		return nil, fmt.Errorf("cannot split %s into %d subnets", cidr, count)
	}
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, err
	}
	if !prefix.Addr().Is4() {
		return nil, fmt.Errorf("%s is not an IPv4 CIDR", cidr)
	}
	prefix = prefix.Masked()

	extraBits := bits.Len(uint(count - 1))
	newBits := prefix.Bits() + extraBits
	if newBits > 28 {
		return nil, fmt.Errorf("%s is too small for %d subnets", cidr, count)
	}

	base := prefix.Addr().As4()
	start := uint32(base[0])<<24 | uint32(base[1])<<16 | uint32(base[2])<<8 | uint32(base[3])
	size := uint32(1) << (32 - newBits)

	subnets := make([]netip.Prefix, count)
	for i := range subnets {
		a := start + uint32(i)*size
		addr := netip.AddrFrom4([4]byte{byte(a >> 24), byte(a >> 16), byte(a >> 8), byte(a)})
		subnets[i] = netip.PrefixFrom(addr, newBits)
	}
	return subnets, nil
}
