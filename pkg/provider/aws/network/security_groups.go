package network

import (
	"fmt"

	"github.com/iancoleman/strcase"
	"github.com/metasolutions/itada-infra/pkg/config"
	"github.com/metasolutions/itada-infra/pkg/construct"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/resources"
)

// buildSecurityGroups adds every group before any ingress rule, so rules may refer to groups in any order.
// CIDR rules are inlined in the group, rules from other groups become separate ingress resources.
func buildSecurityGroups(s *resources.Scope, sgs map[string]config.SecurityGroup, out *Outputs) error {
	out.SecurityGroups = make(map[string]*construct.Resource, len(sgs))

	for _, key := range resources.SortedKeys(sgs) {
		sg := sgs[key]
		var inline []any
		for _, rule := range sg.Ingress {
			kind, cidr, err := rule.ParsePeer()
			if err != nil {
				return fmt.Errorf("security group %s: %w", key, err)
			}
			switch kind {
			case config.PeerAnyIpv4, config.PeerCidr:
				inline = append(inline, ingressRule(rule.Port, "CidrIp", cidr, cidr))
			case config.PeerAnyIpv6:
				inline = append(inline, ingressRule(rule.Port, "CidrIpv6", cidr, cidr))
			}
		}

		props := construct.Properties{
			"GroupDescription": sg.Description,
			"GroupName":        sg.GroupName,
			"VpcId":            out.Vpc.Ref(),
			"SecurityGroupEgress": []any{map[string]any{
				"CidrIp":      allIpv4,
				"Description": "Allow all outbound traffic by default",
				"IpProtocol":  "-1",
			}},
		}
		if len(inline) > 0 {
			props["SecurityGroupIngress"] = inline
		}
		r, err := s.Add(resources.SecurityGroupType, key, props)
		if err != nil {
			return err
		}
		out.SecurityGroups[key] = r
	}

	for _, key := range resources.SortedKeys(sgs) {
		target := out.SecurityGroups[key]
		for _, rule := range sgs[key].Ingress {
			kind, peerKey, err := rule.ParsePeer()
			if err != nil {
				return fmt.Errorf("security group %s: %w", key, err)
			}
			var source any
			var sourceName string
			switch kind {
			case config.PeerDefault:
				source, sourceName = out.DefaultSecurityGroup, "Default"
			case config.PeerSelf:
				source, sourceName = target.Attr("GroupId"), "Self"
			case config.PeerSecurityGroup:
				peer, ok := out.SecurityGroups[peerKey]
				if !ok {
					return fmt.Errorf("security group %s: unknown peer security group %s", key, peerKey)
				}
				source, sourceName = peer.Attr("GroupId"), peerKey
			default:
				continue
			}

			props := ingressRule(rule.Port, "SourceSecurityGroupId", source, sourceName)
			props["GroupId"] = target.Attr("GroupId")
			name := fmt.Sprintf("%sFrom%s%s", key, sourceName, strcase.ToCamel(rule.Port.String()))
			if _, err := s.Add(resources.SecurityGroupIngressType, name, props); err != nil {
				return err
			}
		}
	}
	return nil
}

func ingressRule(port config.Port, sourceKey string, source any, sourceName string) map[string]any {
	return map[string]any{
		sourceKey:     source,
		"IpProtocol":  "tcp",
		"FromPort":    port.From,
		"ToPort":      port.To,
		"Description": fmt.Sprintf("from %s:%s", sourceName, port),
	}
}
