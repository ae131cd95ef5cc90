package alb

import (
	"fmt"
	"strings"

	"github.com/metasolutions/itada-infra/pkg/config"
	"github.com/metasolutions/itada-infra/pkg/construct"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/network"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/resources"
	"github.com/metasolutions/itada-infra/pkg/set"
)

const (
	ScopeName = "Alb"

	httpsPort = 443
	httpPort  = 80
)

type Outputs struct {
	HostedZone  *construct.Resource
	Certificate *construct.Resource
	// LoadBalancers are keyed by site.
	LoadBalancers map[string]*construct.Resource
}

// DnsNames returns the DNS name of each site's load balancer.
func (o *Outputs) DnsNames() map[string]construct.PropertyRef {
	names := make(map[string]construct.PropertyRef, len(o.LoadBalancers))
	for site, lb := range o.LoadBalancers {
		names[site] = lb.Attr("DNSName")
	}
	return names
}

// Build adds the hosted zone and its certificate, then one internet-facing load balancer per site that terminates
// TLS and forwards to the site's instance.
func Build(s *resources.Scope, cfg config.ALB, net *network.Outputs) (*Outputs, error) {
	zone, err := s.Add(resources.HostedZoneType, "HostedZone", construct.Properties{
		"Name": fqdn(cfg.ZoneName),
		"VPCs": []any{map[string]any{
			"VPCId":     net.Vpc.Ref(),
			"VPCRegion": resources.Region(),
		}},
	})
	if err != nil {
		return nil, err
	}

	cert, err := s.Add(resources.CertificateType, "Certificate", certificateProperties(cfg.Certificate, zone))
	if err != nil {
		return nil, err
	}

	out := &Outputs{
		HostedZone:    zone,
		Certificate:   cert,
		LoadBalancers: make(map[string]*construct.Resource, len(cfg.Sites)),
	}
	for _, key := range resources.SortedKeys(cfg.Sites) {
		lb, err := buildSite(s, key, cfg.Sites[key], cfg.SslPolicy, zone, cert, net)
		if err != nil {
			return nil, fmt.Errorf("site %s: %w", key, err)
		}
		out.LoadBalancers[key] = lb
	}
	s.Done()
	return out, nil
}

func certificateProperties(cfg config.Certificate, zone *construct.Resource) construct.Properties {
	domains := set.SetOf(cfg.DomainName)
	validations := []any{map[string]any{"DomainName": cfg.DomainName, "HostedZoneId": zone.Ref()}}
	for _, san := range cfg.SubjectAlternativeNames {
		if domains.Contains(san) {
			continue
		}
		domains.Add(san)
		validations = append(validations, map[string]any{"DomainName": san, "HostedZoneId": zone.Ref()})
	}

	props := construct.Properties{
		"DomainName":              cfg.DomainName,
		"ValidationMethod":        "DNS",
		"DomainValidationOptions": validations,
	}
	if len(cfg.SubjectAlternativeNames) > 0 {
		props["SubjectAlternativeNames"] = cfg.SubjectAlternativeNames
	}
	return props
}

func buildSite(
	s *resources.Scope,
	key string,
	site config.Site,
	sslPolicy string,
	zone, cert *construct.Resource,
	net *network.Outputs,
) (*construct.Resource, error) {
	instance, ok := net.Instances[site.Instance]
	if !ok {
		return nil, fmt.Errorf("unknown instance %s", site.Instance)
	}
	sgs, err := net.SecurityGroupIds([]string{site.SecurityGroup})
	if err != nil {
		return nil, err
	}

	tg, err := s.Add(resources.TargetGroupType, key+"Tg", construct.Properties{
		"Name":            site.TargetGroup.Name,
		"Port":            site.TargetGroup.Port,
		"Protocol":        "HTTP",
		"ProtocolVersion": "HTTP1",
		"TargetType":      "instance",
		"Targets":         []any{map[string]any{"Id": instance.Ref()}},
		"HealthCheckPath": site.TargetGroup.HealthCheckPath,
		"VpcId":           net.Vpc.Ref(),
	})
	if err != nil {
		return nil, err
	}

	lb, err := s.Add(resources.LoadBalancerType, key+"Alb", construct.Properties{
		"Name":           site.LoadBalancerName,
		"Scheme":         "internet-facing",
		"Type":           "application",
		"SecurityGroups": sgs,
		"Subnets":        network.SubnetIds(net.PublicSubnets),
		"LoadBalancerAttributes": []any{map[string]any{
			"Key":   "deletion_protection.enabled",
			"Value": "false",
		}},
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.Add(resources.ListenerType, key+"AlbHttps", construct.Properties{
		"LoadBalancerArn": lb.Ref(),
		"Port":            httpsPort,
		"Protocol":        "HTTPS",
		"Certificates":    []any{map[string]any{"CertificateArn": cert.Ref()}},
		"SslPolicy":       sslPolicy,
		"DefaultActions": []any{map[string]any{
			"Type":           "forward",
			"TargetGroupArn": tg.Ref(),
		}},
	}); err != nil {
		return nil, err
	}

	if _, err := s.Add(resources.ListenerType, key+"AlbHttp", construct.Properties{
		"LoadBalancerArn": lb.Ref(),
		"Port":            httpPort,
		"Protocol":        "HTTP",
		"DefaultActions": []any{map[string]any{
			"Type": "redirect",
			"RedirectConfig": map[string]any{
				"Protocol":   "HTTPS",
				"Port":       fmt.Sprint(httpsPort),
				"StatusCode": "HTTP_301",
			},
		}},
	}); err != nil {
		return nil, err
	}

	for _, recordType := range []string{"A", "AAAA"} {
		name := key + "Alias" + recordType[:1] + strings.ToLower(recordType[1:])
		if _, err := s.Add(resources.RecordSetType, name, construct.Properties{
			"Name":         fqdn(site.RecordName),
			"Type":         recordType,
			"HostedZoneId": zone.Ref(),
			"AliasTarget": map[string]any{
				"DNSName":      resources.Join("", "dualstack.", lb.Attr("DNSName")),
				"HostedZoneId": lb.Attr("CanonicalHostedZoneID"),
			},
		}); err != nil {
			return nil, err
		}
	}
	return lb, nil
}

func fqdn(name string) string {
	if strings.HasSuffix(name, ".") {
		return name
	}
	return name + "."
}
