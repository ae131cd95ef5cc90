package config

import (
	"errors"
	"fmt"
	"net/netip"
	"sort"
	"strings"
)

type validator struct {
	errs []error
}

func (v *validator) add(path string, format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf("%s: %s", path, fmt.Sprintf(format, args...)))
}

func (v *validator) required(path, value string) {
	if value == "" {
		v.add(path, "required")
	}
}

func (v *validator) oneOf(path, value string, allowed ...string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.add(path, "must be one of %s, got %q", strings.Join(allowed, ", "), value)
}

func (v *validator) keyIn(path, key string, what string, keys map[string]bool) {
	if !keys[key] {
		v.add(path, "unknown %s %q", what, key)
	}
}

func keySet[V any](m map[string]V) map[string]bool {
	s := make(map[string]bool, len(m))
	for k := range m {
		s[k] = true
	}
	return s
}

// sortedKeys iterates maps in a stable order so the reported problems are deterministic.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks the configuration for problems that would otherwise only show up at deploy time,
// such as references to undefined roles or security groups. All problems are returned together.
func (a Application) Validate() error {
	v := &validator{}

	v.required("stack", a.Stack)
	v.oneOf("removal_policy", string(a.RemovalPolicy), string(RemovalDestroy), string(RemovalRetain), string(RemovalSnapshot))
	v.oneOf("secrets", string(a.Secrets), string(SecretsInline), string(SecretsParameter))

	roles := keySet(a.IAM.Roles)
	a.IAM.validate(v)
	a.Network.validate(v, roles)
	sgs := keySet(a.Network.SecurityGroups)

	if a.ALB != nil {
		a.ALB.validate(v, sgs, keySet(a.Network.Instances))
	}
	a.Storage.validate(v)
	if a.Redshift != nil {
		a.Redshift.validate(v, sgs)
	}
	if a.Aurora != nil {
		a.Aurora.validate(v, sgs)
	}
	if a.Lambda != nil {
		a.Lambda.validate(v, roles, sgs, keySet(a.Storage.Imported))
	}
	if a.Glue != nil {
		a.Glue.validate(v, roles, sgs, a.Redshift != nil)
	}
	if a.StepFunctions != nil {
		sf := a.StepFunctions
		v.keyIn("stepfunctions.role", sf.Role, "role", roles)
		for _, k := range sortedKeys(sf.StateMachines) {
			sm := sf.StateMachines[k]
			p := "stepfunctions.state_machines." + k
			v.required(p+".name", sm.Name)
			v.required(p+".definition_file", sm.DefinitionFile)
			if sm.Type != "" {
				v.oneOf(p+".type", sm.Type, "STANDARD", "EXPRESS")
			}
		}
	}
	return errors.Join(v.errs...)
}

func (iam IAM) validate(v *validator) {
	policies := keySet(iam.Policies)
	for _, k := range sortedKeys(iam.Policies) {
		p := iam.Policies[k]
		path := "iam.policies." + k
		v.required(path+".name", p.Name)
		if len(p.Statements) == 0 {
			v.add(path+".statements", "at least one statement is required")
		}
		for i, s := range p.Statements {
			sp := fmt.Sprintf("%s.statements[%d]", path, i)
			if s.Effect != "" {
				v.oneOf(sp+".effect", s.Effect, "Allow", "Deny")
			}
			if len(s.Actions) == 0 {
				v.add(sp+".actions", "at least one action is required")
			}
			if len(s.Resources) == 0 {
				v.add(sp+".resources", "at least one resource is required")
			}
		}
	}
	for _, k := range sortedKeys(iam.Roles) {
		r := iam.Roles[k]
		path := "iam.roles." + k
		v.required(path+".service", r.Service)
		for i, p := range r.Policies {
			v.keyIn(fmt.Sprintf("%s.policies[%d]", path, i), p, "policy", policies)
		}
	}
}

func (n Network) validate(v *validator, roles map[string]bool) {
	prefix, err := netip.ParsePrefix(n.Vpc.Cidr)
	if err != nil {
		v.add("network.vpc.cidr", "%v", err)
	} else if !prefix.Addr().Is4() {
		v.add("network.vpc.cidr", "must be an IPv4 CIDR")
	}
	v.required("network.vpc.name", n.Vpc.Name)
	if n.Vpc.MaxAzs < 1 {
		v.add("network.vpc.max_azs", "must be at least 1")
	}
	if n.Vpc.NatGateways != nil && (*n.Vpc.NatGateways < 0 || *n.Vpc.NatGateways > n.Vpc.MaxAzs) {
		v.add("network.vpc.nat_gateways", "must be between 0 and max_azs (%d)", n.Vpc.MaxAzs)
	}

	sgs := keySet(n.SecurityGroups)
	for _, k := range sortedKeys(n.SecurityGroups) {
		sg := n.SecurityGroups[k]
		path := "network.security_groups." + k
		v.required(path+".group_name", sg.GroupName)
		for i, rule := range sg.Ingress {
			if err := rule.validatePeer(sgs); err != nil {
				v.add(fmt.Sprintf("%s.ingress[%d].peer", path, i), "%v", err)
			}
		}
	}

	for _, k := range sortedKeys(n.Instances) {
		inst := n.Instances[k]
		path := "network.instances." + k
		v.required(path+".instance_type", inst.InstanceType)
		v.required(path+".key_name", inst.KeyName)
		v.keyIn(path+".security_group", inst.SecurityGroup, "security group", sgs)
		v.keyIn(path+".role", inst.Role, "role", roles)
		if len(inst.Ami) == 0 {
			v.add(path+".ami", "at least one region is required")
		}
		if inst.Volume.DeviceName != "" && inst.Volume.SizeGb < 1 {
			v.add(path+".volume.size_gb", "must be at least 1")
		}
	}
}

// PeerKind is the kind of source an ingress rule allows.
type PeerKind int

const (
	PeerAnyIpv4 PeerKind = iota
	PeerAnyIpv6
	PeerCidr
	// PeerDefault is the default security group of the VPC.
	PeerDefault
	PeerSelf
	PeerSecurityGroup
)

// ParsePeer returns the kind of the peer and, for [PeerCidr] and [PeerSecurityGroup], the CIDR or the
// security group key.
func (r IngressRule) ParsePeer() (PeerKind, string, error) {
	switch r.Peer {
	case "any_ipv4":
		return PeerAnyIpv4, "0.0.0.0/0", nil
	case "any_ipv6":
		return PeerAnyIpv6, "::/0", nil
	case "default":
		return PeerDefault, "", nil
	case "self":
		return PeerSelf, "", nil
	}
	if key, ok := strings.CutPrefix(r.Peer, "sg:"); ok {
		if key == "" {
			return 0, "", fmt.Errorf("missing security group after 'sg:'")
		}
		return PeerSecurityGroup, key, nil
	}
	prefix, err := netip.ParsePrefix(r.Peer)
	if err != nil {
		return 0, "", fmt.Errorf("expected any_ipv4, any_ipv6, default, self, sg:<key> or a CIDR, got %q", r.Peer)
	}
	return PeerCidr, prefix.String(), nil
}

func (r IngressRule) validatePeer(sgs map[string]bool) error {
	kind, key, err := r.ParsePeer()
	if err != nil {
		return err
	}
	if kind == PeerSecurityGroup && !sgs[key] {
		return fmt.Errorf("unknown security group %q", key)
	}
	return nil
}

func (alb ALB) validate(v *validator, sgs, instances map[string]bool) {
	v.required("alb.zone_name", alb.ZoneName)
	v.required("alb.certificate.domain_name", alb.Certificate.DomainName)
	for _, k := range sortedKeys(alb.Sites) {
		s := alb.Sites[k]
		path := "alb.sites." + k
		v.keyIn(path+".instance", s.Instance, "instance", instances)
		v.keyIn(path+".security_group", s.SecurityGroup, "security group", sgs)
		v.required(path+".load_balancer_name", s.LoadBalancerName)
		v.required(path+".target_group.name", s.TargetGroup.Name)
		if s.TargetGroup.Port < 1 || s.TargetGroup.Port > 65535 {
			v.add(path+".target_group.port", "invalid port %d", s.TargetGroup.Port)
		}
		v.required(path+".record_name", s.RecordName)
	}
}

func (s Storage) validate(v *validator) {
	for _, k := range sortedKeys(s.Imported) {
		v.required("storage.imported."+k, s.Imported[k])
	}
	for _, k := range sortedKeys(s.Buckets) {
		b := s.Buckets[k]
		path := "storage.buckets." + k
		v.required(path+".bucket_name", b.BucketName)
		if b.RemovalPolicy != "" {
			v.oneOf(path+".removal_policy", string(b.RemovalPolicy), string(RemovalDestroy), string(RemovalRetain))
		}
		if b.AutoDeleteObjects && b.RemovalPolicy == RemovalRetain {
			v.add(path+".auto_delete_objects", "cannot be used with the retain removal policy")
		}
	}
}

// DefaultSecurityGroup refers to the default security group of the VPC in security group lists.
const DefaultSecurityGroup = "default"

func securityGroupRefs(v *validator, path string, refs []string, sgs map[string]bool) {
	for i, sg := range refs {
		if sg == DefaultSecurityGroup {
			continue
		}
		v.keyIn(fmt.Sprintf("%s[%d]", path, i), sg, "security group", sgs)
	}
}

func (r Redshift) validate(v *validator, sgs map[string]bool) {
	v.required("redshift.cluster_identifier", r.ClusterIdentifier)
	v.required("redshift.node_type", r.NodeType)
	v.required("redshift.db_name", r.DbName)
	v.oneOf("redshift.cluster_type", r.ClusterType, "single-node", "multi-node")
	if r.MasterUsername.IsZero() {
		v.add("redshift.master_username", "required")
	}
	if r.MasterUserPassword.IsZero() {
		v.add("redshift.master_user_password", "required")
	}
	securityGroupRefs(v, "redshift.security_groups", r.SecurityGroups, sgs)
}

func (a Aurora) validate(v *validator, sgs map[string]bool) {
	v.required("aurora.cluster_identifier", a.ClusterIdentifier)
	v.required("aurora.engine_version", a.EngineVersion)
	if a.Username.IsZero() {
		v.add("aurora.username", "required")
	}
	if a.Password.IsZero() {
		v.add("aurora.password", "required")
	}
	securityGroupRefs(v, "aurora.security_groups", a.SecurityGroups, sgs)
}

func (l Lambda) validate(v *validator, roles, sgs, buckets map[string]bool) {
	v.keyIn("lambda.code_bucket", l.CodeBucket, "imported bucket", buckets)
	v.keyIn("lambda.role", l.Role, "role", roles)
	v.required("lambda.handler", l.Handler)
	securityGroupRefs(v, "lambda.security_groups", l.SecurityGroups, sgs)
	for _, k := range sortedKeys(l.Functions) {
		f := l.Functions[k]
		path := "lambda.functions." + k
		v.required(path+".function_name", f.FunctionName)
		v.required(path+".runtime", f.Runtime)
		if f.TimeoutSecs < 1 || f.TimeoutSecs > 900 {
			v.add(path+".timeout_secs", "must be between 1 and 900, got %d", f.TimeoutSecs)
		}
	}
}

func (g Glue) validate(v *validator, roles, sgs map[string]bool, hasRedshift bool) {
	v.keyIn("glue.role", g.Role, "role", roles)
	securityGroupRefs(v, "glue.security_groups", g.SecurityGroups, sgs)
	for _, k := range sortedKeys(g.Databases) {
		v.required("glue.databases."+k+".name", g.Databases[k].Name)
	}
	for _, k := range sortedKeys(g.Connections) {
		c := g.Connections[k]
		path := "glue.connections." + k
		v.required(path+".name", c.Name)
		if c.UrlFromRedshift {
			if !hasRedshift {
				v.add(path+".url_from_redshift", "requires redshift to be configured")
			}
			if _, ok := c.Properties["JDBC_CONNECTION_URL"]; ok {
				v.add(path+".properties.JDBC_CONNECTION_URL", "cannot be set together with url_from_redshift")
			}
		} else if _, ok := c.Properties["JDBC_CONNECTION_URL"]; !ok {
			v.add(path+".properties.JDBC_CONNECTION_URL", "required")
		}
	}
	names := make(map[string]string)
	keys := make(map[string]string)
	for _, setKey := range sortedKeys(g.JobSets) {
		for _, k := range sortedKeys(g.JobSets[setKey].Jobs) {
			j := g.JobSets[setKey].Jobs[k]
			path := fmt.Sprintf("glue.job_sets.%s.jobs.%s", setKey, k)
			if prev, ok := keys[k]; ok {
				v.add(path, "job id is already used by %s", prev)
			}
			keys[k] = path
			v.required(path+".name", j.Name)
			if j.ScriptLocation.IsZero() {
				v.add(path+".script_location", "required")
			}
			if prev, ok := names[j.Name]; ok && j.Name != "" {
				v.add(path+".name", "job name %q is already used by %s", j.Name, prev)
			}
			names[j.Name] = path
		}
	}
}
