package iam

import (
	"fmt"
	"strconv"

	"github.com/metasolutions/itada-infra/pkg/config"
	"github.com/metasolutions/itada-infra/pkg/construct"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/resources"
)

const ScopeName = "Iam"

type Outputs struct {
	AccountId any
	Roles     map[string]*construct.Resource
	Policies  map[string]*construct.Resource
}

// Role returns the role with the config key.
func (o *Outputs) Role(key string) (*construct.Resource, error) {
	if o == nil {
		return nil, fmt.Errorf("role %s: no roles defined", key)
	}
	r, ok := o.Roles[key]
	if !ok {
		return nil, fmt.Errorf("unknown role %s", key)
	}
	return r, nil
}

// Build adds the customer managed policies and then the roles that attach them.
func Build(s *resources.Scope, cfg config.IAM) (*Outputs, error) {
	out := &Outputs{
		AccountId: resources.AccountId(),
		Roles:     make(map[string]*construct.Resource, len(cfg.Roles)),
		Policies:  make(map[string]*construct.Resource, len(cfg.Policies)),
	}

	for _, key := range resources.SortedKeys(cfg.Policies) {
		p := cfg.Policies[key]
		r, err := s.Add(resources.IamManagedPolicyType, key, construct.Properties{
			"ManagedPolicyName": p.Name,
			"PolicyDocument":    policyDocument(p),
		})
		if err != nil {
			return nil, err
		}
		out.Policies[key] = r
	}

	for _, key := range resources.SortedKeys(cfg.Roles) {
		role := cfg.Roles[key]
		arns := make([]any, 0, len(role.ManagedPolicies)+len(role.Policies))
		for _, name := range role.Policies {
			p, ok := out.Policies[name]
			if !ok {
				return nil, fmt.Errorf("role %s: unknown policy %s", key, name)
			}
			arns = append(arns, p.Ref())
		}
		for _, name := range role.ManagedPolicies {
			arns = append(arns, resources.ManagedPolicyArn(name))
		}

		props := construct.Properties{
			"AssumeRolePolicyDocument": resources.AssumeRolePolicy(role.Service),
			"ManagedPolicyArns":        arns,
		}
		if role.Description != "" {
			props["Description"] = role.Description
		}
		r, err := s.Add(resources.IamRoleType, key, props)
		if err != nil {
			return nil, err
		}
		out.Roles[key] = r
	}

	s.Done()
	return out, nil
}

func policyDocument(p config.Policy) map[string]any {
	statements := make([]any, len(p.Statements))
	for i, st := range p.Statements {
		effect := st.Effect
		if effect == "" {
			effect = "Allow"
		}
		statement := map[string]any{
			"Effect":   effect,
			"Action":   st.Actions,
			"Resource": st.Resources,
		}
		if p.AssignSids {
			statement["Sid"] = strconv.Itoa(i)
		}
		statements[i] = statement
	}
	return resources.PolicyDocument(statements...)
}
