package iam

import (
	"context"
	"testing"

	"github.com/metasolutions/itada-infra/pkg/config"
	"github.com/metasolutions/itada-infra/pkg/construct"
	"github.com/metasolutions/itada-infra/pkg/infra/cfn/cfntest"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScope(g construct.Graph) *resources.Scope {
	return resources.NewScope(context.Background(), ScopeName, resources.Options{
		Graph:         g,
		RemovalPolicy: config.RemovalDestroy,
	})
}

func TestBuild_defaults(t *testing.T) {
	app, err := config.Defaults("itada")
	require.NoError(t, err)
	g := construct.NewGraph()

	out, err := Build(newScope(g), app.IAM)
	require.NoError(t, err)

	assert := assert.New(t)
	assert.Len(out.Roles, 4)
	assert.Len(out.Policies, 3)
	assert.Equal(map[string]any{"Ref": "AWS::AccountId"}, out.AccountId)

	tmpl := cfntest.FromGraph(t, g)
	tmpl.ResourceCountIs("AWS::IAM::Role", 4)
	tmpl.ResourceCountIs("AWS::IAM::ManagedPolicy", 3)
	tmpl.HasResourceProperties("AWS::IAM::ManagedPolicy", map[string]any{
		"ManagedPolicyName": "LambdaStopDB",
		"PolicyDocument": map[string]any{
			"Version": "2012-10-17",
			"Statement": []any{map[string]any{
				"Sid":      "0",
				"Effect":   "Allow",
				"Action":   []string{"rds:StopDBCluster", "rds:StopDBInstance"},
				"Resource": []string{"*"},
			}},
		},
	})
	tmpl.HasResourceProperties("AWS::IAM::Role", map[string]any{
		"AssumeRolePolicyDocument": map[string]any{
			"Statement": []any{map[string]any{"Principal": map[string]any{"Service": "glue.amazonaws.com"}}},
		},
		"Description": "Allows Glue to call AWS services on your behalf.",
		"ManagedPolicyArns": []any{
			resources.ManagedPolicyArn("AmazonSQSFullAccess"),
			resources.ManagedPolicyArn("AmazonS3FullAccess"),
			resources.ManagedPolicyArn("service-role/AWSGlueServiceRole"),
			resources.ManagedPolicyArn("AmazonSNSFullAccess"),
		},
	})

	lambdaRole := tmpl.Resource("IamLambdaFuncRole")
	arns := lambdaRole["Properties"].(map[string]any)["ManagedPolicyArns"].([]any)
	assert.Len(arns, 11)
	assert.Equal(map[string]any{"Ref": "IamLambdaInvokePolicy"}, arns[0])
	assert.Equal("Delete", lambdaRole["DeletionPolicy"])

	role, err := out.Role("GlueJobRole")
	require.NoError(t, err)
	assert.Equal("GlueJobRole", role.ID.Name)
	_, err = out.Role("Nope")
	assert.ErrorContains(err, "unknown role Nope")
}

func TestBuild_unknownPolicy(t *testing.T) {
	_, err := Build(newScope(construct.NewGraph()), config.IAM{
		Roles: map[string]config.Role{"R": {Service: "ec2.amazonaws.com", Policies: []string{"Missing"}}},
	})
	assert.ErrorContains(t, err, "role R: unknown policy Missing")
}

func TestPolicyDocument(t *testing.T) {
	doc := policyDocument(config.Policy{
		Statements: []config.PolicyStatement{
			{Actions: []string{"s3:GetObject"}, Resources: []string{"*"}},
			{Effect: "Deny", Actions: []string{"s3:DeleteObject"}, Resources: []string{"*"}},
		},
	})
	statements := doc["Statement"].([]any)
	require.Len(t, statements, 2)
	assert.Equal(t, "Allow", statements[0].(map[string]any)["Effect"])
	assert.Equal(t, "Deny", statements[1].(map[string]any)["Effect"])
	assert.NotContains(t, statements[0], "Sid")
}
