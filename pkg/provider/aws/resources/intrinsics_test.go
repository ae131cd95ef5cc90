package resources

import (
	"testing"

	"github.com/metasolutions/itada-infra/pkg/construct"
	"github.com/stretchr/testify/assert"
)

func TestIntrinsics(t *testing.T) {
	mapping := construct.PropertyRef{Resource: construct.ResourceId{Provider: CfnProvider, Type: MappingType, Name: "Ami"}}
	tests := []struct {
		name string
		got  any
		want any
	}{
		{
			name: "managed policy arn",
			got:  ManagedPolicyArn("service-role/AWSGlueServiceRole"),
			want: map[string]any{"Fn::Join": []any{"", []any{
				"arn:", map[string]any{"Ref": "AWS::Partition"}, ":iam::aws:policy/", "service-role/AWSGlueServiceRole",
			}}},
		},
		{
			name: "select az",
			got:  Select(1, GetAZs("")),
			want: map[string]any{"Fn::Select": []any{1, map[string]any{"Fn::GetAZs": ""}}},
		},
		{
			name: "find in map",
			got:  FindInMap(mapping, Region(), "Ami"),
			want: map[string]any{"Fn::FindInMap": []any{mapping, map[string]any{"Ref": "AWS::Region"}, "Ami"}},
		},
		{
			name: "sub with variables",
			got:  SubWith("jdbc:redshift://${Host}:5439/dev", map[string]any{"Host": "warehouse"}),
			want: map[string]any{"Fn::Sub": []any{"jdbc:redshift://${Host}:5439/dev", map[string]any{"Host": "warehouse"}}},
		},
		{
			name: "tags sorted",
			got:  Tags(map[string]string{"b": "2", "a": "1"}),
			want: []any{map[string]any{"Key": "a", "Value": "1"}, map[string]any{"Key": "b", "Value": "2"}},
		},
		{
			name: "assume role",
			got:  AssumeRolePolicy("glue.amazonaws.com"),
			want: map[string]any{
				"Version": "2012-10-17",
				"Statement": []any{map[string]any{
					"Action":    "sts:AssumeRole",
					"Effect":    "Allow",
					"Principal": map[string]any{"Service": "glue.amazonaws.com"},
				}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestRefs(t *testing.T) {
	a := construct.CreateResource(construct.ResourceId{Provider: AwsProvider, Type: SubnetType, Name: "a"})
	b := construct.CreateResource(construct.ResourceId{Provider: AwsProvider, Type: SubnetType, Name: "b"})
	assert.Equal(t, []any{a.Ref(), b.Ref()}, Refs(a, b))
}
