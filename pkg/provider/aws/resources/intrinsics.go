package resources

import (
	"sort"

	"github.com/metasolutions/itada-infra/pkg/construct"
)

// Intrinsic functions and pseudo parameters are plain maps in the resource properties. Any [construct.PropertyRef]
// inside them is converted when the template is rendered and adds a dependency edge when the resource is added.

const (
	PseudoAccountId = "AWS::AccountId"
	PseudoRegion    = "AWS::Region"
	PseudoPartition = "AWS::Partition"
	PseudoStackName = "AWS::StackName"
	PseudoUrlSuffix = "AWS::URLSuffix"

	PolicyVersion = "2012-10-17"
)

func Pseudo(name string) map[string]any {
	return map[string]any{"Ref": name}
}

func AccountId() map[string]any {
	return Pseudo(PseudoAccountId)
}

func Region() map[string]any {
	return Pseudo(PseudoRegion)
}

func Partition() map[string]any {
	return Pseudo(PseudoPartition)
}

func Join(delimiter string, parts ...any) map[string]any {
	return map[string]any{"Fn::Join": []any{delimiter, parts}}
}

func Sub(format string) map[string]any {
	return map[string]any{"Fn::Sub": format}
}

// SubWith is `Fn::Sub` with a variable map, the values may be references.
func SubWith(format string, vars map[string]any) map[string]any {
	return map[string]any{"Fn::Sub": []any{format, vars}}
}

func Select(index int, list any) map[string]any {
	return map[string]any{"Fn::Select": []any{index, list}}
}

// GetAZs lists the availability zones of the region, the stack's region when empty.
func GetAZs(region string) map[string]any {
	return map[string]any{"Fn::GetAZs": region}
}

// FindInMap looks up a value from a mapping added with [Scope.AddMapping].
func FindInMap(mapping construct.PropertyRef, topLevelKey, secondLevelKey any) map[string]any {
	return map[string]any{"Fn::FindInMap": []any{mapping, topLevelKey, secondLevelKey}}
}

// ManagedPolicyArn is the ARN of an AWS managed policy, eg `service-role/AWSGlueServiceRole`.
func ManagedPolicyArn(name string) map[string]any {
	return Join("", "arn:", Partition(), ":iam::aws:policy/", name)
}

// Tags converts the map into a CloudFormation tag list, sorted by key.
func Tags(tags map[string]string) []any {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	list := make([]any, 0, len(keys))
	for _, k := range keys {
		list = append(list, map[string]any{"Key": k, "Value": tags[k]})
	}
	return list
}

func NameTag(name string) []any {
	return Tags(map[string]string{"Name": name})
}

func PolicyDocument(statements ...any) map[string]any {
	return map[string]any{
		"Version":   PolicyVersion,
		"Statement": statements,
	}
}

// AssumeRolePolicy allows the service principal, eg `glue.amazonaws.com`, to assume the role.
func AssumeRolePolicy(service string) map[string]any {
	return PolicyDocument(map[string]any{
		"Action":    "sts:AssumeRole",
		"Effect":    "Allow",
		"Principal": map[string]any{"Service": service},
	})
}

// Refs collects the references of the resources, in order.
func Refs(rs ...*construct.Resource) []any {
	refs := make([]any, len(rs))
	for i, r := range rs {
		refs[i] = r.Ref()
	}
	return refs
}

// SortedKeys orders the config keys so resources are added in a stable order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
