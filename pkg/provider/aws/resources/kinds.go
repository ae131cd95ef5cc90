package resources

import (
	"fmt"
	"sort"

	"github.com/metasolutions/itada-infra/pkg/construct"
	"github.com/metasolutions/itada-infra/pkg/set"
)

const (
	AwsProvider = "aws"
	// CfnProvider holds template-level elements which are not AWS resources: parameters, mappings and outputs.
	CfnProvider = "cfn"

	ParameterType = "parameter"
	MappingType   = "mapping"
	OutputType    = "output"
)

// Kind describes a resource type that the builders can emit.
type Kind struct {
	// Type is the short type used in resource ids, eg `security_group`.
	Type string
	// CfnType is the CloudFormation resource type, eg `AWS::EC2::SecurityGroup`.
	CfnType string
	// Attributes are the names accepted by `Fn::GetAtt`.
	Attributes set.Set[string]
	// Snapshottable kinds support the `Snapshot` deletion policy.
	Snapshottable bool
}

func kind(t, cfnType string, attrs ...string) Kind {
	return Kind{Type: t, CfnType: cfnType, Attributes: set.SetOf(attrs...)}
}

func snapshottable(k Kind) Kind {
	k.Snapshottable = true
	return k
}

const (
	VpcType                        = "vpc"
	SubnetType                     = "subnet"
	InternetGatewayType            = "internet_gateway"
	VpcGatewayAttachmentType       = "vpc_gateway_attachment"
	RouteTableType                 = "route_table"
	RouteType                      = "route"
	SubnetRouteTableAssociation    = "subnet_route_table_association"
	ElasticIpType                  = "elastic_ip"
	NatGatewayType                 = "nat_gateway"
	SecurityGroupType              = "security_group"
	SecurityGroupIngressType       = "security_group_ingress"
	KeyPairType                    = "key_pair"
	InstanceProfileType            = "instance_profile"
	InstanceType                   = "instance"
	IamRoleType                    = "iam_role"
	IamManagedPolicyType           = "iam_managed_policy"
	HostedZoneType                 = "hosted_zone"
	CertificateType                = "certificate"
	TargetGroupType                = "target_group"
	LoadBalancerType               = "load_balancer"
	ListenerType                   = "listener"
	RecordSetType                  = "record_set"
	S3BucketType                   = "s3_bucket"
	S3BucketPolicyType             = "s3_bucket_policy"
	LambdaFunctionType             = "lambda_function"
	AutoDeleteObjectsType          = "auto_delete_objects"
	RedshiftClusterSubnetGroupType = "redshift_cluster_subnet_group"
	RedshiftClusterType            = "redshift_cluster"
	RdsSubnetGroupType             = "rds_subnet_group"
	RdsClusterType                 = "rds_cluster"
	GlueDatabaseType               = "glue_database"
	GlueConnectionType             = "glue_connection"
	GlueJobType                    = "glue_job"
	StateMachineType               = "state_machine"
)

var kinds = map[string]Kind{}

func register(ks ...Kind) {
	for _, k := range ks {
		if _, ok := kinds[k.Type]; ok {
			panic(fmt.Sprintf("duplicate kind %s", k.Type))
		}
		kinds[k.Type] = k
	}
}

func init() {
	register(
		kind(VpcType, "AWS::EC2::VPC", "CidrBlock", "DefaultNetworkAcl", "DefaultSecurityGroup", "VpcId"),
		kind(SubnetType, "AWS::EC2::Subnet", "AvailabilityZone", "CidrBlock", "SubnetId", "VpcId"),
		kind(InternetGatewayType, "AWS::EC2::InternetGateway", "InternetGatewayId"),
		kind(VpcGatewayAttachmentType, "AWS::EC2::VPCGatewayAttachment"),
		kind(RouteTableType, "AWS::EC2::RouteTable", "RouteTableId"),
		kind(RouteType, "AWS::EC2::Route"),
		kind(SubnetRouteTableAssociation, "AWS::EC2::SubnetRouteTableAssociation", "Id"),
		kind(ElasticIpType, "AWS::EC2::EIP", "AllocationId", "PublicIp"),
		kind(NatGatewayType, "AWS::EC2::NatGateway", "NatGatewayId"),
		kind(SecurityGroupType, "AWS::EC2::SecurityGroup", "GroupId", "VpcId"),
		kind(SecurityGroupIngressType, "AWS::EC2::SecurityGroupIngress", "Id"),
		kind(KeyPairType, "AWS::EC2::KeyPair", "KeyFingerprint", "KeyPairId"),
		kind(InstanceProfileType, "AWS::IAM::InstanceProfile", "Arn"),
		kind(InstanceType, "AWS::EC2::Instance",
			"AvailabilityZone", "InstanceId", "PrivateDnsName", "PrivateIp", "PublicDnsName", "PublicIp"),
		kind(IamRoleType, "AWS::IAM::Role", "Arn", "RoleId"),
		kind(IamManagedPolicyType, "AWS::IAM::ManagedPolicy", "PolicyArn", "PolicyId"),
		kind(HostedZoneType, "AWS::Route53::HostedZone", "Id", "NameServers"),
		kind(CertificateType, "AWS::CertificateManager::Certificate"),
		kind(TargetGroupType, "AWS::ElasticLoadBalancingV2::TargetGroup",
			"LoadBalancerArns", "TargetGroupArn", "TargetGroupFullName", "TargetGroupName"),
		kind(LoadBalancerType, "AWS::ElasticLoadBalancingV2::LoadBalancer",
			"CanonicalHostedZoneID", "DNSName", "LoadBalancerArn", "LoadBalancerFullName", "LoadBalancerName", "SecurityGroups"),
		kind(ListenerType, "AWS::ElasticLoadBalancingV2::Listener", "ListenerArn"),
		kind(RecordSetType, "AWS::Route53::RecordSet"),
		kind(S3BucketType, "AWS::S3::Bucket", "Arn", "DomainName", "RegionalDomainName", "WebsiteURL"),
		kind(S3BucketPolicyType, "AWS::S3::BucketPolicy"),
		kind(LambdaFunctionType, "AWS::Lambda::Function", "Arn"),
		kind(AutoDeleteObjectsType, "Custom::S3AutoDeleteObjects"),
		kind(RedshiftClusterSubnetGroupType, "AWS::Redshift::ClusterSubnetGroup", "ClusterSubnetGroupName"),
		snapshottable(kind(RedshiftClusterType, "AWS::Redshift::Cluster", "Endpoint.Address", "Endpoint.Port")),
		kind(RdsSubnetGroupType, "AWS::RDS::DBSubnetGroup"),
		snapshottable(kind(RdsClusterType, "AWS::RDS::DBCluster",
			"DBClusterArn", "DBClusterResourceId", "Endpoint.Address", "Endpoint.Port", "ReadEndpoint.Address")),
		kind(GlueDatabaseType, "AWS::Glue::Database"),
		kind(GlueConnectionType, "AWS::Glue::Connection"),
		kind(GlueJobType, "AWS::Glue::Job"),
		kind(StateMachineType, "AWS::StepFunctions::StateMachine", "Arn", "Name"),
	)
}

// LookupKind returns the kind registered for the short type.
func LookupKind(t string) (Kind, bool) {
	k, ok := kinds[t]
	return k, ok
}

// KindOf returns the kind of an AWS resource id.
func KindOf(id construct.ResourceId) (Kind, error) {
	if id.Provider != AwsProvider {
		return Kind{}, fmt.Errorf("%s is not an %s resource", id, AwsProvider)
	}
	k, ok := kinds[id.Type]
	if !ok {
		return Kind{}, fmt.Errorf("unknown resource kind %q for %s", id.Type, id)
	}
	return k, nil
}

// CheckRef verifies that the attribute of the reference exists on the referenced resource's kind. Parameters and
// mappings only support the plain reference.
func CheckRef(ref construct.PropertyRef) error {
	if ref.Resource.Provider == CfnProvider {
		switch ref.Resource.Type {
		case ParameterType, MappingType:
			if ref.Property != "" {
				return fmt.Errorf("%s: %s cannot have attributes", ref, ref.Resource.Type)
			}
			return nil
		}
		return fmt.Errorf("%s: cannot reference a %s", ref, ref.Resource.Type)
	}
	k, err := KindOf(ref.Resource)
	if err != nil {
		return err
	}
	if ref.Property != "" && !k.Attributes.Contains(ref.Property) {
		return fmt.Errorf("%s: %s has no attribute %q (has %v)", ref, k.CfnType, ref.Property, k.Attributes.Sorted(func(a, b string) bool { return a < b }))
	}
	return nil
}

// Kinds lists every registered kind, sorted by type.
func Kinds() []Kind {
	list := make([]Kind, 0, len(kinds))
	for _, k := range kinds {
		list = append(list, k)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Type < list[j].Type })
	return list
}
