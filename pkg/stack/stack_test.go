package stack

import (
	"context"
	"strings"
	"testing"

	"github.com/metasolutions/itada-infra/pkg/config"
	"github.com/metasolutions/itada-infra/pkg/infra/cfn/cfntest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookup(key string) (string, bool) {
	return strings.ToLower(key), true
}

func build(t *testing.T, name string, modify func(*config.Application)) *Stack {
	t.Helper()
	cfg, err := config.Defaults(name)
	require.NoError(t, err)
	if modify != nil {
		modify(&cfg)
	}
	st, err := New(name, cfg)
	require.NoError(t, err)
	st.Lookup = lookup
	require.NoError(t, st.Build(context.Background()))
	return st
}

func TestBuild_itada(t *testing.T) {
	st := build(t, Itada, nil)

	assert := assert.New(t)
	assert.NotNil(st.Outputs.Alb)
	assert.NotNil(st.Outputs.Lambda)
	assert.NotNil(st.Outputs.StepFunctions)

	tmpl := cfntest.FromGraph(t, st.Graph)
	tmpl.ResourceCountIs("AWS::IAM::Role", 5)
	tmpl.ResourceCountIs("AWS::EC2::Subnet", 4)
	tmpl.ResourceCountIs("AWS::EC2::Instance", 2)
	tmpl.ResourceCountIs("AWS::ElasticLoadBalancingV2::LoadBalancer", 2)
	tmpl.ResourceCountIs("AWS::S3::Bucket", 3)
	tmpl.ResourceCountIs("AWS::Redshift::Cluster", 1)
	tmpl.ResourceCountIs("AWS::RDS::DBCluster", 1)
	// 8 functions and the bucket auto delete provider
	tmpl.ResourceCountIs("AWS::Lambda::Function", 9)
	tmpl.ResourceCountIs("AWS::Glue::Job", 9)
	tmpl.ResourceCountIs("AWS::StepFunctions::StateMachine", 0)

	tmpl.HasOutput("VpcId", map[string]any{"Ref": "Ec2ItadaVpc"})
	tmpl.HasOutput("AmundsenLoadBalancerDns", map[string]any{"Fn::GetAtt": []any{"AlbAmundsenAlb", "DNSName"}})
	tmpl.HasOutput("ChartServiceLoadBalancerDns", map[string]any{"Fn::GetAtt": []any{"AlbChartServiceAlb", "DNSName"}})
	tmpl.HasOutput("RedshiftEndpoint", map[string]any{"Fn::GetAtt": []any{"RedshiftCluster", "Endpoint.Address"}})
	tmpl.HasOutput("RedshiftPort", map[string]any{"Fn::GetAtt": []any{"RedshiftCluster", "Endpoint.Port"}})
	tmpl.HasOutput("AuroraEndpoint", map[string]any{"Fn::GetAtt": []any{"AuroraCluster", "Endpoint.Address"}})

	tmpl.HasResourceProperties("AWS::Lambda::Function", map[string]any{
		"FunctionName": "aurora-sync",
		"Code":         map[string]any{"S3Bucket": "itada-cdk-scripts"},
	})
}

func TestBuild_resourceMigration(t *testing.T) {
	st := build(t, ResourceMigration, nil)

	assert := assert.New(t)
	assert.Nil(st.Outputs.Alb)
	assert.Nil(st.Outputs.Lambda)

	tmpl := cfntest.FromGraph(t, st.Graph)
	tmpl.ResourceCountIs("AWS::IAM::Role", 2)
	tmpl.ResourceCountIs("AWS::EC2::Subnet", 2)
	tmpl.ResourceCountIs("AWS::EC2::NatGateway", 1)
	tmpl.ResourceCountIs("AWS::EC2::Instance", 0)
	tmpl.ResourceCountIs("AWS::ElasticLoadBalancingV2::LoadBalancer", 0)
	tmpl.ResourceCountIs("AWS::Lambda::Function", 1)
	tmpl.ResourceCountIs("AWS::Glue::Database", 4)
	tmpl.HasResourceProperties("AWS::S3::Bucket", map[string]any{"BucketName": "itada-datasource"})

	_, hasAlbOutput := tmpl.Doc["Outputs"].(map[string]any)["AmundsenLoadBalancerDns"]
	assert.False(hasAlbOutput)
	tmpl.HasOutput("AuroraEndpoint", map[string]any{"Fn::GetAtt": []any{"AuroraCluster", "Endpoint.Address"}})
}

func TestBuild_resourceMigrationIgnoresLambda(t *testing.T) {
	itada, err := config.Defaults(Itada)
	require.NoError(t, err)

	st := build(t, ResourceMigration, func(cfg *config.Application) {
		cfg.Lambda = itada.Lambda
	})
	assert.Nil(t, st.Outputs.Lambda)
}

func TestBuild_optionalLayers(t *testing.T) {
	st := build(t, Itada, func(cfg *config.Application) {
		cfg.ALB = nil
		cfg.StepFunctions = nil
		cfg.Glue = nil
	})

	assert.Nil(t, st.Outputs.Alb)
	assert.Nil(t, st.Outputs.Glue)
	assert.Nil(t, st.Outputs.StepFunctions)
	cfntest.FromGraph(t, st.Graph).ResourceCountIs("AWS::Glue::Job", 0)
}

func TestBuild_errors(t *testing.T) {
	cfg, err := config.Defaults(Itada)
	require.NoError(t, err)

	t.Run("unknown stack", func(t *testing.T) {
		_, err := Build(context.Background(), "prod", cfg)
		assert.ErrorIs(t, err, ErrUnknownStack)
		assert.ErrorContains(t, err, `"prod" (known: itada, resource-migration)`)
	})

	t.Run("missing input", func(t *testing.T) {
		st, err := New(Itada, cfg)
		require.NoError(t, err)
		st.Lookup = func(string) (string, bool) { return "", false }

		err = st.Build(context.Background())
		assert.ErrorIs(t, err, config.ErrMissingInput)
		assert.ErrorContains(t, err, "could not build Redshift layer")
	})
}

func TestLayers(t *testing.T) {
	layers, err := Layers(ResourceMigration)
	require.NoError(t, err)
	assert.Equal(t, []string{"Iam", "Ec2", "S3", "Redshift", "Aurora", "Glue"}, layers)

	layers, err = Layers(Itada)
	require.NoError(t, err)
	assert.Equal(t, []string{"Iam", "Ec2", "Alb", "S3", "Redshift", "Aurora", "Lambda", "Glue", "StepFunctions"}, layers)
}

func TestTemplateData(t *testing.T) {
	cfg, err := config.Defaults(Itada)
	require.NoError(t, err)

	data := TemplateData(cfg)
	assert.Equal(t, "csv-upload-crawler", data.Functions["CsvUploadCrawlerFunc"])
	assert.Equal(t, "itada_upload_csv_to_parquet", data.Jobs["ItadaUploadCsvToParquet"])
	assert.Equal(t, "itada-cdk-scripts", data.Buckets["ItadaCdkScriptsBucket"])
	assert.Equal(t, "metadata-center-temp", data.Buckets["MetadataCenterBucket"])
	assert.Len(t, data.Jobs, 9)
}
