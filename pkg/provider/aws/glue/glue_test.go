package glue

import (
	"context"
	"strings"
	"testing"

	"github.com/metasolutions/itada-infra/pkg/config"
	"github.com/metasolutions/itada-infra/pkg/construct"
	"github.com/metasolutions/itada-infra/pkg/infra/cfn/cfntest"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/iam"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/network"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/redshift"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lookup resolves every environment variable to its lowercased name.
func lookup(key string) (string, bool) {
	return strings.ToLower(key), true
}

type deps struct {
	net       *network.Outputs
	roles     *iam.Outputs
	warehouse *redshift.Outputs
}

func setup(t *testing.T, secrets config.SecretsMode) (config.Application, *resources.Scope, deps) {
	app, err := config.Defaults("itada")
	require.NoError(t, err)
	opts := resources.Options{
		Graph:         construct.NewGraph(),
		RemovalPolicy: config.RemovalDestroy,
		Secrets:       secrets,
		Lookup:        lookup,
	}
	ctx := context.Background()

	var d deps
	d.roles, err = iam.Build(resources.NewScope(ctx, iam.ScopeName, opts), app.IAM)
	require.NoError(t, err)
	d.net, err = network.Build(resources.NewScope(ctx, network.ScopeName, opts), config.Network{
		Vpc:            app.Network.Vpc,
		SecurityGroups: app.Network.SecurityGroups,
	}, d.roles)
	require.NoError(t, err)
	d.warehouse, err = redshift.Build(resources.NewScope(ctx, redshift.ScopeName, opts), *app.Redshift, d.net)
	require.NoError(t, err)
	return app, resources.NewScope(ctx, ScopeName, opts), d
}

func TestBuild(t *testing.T) {
	app, s, d := setup(t, config.SecretsInline)

	out, err := Build(s, *app.Glue, d.net, d.roles, d.warehouse)
	require.NoError(t, err)

	assert := assert.New(t)
	assert.Len(out.Databases, 4)
	assert.Len(out.Connections, 3)
	assert.Len(out.Jobs, 9)

	tmpl := cfntest.FromGraph(t, s.Graph)
	tmpl.HasResourceProperties("AWS::Glue::Database", map[string]any{
		"CatalogId": map[string]any{"Ref": "AWS::AccountId"},
		"DatabaseInput": map[string]any{
			"Name":        "metadata_center",
			"Description": "Database that stores metadata such as lineage and build history",
		},
	})

	requirements := map[string]any{
		"AvailabilityZone":    map[string]any{"Fn::GetAtt": []any{"Ec2ItadaVpcPrivateSubnet1", "AvailabilityZone"}},
		"SubnetId":            map[string]any{"Ref": "Ec2ItadaVpcPrivateSubnet1"},
		"SecurityGroupIdList": []any{map[string]any{"Fn::GetAtt": []any{"Ec2GlueSg", "GroupId"}}},
	}
	tmpl.HasResourceProperties("AWS::Glue::Connection", map[string]any{
		"ConnectionInput": map[string]any{
			"Name":           "develop-redshift-connection",
			"ConnectionType": "JDBC",
			"ConnectionProperties": map[string]any{
				"JDBC_CONNECTION_URL": map[string]any{"Fn::Join": []any{"", []any{
					"jdbc:redshift://",
					map[string]any{"Fn::GetAtt": []any{"RedshiftCluster", "Endpoint.Address"}},
					":",
					map[string]any{"Fn::GetAtt": []any{"RedshiftCluster", "Endpoint.Port"}},
					"/",
					"dev",
				}}},
				"USERNAME": "developredshift_username",
				"PASSWORD": "developredshift_userpw",
			},
			"PhysicalConnectionRequirements": requirements,
		},
	})
	tmpl.HasResourceProperties("AWS::Glue::Connection", map[string]any{
		"ConnectionInput": map[string]any{
			"Name": "itada_dpos_db_connection",
			"ConnectionProperties": map[string]any{
				"JDBC_CONNECTION_URL": "itadadposdb_connection_url",
				"JDBC_ENFORCE_SSL":    "itadadposdb_enforce_ssl",
			},
			"PhysicalConnectionRequirements": requirements,
		},
	})

	tmpl.HasResourceProperties("AWS::Glue::Job", map[string]any{
		"Name": "itada_work_db_clean",
		"Role": map[string]any{"Fn::GetAtt": []any{"IamGlueJobRole", "Arn"}},
		"Command": map[string]any{
			"Name":           "glueetl",
			"PythonVersion":  "3",
			"ScriptLocation": "itadaworkdbclean_job_script",
		},
		"GlueVersion":       "3.0",
		"WorkerType":        "G.1X",
		"NumberOfWorkers":   2,
		"MaxRetries":        0,
		"ExecutionProperty": map[string]any{"MaxConcurrentRuns": 1},
		"DefaultArguments": map[string]any{
			"--CLIENT_ID":        "ae59c4e9-0032-4122-a6ad-0f9484c71736",
			"--class":            "GlueApp",
			"--ITADA_CLEAN_PATH": "s3://itada-datasource/work_db/clean/",
			"--SELECTED_COLUMN":  "company_id",
		},
	})

	aside := tmpl.Resource("GlueItadaUploadCsvToParquet")["Properties"].(map[string]any)
	args := aside["DefaultArguments"].(map[string]any)
	assert.NotContains(args, "--CLIENT_ID")
	assert.NotContains(args, "--extra-py-files")
	assert.Equal("GlueApp", args["--class"])
}

func TestBuild_secretParameters(t *testing.T) {
	app, s, d := setup(t, config.SecretsParameter)

	_, err := Build(s, *app.Glue, d.net, d.roles, d.warehouse)
	require.NoError(t, err)

	tmpl := cfntest.FromGraph(t, s.Graph)
	params := tmpl.Parameters()
	// the warehouse password is shared with the redshift cluster
	assert.Contains(t, params, "DevelopredshiftUserpw")
	assert.Contains(t, params, "ItadadposdbUserpw")
	assert.Contains(t, params, "DevelopdworkdbUserpw")
	assert.Len(t, params, 3)

	tmpl.HasResourceProperties("AWS::Glue::Connection", map[string]any{
		"ConnectionInput": map[string]any{
			"Name": "develop-redshift-connection",
			"ConnectionProperties": map[string]any{
				"PASSWORD": map[string]any{"Ref": "DevelopredshiftUserpw"},
			},
		},
	})
}

func TestBuild_errors(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*config.Glue)
		noWarehouse bool
		wantErr     string
	}{
		{
			name:    "unknown role",
			modify:  func(c *config.Glue) { c.Role = "Nope" },
			wantErr: "Glue: unknown role Nope",
		},
		{
			name: "invalid client id",
			modify: func(c *config.Glue) {
				c.SharedArguments = map[string]string{ClientIdArgument: "client-1"}
			},
			wantErr: `Glue: shared arguments: --CLIENT_ID "client-1" is not a UUID`,
		},
		{
			name: "invalid job client id",
			modify: func(c *config.Glue) {
				c.JobSets = map[string]config.JobSet{"a": {Jobs: map[string]config.Job{
					"Job": {Name: "job", ScriptLocation: config.Literal("s3://x"), Arguments: map[string]string{ClientIdArgument: "x"}},
				}}}
			},
			wantErr: `job Job: --CLIENT_ID "x" is not a UUID`,
		},
		{
			name: "job in two sets",
			modify: func(c *config.Glue) {
				job := config.Job{Name: "job", ScriptLocation: config.Literal("s3://x")}
				c.JobSets = map[string]config.JobSet{
					"a": {Jobs: map[string]config.Job{"Job": job}},
					"b": {Jobs: map[string]config.Job{"Job": job}},
				}
			},
			wantErr: "job Job is in more than one job set",
		},
		{
			name:        "url without warehouse",
			modify:      func(c *config.Glue) {},
			noWarehouse: true,
			wantErr:     "connection DevelopRedshiftConnection: url_from_redshift needs a redshift cluster",
		},
		{
			name: "url twice",
			modify: func(c *config.Glue) {
				conn := c.Connections["DevelopRedshiftConnection"]
				conn.Properties = map[string]config.Value{ConnectionUrlProperty: config.Literal("jdbc:x")}
				c.Connections = map[string]config.Connection{"DevelopRedshiftConnection": conn}
			},
			wantErr: "connection DevelopRedshiftConnection: JDBC_CONNECTION_URL is set and url_from_redshift is true",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, s, d := setup(t, config.SecretsInline)
			cfg := *app.Glue
			tt.modify(&cfg)
			warehouse := d.warehouse
			if tt.noWarehouse {
				warehouse = nil
			}

			_, err := Build(s, cfg, d.net, d.roles, warehouse)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestMergeArguments(t *testing.T) {
	shared := map[string]string{"--class": "GlueApp", "--BUCKET_NAME": "itada-datasource"}
	own := map[string]string{"--BUCKET_NAME": "other", "--STAGE": "clean"}

	assert.Equal(t, map[string]string{
		"--class":       "GlueApp",
		"--BUCKET_NAME": "other",
		"--STAGE":       "clean",
	}, MergeArguments(config.JobSet{SharedArguments: true}, shared, own))

	assert.Equal(t, own, MergeArguments(config.JobSet{}, shared, own))
	assert.Empty(t, MergeArguments(config.JobSet{}, shared, nil))
}

func TestValidateArguments(t *testing.T) {
	assert.NoError(t, ValidateArguments(nil))
	assert.NoError(t, ValidateArguments(map[string]string{ClientIdArgument: "ae59c4e9-0032-4122-a6ad-0f9484c71736"}))
	assert.Error(t, ValidateArguments(map[string]string{ClientIdArgument: ""}))
	assert.Error(t, ValidateArguments(map[string]string{ClientIdArgument: "ae59c4e9"}))
}
