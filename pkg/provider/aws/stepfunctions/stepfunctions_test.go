package stepfunctions

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lithammer/dedent"
	"github.com/metasolutions/itada-infra/pkg/config"
	"github.com/metasolutions/itada-infra/pkg/construct"
	"github.com/metasolutions/itada-infra/pkg/infra/cfn/cfntest"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRoles map[string]*construct.Resource

func (f fakeRoles) Role(key string) (*construct.Resource, error) {
	if r, ok := f[key]; ok {
		return r, nil
	}
	return nil, assert.AnError
}

var definition = dedent.Dedent(`
	{
	  "StartAt": "Crawl",
	  "States": {
	    "Crawl": {
	      "Type": "Task",
	      "Resource": "arn:aws:states:::lambda:invoke",
	      "Parameters": {"FunctionName": "${CrawlerFunction}"},
	      "End": true
	    }
	  }
	}
	`)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func setup(t *testing.T) (*resources.Scope, fakeRoles) {
	g := construct.NewGraph()
	opts := resources.Options{Graph: g, RemovalPolicy: config.RemovalDestroy}
	role, err := resources.NewScope(context.Background(), "Iam", opts).Add(resources.IamRoleType, "StepFunctionRole", nil)
	require.NoError(t, err)
	return resources.NewScope(context.Background(), ScopeName, opts), fakeRoles{"StepFunctionRole": role}
}

func TestBuild(t *testing.T) {
	s, roles := setup(t)
	path := writeFile(t, "csv.json", definition)

	out, err := Build(s, config.StepFunctions{
		Role: "StepFunctionRole",
		StateMachines: map[string]config.StateMachine{
			"CsvUpload": {
				Name:           "csv-upload",
				DefinitionFile: path,
				Type:           "STANDARD",
				Substitutions: map[string]string{
					"CrawlerFunction": "{{ .Functions.CsvUploadCrawlerFunc }}",
					"CrawlerArn":      "arn:${AWS::Partition}:lambda:${AWS::Region}:${AWS::AccountId}:function:{{ .Functions.CsvUploadCrawlerFunc }}",
					"Job":             "{{ .Jobs.ItadaUploadCsvToParquet | upper }}",
				},
			},
		},
	}, roles, TemplateData{
		Functions: map[string]string{"CsvUploadCrawlerFunc": "csv-upload-crawler"},
		Jobs:      map[string]string{"ItadaUploadCsvToParquet": "itada_upload_csv_to_parquet"},
	})
	require.NoError(t, err)
	assert.Equal(t, out.StateMachines["CsvUpload"].Ref(), out.Arns()["CsvUpload"])

	tmpl := cfntest.FromGraph(t, s.Graph)
	sm := tmpl.Resource("StepFunctionsCsvUpload")
	assert.Equal(t, "Delete", sm["DeletionPolicy"])
	assert.True(t, cfntest.Match(map[string]any{
		"StateMachineName": "csv-upload",
		"StateMachineType": "STANDARD",
		"RoleArn":          map[string]any{"Fn::GetAtt": []any{"IamStepFunctionRole", "Arn"}},
		"DefinitionString": definition,
		"DefinitionSubstitutions": map[string]any{
			"CrawlerFunction": "csv-upload-crawler",
			"CrawlerArn": map[string]any{
				"Fn::Sub": "arn:${AWS::Partition}:lambda:${AWS::Region}:${AWS::AccountId}:function:csv-upload-crawler",
			},
			"Job": "ITADA_UPLOAD_CSV_TO_PARQUET",
		},
	}, sm["Properties"]), "%v", sm["Properties"])
}

func TestBuild_noStateMachines(t *testing.T) {
	s, _ := setup(t)

	out, err := Build(s, config.StepFunctions{Role: "Missing"}, fakeRoles{}, TemplateData{})
	require.NoError(t, err)
	assert.Empty(t, out.StateMachines)
}

func TestBuild_errors(t *testing.T) {
	tests := []struct {
		name    string
		machine func(t *testing.T) config.StateMachine
		role    string
		wantErr string
	}{
		{
			name: "unknown role",
			machine: func(t *testing.T) config.StateMachine {
				return config.StateMachine{Name: "sm", DefinitionFile: writeFile(t, "sm.json", "{}")}
			},
			role:    "Nope",
			wantErr: "StepFunctions: ",
		},
		{
			name: "missing file",
			machine: func(t *testing.T) config.StateMachine {
				return config.StateMachine{Name: "sm", DefinitionFile: filepath.Join(t.TempDir(), "missing.json")}
			},
			wantErr: "state machine Sm: could not read definition",
		},
		{
			name: "not json",
			machine: func(t *testing.T) config.StateMachine {
				return config.StateMachine{Name: "sm", DefinitionFile: writeFile(t, "sm.json", "StartAt: Crawl")}
			},
			wantErr: "is not valid JSON",
		},
		{
			name: "bad substitution",
			machine: func(t *testing.T) config.StateMachine {
				return config.StateMachine{
					Name:           "sm",
					DefinitionFile: writeFile(t, "sm.json", "{}"),
					Substitutions:  map[string]string{"Fn": "{{ .Lambdas.X }}"},
				}
			},
			wantErr: "state machine Sm: could not render template Sm.Fn",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, roles := setup(t)
			role := tt.role
			if role == "" {
				role = "StepFunctionRole"
			}
			_, err := Build(s, config.StepFunctions{
				Role:          role,
				StateMachines: map[string]config.StateMachine{"Sm": tt.machine(t)},
			}, roles, TemplateData{})
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
