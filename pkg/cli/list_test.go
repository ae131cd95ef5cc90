package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/metasolutions/itada-infra/pkg/construct"
	"github.com/metasolutions/itada-infra/pkg/construct/graphtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_listResources(t *testing.T) {
	tests := []struct {
		name     string
		selector string
		debug    bool
		want     []string
	}{
		{
			name:     "sorted by resource id",
			selector: "**",
			want: []string{
				"LOGICAL ID",
				"S3Raw        AWS::S3::Bucket  aws:s3_bucket:S3:Raw",
				"Ec2Itada     AWS::EC2::VPC    aws:vpc:Ec2:Itada",
			},
		},
		{
			name:     "selected",
			selector: "aws:vpc:**",
			want:     []string{"LOGICAL ID", "Ec2Itada"},
		},
		{
			name:     "debug dumps properties",
			selector: "aws:vpc:**",
			debug:    true,
			want:     []string{"LOGICAL ID", "Ec2Itada", "", "aws:vpc:Ec2:Itada", "(construct.Properties)"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := graphtest.MakeGraph(t, construct.NewGraph(), "aws:vpc:Ec2:Itada", "aws:s3_bucket:S3:Raw")

			out := new(bytes.Buffer)
			require.NoError(t, listResources(out, g, tt.selector, tt.debug))

			lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
			require.GreaterOrEqual(t, len(lines), len(tt.want), out.String())
			for i, want := range tt.want {
				if want == "" {
					assert.Empty(t, strings.TrimSpace(lines[i]))
					continue
				}
				assert.Contains(t, strings.Join(strings.Fields(lines[i]), " "), strings.Join(strings.Fields(want), " "))
			}
		})
	}
}
