package templateutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		data    any
		want    string
		wantErr string
	}{
		{
			name: "field",
			text: "lambda_funcs/{{ .FunctionName }}.py",
			data: struct{ FunctionName string }{"aurora-sync"},
			want: "lambda_funcs/aurora-sync.py",
		},
		{
			name: "map key",
			text: "s3://{{ .bucket }}/scripts",
			data: map[string]string{"bucket": "itada"},
			want: "s3://itada/scripts",
		},
		{
			name: "sprig",
			text: `{{ .name | snakecase }}-{{ "x" | repeat 3 }}`,
			data: map[string]string{"name": "AuroraSync"},
			want: "aurora_sync-xxx",
		},
		{
			name: "local funcs",
			text: `{{ fileTrimExt (fileBase .path) }} {{ json .list }} {{ joinString .list "+" }}`,
			data: map[string]any{"path": "a/b/job.py", "list": []string{"a", "b"}},
			want: `job ["a","b"] a+b`,
		},
		{
			name:    "missing key",
			text:    "{{ .nope }}",
			data:    map[string]string{},
			wantErr: "could not render template test",
		},
		{
			name:    "bad syntax",
			text:    "{{ .nope ",
			wantErr: "could not parse template test",
		},
		{
			name:    "non hermetic func",
			text:    `{{ env "HOME" }}`,
			wantErr: "could not parse template test",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render("test", tt.text, tt.data)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
