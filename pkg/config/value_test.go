package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func TestValue_Resolve(t *testing.T) {
	env := map[string]string{"SET": "from-env", "EMPTY": ""}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	tests := []struct {
		name    string
		value   Value
		want    string
		wantErr bool
	}{
		{name: "literal", value: Literal("x"), want: "x"},
		{name: "env", value: FromEnv("SET"), want: "from-env"},
		{name: "env set but empty", value: Value{Env: "EMPTY", Value: "fallback"}, want: ""},
		{name: "env over value", value: Value{Env: "SET", Value: "fallback"}, want: "from-env"},
		{name: "missing env falls back", value: Value{Env: "UNSET", Value: "fallback"}, want: "fallback"},
		{name: "missing required", value: FromEnv("UNSET"), wantErr: true},
		{name: "missing optional", value: Value{Env: "UNSET", Optional: true}, want: ""},
		{name: "zero", value: Value{}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.value.Resolve(lookup)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMissingInput)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValue_Unmarshal(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		json string
		want Value
	}{
		{name: "string", yaml: `v: dev`, json: `{"v": "dev"}`, want: Literal("dev")},
		{name: "number", yaml: `v: 5439`, json: `{"v": 5439}`, want: Literal("5439")},
		{name: "bool", yaml: `v: true`, json: `{"v": true}`, want: Literal("true")},
		{
			name: "env",
			yaml: `v: {env: DB_PASSWORD, secret: true}`,
			json: `{"v": {"env": "DB_PASSWORD", "secret": true}}`,
			want: Value{Env: "DB_PASSWORD", Secret: true},
		},
		{name: "null", yaml: `v: null`, json: `{"v": null}`, want: Value{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var y struct{ V Value }
			if assert.NoError(t, yaml.Unmarshal([]byte(tt.yaml), &y)) {
				assert.Equal(t, tt.want, y.V, "yaml")
			}
			var j struct{ V Value }
			if assert.NoError(t, json.Unmarshal([]byte(tt.json), &j)) {
				assert.Equal(t, tt.want, j.V, "json")
			}
		})
	}
}

func TestValue_String(t *testing.T) {
	assert.Equal(t, "dev", Literal("dev").String())
	assert.Equal(t, "$PW", Value{Env: "PW", Secret: true}.String())
	assert.Equal(t, "<secret>", Value{Value: "hunter2", Secret: true}.String())
}
