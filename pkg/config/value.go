package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type (
	// Value is an input that is either written in the config or read from the environment at synthesis time.
	// A scalar in the config (`port: 5439`) is shorthand for `{value: "5439"}`.
	Value struct {
		// Env is the environment variable to read. When it is set, it takes precedence over Value.
		Env   string `json:"env,omitempty" yaml:"env,omitempty" toml:"env,omitempty"`
		Value string `json:"value,omitempty" yaml:"value,omitempty" toml:"value,omitempty"`
		// Secret values are never written into the template in `parameter` secrets mode.
		Secret   bool `json:"secret,omitempty" yaml:"secret,omitempty" toml:"secret,omitempty"`
		Optional bool `json:"optional,omitempty" yaml:"optional,omitempty" toml:"optional,omitempty"`
	}

	// LookupFunc looks up an environment variable, see [os.LookupEnv].
	LookupFunc func(key string) (string, bool)

	SecretsMode string
)

const (
	// SecretsInline resolves every value at synthesis time and writes it into the template.
	SecretsInline SecretsMode = "inline"
	// SecretsParameter turns secret values into NoEcho template parameters.
	SecretsParameter SecretsMode = "parameter"
)

var ErrMissingInput = errors.New("missing input")

// Literal is a Value that is always v.
func Literal(v string) Value {
	return Value{Value: v}
}

// FromEnv is a required Value read from the environment variable.
func FromEnv(env string) Value {
	return Value{Env: env}
}

func (v Value) IsZero() bool {
	return v == Value{}
}

func (v Value) isLiteral() bool {
	return v.Env == "" && !v.Secret && !v.Optional
}

func (v Value) String() string {
	if v.Env == "" {
		if v.Secret {
			return "<secret>"
		}
		return v.Value
	}
	return "$" + v.Env
}

// Resolve returns the value of the input. A missing required input returns an error wrapping [ErrMissingInput],
// a missing optional input resolves to the empty string.
func (v Value) Resolve(lookup LookupFunc) (string, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v.Env != "" {
		if s, ok := lookup(v.Env); ok {
			return s, nil
		}
	}
	if v.Value != "" {
		return v.Value, nil
	}
	if v.Optional {
		return "", nil
	}
	if v.Env != "" {
		return "", fmt.Errorf("%w: environment variable %s is not set", ErrMissingInput, v.Env)
	}
	return "", fmt.Errorf("%w: no value or environment variable given", ErrMissingInput)
}

func (v *Value) UnmarshalText(text []byte) error {
	*v = Value{Value: string(text)}
	return nil
}

func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		if node.Tag == "!!null" {
			*v = Value{}
			return nil
		}
		*v = Value{Value: node.Value}
		return nil
	}
	type value Value
	var vv value
	if err := node.Decode(&vv); err != nil {
		return err
	}
	*v = Value(vv)
	return nil
}

func (v Value) MarshalYAML() (any, error) {
	if v.isLiteral() {
		return v.Value, nil
	}
	type value Value
	return value(v), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = Value{}
		return nil

	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Value{Value: s}
		return nil

	case len(data) > 0 && data[0] == '{':
		type value Value
		var vv value
		if err := json.Unmarshal(data, &vv); err != nil {
			return err
		}
		*v = Value(vv)
		return nil
	}
	// numbers and booleans
	*v = Value{Value: string(data)}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.isLiteral() {
		return json.Marshal(v.Value)
	}
	type value Value
	return json.Marshal(value(v))
}
