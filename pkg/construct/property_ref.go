package construct

import (
	"fmt"
	"strings"
)

// PropertyRef points at a value the provisioner only knows once Resource exists. An empty Property refers to
// the resource's primary identifier.
type PropertyRef struct {
	Resource ResourceId
	Property string
}

func (v PropertyRef) String() string {
	if v.Property == "" {
		return v.Resource.String()
	}
	return v.Resource.String() + "#" + v.Property
}

func (v PropertyRef) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *PropertyRef) Parse(s string) error {
	res, prop, _ := strings.Cut(s, "#")
	if err := v.Resource.Parse(res); err != nil {
		return fmt.Errorf("invalid PropertyRef format %q: %w", s, err)
	}
	v.Property = prop
	return nil
}

func (v *PropertyRef) UnmarshalText(b []byte) error {
	if err := v.Parse(string(b)); err != nil {
		return err
	}
	return v.Resource.Validate()
}
