package cfn

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/metasolutions/itada-infra/pkg/construct"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/resources"
	"github.com/metasolutions/itada-infra/pkg/set"
)

const FormatVersion = "2010-09-09"

type (
	Template struct {
		AWSTemplateFormatVersion string               `json:"AWSTemplateFormatVersion"`
		Description              string               `json:"Description,omitempty"`
		Parameters               map[string]Parameter `json:"Parameters,omitempty"`
		Mappings                 map[string]any       `json:"Mappings,omitempty"`
		Resources                map[string]Resource  `json:"Resources"`
		Outputs                  map[string]any       `json:"Outputs,omitempty"`
	}

	Parameter = map[string]any

	Resource struct {
		Type                string         `json:"Type"`
		Properties          map[string]any `json:"Properties,omitempty"`
		DependsOn           []string       `json:"DependsOn,omitempty"`
		DeletionPolicy      string         `json:"DeletionPolicy,omitempty"`
		UpdateReplacePolicy string         `json:"UpdateReplacePolicy,omitempty"`
	}

	templateBuilder struct {
		graph      construct.Graph
		logicalIds map[construct.ResourceId]string
	}
)

// BuildTemplate converts the graph into a template. Every resource is checked against the registered kinds and
// every reference against the attributes of the referenced kind.
func BuildTemplate(g construct.Graph, description string) (*Template, error) {
	ids, err := construct.ReverseTopologicalSort(g)
	if err != nil {
		return nil, err
	}
	tb := &templateBuilder{graph: g, logicalIds: make(map[construct.ResourceId]string, len(ids))}
	if err := tb.assignLogicalIds(ids); err != nil {
		return nil, err
	}

	t := &Template{
		AWSTemplateFormatVersion: FormatVersion,
		Description:              description,
		Resources:                make(map[string]Resource),
	}
	var errs error
	for _, id := range ids {
		r, err := g.Vertex(id)
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		errs = errors.Join(errs, tb.add(t, r))
	}
	if errs != nil {
		return nil, errs
	}
	return t, nil
}

// assignLogicalIds gives every element its template name. Parameters and resources share one namespace
// since both are the target of `Ref`, mappings and outputs each have their own.
func (tb *templateBuilder) assignLogicalIds(ids []construct.ResourceId) error {
	sections := map[string]map[string]construct.ResourceId{}
	var errs error
	for _, id := range ids {
		section := "Resources"
		if id.Provider == resources.CfnProvider {
			switch id.Type {
			case resources.MappingType:
				section = "Mappings"
			case resources.OutputType:
				section = "Outputs"
			}
		}
		lid := id.LogicalId()
		if lid == "" {
			errs = errors.Join(errs, fmt.Errorf("%s has an empty logical id", id))
			continue
		}
		names, ok := sections[section]
		if !ok {
			names = make(map[string]construct.ResourceId)
			sections[section] = names
		}
		if other, ok := names[lid]; ok {
			errs = errors.Join(errs, fmt.Errorf("duplicate logical id %s in %s: %s and %s", lid, section, other, id))
			continue
		}
		names[lid] = id
		tb.logicalIds[id] = lid
	}
	return errs
}

func (tb *templateBuilder) add(t *Template, r *construct.Resource) error {
	lid := tb.logicalIds[r.ID]
	props, err := tb.convertProperties(r.Properties)
	if err != nil {
		return fmt.Errorf("%s: %w", r.ID, err)
	}

	if r.ID.Provider == resources.CfnProvider {
		switch r.ID.Type {
		case resources.ParameterType:
			if t.Parameters == nil {
				t.Parameters = make(map[string]Parameter)
			}
			t.Parameters[lid] = props
		case resources.MappingType:
			if t.Mappings == nil {
				t.Mappings = make(map[string]any)
			}
			t.Mappings[lid] = props
		case resources.OutputType:
			if t.Outputs == nil {
				t.Outputs = make(map[string]any)
			}
			t.Outputs[lid] = props
		default:
			return fmt.Errorf("%s: unsupported template element %q", r.ID, r.ID.Type)
		}
		return nil
	}

	kind, err := resources.KindOf(r.ID)
	if err != nil {
		return err
	}
	res := Resource{Type: kind.CfnType, Properties: props}
	for name, v := range r.Attributes {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%s: attribute %s must be a string, got %T", r.ID, name, v)
		}
		switch name {
		case "DeletionPolicy":
			res.DeletionPolicy = s
		case "UpdateReplacePolicy":
			res.UpdateReplacePolicy = s
		default:
			return fmt.Errorf("%s: unsupported attribute %s", r.ID, name)
		}
	}
	res.DependsOn, err = tb.dependsOn(r)
	if err != nil {
		return err
	}
	t.Resources[lid] = res
	return nil
}

// dependsOn lists the dependencies which are not already implied by a reference in the properties.
func (tb *templateBuilder) dependsOn(r *construct.Resource) ([]string, error) {
	deps, err := construct.DirectDownstreamDependencies(tb.graph, r.ID)
	if err != nil {
		return nil, err
	}
	referenced := make(set.Set[construct.ResourceId])
	for _, ref := range r.References() {
		referenced.Add(ref.Resource)
	}
	var dependsOn []string
	for _, dep := range deps {
		if referenced.Contains(dep) || dep.Provider != resources.AwsProvider {
			continue
		}
		dependsOn = append(dependsOn, tb.logicalIds[dep])
	}
	sort.Strings(dependsOn)
	return dependsOn, nil
}

func (tb *templateBuilder) convertProperties(props construct.Properties) (map[string]any, error) {
	if len(props) == 0 {
		return nil, nil
	}
	v, err := tb.convert(map[string]any(props))
	if err != nil {
		return nil, err
	}
	m, _ := v.(map[string]any)
	return m, nil
}

// convert turns references into intrinsic functions and normalises the containers into `map[string]any` and
// `[]any`. Nil values are dropped.
func (tb *templateBuilder) convert(v any) (any, error) {
	switch v := v.(type) {
	case construct.PropertyRef:
		return tb.refValue(v)

	case *construct.PropertyRef:
		if v == nil {
			return nil, nil
		}
		return tb.refValue(*v)

	case construct.ResourceId:
		return tb.refValue(construct.PropertyRef{Resource: v})

	case string, bool, int, int32, int64, float32, float64:
		return v, nil

	case nil:
		return nil, nil
	}

	val := reflect.ValueOf(v)
	switch val.Kind() {
	case reflect.Pointer, reflect.Interface:
		if val.IsNil() {
			return nil, nil
		}
		return tb.convert(val.Elem().Interface())

	case reflect.Slice, reflect.Array:
		list := make([]any, 0, val.Len())
		var errs error
		for i := 0; i < val.Len(); i++ {
			item, err := tb.convert(val.Index(i).Interface())
			if err != nil {
				errs = errors.Join(errs, fmt.Errorf("[%d]: %w", i, err))
				continue
			}
			if item != nil {
				list = append(list, item)
			}
		}
		return list, errs

	case reflect.Map:
		m := make(map[string]any, val.Len())
		var errs error
		iter := val.MapRange()
		for iter.Next() {
			key, ok := iter.Key().Interface().(string)
			if !ok {
				if s, isStringer := iter.Key().Interface().(fmt.Stringer); isStringer {
					key = s.String()
				} else {
					errs = errors.Join(errs, fmt.Errorf("map key %v is not a string", iter.Key()))
					continue
				}
			}
			item, err := tb.convert(iter.Value().Interface())
			if err != nil {
				errs = errors.Join(errs, fmt.Errorf("%s: %w", key, err))
				continue
			}
			if item != nil {
				m[key] = item
			}
		}
		return m, errs

	case reflect.String:
		return val.String(), nil
	case reflect.Bool:
		return val.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return val.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return val.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return val.Float(), nil
	}
	return nil, fmt.Errorf("unsupported property value of type %T", v)
}

func (tb *templateBuilder) refValue(ref construct.PropertyRef) (any, error) {
	if err := resources.CheckRef(ref); err != nil {
		return nil, err
	}
	lid, ok := tb.logicalIds[ref.Resource]
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref, construct.ErrMissingDependency)
	}
	switch {
	case ref.Resource.Provider == resources.CfnProvider && ref.Resource.Type == resources.MappingType:
		return lid, nil
	case ref.Property == "":
		return map[string]any{"Ref": lid}, nil
	}
	return map[string]any{"Fn::GetAtt": []any{lid, ref.Property}}, nil
}
