// Package cfntest asserts on the template generated from a graph.
package cfntest

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"testing"

	"github.com/metasolutions/itada-infra/pkg/construct"
	"github.com/metasolutions/itada-infra/pkg/infra/cfn"
	"github.com/stretchr/testify/assert"
)

type Template struct {
	t *testing.T
	// Doc is the template decoded from its JSON form, so numbers are float64 as in any parsed template.
	Doc map[string]any
}

// FromGraph builds the template of the graph and fails the test if that is not possible.
func FromGraph(t *testing.T, g construct.Graph) *Template {
	t.Helper()
	tmpl, err := cfn.BuildTemplate(g, "")
	if err != nil {
		t.Fatalf("could not build template: %v", err)
	}
	return &Template{t: t, Doc: normalize(t, tmpl).(map[string]any)}
}

func normalize(t *testing.T, v any) any {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("could not marshal %T: %v", v, err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("could not unmarshal %T: %v", v, err)
	}
	return out
}

func (tpl *Template) section(name string) map[string]any {
	m, _ := tpl.Doc[name].(map[string]any)
	return m
}

// FindResources returns the resources of the CloudFormation type whose properties match props, keyed by
// logical id. A nil props matches every resource of the type.
func (tpl *Template) FindResources(cfnType string, props map[string]any) map[string]map[string]any {
	tpl.t.Helper()
	var want any
	if props != nil {
		want = normalize(tpl.t, props)
	}
	found := make(map[string]map[string]any)
	for lid, v := range tpl.section("Resources") {
		res := v.(map[string]any)
		if res["Type"] != cfnType {
			continue
		}
		if want != nil && !Match(want, res["Properties"]) {
			continue
		}
		found[lid] = res
	}
	return found
}

// ResourceCountIs asserts the number of resources of the CloudFormation type.
func (tpl *Template) ResourceCountIs(cfnType string, count int) bool {
	tpl.t.Helper()
	return assert.Len(tpl.t, tpl.FindResources(cfnType, nil), count, "count of %s", cfnType)
}

// HasResourceProperties asserts that at least one resource of the type matches props, see [Match].
func (tpl *Template) HasResourceProperties(cfnType string, props map[string]any) bool {
	tpl.t.Helper()
	if len(tpl.FindResources(cfnType, props)) > 0 {
		return true
	}
	var candidates []string
	for lid, res := range tpl.FindResources(cfnType, nil) {
		b, _ := json.MarshalIndent(res["Properties"], "", "  ")
		candidates = append(candidates, fmt.Sprintf("%s: %s", lid, b))
	}
	sort.Strings(candidates)
	want, _ := json.MarshalIndent(props, "", "  ")
	return assert.Fail(tpl.t, fmt.Sprintf("no %s matches", cfnType), "want: %s\ncandidates:\n%v", want, candidates)
}

// Resource returns the resource with the logical id, failing the test when it does not exist.
func (tpl *Template) Resource(logicalId string) map[string]any {
	tpl.t.Helper()
	res, ok := tpl.section("Resources")[logicalId].(map[string]any)
	if !ok {
		tpl.t.Fatalf("no resource %s", logicalId)
	}
	return res
}

func (tpl *Template) HasOutput(name string, value any) bool {
	tpl.t.Helper()
	out, ok := tpl.section("Outputs")[name].(map[string]any)
	if !assert.True(tpl.t, ok, "missing output %s", name) {
		return false
	}
	return assert.True(tpl.t, Match(normalize(tpl.t, value), out["Value"]), "output %s: %v", name, out["Value"])
}

func (tpl *Template) Parameters() map[string]any {
	return tpl.section("Parameters")
}

// Match reports whether actual contains want: objects match when every key of want matches, lists when they
// have the same length and every item matches, scalars when equal.
func Match(want, actual any) bool {
	switch w := want.(type) {
	case map[string]any:
		a, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		for k, wv := range w {
			av, ok := a[k]
			if !ok || !Match(wv, av) {
				return false
			}
		}
		return true
	case []any:
		a, ok := actual.([]any)
		if !ok || len(a) != len(w) {
			return false
		}
		for i := range w {
			if !Match(w[i], a[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(want, actual)
}
