package manifest

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/r3labs/diff"
)

type ChangeType string

const (
	Added   ChangeType = "added"
	Removed ChangeType = "removed"
	Changed ChangeType = "changed"
)

type Change struct {
	Type ChangeType
	Path []string
	From any
	To   any
}

func (c Change) PathString() string {
	return strings.Join(c.Path, ".")
}

// Diff compares two templates. Entries of the top-level sections (resources, outputs, parameters ...) that only
// exist on one side are reported whole, entries on both sides are compared field by field ignoring list order.
func Diff(from, to *Document) ([]Change, error) {
	a, err := from.Value()
	if err != nil {
		return nil, fmt.Errorf("could not decode %s: %w", from.Path, err)
	}
	b, err := to.Value()
	if err != nil {
		return nil, fmt.Errorf("could not decode %s: %w", to.Path, err)
	}
	differ, err := diff.NewDiffer(diff.SliceOrdering(false))
	if err != nil {
		return nil, err
	}

	var changes []Change
	for _, key := range unionKeys(a, b) {
		av, bv := a[key], b[key]
		am, aIsMap := av.(map[string]any)
		bm, bIsMap := bv.(map[string]any)
		if !aIsMap || !bIsMap {
			changes = append(changes, compare(differ, []string{key}, av, bv)...)
			continue
		}
		for _, entry := range unionKeys(am, bm) {
			changes = append(changes, compare(differ, []string{key, entry}, am[entry], bm[entry])...)
		}
	}
	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].PathString() < changes[j].PathString()
	})
	return changes, nil
}

func compare(differ *diff.Differ, path []string, from, to any) []Change {
	switch {
	case from == nil && to == nil:
		return nil
	case from == nil:
		return []Change{{Type: Added, Path: path, To: to}}
	case to == nil:
		return []Change{{Type: Removed, Path: path, From: from}}
	}

	changelog, err := differ.Diff(from, to)
	if err != nil {
		// mismatched types, such as a literal replaced by a Ref, can only be reported as a whole
		return []Change{{Type: Changed, Path: path, From: from, To: to}}
	}
	changes := make([]Change, 0, len(changelog))
	for _, c := range changelog {
		ch := Change{
			Path: append(append([]string{}, path...), c.Path...),
			From: c.From,
			To:   c.To,
		}
		switch c.Type {
		case diff.CREATE:
			ch.Type = Added
		case diff.DELETE:
			ch.Type = Removed
		default:
			ch.Type = Changed
		}
		changes = append(changes, ch)
	}
	return changes
}

func unionKeys(a, b map[string]any) []string {
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		keys = append(keys, k)
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Summary counts the changes by type, eg "2 added, 0 removed, 1 changed".
func Summary(changes []Change) string {
	counts := make(map[ChangeType]int, 3)
	for _, c := range changes {
		counts[c.Type]++
	}
	return fmt.Sprintf("%d added, %d removed, %d changed", counts[Added], counts[Removed], counts[Changed])
}

// Render writes one line per change, coloured by type when useColor is set.
func Render(w io.Writer, changes []Change, useColor bool) error {
	styles := map[ChangeType]*color.Color{
		Added:   color.New(color.FgGreen),
		Removed: color.New(color.FgRed),
		Changed: color.New(color.FgYellow),
	}
	for _, c := range styles {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	for _, c := range changes {
		var line string
		switch c.Type {
		case Added:
			line = fmt.Sprintf("+ %s: %s", c.PathString(), formatValue(c.To))
		case Removed:
			line = fmt.Sprintf("- %s: %s", c.PathString(), formatValue(c.From))
		default:
			line = fmt.Sprintf("~ %s: %s -> %s", c.PathString(), formatValue(c.From), formatValue(c.To))
		}
		if _, err := styles[c.Type].Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return v
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
