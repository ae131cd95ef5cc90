package construct

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

type (
	// Properties are the provider-defined settings of a resource. Values are plain Go values (strings, numbers,
	// bools, maps and slices of them), [PropertyRef]s to other resources, or intrinsic maps built from those.
	Properties map[string]any
)

func (r *Resource) SetProperty(pathStr string, value any) error {
	if r.Properties == nil {
		r.Properties = Properties{}
	}
	path, err := r.PropertyPath(pathStr)
	if err != nil {
		return err
	}
	return path.Set(value)
}

func (r *Resource) GetProperty(pathStr string) (any, error) {
	path, err := r.PropertyPath(pathStr)
	if err != nil {
		return nil, err
	}
	return path.Get(), nil
}

// AppendProperty appends value to the array at the path, creating it if it is not yet set.
func (r *Resource) AppendProperty(pathStr string, value any) error {
	if r.Properties == nil {
		r.Properties = Properties{}
	}
	path, err := r.PropertyPath(pathStr)
	if err != nil {
		return err
	}
	return path.Append(value)
}

// RemoveProperty removes the value at the path. With a non-nil value, the path must be an array and only
// the matching elements are removed from it.
func (r *Resource) RemoveProperty(pathStr string, value any) error {
	path, err := r.PropertyPath(pathStr)
	if err != nil {
		return err
	}
	return path.Remove(value)
}

type (
	PropertyPathItem interface {
		Get() any
		Set(value any) error
		Remove(value any) error
		Append(value any) error

		parent() PropertyPathItem
	}

	// PropertyPath is a resolved path into a resource's properties, eg `Tags[0].Value`.
	PropertyPath []PropertyPathItem

	mapValuePathItem struct {
		_parent PropertyPathItem
		m       reflect.Value
		key     reflect.Value
	}

	arrayIndexPathItem struct {
		_parent PropertyPathItem
		a       reflect.Value
		index   int
	}

	PropertyPathError struct {
		Path  []string
		Cause error
	}
)

func splitPath(path string) []string {
	var parts []string
	var delim string
	for path != "" {
		idx := strings.IndexAny(path, ".[")
		if idx == -1 {
			parts = append(parts, delim+path)
			break
		}
		parts = append(parts, delim+path[:idx])
		delim = path[idx : idx+1]
		path = path[idx+1:]
	}
	return parts
}

func deref(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	return v
}

func (r *Resource) PropertyPath(pathStr string) (PropertyPath, error) {
	parts := splitPath(pathStr)
	if len(parts) == 0 {
		return nil, errors.New("empty path")
	}
	path := make(PropertyPath, len(parts))
	value := reflect.ValueOf(r.Properties)
	for i, part := range parts {
		var prev PropertyPathItem
		if i > 0 {
			prev = path[i-1]
		}
		value = deref(value)

		if part[0] != '[' {
			part = strings.TrimPrefix(part, ".")
			if value.IsValid() && value.Kind() != reflect.Map {
				return nil, &PropertyPathError{Path: parts[:i], Cause: fmt.Errorf("expected map, got %s", value.Type())}
			}
			item := mapValuePathItem{_parent: prev, m: value, key: reflect.ValueOf(part)}
			path[i] = item
			if value.IsValid() {
				value = value.MapIndex(item.key)
			}
			continue
		}

		if i == 0 {
			return nil, &PropertyPathError{Path: parts[:1], Cause: errors.New("path cannot start with an array index")}
		}
		if !value.IsValid() || (value.Kind() != reflect.Slice && value.Kind() != reflect.Array) {
			return nil, &PropertyPathError{Path: parts[:i], Cause: fmt.Errorf("expected array, got %v", value.Kind())}
		}
		if len(part) < 2 || part[len(part)-1] != ']' {
			return nil, &PropertyPathError{Path: parts[:i+1], Cause: fmt.Errorf("invalid array index format, got %q", part)}
		}
		idx, err := strconv.Atoi(part[1 : len(part)-1])
		if err != nil {
			return nil, &PropertyPathError{Path: parts[:i+1], Cause: err}
		}
		if idx < 0 || idx >= value.Len() {
			return nil, &PropertyPathError{
				Path:  parts[:i+1],
				Cause: fmt.Errorf("array index out of bounds: %d (length %d)", idx, value.Len()),
			}
		}
		path[i] = arrayIndexPathItem{_parent: prev, a: value, index: idx}
		value = value.Index(idx)
	}
	return path, nil
}

func (e *PropertyPathError) Error() string {
	return fmt.Sprintf("error in path %s: %v", strings.Join(e.Path, ""), e.Cause)
}

func (e *PropertyPathError) Unwrap() error {
	return e.Cause
}

func itemToPath(i PropertyPathItem) []string {
	var items PropertyPath
	for i != nil {
		items = append(PropertyPath{i}, items...)
		i = i.parent()
	}
	return items.Parts()
}

func pathPanicRecover(i PropertyPathItem, operation string, err *error) {
	if r := recover(); r != nil {
		rerr, ok := r.(error)
		if !ok {
			rerr = fmt.Errorf("panic: %v", r)
		}
		*err = &PropertyPathError{
			Path:  itemToPath(i),
			Cause: fmt.Errorf("recovered panic during '%s': %w", operation, rerr),
		}
	}
}

var anyType = reflect.TypeOf((*any)(nil)).Elem()

func (i mapValuePathItem) Set(value any) (err error) {
	defer pathPanicRecover(i, "Set on map", &err)
	if !i.m.IsValid() {
		i.m = reflect.MakeMap(reflect.MapOf(i.key.Type(), anyType))
		if err := i._parent.Set(i.m.Interface()); err != nil {
			return err
		}
	}
	if value == nil {
		i.m.SetMapIndex(i.key, reflect.Zero(i.m.Type().Elem()))
		return nil
	}
	i.m.SetMapIndex(i.key, reflect.ValueOf(value))
	return nil
}

// appendValue appends value (either a single element or a slice of them) to the array held in appendTo.
func appendValue(appendTo reflect.Value, value reflect.Value) (reflect.Value, error) {
	a := deref(appendTo)
	if !a.IsValid() {
		if value.Kind() == reflect.Slice || value.Kind() == reflect.Array {
			a = reflect.MakeSlice(reflect.SliceOf(value.Type().Elem()), 0, value.Len())
		} else {
			a = reflect.MakeSlice(reflect.SliceOf(anyType), 0, 1)
		}
	}
	if a.Kind() != reflect.Slice {
		return a, fmt.Errorf("expected array destination for append, got %s", a.Kind())
	}

	var values []reflect.Value
	switch {
	case (value.Kind() == reflect.Slice || value.Kind() == reflect.Array) && value.Type().Elem().AssignableTo(a.Type().Elem()):
		for i := 0; i < value.Len(); i++ {
			values = append(values, value.Index(i))
		}
	case value.Type().AssignableTo(a.Type().Elem()):
		values = []reflect.Value{value}
	default:
		return a, fmt.Errorf("expected %s or []%[1]s value for append, got %s", a.Type().Elem(), value.Type())
	}
	return reflect.Append(a, values...), nil
}

func (i mapValuePathItem) Append(value any) (err error) {
	defer pathPanicRecover(i, "Append on map", &err)
	if !i.m.IsValid() {
		i.m = reflect.MakeMap(reflect.MapOf(i.key.Type(), anyType))
		if err := i._parent.Set(i.m.Interface()); err != nil {
			return err
		}
	}
	appended, err := appendValue(i.m.MapIndex(i.key), reflect.ValueOf(value))
	if err != nil {
		return &PropertyPathError{Path: itemToPath(i), Cause: err}
	}
	i.m.SetMapIndex(i.key, appended)
	return nil
}

func removeByValue(arr reflect.Value, value reflect.Value) (reflect.Value, error) {
	kept := reflect.MakeSlice(reflect.SliceOf(arr.Type().Elem()), 0, arr.Len())
	for i := 0; i < arr.Len(); i++ {
		item := arr.Index(i)
		if !reflect.DeepEqual(item.Interface(), value.Interface()) {
			kept = reflect.Append(kept, item)
		}
	}
	if kept.Len() == arr.Len() {
		return arr, fmt.Errorf("value %v not found in array", value)
	}
	return kept, nil
}

func (i mapValuePathItem) Remove(value any) (err error) {
	defer pathPanicRecover(i, "Remove on map", &err)
	if !i.m.IsValid() {
		return nil
	}
	if value == nil {
		i.m.SetMapIndex(i.key, reflect.Value{})
		return nil
	}
	arr := deref(i.m.MapIndex(i.key))
	if arr.Kind() != reflect.Slice && arr.Kind() != reflect.Array {
		return &PropertyPathError{
			Path:  itemToPath(i),
			Cause: fmt.Errorf("must be array (got %v) to remove by value %v", arr.Kind(), value),
		}
	}
	kept, err := removeByValue(arr, reflect.ValueOf(value))
	if err != nil {
		return &PropertyPathError{Path: itemToPath(i), Cause: err}
	}
	i.m.SetMapIndex(i.key, kept)
	return nil
}

func (i mapValuePathItem) Get() any {
	if !i.m.IsValid() {
		return nil
	}
	v := i.m.MapIndex(i.key)
	if !v.IsValid() {
		return nil
	}
	return v.Interface()
}

func (i mapValuePathItem) parent() PropertyPathItem {
	return i._parent
}

func (i arrayIndexPathItem) Set(value any) (err error) {
	defer pathPanicRecover(i, "Set on array", &err)
	i.a.Index(i.index).Set(reflect.ValueOf(value))
	return nil
}

func (i arrayIndexPathItem) Append(value any) (err error) {
	defer pathPanicRecover(i, "Append on array", &err)
	elem := i.a.Index(i.index)
	appended, err := appendValue(elem, reflect.ValueOf(value))
	if err != nil {
		return &PropertyPathError{Path: itemToPath(i), Cause: err}
	}
	elem.Set(appended)
	return nil
}

func (i arrayIndexPathItem) Remove(value any) (err error) {
	defer pathPanicRecover(i, "Remove on array", &err)
	if value == nil {
		remaining := reflect.MakeSlice(reflect.SliceOf(i.a.Type().Elem()), 0, i.a.Len()-1)
		remaining = reflect.AppendSlice(remaining, i.a.Slice(0, i.index))
		remaining = reflect.AppendSlice(remaining, i.a.Slice(i.index+1, i.a.Len()))
		return i._parent.Set(remaining.Interface())
	}
	arr := deref(i.a.Index(i.index))
	if arr.Kind() != reflect.Slice && arr.Kind() != reflect.Array {
		return &PropertyPathError{
			Path:  itemToPath(i),
			Cause: fmt.Errorf("must be array (got %v) to remove by value %v", arr.Kind(), value),
		}
	}
	kept, err := removeByValue(arr, reflect.ValueOf(value))
	if err != nil {
		return &PropertyPathError{Path: itemToPath(i), Cause: err}
	}
	i.a.Index(i.index).Set(kept)
	return nil
}

func (i arrayIndexPathItem) Get() any {
	return i.a.Index(i.index).Interface()
}

func (i arrayIndexPathItem) parent() PropertyPathItem {
	return i._parent
}

func (p PropertyPath) Set(value any) error {
	return p.Last().Set(value)
}

func (p PropertyPath) Append(value any) error {
	return p.Last().Append(value)
}

func (p PropertyPath) Remove(value any) error {
	return p.Last().Remove(value)
}

func (p PropertyPath) Get() any {
	return p.Last().Get()
}

func (p PropertyPath) parent() PropertyPathItem {
	return p.Last().parent()
}

func (p PropertyPath) Last() PropertyPathItem {
	return p[len(p)-1]
}

func (p PropertyPath) Parts() []string {
	parts := make([]string, len(p))
	for idx, item := range p {
		switch item := item.(type) {
		case mapValuePathItem:
			parts[idx] = item.key.String()
			if idx > 0 {
				parts[idx] = "." + parts[idx]
			}
		case arrayIndexPathItem:
			parts[idx] = fmt.Sprintf("[%d]", item.index)
		}
	}
	return parts
}

func (p PropertyPath) String() string {
	return strings.Join(p.Parts(), "")
}

type WalkPropertiesFunc func(path PropertyPath, err error) error

var (
	SkipProperty = errors.New("skip property")
	stringerType = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
)

func sortedMapKeys(m reflect.Value) ([]reflect.Value, error) {
	var toString func(elem reflect.Value) string
	switch keyType := m.Type().Key(); {
	case keyType.Kind() == reflect.String:
		toString = func(elem reflect.Value) string { return elem.String() }
	case keyType.Implements(stringerType):
		toString = func(elem reflect.Value) string { return elem.Interface().(fmt.Stringer).String() }
	default:
		return nil, fmt.Errorf("expected map[string|fmt.Stringer]..., got %s", m.Type())
	}
	keys := m.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return toString(keys[i]) < toString(keys[j]) })
	return keys, nil
}

func extendPath(p PropertyPath, item PropertyPathItem) PropertyPath {
	next := make(PropertyPath, len(p), len(p)+1)
	copy(next, p)
	return append(next, item)
}

// WalkProperties visits every property value breadth-first, in key order. Returning SkipProperty from fn does not
// descend into the current value, returning StopWalk ends the walk.
func (r *Resource) WalkProperties(fn WalkPropertiesFunc) error {
	props := reflect.ValueOf(r.Properties)
	keys, _ := sortedMapKeys(props)
	queue := make([]PropertyPath, len(keys))
	for i, k := range keys {
		queue[i] = PropertyPath{mapValuePathItem{m: props, key: k}}
	}

	var err error
	var item PropertyPath
	for len(queue) > 0 {
		item, queue = queue[0], queue[1:]

		err = fn(item, err)
		if errors.Is(err, StopWalk) {
			return nil
		}
		if errors.Is(err, SkipProperty) {
			err = nil
			continue
		}

		v := deref(reflect.ValueOf(item.Get()))
		switch v.Kind() {
		case reflect.Map:
			keys, kerr := sortedMapKeys(v)
			if kerr != nil {
				return errors.Join(err, &PropertyPathError{Path: item.Parts(), Cause: kerr})
			}
			for _, k := range keys {
				queue = append(queue, extendPath(item, mapValuePathItem{_parent: item.Last(), m: v, key: k}))
			}

		case reflect.Slice, reflect.Array:
			for i := 0; i < v.Len(); i++ {
				queue = append(queue, extendPath(item, arrayIndexPathItem{_parent: item.Last(), a: v, index: i}))
			}
		}
	}
	return err
}

// References returns every [PropertyRef] nested anywhere in the resource's properties and attributes, in
// walk order and without duplicates.
func (r *Resource) References() []PropertyRef {
	var refs []PropertyRef
	seen := make(map[PropertyRef]struct{})
	collect := func(path PropertyPath, err error) error {
		var ref PropertyRef
		switch v := path.Get().(type) {
		case PropertyRef:
			ref = v
		case *PropertyRef:
			if v == nil {
				return err
			}
			ref = *v
		default:
			return err
		}
		if _, ok := seen[ref]; !ok {
			seen[ref] = struct{}{}
			refs = append(refs, ref)
		}
		return SkipProperty
	}
	_ = r.WalkProperties(collect)
	if len(r.Attributes) > 0 {
		attrs := &Resource{ID: r.ID, Properties: r.Attributes}
		_ = attrs.WalkProperties(collect)
	}
	return refs
}
