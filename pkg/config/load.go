package config

import (
	"embed"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/metasolutions/itada-infra/pkg/construct"
	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

//go:embed defaults/*.yaml
var defaultsFS embed.FS

const DefaultStack = "itada"

type LoadOptions struct {
	// Stack picks the embedded defaults. When empty, the `stack` of the config file is used, then [DefaultStack].
	Stack string
	// File is an optional user config merged over the defaults.
	File string
	// Sets are `path.to.field=value` overrides applied last. The value is parsed as YAML, so lists
	// (`[a, b]`) and numbers are accepted.
	Sets []string
	// EnvFiles are loaded into the process environment. Variables already set are not overridden.
	EnvFiles []string
	// LoadDefaultEnv loads `.env` from the working directory if it exists.
	LoadDefaultEnv bool
}

// Stacks lists the stacks that have embedded defaults.
func Stacks() []string {
	entries, err := fs.ReadDir(defaultsFS, "defaults")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	return names
}

// Defaults returns the embedded configuration of the stack.
func Defaults(stack string) (Application, error) {
	m, err := defaultsMap(stack)
	if err != nil {
		return Application{}, err
	}
	var app Application
	if err := decodeMap(m, &app); err != nil {
		return Application{}, fmt.Errorf("could not decode defaults for %s: %w", stack, err)
	}
	return app, nil
}

func defaultsMap(stack string) (map[string]any, error) {
	f, err := defaultsFS.Open(path.Join("defaults", stack+".yaml"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no defaults for stack %q (available: %s)", stack, strings.Join(Stacks(), ", "))
		}
		return nil, err
	}
	defer f.Close() // nolint:errcheck
	return readMap(f, "yaml")
}

// Load builds the application config: the embedded defaults of the stack, then the user file, then the
// `--set` overrides. Maps are merged key by key so a user file only needs the fields it changes, lists
// replace. Setting a key to null removes it. The result is validated.
func Load(opts LoadOptions) (Application, error) {
	if err := loadEnv(opts); err != nil {
		return Application{}, err
	}

	var user map[string]any
	format := "yaml"
	if opts.File != "" {
		var err error
		format, err = formatOf(opts.File)
		if err != nil {
			return Application{}, err
		}
		f, err := os.Open(opts.File)
		if err != nil {
			return Application{}, err
		}
		user, err = readMap(f, format)
		_ = f.Close()
		if err != nil {
			return Application{}, fmt.Errorf("could not read config %s: %w", opts.File, err)
		}
	}

	stack := opts.Stack
	if stack == "" {
		if s, ok := user["stack"].(string); ok {
			stack = s
		} else {
			stack = DefaultStack
		}
	}

	merged, err := defaultsMap(stack)
	if err != nil {
		return Application{}, err
	}
	mergeMaps(merged, user)
	merged["stack"] = stack

	for _, set := range opts.Sets {
		if err := applySet(merged, set); err != nil {
			return Application{}, err
		}
	}

	var app Application
	if err := decodeMap(merged, &app); err != nil {
		return Application{}, fmt.Errorf("invalid config: %w", err)
	}
	app.Format = format
	if opts.File != "" {
		app.resolvePaths(filepath.Dir(opts.File))
	}
	if err := app.Validate(); err != nil {
		return app, err
	}
	return app, nil
}

// resolvePaths makes the file references relative to the config file absolute.
func (a *Application) resolvePaths(dir string) {
	if a.StepFunctions == nil {
		return
	}
	for key, sm := range a.StepFunctions.StateMachines {
		if sm.DefinitionFile == "" || filepath.IsAbs(sm.DefinitionFile) {
			continue
		}
		sm.DefinitionFile = filepath.Join(dir, sm.DefinitionFile)
		a.StepFunctions.StateMachines[key] = sm
	}
}

func loadEnv(opts LoadOptions) error {
	var files []string
	if opts.LoadDefaultEnv {
		if _, err := os.Stat(".env"); err == nil {
			files = append(files, ".env")
		}
	}
	files = append(files, opts.EnvFiles...)
	if len(files) == 0 {
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("could not load env files %v: %w", files, err)
	}
	return nil
}

func readMap(r io.Reader, format string) (map[string]any, error) {
	m := map[string]any{}
	var err error
	switch format {
	case "yaml":
		err = yaml.NewDecoder(r).Decode(&m)
		if err == io.EOF {
			err = nil
		}
	case "json":
		err = json.NewDecoder(r).Decode(&m)
	case "toml":
		err = toml.NewDecoder(r).Decode(&m)
	default:
		err = fmt.Errorf("unsupported config format %q", format)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, err
}

// mergeMaps merges src into dst. Nested maps are merged, a null in src deletes the key and every other
// value in src replaces the one in dst.
func mergeMaps(dst, src map[string]any) {
	for k, sv := range src {
		if sv == nil {
			delete(dst, k)
			continue
		}
		sm, srcIsMap := sv.(map[string]any)
		dm, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			mergeMaps(dm, sm)
			continue
		}
		dst[k] = sv
	}
}

func applySet(m map[string]any, set string) error {
	key, raw, ok := strings.Cut(set, "=")
	if !ok || key == "" {
		return fmt.Errorf("invalid --set %q: expected path=value", set)
	}
	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return fmt.Errorf("invalid --set %q: %w", set, err)
	}
	r := construct.Resource{Properties: m}
	if err := r.SetProperty(key, value); err != nil {
		return fmt.Errorf("invalid --set %q: %w", set, err)
	}
	return nil
}

func decodeMap(m map[string]any, app *Application) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		ZeroFields:       false,
		Result:           app,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			scalarTextHook,
			mapstructure.TextUnmarshallerHookFunc(),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(m)
}

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

// scalarTextHook lets numbers and booleans decode into text types, eg `port: 443` into a [Port].
func scalarTextHook(from, to reflect.Type, data any) (any, error) {
	if !reflect.PointerTo(to).Implements(textUnmarshalerType) {
		return data, nil
	}
	switch v := data.(type) {
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	}
	return data, nil
}
