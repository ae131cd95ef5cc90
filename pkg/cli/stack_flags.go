package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/metasolutions/itada-infra/pkg/config"
	"github.com/metasolutions/itada-infra/pkg/infra/cfn"
	kio "github.com/metasolutions/itada-infra/pkg/io"
	"github.com/metasolutions/itada-infra/pkg/stack"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// stackFlags select and configure the stack for every command that synthesizes one.
type stackFlags struct {
	stack      string
	configFile string
	sets       []string
	envFiles   []string
	secrets    string
	noDotenv   bool
}

func (f *stackFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.stack, "stack", "s", "", fmt.Sprintf("Stack to build (%s)", strings.Join(stack.Names(), ", ")))
	flags.StringVarP(&f.configFile, "config", "c", "", "Config file (json, yaml or toml) merged over the stack defaults")
	flags.StringArrayVar(&f.sets, "set", nil, "Override a config value, eg --set redshift.number_of_nodes=2")
	flags.StringArrayVar(&f.envFiles, "env-file", nil, "Load environment variables from file")
	flags.StringVar(&f.secrets, "secrets", "", "How secret inputs are written: inline or parameter")
	flags.BoolVar(&f.noDotenv, "no-dotenv", false, "Do not load .env from the working directory")
}

func (f *stackFlags) loadOptions() config.LoadOptions {
	sets := f.sets
	if f.secrets != "" {
		sets = append(append([]string{}, sets...), "secrets="+f.secrets)
	}
	return config.LoadOptions{
		Stack:          f.stack,
		File:           f.configFile,
		Sets:           sets,
		EnvFiles:       f.envFiles,
		LoadDefaultEnv: !f.noDotenv,
	}
}

func (f *stackFlags) build(ctx context.Context) (*stack.Stack, error) {
	app, err := config.Load(f.loadOptions())
	if err != nil {
		return nil, errors.Wrap(err, "could not load config")
	}
	st, err := stack.New(app.Stack, app)
	if err != nil {
		return nil, err
	}
	st.Lookup = os.LookupEnv
	if err := st.Build(ctx); err != nil {
		return nil, errors.Wrapf(err, "could not build stack %s", app.Stack)
	}
	return st, nil
}

// synth builds the stack and translates it into the template files.
func (f *stackFlags) synth(ctx context.Context) (*stack.Stack, []kio.File, error) {
	st, err := f.build(ctx)
	if err != nil {
		return nil, nil, err
	}
	plugin := cfn.Plugin{StackName: st.Name, Description: st.Config.Description}
	files, err := plugin.Translate(ctx, st.Graph)
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not translate stack")
	}
	return st, files, nil
}

func templateJSON(st *stack.Stack, files []kio.File) (*kio.RawFile, error) {
	want := st.Name + ".template.json"
	for _, f := range files {
		if raw, ok := f.(*kio.RawFile); ok && raw.FPath == want {
			return raw, nil
		}
	}
	return nil, errors.Errorf("%s was not generated", want)
}
