package cli

import (
	"github.com/metasolutions/itada-infra/pkg/config"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	var (
		sf     stackFlags
		format string
	)
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the resolved config of a stack",
		Long:  "Print the stack defaults with the config file and --set overrides applied, after validation.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := config.Load(sf.loadOptions())
			if err != nil {
				return errors.Wrap(err, "could not load config")
			}
			return app.Write(cmd.OutOrStdout(), format)
		},
	}
	sf.register(cmd)
	cmd.Flags().StringVar(&format, "format", "yaml", "Output format: yaml, json or toml")
	return cmd
}
