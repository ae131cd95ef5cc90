package cli

import (
	"errors"

	"github.com/metasolutions/itada-infra/pkg/logging"
	"github.com/metasolutions/itada-infra/pkg/manifest"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errChanges = errors.New("templates differ")

func newDiffCmd(common *commonConfig) *cobra.Command {
	var (
		sf       stackFlags
		exitCode bool
	)
	cmd := &cobra.Command{
		Use:   "diff <old> [new]",
		Short: "Compare two templates",
		Long:  "Compare two templates. With a single file it is compared to the template the stack synthesizes now.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logging.WithLogger(cmd.Context(), zap.L())
			from, err := manifest.Load(args[0])
			if err != nil {
				return err
			}

			var to *manifest.Document
			if len(args) == 2 {
				if to, err = manifest.Load(args[1]); err != nil {
					return err
				}
			} else {
				st, files, err := sf.synth(ctx)
				if err != nil {
					return err
				}
				raw, err := templateJSON(st, files)
				if err != nil {
					return err
				}
				if to, err = manifest.Parse(raw.Content); err != nil {
					return err
				}
				to.Path = raw.FPath
			}

			changes, err := manifest.Diff(from, to)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if err := manifest.Render(w, changes, common.logOpts.UseColor(w)); err != nil {
				return err
			}
			zap.L().Info("Compared templates",
				zap.String("from", from.Path),
				zap.String("to", to.Path),
				zap.String("changes", manifest.Summary(changes)),
			)
			if exitCode && len(changes) > 0 {
				return errChanges
			}
			return nil
		},
	}
	sf.register(cmd)
	cmd.Flags().BoolVar(&exitCode, "exit-code", false, "Fail when the templates differ")
	return cmd
}
