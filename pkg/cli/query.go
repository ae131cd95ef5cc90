package cli

import (
	"github.com/metasolutions/itada-infra/pkg/logging"
	"github.com/metasolutions/itada-infra/pkg/manifest"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newQueryCmd() *cobra.Command {
	var (
		sf       stackFlags
		template string
	)
	cmd := &cobra.Command{
		Use:   "query <path>",
		Short: "Query a template with a JSONPath expression",
		Long: "Query a template with a JSONPath expression, eg '$.Resources.*.Type'. Without --template the " +
			"stack is synthesized in memory.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logging.WithLogger(cmd.Context(), zap.L())
			var doc *manifest.Document
			if template != "" {
				var err error
				if doc, err = manifest.Load(template); err != nil {
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
				if doc, err = manifest.Parse(raw.Content); err != nil {
					return err
				}
			}

			nodes, err := doc.Query(args[0])
			if err != nil {
				return err
			}
			if len(nodes) == 0 {
				zap.L().Warn("No match", zap.String("path", args[0]))
				return nil
			}
			out, err := manifest.MarshalNodes(nodes)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	sf.register(cmd)
	cmd.Flags().StringVarP(&template, "template", "t", "", "Template file to query instead of synthesizing")
	return cmd
}
