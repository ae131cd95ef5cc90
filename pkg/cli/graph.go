package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/dominikbraun/graph/draw"
	"github.com/metasolutions/itada-infra/pkg/closenicely"
	"github.com/metasolutions/itada-infra/pkg/construct"
	"github.com/metasolutions/itada-infra/pkg/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newGraphCmd() *cobra.Command {
	var (
		sf     stackFlags
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the resource graph of a stack",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logging.WithLogger(cmd.Context(), zap.L())
			st, err := sf.build(ctx)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer closenicely.OrWarn(ctx, f)
				w = f
			}
			return writeGraph(w, st.Graph, format)
		},
	}
	sf.register(cmd)
	flags := cmd.Flags()
	flags.StringVarP(&format, "format", "f", "yaml", "Output format: yaml or dot")
	flags.StringVarP(&output, "output", "o", "", "Write to file instead of stdout")
	return cmd
}

func writeGraph(w io.Writer, g construct.Graph, format string) error {
	switch format {
	case "yaml":
		return construct.GraphToYAML(g, w)
	case "dot":
		// edges point from the dependent to its dependency, so dependencies are drawn above
		return draw.DOT(g, w, draw.GraphAttribute("rankdir", "BT"))
	default:
		return fmt.Errorf("unknown graph format %q", format)
	}
}
