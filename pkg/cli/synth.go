package cli

import (
	"encoding/hex"
	"errors"

	"github.com/dustin/go-humanize"
	"github.com/metasolutions/itada-infra/pkg/construct"
	kio "github.com/metasolutions/itada-infra/pkg/io"
	"github.com/metasolutions/itada-infra/pkg/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errStrict = errors.New("warnings were logged while synthesizing")

func newSynthCmd(common *commonConfig) *cobra.Command {
	var (
		sf        stackFlags
		outputDir string
		strict    bool
	)
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Write the CloudFormation template of a stack",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logging.WithLogger(cmd.Context(), zap.L())
			st, files, err := sf.synth(ctx)
			if err != nil {
				return err
			}
			if err := kio.OutputTo(ctx, files, outputDir); err != nil {
				return err
			}
			n, _ := st.Graph.Order()
			hash, err := construct.Hash(st.Graph)
			if err != nil {
				return err
			}
			zap.L().Info("Synthesized",
				logging.StackField(st.Name),
				zap.String("resources", humanize.Comma(int64(n))),
				zap.String("dir", outputDir),
				zap.String("graph", hex.EncodeToString(hash)[:12]),
			)
			if strict && common.problems != nil && common.problems.HadWarnings() {
				return errStrict
			}
			return nil
		},
	}
	sf.register(cmd)
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "out", "Directory to write the template to")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when any warning was logged")
	return cmd
}
