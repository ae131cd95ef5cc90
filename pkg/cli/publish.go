package cli

import (
	"fmt"

	"github.com/metasolutions/itada-infra/pkg/logging"
	"github.com/metasolutions/itada-infra/pkg/publish"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newPublishCmd() *cobra.Command {
	var (
		sf     stackFlags
		opts   publish.Options
		region string
	)
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Upload the synthesized template to S3",
		Long: "Synthesize the stack, check the function code it references exists and upload the template for the " +
			"provisioner. The bucket may use {{ .Account }} and {{ .Region }}.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logging.WithLogger(cmd.Context(), zap.L())
			st, files, err := sf.synth(ctx)
			if err != nil {
				return err
			}
			objects, unchecked := publish.CodeObjects(st.Outputs.Lambda)
			if len(unchecked) > 0 {
				zap.L().Warn("Code is in a bucket the stack creates, it cannot be checked",
					zap.Strings("functions", unchecked))
			}

			p, err := publish.NewPublisher(ctx, region)
			if err != nil {
				return err
			}
			if opts.Prefix == "" {
				opts.Prefix = st.Name
			}
			result, err := p.Publish(ctx, opts, files, objects)
			if err != nil {
				return errors.Wrap(err, "could not publish")
			}
			for _, key := range result.Keys {
				fmt.Fprintf(cmd.OutOrStdout(), "s3://%s/%s\n", result.Bucket, key)
			}
			return nil
		},
	}
	sf.register(cmd)
	flags := cmd.Flags()
	flags.StringVar(&opts.Bucket, "bucket", "", "Bucket to upload to")
	flags.StringVar(&opts.Prefix, "key", "", "Key prefix, the stack name by default")
	flags.StringVar(&region, "region", "", "AWS region, from the environment by default")
	flags.BoolVar(&opts.SkipPreflight, "skip-preflight", false, "Do not check the function code exists")
	_ = cmd.MarkFlagRequired("bucket")
	return cmd
}
