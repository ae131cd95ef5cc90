package cli

import (
	"fmt"
	"io"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/davecgh/go-spew/spew"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/metasolutions/itada-infra/pkg/construct"
	"github.com/metasolutions/itada-infra/pkg/logging"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/resources"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newListCmd() *cobra.Command {
	var (
		sf       stackFlags
		selector string
		debug    bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the resources of a stack",
		Long: "List the resources of a stack by logical id. --select filters on the resource id " +
			"(provider:type:namespace:name), eg 'aws:glue_job:**' or '*:*:S3:*'.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !doublestar.ValidatePattern(selector) {
				return fmt.Errorf("invalid selector %q", selector)
			}
			ctx := logging.WithLogger(cmd.Context(), zap.L())
			st, err := sf.build(ctx)
			if err != nil {
				return err
			}
			return listResources(cmd.OutOrStdout(), st.Graph, selector, debug)
		},
	}
	sf.register(cmd)
	flags := cmd.Flags()
	flags.StringVar(&selector, "select", "**", "Glob over resource ids")
	flags.BoolVar(&debug, "debug", false, "Dump the properties of each resource")
	return cmd
}

func listResources(w io.Writer, g construct.Graph, selector string, debug bool) error {
	ids, err := construct.SortedIds(g)
	if err != nil {
		return err
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.Style().Options = table.OptionsNoBordersAndSeparators
	tw.AppendHeader(table.Row{"Logical Id", "Type", "Resource Id"})

	var selected []construct.ResourceId
	for _, id := range ids {
		// the pattern was validated, so Match cannot fail
		if ok, _ := doublestar.Match(selector, id.String()); !ok {
			continue
		}
		cfnType := id.Type
		if k, err := resources.KindOf(id); err == nil {
			cfnType = k.CfnType
		}
		tw.AppendRow(table.Row{id.LogicalId(), cfnType, id.String()})
		selected = append(selected, id)
	}
	tw.SortBy([]table.SortBy{{Number: 3, Mode: table.Asc}})
	tw.Render()

	if !debug {
		return nil
	}
	dumper := spew.ConfigState{Indent: "  ", SortKeys: true, DisablePointerAddresses: true}
	for _, id := range selected {
		r, err := g.Vertex(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\n%s\n", id)
		dumper.Fdump(w, r.Properties)
	}
	return nil
}
