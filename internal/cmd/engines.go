package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.aimuz.me/ghostwriter/internal/app"
)

func newEnginesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "List speech engines and whether they are ready",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openStore()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ACTIVE\tNAME\tREADY\tDESCRIPTION")
			for _, e := range app.ListEngines(store.Snapshot()) {
				active := ""
				if e.Active {
					active = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", active, e.Name, e.IsReady, e.DisplayName)
			}
			return w.Flush()
		},
	}
}
