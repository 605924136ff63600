package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.aimuz.me/ghostwriter/history"
)

const maxTextWidth = 60

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var n int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent dictation sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := opts.dataDir()
			if err != nil {
				return err
			}
			store, err := history.Open(filepath.Join(dir, "history"))
			if errors.Is(err, history.ErrLocked) {
				return errors.New("history is held by a running ghostwriter; quit it first or use the tray's Copy last transcription")
			}
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Recent(n)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "no sessions yet")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tOUTCOME\tAUDIO\tENGINE\tTEXT")
			for _, r := range records {
				text := r.Text
				if text == "" && r.Error != "" {
					text = "error: " + r.Error
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					r.StartedAt.Local().Format(time.DateTime),
					r.Outcome,
					r.AudioDuration.Round(100*time.Millisecond),
					orDash(r.Engine),
					truncate(text, maxTextWidth),
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&n, "number", "n", 10, "number of sessions to show")
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncate shortens s to n runes on a single line.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
