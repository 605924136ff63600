package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.aimuz.me/ghostwriter/config"
)

func newSettingsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change settings",
	}
	cmd.AddCommand(newSettingsShowCmd(opts))
	cmd.AddCommand(newSettingsSetCmd(opts))
	return cmd
}

func newSettingsShowCmd(opts *rootOptions) *cobra.Command {
	var effective bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the settings file contents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openStore()
			if err != nil {
				return err
			}
			s := store.Stored()
			if effective {
				s = store.Snapshot()
			}
			data, err := json.MarshalIndent(s, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal settings: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s\n", store.Path(), data)
			return nil
		},
	}

	cmd.Flags().BoolVar(&effective, "effective", false, "include environment overrides")
	return cmd
}

func newSettingsSetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting",
		Long:  "Change one setting. Keys: " + strings.Join(config.Keys(), ", "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openStore()
			if err != nil {
				return err
			}
			if err := store.Set(args[0], args[1]); err != nil {
				return err
			}

			data, err := json.Marshal(store.Stored())
			if err != nil {
				return fmt.Errorf("marshal settings: %w", err)
			}
			var fields map[string]any
			if err := json.Unmarshal(data, &fields); err != nil {
				return fmt.Errorf("unmarshal settings: %w", err)
			}
			value, ok := fields[args[0]]
			if !ok {
				value = ""
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", args[0], value)
			return nil
		},
	}
}
