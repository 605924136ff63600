package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"
	"go.aimuz.me/ghostwriter/config"
)

// rootOptions are the flags shared by every command.
type rootOptions struct {
	configPath string
	logLevel   string
	headless   bool
}

// dataDir is where settings, history and logs live.
func (o *rootOptions) dataDir() (string, error) {
	if o.configPath != "" {
		return filepath.Dir(o.configPath), nil
	}
	return config.Dir()
}

func (o *rootOptions) openStore() (*config.Store, error) {
	return config.Open(o.configPath)
}

// NewRootCmd creates the ghostwriter command. Without a subcommand it runs
// the dictation app.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "ghostwriter",
		Short: "Local speech-to-text dictation",
		Long: "GhostWriter - press a hotkey, speak, press it again and the transcription is typed " +
			"into whatever application has focus. Speech is recognised on this machine.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, opts)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "settings file (default <user config dir>/ghostwriter/settings.json)")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.Flags().BoolVar(&opts.headless, "headless", false, "run without the tray icon until interrupted")

	rootCmd.AddCommand(NewVersionCmd())
	rootCmd.AddCommand(newHistoryCmd(opts))
	rootCmd.AddCommand(newSettingsCmd(opts))
	rootCmd.AddCommand(newModelCmd(opts))
	rootCmd.AddCommand(newEnginesCmd(opts))

	return rootCmd
}
