package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.aimuz.me/ghostwriter/stt"
)

func newModelCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Manage whisper.cpp models",
	}
	cmd.AddCommand(newModelDownloadCmd(opts))
	return cmd
}

func newModelDownloadCmd(opts *rootOptions) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "download [size]",
		Short: "Download a whisper.cpp model",
		Long:  "Download a whisper.cpp model. Sizes: " + strings.Join(stt.ModelSizes(), ", ") + ". Defaults to the model_size setting.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openStore()
			if err != nil {
				return err
			}
			settings := store.Snapshot()
			size := settings.ModelSize
			if len(args) == 1 {
				size = args[0]
			}

			w, err := stt.NewWhisperLocal(stt.WhisperLocalConfig{
				ModelSize: size,
				ModelDir:  dir,
				BinPath:   settings.WhisperBinary,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			last := -1
			err = w.Setup(cmd.Context(), func(percent int) {
				if percent != last {
					last = percent
					fmt.Fprintf(out, "\rdownloading %s model: %3d%%", size, percent)
				}
			})
			fmt.Fprintln(out)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "model ready: %s\n", w.ModelPath())
			if !w.HasBinary() {
				fmt.Fprintln(out, "whisper-cli not found: install whisper.cpp or set whisper_binary")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "directory for model files (default ~/.ghostwriter/models)")
	return cmd
}
