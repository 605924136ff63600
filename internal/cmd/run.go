package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.aimuz.me/ghostwriter/history"
	"go.aimuz.me/ghostwriter/internal/app"
	"go.aimuz.me/ghostwriter/internal/logging"
	"go.aimuz.me/ghostwriter/tray"
)

func runApp(cmd *cobra.Command, opts *rootOptions) error {
	level, err := logging.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	dir, err := opts.dataDir()
	if err != nil {
		return err
	}
	_, closeLog, err := logging.Setup(logging.Config{Dir: filepath.Join(dir, "logs"), Level: level})
	if err != nil {
		return err
	}
	defer closeLog()

	slog.Info("starting ghostwriter", "version", Version, "commit", Commit)

	store, err := opts.openStore()
	if err != nil {
		return err
	}
	hist, err := history.Open(filepath.Join(dir, "history"))
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer func() {
		if err := hist.Close(); err != nil {
			slog.Error("close history", "error", err)
		}
	}()

	rt, err := app.New(app.Options{Store: store, History: hist})
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.headless {
		return rt.Run(ctx)
	}
	return runWithTray(ctx, rt)
}

// runWithTray runs the tray on the calling goroutine, which the desktop
// toolkit requires to be the main one, and the runtime beside it.
func runWithTray(ctx context.Context, rt *app.Runtime) error {
	t, err := tray.New(rt, Version)
	if err != nil {
		return err
	}
	rt.OnIndicator(t.SetIndicator)
	rt.OnSettingsChange(t.Refresh)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- rt.Run(ctx)
		t.Quit()
	}()

	trayErr := t.Run()
	cancel()
	if err := <-done; err != nil {
		return err
	}
	return trayErr
}
