// Package logging installs the process-wide slog logger: coloured console
// output plus JSON lines in a daily log file.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

const (
	defaultPrefix    = "ghostwriter"
	defaultRetention = 14
	dateLayout       = "2006-01-02"
)

// Config configures Setup.
type Config struct {
	// Dir holds the daily log files. Empty disables file logging.
	Dir string
	// Prefix names the files: <prefix>-YYYY-MM-DD.log.
	Prefix string
	// RetentionDays is how long old files are kept (default 14).
	RetentionDays int
	// Level is the minimum level for both outputs.
	Level slog.Level
	// Console receives human readable output. Nil means os.Stderr.
	Console io.Writer
}

// ParseLevel accepts debug, info, warn and error.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("parse log level: %w", err)
	}
	return l, nil
}

// Setup builds the logger, makes it the slog default and returns it with
// a function that closes the log file.
func Setup(cfg Config) (*slog.Logger, func() error, error) {
	console := cfg.Console
	noColor := true
	if console == nil {
		console = os.Stderr
		noColor = !isatty.IsTerminal(os.Stderr.Fd()) || os.Getenv("NO_COLOR") != ""
	}

	handlers := []slog.Handler{
		tint.NewHandler(console, &tint.Options{
			Level:      cfg.Level,
			TimeFormat: time.TimeOnly,
			NoColor:    noColor,
		}),
	}

	closeFn := func() error { return nil }
	if cfg.Dir != "" {
		w, err := newDailyFile(cfg.Dir, cfg.Prefix, cfg.RetentionDays)
		if err != nil {
			return nil, nil, err
		}
		handlers = append(handlers, slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.Level}))
		closeFn = w.Close
	}

	logger := slog.New(fanout(handlers))
	slog.SetDefault(logger)
	return logger, closeFn, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Fan-out handler
// ─────────────────────────────────────────────────────────────────────────────

type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Daily file
// ─────────────────────────────────────────────────────────────────────────────

// dailyFile writes to <dir>/<prefix>-YYYY-MM-DD.log, switching files when
// the date changes.
type dailyFile struct {
	dir       string
	prefix    string
	retention int
	now       func() time.Time

	mu          sync.Mutex
	file        *os.File
	currentDate string
}

func newDailyFile(dir, prefix string, retention int) (*dailyFile, error) {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if retention <= 0 {
		retention = defaultRetention
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	d := &dailyFile{dir: dir, prefix: prefix, retention: retention, now: time.Now}
	if err := d.rotateIfNeeded(); err != nil {
		return nil, err
	}
	if err := d.cleanOldLogs(); err != nil {
		fmt.Fprintf(os.Stderr, "clean old logs: %v\n", err)
	}
	return d, nil
}

func (d *dailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.rotateIfNeeded(); err != nil {
		return 0, err
	}
	return d.file.Write(p)
}

func (d *dailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

// Path returns the file currently written to.
func (d *dailyFile) Path() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pathFor(d.currentDate)
}

func (d *dailyFile) pathFor(date string) string {
	return filepath.Join(d.dir, fmt.Sprintf("%s-%s.log", d.prefix, date))
}

func (d *dailyFile) rotateIfNeeded() error {
	today := d.now().Format(dateLayout)
	if d.currentDate == today && d.file != nil {
		return nil
	}
	if d.file != nil {
		d.file.Close()
		d.file = nil
	}

	f, err := os.OpenFile(d.pathFor(today), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	d.file = f
	d.currentDate = today
	return nil
}

func (d *dailyFile) cleanOldLogs() error {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return fmt.Errorf("read log dir: %w", err)
	}

	prefix := d.prefix + "-"
	cutoff := d.now().AddDate(0, 0, -d.retention)

	var toDelete []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".log") {
			continue
		}
		date, err := time.ParseInLocation(dateLayout, strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".log"), time.Local)
		if err != nil {
			continue
		}
		if date.Before(cutoff) {
			toDelete = append(toDelete, filepath.Join(d.dir, name))
		}
	}
	sort.Strings(toDelete)

	var errs []error
	for _, path := range toDelete {
		if err := os.Remove(path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
