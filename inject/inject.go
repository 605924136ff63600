// Package inject types text into the focused application as simulated
// keystrokes, one character sequence at a time.
package inject

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	// ErrPartialInjection is reported when some units could not be typed.
	ErrPartialInjection = errors.New("inject: partial injection")

	// ErrUnmappable is returned for characters that have no keystroke.
	ErrUnmappable = errors.New("inject: character has no keystroke")

	// ErrUnsupported is returned when keystroke injection is not available.
	ErrUnsupported = errors.New("inject: keystroke injection not supported")
)

// Typer emits one insertion unit into the focused application.
type Typer interface {
	Type(unit string) error
}

// Report summarises one Inject call.
type Report struct {
	Units     int
	Typed     int
	Failed    int
	Cancelled bool
	Elapsed   time.Duration
}

// Err returns ErrPartialInjection when any unit failed.
func (r Report) Err() error {
	if r.Failed == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d of %d characters failed", ErrPartialInjection, r.Failed, r.Units)
}

// Units splits text into insertion units: NFC normalised character
// sequences, each a base character with its combining marks.
// CRLF and lone CR become LF.
func Units(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var it norm.Iter
	it.InitString(norm.NFC, text)

	units := make([]string, 0, len(text))
	for !it.Done() {
		units = append(units, string(it.Next()))
	}
	return units
}

// Injector types text through a Typer.
type Injector struct {
	typer Typer
}

// New creates an Injector.
func New(typer Typer) *Injector {
	return &Injector{typer: typer}
}

// Inject types text unit by unit, sleeping delay between units.
// Failed units are skipped and counted. Cancellation of ctx is observed
// between units only; a unit is never interrupted half way.
func (i *Injector) Inject(ctx context.Context, text string, delay time.Duration) Report {
	start := time.Now()
	units := Units(text)
	r := Report{Units: len(units)}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for n, unit := range units {
		if n > 0 && delay > 0 {
			if timer == nil {
				timer = time.NewTimer(delay)
			} else {
				timer.Reset(delay)
			}
			select {
			case <-timer.C:
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			r.Cancelled = true
			break
		}

		if err := i.typeUnit(unit); err != nil {
			r.Failed++
			slog.Debug("skip character", "unit", fmt.Sprintf("%q", unit), "error", err)
			continue
		}
		r.Typed++
	}

	r.Elapsed = time.Since(start)
	return r
}

func (i *Injector) typeUnit(unit string) error {
	if i.typer == nil {
		return ErrUnsupported
	}
	if r, _ := utf8.DecodeRuneInString(unit); unicode.IsControl(r) && r != '\n' && r != '\t' {
		return fmt.Errorf("%w: %U", ErrUnmappable, r)
	}
	return i.typer.Type(unit)
}
