// Package clipboard writes plain text to the system clipboard.
package clipboard

import (
	"errors"
	"fmt"
	"sync"

	"github.com/atotto/clipboard"
)

// ErrUnsupported is returned when no clipboard utility is available.
var ErrUnsupported = errors.New("clipboard: not supported on this system")

var clipboardLock sync.Mutex

// SetText replaces the clipboard contents with text.
func SetText(text string) error {
	if clipboard.Unsupported {
		return ErrUnsupported
	}
	clipboardLock.Lock()
	defer clipboardLock.Unlock()

	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	return nil
}
