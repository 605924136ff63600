//go:build cgo

package inject

import (
	"fmt"

	"github.com/go-vgo/robotgo"
)

// RobotTyper types through robotgo.
type RobotTyper struct{}

// NewRobotTyper returns a Typer backed by the OS input APIs.
func NewRobotTyper() (*RobotTyper, error) {
	return &RobotTyper{}, nil
}

// Type emits unit. Newline and tab are sent as key taps so that editors
// receive Enter and Tab rather than literal characters.
func (RobotTyper) Type(unit string) error {
	switch unit {
	case "\n":
		return tap("enter")
	case "\t":
		return tap("tab")
	}
	robotgo.TypeStr(unit)
	return nil
}

func tap(key string) error {
	if err := robotgo.KeyTap(key); err != nil {
		return fmt.Errorf("tap %s: %w", key, err)
	}
	return nil
}
