//go:build !cgo

package inject

// RobotTyper is unavailable without cgo.
type RobotTyper struct{}

// NewRobotTyper returns ErrUnsupported on builds without cgo.
func NewRobotTyper() (*RobotTyper, error) {
	return nil, ErrUnsupported
}

// Type always fails.
func (RobotTyper) Type(string) error { return ErrUnsupported }
