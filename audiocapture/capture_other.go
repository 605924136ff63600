//go:build !cgo

package audiocapture

// New returns ErrUnsupported when built without cgo.
func New(cfg Config) (Capturer, error) {
	return nil, ErrUnsupported
}
