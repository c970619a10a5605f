//go:build !unix

package instance

import "os"

// Acquire is not supported on this platform.
func Acquire(_, _ string) (*Lock, error) {
	return nil, ErrUnsupported
}

func unlock(_ *os.File) error { return nil }

// Stop is not supported on this platform.
func Stop(_ string) (int, error) {
	return 0, ErrUnsupported
}
