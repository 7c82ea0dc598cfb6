//go:build !unix

package advisor

import "errors"

func writePipe(string, []byte) (string, error) {
	return "unsupported", nil
}

// EnsurePipe is unavailable without named pipe support.
func EnsurePipe(string) error {
	return errors.New("named pipes are not supported on this platform")
}
