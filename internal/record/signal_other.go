//go:build !unix

package record

import (
	"errors"
	"os"
)

var errPauseUnsupported = errors.New("pausing a recording is not supported on this platform")

func suspendProcess(*os.Process) error {
	return errPauseUnsupported
}

func resumeProcess(*os.Process) error {
	return errPauseUnsupported
}
