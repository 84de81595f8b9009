//go:build unix && !linux

package quarantine

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

func renameNoReplace(src, dst string) error {
	return os.Rename(src, dst)
}

func isCrossDevice(err error) bool {
	return errors.Is(err, unix.EXDEV)
}
