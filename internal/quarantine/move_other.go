//go:build !unix

package quarantine

import (
	"errors"
	"os"
)

func renameNoReplace(src, dst string) error {
	return os.Rename(src, dst)
}

// isCrossDevice treats every failed rename of an existing source as a
// candidate for the copy fallback.
func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		return false
	}
	_, statErr := os.Stat(linkErr.Old)
	return statErr == nil
}
