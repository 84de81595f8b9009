package signature

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/ostafen/sigcrawl/internal/mmap"
	"github.com/ostafen/sigcrawl/internal/protocol"
)

// Checker searches files for byte signatures. It holds no state and is safe
// for concurrent use.
type Checker struct{}

func NewChecker() *Checker {
	return &Checker{}
}

// CheckFileSignature reports every offset of the hex encoded signature
// within the file at path.
func (c *Checker) CheckFileSignature(path, signatureHex string) protocol.Response {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return protocol.Error{Message: protocol.MsgFileNotFound}
		}
		return checkError(err)
	}

	sig, err := ParseSignature(signatureHex)
	if err != nil {
		return checkError(err)
	}

	offsets, err := scanFile(path, sig)
	if errors.Is(err, os.ErrNotExist) {
		return protocol.Error{Message: protocol.MsgFileNotFound}
	}
	if err != nil {
		return checkError(err)
	}

	if len(offsets) == 0 {
		return protocol.NotFound{}
	}
	return protocol.Offsets(offsets)
}

func scanFile(path string, sig []byte) (offsets []int, err error) {
	mf, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	defer mf.Close()

	// A mapped file truncated by another process faults on access.
	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	defer func() {
		if r := recover(); r != nil {
			offsets = nil
			err = fmt.Errorf("fault while reading %q: %v", path, r)
		}
	}()

	return FindAll(mf.Data, sig), nil
}

func checkError(err error) protocol.Error {
	return protocol.Errorf("Error checking signature: %s", err)
}
