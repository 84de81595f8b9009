//go:build !unix

package mmap

import (
	"io"
	"os"
)

func mapFile(f *os.File, length int) ([]byte, bool, error) {
	data := make([]byte, length)
	n, err := io.ReadFull(f, data)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, false, err
	}
	return data[:n], false, nil
}

func unmapFile([]byte) error { return nil }
