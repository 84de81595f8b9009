package mmap

import (
	"fmt"
	"io"
	"os"
)

// MmapFile is a read-only view of a whole file.
//
// Regular, non-empty files are memory-mapped where the platform supports it.
// Everything else (empty files, pipes, character devices) is read into memory.
type MmapFile struct {
	Data     []byte   // File contents
	File     *os.File // The underlying opened file
	FileSize int      // Size of the file at open time

	mapped bool
}

// Open maps the file at filePath for reading.
func Open(filePath string) (*MmapFile, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to get file info for %q: %w", filePath, err)
	}

	if fi.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%q is a directory", filePath)
	}

	mf := &MmapFile{
		File:     f,
		FileSize: int(fi.Size()),
	}

	if !fi.Mode().IsRegular() || fi.Size() == 0 {
		data, err := io.ReadAll(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to read %q: %w", filePath, err)
		}
		mf.Data = data
		mf.FileSize = len(data)
		return mf, nil
	}

	data, mapped, err := mapFile(f, mf.FileSize)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to mmap file %q with length %d: %w", filePath, mf.FileSize, err)
	}
	mf.Data = data
	mf.mapped = mapped
	return mf, nil
}

// Close unmaps the memory region and closes the underlying file.
func (mr *MmapFile) Close() error {
	var err error
	if mr.Data != nil && mr.mapped {
		err = unmapFile(mr.Data)
		if err != nil {
			return fmt.Errorf("failed to munmap: %w", err)
		}
	}
	mr.Data = nil

	if mr.File != nil {
		closeErr := mr.File.Close()
		if closeErr != nil {
			return fmt.Errorf("failed to close file: %w", closeErr)
		}
		mr.File = nil
	}
	return nil
}
