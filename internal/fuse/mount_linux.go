//go:build linux

// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
package fuse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
	osutils "github.com/ostafen/sigcrawl/pkg/util/os"
)

const (
	maxUnmountRetries = 3
	unmountRetryDelay = 500 * time.Millisecond
)

// Mount serves a read-only view of dir at mountpoint until ctx is done or
// the file system is unmounted from outside.
func Mount(ctx context.Context, mountpoint, dir string, logger *slog.Logger) error {
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("quarantine directory: %w", err)
	}

	created, err := PrepareMountpoint(mountpoint)
	if err != nil {
		return err
	}
	if created {
		defer os.Remove(mountpoint)
	}

	c, err := fuse.Mount(
		mountpoint,
		fuse.ReadOnly(),
		fuse.FSName("sigcrawl"),
		fuse.Subtype("quarantine"),
	)
	if err != nil {
		return err
	}
	defer c.Close()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- fusefs.Serve(c, NewQuarantineFS(dir))
	}()

	logger.Info("Quarantine mounted", "dir", dir, "mountpoint", mountpoint)

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	if err := unmount(ctx, mountpoint, logger); err != nil {
		return err
	}
	return <-serveErr
}

// unmount retries while the mountpoint is busy.
func unmount(ctx context.Context, mountpoint string, logger *slog.Logger) error {
	var err error
	for attempt := 1; attempt <= maxUnmountRetries; attempt++ {
		logger.Info("Unmounting", "mountpoint", mountpoint, "attempt", attempt)

		if err = fuse.Unmount(mountpoint); err == nil {
			return nil
		}

		logger.Warn("Unmount failed", "mountpoint", mountpoint, "error", err)
		time.Sleep(unmountRetryDelay)
	}
	return fmt.Errorf("unable to unmount %s after %d attempts: %w", mountpoint, maxUnmountRetries, err)
}

// PrepareMountpoint ensures the given path is a valid, empty directory suitable for FUSE mounting.
// It creates the directory if it doesn't exist. Returns `true` if created, `false` otherwise,
// or an error if the path exists but isn't an empty directory.
func PrepareMountpoint(mountpoint string) (bool, error) {
	finfo, err := os.Stat(mountpoint)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.Mkdir(mountpoint, 0755); err != nil {
			return false, fmt.Errorf("failed to create mountpoint %s: %w", mountpoint, err)
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat mountpoint %s: %w", mountpoint, err)
	}

	if !finfo.IsDir() {
		return false, fmt.Errorf("mountpoint %s is not a directory", mountpoint)
	}

	empty, err := osutils.IsDirEmpty(mountpoint)
	if err != nil {
		return false, fmt.Errorf("failed to check if mountpoint %s is empty: %w", mountpoint, err)
	}
	if !empty {
		return false, fmt.Errorf("mountpoint %s is not empty", mountpoint)
	}
	return false, nil
}
