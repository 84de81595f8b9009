//go:build !linux

package fuse

import (
	"context"
	"errors"
	"log/slog"
)

var ErrUnsupported = errors.New("FUSE mount is only supported on Linux")

func Mount(ctx context.Context, mountpoint, dir string, logger *slog.Logger) error {
	return ErrUnsupported
}
