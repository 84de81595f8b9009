//go:build linux

package fuse

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	"github.com/ostafen/sigcrawl/internal/quarantine"
)

// QuarantineFS exposes the regular files of a quarantine directory as a
// flat, read-only file system. The directory is read on every lookup, so
// files quarantined while mounted show up immediately.
type QuarantineFS struct {
	dir string
}

func NewQuarantineFS(dir string) *QuarantineFS {
	return &QuarantineFS{dir: dir}
}

func (qfs *QuarantineFS) Root() (fs.Node, error) {
	return &Dir{fs: qfs}, nil
}

// Dir implements both fs.Node and fs.HandleReadDirAller
type Dir struct {
	fs *QuarantineFS
}

func (*Dir) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Inode = 1
	a.Mode = os.ModeDir | 0555
	return nil
}

func (d *Dir) Lookup(ctx context.Context, name string) (fs.Node, error) {
	if name != filepath.Base(name) {
		return nil, fuse.ENOENT
	}

	path := filepath.Join(d.fs.dir, name)

	info, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && !info.Mode().IsRegular()) {
		return nil, fuse.ENOENT
	}
	if err != nil {
		return nil, err
	}

	return &File{
		path: path,
		info: info,
	}, nil
}

func (d *Dir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	entries, err := quarantine.List(d.fs.dir)
	if err != nil {
		return nil, err
	}
	return dirents(entries), nil
}

func dirents(entries []quarantine.Entry) []fuse.Dirent {
	out := make([]fuse.Dirent, len(entries))
	for i, e := range entries {
		out[i] = fuse.Dirent{
			Inode: uint64(i + 2),
			Name:  e.Name,
			Type:  fuse.DT_File,
		}
	}
	return out
}

// File implements fs.Node and fs.NodeOpener
type File struct {
	path string
	info os.FileInfo
}

func (f *File) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Mode = 0444
	a.Size = uint64(f.info.Size())
	a.Mtime = f.info.ModTime()
	return nil
}

func (f *File) Open(ctx context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fs.Handle, error) {
	if !req.Flags.IsReadOnly() {
		return nil, fuse.Errno(syscall.EACCES)
	}

	file, err := os.Open(f.path)
	if err != nil {
		return nil, err
	}
	return &Handle{file: file, size: f.info.Size()}, nil
}

// Handle implements fs.HandleReader and fs.HandleReleaser
type Handle struct {
	file *os.File
	size int64
}

func (h *Handle) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	data, err := readAt(h.file, h.size, req.Offset, req.Size)
	if err != nil {
		return err
	}
	resp.Data = data
	return nil
}

func (h *Handle) Release(ctx context.Context, req *fuse.ReleaseRequest) error {
	return h.file.Close()
}

// readAt reads up to n bytes at offset, clamped to size.
func readAt(r io.ReaderAt, size, offset int64, n int) ([]byte, error) {
	if offset >= size {
		return []byte{}, nil
	}
	if offset+int64(n) > size {
		n = int(size - offset)
	}

	buf := make([]byte, n)

	read, err := r.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:read], nil
}
