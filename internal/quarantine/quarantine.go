package quarantine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ostafen/sigcrawl/internal/protocol"
	osutils "github.com/ostafen/sigcrawl/pkg/util/os"
)

// Manager moves files into a quarantine directory.
//
// Concurrent calls are safe. Name collisions inside the directory are resolved
// by appending _1, _2, ... before the extension. The only synchronization is
// the atomicity of the underlying rename: when two requests race on the same
// source path, one of them observes a missing file.
type Manager struct {
	dir string
}

// New returns a Manager for dir, creating the directory if needed.
func New(dir string) (*Manager, error) {
	if _, err := osutils.EnsureDir(dir, false); err != nil {
		return nil, err
	}
	return &Manager{dir: dir}, nil
}

func (m *Manager) Dir() string {
	return m.dir
}

// QuarantineFile moves the file at path into the quarantine directory.
func (m *Manager) QuarantineFile(path string) protocol.Response {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return protocol.Error{Message: protocol.MsgFileNotFound}
		}
		return quarantineError(err)
	}

	// The directory may have been removed since the manager was created.
	if _, err := osutils.EnsureDir(m.dir, false); err != nil {
		return quarantineError(err)
	}

	target, err := m.move(path)
	if errors.Is(err, errSourceMissing) {
		return protocol.Error{Message: protocol.MsgFileNotFound}
	}
	if err != nil {
		return quarantineError(err)
	}
	return protocol.Quarantined{Path: target}
}

var errSourceMissing = errors.New("source file vanished")

// move places path under the first free candidate name and returns it.
func (m *Manager) move(path string) (string, error) {
	stem, ext := splitName(filepath.Base(path))

	for n := 0; ; n++ {
		target := filepath.Join(m.dir, candidateName(stem, ext, n))

		_, err := os.Lstat(target)
		if err == nil {
			continue
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}

		err = moveFile(path, target)
		switch {
		case err == nil:
			return target, nil
		case errors.Is(err, os.ErrExist):
			// Another request claimed this name in the meantime.
			continue
		case errors.Is(err, os.ErrNotExist):
			if _, statErr := os.Lstat(path); errors.Is(statErr, os.ErrNotExist) {
				return "", errSourceMissing
			}
		}
		return "", err
	}
}

func candidateName(stem, ext string, n int) string {
	if n == 0 {
		return stem + ext
	}
	return stem + "_" + strconv.Itoa(n) + ext
}

// splitName splits a base name into stem and extension.
// Dot files such as ".profile" have no extension.
func splitName(name string) (string, string) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if stem == "" || strings.Trim(stem, ".") == "" {
		return name, ""
	}
	return stem, ext
}

func quarantineError(err error) protocol.Error {
	return protocol.Errorf("Error quarantining file: %s", err)
}

// Entry describes a file held in quarantine.
type Entry struct {
	Name    string
	Path    string
	Size    int64
	Mode    os.FileMode
	ModTime time.Time
}

// List returns the regular files currently held in dir, sorted by name.
func List(dir string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read quarantine directory %s: %w", dir, err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if !de.Type().IsRegular() {
			continue
		}

		info, err := de.Info()
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}

		entries = append(entries, Entry{
			Name:    de.Name(),
			Path:    filepath.Join(dir, de.Name()),
			Size:    info.Size(),
			Mode:    info.Mode(),
			ModTime: info.ModTime(),
		})
	}
	return entries, nil
}
