package vfs

import (
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/sflanaga/pullpush/internal/core"
)

// localVFS is a thin pass-through to the os/io-fs package, with no network
// round trip and no permission bit support.
type localVFS struct {
	base string
}

func newLocal(u *url.URL) (VFS, error) {
	base := u.Path
	if base == "" {
		base = "/"
	}
	fi, err := os.Stat(base)
	if err != nil {
		return nil, errors.Wrapf(err, "stat base dir %s", base)
	}
	if !fi.IsDir() {
		return nil, errors.Wrapf(core.ErrNotADirectory, "base dir %s", base)
	}
	return &localVFS{base: base}, nil
}

func (l *localVFS) BaseDir() string { return l.base }

// localDirHandle deliberately only lists names: a second, separate stat is
// always required to learn anything about an entry. The parallel stat
// pool (internal/faststat) performs that second stat off this list.
type localDirHandle struct {
	f *os.File
}

func (l *localVFS) OpenDir(path string) (DirHandle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open dir %s", path)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "stat dir %s", path)
	}
	if !fi.IsDir() {
		f.Close()
		return nil, errors.Wrapf(core.ErrNotADirectory, "%s", path)
	}
	return &localDirHandle{f: f}, nil
}

func (h *localDirHandle) ReadAllDirEntries() ([]DirEntry, error) {
	names, err := h.f.Readdirnames(-1)
	if err != nil {
		return nil, errors.Wrapf(err, "read dir entries %s", h.f.Name())
	}
	out := make([]DirEntry, 0, len(names))
	for _, n := range names {
		out = append(out, DirEntry{Name: n})
	}
	return out, nil
}

func (h *localDirHandle) Close() error {
	return h.f.Close()
}

func (l *localVFS) Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return f, nil
}

func (l *localVFS) Create(path string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "mkdir for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", path)
	}
	return f, nil
}

func (l *localVFS) Rename(src, dst string) error {
	if err := os.Rename(src, dst); err != nil {
		return errors.Wrapf(err, "rename %s -> %s", src, dst)
	}
	return nil
}

// SetPerm is a no-op for the local backend: local writes already take the
// process umask and have no separate permission-fixup step.
func (l *localVFS) SetPerm(path string) error { return nil }

func (l *localVFS) Stat(path string) (FileStatus, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return FileStatus{}, errors.Wrapf(err, "lstat %s", path)
	}
	return statusFromOSFileInfo(fi), nil
}

func (l *localVFS) Close() error { return nil }
