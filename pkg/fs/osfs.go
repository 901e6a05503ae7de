package fs

import (
	"fmt"
	"os"
	"syscall"
)

// OSFileSystem is the real-disk FileSystem backed by the standard
// library and, for the free-space probe, statfs(2).
type OSFileSystem struct{}

func NewOSFileSystem() *OSFileSystem {
	return &OSFileSystem{}
}

func (OSFileSystem) Stat(name string) (bool, int64, error) {
	info, err := os.Stat(name)
	if err != nil {
		if os.IsNotExist(err) {
			return false, 0, nil
		}

		return false, 0, fmt.Errorf("error while checking file exists: %w", err)
	}

	return true, info.Size(), nil
}

func (OSFileSystem) Open(name string) (Reader, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("error while opening file: %w", err)
	}

	return f, nil
}

func (OSFileSystem) Create(name string) (Writer, error) {
	f, err := os.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("error while creating file: %w", err)
	}

	return &osWriter{f: f, name: name}, nil
}

// FreeBytes reports the free space on the filesystem that holds dir,
// mirroring the statvfs-based free-space check used to honor a tsize
// option before accepting an upload.
func (OSFileSystem) FreeBytes(dir string) (uint64, error) {
	var stat syscall.Statfs_t

	if err := syscall.Statfs(dir, &stat); err != nil {
		return 0, fmt.Errorf("error while statfs %s: %w", dir, err)
	}

	return stat.Bavail * uint64(stat.Bsize), nil
}

// osWriter deletes the partially written file on Abort instead of
// leaving it behind, per the session core's "delete a partially
// written destination file on failure" invariant.
type osWriter struct {
	f    *os.File
	name string
}

func (w *osWriter) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

func (w *osWriter) Close() error {
	return w.f.Close()
}

func (w *osWriter) Abort() error {
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("error while closing aborted file: %w", err)
	}

	if err := os.Remove(w.name); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("error while removing aborted file: %w", err)
	}

	return nil
}
