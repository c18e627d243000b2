// Package osfilesystem implements ports.FileSystem on the local disk.
package osfilesystem

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/user/timelapse/pkg/ports"
)

const (
	dirPerm  = 0755
	filePerm = 0644
)

// FileSystem writes through the os package. Parent directories are created
// on demand.
type FileSystem struct{}

// New creates a FileSystem.
func New() *FileSystem {
	return &FileSystem{}
}

func (fsys *FileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile replaces path atomically: data goes to a temporary file in the
// same directory which is then renamed over the target.
func (fsys *FileSystem) WriteFile(path string, data []byte) error {
	dir, err := parentDir(path)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Create opens path for streaming writes, truncating an existing file. Close
// flushes the data to stable storage before closing.
func (fsys *FileSystem) Create(path string) (io.WriteCloser, error) {
	if _, err := parentDir(path); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm)
	if err != nil {
		return nil, err
	}
	return &syncedFile{File: f}, nil
}

type syncedFile struct {
	*os.File
}

func (f *syncedFile) Close() error {
	return errors.Join(f.File.Sync(), f.File.Close())
}

func parentDir(path string) (string, error) {
	dir := filepath.Dir(path)
	if dir == "." {
		return dir, nil
	}
	return dir, os.MkdirAll(dir, dirPerm)
}

func (fsys *FileSystem) MkdirAll(path string) error {
	return os.MkdirAll(path, dirPerm)
}

// Exists reports whether path exists. Errors other than "not found" are
// returned as is.
func (fsys *FileSystem) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (fsys *FileSystem) Remove(path string) error {
	return os.Remove(path)
}

var _ ports.FileSystem = (*FileSystem)(nil)
