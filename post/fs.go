package post

import (
	"bytes"
	"errors"
	"io/fs"
	"os"

	"github.com/natefinch/atomic"
)

const (
	dirPerms  = 0o755
	filePerms = 0o644
)

// FileSystem is the raw file I/O the store needs. Errors for missing paths
// must satisfy errors.Is(err, fs.ErrNotExist).
type FileSystem interface {
	MkdirAll(dir string) error
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	Remove(path string) error
	// ReadDir returns the names of the entries in dir.
	ReadDir(dir string) ([]string, error)
	Stat(path string) (FileMeta, error)
}

// OSFileSystem stores posts on the local disk. Writes go through a temp file
// and rename so readers never see a half-written document.
type OSFileSystem struct{}

func (OSFileSystem) MkdirAll(dir string) error {
	return os.MkdirAll(dir, dirPerms)
}

func (OSFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (OSFileSystem) WriteFile(path string, data []byte) error {
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return err
	}
	// atomic.WriteFile leaves new files at 0600.
	return os.Chmod(path, filePerms)
}

func (OSFileSystem) Remove(path string) error {
	return os.Remove(path)
}

func (OSFileSystem) ReadDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (OSFileSystem) Stat(path string) (FileMeta, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileMeta{}, err
	}
	return FileMeta{ModTime: info.ModTime(), BirthTime: birthTime(path)}, nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
