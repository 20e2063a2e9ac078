package config

import (
	"os"
	"path/filepath"
)

// FileSystem abstracts the filesystem calls Load needs, so tests can
// supply an in-memory double instead of touching disk.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	Stat(path string) (os.FileInfo, error)
	Abs(path string) (string, error)
}

// RealFileSystem implements FileSystem against the actual filesystem.
type RealFileSystem struct{}

func (RealFileSystem) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }
func (RealFileSystem) Stat(path string) (os.FileInfo, error) { return os.Stat(path) }
func (RealFileSystem) Abs(path string) (string, error)      { return filepath.Abs(path) }

var _ FileSystem = RealFileSystem{}
