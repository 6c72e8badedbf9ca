package resolver

import (
	iofs "io/fs"
	"os"
	"path/filepath"
)

// FS is the slice of the filesystem the resolver touches. Tests swap it out
// to inject failures that are hard to produce on a real disk.
type FS interface {
	Lstat(path string) (iofs.FileInfo, error)
	ReadDir(path string) ([]iofs.DirEntry, error)
	EvalSymlinks(path string) (string, error)
	Remove(path string) error
	RemoveAll(path string) error
}

// OSFS is the production implementation backed by package os.
type OSFS struct{}

func (OSFS) Lstat(path string) (iofs.FileInfo, error) {
	return os.Lstat(path)
}

func (OSFS) ReadDir(path string) ([]iofs.DirEntry, error) {
	return os.ReadDir(path)
}

func (OSFS) EvalSymlinks(path string) (string, error) {
	return filepath.EvalSymlinks(path)
}

func (OSFS) Remove(path string) error {
	return os.Remove(path)
}

func (OSFS) RemoveAll(path string) error {
	return os.RemoveAll(path)
}
