// Package safeio opens files by user-supplied relative paths while keeping
// every resolved path inside a fixed root directory.
package safeio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

var (
	ErrTraversal = errors.New("safeio: path escapes root")
	ErrIsDir     = errors.New("safeio: path is a directory")
)

// Root resolves relative paths against an absolute, symlink-free directory.
type Root struct {
	abs string
}

// NewRoot binds a Root to dir, which must exist and be a directory.
func NewRoot(dir string) (*Root, error) {
	if dir == "" {
		return nil, errors.New("safeio: empty root")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("safeio: %s is not a directory", abs)
	}
	return &Root{abs: abs}, nil
}

func (r *Root) Path() string { return r.abs }

// OpenFile opens rel (slash or OS separated) for reading. Directories are
// refused with ErrIsDir; paths leaving the root with ErrTraversal.
func (r *Root) OpenFile(rel string) (*os.File, fs.FileInfo, error) {
	p, err := r.Resolve(rel)
	if err != nil {
		return nil, nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return nil, nil, err
	}
	if info.IsDir() {
		return nil, nil, ErrIsDir
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, nil, err
	}
	return f, info, nil
}

// Resolve maps rel to an absolute path under the root, following symlinks.
func (r *Root) Resolve(rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == "." {
		return r.abs, nil
	}
	if filepath.IsAbs(clean) || filepath.VolumeName(clean) != "" {
		return "", ErrTraversal
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", ErrTraversal
	}
	resolved, err := filepath.EvalSymlinks(filepath.Join(r.abs, clean))
	if err != nil {
		return "", err
	}
	if !within(resolved, r.abs) {
		return "", ErrTraversal
	}
	return resolved, nil
}

func within(path, root string) bool {
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	if runtime.GOOS == "windows" {
		path = strings.ToLower(path)
		root = strings.ToLower(root)
	}
	if path == root {
		return true
	}
	sep := string(os.PathSeparator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(path, root)
}
