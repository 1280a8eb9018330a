package lifecycle

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"nbcache/internal/notebook/nonfatal"
)

// CopyTree copies every entry under from to the same relative path under to.
// Only failing to create the destination root is returned; a failing entry
// is logged and the walk continues.
func CopyTree(from, to string, logger *slog.Logger) error {
	info, err := os.Stat(from)
	if err != nil {
		return fmt.Errorf("copy cache: %w", err)
	}
	if err := os.MkdirAll(to, info.Mode().Perm()|0o700); err != nil {
		return fmt.Errorf("copy cache: %w", err)
	}

	return filepath.WalkDir(from, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			nonfatal.Log(logger, "walk cache entry", walkErr, "path", path)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(from, path)
		if err != nil || rel == "." {
			return nil
		}
		target := filepath.Join(to, rel)
		nonfatal.Do(logger, "copy cache entry", func() error {
			if d.IsDir() {
				return os.MkdirAll(target, 0o755)
			}
			return copyFile(path, target)
		}, "from", path, "to", target)
		return nil
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	// Keep modification times so output/transcript freshness survives a rename.
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
