// Package static implements asset collection: gathering static files
// from source directories into a single root for serving.
package static

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Collect walks every source dir in order and copies regular files into
// root, preserving relative paths. The first dir to provide a path wins;
// later dirs never overwrite. Dotfiles are skipped. Returns the number
// of files copied.
func Collect(dirs []string, root string) (int, error) {
	if root == "" {
		return 0, errors.New("static root is required")
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return 0, errors.Wrapf(err, "could not create static root %s", root)
	}

	copied := 0
	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}

		n, err := collectDir(dir, root)
		if err != nil {
			return copied, err
		}
		copied += n
	}

	return copied, nil
}

func collectDir(dir, root string) (int, error) {
	copied := 0

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		base := filepath.Base(path)
		if strings.HasPrefix(base, ".") {
			if info.IsDir() && path != dir {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() || !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return errors.Wrapf(err, "could not relativize %s", path)
		}

		dest := filepath.Join(root, rel)
		if _, err := os.Stat(dest); err == nil {
			// an earlier dir already provided this path
			return nil
		}

		if err := copyFile(path, dest); err != nil {
			return err
		}

		copied++
		return nil
	})
	if err != nil {
		return copied, errors.Wrapf(err, "could not collect statics from %s", dir)
	}

	return copied, nil
}

func copyFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errors.Wrapf(err, "could not create dir for %s", dest)
	}

	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "could not open %s", src)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dest)
	if err != nil {
		return errors.Wrapf(err, "could not create %s", dest)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return errors.Wrapf(err, "could not copy %s to %s", src, dest)
	}

	return out.Close()
}
