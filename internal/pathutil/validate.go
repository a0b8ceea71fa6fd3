// Package pathutil keeps output files inside their output directory.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RedactPath reduces a full path to .../<parent>/<basename> for error messages.
// For example, "/home/user/results/run.db" becomes ".../results/run.db".
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	if parent == "." || parent == string(filepath.Separator) {
		return filepath.Base(cleaned)
	}
	return ".../" + parent + "/" + filepath.Base(cleaned)
}

// Within checks that the file name, joined onto dir, names a file strictly
// inside dir. Symlinks are resolved on the deepest existing ancestor of
// both paths, so neither needs to exist yet.
func Within(dir, name string) error {
	if name == "" {
		return fmt.Errorf("file name is empty")
	}
	// Null bytes truncate paths in some syscalls
	if strings.ContainsRune(name, '\x00') {
		return fmt.Errorf("file name contains null byte")
	}

	base, err := resolve(dir)
	if err != nil {
		return err
	}
	target, err := resolve(filepath.Join(dir, name))
	if err != nil {
		return err
	}

	rel, err := filepath.Rel(base, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return fmt.Errorf("%q escapes output directory %s", name, RedactPath(base))
	}
	return nil
}

// resolve returns the absolute form of p with symlinks evaluated on its
// deepest existing ancestor and the missing tail re-appended.
func resolve(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("cannot resolve absolute path: %w", err)
	}

	existing := abs
	var tail []string
	for {
		if resolved, err := filepath.EvalSymlinks(existing); err == nil {
			return filepath.Join(append([]string{resolved}, tail...)...), nil
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return "", fmt.Errorf("cannot resolve path: %s", RedactPath(abs))
		}
		tail = append([]string{filepath.Base(existing)}, tail...)
		existing = parent
	}
}
