// Package security guards the output tree against writes that escape it.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// WithinDirectory returns an error unless path resolves inside root once
// ".." components and symlinks are resolved. path need not exist yet; its
// nearest existing ancestor is resolved instead, so a symlinked parent
// pointing elsewhere is still caught.
func WithinDirectory(path, root string) error {
	canonicalPath, err := canonical(path)
	if err != nil {
		return err
	}
	canonicalRoot, err := canonical(root)
	if err != nil {
		return err
	}

	rel, err := filepath.Rel(canonicalRoot, canonicalPath)
	if err != nil {
		return fmt.Errorf("%s is outside %s: %w", path, root, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s escapes %s", path, root)
	}
	return nil
}

// canonical makes p absolute and resolves symlinks in its longest existing
// prefix.
func canonical(p string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(p))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	rest := ""
	for dir := abs; ; {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(resolved, rest), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
	}
}
