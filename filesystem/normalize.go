package filesystem

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const schemePrefix = "fs://"

// Normalize resolves p against the configured root. ok is false when the
// path cannot be resolved (home directory unknown, canonicalization failed).
func (s *Service) Normalize(p string) (string, bool) {
	p = strings.TrimPrefix(p, schemePrefix)

	switch {
	case p == s.root || filepath.Clean(p) == filepath.Clean(s.root):
		return canonicalize(s.root)
	case strings.HasPrefix(p, "./"):
		root, ok := canonicalize(s.root)
		if !ok {
			return "", false
		}
		return filepath.Join(root, p[2:]), true
	case strings.HasPrefix(p, "~/"):
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			return "", false
		}
		return filepath.Join(home, p[2:]), true
	default:
		return p, true
	}
}

// canonicalize expands "~/", makes the path absolute and resolves symlinks.
// A root that does not exist yet keeps its absolute lexical form so that
// Init can create it.
func canonicalize(root string) (string, bool) {
	if root == "~" || strings.HasPrefix(root, "~/") {
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			return "", false
		}
		root = filepath.Join(home, strings.TrimPrefix(root[1:], "/"))
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return "", false
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return abs, true
		}
		return "", false
	}
	return resolved, true
}
