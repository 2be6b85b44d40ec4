package storage

import (
	"fmt"
	"strings"
)

// ValidateName checks a single path segment (folder or file name).
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: bad name %q", ErrInvalidPath, name)
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("%w: name %q contains a separator", ErrInvalidPath, name)
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: name %q contains NUL", ErrInvalidPath, name)
	}
	return nil
}

// Join builds a backend path from segments, skipping empty ones.
// E.g.,
//   Join("resources", "demo_ab12", "a.txt")
// to
//   resources/demo_ab12/a.txt
func Join(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}

// cleanPath rejects absolute paths and any ".." or "." segment.
func cleanPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "/") {
		return "", fmt.Errorf("%w: %s is absolute", ErrInvalidPath, path)
	}
	for _, seg := range strings.Split(strings.TrimSuffix(path, "/"), "/") {
		if err := ValidateName(seg); err != nil {
			return "", fmt.Errorf("%s: %w", path, err)
		}
	}
	return strings.TrimSuffix(path, "/"), nil
}

// childOf returns the immediate child name of prefix contained in key,
// and whether that child is a folder.
func childOf(prefix, key string) (string, bool, bool) {
	if prefix != "" {
		if !strings.HasPrefix(key, prefix+"/") {
			return "", false, false
		}
		key = key[len(prefix)+1:]
	}
	if key == "" {
		return "", false, false
	}
	if i := strings.Index(key, "/"); i >= 0 {
		return key[:i], true, true
	}
	return key, false, true
}
