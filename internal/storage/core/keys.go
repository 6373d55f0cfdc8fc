package core

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// CleanPath validates and normalizes a storage path. It forbids traversal and
// absolute paths so a backend can never be walked out of its root.
func CleanPath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("empty path")
	}
	if strings.Contains(p, "..") {
		return "", fmt.Errorf("invalid path contains '..'")
	}
	if strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("invalid absolute path")
	}
	clean := path.Clean(strings.ReplaceAll(p, "\\", "/"))
	if clean == "." || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid path %q", p)
	}
	return clean, nil
}

// ChildrenOf derives the immediate children of dir from a flat key namespace,
// the way an object store's prefix+delimiter listing does. Keys nested deeper
// than one level collapse into a single "name/" entry. The result is sorted.
func ChildrenOf(dir string, keys []string) []string {
	prefix := strings.TrimSuffix(dir, "/") + "/"
	seen := make(map[string]struct{})
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) || k == prefix {
			continue
		}
		rest := strings.TrimPrefix(k, prefix)
		if i := strings.Index(rest, "/"); i >= 0 {
			seen[rest[:i+1]] = struct{}{}
		} else {
			seen[rest] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
