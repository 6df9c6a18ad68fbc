package discovery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoWorkspaces indicates that no workspace roots were found during discovery.
var ErrNoWorkspaces = errors.New("no workspaces discovered")

// manifest marks a directory as a workspace root.
const manifest = "package.json"

// Workspaces returns absolute workspace roots. Explicit paths are validated and
// returned in the order given. Otherwise root itself is used when it holds a
// package.json, falling back to its immediate subdirectories that do, sorted
// lexicographically.
func Workspaces(root string, explicit []string) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", root, err)
	}
	if len(explicit) > 0 {
		return resolveExplicit(root, explicit)
	}

	if isFile(filepath.Join(root, manifest)) {
		return []string{root}, nil
	}

	pattern := filepath.Join(root, "*", manifest)
	found, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	if len(found) == 0 {
		return nil, ErrNoWorkspaces
	}

	dirs := make([]string, 0, len(found))
	for _, m := range found {
		dirs = append(dirs, filepath.Dir(m))
	}
	sort.Strings(dirs)
	return dirs, nil
}

func resolveExplicit(root string, explicit []string) ([]string, error) {
	seen := make(map[string]struct{})
	resolved := make([]string, 0, len(explicit))
	for _, input := range explicit {
		cleaned := input
		if !filepath.IsAbs(cleaned) {
			cleaned = filepath.Join(root, cleaned)
		}
		cleaned = filepath.Clean(cleaned)
		info, err := os.Stat(cleaned)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("workspace %q not found", input)
			}
			return nil, fmt.Errorf("stat %q: %w", input, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("workspace %q is not a directory", input)
		}
		if _, ok := seen[cleaned]; ok {
			continue
		}
		seen[cleaned] = struct{}{}
		resolved = append(resolved, cleaned)
	}
	if len(resolved) == 0 {
		return nil, ErrNoWorkspaces
	}
	return resolved, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Rel returns path relative to root, or the cleaned path when it lies outside
// root or is root itself.
func Rel(root, path string) string {
	return mustRelOrClean(root, path)
}

func mustRelOrClean(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.Clean(path)
	}
	rel = filepath.Clean(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Clean(path)
	}
	return rel
}
