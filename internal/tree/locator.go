package tree

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// ErrMalformedLocator is returned when a path cannot be turned into a file
// locator, or a locator back into a path.
var ErrMalformedLocator = errors.New("malformed locator")

// FileLocator returns the file:// locator of rel resolved against root. root
// must be absolute. An empty rel yields the locator of root itself.
func FileLocator(root, rel string) (string, error) {
	if strings.ContainsRune(root, 0) || strings.ContainsRune(rel, 0) {
		return "", fmt.Errorf("%w: path contains NUL", ErrMalformedLocator)
	}
	if !filepath.IsAbs(root) {
		return "", fmt.Errorf("%w: root %q is not absolute", ErrMalformedLocator, root)
	}

	path := root
	if rel != "" {
		if filepath.IsAbs(rel) {
			return "", fmt.Errorf("%w: %q is not relative", ErrMalformedLocator, rel)
		}
		path = filepath.Join(root, filepath.FromSlash(rel))
	}

	slashed := filepath.ToSlash(filepath.Clean(path))
	if !strings.HasPrefix(slashed, "/") {
		slashed = "/" + slashed
	}
	u := url.URL{Scheme: "file", Path: slashed}
	return u.String(), nil
}

// LocatorPath returns the OS path behind a file:// locator.
func LocatorPath(locator string) (string, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedLocator, err)
	}
	if u.Scheme != "file" || u.Path == "" {
		return "", fmt.Errorf("%w: %q is not a file locator", ErrMalformedLocator, locator)
	}
	path := u.Path
	// Windows drive paths are encoded as /C:/...
	if len(path) >= 3 && path[0] == '/' && path[2] == ':' {
		path = path[1:]
	}
	return filepath.FromSlash(path), nil
}
