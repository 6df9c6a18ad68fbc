package discovery

import (
	"path/filepath"
	"strings"
)

// Decompose splits a test name that ends in suffix into its directory segments
// and the file name. Names are relative paths in either slash or OS form.
// ok is false for any other name, which callers treat as an opaque group name.
func Decompose(name, suffix string) (segments []string, leaf string, ok bool) {
	if suffix == "" || !strings.HasSuffix(name, suffix) {
		return nil, "", false
	}

	parts := strings.Split(filepath.FromSlash(name), string(filepath.Separator))
	for _, part := range parts[:len(parts)-1] {
		if part == "" || part == "." {
			continue
		}
		segments = append(segments, part)
	}
	return segments, parts[len(parts)-1], true
}
