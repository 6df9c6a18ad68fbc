package version

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

// Build is the taptree release, overridden at link time with
// -ldflags "-X github.com/bgricker/taptree/internal/version.Build=v1.2.3".
var Build = "dev"

// Info captures a language version installed on the system.
type Info struct {
	Name    string
	Version string
}

var nodeRegex = regexp.MustCompile(`(?i)v?(\d+\.\d+(?:\.\d+)?)`)

// nodeVersionFiles are checked in order; the first non-empty one wins.
var nodeVersionFiles = []string{".node-version", ".nvmrc"}

// DetectNode returns the system Node.js version by calling `node -v`.
func DetectNode(ctx context.Context) (Info, error) {
	out, err := runCommand(ctx, "node", "-v")
	if err != nil {
		return Info{}, err
	}
	match := nodeRegex.FindStringSubmatch(out)
	if len(match) < 2 {
		return Info{}, fmt.Errorf("unable to parse node version from %q", out)
	}
	return Info{Name: "node", Version: match[1]}, nil
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = nil
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// NodeWarning compares the version pinned by a workspace's .node-version or
// .nvmrc with the installed node. It returns "" when nothing is pinned, the pin
// is not numeric (e.g. lts/*), or the major.minor versions agree.
func NodeWarning(ctx context.Context, dir string, detect func(context.Context) (Info, error)) string {
	file, required := pinnedNode(dir)
	if required == "" || semverPrefix(required) == "" {
		return ""
	}
	if detect == nil {
		detect = DetectNode
	}

	info, err := detect(ctx)
	if err != nil {
		if Missing(err) {
			return fmt.Sprintf("node executable not found; required %s (from %s)", required, file)
		}
		return fmt.Sprintf("unable to detect node version: %v", err)
	}
	if !CompareMajorMinor(required, info.Version) {
		return fmt.Sprintf("node version mismatch: required %s (from %s) but found %s", required, file, info.Version)
	}
	return ""
}

func pinnedNode(dir string) (file, required string) {
	for _, name := range nodeVersionFiles {
		contents, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		if v := strings.TrimSpace(string(contents)); v != "" {
			return name, v
		}
	}
	return "", ""
}

// CompareMajorMinor compares major.minor portions of two semver-like versions.
// Versions without a major.minor prefix are treated as matching.
func CompareMajorMinor(desired, actual string) bool {
	d := semverPrefix(desired)
	a := semverPrefix(actual)
	if d == "" || a == "" {
		return true
	}
	return strings.EqualFold(d, a)
}

func semverPrefix(version string) string {
	version = strings.TrimPrefix(strings.TrimSpace(version), "v")
	parts := strings.Split(version, ".")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return ""
	}
	return fmt.Sprintf("%s.%s", parts[0], parts[1])
}

// Missing reports whether executing the command returns a not-found error.
func Missing(cmdErr error) bool {
	return errors.Is(cmdErr, exec.ErrNotFound)
}
