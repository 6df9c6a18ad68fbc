package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern represents a compiled filter condition supporting substring and regex matching.
type Pattern struct {
	regex *regexp.Regexp
	lower string
}

// Compile transforms raw pattern strings into Pattern values. A pattern
// wrapped in slashes is a regular expression; anything else is a
// case-insensitive substring.
func Compile(patterns []string) ([]Pattern, error) {
	result := make([]Pattern, 0, len(patterns))
	for _, raw := range patterns {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.HasPrefix(raw, "/") && strings.HasSuffix(raw, "/") && len(raw) >= 2 {
			expr := raw[1 : len(raw)-1]
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("compile regexp %q: %w", raw, err)
			}
			result = append(result, Pattern{regex: re})
			continue
		}
		result = append(result, Pattern{lower: strings.ToLower(raw)})
	}
	return result, nil
}

// Match reports whether the pattern matches the supplied string.
func (p Pattern) Match(s string) bool {
	if s == "" {
		return false
	}
	if p.regex != nil {
		return p.regex.MatchString(s)
	}
	return strings.Contains(strings.ToLower(s), p.lower)
}

// Set selects paths: a path is kept when it matches one of Only (or Only is
// empty) and none of Skip.
type Set struct {
	Only []Pattern
	Skip []Pattern
}

// NewSet compiles only and skip patterns.
func NewSet(only, skip []string) (Set, error) {
	o, err := Compile(only)
	if err != nil {
		return Set{}, err
	}
	s, err := Compile(skip)
	if err != nil {
		return Set{}, err
	}
	return Set{Only: o, Skip: s}, nil
}

// Match reports whether path is selected.
func (s Set) Match(path string) bool {
	if len(s.Only) > 0 && !matchesAny(path, s.Only) {
		return false
	}
	if len(s.Skip) > 0 && matchesAny(path, s.Skip) {
		return false
	}
	return true
}

func matchesAny(s string, patterns []Pattern) bool {
	for _, pattern := range patterns {
		if pattern.Match(s) {
			return true
		}
	}
	return false
}
