package tap

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Diagnostics is the YAML block attached to a test point. The well-known
// fields are rendered to text; other keys are ignored.
type Diagnostics struct {
	Stack   string
	Source  string
	Compare string
	Found   string
	Wanted  string
}

// ParseDiagnostics decodes a YAML diagnostic block. A block that is not valid
// YAML still yields empty Diagnostics, alongside the decode error.
func ParseDiagnostics(raw string) (*Diagnostics, error) {
	d := &Diagnostics{}
	if strings.TrimSpace(raw) == "" {
		return d, nil
	}

	var doc map[string]any
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return d, fmt.Errorf("decode diagnostics: %w", err)
	}

	for key, value := range doc {
		switch key {
		case "stack":
			d.Stack = diagText(value)
		case "source":
			d.Source = diagText(value)
		case "compare":
			d.Compare = diagText(value)
		case "found":
			d.Found = diagText(value)
		case "wanted":
			d.Wanted = diagText(value)
		}
	}
	return d, nil
}

func diagText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any, []any:
		out, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return strings.TrimRight(string(out), "\n")
	default:
		return fmt.Sprint(v)
	}
}
