package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Path is a filesystem location that may differ per operating system.
// In YAML it is either a plain string or a mapping keyed by GOOS
// (linux, darwin, windows) with an optional "default" entry.
type Path struct {
	Default string
	PerOS   map[string]string
}

// NewPath returns a Path with the same value on every platform.
func NewPath(p string) Path {
	return Path{Default: p}
}

// IsZero reports whether no value is configured for any platform.
func (p Path) IsZero() bool {
	return p.Default == "" && len(p.PerOS) == 0
}

// Raw returns the unexpanded value for the given GOOS.
func (p Path) Raw(goos string) string {
	if v, ok := p.PerOS[goos]; ok && v != "" {
		return v
	}
	return p.Default
}

// Resolve returns the value for the running platform with a leading ~
// expanded to the user's home directory.
func (p Path) Resolve() (string, error) {
	raw := p.Raw(runtime.GOOS)
	if raw == "" {
		return "", fmt.Errorf("no path configured for %s", runtime.GOOS)
	}
	return ExpandHome(raw)
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") && !strings.HasPrefix(p, `~\`) {
		return filepath.Clean(p), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, p[1:]), nil
}

func (p Path) String() string {
	if len(p.PerOS) == 0 {
		return p.Default
	}
	return p.Raw(runtime.GOOS)
}

// UnmarshalYAML accepts a scalar or a GOOS mapping.
func (p *Path) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*p = Path{Default: node.Value}
		return nil
	case yaml.MappingNode:
		var m map[string]string
		if err := node.Decode(&m); err != nil {
			return err
		}
		out := Path{PerOS: make(map[string]string, len(m))}
		for k, v := range m {
			if k == "default" {
				out.Default = v
				continue
			}
			out.PerOS[k] = v
		}
		*p = out
		return nil
	default:
		return fmt.Errorf("line %d: path must be a string or a mapping of platform to path", node.Line)
	}
}

// MarshalYAML writes a plain string when there are no per-platform values.
func (p Path) MarshalYAML() (interface{}, error) {
	if len(p.PerOS) == 0 {
		return p.Default, nil
	}
	return p.asMap(), nil
}

// MarshalJSON mirrors MarshalYAML.
func (p Path) MarshalJSON() ([]byte, error) {
	if len(p.PerOS) == 0 {
		return json.Marshal(p.Default)
	}
	return json.Marshal(p.asMap())
}

func (p Path) asMap() map[string]string {
	m := make(map[string]string, len(p.PerOS)+1)
	for k, v := range p.PerOS {
		m[k] = v
	}
	if p.Default != "" {
		m["default"] = p.Default
	}
	return m
}
