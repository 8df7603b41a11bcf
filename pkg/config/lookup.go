package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrKeyNotFound is returned when a dotted key does not exist in a tree.
var ErrKeyNotFound = errors.New("key not found")

// Lookup walks a decoded YAML tree one key at a time.
func Lookup(tree map[string]interface{}, keys ...string) (interface{}, error) {
	if len(keys) == 0 {
		return tree, nil
	}

	var cur interface{} = tree
	for i, key := range keys {
		node, ok := cur.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%s: %w", strings.Join(keys[:i], "."), errNotMapping)
		}
		next, ok := node[key]
		if !ok {
			return nil, fmt.Errorf("%s: %w", strings.Join(keys[:i+1], "."), ErrKeyNotFound)
		}
		cur = next
	}
	return cur, nil
}

var errNotMapping = errors.New("not a mapping")

// Set assigns value at keys, creating intermediate mappings as needed.
func Set(tree map[string]interface{}, value interface{}, keys ...string) error {
	if len(keys) == 0 {
		return errors.New("empty key")
	}

	node := tree
	for i, key := range keys[:len(keys)-1] {
		next, ok := node[key]
		if !ok || next == nil {
			child := make(map[string]interface{})
			node[key] = child
			node = child
			continue
		}
		child, ok := next.(map[string]interface{})
		if !ok {
			return fmt.Errorf("%s: %w", strings.Join(keys[:i+1], "."), errNotMapping)
		}
		node = child
	}
	node[keys[len(keys)-1]] = value
	return nil
}

// SplitKey turns "a.b.c" into its parts.
func SplitKey(dotted string) []string {
	parts := strings.Split(dotted, ".")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseValue decodes a command-line value as a YAML scalar so that
// "true", "10" and "3s" keep their natural types.
func ParseValue(raw string) interface{} {
	var v interface{}
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
		return raw
	}
	return v
}

// Tree converts the effective configuration into a generic tree.
func (c *Config) Tree() (map[string]interface{}, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	tree := make(map[string]interface{})
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to decode config tree: %w", err)
	}
	return tree, nil
}

// Get returns the effective value at a dotted key such as "retry.get_attempts".
func (c *Config) Get(dotted string) (interface{}, error) {
	tree, err := c.Tree()
	if err != nil {
		return nil, err
	}
	return Lookup(tree, SplitKey(dotted)...)
}

// SetInFile updates a single dotted key in the YAML file at path, leaving
// every other key as written. The result must still decode into Config.
func SetInFile(path, dotted, raw string) error {
	tree := make(map[string]interface{})

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
		if tree == nil {
			tree = make(map[string]interface{})
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return fmt.Errorf("failed to read config file: %w", err)
	}

	keys := SplitKey(dotted)
	if _, err := DefaultConfig().Get(strings.Join(keys, ".")); err != nil {
		return fmt.Errorf("unknown config key %q: %w", dotted, err)
	}
	if err := Set(tree, ParseValue(raw), keys...); err != nil {
		return err
	}

	out, err := yaml.Marshal(tree)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	check := DefaultConfig()
	if err := yaml.Unmarshal(out, check); err != nil {
		return fmt.Errorf("value for %s does not fit: %w", dotted, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return os.Rename(tmp, path)
}
