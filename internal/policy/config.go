package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk policy document. It only seeds the switches a fresh
// session starts with; runtime changes go through the audited toggle path.
type File struct {
	Defaults SecurityPolicy `yaml:"defaults"`
}

// LoadFile reads a policy YAML file. An empty path or a missing file yields
// Default(). Invalid YAML returns an error. The returned hash is the SHA-256
// of the raw bytes (of empty input when defaults were used).
func LoadFile(path string) (SecurityPolicy, string, error) {
	if path == "" {
		return Default(), hashBytes(nil), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), hashBytes(nil), nil
		}
		return SecurityPolicy{}, "", fmt.Errorf("failed to read policy file: %w", err)
	}

	// Start with defaults, YAML overwrites only specified fields
	f := File{Defaults: Default()}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return SecurityPolicy{}, "", fmt.Errorf("failed to parse policy file: %w", err)
	}
	return f.Defaults, hashBytes(data), nil
}

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(h[:])
}
