package schema

import (
	"bytes"
	"fmt"
	"os"

	"github.com/zeebo/xxh3"
	"gopkg.in/yaml.v3"
)

// Marshal encodes a snapshot as YAML.
func Marshal(d *DatabaseSchema) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("failed to encode schema %s: %w", d.Name, err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode schema %s: %w", d.Name, err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a YAML snapshot.
func Unmarshal(data []byte) (*DatabaseSchema, error) {
	var d DatabaseSchema
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	return &d, nil
}

// SaveFile writes a snapshot to path.
func SaveFile(path string, d *DatabaseSchema) error {
	data, err := Marshal(d)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write schema file: %w", err)
	}
	return nil
}

// LoadFile reads a snapshot written by SaveFile.
func LoadFile(path string) (*DatabaseSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return Unmarshal(data)
}

// Fingerprint is an xxh3 hash of the canonical YAML encoding. Equal trees
// have equal fingerprints; it is used to detect drift cheaply.
func Fingerprint(d *DatabaseSchema) (uint64, error) {
	data, err := Marshal(d)
	if err != nil {
		return 0, err
	}
	return xxh3.Hash(data), nil
}
