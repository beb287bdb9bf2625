package schema

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadFile reads and parses a flow YAML file.
func LoadFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open flow: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a flow from an io.Reader. The document node is retained so
// a later Dump preserves comments and field order.
func Load(r io.Reader) (*Scenario, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read flow: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode flow: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, fmt.Errorf("flow document is empty")
	}

	var s Scenario
	if err := doc.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode flow: %w", err)
	}
	s.doc = &doc
	s.ApplyDefaults()
	return &s, nil
}

// Dump writes the scenario back to YAML. When the scenario still carries
// its original document node, that node is re-encoded so comments and
// field order survive the roundtrip; scenarios built in memory are
// marshaled from the model.
func Dump(s *Scenario, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()

	if s.doc != nil {
		if err := enc.Encode(s.doc); err != nil {
			return fmt.Errorf("encode flow: %w", err)
		}
		return nil
	}
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode flow: %w", err)
	}
	return nil
}

// DumpFile writes the scenario to path, creating parent directories.
func DumpFile(s *Scenario, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create flow directory: %w", err)
	}
	var buf bytes.Buffer
	if err := Dump(s, &buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write flow: %w", err)
	}
	return nil
}
