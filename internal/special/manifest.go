// Package special loads the per-title list of images that bypass the main
// resize pipeline and are encoded at full size with their own quality.
package special

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultManifest []byte

// Manifest maps title directory names to their special image file names.
type Manifest struct {
	Titles map[string][]string `yaml:"titles"`
}

// Default returns the manifest compiled into the binary.
func Default() *Manifest {
	m, err := parse(defaultManifest)
	if err != nil {
		panic(fmt.Sprintf("special: embedded manifest: %v", err))
	}
	return m
}

// Load reads a manifest file. Unknown keys are rejected, and every name must
// be a bare file name.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read special manifest: %w", err)
	}
	m, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// LoadOrDefault loads path, or returns [Default] when path is empty.
func LoadOrDefault(path string) (*Manifest, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

func parse(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse special manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid special manifest: %w", err)
	}
	return &m, nil
}

// Validate checks that titles and names are non-empty single path elements.
func (m *Manifest) Validate() error {
	for title, names := range m.Titles {
		if !bareName(title) {
			return fmt.Errorf("invalid title %q", title)
		}
		for _, n := range names {
			if !bareName(n) {
				return fmt.Errorf("title %s: invalid file name %q", title, n)
			}
		}
	}
	return nil
}

// For returns the special set for title. A title with no entry yields an
// empty set.
func (m *Manifest) For(title string) Set {
	if m == nil {
		return nil
	}
	names := m.Titles[title]
	if len(names) == 0 {
		return nil
	}
	s := make(Set, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Set is a set of base file names. The nil Set is empty.
type Set map[string]struct{}

// Contains reports whether name is in the set.
func (s Set) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// Len returns the number of distinct names.
func (s Set) Len() int { return len(s) }

// Sorted returns the names in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func bareName(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}
