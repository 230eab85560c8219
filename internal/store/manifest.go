// Package store persists the documents exchanged between the generate and
// pack stages: the asset manifest, the scaling config and the category
// defaults table.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/vk/townpack/internal/category"
)

// Manifest maps each configured category to its ordered list of asset
// paths. Category order is part of the value and is kept on encoding.
type Manifest struct {
	entries []ManifestEntry
}

// ManifestEntry is one category's list in a Manifest.
type ManifestEntry struct {
	Category category.Category
	Paths    []string
}

// NewManifest creates a manifest with an empty list for every category in
// cats, in order.
func NewManifest(cats category.Set) *Manifest {
	m := &Manifest{entries: make([]ManifestEntry, 0, len(cats))}
	for _, c := range cats {
		m.entries = append(m.entries, ManifestEntry{Category: c, Paths: []string{}})
	}
	return m
}

// Add appends path to category c. It panics if c is not part of the
// manifest; callers only add categories they created it with.
func (m *Manifest) Add(c category.Category, path string) {
	e := m.entry(c)
	if e == nil {
		panic(fmt.Sprintf("store: category %s is not in the manifest", c))
	}
	e.Paths = append(e.Paths, path)
}

// Entries returns the manifest's categories in order. The slice must not
// be modified.
func (m *Manifest) Entries() []ManifestEntry { return m.entries }

// Categories returns the manifest's category set in order.
func (m *Manifest) Categories() category.Set {
	out := make(category.Set, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Category
	}
	return out
}

// Paths returns the list for category c, or nil when c is absent.
func (m *Manifest) Paths(c category.Category) []string {
	if e := m.entry(c); e != nil {
		return e.Paths
	}
	return nil
}

// Contains reports whether path is listed under any category.
func (m *Manifest) Contains(path string) bool {
	for _, e := range m.entries {
		if slices.Contains(e.Paths, path) {
			return true
		}
	}
	return false
}

// Len returns the number of paths across all categories.
func (m *Manifest) Len() int {
	n := 0
	for _, e := range m.entries {
		n += len(e.Paths)
	}
	return n
}

func (m *Manifest) entry(c category.Category) *ManifestEntry {
	for i := range m.entries {
		if m.entries[i].Category == c {
			return &m.entries[i]
		}
	}
	return nil
}

// Validate checks that no path is listed twice and no path is empty.
func (m *Manifest) Validate() error {
	seen := make(map[string]category.Category)
	for _, e := range m.entries {
		if !e.Category.Valid() {
			return fmt.Errorf("unknown category %q", e.Category)
		}
		for _, p := range e.Paths {
			if p == "" {
				return fmt.Errorf("category %s: empty path", e.Category)
			}
			if prev, ok := seen[p]; ok {
				return fmt.Errorf("path %q listed under both %s and %s", p, prev, e.Category)
			}
			seen[p] = e.Category
		}
	}
	return nil
}

// MarshalJSON encodes the manifest as an object whose keys follow the
// manifest's category order.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(e.Category))
		if err != nil {
			return nil, err
		}
		paths := e.Paths
		if paths == nil {
			paths = []string{}
		}
		val, err := json.Marshal(paths)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a manifest object, keeping key order. Unknown or
// repeated categories are errors.
func (m *Manifest) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	var entries []ManifestEntry
	err := decodeObject(dec, func(key string) error {
		c, err := category.Parse(key)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.Category == c {
				return fmt.Errorf("category %s listed twice", c)
			}
		}
		var paths []string
		if err := dec.Decode(&paths); err != nil {
			return fmt.Errorf("category %s: %w", c, err)
		}
		if paths == nil {
			paths = []string{}
		}
		entries = append(entries, ManifestEntry{Category: c, Paths: paths})
		return nil
	})
	if err != nil {
		return err
	}
	m.entries = entries
	return nil
}

// decodeObject reads one JSON object from dec, calling fn for each key with
// the decoder positioned at the key's value. fn must consume the value.
func decodeObject(dec *json.Decoder, fn func(key string) error) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected a JSON object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if err := fn(tok.(string)); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after JSON object")
	}
	return nil
}
