package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// ScalingConfig maps asset paths to their uniform scale. Paths that are
// absent scale by 1.0.
type ScalingConfig map[string]float64

// DefaultScale applies to paths without an entry.
const DefaultScale = 1.0

// Lookup returns the scale for path and whether an entry exists.
func (s ScalingConfig) Lookup(path string) (float64, bool) {
	v, ok := s[path]
	if !ok {
		return DefaultScale, false
	}
	return v, true
}

// Validate checks that every scale is positive and finite.
func (s ScalingConfig) Validate() error {
	for p, v := range s {
		if p == "" {
			return fmt.Errorf("empty path")
		}
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("path %q: scale %v is not a positive finite number", p, v)
		}
	}
	return nil
}

// UnmarshalJSON decodes a scaling object, rejecting repeated paths.
func (s *ScalingConfig) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	out := ScalingConfig{}
	err := decodeObject(dec, func(key string) error {
		if _, ok := out[key]; ok {
			return fmt.Errorf("path %q listed twice", key)
		}
		var v float64
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("path %q: %w", key, err)
		}
		out[key] = v
		return nil
	})
	if err != nil {
		return err
	}
	*s = out
	return nil
}

// ValidatePair checks that every scaled path is listed in the manifest.
func ValidatePair(m *Manifest, s ScalingConfig) error {
	for p := range s {
		if !m.Contains(p) {
			return fmt.Errorf("scaling entry %q is not in the manifest", p)
		}
	}
	return nil
}
