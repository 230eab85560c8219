// Package category defines the fixed set of asset categories a town is
// organized into, and ordered subsets of it selected for a run.
package category

import (
	"fmt"
	"strings"
)

// Category names one subfolder of a town.
type Category string

// Known categories. The folder name on disk equals the category name.
const (
	Houses Category = "houses"
	Trees  Category = "trees"
	Props  Category = "props"
	Cars   Category = "cars"
)

// All lists every known category in canonical order.
var All = []Category{Houses, Trees, Props, Cars}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, k := range All {
		if c == k {
			return true
		}
	}
	return false
}

func (c Category) String() string { return string(c) }

// Parse converts a name into a known Category.
func Parse(name string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(name)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", name)
	}
	return c, nil
}

// Set is an ordered, duplicate-free selection of categories.
type Set []Category

// ParseSet parses names in order. Duplicates and unknown names are errors.
// An empty input selects All.
func ParseSet(names []string) (Set, error) {
	if len(names) == 0 {
		return append(Set(nil), All...), nil
	}
	seen := make(map[Category]struct{}, len(names))
	set := make(Set, 0, len(names))
	for _, n := range names {
		c, err := Parse(n)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[c]; dup {
			return nil, fmt.Errorf("category %q listed twice", c)
		}
		seen[c] = struct{}{}
		set = append(set, c)
	}
	return set, nil
}

// Contains reports whether c is part of s.
func (s Set) Contains(c Category) bool {
	for _, k := range s {
		if k == c {
			return true
		}
	}
	return false
}

// Strings returns the category names in order.
func (s Set) Strings() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = string(c)
	}
	return out
}
