// Package layout decides where each packed asset is placed in the town.
// Every layout is a pure function of the asset's index and path, so packing
// the same manifest twice gives the same scene.
package layout

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/vk/townpack/internal/linear"
)

// Layout returns the placement offset of the index-th packed asset.
type Layout interface {
	Offset(index int, path string) linear.V3
}

// Options parameterize the built-in layouts.
type Options struct {
	// Columns is the grid width.
	Columns int
	// Spacing is the grid cell size in meters.
	Spacing float32
	// Extent is the side of the square the hash layout scatters into.
	Extent float32
	// Count is the number of assets to place. The grid uses it to center
	// itself; zero centers on the first row.
	Count int
}

// DefaultOptions returns the stock layout parameters.
func DefaultOptions() Options {
	return Options{Columns: 10, Spacing: 10, Extent: 100}
}

// Names lists the layouts known to New.
var Names = []string{"grid", "hash", "origin"}

// New returns the layout called name.
func New(name string, opts Options) (Layout, error) {
	switch strings.ToLower(name) {
	case "grid":
		if opts.Columns < 1 || !(opts.Spacing > 0) {
			return nil, fmt.Errorf("grid layout needs columns >= 1 and spacing > 0, got %d and %v", opts.Columns, opts.Spacing)
		}
		return NewGrid(opts.Columns, opts.Spacing, opts.Count), nil
	case "hash":
		if !(opts.Extent > 0) {
			return nil, fmt.Errorf("hash layout needs extent > 0, got %v", opts.Extent)
		}
		return Hash{Extent: opts.Extent}, nil
	case "origin":
		return Origin{}, nil
	}
	return nil, fmt.Errorf("unknown layout %q: must be one of %s", name, strings.Join(Names, ", "))
}

// Grid lays assets out row by row on the XZ plane, centered on the origin.
type Grid struct {
	Columns int
	Spacing float32
	width   int
	rows    int
}

// NewGrid creates a grid sized for count assets. A count of zero sizes it
// as a single full row.
func NewGrid(columns int, spacing float32, count int) *Grid {
	g := &Grid{Columns: columns, Spacing: spacing, width: columns, rows: 1}
	if count > 0 {
		g.width = min(columns, count)
		g.rows = (count + columns - 1) / columns
	}
	return g
}

func (g *Grid) Offset(index int, _ string) linear.V3 {
	col, row := index%g.Columns, index/g.Columns
	x := (float32(col) - float32(g.width-1)/2) * g.Spacing
	z := (float32(row) - float32(g.rows-1)/2) * g.Spacing
	return linear.V3{x, 0, z}
}

// Hash scatters assets over a square of side Extent centered on the origin.
// The position is derived from the FNV-1a hash of the asset path, so an
// asset keeps its place when others are added or removed.
type Hash struct {
	Extent float32
}

func (h Hash) Offset(_ int, path string) linear.V3 {
	f := fnv.New64a()
	f.Write([]byte(path))
	var sum [8]byte
	binary.BigEndian.PutUint64(sum[:], f.Sum64())
	u := unit(binary.BigEndian.Uint32(sum[:4]))
	v := unit(binary.BigEndian.Uint32(sum[4:]))
	return linear.V3{(u - 0.5) * h.Extent, 0, (v - 0.5) * h.Extent}
}

// unit maps x onto [0, 1) using its top 24 bits, which float32 holds
// exactly.
func unit(x uint32) float32 {
	return float32(x>>8) / (1 << 24)
}

// Origin places every asset at the origin.
type Origin struct{}

func (Origin) Offset(int, string) linear.V3 { return linear.V3{} }
