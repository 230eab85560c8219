package testutil

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/vk/townpack/internal/gltf"
)

// MalformedGLBs returns small GLB blobs whose numeric fields are out of
// range, keyed by what is wrong with them. Each one holds a box mesh that
// must fail either to load or to be measured; none may crash the reader.
func MalformedGLBs(t testing.TB) map[string][]byte {
	t.Helper()
	box := BoxAsset(0, 6)
	edit := func(fn func(d *gltf.Document)) []byte { return box.GLBWith(t, fn) }

	short := box.GLB(t)
	binary.LittleEndian.PutUint32(short[8:], 8)

	return map[string][]byte{
		"negative buffer length": edit(func(d *gltf.Document) {
			d.Buffers[0].ByteLength = -1
		}),
		"buffer view offset overflows": edit(func(d *gltf.Document) {
			d.BufferViews[0].ByteOffset = math.MaxInt64 - 4
		}),
		"huge accessor count": edit(func(d *gltf.Document) {
			d.Accessors[0].Count = 1 << 50
		}),
		"accessor offset overflows": edit(func(d *gltf.Document) {
			d.Accessors[0].ByteOffset = math.MaxInt64 - 8
		}),
		"unbacked accessor count": edit(func(d *gltf.Document) {
			d.Accessors[0].BufferView = nil
			d.Accessors[0].Count = 1 << 40
		}),
		"header length below header size": short,
	}
}
