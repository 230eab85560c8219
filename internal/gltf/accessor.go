package gltf

import (
	"encoding/binary"
	"fmt"
	"math"
)

// MaxUnbackedCount bounds the count of an accessor that has no buffer
// view. Such an accessor is all zeros apart from its sparse values, so its
// count is not limited by any data in the file.
const MaxUnbackedCount = 1 << 24

// ReadVec3 decodes accessor idx as a list of 3-component vectors, reading
// the raw buffer bytes. Integer components are converted to float, and
// normalized where the accessor says so. Byte stride and sparse
// substitution are honored. The accessor's min/max are not consulted.
//
// The count is checked against the data backing the accessor before
// anything is allocated.
func (m *Model) ReadVec3(idx int64) ([][3]float32, error) {
	a := &m.Doc.Accessors[idx]
	if a.Type != VEC3 {
		return nil, newErr(fmt.Sprintf("accessors[%d] has type %s, want VEC3", idx, a.Type))
	}
	csize := componentSize(a.ComponentType)
	esize := 3 * csize

	var (
		view   []byte
		stride int64
	)
	if a.BufferView != nil {
		view = m.View(*a.BufferView)
		stride = m.Doc.BufferViews[*a.BufferView].ByteStride
		if stride == 0 {
			stride = esize
		}
		if !fits(int64(len(view)), a.ByteOffset, a.Count, stride, esize) {
			return nil, newErr(fmt.Sprintf("accessors[%d] exceeds its bufferView", idx))
		}
	} else if a.Count > MaxUnbackedCount {
		return nil, newErr(fmt.Sprintf("accessors[%d] count %d has no bufferView to back it", idx, a.Count))
	}

	var iview, vview []byte
	isize := int64(0)
	if s := a.Sparse; s != nil {
		isize = componentSize(s.Indices.ComponentType)
		iview = m.View(s.Indices.BufferView)
		vview = m.View(s.Values.BufferView)
		if !fits(int64(len(iview)), s.Indices.ByteOffset, s.Count, isize, isize) ||
			!fits(int64(len(vview)), s.Values.ByteOffset, s.Count, esize, esize) {
			return nil, newErr(fmt.Sprintf("accessors[%d] sparse data exceeds its bufferView", idx))
		}
	}

	out := make([][3]float32, a.Count)
	if view != nil {
		for i := range out {
			off := a.ByteOffset + int64(i)*stride
			for c := range out[i] {
				out[i][c] = component(view[off+int64(c)*csize:], a.ComponentType, a.Normalized)
			}
		}
	}
	if s := a.Sparse; s != nil {
		for i := int64(0); i < s.Count; i++ {
			j := index(iview[s.Indices.ByteOffset+i*isize:], s.Indices.ComponentType)
			if int64(j) >= a.Count {
				return nil, newErr(fmt.Sprintf("accessors[%d] sparse index %d out of range", idx, j))
			}
			off := s.Values.ByteOffset + i*esize
			for c := range out[j] {
				out[j][c] = component(vview[off+int64(c)*csize:], a.ComponentType, a.Normalized)
			}
		}
	}
	return out, nil
}

// fits reports whether count elements of size bytes, stride bytes apart and
// starting at offset, lie within n bytes. It never overflows.
func fits(n, offset, count, stride, size int64) bool {
	if count < 1 || offset < 0 || size > n || offset > n-size {
		return false
	}
	return count-1 <= (n-size-offset)/stride
}

// component decodes one little-endian component at the start of b.
func component(b []byte, ct int64, normalized bool) float32 {
	switch ct {
	case FLOAT:
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	case BYTE:
		v := float32(int8(b[0]))
		if normalized {
			return max(v/127, -1)
		}
		return v
	case UNSIGNED_BYTE:
		v := float32(b[0])
		if normalized {
			return v / 255
		}
		return v
	case SHORT:
		v := float32(int16(binary.LittleEndian.Uint16(b)))
		if normalized {
			return max(v/32767, -1)
		}
		return v
	case UNSIGNED_SHORT:
		v := float32(binary.LittleEndian.Uint16(b))
		if normalized {
			return v / 65535
		}
		return v
	case UNSIGNED_INT:
		v := float32(binary.LittleEndian.Uint32(b))
		if normalized {
			return v / 4294967295
		}
		return v
	}
	return 0
}

func index(b []byte, ct int64) uint32 {
	switch ct {
	case UNSIGNED_BYTE:
		return uint32(b[0])
	case UNSIGNED_SHORT:
		return uint32(binary.LittleEndian.Uint16(b))
	default:
		return binary.LittleEndian.Uint32(b)
	}
}
