// Package linear implements the small amount of 3D math needed to bake
// placement transforms into glTF nodes.
package linear

import (
	"github.com/chewxy/math32"
)

// V3 is a 3-component vector of float32.
type V3 [3]float32

// Add returns v + w.
func (v V3) Add(w V3) (u V3) {
	for i := range u {
		u[i] = v[i] + w[i]
	}
	return
}

// Sub returns v - w.
func (v V3) Sub(w V3) (u V3) {
	for i := range u {
		u[i] = v[i] - w[i]
	}
	return
}

// Scale returns s ⋅ v.
func (v V3) Scale(s float32) (u V3) {
	for i := range u {
		u[i] = s * v[i]
	}
	return
}

// Mul returns the componentwise product of v and w.
func (v V3) Mul(w V3) (u V3) {
	for i := range u {
		u[i] = v[i] * w[i]
	}
	return
}

// Min returns the componentwise minimum of v and w.
func (v V3) Min(w V3) (u V3) {
	for i := range u {
		u[i] = math32.Min(v[i], w[i])
	}
	return
}

// Max returns the componentwise maximum of v and w.
func (v V3) Max(w V3) (u V3) {
	for i := range u {
		u[i] = math32.Max(v[i], w[i])
	}
	return
}

// Finite reports whether no component is NaN or ±Inf.
func (v V3) Finite() bool {
	for _, x := range v {
		if math32.IsNaN(x) || math32.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// V4 is a 4-component vector of float32.
type V4 [4]float32

// M4 is a column-major 4x4 matrix of float32, the layout glTF uses for
// node.matrix.
type M4 [4]V4

// Identity returns the 4x4 identity matrix.
func Identity() M4 { return M4{{1}, {0, 1}, {0, 0, 1}, {0, 0, 0, 1}} }

// Scaling returns a matrix that scales uniformly by s.
func Scaling(s float32) M4 { return M4{{s}, {0, s}, {0, 0, s}, {0, 0, 0, 1}} }

// Translation returns a matrix that translates by t.
func Translation(t V3) M4 { return M4{{1}, {0, 1}, {0, 0, 1}, {t[0], t[1], t[2], 1}} }

// Mul returns l ⋅ r.
func Mul(l, r M4) (m M4) {
	for i := range m {
		for j := range m {
			for k := range m {
				m[i][j] += l[k][j] * r[i][k]
			}
		}
	}
	return
}

// FromArray builds a matrix from glTF's flat column-major array.
func FromArray(a [16]float32) (m M4) {
	for i := range m {
		copy(m[i][:], a[i*4:i*4+4])
	}
	return
}

// Array flattens m into glTF's column-major array.
func (m M4) Array() (a [16]float32) {
	for i := range m {
		copy(a[i*4:i*4+4], m[i][:])
	}
	return
}

// IsIdentity reports whether m is exactly the identity matrix.
func (m M4) IsIdentity() bool { return m == Identity() }

// Place bakes a uniform scale followed by a translation into the local TRS
// transform of a node: T(offset) ⋅ S(s) ⋅ T(t) ⋅ R ⋅ S(scale). Since the
// outer scale is uniform it commutes with the rotation, so the result is
// again a TRS with the rotation unchanged.
func Place(t, scale V3, s float32, offset V3) (V3, V3) {
	return offset.Add(t.Scale(s)), scale.Scale(s)
}

// PlaceMatrix is the matrix form of Place: T(offset) ⋅ S(s) ⋅ m.
func PlaceMatrix(m M4, s float32, offset V3) M4 {
	return Mul(Translation(offset), Mul(Scaling(s), m))
}
