package scale

import (
	"math"

	"github.com/vk/townpack/internal/category"
)

// DefaultHumanoidHeight is used when the defaults table has no humanoid
// height.
const DefaultHumanoidHeight = 2.0

// CategoryDefaults holds the reference humanoid height and one value per
// category. For the relative policies a value is the category's expected
// real-world height in meters; for Manual it is the scale itself.
type CategoryDefaults struct {
	HumanoidHeight float64
	Values         map[category.Category]float64
}

// Value returns the entry for c. It reports false when the entry is absent,
// non-positive or not finite.
func (d *CategoryDefaults) Value(c category.Category) (float64, bool) {
	if d == nil {
		return 0, false
	}
	v, ok := d.Values[c]
	if !ok || !positive(v) {
		return 0, false
	}
	return v, true
}

// Humanoid returns the humanoid height. Only an unset height falls back to
// DefaultHumanoidHeight; any other value is returned as is, so an invalid
// height surfaces as ErrInvalidScale from Compute.
func (d *CategoryDefaults) Humanoid() float64 {
	if d == nil || d.HumanoidHeight == 0 {
		return DefaultHumanoidHeight
	}
	return d.HumanoidHeight
}

// ValidHeight reports whether v is usable as a height or scale: positive
// and finite.
func ValidHeight(v float64) bool { return positive(v) }

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
