// Package scale derives the uniform scale factor of an asset from its
// bounds and its category's real-world defaults.
package scale

import (
	"fmt"
	"strings"
)

// Policy selects the scale formula. It is chosen once per run.
type Policy int

const (
	// HeightNormalize scales every asset to a fixed target height.
	HeightNormalize Policy = iota
	// CategoryRelative applies humanoid/expected to a whole category and
	// ignores geometry.
	CategoryRelative
	// HumanoidClamped divides the category ratio by the clamped measured
	// height.
	HumanoidClamped
	// Manual takes the scale literally from the defaults table.
	Manual
)

var policyNames = [...]string{
	HeightNormalize:  "height-normalize",
	CategoryRelative: "category-relative",
	HumanoidClamped:  "humanoid-clamped",
	Manual:           "manual",
}

func (p Policy) String() string {
	if p < 0 || int(p) >= len(policyNames) {
		return fmt.Sprintf("Policy(%d)", int(p))
	}
	return policyNames[p]
}

// ParsePolicy resolves a policy by its name. Matching is case-insensitive.
func ParsePolicy(name string) (Policy, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for p, s := range policyNames {
		if s == n {
			return Policy(p), nil
		}
	}
	return 0, fmt.Errorf("unknown scale policy %q: must be one of %s", name, strings.Join(policyNames[:], ", "))
}

// NeedsGeometry reports whether the policy reads the asset's bounds.
func (p Policy) NeedsGeometry() bool {
	return p == HeightNormalize || p == HumanoidClamped
}

// NeedsLoad reports whether the asset file must be opened. Manual still
// opens it so that broken files are kept out of the manifest.
func (p Policy) NeedsLoad() bool {
	return p != CategoryRelative
}

// UsesDefaults reports whether the policy consults the category defaults.
func (p Policy) UsesDefaults() bool {
	return p != HeightNormalize
}
