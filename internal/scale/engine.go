package scale

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/vk/townpack/internal/bounds"
	"github.com/vk/townpack/internal/category"
	"github.com/vk/townpack/internal/ctxlog"
)

var (
	// ErrMissingCategoryHeight is returned when a policy needs a category
	// value that the defaults table does not provide.
	ErrMissingCategoryHeight = errors.New("missing category default")
	// ErrInvalidScale is returned when a computed scale is not a positive
	// finite number.
	ErrInvalidScale = errors.New("invalid scale")
)

// Options are the numeric parameters of an Engine.
type Options struct {
	// TargetHeight is the height every asset is normalized to under
	// HeightNormalize.
	TargetHeight float64
	// MinHeight and MaxHeight bound the measured height under
	// HumanoidClamped.
	MinHeight float64
	MaxHeight float64
}

// DefaultOptions returns the stock parameters.
func DefaultOptions() Options {
	return Options{TargetHeight: 3.0, MinHeight: 0.1, MaxHeight: 50.0}
}

// Input is what the engine knows about one asset.
type Input struct {
	Path     string
	Category category.Category
	Box      bounds.Box
}

// Engine computes scale factors under one policy.
type Engine struct {
	policy Policy
	opts   Options
}

// NewEngine creates an engine for p.
func NewEngine(p Policy, opts Options) (*Engine, error) {
	if p < HeightNormalize || p > Manual {
		return nil, fmt.Errorf("unknown scale policy %d", int(p))
	}
	if !positive(opts.TargetHeight) {
		return nil, fmt.Errorf("target height must be positive, got %v", opts.TargetHeight)
	}
	if !positive(opts.MinHeight) || !positive(opts.MaxHeight) || opts.MinHeight > opts.MaxHeight {
		return nil, fmt.Errorf("invalid height range [%v, %v]", opts.MinHeight, opts.MaxHeight)
	}
	return &Engine{policy: p, opts: opts}, nil
}

// Policy returns the engine's policy.
func (e *Engine) Policy() Policy { return e.policy }

// CheckCategory reports whether assets of category c can be scaled with d.
// It lets the caller skip a whole category once instead of failing every
// asset in it.
func (e *Engine) CheckCategory(c category.Category, d *CategoryDefaults) error {
	if !e.policy.UsesDefaults() {
		return nil
	}
	if _, ok := d.Value(c); !ok {
		return fmt.Errorf("%w: %s", ErrMissingCategoryHeight, c)
	}
	return nil
}

// Compute returns the scale of one asset, rounded to three decimals.
func (e *Engine) Compute(ctx context.Context, in Input, d *CategoryDefaults) (float64, error) {
	logger := ctxlog.FromContext(ctx).With("path", in.Path, "category", in.Category)

	var s float64
	switch e.policy {
	case HeightNormalize:
		h := float64(in.Box.Height())
		if !in.Box.Valid {
			logger.Warn("Asset has no usable geometry, using scale 1.0.")
		}
		if h > 0 {
			s = e.opts.TargetHeight / h
		} else {
			s = 1.0
		}

	case CategoryRelative:
		expected, err := e.expected(in.Category, d)
		if err != nil {
			return 0, err
		}
		s = d.Humanoid() / expected

	case HumanoidClamped:
		expected, err := e.expected(in.Category, d)
		if err != nil {
			return 0, err
		}
		raw := 1.0
		if in.Box.Valid {
			raw = float64(in.Box.Height())
		} else {
			logger.Warn("Asset has no usable geometry, assuming height 1.0.")
		}
		if c := clamp(raw, e.opts.MinHeight, e.opts.MaxHeight); c != raw {
			logger.Warn("Measured height out of range, clamping.", "height", raw, "clamped", c)
			raw = c
		}
		s = (d.Humanoid() / expected) / raw

	case Manual:
		v, err := e.expected(in.Category, d)
		if err != nil {
			return 0, err
		}
		s = v
	}

	if !positive(s) {
		return 0, fmt.Errorf("%w: %v for %s", ErrInvalidScale, s, in.Path)
	}
	r := Round(s)
	if !positive(r) {
		return 0, fmt.Errorf("%w: %v rounds to %v for %s", ErrInvalidScale, s, r, in.Path)
	}
	return r, nil
}

func (e *Engine) expected(c category.Category, d *CategoryDefaults) (float64, error) {
	v, ok := d.Value(c)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingCategoryHeight, c)
	}
	return v, nil
}

// Round rounds x to three decimal digits. The manifest consumers rely on
// this precision.
func Round(x float64) float64 {
	return math.Round(x*1000) / 1000
}

func clamp(x, lo, hi float64) float64 {
	return math.Min(math.Max(x, lo), hi)
}
