package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/townpack/internal/category"
	"github.com/vk/townpack/internal/ctxlog"
	"github.com/vk/townpack/internal/scale"
	"github.com/zclconf/go-cty/cty/gocty"
	"gopkg.in/yaml.v3"
)

// ErrDefaultsMissing is returned when the category defaults file does not
// exist. It is a fatal configuration error for policies that need it.
var ErrDefaultsMissing = errors.New("category defaults file is missing")

const humanoidKey = "humanoidHeight"

// ReadDefaults reads the category defaults table at path. The file is a
// flat object holding humanoidHeight and one number per category, in JSON,
// in YAML when the extension is .yaml or .yml, or as HCL attributes when it
// is .hcl. Unknown keys are logged and ignored. A missing humanoidHeight
// falls back to the default with a warning; a present one that is not
// positive and finite is a parse error.
func ReadDefaults(ctx context.Context, path string) (*scale.CategoryDefaults, error) {
	logger := ctxlog.FromContext(ctx)

	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrDefaultsMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read defaults: %w", err)
	}

	raw := map[string]float64{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &raw)
	case ".hcl":
		raw, err = decodeHCLDefaults(b, path)
	default:
		dec := json.NewDecoder(bytes.NewReader(b))
		err = dec.Decode(&raw)
	}
	if err != nil {
		return nil, fmt.Errorf("read defaults %s: %w: %w", path, ErrParse, err)
	}

	d := &scale.CategoryDefaults{Values: make(map[category.Category]float64)}
	for k, v := range raw {
		if k == humanoidKey {
			if !scale.ValidHeight(v) {
				return nil, fmt.Errorf("read defaults %s: %w: %s must be positive and finite, got %v", path, ErrParse, humanoidKey, v)
			}
			d.HumanoidHeight = v
			continue
		}
		c, err := category.Parse(k)
		if err != nil {
			logger.Warn("Ignoring unknown key in category defaults.", "key", k, "file", path)
			continue
		}
		d.Values[c] = v
	}
	if _, ok := raw[humanoidKey]; !ok {
		logger.Warn("Category defaults have no humanoid height, using default.", "humanoidHeight", scale.DefaultHumanoidHeight)
		d.HumanoidHeight = scale.DefaultHumanoidHeight
	}
	return d, nil
}

// decodeHCLDefaults reads a body of plain attributes such as
//
//	humanoidHeight = 1.8
//	houses         = 6
//
// Blocks and non-numeric values are errors.
func decodeHCLDefaults(src []byte, filename string) (map[string]float64, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, diags
	}
	attrs, diags := file.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	out := make(map[string]float64, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, diags
		}
		var v float64
		if err := gocty.FromCtyValue(val, &v); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}
