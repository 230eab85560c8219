// Package scan enumerates the asset files of a town, one subfolder per
// category.
package scan

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/vk/townpack/internal/bounds"
	"github.com/vk/townpack/internal/category"
	"github.com/vk/townpack/internal/ctxlog"
	"github.com/vk/townpack/internal/fsutil"
)

// AssetRecord describes one asset file found by the scanner.
type AssetRecord struct {
	Category category.Category
	// Path is the slash-separated key used in the manifest and scaling
	// config, e.g. "assets/towns/town1/houses/a.glb".
	Path string
	// File is Path in the local file system's form.
	File string
	// Bounds is filled in by the generate stage; it is invalid until then.
	Bounds bounds.Box
}

// Folder is the scan result for one category.
type Folder struct {
	Category category.Category
	// Missing is set when the category's subfolder does not exist.
	Missing bool
	Records []AssetRecord
}

// Result holds one Folder per requested category, in request order.
type Result struct {
	Folders []Folder
}

// Len returns the total number of records.
func (r *Result) Len() int {
	n := 0
	for _, f := range r.Folders {
		n += len(f.Records)
	}
	return n
}

// Scan lists the files with the given extension under dir/<category> for
// every category in cats. A missing subfolder yields an empty, Missing
// folder. Records are ordered by file name within each category.
func Scan(ctx context.Context, dir string, cats category.Set, ext string) (*Result, error) {
	logger := ctxlog.FromContext(ctx)
	prefix := filepath.ToSlash(dir)

	res := &Result{Folders: make([]Folder, 0, len(cats))}
	for _, c := range cats {
		names, exists, err := fsutil.ListFilesByExtension(filepath.Join(dir, string(c)), ext)
		if err != nil {
			return nil, fmt.Errorf("scan category %s: %w", c, err)
		}
		f := Folder{Category: c, Missing: !exists}
		for _, name := range names {
			rel := path.Join(prefix, string(c), name)
			f.Records = append(f.Records, AssetRecord{
				Category: c,
				Path:     rel,
				File:     filepath.FromSlash(rel),
			})
		}
		logger.Debug("Scanned category folder.", "category", c, "files", len(f.Records), "missing", f.Missing)
		res.Folders = append(res.Folders, f)
	}
	return res, nil
}
