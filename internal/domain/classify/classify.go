// File: internal/domain/classify/classify.go

// Package classify normalizes heterogeneous raw tool outputs into ordered,
// typed result items. Classification is pure; the only side effect in the
// neighborhood, archive expansion, lives behind a port and runs as a
// pre-pass before classification proper.
package classify

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"agent-compute-platform/internal/domain/model"
)

// extensions of structure/trajectory formats produced by compute tools
var domainFileExts = map[string]struct{}{
	".cif":    {},
	".poscar": {},
	".xyz":    {},
	".traj":   {},
	".dump":   {},
	".pdb":    {},
	".mol":    {},
	".sdf":    {},
}

var imageExts = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".svg":  {},
	".bmp":  {},
	".webp": {},
}

var archiveExts = map[string]struct{}{
	".zip": {},
	".tgz": {},
	".gz":  {}, // matches .tar.gz via the trailing extension
	".tar": {},
}

// Classify flattens the raw output map and maps every leaf value onto
// exactly one result item (images additionally get a companion inline-markup
// scalar). Unrecognized shapes become Error items; nothing is dropped.
func Classify(raw map[string]any) model.ResultItems {
	flat := Flatten(raw)
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var items model.ResultItems
	for _, k := range keys {
		items = append(items, classifyValue(k, flat[k])...)
	}
	return items
}

// Flatten turns nested maps into a single level of dotted keys.
func Flatten(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	flattenInto(out, "", raw)
	return out
}

func flattenInto(out map[string]any, prefix string, m map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flattenInto(out, key, nested)
			continue
		}
		out[key] = v
	}
}

func classifyValue(name string, v any) model.ResultItems {
	switch val := v.(type) {
	case nil:
		return model.ResultItems{model.ErrorItem{Message: fmt.Sprintf("%s: null value", name)}}
	case bool:
		return model.ResultItems{model.Scalar{Name: name, Value: val}}
	case float64, float32, int, int32, int64, uint, uint32, uint64:
		return model.ResultItems{model.Scalar{Name: name, Value: val}}
	case string:
		return classifyString(name, val)
	case []any:
		return classifySlice(name, val)
	default:
		return model.ResultItems{model.ErrorItem{
			Message: fmt.Sprintf("%s: unrecognized value shape %T", name, v),
		}}
	}
}

func classifyString(name, s string) model.ResultItems {
	if !IsURI(s) {
		return model.ResultItems{model.Scalar{Name: name, Value: s}}
	}
	ext := strings.ToLower(path.Ext(uriPath(s)))
	switch {
	case isDomainExt(ext):
		return model.ResultItems{model.FileRef{Name: name, URL: s, File: model.DomainFile}}
	case isImageExt(ext):
		// Companion scalar carries inline-image markup so the UI can
		// render the picture without a second lookup.
		return model.ResultItems{
			model.FileRef{Name: name, URL: s, File: model.ImageFile},
			model.Scalar{Name: name + ".inline", Value: fmt.Sprintf("![%s](%s)", name, s)},
		}
	case ext == ".html":
		return model.ResultItems{model.ChartRef{Name: name, URL: s}}
	default:
		return model.ResultItems{model.FileRef{Name: name, URL: s, File: model.GenericFile}}
	}
}

func classifySlice(name string, vs []any) model.ResultItems {
	if len(vs) == 0 {
		return model.ResultItems{model.Scalar{Name: name, Value: "()"}}
	}
	if rows, ok := asMatrix(vs); ok {
		return model.ResultItems{model.Matrix{Title: name, Rows: rows}}
	}
	if recs, ok := asLiteratureRecords(vs); ok {
		items := make(model.ResultItems, 0, len(recs))
		for i, r := range recs {
			items = append(items, model.Scalar{
				Name:  fmt.Sprintf("%s[%d]", name, i),
				Value: r,
			})
		}
		return items
	}
	if tuple, ok := asHomogeneousTuple(vs); ok {
		return model.ResultItems{model.Scalar{Name: name, Value: tuple}}
	}
	return model.ResultItems{model.ErrorItem{
		Message: fmt.Sprintf("%s: mixed or unsupported sequence of %d elements", name, len(vs)),
	}}
}

// asMatrix accepts a rectangular numeric sequence-of-sequences.
func asMatrix(vs []any) ([][]float64, bool) {
	rows := make([][]float64, 0, len(vs))
	width := -1
	for _, v := range vs {
		inner, ok := v.([]any)
		if !ok {
			return nil, false
		}
		if width == -1 {
			width = len(inner)
		} else if len(inner) != width {
			return nil, false
		}
		row := make([]float64, 0, len(inner))
		for _, cell := range inner {
			f, ok := asFloat(cell)
			if !ok {
				return nil, false
			}
			row = append(row, f)
		}
		rows = append(rows, row)
	}
	if width <= 0 {
		return nil, false
	}
	return rows, true
}

// asLiteratureRecords accepts a sequence of well-formed literature/search
// records: maps carrying a title plus a locator (url or doi). Each record is
// rendered as one citation string.
func asLiteratureRecords(vs []any) ([]string, bool) {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		rec, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		title, _ := rec["title"].(string)
		if title == "" {
			return nil, false
		}
		locator, _ := rec["url"].(string)
		if locator == "" {
			locator, _ = rec["doi"].(string)
		}
		if locator == "" {
			return nil, false
		}
		if authors, ok := rec["authors"].(string); ok && authors != "" {
			out = append(out, fmt.Sprintf("%s — %s (%s)", title, authors, locator))
		} else {
			out = append(out, fmt.Sprintf("%s (%s)", title, locator))
		}
	}
	return out, len(out) > 0
}

// asHomogeneousTuple accepts an all-numeric or all-string sequence and
// renders it as a stringified tuple.
func asHomogeneousTuple(vs []any) (string, bool) {
	parts := make([]string, 0, len(vs))
	numeric, stringy := true, true
	for _, v := range vs {
		switch val := v.(type) {
		case string:
			numeric = false
			parts = append(parts, val)
		case float64, float32, int, int32, int64:
			stringy = false
			parts = append(parts, fmt.Sprintf("%v", val))
		default:
			return "", false
		}
	}
	if !numeric && !stringy {
		return "", false
	}
	return "(" + strings.Join(parts, ", ") + ")", true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// IsURI reports whether a string value points at a remote artifact.
func IsURI(s string) bool {
	return strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "s3://") ||
		strings.HasPrefix(s, "oss://")
}

// IsArchive reports whether a URI points at a compressed artifact bundle
// that should be expanded before classification.
func IsArchive(uri string) bool {
	p := strings.ToLower(uriPath(uri))
	if strings.HasSuffix(p, ".tar.gz") {
		return true
	}
	ext := path.Ext(p)
	_, ok := archiveExts[ext]
	return ok
}

func isDomainExt(ext string) bool { _, ok := domainFileExts[ext]; return ok }
func isImageExt(ext string) bool  { _, ok := imageExts[ext]; return ok }

// uriPath strips query/fragment noise so extension checks see the real name.
func uriPath(uri string) string {
	if i := strings.IndexAny(uri, "?#"); i >= 0 {
		return uri[:i]
	}
	return uri
}
