//go:build !integration

package classify_test

import (
	"fmt"
	"testing"

	"agent-compute-platform/internal/domain/classify"
	"agent-compute-platform/internal/domain/model"
)

func TestClassify(t *testing.T) {
	t.Run("should type a typical optimization output", func(t *testing.T) {
		items := classify.Classify(map[string]any{
			"energy":         1.23,
			"structure_file": "https://storage/jobs/77001/out.cif",
		})

		if len(items) != 2 {
			t.Fatalf("expected 2 items, got %d: %+v", len(items), items)
		}
		// Keys are classified in sorted order.
		s, ok := items[0].(model.Scalar)
		if !ok || s.Name != "energy" || s.Value != 1.23 {
			t.Errorf("expected energy scalar, got %+v", items[0])
		}
		f, ok := items[1].(model.FileRef)
		if !ok || f.File != model.DomainFile || f.Name != "structure_file" {
			t.Errorf("expected domain file ref, got %+v", items[1])
		}
	})

	t.Run("should flatten nested maps to dotted keys", func(t *testing.T) {
		items := classify.Classify(map[string]any{
			"metrics": map[string]any{"final": map[string]any{"energy": -4.5}},
		})

		if len(items) != 1 {
			t.Fatalf("expected 1 item, got %+v", items)
		}
		if s := items[0].(model.Scalar); s.Name != "metrics.final.energy" {
			t.Errorf("expected dotted key, got %q", s.Name)
		}
	})

	t.Run("should pair every image with an inline-markup scalar", func(t *testing.T) {
		items := classify.Classify(map[string]any{
			"convergence_plot": "https://storage/jobs/plot.png?sig=abc",
		})

		if len(items) != 2 {
			t.Fatalf("expected file + inline scalar, got %+v", items)
		}
		f := items[0].(model.FileRef)
		if f.File != model.ImageFile {
			t.Errorf("expected image file kind, got %s", f.File)
		}
		s := items[1].(model.Scalar)
		if s.Name != "convergence_plot.inline" {
			t.Errorf("expected companion inline scalar, got %+v", s)
		}
		if s.Value != "![convergence_plot](https://storage/jobs/plot.png?sig=abc)" {
			t.Errorf("unexpected inline markup: %v", s.Value)
		}
	})

	t.Run("should type html artifacts as charts and the rest as generic files", func(t *testing.T) {
		items := classify.Classify(map[string]any{
			"report": "https://storage/jobs/report.html",
			"log":    "https://storage/jobs/run.log",
		})

		if _, ok := items[0].(model.FileRef); !ok {
			t.Errorf("expected generic file for log, got %+v", items[0])
		}
		if c, ok := items[1].(model.ChartRef); !ok || c.Name != "report" {
			t.Errorf("expected chart ref for html, got %+v", items[1])
		}
	})

	t.Run("should keep non-URI strings as scalars", func(t *testing.T) {
		items := classify.Classify(map[string]any{"phase": "cubic"})
		if s, ok := items[0].(model.Scalar); !ok || s.Value != "cubic" {
			t.Fatalf("expected plain scalar, got %+v", items[0])
		}
	})

	t.Run("should type a rectangular numeric grid as a matrix", func(t *testing.T) {
		items := classify.Classify(map[string]any{
			"stress_tensor": []any{
				[]any{1.0, 0.0, 0.0},
				[]any{0.0, 2.0, 0.0},
				[]any{0.0, 0.0, 3.0},
			},
		})

		m, ok := items[0].(model.Matrix)
		if !ok {
			t.Fatalf("expected matrix, got %+v", items[0])
		}
		if len(m.Rows) != 3 || len(m.Rows[0]) != 3 || m.Rows[2][2] != 3.0 {
			t.Errorf("unexpected matrix shape: %+v", m.Rows)
		}
	})

	t.Run("should reject a ragged grid as an error item", func(t *testing.T) {
		items := classify.Classify(map[string]any{
			"bad": []any{[]any{1.0, 2.0}, []any{3.0}},
		})
		if _, ok := items[0].(model.ErrorItem); !ok {
			t.Fatalf("expected error item for ragged rows, got %+v", items[0])
		}
	})

	t.Run("should render homogeneous sequences as tuples", func(t *testing.T) {
		items := classify.Classify(map[string]any{
			"lattice": []any{3.1, 3.1, 5.2},
		})
		s, ok := items[0].(model.Scalar)
		if !ok || s.Value != "(3.1, 3.1, 5.2)" {
			t.Fatalf("expected tuple scalar, got %+v", items[0])
		}
	})

	t.Run("should render literature records as one citation per entry", func(t *testing.T) {
		items := classify.Classify(map[string]any{
			"papers": []any{
				map[string]any{"title": "Phase stability of Fe2O3", "doi": "10.1000/xyz", "authors": "Chen et al."},
				map[string]any{"title": "DFT survey", "url": "https://doi.org/10.1000/abc"},
			},
		})

		if len(items) != 2 {
			t.Fatalf("expected one scalar per record, got %+v", items)
		}
		first := items[0].(model.Scalar)
		if first.Name != "papers[0]" {
			t.Errorf("expected indexed names, got %q", first.Name)
		}
		if first.Value != "Phase stability of Fe2O3 — Chen et al. (10.1000/xyz)" {
			t.Errorf("unexpected citation: %v", first.Value)
		}
	})

	t.Run("should turn malformed values into error items instead of dropping them", func(t *testing.T) {
		items := classify.Classify(map[string]any{
			"missing": nil,
			"mixed":   []any{1.0, map[string]any{}},
		})

		if len(items) != 2 {
			t.Fatalf("expected 2 error items, got %+v", items)
		}
		for _, item := range items {
			if _, ok := item.(model.ErrorItem); !ok {
				t.Errorf("expected error item, got %+v", item)
			}
		}
	})

	t.Run("should account for every input key", func(t *testing.T) {
		raw := map[string]any{}
		for i := 0; i < 20; i++ {
			raw[fmt.Sprintf("k%02d", i)] = float64(i)
		}
		items := classify.Classify(raw)
		if len(items) != 20 {
			t.Fatalf("classification dropped keys: %d items for 20 inputs", len(items))
		}
	})
}

func TestIsURI(t *testing.T) {
	for _, uri := range []string{"https://x/y", "http://x", "s3://bucket/k", "oss://bucket/k"} {
		if !classify.IsURI(uri) {
			t.Errorf("%q should be a URI", uri)
		}
	}
	for _, s := range []string{"plain text", "ftp://x", "/local/path"} {
		if classify.IsURI(s) {
			t.Errorf("%q should not be a URI", s)
		}
	}
}

func TestIsArchive(t *testing.T) {
	for _, uri := range []string{
		"https://x/bundle.zip",
		"https://x/bundle.tar.gz?sig=1",
		"https://x/bundle.tgz",
		"https://x/bundle.tar",
	} {
		if !classify.IsArchive(uri) {
			t.Errorf("%q should be an archive", uri)
		}
	}
	if classify.IsArchive("https://x/out.cif") {
		t.Error("a structure file is not an archive")
	}
}
