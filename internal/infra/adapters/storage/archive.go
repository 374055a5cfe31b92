// File: internal/infra/adapters/storage/archive.go
package storage

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"agent-compute-platform/internal/domain/ports/adapter"
	"agent-compute-platform/internal/infra/worker"

	"github.com/rs/zerolog"
)

var _ adapter.ArchiveExpander = (*Expander)(nil)

// maxMemberBytes bounds decompression so a hostile bundle cannot exhaust
// memory (zip bombs).
const maxMemberBytes = 64 << 20

// Expander fetches a compressed artifact bundle, decompresses it and
// re-uploads each member to storage. Member uploads fan out over the worker
// pool; one failed member does not fail its siblings.
type Expander struct {
	store adapter.ObjectStorage
	pool  *worker.Pool
	log   *zerolog.Logger
}

func NewExpander(store adapter.ObjectStorage, pool *worker.Pool, log *zerolog.Logger) *Expander {
	return &Expander{store: store, pool: pool, log: log}
}

func (e *Expander) Expand(ctx context.Context, archiveURL string) ([]adapter.ExpandedMember, error) {
	data, err := e.store.Download(ctx, archiveURL)
	if err != nil {
		return nil, fmt.Errorf("fetch archive: %w", err)
	}

	var files map[string][]byte
	lower := strings.ToLower(archiveURL)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		files, err = unzip(data)
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		files, err = untarGz(data)
	case strings.HasSuffix(lower, ".tar"):
		files, err = untar(data)
	default:
		return nil, fmt.Errorf("unsupported archive format: %s", archiveURL)
	}
	if err != nil {
		return nil, fmt.Errorf("decompress archive: %w", err)
	}

	base := strings.TrimSuffix(path.Base(archiveURL), path.Ext(archiveURL))
	members := make([]adapter.ExpandedMember, 0, len(files))
	type upload struct {
		name string
		url  string
		err  error
	}
	results := make(chan upload, len(files))
	for name, content := range files {
		name, content := name, content
		task := func(ctx context.Context) error {
			url, err := e.store.Upload(ctx, content, base+"/"+name)
			results <- upload{name: name, url: url, err: err}
			return nil
		}
		if err := e.pool.Submit(task); err != nil {
			_ = task(ctx) // run inline when the pool is saturated
		}
	}
	for range files {
		r := <-results
		if r.err != nil {
			e.log.Warn().Str("member", r.name).Err(r.err).Msg("archive member re-upload failed")
			continue
		}
		members = append(members, adapter.ExpandedMember{Name: r.name, URL: r.url})
	}
	return members, nil
}

func unzip(data []byte) (map[string][]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		b, err := readCapped(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		out[path.Base(f.Name)] = b
	}
	return out, nil
}

func untarGz(data []byte) (map[string][]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gr.Close()
	raw, err := readCapped(gr)
	if err != nil {
		return nil, err
	}
	return untar(raw)
}

func untar(data []byte) (map[string][]byte, error) {
	tr := tar.NewReader(bytes.NewReader(data))
	out := make(map[string][]byte)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		b, err := readCapped(tr)
		if err != nil {
			return nil, err
		}
		out[path.Base(hdr.Name)] = b
	}
	return out, nil
}

func readCapped(r io.Reader) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, maxMemberBytes+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxMemberBytes {
		return nil, fmt.Errorf("archive member exceeds %d bytes", maxMemberBytes)
	}
	return b, nil
}
