package adapter

import "context"

// ObjectStorage is the port for artifact re-hosting and archive expansion.
type ObjectStorage interface {
	Upload(ctx context.Context, data []byte, path string) (url string, err error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// ExpandedMember is one file extracted out of a compressed artifact bundle
// and re-uploaded to storage.
type ExpandedMember struct {
	Name string
	URL  string
}

// ArchiveExpander fetches an archive URL, decompresses it and re-uploads
// each member. It is a dependency of result classification, not part of it,
// and may be toggled off per caller.
type ArchiveExpander interface {
	Expand(ctx context.Context, archiveURL string) ([]ExpandedMember, error)
}
