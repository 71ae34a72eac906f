// Package fetcher resolves media URLs to metadata and downloads the actual
// bytes. The real implementation shells out to yt-dlp; tests use the Mock.
package fetcher

import (
	"context"
)

// Descriptor is what extraction produces: the canonical URL, the filename
// the download will produce (relative to the cache directory), a few
// extracted fields and the raw metadata blob, persisted verbatim.
type Descriptor struct {
	URL      string
	Filename string
	Title    string
	Duration int // seconds
	Filesize int64
	Raw      string
}

// Fetcher is the capability the download pipeline consumes. Implementations
// are not required to be reentrant; callers serialise access.
type Fetcher interface {
	// ExtractInfo resolves metadata for url without downloading anything.
	ExtractInfo(ctx context.Context, url string) (*Descriptor, error)

	// Download fetches the media described by desc into destPath. The
	// fetcher may remux into a different container, so the caller must
	// probe destPath afterwards.
	Download(ctx context.Context, url string, desc *Descriptor, destPath string) error
}
