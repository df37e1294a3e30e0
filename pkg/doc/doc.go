// Package doc defines the Renderer interface for page-image sources.
//
// A renderer wraps a paginated document backend (e.g., a MuPDF binding) and
// turns a document reference into raster page images for the content
// generator. Page indexes at this boundary are 0-based; everything above
// pkg/doc speaks 1-based page numbers and converts exactly once, at the call
// into [Document.RenderPNG].
//
// Implementations must be safe for concurrent use.
package doc

import (
	"context"
	"errors"
)

// ErrPageOutOfRange is returned by [Document.RenderPNG] when the requested
// page index is outside [0, PageCount). It marks an expected boundary
// condition — end of document — not a rendering failure.
var ErrPageOutOfRange = errors.New("page index out of range")

// ErrDocumentNotFound is returned by [Renderer.Open] when the referenced
// document does not exist in the library.
var ErrDocumentNotFound = errors.New("document not found")

// Info describes one document in the library.
type Info struct {
	// Name is the library-relative reference accepted by [Renderer.Open].
	Name string

	// SizeBytes is the on-disk size of the document file.
	SizeBytes int64
}

// Lister enumerates the documents a renderer can open.
type Lister interface {
	// List returns the available documents sorted by name.
	List(ctx context.Context) ([]Info, error)
}

// Renderer opens documents by reference.
type Renderer interface {
	// Open resolves ref (a library-relative document name) and returns a
	// handle for rendering its pages. The caller owns the returned Document
	// and must Close it.
	//
	// Returns [ErrDocumentNotFound] when ref does not resolve to a document.
	Open(ctx context.Context, ref string) (Document, error)
}

// Document is an open, paginated document.
//
// Implementations must be safe for concurrent use; multiple pages may be
// rendered in parallel (e.g., the current page and a prefetched one).
type Document interface {
	// PageCount returns the total number of pages. The value is fixed for
	// the lifetime of the handle.
	PageCount() int

	// RenderPNG rasterises the page at the 0-based pageIndex into a PNG.
	// scale multiplies the document's native resolution; 1.0 renders at
	// native size. Returns [ErrPageOutOfRange] when pageIndex is outside
	// [0, PageCount) — no other work is attempted in that case.
	RenderPNG(ctx context.Context, pageIndex int, scale float64) ([]byte, error)

	// Close releases the underlying document resources. The handle must not
	// be used after Close returns.
	Close() error
}
