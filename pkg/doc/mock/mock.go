// Package mock provides test doubles for the doc.Renderer and doc.Document
// interfaces.
//
// Use Document to serve fixed page images and to verify which pages were
// requested:
//
//	d := &mock.Document{Pages: [][]byte{pngPage1, pngPage2}}
//	r := &mock.Renderer{Docs: map[string]*mock.Document{"book.pdf": d}}
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pagecoach/lectern/pkg/doc"
)

// Renderer is a mock implementation of doc.Renderer.
type Renderer struct {
	mu sync.Mutex

	// Docs maps document references to the Document returned by Open.
	// References absent from the map yield doc.ErrDocumentNotFound.
	Docs map[string]*Document

	// OpenErr, if non-nil, is returned by every Open call regardless of ref.
	OpenErr error

	// OpenCalls records the refs passed to Open in order.
	OpenCalls []string

	// ListErr, if non-nil, is returned by every List call.
	ListErr error
}

// Open implements doc.Renderer.
func (r *Renderer) Open(_ context.Context, ref string) (doc.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.OpenCalls = append(r.OpenCalls, ref)
	if r.OpenErr != nil {
		return nil, r.OpenErr
	}
	d, ok := r.Docs[ref]
	if !ok {
		return nil, fmt.Errorf("mock renderer: %w: %q", doc.ErrDocumentNotFound, ref)
	}
	return d, nil
}

// List implements doc.Lister. It returns the keys of Docs sorted by name,
// unless ListErr is set.
func (r *Renderer) List(_ context.Context) ([]doc.Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ListErr != nil {
		return nil, r.ListErr
	}
	names := make([]string, 0, len(r.Docs))
	for name := range r.Docs {
		names = append(names, name)
	}
	sort.Strings(names)
	infos := make([]doc.Info, len(names))
	for i, name := range names {
		infos[i] = doc.Info{Name: name}
	}
	return infos, nil
}

// RenderCall records a single invocation of RenderPNG.
type RenderCall struct {
	PageIndex int
	Scale     float64
}

// Document is a mock implementation of doc.Document backed by a fixed slice
// of page images.
type Document struct {
	mu sync.Mutex

	// Pages holds the PNG bytes returned per 0-based page index. Indexes
	// outside the slice yield doc.ErrPageOutOfRange.
	Pages [][]byte

	// RenderErr, if non-nil, is returned by every RenderPNG call.
	RenderErr error

	// RenderCalls records every RenderPNG invocation in order.
	RenderCalls []RenderCall

	// Closed reports whether Close has been called.
	Closed bool
}

// PageCount implements doc.Document.
func (d *Document) PageCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Pages)
}

// RenderPNG implements doc.Document.
func (d *Document) RenderPNG(_ context.Context, pageIndex int, scale float64) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.RenderCalls = append(d.RenderCalls, RenderCall{PageIndex: pageIndex, Scale: scale})
	if d.RenderErr != nil {
		return nil, d.RenderErr
	}
	if pageIndex < 0 || pageIndex >= len(d.Pages) {
		return nil, fmt.Errorf("mock document: page %d: %w", pageIndex, doc.ErrPageOutOfRange)
	}
	page := make([]byte, len(d.Pages[pageIndex]))
	copy(page, d.Pages[pageIndex])
	return page, nil
}

// Close implements doc.Document.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closed = true
	return nil
}

// Compile-time interface checks.
var (
	_ doc.Renderer = (*Renderer)(nil)
	_ doc.Lister   = (*Renderer)(nil)
	_ doc.Document = (*Document)(nil)
)
