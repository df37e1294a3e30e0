// Package fitz provides a MuPDF-backed document renderer using
// github.com/gen2brain/go-fitz. It implements the doc.Renderer and
// doc.Document interfaces for PDF (and any other format MuPDF understands).
package fitz

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	gofitz "github.com/gen2brain/go-fitz"

	"github.com/pagecoach/lectern/pkg/doc"
)

// nativeDPI is the resolution go-fitz treats as scale 1.0.
const nativeDPI = 72.0

// Compile-time interface checks.
var (
	_ doc.Renderer = (*Renderer)(nil)
	_ doc.Lister   = (*Renderer)(nil)
	_ doc.Document = (*Document)(nil)
)

// docExtensions lists the file extensions included in library listings.
// MuPDF opens more formats; these are the ones worth presenting.
var docExtensions = map[string]bool{
	".pdf":  true,
	".xps":  true,
	".epub": true,
}

// Renderer opens documents from a library directory on the local filesystem.
// References are file names relative to the library root ("第四冊_第三章.pdf",
// "algebra_vol2.pdf"); path traversal outside the root is rejected.
type Renderer struct {
	dir string
}

// NewRenderer creates a Renderer rooted at dir. The directory must exist.
func NewRenderer(dir string) (*Renderer, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("fitz: library dir %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("fitz: library path %q is not a directory", dir)
	}
	return &Renderer{dir: dir}, nil
}

// Open implements doc.Renderer.
func (r *Renderer) Open(_ context.Context, ref string) (doc.Document, error) {
	if ref == "" {
		return nil, fmt.Errorf("fitz: %w: empty reference", doc.ErrDocumentNotFound)
	}
	clean := filepath.Clean(ref)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil, fmt.Errorf("fitz: %w: %q", doc.ErrDocumentNotFound, ref)
	}

	path := filepath.Join(r.dir, clean)
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("fitz: stat %q: %w", ref, err)
		}
		// References may omit the extension ("B5_ch2" for "B5_ch2.pdf").
		path = ""
		if filepath.Ext(clean) == "" {
			for ext := range docExtensions {
				candidate := filepath.Join(r.dir, clean+ext)
				if _, err := os.Stat(candidate); err == nil {
					path = candidate
					break
				}
			}
		}
		if path == "" {
			return nil, fmt.Errorf("fitz: %w: %q", doc.ErrDocumentNotFound, ref)
		}
	}

	d, err := gofitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("fitz: open %q: %w", ref, err)
	}
	return &Document{doc: d, pages: d.NumPage()}, nil
}

// List implements doc.Lister. Names are file names without the extension,
// matching the references [Renderer.Open] accepts.
func (r *Renderer) List(ctx context.Context) ([]doc.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("fitz: list library %q: %w", r.dir, err)
	}

	var infos []doc.Info
	for _, e := range entries {
		if e.IsDir() || !docExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, doc.Info{
			Name:      strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())),
			SizeBytes: fi.Size(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Document wraps an open go-fitz document handle.
//
// go-fitz handles are not safe for concurrent page access, so all rendering
// is serialised through a mutex.
type Document struct {
	mu    sync.Mutex
	doc   *gofitz.Document
	pages int
}

// PageCount implements doc.Document.
func (d *Document) PageCount() int { return d.pages }

// RenderPNG implements doc.Document. pageIndex is 0-based.
func (d *Document) RenderPNG(ctx context.Context, pageIndex int, scale float64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if pageIndex < 0 || pageIndex >= d.pages {
		return nil, fmt.Errorf("fitz: page %d of %d: %w", pageIndex, d.pages, doc.ErrPageOutOfRange)
	}
	if scale <= 0 {
		scale = 1.0
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	png, err := d.doc.ImagePNG(pageIndex, nativeDPI*scale)
	if err != nil {
		return nil, fmt.Errorf("fitz: render page %d: %w", pageIndex, err)
	}
	return png, nil
}

// Close implements doc.Document.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		return nil
	}
	err := d.doc.Close()
	d.doc = nil
	return err
}
