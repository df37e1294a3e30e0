// Package progress persists per-document reading bookmarks so a later
// session can resume where a segment ended.
package progress

import (
	"context"
	"errors"
	"time"

	"github.com/pagecoach/lectern/internal/observe"
	"github.com/pagecoach/lectern/internal/session"
)

// ErrNotFound is returned by Load when no bookmark exists for a document.
var ErrNotFound = errors.New("progress: bookmark not found")

// Bookmark records the last presented page of a document.
type Bookmark struct {
	Document  string    `json:"document"`
	LastPage  int       `json:"last_page"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists bookmarks. Implementations must be safe for concurrent use.
type Store interface {
	// Save records lastPage as the bookmark for document, replacing any
	// previous value.
	Save(ctx context.Context, document string, lastPage int) error

	// Load returns the bookmark for document, or ErrNotFound.
	Load(ctx context.Context, document string) (Bookmark, error)

	// Close releases the store's resources.
	Close()
}

// SegmentHook adapts a Store into a session segment-end hook that bookmarks
// the last presented page. Failures are logged, never fatal.
func SegmentHook(store Store) func(context.Context, session.SegmentSummary) {
	return func(ctx context.Context, summary session.SegmentSummary) {
		if summary.Document == "" || summary.EndPage < 1 {
			return
		}
		if err := store.Save(ctx, summary.Document, summary.EndPage); err != nil {
			observe.Logger(ctx).Warn("bookmark save failed",
				"document", summary.Document,
				"last_page", summary.EndPage,
				"error", err)
		}
	}
}
