// Package session owns the guided-presentation state machine: it drives page
// packets through a bounded run of pages, advances captions on ticks, and
// exposes the user-facing controls and recovery actions.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pagecoach/lectern/internal/observe"
	"github.com/pagecoach/lectern/internal/packet"
	"github.com/pagecoach/lectern/pkg/doc"
)

// Mode is the controller's coarse state.
type Mode string

const (
	// ModeIdle means nothing is prepared; the controller waits for Start.
	ModeIdle Mode = "idle"
	// ModePreparing means a packet build is in flight for some target page.
	ModePreparing Mode = "preparing"
	// ModePresenting means a packet is installed and captions are advancing.
	ModePresenting Mode = "presenting"
	// ModeResting means a bounded segment completed; waiting for Continue or
	// Restart.
	ModeResting Mode = "resting"
	// ModeFailed means an unrecoverable build error occurred; requires
	// AcknowledgeFailure to return to idle.
	ModeFailed Mode = "failed"
)

// Sentinel errors for control calls rejected without a state change.
var (
	// ErrCredentialRequired is returned by Start when no credential was
	// supplied and none is cached.
	ErrCredentialRequired = errors.New("session: credential required")

	// ErrInvalidState is returned when a control is not valid in the current
	// mode.
	ErrInvalidState = errors.New("session: operation not valid in current state")
)

// BuilderFactory creates the packet builder for a session once the credential
// is known. The credential is whatever opaque secret the configured providers
// need (typically an API key supplied by the user at session start).
type BuilderFactory func(credential string) (*packet.Builder, error)

// SegmentSummary describes a completed bounded run of pages. It is handed to
// the segment-end hook when the controller enters resting.
type SegmentSummary struct {
	// Document is the reference the session was started with.
	Document string

	// StartPage and EndPage are the inclusive 1-based bounds actually
	// presented. EndPage can be lower than planned when the document ran out
	// mid-segment.
	StartPage int
	EndPage   int

	// VoiceTexts holds the narration of each presented page, in order.
	VoiceTexts []string

	// EndOfDocument is set when the segment ended because the document has no
	// further pages.
	EndOfDocument bool
}

// Controller is the session state machine. All control methods are safe for
// concurrent use; transitions are serialised by an internal mutex while
// packet builds run outside it.
type Controller struct {
	renderer    doc.Renderer
	factory     BuilderFactory
	metrics     *observe.Metrics
	segmentSize int
	prefetch    bool
	hook        func(context.Context, SegmentSummary)

	mu         sync.Mutex
	mode       Mode
	credential string
	builder    *packet.Builder
	docRef     string
	document   doc.Document
	totalPages int

	pkt        *packet.Packet
	cursor     int
	segStart   int
	segEnd     int
	voiceTexts []string

	lastErr    error
	failedPage int
	warning    string
	endOfDoc   bool

	// generation invalidates in-flight builds across abort/restart/failure
	// acknowledgement: a build only installs if the generation it started
	// under is still current.
	generation uint64

	prefetchPkt      *packet.Packet
	prefetchErr      error
	prefetchPage     int
	prefetchInFlight bool
	installOnArrival bool

	wg sync.WaitGroup
}

// Option is a functional option for the Controller.
type Option func(*Controller)

// WithSegmentSize sets how many pages one bounded run covers (default 5).
func WithSegmentSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.segmentSize = n
		}
	}
}

// WithPrefetch enables background building of the next page while the
// current one is presenting.
func WithPrefetch(enabled bool) Option {
	return func(c *Controller) { c.prefetch = enabled }
}

// WithSegmentEndHook registers a callback fired (on its own goroutine) each
// time a segment completes and the controller enters resting.
func WithSegmentEndHook(hook func(context.Context, SegmentSummary)) Option {
	return func(c *Controller) { c.hook = hook }
}

// WithMetrics sets the metrics instance (default observe.DefaultMetrics).
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// NewController creates an idle controller.
func NewController(renderer doc.Renderer, factory BuilderFactory, opts ...Option) (*Controller, error) {
	if renderer == nil {
		return nil, errors.New("session: renderer must not be nil")
	}
	if factory == nil {
		return nil, errors.New("session: builder factory must not be nil")
	}
	c := &Controller{
		renderer:    renderer,
		factory:     factory,
		segmentSize: 5,
		mode:        ModeIdle,
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c, nil
}

// Start begins a session: it validates the credential and document, then
// moves to preparing and builds the first page's packet in the background.
//
// A missing credential or unknown document leaves the controller idle and
// returns an error the caller should surface as a user-visible warning, not
// a failure.
func (c *Controller) Start(ctx context.Context, credential, docRef string, startPage int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeIdle {
		return fmt.Errorf("%w: start while %s", ErrInvalidState, c.mode)
	}
	if credential == "" {
		credential = c.credential
	}
	if credential == "" {
		c.warning = "no credential supplied"
		return ErrCredentialRequired
	}
	if startPage < 1 {
		startPage = 1
	}

	document, err := c.renderer.Open(ctx, docRef)
	if err != nil {
		c.warning = fmt.Sprintf("cannot open document %q", docRef)
		return fmt.Errorf("session: open %q: %w", docRef, err)
	}

	builder, err := c.factory(credential)
	if err != nil {
		_ = document.Close()
		return fmt.Errorf("session: create builder: %w", err)
	}

	// Credential is cached for the lifetime of the controller, never
	// persisted.
	c.credential = credential
	c.builder = builder
	c.docRef = docRef
	c.document = document
	c.totalPages = document.PageCount()
	c.segStart = startPage
	c.segEnd = min(startPage+c.segmentSize-1, c.totalPages)
	c.voiceTexts = nil
	c.warning = ""
	c.endOfDoc = false
	c.mode = ModePreparing
	c.metrics.ActiveSessions.Add(ctx, 1)

	observe.Logger(ctx).Info("session started",
		"document", docRef, "start_page", startPage,
		"segment_end", c.segEnd, "total_pages", c.totalPages)

	c.spawnBuild(startPage, true)
	return nil
}

// Tick advances the caption cursor by one. It only has an effect while
// presenting; in every other mode it is a no-op, so tickers on the caller's
// side never race a state change. When the cursor passes the last caption
// the controller either installs the next page (prefetched or freshly built)
// or completes the segment.
func (c *Controller) Tick(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModePresenting || c.pkt == nil {
		return
	}

	c.cursor++
	if c.cursor < len(c.pkt.Captions) {
		return
	}
	c.cursor = len(c.pkt.Captions)

	next := c.pkt.Page + 1
	if next > c.segEnd {
		c.finishSegmentLocked(ctx, false)
		return
	}

	switch {
	case c.prefetchPage == next && c.prefetchPkt != nil:
		pkt := c.prefetchPkt
		c.clearPrefetchLocked()
		c.installLocked(ctx, pkt)
	case c.prefetchPage == next && c.prefetchErr != nil:
		err := c.prefetchErr
		c.clearPrefetchLocked()
		c.applyFailureLocked(ctx, next, err)
	case c.prefetchPage == next && c.prefetchInFlight:
		// The running prefetch becomes the foreground build.
		c.installOnArrival = true
		c.mode = ModePreparing
	default:
		c.mode = ModePreparing
		c.spawnBuild(next, false)
	}
}

// Continue starts the next bounded segment after a rest. With no pages left
// it stays resting and flags end-of-document.
func (c *Controller) Continue(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeResting {
		return fmt.Errorf("%w: continue while %s", ErrInvalidState, c.mode)
	}

	next := c.segEnd + 1
	if next > c.totalPages {
		c.endOfDoc = true
		c.warning = "end of document"
		return nil
	}

	c.segStart = next
	c.segEnd = min(next+c.segmentSize-1, c.totalPages)
	c.voiceTexts = nil
	c.endOfDoc = false
	c.warning = ""
	c.mode = ModePreparing
	c.spawnBuild(next, true)
	return nil
}

// Restart leaves a rest and returns to idle, discarding everything but the
// cached credential.
func (c *Controller) Restart(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeResting {
		return fmt.Errorf("%w: restart while %s", ErrInvalidState, c.mode)
	}
	c.resetToIdleLocked(ctx)
	return nil
}

// Abort discards the current packet mid-presentation and returns to idle.
func (c *Controller) Abort(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModePresenting {
		return fmt.Errorf("%w: abort while %s", ErrInvalidState, c.mode)
	}
	c.resetToIdleLocked(ctx)
	return nil
}

// AcknowledgeFailure clears a failed state back to idle.
func (c *Controller) AcknowledgeFailure(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeFailed {
		return fmt.Errorf("%w: acknowledge while %s", ErrInvalidState, c.mode)
	}
	c.resetToIdleLocked(ctx)
	return nil
}

// Wait blocks until all background builds and hooks have finished. Intended
// for shutdown and tests.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close aborts any active session and releases the open document.
func (c *Controller) Close(ctx context.Context) {
	c.mu.Lock()
	if c.mode != ModeIdle {
		c.resetToIdleLocked(ctx)
	}
	c.mu.Unlock()
	c.wg.Wait()
}

// ── internal transitions (lock held) ─────────────────────────────────────────

// spawnBuild launches a background build for page. firstOfSegment controls
// where a page-out-of-range failure lands (idle vs. resting).
func (c *Controller) spawnBuild(page int, firstOfSegment bool) {
	generation := c.generation
	document := c.document
	builder := c.builder

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx := context.Background()
		pkt, err := builder.Build(ctx, document, page)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.generation != generation {
			return
		}
		if err != nil {
			if errors.Is(err, doc.ErrPageOutOfRange) && !firstOfSegment {
				// Mid-segment advance past the last page: the segment ends
				// early at the last valid page.
				c.segEnd = page - 1
				c.finishSegmentLocked(ctx, true)
				return
			}
			c.applyFailureLocked(ctx, page, err)
			return
		}
		c.installLocked(ctx, pkt)
	}()
}

// spawnPrefetch launches a background build for page whose result is parked
// until the cursor needs it.
func (c *Controller) spawnPrefetch(page int) {
	generation := c.generation
	document := c.document
	builder := c.builder
	c.prefetchPage = page
	c.prefetchPkt = nil
	c.prefetchErr = nil
	c.prefetchInFlight = true
	c.installOnArrival = false

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx := context.Background()
		pkt, err := builder.Build(ctx, document, page)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.generation != generation || c.prefetchPage != page {
			return
		}
		c.prefetchInFlight = false
		c.prefetchPkt = pkt
		c.prefetchErr = err

		if !c.installOnArrival {
			return
		}
		c.installOnArrival = false
		c.clearPrefetchLocked()
		if err != nil {
			if errors.Is(err, doc.ErrPageOutOfRange) {
				c.segEnd = page - 1
				c.finishSegmentLocked(ctx, true)
				return
			}
			c.applyFailureLocked(ctx, page, err)
			return
		}
		c.installLocked(ctx, pkt)
	}()
}

// installLocked makes pkt the current packet and enters presenting.
func (c *Controller) installLocked(ctx context.Context, pkt *packet.Packet) {
	c.pkt = pkt
	c.cursor = 0
	c.mode = ModePresenting
	c.voiceTexts = append(c.voiceTexts, pkt.VoiceText)
	c.metrics.RecordPagePresented(ctx, c.docRef)

	observe.Logger(ctx).Info("presenting page",
		"document", c.docRef, "page", pkt.Page,
		"captions", len(pkt.Captions), "degraded", pkt.Degraded)

	if c.prefetch && pkt.Page+1 <= c.segEnd {
		c.spawnPrefetch(pkt.Page + 1)
	}
}

// applyFailureLocked routes a build failure to the right terminal state.
// Page-out-of-range on the first page of a segment means there was nothing
// to show: back to idle. Generation and synthesis failures are unrecoverable
// without user action: failed.
func (c *Controller) applyFailureLocked(ctx context.Context, page int, err error) {
	if errors.Is(err, doc.ErrPageOutOfRange) {
		observe.Logger(ctx).Warn("segment start beyond document end",
			"document", c.docRef, "page", page)
		c.warning = "page beyond end of document"
		c.resetToIdleLocked(ctx)
		return
	}

	c.lastErr = err
	c.failedPage = page
	c.pkt = nil
	c.cursor = 0
	c.mode = ModeFailed
	observe.Logger(ctx).Error("packet build failed",
		"document", c.docRef, "page", page, "error", err)
}

// finishSegmentLocked enters resting and fires the segment-end hook.
func (c *Controller) finishSegmentLocked(ctx context.Context, endOfDoc bool) {
	if endOfDoc || c.segEnd >= c.totalPages {
		c.endOfDoc = true
	}
	summary := SegmentSummary{
		Document:      c.docRef,
		StartPage:     c.segStart,
		EndPage:       c.segEnd,
		VoiceTexts:    append([]string(nil), c.voiceTexts...),
		EndOfDocument: c.endOfDoc,
	}
	c.mode = ModeResting
	c.clearPrefetchLocked()
	c.metrics.RecordSegmentCompleted(ctx, c.docRef)
	observe.Logger(ctx).Info("segment completed",
		"document", summary.Document,
		"start_page", summary.StartPage, "end_page", summary.EndPage,
		"end_of_document", summary.EndOfDocument)

	if c.hook != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			hctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			c.hook(hctx, summary)
		}()
	}
}

// resetToIdleLocked discards session state, invalidates in-flight builds and
// closes the document. The credential stays cached.
func (c *Controller) resetToIdleLocked(ctx context.Context) {
	c.generation++
	c.clearPrefetchLocked()
	c.prefetchPage = 0
	if c.document != nil {
		_ = c.document.Close()
		c.document = nil
	}
	c.pkt = nil
	c.cursor = 0
	c.lastErr = nil
	c.failedPage = 0
	c.voiceTexts = nil
	c.endOfDoc = false
	c.docRef = ""
	c.totalPages = 0
	c.segStart = 0
	c.segEnd = 0
	c.builder = nil
	c.mode = ModeIdle
	c.metrics.ActiveSessions.Add(ctx, -1)
}

// clearPrefetchLocked drops any parked prefetch result.
func (c *Controller) clearPrefetchLocked() {
	c.prefetchPkt = nil
	c.prefetchErr = nil
	c.prefetchInFlight = false
	c.installOnArrival = false
	c.prefetchPage = 0
}
