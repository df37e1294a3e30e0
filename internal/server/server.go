// Package server exposes the presentation session over HTTP.
//
// All state lives in the session controller; handlers translate HTTP
// requests into controller calls and controller state into JSON. Bulk
// payloads (page image, narration audio) are served on their own routes so
// the snapshot stays small enough to poll.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/pagecoach/lectern/internal/health"
	"github.com/pagecoach/lectern/internal/observe"
	"github.com/pagecoach/lectern/internal/recap"
	"github.com/pagecoach/lectern/internal/session"
	"github.com/pagecoach/lectern/pkg/doc"
)

// shutdownTimeout bounds the drain of in-flight requests on Close.
const shutdownTimeout = 10 * time.Second

// Server is the lectern HTTP front end.
type Server struct {
	addr       string
	controller *session.Controller
	renderer   doc.Renderer
	library    doc.Lister
	recapper   *recap.Recapper
	health     *health.Handler
	metrics    *observe.Metrics

	previewScale float64
	tlsCert      string
	tlsKey       string

	httpSrv *http.Server
}

// Option configures a [Server].
type Option func(*Server)

// WithListenAddr sets the TCP listen address. Default ":8080".
func WithListenAddr(addr string) Option {
	return func(s *Server) {
		if addr != "" {
			s.addr = addr
		}
	}
}

// WithLibrary enables the document listing endpoint.
func WithLibrary(l doc.Lister) Option {
	return func(s *Server) { s.library = l }
}

// WithRecapper enables the segment recap endpoint.
func WithRecapper(r *recap.Recapper) Option {
	return func(s *Server) { s.recapper = r }
}

// WithHealth sets the health handler serving /healthz and /readyz.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetrics enables HTTP request metrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithPreviewScale sets the rasterisation scale for preview images.
// Default 1.0; previews do not need generator-quality resolution.
func WithPreviewScale(scale float64) Option {
	return func(s *Server) {
		if scale > 0 {
			s.previewScale = scale
		}
	}
}

// WithTLS serves HTTPS using the given certificate pair.
func WithTLS(certFile, keyFile string) Option {
	return func(s *Server) {
		s.tlsCert = certFile
		s.tlsKey = keyFile
	}
}

// New creates a Server around the given controller. renderer is used for
// document previews; it is typically the same renderer the controller opens
// sessions with.
func New(controller *session.Controller, renderer doc.Renderer, opts ...Option) (*Server, error) {
	if controller == nil {
		return nil, errors.New("server: controller must not be nil")
	}
	if renderer == nil {
		return nil, errors.New("server: renderer must not be nil")
	}

	s := &Server{
		addr:         ":8080",
		controller:   controller,
		renderer:     renderer,
		previewScale: 1.0,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.health == nil {
		s.health = health.New()
	}

	s.httpSrv = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler builds the route table. Exposed for tests via httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/session/start", s.handleStart)
	mux.HandleFunc("POST /v1/session/tick", s.handleTick)
	mux.HandleFunc("POST /v1/session/continue", s.handleContinue)
	mux.HandleFunc("POST /v1/session/restart", s.handleRestart)
	mux.HandleFunc("POST /v1/session/abort", s.handleAbort)
	mux.HandleFunc("POST /v1/session/ack", s.handleAck)
	mux.HandleFunc("GET /v1/session", s.handleSnapshot)
	mux.HandleFunc("GET /v1/session/audio", s.handleAudio)
	mux.HandleFunc("GET /v1/session/image", s.handleImage)
	mux.HandleFunc("GET /v1/session/recap", s.handleRecap)
	mux.HandleFunc("GET /v1/documents", s.handleDocuments)
	mux.HandleFunc("GET /v1/documents/{name}", s.handleDocumentInfo)
	mux.HandleFunc("GET /v1/documents/{name}/preview", s.handlePreview)

	mux.Handle("GET /metrics", promhttp.Handler())
	s.health.Register(mux)

	var h http.Handler = mux
	if s.metrics != nil {
		h = observe.Middleware(s.metrics)(h)
	}
	return h
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if s.tlsCert != "" {
			err = s.httpSrv.ListenAndServeTLS(s.tlsCert, s.tlsKey)
		} else {
			err = s.httpSrv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: listen on %s: %w", s.addr, err)
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
