package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/pagecoach/lectern/internal/observe"
	"github.com/pagecoach/lectern/internal/session"
	"github.com/pagecoach/lectern/pkg/doc"
)

// startRequest is the body of POST /v1/session/start.
type startRequest struct {
	// Document is the library reference of the textbook to present.
	Document string `json:"document"`

	// Page is the 1-based page to start from. Zero means page 1.
	Page int `json:"page"`

	// Credential is the generator API key for this session. Optional when
	// the server carries a configured key or a prior session cached one.
	Credential string `json:"credential"`
}

// errorResponse is the JSON body for failed requests.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Document == "" {
		writeError(w, http.StatusBadRequest, "document is required")
		return
	}
	if req.Page < 0 {
		writeError(w, http.StatusBadRequest, "page must be positive")
		return
	}
	page := req.Page
	if page == 0 {
		page = 1
	}

	if err := s.controller.Start(r.Context(), req.Credential, req.Document, page); err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	s.controller.Tick(r.Context())
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

func (s *Server) handleContinue(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Continue(r.Context()); err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Restart(r.Context()); err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Abort(r.Context()); err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

func (s *Server) handleAck(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.AcknowledgeFailure(r.Context()); err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	audio := s.controller.PacketAudio()
	if audio == nil {
		writeError(w, http.StatusNotFound, "no page is being presented")
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	w.Write(audio)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	image := s.controller.PacketImage()
	if image == nil {
		writeError(w, http.StatusNotFound, "no page is being presented")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(image)))
	w.Write(image)
}

func (s *Server) handleRecap(w http.ResponseWriter, r *http.Request) {
	if s.recapper == nil {
		writeError(w, http.StatusNotFound, "recap is not enabled")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"recap": s.recapper.Last()})
}

// documentView is one entry of the library listing.
type documentView struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	if s.library == nil {
		writeError(w, http.StatusServiceUnavailable, "library listing is not available")
		return
	}
	infos, err := s.library.List(r.Context())
	if err != nil {
		observe.Logger(r.Context()).Error("list documents", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	views := make([]documentView, len(infos))
	for i, info := range infos {
		views[i] = documentView{Name: info.Name, SizeBytes: info.SizeBytes}
	}
	writeJSON(w, http.StatusOK, map[string][]documentView{"documents": views})
}

func (s *Server) handleDocumentInfo(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	d, err := s.renderer.Open(r.Context(), name)
	if err != nil {
		writeDocError(w, r, name, err)
		return
	}
	defer d.Close()

	writeJSON(w, http.StatusOK, map[string]any{
		"name":  name,
		"pages": d.PageCount(),
	})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	page := 1
	if q := r.URL.Query().Get("page"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		page = n
	}

	d, err := s.renderer.Open(r.Context(), name)
	if err != nil {
		writeDocError(w, r, name, err)
		return
	}
	defer d.Close()

	png, err := d.RenderPNG(r.Context(), page-1, s.previewScale)
	if errors.Is(err, doc.ErrPageOutOfRange) {
		writeError(w, http.StatusNotFound, "page out of range")
		return
	}
	if err != nil {
		observe.Logger(r.Context()).Error("render preview", "document", name, "page", page, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to render preview")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Write(png)
}

// writeSessionError maps controller errors onto HTTP status codes.
func writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrCredentialRequired):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, session.ErrInvalidState):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, doc.ErrDocumentNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		observe.Logger(r.Context()).Error("session operation failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeDocError(w http.ResponseWriter, r *http.Request, name string, err error) {
	if errors.Is(err, doc.ErrDocumentNotFound) {
		writeError(w, http.StatusNotFound, "document not found: "+name)
		return
	}
	observe.Logger(r.Context()).Error("open document", "document", name, "err", err)
	writeError(w, http.StatusInternalServerError, "failed to open document")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
	}
}
