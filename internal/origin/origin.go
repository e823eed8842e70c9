// Package origin implements a self-hosted registry endpoint using chi:
// it serves a bundle content tree over HTTP with the conditional-fetch
// contract the mirror expects (content ETags, If-None-Match, 304).
package origin

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/primer/internal/checksum"
	"github.com/starford/primer/internal/storage"
)

// Server holds the origin route handlers over one content root.
type Server struct {
	store  storage.Provider
	logger *slog.Logger
}

// NewServer creates a Server serving the given content root.
func NewServer(store storage.Provider, logger *slog.Logger) *Server {
	return &Server{store: store, logger: logger}
}

// filePath extracts the requested file path from the URL wildcard and
// rejects anything that climbs out of the content root.
func filePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	clean := path.Clean(raw)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return ""
	}
	return clean
}

// File handles GET /{bundle}/{file...}: raw file bytes with a content
// ETag, honoring If-None-Match with 304.
func (s *Server) File(w http.ResponseWriter, r *http.Request) {
	p := filePath(r)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid path"))
		return
	}
	data, err := s.store.Read(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		s.logger.Error("origin: read failed", slog.String("path", p), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	serveContent(w, r, p, data)
}

// serveContent writes data with its content ETag, answering a matching
// If-None-Match with an empty 304.
func serveContent(w http.ResponseWriter, r *http.Request, p string, data []byte) {
	etag := checksum.ETag(data)
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", contentType(p))
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func contentType(p string) string {
	switch path.Ext(p) {
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".json":
		return "application/json; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}
