package origin

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"sort"
	"strings"

	"github.com/starford/primer/internal/compact"
	"github.com/starford/primer/internal/manifest"
	"github.com/starford/primer/internal/parser"
)

// Registry handles GET /registry.json. A publisher-provided document at
// the content root is served verbatim; without one, a registry is derived
// from the tree itself: every top-level directory becomes a bundle.
func (s *Server) Registry(w http.ResponseWriter, r *http.Request) {
	ok, err := s.store.Exists(manifest.FileName)
	if err != nil {
		s.logger.Error("origin: stat registry failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if ok {
		data, err := s.store.Read(manifest.FileName)
		if err != nil {
			s.logger.Error("origin: read registry failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
			return
		}
		serveContent(w, r, manifest.FileName, data)
		return
	}

	data, err := s.deriveRegistry()
	if err != nil {
		s.logger.Error("origin: derive registry failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	serveContent(w, r, manifest.FileName, data)
}

// deriveRegistry builds a registry document from the content tree.
// Bundle descriptions come from each bundle's index.md; generated compact
// indexes and root-level bookkeeping files are excluded. Output is
// deterministic so the derived document gets a stable ETag.
func (s *Server) deriveRegistry() ([]byte, error) {
	infos, err := s.store.List("")
	if err != nil {
		return nil, fmt.Errorf("origin: list content root: %w", err)
	}

	bundles := map[string]manifest.Bundle{}
	for _, fi := range infos {
		i := strings.IndexByte(fi.Path, '/')
		if i < 0 {
			continue // root-level files are not bundle content
		}
		name, rel := fi.Path[:i], fi.Path[i+1:]
		if path.Base(rel) == compact.FileName {
			continue
		}
		b := bundles[name]
		b.Files = append(b.Files, rel)
		bundles[name] = b
	}

	for name, b := range bundles {
		sort.Strings(b.Files)
		b.Description = s.describe(name)
		bundles[name] = b
	}

	return json.MarshalIndent(manifest.Manifest{Version: 1, Bundles: bundles}, "", "  ")
}

// describe returns the first descriptive line of a bundle's index.md,
// or empty when the bundle has none.
func (s *Server) describe(name string) string {
	data, err := s.store.Read(path.Join(name, "index.md"))
	if err != nil {
		return ""
	}
	return parser.Parse(data).Description
}
