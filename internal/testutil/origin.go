package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/starford/primer/internal/checksum"
)

// Origin is a fake remote registry origin. It serves whatever files are
// set on it, attaches content-derived ETags, and answers If-None-Match
// with 304 when the validator still matches.
type Origin struct {
	srv *httptest.Server

	mu      sync.Mutex
	files   map[string]string
	noETags bool
	hits    map[string]int
}

// NewOrigin starts a fake origin, closed automatically when the test ends.
func NewOrigin(t *testing.T) *Origin {
	t.Helper()
	o := &Origin{
		files: map[string]string{},
		hits:  map[string]int{},
	}
	o.srv = httptest.NewServer(http.HandlerFunc(o.handle))
	t.Cleanup(o.srv.Close)
	return o
}

// URL returns the origin's base URL.
func (o *Origin) URL() string { return o.srv.URL }

// SetRegistry sets the registry document body.
func (o *Origin) SetRegistry(body string) { o.SetFile("registry.json", body) }

// SetFile sets the body served at path, e.g. "alpha/index.md".
func (o *Origin) SetFile(path, body string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.files[path] = body
}

// RemoveFile makes path answer 404.
func (o *Origin) RemoveFile(path string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.files, path)
}

// DisableETags stops the origin from sending ETag headers, which also
// disables 304 answers.
func (o *Origin) DisableETags() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.noETags = true
}

// Hits returns how many requests path has received, any status.
func (o *Origin) Hits(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hits[path]
}

// ETagFor returns the etag the origin currently serves for path.
func (o *Origin) ETagFor(path string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return checksum.ETag([]byte(o.files[path]))
}

func (o *Origin) handle(w http.ResponseWriter, r *http.Request) {
	o.mu.Lock()
	defer o.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	o.hits[path]++

	body, ok := o.files[path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	etag := checksum.ETag([]byte(body))
	if !o.noETags {
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
	}
	_, _ = w.Write([]byte(body))
}
