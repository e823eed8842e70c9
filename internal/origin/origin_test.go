package origin

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/starford/primer/internal/manifest"
	"github.com/starford/primer/internal/storage"
	"github.com/starford/primer/internal/testutil"
)

// testEnv sets up a temp content root and a router over it.
// authToken="" means disabled mode; non-empty means token mode.
func testEnv(t *testing.T, authToken string) (storage.Provider, http.Handler) {
	t.Helper()
	return testEnvFull(t, authToken != "", authToken, nil)
}

func testEnvFull(t *testing.T, authEnabled bool, authToken string, events http.Handler) (storage.Provider, http.Handler) {
	t.Helper()
	_, store := testutil.TestMirror(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	srv := NewServer(store, logger)
	return store, NewRouter(srv, authEnabled, authToken, events)
}

func seed(t *testing.T, store storage.Provider, path, content string) {
	t.Helper()
	if err := store.Write(path, []byte(content)); err != nil {
		t.Fatalf("seed %s: %v", path, err)
	}
}

func get(router http.Handler, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestServeFileWithETag(t *testing.T) {
	store, router := testEnv(t, "")
	seed(t, store, "alpha/index.md", "# Alpha\n\nAlpha overview.\n")

	w := get(router, "/alpha/index.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d, body = %s", w.Code, w.Body.String())
	}
	if got := w.Body.String(); got != "# Alpha\n\nAlpha overview.\n" {
		t.Errorf("body = %q", got)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/markdown; charset=utf-8" {
		t.Errorf("content type = %q", ct)
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("no ETag header")
	}

	// A matching If-None-Match answers 304 with no body.
	w = get(router, "/alpha/index.md", map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusNotModified {
		t.Fatalf("conditional get = %d, want 304", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("304 body = %q, want empty", w.Body.String())
	}

	// A stale validator gets fresh content.
	w = get(router, "/alpha/index.md", map[string]string{"If-None-Match": `"stale"`})
	if w.Code != http.StatusOK {
		t.Errorf("stale conditional get = %d, want 200", w.Code)
	}
}

func TestServeFile_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	w := get(router, "/alpha/nope.md", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing file = %d, want 404", w.Code)
	}
}

func TestServeFile_TraversalBlocked(t *testing.T) {
	store, router := testEnv(t, "")
	seed(t, store, "alpha/index.md", "content")

	w := get(router, "/alpha/../../etc/passwd", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("traversal = %d, want 400", w.Code)
	}
}

func TestRegistryVerbatim(t *testing.T) {
	store, router := testEnv(t, "")
	doc := `{"version": 1, "bundles": {"alpha": {"description": "hand written", "files": ["index.md"]}}}`
	seed(t, store, manifest.FileName, doc)

	w := get(router, "/"+manifest.FileName, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("registry = %d", w.Code)
	}
	if w.Body.String() != doc {
		t.Errorf("registry body = %q, want verbatim document", w.Body.String())
	}
}

func TestRegistryDerived(t *testing.T) {
	store, router := testEnv(t, "")
	seed(t, store, "alpha/index.md", "# Alpha\n\nConcurrency patterns.\n")
	seed(t, store, "alpha/guide.md", "# Guide\n")
	seed(t, store, "alpha/_compact.md", "| Topic |\n")
	seed(t, store, "beta/index.md", "# Beta\n")
	seed(t, store, "meta.json", "{}")

	w := get(router, "/"+manifest.FileName, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("derived registry = %d, body = %s", w.Code, w.Body.String())
	}

	m, err := manifest.Parse(w.Body.Bytes())
	if err != nil {
		t.Fatalf("derived registry does not parse: %v", err)
	}
	if len(m.Bundles) != 2 {
		t.Fatalf("bundles = %v, want alpha and beta", m.Names())
	}
	alpha := m.Bundles["alpha"]
	if alpha.Description != "Concurrency patterns." {
		t.Errorf("alpha description = %q", alpha.Description)
	}
	want := []string{"guide.md", "index.md"}
	if len(alpha.Files) != len(want) {
		t.Fatalf("alpha files = %v, want %v", alpha.Files, want)
	}
	for i, f := range want {
		if alpha.Files[i] != f {
			t.Errorf("alpha files[%d] = %q, want %q", i, alpha.Files[i], f)
		}
	}
	if beta := m.Bundles["beta"]; beta.Description != "" {
		t.Errorf("beta description = %q, want empty", beta.Description)
	}
}

func TestRegistryDerivedDeterministic(t *testing.T) {
	store, router := testEnv(t, "")
	seed(t, store, "alpha/index.md", "# Alpha\n")
	seed(t, store, "alpha/guide.md", "# Guide\n")
	seed(t, store, "beta/index.md", "# Beta\n")

	first := get(router, "/"+manifest.FileName, nil)
	second := get(router, "/"+manifest.FileName, nil)
	if !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Error("derived registry bytes differ across requests")
	}
	etag := first.Header().Get("ETag")
	if etag == "" || etag != second.Header().Get("ETag") {
		t.Errorf("derived ETags differ: %q vs %q", etag, second.Header().Get("ETag"))
	}

	w := get(router, "/"+manifest.FileName, map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusNotModified {
		t.Errorf("conditional registry get = %d, want 304", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	store, router := testEnv(t, "secret123")
	seed(t, store, "alpha/index.md", "content")

	w := get(router, "/alpha/index.md", map[string]string{"Authorization": "Bearer secret123"})
	if w.Code != http.StatusOK {
		t.Errorf("authed get = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	w := get(router, "/"+manifest.FileName, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	w := get(router, "/"+manifest.FileName, map[string]string{"Authorization": "Bearer wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")

	w := get(router, "/"+manifest.FileName, nil)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

func TestHealthUnauthenticated(t *testing.T) {
	_, router := testEnv(t, "secret123")

	for _, target := range []string{"/health/live", "/health/ready"} {
		w := get(router, target, nil)
		if w.Code != http.StatusOK {
			t.Errorf("%s = %d, want 200", target, w.Code)
		}
		var body map[string]string
		_ = json.Unmarshal(w.Body.Bytes(), &body)
		if body["status"] != "ok" {
			t.Errorf("%s body = %s", target, w.Body.String())
		}
	}
}

func TestEventsMounted(t *testing.T) {
	stub := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("event: ping\n\n"))
	})
	_, router := testEnvFull(t, false, "", stub)

	w := get(router, "/events", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("events = %d", w.Code)
	}
	if w.Body.String() != "event: ping\n\n" {
		t.Errorf("events body = %q", w.Body.String())
	}
}
