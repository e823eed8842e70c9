package cache

import (
	"context"
	"testing"
)

func TestSuggestSimilarBundleTypo(t *testing.T) {
	c, origin, _, _ := cacheTestEnv(t)
	seedOrigin(origin)

	got := c.SuggestSimilar(context.Background(), []string{"alpa"})
	if !contains(got, "alpha") {
		t.Errorf("suggestions = %v, want alpha included", got)
	}
}

func TestSuggestSimilarSubPath(t *testing.T) {
	c, origin, _, _ := cacheTestEnv(t)
	seedOrigin(origin)

	got := c.SuggestSimilar(context.Background(), []string{"alpha", "setp"})
	if !contains(got, "alpha.setup") {
		t.Errorf("suggestions = %v, want alpha.setup included", got)
	}
}

func TestSuggestSimilarSubstring(t *testing.T) {
	c, origin, _, _ := cacheTestEnv(t)
	seedOrigin(origin)

	got := c.SuggestSimilar(context.Background(), []string{"alpha", "set"})
	if !contains(got, "alpha.setup") {
		t.Errorf("suggestions = %v, want alpha.setup included", got)
	}
}

func TestSuggestSimilarCap(t *testing.T) {
	c, origin, _, _ := cacheTestEnv(t)
	origin.SetRegistry(`{"bundles": {
		"pack1": {"description": "", "files": ["index.md"]},
		"pack2": {"description": "", "files": ["index.md"]},
		"pack3": {"description": "", "files": ["index.md"]},
		"pack4": {"description": "", "files": ["index.md"]},
		"pack5": {"description": "", "files": ["index.md"]}
	}}`)

	got := c.SuggestSimilar(context.Background(), []string{"pack"})
	if len(got) != maxSuggestions {
		t.Errorf("suggestions = %v, want exactly %d", got, maxSuggestions)
	}
}

func TestSuggestSimilarRegistryFailure(t *testing.T) {
	c, _, _, _ := cacheTestEnv(t)
	// The origin serves nothing, so the registry cannot be fetched. The
	// call must degrade to an empty list rather than fail.
	got := c.SuggestSimilar(context.Background(), []string{"anything"})
	if len(got) != 0 {
		t.Errorf("suggestions = %v, want empty on registry failure", got)
	}
}

func TestSuggestSimilarNoMatches(t *testing.T) {
	c, origin, _, _ := cacheTestEnv(t)
	seedOrigin(origin)

	got := c.SuggestSimilar(context.Background(), []string{"completely", "unrelated", "query"})
	if len(got) != 0 {
		t.Errorf("suggestions = %v, want none", got)
	}
}

func TestFlatten(t *testing.T) {
	cases := []struct {
		bundle, file, want string
	}{
		{"alpha", "setup.md", "alpha.setup"},
		{"alpha", "index.md", "alpha"},
		{"alpha", "guides/advanced.md", "alpha.guides.advanced"},
		{"alpha", "guides/index.md", "alpha.guides"},
	}
	for _, tc := range cases {
		if got := flatten(tc.bundle, tc.file); got != tc.want {
			t.Errorf("flatten(%q, %q) = %q, want %q", tc.bundle, tc.file, got, tc.want)
		}
	}
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
