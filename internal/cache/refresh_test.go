package cache

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/starford/primer/internal/compact"
	"github.com/starford/primer/internal/meta"
)

func TestRefreshBundleNotModifiedLeavesDiskAlone(t *testing.T) {
	c, origin, store, _ := cacheTestEnv(t)
	seedOrigin(origin)
	if err := c.Ensure(context.Background(), "alpha"); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	// Scribble on the local copy. The recorded etag still matches the
	// origin, so the refresh must see 304 and leave the file untouched.
	if err := store.Write("alpha/index.md", []byte("local edit")); err != nil {
		t.Fatalf("write: %v", err)
	}

	changed, err := c.refreshBundle(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("refreshBundle: %v", err)
	}
	if changed {
		t.Error("refresh reported change on an all-304 bundle")
	}
	got, _ := store.Read("alpha/index.md")
	if string(got) != "local edit" {
		t.Errorf("304 rewrote the file: %q", got)
	}
}

func TestRefreshBundleFetchesChanges(t *testing.T) {
	c, origin, store, _ := cacheTestEnv(t)
	seedOrigin(origin)
	if err := c.Ensure(context.Background(), "alpha"); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	origin.SetFile("alpha/setup.md", "# Setup\n\n## Install\n\n## Upgrade\n")
	changed, err := c.refreshBundle(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("refreshBundle: %v", err)
	}
	if !changed {
		t.Error("refresh missed a changed file")
	}
	got, _ := store.Read("alpha/setup.md")
	if !strings.Contains(string(got), "## Upgrade") {
		t.Errorf("changed file not rewritten: %q", got)
	}

	out, _ := store.Read("alpha/" + compact.FileName)
	if !strings.Contains(string(out), "Install, Upgrade") {
		t.Errorf("compact index not regenerated:\n%s", out)
	}
}

func TestRefreshBundleAbsentFromRegistry(t *testing.T) {
	c, origin, _, metas := cacheTestEnv(t)
	seedOrigin(origin)
	_ = metas.Update(func(m *meta.Meta) {
		m.MergeBundle("ghost", time.Now(), nil)
	})

	changed, err := c.refreshBundle(context.Background(), "ghost")
	if err != nil {
		t.Errorf("expected silent no-op, got %v", err)
	}
	if changed {
		t.Error("no-op reported change")
	}
}

func TestRefreshBundleHealsDeletedFile(t *testing.T) {
	// An etag is on record but the file vanished from disk: the refresh
	// must fetch unconditionally rather than trust a 304.
	c, origin, store, _ := cacheTestEnv(t)
	seedOrigin(origin)
	if err := c.Ensure(context.Background(), "alpha"); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	abs, _ := store.Path("alpha/setup.md")
	if err := os.Remove(abs); err != nil {
		t.Fatalf("remove: %v", err)
	}

	changed, err := c.refreshBundle(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("refreshBundle: %v", err)
	}
	if !changed {
		t.Error("refresh did not restore the deleted file")
	}
	ok, _ := store.Exists("alpha/setup.md")
	if !ok {
		t.Error("deleted file not restored")
	}
}

func TestRefreshSingleBundle(t *testing.T) {
	c, origin, store, _ := cacheTestEnv(t)
	seedOrigin(origin)
	if err := c.Ensure(context.Background(), "alpha"); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	origin.SetFile("alpha/index.md", "# Alpha\n\nRevised.\n")
	changed, err := c.Refresh(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !changed {
		t.Error("Refresh missed the changed file")
	}
	got, _ := store.Read("alpha/index.md")
	if !strings.Contains(string(got), "Revised") {
		t.Errorf("changed file not rewritten: %q", got)
	}
}

func TestRefreshAllEmptyMeta(t *testing.T) {
	c, origin, _, _ := cacheTestEnv(t)
	seedOrigin(origin)

	changed, err := c.RefreshAll(context.Background())
	if err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
	if len(changed) != 0 {
		t.Errorf("changed = %v, want empty", changed)
	}
	if origin.Hits("registry.json") != 0 {
		t.Error("RefreshAll with empty meta touched the network")
	}
}

func TestRefreshAllReportsOnlyChanged(t *testing.T) {
	c, origin, _, _ := cacheTestEnv(t)
	seedOrigin(origin)
	if err := c.Ensure(context.Background(), "alpha"); err != nil {
		t.Fatalf("Ensure alpha: %v", err)
	}
	if err := c.Ensure(context.Background(), "beta"); err != nil {
		t.Fatalf("Ensure beta: %v", err)
	}

	origin.SetFile("beta/index.md", "# Beta\n\nNow with content.\n")

	changed, err := c.RefreshAll(context.Background())
	if err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
	if len(changed) != 1 || changed[0] != "beta" {
		t.Errorf("changed = %v, want [beta]", changed)
	}
}

func TestRefreshAllSkipsUninstalled(t *testing.T) {
	c, origin, _, _ := cacheTestEnv(t)
	seedOrigin(origin)
	if err := c.Ensure(context.Background(), "alpha"); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	if _, err := c.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
	if origin.Hits("beta/index.md") != 0 {
		t.Error("RefreshAll fetched a bundle that was never installed")
	}
}

func TestRefreshInBackgroundAppliesChanges(t *testing.T) {
	c, origin, store, _ := cacheTestEnv(t)
	seedOrigin(origin)
	if err := c.Ensure(context.Background(), "alpha"); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	origin.SetFile("alpha/index.md", "# Alpha\n\nFresher than before.\n")

	c.RefreshInBackground("alpha")

	eventually(t, 3*time.Second, 10*time.Millisecond, func() bool {
		got, err := store.Read("alpha/index.md")
		return err == nil && strings.Contains(string(got), "Fresher")
	}, "background refresh never applied the change")
}

func TestRefreshInBackgroundSwallowsFailures(t *testing.T) {
	c, origin, store, _ := cacheTestEnv(t)
	seedOrigin(origin)
	if err := c.Ensure(context.Background(), "alpha"); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	before, _ := store.Read("alpha/index.md")

	// Break the file at the origin: the refresh sees a hard failure for
	// index.md and must drop it without disturbing the mirror.
	origin.RemoveFile("alpha/index.md")
	c.RefreshInBackground("alpha")

	eventually(t, 3*time.Second, 10*time.Millisecond, func() bool {
		return origin.Hits("alpha/index.md") >= 2
	}, "background refresh never ran")

	after, _ := store.Read("alpha/index.md")
	if string(after) != string(before) {
		t.Errorf("failed refresh mutated disk: %q", after)
	}
}
