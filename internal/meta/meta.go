// Package meta persists the mirror's fetch bookkeeping: when the registry
// and each bundle were last fetched, and the per-file ETags used for
// conditional requests. It is pure serialization; no network access.
package meta

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// FileName is the name of the meta document at the mirror root.
const FileName = "meta.json"

// FileETag records the validator for one mirrored file. The etag may be
// empty when the origin did not return one; conditional fetching is then
// disabled for that file.
type FileETag struct {
	ETag string `json:"etag,omitempty"`
}

// BundleMeta records the fetch state of one installed bundle.
type BundleMeta struct {
	FetchedAt time.Time           `json:"fetchedAt,omitzero"`
	ETags     map[string]FileETag `json:"etags,omitempty"`
}

// Meta is the persisted cache metadata. A bundle appears under Bundles
// iff it has been installed locally at least once.
type Meta struct {
	RegistryFetchedAt time.Time             `json:"registryFetchedAt,omitzero"`
	RegistryETag      string                `json:"registryEtag,omitempty"`
	Bundles           map[string]BundleMeta `json:"bundles"`
}

// New returns an empty Meta with initialized maps.
func New() *Meta {
	return &Meta{Bundles: map[string]BundleMeta{}}
}

// Read loads the meta document at path. A missing file, unreadable file,
// or malformed document all yield an empty Meta; callers never see a
// parse error, they just lose conditional-fetch bookkeeping.
func Read(path string) *Meta {
	data, err := os.ReadFile(path)
	if err != nil {
		return New()
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return New()
	}
	if m.Bundles == nil {
		m.Bundles = map[string]BundleMeta{}
	}
	return &m
}

// Write serializes m and atomically replaces the document at path.
// Concurrent readers always observe either the old or the new state.
func Write(path string, m *Meta) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("meta: marshal: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("meta: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".primer-tmp-*")
	if err != nil {
		return fmt.Errorf("meta: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("meta: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("meta: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("meta: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("meta: rename: %w", err)
	}
	success = true
	return nil
}

// ETagFor returns the stored etag for a file within a bundle, or ""
// when none is recorded.
func (m *Meta) ETagFor(bundle, file string) string {
	b, ok := m.Bundles[bundle]
	if !ok {
		return ""
	}
	return b.ETags[file].ETag
}

// Installed returns the names of all bundles recorded in Meta, sorted.
func (m *Meta) Installed() []string {
	names := make([]string, 0, len(m.Bundles))
	for name := range m.Bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MergeBundle folds a batch of observed etags into the bundle's entry and
// stamps a fresh fetch time. Existing etags for files absent from the
// batch are kept; an empty etag in the batch clears any stale entry for
// that file.
func (m *Meta) MergeBundle(name string, fetchedAt time.Time, etags map[string]string) {
	if m.Bundles == nil {
		m.Bundles = map[string]BundleMeta{}
	}
	b, ok := m.Bundles[name]
	if !ok {
		b = BundleMeta{}
	}
	if b.ETags == nil {
		b.ETags = map[string]FileETag{}
	}
	for file, etag := range etags {
		if etag == "" {
			delete(b.ETags, file)
			continue
		}
		b.ETags[file] = FileETag{ETag: etag}
	}
	b.FetchedAt = fetchedAt
	m.Bundles[name] = b
}
