package index

import (
	"log/slog"
	"path"
	"strings"

	"github.com/starford/primer/internal/checksum"
	"github.com/starford/primer/internal/compact"
	"github.com/starford/primer/internal/parser"
	"github.com/starford/primer/internal/storage"
)

// Sync walks the mirror and brings the index up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	infos, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(infos))
	for _, fi := range infos {
		if !indexable(fi.Path) {
			continue
		}
		disk[fi.Path] = struct{}{}

		if checksums[fi.Path] == fi.Checksum {
			continue
		}

		data, err := store.Read(fi.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", fi.Path), slog.String("error", err.Error()))
			continue
		}
		if err := indexFile(db, fi.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", fi.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", fi.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteFile(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// indexable reports whether a mirror-relative path belongs in the search
// index. Only Markdown content counts; generated compact indexes are skipped.
func indexable(rel string) bool {
	if !strings.HasSuffix(rel, ".md") {
		return false
	}
	return path.Base(rel) != compact.FileName
}

// bundleOf returns the first segment of a mirror-relative path, or "" for
// files at the mirror root.
func bundleOf(rel string) string {
	if i := strings.IndexByte(rel, '/'); i >= 0 {
		return rel[:i]
	}
	return ""
}

// indexFile parses data and upserts it into the DB.
func indexFile(db *DB, p string, data []byte) error {
	res := parser.Parse(data)

	row := FileRow{
		Path:     p,
		Bundle:   bundleOf(p),
		Title:    res.Title,
		Checksum: checksum.Sum(data),
		Tags:     res.Tags,
	}
	return db.UpsertFile(row, res.Body)
}
