// Package compact derives the condensed per-bundle index document. The
// generator is pure: same input files, byte-identical output.
package compact

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/starford/primer/internal/parser"
	"github.com/starford/primer/internal/storage"
)

// FileName is the generated index written at each bundle root.
const FileName = "_compact.md"

// DisplayBase is the conventional path prefix shown in generated tables,
// independent of where the mirror actually lives on disk.
const DisplayBase = "~/.primer"

// instruction is the fixed line steering consumers toward the full files.
const instruction = "Read the listed file before answering questions about a topic instead of relying on prior knowledge."

// Generate derives the compact index for bundle from its mirrored files.
// It returns nil when the bundle has no root index.md, meaning the
// bundle is not fully installed yet.
func Generate(store storage.Provider, bundle string) ([]byte, error) {
	indexPath := path.Join(bundle, "index.md")
	ok, err := store.Exists(indexPath)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	raw, err := store.Read(indexPath)
	if err != nil {
		return nil, err
	}
	doc := parser.Parse(raw)

	files, err := store.List(bundle)
	if err != nil {
		return nil, err
	}
	var subs []string
	for _, f := range files {
		rel := strings.TrimPrefix(f.Path, bundle+"/")
		if rel == "index.md" || rel == FileName {
			continue
		}
		subs = append(subs, rel)
	}
	sort.Strings(subs)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", doc.Title)
	if doc.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", doc.Description)
	}
	fmt.Fprintf(&b, "\n%s\n", instruction)

	if len(subs) > 0 {
		b.WriteString("\n| Topic | Sections | File |\n")
		b.WriteString("| --- | --- | --- |\n")
		for _, rel := range subs {
			content, err := store.Read(path.Join(bundle, rel))
			if err != nil {
				return nil, err
			}
			sections := parser.Parse(content).Sections
			heads := "—"
			if len(sections) > 0 {
				heads = strings.Join(sections, ", ")
			}
			fmt.Fprintf(&b, "| %s | %s | %s/%s/%s |\n", topicName(rel), heads, DisplayBase, bundle, rel)
		}
	}
	return []byte(b.String()), nil
}

// topicName turns a relative file path into its display topic: the
// extension is stripped, and a trailing /index collapses into the
// directory name.
func topicName(rel string) string {
	name := strings.TrimSuffix(rel, path.Ext(rel))
	return strings.TrimSuffix(name, "/index")
}
