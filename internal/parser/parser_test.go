package parser

import (
	"reflect"
	"testing"
)

func TestParseTitleAndDescription(t *testing.T) {
	res := Parse([]byte("# Alpha\n\nDoes A things.\n\n## Usage\n"))
	if res.Title != "Alpha" {
		t.Errorf("title = %q, want Alpha", res.Title)
	}
	if res.Description != "Does A things." {
		t.Errorf("description = %q", res.Description)
	}
}

func TestParseDeepTitle(t *testing.T) {
	// The first leading-hash heading counts regardless of level.
	res := Parse([]byte("intro text\n\n### Small Heading\nbody\n"))
	if res.Title != "Small Heading" {
		t.Errorf("title = %q, want Small Heading", res.Title)
	}
}

func TestParseNoHeadings(t *testing.T) {
	res := Parse([]byte("plain text only\nsecond line\n"))
	if res.Title != "" {
		t.Errorf("title = %q, want empty", res.Title)
	}
	if res.Description != "plain text only" {
		t.Errorf("description = %q", res.Description)
	}
	if len(res.Sections) != 0 {
		t.Errorf("sections = %v, want none", res.Sections)
	}
}

func TestParseSections(t *testing.T) {
	data := []byte("# Setup\n\nIntro.\n\n## Install\ntext\n\n## Configure\n\n### Not a section\n")
	res := Parse(data)
	want := []string{"Install", "Configure"}
	if !reflect.DeepEqual(res.Sections, want) {
		t.Errorf("sections = %v, want %v", res.Sections, want)
	}
}

func TestParseDescriptionSkipsHeadings(t *testing.T) {
	res := Parse([]byte("# Title\n\n## Sub\n\nFirst real paragraph.\n"))
	if res.Description != "First real paragraph." {
		t.Errorf("description = %q", res.Description)
	}
}

func TestParseFrontmatterTags(t *testing.T) {
	data := []byte("---\ntitle: Ignored For Title\ntags:\n  - http\n  - caching\n  - http\n---\n# Real Title\n\nBody.\n")
	res := Parse(data)
	if res.Title != "Real Title" {
		t.Errorf("title = %q", res.Title)
	}
	want := []string{"http", "caching"}
	if !reflect.DeepEqual(res.Tags, want) {
		t.Errorf("tags = %v, want %v", res.Tags, want)
	}
	if res.Frontmatter["title"] != "Ignored For Title" {
		t.Errorf("frontmatter title = %v", res.Frontmatter["title"])
	}
}

func TestParseInvalidFrontmatter(t *testing.T) {
	data := []byte("---\ntags: [unclosed\n---\n# Heading\n")
	res := Parse(data)
	if res.Frontmatter != nil {
		t.Errorf("frontmatter = %v, want nil", res.Frontmatter)
	}
	// Body falls back to the full content, so the heading is still found.
	if res.Title != "Heading" {
		t.Errorf("title = %q", res.Title)
	}
}

func TestParseUnclosedFrontmatter(t *testing.T) {
	res := Parse([]byte("---\ntitle: no closing fence\n"))
	if res.Frontmatter != nil {
		t.Errorf("frontmatter = %v, want nil", res.Frontmatter)
	}
}
