// Package parser extracts headings, descriptions, and frontmatter from
// Markdown bundle files.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var headingRe = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]interface{}
	Body        string
	Title       string
	Description string
	Sections    []string
	Tags        []string
}

// Parse extracts structure from raw Markdown bytes. It never fails: malformed
// frontmatter is folded into the body and a file without headings simply
// yields empty fields.
func Parse(data []byte) *Result {
	fm, body := splitFrontmatter(data)

	title, titleLine := deriveTitle(body)

	return &Result{
		Frontmatter: fm,
		Body:        body,
		Title:       title,
		Description: deriveDescription(body, titleLine),
		Sections:    extractSections(body),
		Tags:        extractTags(fm),
	}
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]interface{}, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		// No closing delimiter — treat everything as body.
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		// Invalid YAML — return body only.
		return nil, string(data)
	}

	return fm, body
}

// deriveTitle returns the text of the first leading-hash heading of any level
// and the line index it was found at, or ("", -1) when the file has none.
func deriveTitle(body string) (string, int) {
	for i, line := range strings.Split(body, "\n") {
		if m := headingRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			return strings.TrimSpace(m[2]), i
		}
	}
	return "", -1
}

// deriveDescription returns the first non-empty line after the title that is
// not itself a heading. With no title it scans from the top of the body.
func deriveDescription(body string, titleLine int) string {
	lines := strings.Split(body, "\n")
	for i := titleLine + 1; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" || headingRe.MatchString(trimmed) {
			continue
		}
		return trimmed
	}
	return ""
}

// extractSections returns the text of every level-2 heading in order.
func extractSections(body string) []string {
	var out []string
	for _, line := range strings.Split(body, "\n") {
		m := headingRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil || len(m[1]) != 2 {
			continue
		}
		out = append(out, strings.TrimSpace(m[2]))
	}
	return out
}

// extractTags collects string entries of the frontmatter "tags" list.
func extractTags(fm map[string]interface{}) []string {
	if fm == nil {
		return nil
	}
	raw, ok := fm["tags"]
	if !ok {
		return nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	var out []string
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
