package mcpserver

// UsageContract describes how LLM consumers should address and consume
// primers through the MCP tools.
const UsageContract = `# Primer Usage Contract

Primers are versioned bundles of reference Markdown, mirrored locally on
first use. Address content with **dotted topic paths**; never guess file
system locations.

## Addressing

A topic path is the primer name followed by optional section segments,
joined with dots:

- ` + "`" + `go-concurrency` + "`" + ` resolves to the primer's root document (` + "`" + `index.md` + "`" + `).
- ` + "`" + `go-concurrency.channels` + "`" + ` resolves to ` + "`" + `channels.md` + "`" + ` inside the primer,
  or to ` + "`" + `channels/index.md` + "`" + ` when the section is a directory.
- Deeper nesting works the same way: ` + "`" + `go-concurrency.patterns.fanout` + "`" + `.

## Rules

1. **Start with ` + "`" + `list_primers` + "`" + `** to see what exists. Installed markers tell
   you what is already local; everything else is fetched on demand.
2. **Use ` + "`" + `primer_overview` + "`" + ` before reading.** It returns a compact topic
   table and costs far fewer tokens than the full document.
3. **` + "`" + `read_primer` + "`" + ` installs missing primers automatically.** A failed read
   includes "did you mean" alternatives when the topic looks like a typo.
4. **Scope searches when you can.** ` + "`" + `search_primers` + "`" + ` takes an optional
   ` + "`" + `primer` + "`" + ` argument; unscoped queries search every installed primer.
5. **Refresh is explicit.** The mirror favors cached content; call
   ` + "`" + `refresh_primers` + "`" + ` when the user asks for the latest material.

## Example

` + "```" + `
list_primers
primer_overview  primer=go-concurrency
read_primer      topic=go-concurrency.channels
search_primers   query="context cancellation" primer=go-concurrency
` + "```" + `
`
