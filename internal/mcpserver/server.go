// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the primer mirror to LLM agents via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/primer/internal/apperr"
	"github.com/starford/primer/internal/cache"
	"github.com/starford/primer/internal/compact"
	"github.com/starford/primer/internal/index"
	"github.com/starford/primer/internal/manifest"
	"github.com/starford/primer/internal/storage"
)

// Server wraps the MCP server with primer tools.
type Server struct {
	mcp      *server.MCPServer
	store    storage.Provider
	cache    *cache.Cache
	registry *manifest.Service
	idx      index.FileIndex
}

// New creates a new MCP server with all primer tools registered.
func New(store storage.Provider, primers *cache.Cache, registry *manifest.Service, idx index.FileIndex) *Server {
	s := &Server{store: store, cache: primers, registry: registry, idx: idx}

	s.mcp = server.NewMCPServer(
		"Primer",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_primers",
		mcp.WithDescription("List every primer the registry offers, with descriptions and installed markers."),
	), s.listPrimers)

	s.mcp.AddTool(mcp.NewTool("read_primer",
		mcp.WithDescription("Read a primer topic by dotted path (e.g. go-concurrency or go-concurrency.channels). "+
			"Missing primers are fetched from the registry on demand."),
		mcp.WithString("topic", mcp.Required(), mcp.Description("Dotted topic path addressing a primer file")),
	), s.readPrimer)

	s.mcp.AddTool(mcp.NewTool("primer_overview",
		mcp.WithDescription("Return the compact topic table for one primer. "+
			"Cheaper than read_primer when deciding which topic to read."),
		mcp.WithString("primer", mcp.Required(), mcp.Description("Primer name as listed by list_primers")),
	), s.primerOverview)

	s.mcp.AddTool(mcp.NewTool("search_primers",
		mcp.WithDescription("Full-text search through installed primer content and titles."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithString("primer", mcp.Description("Optional primer name to restrict the search to")),
	), s.searchPrimers)

	s.mcp.AddTool(mcp.NewTool("refresh_primers",
		mcp.WithDescription("Re-check every installed primer against the registry and report which ones changed."),
	), s.refreshPrimers)

	// Resource: usage contract.
	s.mcp.AddResource(
		mcp.NewResource("primer://usage", "Primer Usage Contract",
			mcp.WithResourceDescription("How primer topics are addressed and which tool to reach for."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readUsageResource,
	)

	return s
}

// Serve runs the MCP server over the given stdio streams until ctx is canceled.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listPrimers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m, err := s.registry.Get(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	installed := map[string]bool{}
	for _, name := range s.cache.Installed() {
		installed[name] = true
	}

	type entry struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Files       int    `json:"files"`
		Installed   bool   `json:"installed"`
	}
	entries := make([]entry, 0, len(m.Bundles))
	for _, name := range m.Names() {
		b := m.Bundles[name]
		entries = append(entries, entry{
			Name:        name,
			Description: b.Description,
			Files:       len(b.Files),
			Installed:   installed[name],
		})
	}
	out, _ := json.MarshalIndent(entries, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readPrimer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topic, err := req.RequireString("topic")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	segments := strings.Split(topic, ".")

	data, err := s.cache.Resolve(segments)
	if err == nil {
		if s.isInstalled(segments[0]) {
			s.cache.RefreshInBackground(segments[0])
		}
		return mcp.NewToolResultText(string(data)), nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(err.Error()), nil
	}

	// Not mirrored yet: try a one-shot install of the leading bundle.
	if ensureErr := s.cache.Ensure(ctx, segments[0]); ensureErr == nil {
		if data, err := s.cache.Resolve(segments); err == nil {
			return mcp.NewToolResultText(string(data)), nil
		}
	}

	msg := fmt.Sprintf("not found: %s", topic)
	if suggestions := s.cache.SuggestSimilar(ctx, segments); len(suggestions) > 0 {
		msg += "; did you mean: " + strings.Join(suggestions, ", ")
	}
	return mcp.NewToolResultError(msg), nil
}

func (s *Server) primerOverview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("primer")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rel := path.Join(name, compact.FileName)
	if ok, _ := s.store.Exists(rel); !ok {
		if err := s.cache.Ensure(ctx, name); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	data, err := s.store.Read(rel)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("no overview for %s", name)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) searchPrimers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bundle := ""
	if b, err := req.RequireString("primer"); err == nil {
		bundle = b
	}

	results, err := s.idx.Search(query, bundle, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) refreshPrimers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	changed, err := s.cache.RefreshAll(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(changed) == 0 {
		return mcp.NewToolResultText("all primers up to date"), nil
	}
	return mcp.NewToolResultText("changed: " + strings.Join(changed, ", ")), nil
}

func (s *Server) readUsageResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "primer://usage",
			MIMEType: "text/markdown",
			Text:     UsageContract,
		},
	}, nil
}

func (s *Server) isInstalled(name string) bool {
	for _, b := range s.cache.Installed() {
		if b == name {
			return true
		}
	}
	return false
}
