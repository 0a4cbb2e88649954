// Package mcp exposes clipboard history over the Model Context Protocol so a
// paste palette or hotkey client can drive it over stdio.
package mcp

import (
	"database/sql"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/clipkeep/clipkeep/internal/clipboard"
	"github.com/clipkeep/clipkeep/internal/config"
	"github.com/clipkeep/clipkeep/internal/gate"
	"github.com/clipkeep/clipkeep/internal/history"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"history_list": {
		def:     listToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleList },
	},
	"history_search": {
		def:     searchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearch },
	},
	"history_copy": {
		def:     copyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCopy },
	},
	"history_delete": {
		def:     deleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDelete },
	},
	"history_favorite": {
		def:     favoriteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFavorite },
	},
	"history_edit": {
		def:     editToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEdit },
	},
	"favorites_reorder": {
		def:     reorderToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleReorder },
	},
	"pause_set": {
		def:     pauseSetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePauseSet },
	},
	"pause_status": {
		def:     pauseStatusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePauseStatus },
	},
	"exclusion_add": {
		def:     exclusionAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExclusionAdd },
	},
	"exclusion_remove": {
		def:     exclusionRemoveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExclusionRemove },
	},
	"exclusion_list": {
		def:     exclusionListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExclusionList },
	},
	"history_export": {
		def:     exportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExport },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// NewServer creates a new MCP server with clipkeep tools registered.
func NewServer(database *sql.DB, cfg *config.Config, hist *history.Store, g *gate.Gate, src clipboard.Source, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"clipkeep",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(database, cfg, hist, g, src)
	for _, entry := range toolRegistry {
		s.AddTool(entry.def, entry.handler(h))
	}
	return s
}

// Run starts the MCP server using stdio transport.
func Run(database *sql.DB, cfg *config.Config, hist *history.Store, g *gate.Gate, src clipboard.Source, version string) error {
	s := NewServer(database, cfg, hist, g, src, version)
	return server.ServeStdio(s)
}
