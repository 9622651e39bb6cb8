package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/varloom/internal/config"
	"github.com/hpungsan/varloom/internal/store"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"variable_define": {
		def:     defineToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDefine },
	},
	"variable_list": {
		def:     listToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleList },
	},
	"variable_delete": {
		def:     deleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDelete },
	},
	"variable_values": {
		def:     valuesToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleValues },
	},
	"variable_hide": {
		def:     hideToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHide },
	},
	"suite_put": {
		def:     suitePutToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSuitePut },
	},
	"suite_list": {
		def:     suiteListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSuiteList },
	},
	"suite_delete": {
		def:     suiteDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSuiteDelete },
	},
	"suite_render": {
		def:     suiteRenderToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRender },
	},
	"reply_apply": {
		def:     replyApplyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleApply },
	},
	"macro_expand": {
		def:     expandToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExpand },
	},
	"tag_instructions": {
		def:     instructionsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleInstructions },
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

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with varloom tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(st *store.Store, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"varloom",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(st, cfg)

	disabled := make(map[string]bool)
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(st *store.Store, cfg *config.Config, version string) error {
	s := NewServer(st, cfg, version)
	return server.ServeStdio(s)
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
