// Package mcpserver exposes the answer engine as Model Context Protocol
// tools over streamable HTTP.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"thesearch/internal/domain"
	"thesearch/internal/infra/logger"
	"thesearch/internal/usecase/rag"
)

// Tool names.
const (
	ToolSearch = "search"
	ToolAsk    = "ask"
)

// Engine is the part of rag.Engine the tools call.
type Engine interface {
	Search(ctx context.Context, query string) ([]domain.SearchResult, error)
	Answer(ctx context.Context, q rag.Query) (*rag.Answer, error)
}

// Server registers the search and ask tools on an MCP server.
type Server struct {
	mcp    *server.MCPServer
	engine Engine
	logger *slog.Logger
}

// New creates the MCP server with both tools registered.
func New(engine Engine, version string, logger *slog.Logger) *Server {
	s := &Server{
		mcp:    server.NewMCPServer("thesearch", version, server.WithToolCapabilities(false), server.WithRecovery()),
		engine: engine,
		logger: logger,
	}

	s.mcp.AddTool(mcp.NewTool(ToolSearch,
		mcp.WithDescription("Search the web and return the results that would be cited for a query."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural language query")),
	), s.handleSearch)

	s.mcp.AddTool(mcp.NewTool(ToolAsk,
		mcp.WithDescription("Answer a question from web search results, with numbered citations."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural language question")),
		mcp.WithBoolean("generate_related_questions", mcp.Description("Also suggest up to five follow-up questions")),
	), s.handleAsk)

	return s
}

// Handler serves the streamable HTTP transport.
func (s *Server) Handler(path string) http.Handler {
	return server.NewStreamableHTTPServer(s.mcp, server.WithEndpointPath(path), server.WithStateLess(true))
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	contexts, err := s.engine.Search(ctx, query)
	if err != nil {
		logger.FromContext(ctx, s.logger).Warn("mcp search failed", "error", err)
		return mcp.NewToolResultError("Error searching."), nil
	}
	body, err := json.Marshal(contexts)
	if err != nil {
		return nil, fmt.Errorf("marshal contexts: %w", err)
	}
	return mcp.NewToolResultText(string(body)), nil
}

func (s *Server) handleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	related := req.GetBool("generate_related_questions", false)

	answer, err := s.engine.Answer(ctx, rag.Query{Text: query, GenerateRelated: related})
	if err != nil {
		logger.FromContext(ctx, s.logger).Warn("mcp ask failed", "error", err)
		if errors.Is(err, domain.ErrSearchProvider) {
			return mcp.NewToolResultError("Error searching."), nil
		}
		return mcp.NewToolResultError("Internal server error."), nil
	}

	var c collector
	if err := answer.WriteTo(ctx, &c); err != nil {
		return mcp.NewToolResultError("Internal server error."), nil
	}
	return mcp.NewToolResultText(c.render()), nil
}

// collector buffers an answer for a single tool result.
type collector struct {
	contexts []domain.SearchResult
	answer   strings.Builder
	related  []string
}

func (c *collector) WriteContexts(contexts []domain.SearchResult) error {
	c.contexts = contexts
	return nil
}

func (c *collector) WriteToken(token string) error {
	c.answer.WriteString(token)
	return nil
}

func (c *collector) WriteRelated(questions []string) error {
	c.related = questions
	return nil
}

func (c *collector) render() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(c.answer.String()))
	if len(c.contexts) > 0 {
		b.WriteString("\n\nSources:\n")
		for i, ctx := range c.contexts {
			fmt.Fprintf(&b, "[%d] %s - %s\n", i+1, ctx.Name, ctx.URL)
		}
	}
	if len(c.related) > 0 {
		b.WriteString("\nRelated questions:\n")
		for _, q := range c.related {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
