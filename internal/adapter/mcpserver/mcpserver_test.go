package mcpserver

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thesearch/internal/domain"
	"thesearch/internal/usecase/rag"
)

type stubSearch struct {
	results []domain.SearchResult
	err     error
}

func (s stubSearch) Name() string { return "stub" }

func (s stubSearch) Search(context.Context, string) ([]domain.SearchResult, error) {
	return s.results, s.err
}

type stubLLM struct{ tokens []string }

func (stubLLM) Name() string { return "stub" }

func (stubLLM) Chat(context.Context, domain.ChatRequest) (*domain.ChatResponse, error) {
	return &domain.ChatResponse{Message: domain.Message{Role: domain.RoleAssistant, Content: `{"questions":["Why?"]}`}}, nil
}

func (l stubLLM) ChatStream(context.Context, domain.ChatRequest) (<-chan domain.StreamDelta, error) {
	ch := make(chan domain.StreamDelta, len(l.tokens))
	for _, tok := range l.tokens {
		ch <- domain.StreamDelta{Content: tok}
	}
	close(ch)
	return ch, nil
}

var parisResults = []domain.SearchResult{
	{Name: "Paris - Wikipedia", URL: "https://en.wikipedia.org/wiki/Paris", Snippet: "Paris is the capital of France."},
	{Name: "Paris | Britannica", URL: "https://www.britannica.com/place/Paris", Snippet: "Paris, capital of France."},
}

func newTestClient(t *testing.T, search domain.SearchBackend) *mcpclient.Client {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := rag.NewEngine(search, stubLLM{tokens: []string{"Paris is ", "the capital [citation:1]."}},
		rag.Options{Related: true, Counter: rag.EstimateCounter{}}, logger)

	srv := httptest.NewServer(New(engine, "test", logger).Handler("/mcp"))
	t.Cleanup(srv.Close)

	tr, err := transport.NewStreamableHTTP(srv.URL + "/mcp")
	require.NoError(t, err)
	c := mcpclient.NewClient(tr)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	t.Cleanup(func() { c.Close() })

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "test", Version: "1.0.0"}
	_, err = c.Initialize(ctx, initReq)
	require.NoError(t, err)
	return c
}

func callTool(t *testing.T, c *mcpclient.Client, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := c.CallTool(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return tc.Text
}

func TestListTools(t *testing.T) {
	c := newTestClient(t, stubSearch{results: parisResults})

	res, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{ToolSearch, ToolAsk}, names)
}

func TestSearchTool(t *testing.T) {
	c := newTestClient(t, stubSearch{results: parisResults})

	res := callTool(t, c, ToolSearch, map[string]any{"query": "capital of France"})
	assert.False(t, res.IsError)
	assert.JSONEq(t, `[
		{"name":"Paris - Wikipedia","url":"https://en.wikipedia.org/wiki/Paris","snippet":"Paris is the capital of France."},
		{"name":"Paris | Britannica","url":"https://www.britannica.com/place/Paris","snippet":"Paris, capital of France."}
	]`, text(t, res))
}

func TestAskTool(t *testing.T) {
	c := newTestClient(t, stubSearch{results: parisResults})

	res := callTool(t, c, ToolAsk, map[string]any{"query": "capital of France"})
	assert.False(t, res.IsError)
	assert.Equal(t, "Paris is the capital [citation:1].\n\n"+
		"Sources:\n"+
		"[1] Paris - Wikipedia - https://en.wikipedia.org/wiki/Paris\n"+
		"[2] Paris | Britannica - https://www.britannica.com/place/Paris", text(t, res))
}

func TestAskToolWithRelated(t *testing.T) {
	c := newTestClient(t, stubSearch{results: parisResults})

	res := callTool(t, c, ToolAsk, map[string]any{"query": "capital of France", "generate_related_questions": true})
	assert.False(t, res.IsError)
	assert.Contains(t, text(t, res), "Related questions:\n- Why?")
}

func TestToolErrors(t *testing.T) {
	failing := stubSearch{err: domain.NewSubSystemError("google", "search.google", domain.ErrSearchProvider, "status 500")}
	c := newTestClient(t, failing)

	res := callTool(t, c, ToolSearch, map[string]any{"query": "x"})
	assert.True(t, res.IsError)
	assert.Equal(t, "Error searching.", text(t, res))

	res = callTool(t, c, ToolAsk, map[string]any{"query": "x"})
	assert.True(t, res.IsError)
	assert.Equal(t, "Error searching.", text(t, res))

	res = callTool(t, c, ToolAsk, map[string]any{})
	assert.True(t, res.IsError)
}
