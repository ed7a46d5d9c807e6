package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/khanglvm/smartfix/internal/brain"
	"github.com/khanglvm/smartfix/internal/learning"
	"github.com/khanglvm/smartfix/internal/models"
	"github.com/khanglvm/smartfix/internal/normalize"
	"github.com/khanglvm/smartfix/internal/search"
	"github.com/khanglvm/smartfix/internal/storage"
)

type stubReader struct{}

func (stubReader) ReadImage(context.Context, []byte, string) (models.ImageExtraction, error) {
	return models.ImageExtraction{Text: "Router blinking red", ErrorCodes: []string{"WAN-01"}}, nil
}

func setupServer(t *testing.T) *Server {
	t.Helper()

	store := storage.NewStorage(filepath.Join(t.TempDir(), "brain.db"), nil)
	require.NoError(t, store.Init())
	t.Cleanup(func() { store.Close() })
	_, err := store.Seed(context.Background())
	require.NoError(t, err)

	index, err := search.NewIndexer(nil)
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })

	engine, err := brain.NewEngine(brain.DefaultConfig(), brain.Deps{
		Store:      store,
		Index:      index,
		Normalizer: normalize.New(nil, stubReader{}, nil),
	})
	require.NoError(t, err)
	require.NoError(t, engine.LoadIndex(context.Background()))

	server, err := NewServer(engine, "test", zap.NewNop())
	require.NoError(t, err)
	return server
}

func call(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	request := mcp.CallToolRequest{}
	request.Params.Name = name
	request.Params.Arguments = args

	result, err := handler(context.Background(), request)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	content, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return content.Text
}

func decodeResult[T any](t *testing.T, result *mcp.CallToolResult) T {
	t.Helper()
	require.False(t, result.IsError, resultText(t, result))
	var v T
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &v))
	return v
}

func TestNewServer_NilEngine(t *testing.T) {
	_, err := NewServer(nil, "test", nil)
	assert.EqualError(t, err, "engine cannot be nil")
}

func TestToolsList(t *testing.T) {
	server := setupServer(t)

	reply := server.mcp.HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(reply)
	require.NoError(t, err)

	for _, name := range []string{
		"brain_process", "brain_search", "brain_related",
		"brain_feedback", "brain_add_solution", "brain_stats",
	} {
		assert.Contains(t, string(data), `"`+name+`"`)
	}
}

func TestHandleProcess(t *testing.T) {
	server := setupServer(t)

	t.Run("text answered from memory", func(t *testing.T) {
		resp := decodeResult[brain.Response](t, call(t, server.handleProcess, "brain_process", map[string]any{
			"text": "TV screen is black but power light is on",
		}))
		assert.Equal(t, learning.SourceMemory, resp.Source)
		assert.NotEmpty(t, resp.QueryID)
		assert.NotEmpty(t, resp.Solution.RecommendedSteps)
	})

	t.Run("image payload is decoded", func(t *testing.T) {
		resp := decodeResult[brain.Response](t, call(t, server.handleProcess, "brain_process", map[string]any{
			"text":           "router",
			"input_type":     models.InputImage,
			"payload_base64": base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G'}),
		}))
		assert.Equal(t, "router Router blinking red Error codes detected: WAN-01", resp.QueryText)
	})

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing text", map[string]any{}, "text"},
		{"log without content", map[string]any{"text": "x", "input_type": "log"}, "log_content"},
		{"voice without payload", map[string]any{"text": "x", "input_type": "voice"}, "payload_base64"},
		{"bad base64", map[string]any{"text": "x", "input_type": "image", "payload_base64": "!!"}, "base64"},
		{"unknown type", map[string]any{"text": "x", "input_type": "video"}, "video"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := call(t, server.handleProcess, "brain_process", tt.args)
			assert.True(t, result.IsError)
			assert.Contains(t, resultText(t, result), tt.want)
		})
	}
}

func TestHandleSearchAndRelated(t *testing.T) {
	server := setupServer(t)

	found := decodeResult[SearchResult](t, call(t, server.handleSearch, "brain_search", map[string]any{
		"query":           "battery drains",
		"device_category": "smartphone",
	}))
	require.NotZero(t, found.Count)
	assert.Equal(t, "Phone battery drains quickly", found.Results[0].ProblemText)

	related := decodeResult[RelatedResult](t, call(t, server.handleRelated, "brain_related", map[string]any{
		"query": "battery drains quickly",
		"limit": 2,
	}))
	assert.LessOrEqual(t, len(related.Results), 2)
	require.NotEmpty(t, related.Results)

	bad := call(t, server.handleRelated, "brain_related", map[string]any{"query": "x", "limit": 0})
	assert.True(t, bad.IsError)
}

func TestHandleFeedback(t *testing.T) {
	server := setupServer(t)

	resp := decodeResult[brain.Response](t, call(t, server.handleProcess, "brain_process", map[string]any{
		"text": "Phone battery drains quickly",
	}))

	missing := call(t, server.handleFeedback, "brain_feedback", map[string]any{"query_id": resp.QueryID})
	assert.True(t, missing.IsError)

	badScore := call(t, server.handleFeedback, "brain_feedback", map[string]any{
		"query_id": resp.QueryID, "success": true, "score": 9,
	})
	assert.True(t, badScore.IsError)

	result := decodeResult[learning.FeedbackResult](t, call(t, server.handleFeedback, "brain_feedback", map[string]any{
		"query_id": resp.QueryID, "success": false, "score": 2,
	}))
	assert.Equal(t, learning.FeedbackRecorded, result.Status)
	require.NotNil(t, result.RecordID)

	again := call(t, server.handleFeedback, "brain_feedback", map[string]any{
		"query_id": resp.QueryID, "success": true,
	})
	assert.True(t, again.IsError)
}

func TestHandleAddSolution(t *testing.T) {
	server := setupServer(t)

	added := decodeResult[AddSolutionResult](t, call(t, server.handleAddSolution, "brain_add_solution", map[string]any{
		"problem_text":    "Smart plug keeps disconnecting",
		"solution_steps":  []any{"Move the plug closer to the router", "Reserve a DHCP lease"},
		"device_category": "iot",
		"error_codes":     []any{"E-NET"},
	}))
	assert.NotZero(t, added.ID)

	found := decodeResult[SearchResult](t, call(t, server.handleSearch, "brain_search", map[string]any{
		"query": "smart plug keeps disconnecting",
	}))
	require.NotEmpty(t, found.Results)
	assert.Equal(t, added.ID, found.Results[0].ID)
	assert.Equal(t, 0.5, found.Results[0].ConfidenceScore)

	invalid := call(t, server.handleAddSolution, "brain_add_solution", map[string]any{
		"problem_text": "No steps",
	})
	assert.True(t, invalid.IsError)
}

func TestHandleStats(t *testing.T) {
	server := setupServer(t)

	stats := decodeResult[models.Stats](t, call(t, server.handleStats, "brain_stats", nil))
	assert.Equal(t, int64(13), stats.TotalProblems)
	assert.Zero(t, stats.TotalQueries)
}
