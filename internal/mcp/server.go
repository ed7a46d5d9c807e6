/*
Package mcp implements the MCP server that exposes the decision engine.

The server uses stdio transport and exposes 6 tools:
  - brain_process: Answer a troubleshooting query
  - brain_search: List stored solutions matching a query
  - brain_related: Find related stored problems by BM25 relevance
  - brain_feedback: Report whether an answer worked
  - brain_add_solution: Store a new or corrected solution
  - brain_stats: Knowledge and learning statistics
*/
package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/khanglvm/smartfix/internal/brain"
	"github.com/khanglvm/smartfix/internal/learning"
	"github.com/khanglvm/smartfix/internal/models"
	"github.com/khanglvm/smartfix/internal/search"
)

// Engine is the subset of *brain.Engine the tools call.
type Engine interface {
	Process(ctx context.Context, in models.Input) brain.Response
	Search(ctx context.Context, query, deviceCategory string) ([]models.ProblemRecord, error)
	Related(query, deviceCategory string, limit int) ([]search.RelatedResult, error)
	SubmitFeedback(ctx context.Context, queryID string, success bool, score *int) (learning.FeedbackResult, error)
	AddRecord(ctx context.Context, rec models.ProblemRecord) (int64, error)
	Stats(ctx context.Context) (models.Stats, error)
}

// Server represents the smartfix MCP server.
type Server struct {
	mcp    *mcpserver.MCPServer
	engine Engine
	logger *zap.Logger
}

// NewServer creates a new MCP server and registers its tools.
func NewServer(engine Engine, version string, logger *zap.Logger) (*Server, error) {
	if engine == nil {
		return nil, errors.New("engine cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		mcp:    mcpserver.NewMCPServer("smartfix", version, mcpserver.WithToolCapabilities(false)),
		engine: engine,
		logger: logger,
	}
	s.registerTools()
	return s, nil
}

// Run serves MCP over stdio until stdin closes or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(s.mcp)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
		return nil
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("mcp server error: %w", err)
		}
		return nil
	}
}

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	// 1. brain_process - answer a query
	s.mcp.AddTool(mcp.Tool{
		Name: "brain_process",
		Description: `Diagnose a device problem and return step-by-step fix instructions.

WHEN TO USE: The user describes a device problem (TV, phone, smartwatch, smart home device) in words or pastes an error log.

Answers come from stored solutions when a trusted one matches, otherwise from fresh analysis plus web sources. Keep the returned query_id to report the outcome with brain_feedback.`,
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Problem description in the user's words",
				},
				"input_type": map[string]interface{}{
					"type":        "string",
					"enum":        []string{models.InputText, models.InputLog, models.InputImage, models.InputVoice},
					"description": "How the problem is given (default: text)",
				},
				"log_content": map[string]interface{}{
					"type":        "string",
					"description": "Log lines for input_type=log",
				},
				"payload_base64": map[string]interface{}{
					"type":        "string",
					"description": "Base64 image or audio bytes for input_type=image or voice",
				},
				"filename": map[string]interface{}{
					"type":        "string",
					"description": "Original file name of the payload, used to detect audio format",
				},
				"device_category": map[string]interface{}{
					"type":        "string",
					"description": "Optional device category filter (television, smartphone, smartwatch, iot)",
				},
			},
			Required: []string{"text"},
		},
	}, s.handleProcess)

	// 2. brain_search - list matching stored solutions
	s.mcp.AddTool(mcp.Tool{
		Name:        "brain_search",
		Description: "List stored solutions whose problem or symptoms share words with the query, best first. Does not count as using a solution.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search text",
				},
				"device_category": map[string]interface{}{
					"type":        "string",
					"description": "Optional device category filter",
				},
			},
			Required: []string{"query"},
		},
	}, s.handleSearch)

	// 3. brain_related - BM25 related problems
	s.mcp.AddTool(mcp.Tool{
		Name:        "brain_related",
		Description: "Find stored problems related to a description, ranked by BM25 text relevance.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Problem description",
				},
				"device_category": map[string]interface{}{
					"type":        "string",
					"description": "Optional device category filter",
				},
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of results (default: 5)",
					"default":     search.DefaultRelatedLimit,
				},
			},
			Required: []string{"query"},
		},
	}, s.handleRelated)

	// 4. brain_feedback - report outcome
	s.mcp.AddTool(mcp.Tool{
		Name: "brain_feedback",
		Description: `Report whether the answer to a query fixed the problem.

WHEN TO USE: After the user tries the steps from brain_process. Feedback is accepted once per query_id and adjusts the stored solution's success rate.`,
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query_id": map[string]interface{}{
					"type":        "string",
					"description": "query_id returned by brain_process",
				},
				"success": map[string]interface{}{
					"type":        "boolean",
					"description": "true if the problem was fixed",
				},
				"score": map[string]interface{}{
					"type":        "number",
					"description": "Optional rating from 1 to 5",
				},
			},
			Required: []string{"query_id", "success"},
		},
	}, s.handleFeedback)

	// 5. brain_add_solution - store a solution
	s.mcp.AddTool(mcp.Tool{
		Name:        "brain_add_solution",
		Description: "Store a solution. A solution with the same problem text replaces the existing one.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"problem_text": map[string]interface{}{
					"type":        "string",
					"description": "Short problem statement",
				},
				"solution_steps": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Fix instructions in order",
				},
				"symptoms": map[string]interface{}{
					"type":        "string",
					"description": "Observable symptoms",
				},
				"problem_type": map[string]interface{}{
					"type":        "string",
					"description": "Problem class, e.g. display, audio, connectivity",
				},
				"device_category": map[string]interface{}{
					"type":        "string",
					"description": "Device category",
				},
				"error_codes": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Associated error codes",
				},
				"confidence_score": map[string]interface{}{
					"type":        "number",
					"description": "Trust in the solution from 0 to 1 (default: 0.5)",
				},
			},
			Required: []string{"problem_text", "solution_steps"},
		},
	}, s.handleAddSolution)

	// 6. brain_stats - statistics
	s.mcp.AddTool(mcp.Tool{
		Name:        "brain_stats",
		Description: "Show stored solution counts, average confidence and success rates, and learning activity.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleStats)
}
