package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/khanglvm/smartfix/internal/brain"
	"github.com/khanglvm/smartfix/internal/learning"
	"github.com/khanglvm/smartfix/internal/models"
	"github.com/khanglvm/smartfix/internal/search"
	"github.com/khanglvm/smartfix/internal/storage"
)

// SearchResult is the brain_search tool result.
type SearchResult struct {
	Query   string                 `json:"query"`
	Count   int                    `json:"count"`
	Results []models.ProblemRecord `json:"results"`
}

// RelatedResult is the brain_related tool result.
type RelatedResult struct {
	Query   string                 `json:"query"`
	Results []search.RelatedResult `json:"results"`
}

// AddSolutionResult is the brain_add_solution tool result.
type AddSolutionResult struct {
	ID          int64  `json:"id"`
	ProblemText string `json:"problem_text"`
}

func (s *Server) handleProcess(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	in := models.Input{
		Type:           request.GetString("input_type", models.InputText),
		Text:           text,
		LogContent:     request.GetString("log_content", ""),
		Filename:       request.GetString("filename", ""),
		DeviceCategory: request.GetString("device_category", ""),
	}

	switch in.Type {
	case models.InputText:
	case models.InputLog:
		if strings.TrimSpace(in.LogContent) == "" {
			return mcp.NewToolResultError("log_content is required for input_type=log"), nil
		}
	case models.InputImage, models.InputVoice:
		encoded := request.GetString("payload_base64", "")
		if encoded == "" {
			return mcp.NewToolResultError("payload_base64 is required for input_type=" + in.Type), nil
		}
		payload, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return mcp.NewToolResultError("payload_base64 is not valid base64"), nil
		}
		in.Payload = payload
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown input_type %q", in.Type)), nil
	}

	return jsonResult(s.engine.Process(ctx, in))
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	records, err := s.engine.Search(ctx, query, request.GetString("device_category", ""))
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		return mcp.NewToolResultError("search failed: " + err.Error()), nil
	}
	return jsonResult(SearchResult{Query: query, Count: len(records), Results: records})
}

func (s *Server) handleRelated(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := request.GetInt("limit", search.DefaultRelatedLimit)
	if limit < 1 {
		return mcp.NewToolResultError("limit must be a positive integer"), nil
	}

	results, err := s.engine.Related(query, request.GetString("device_category", ""), limit)
	if err != nil {
		s.logger.Error("related lookup failed", zap.Error(err))
		return mcp.NewToolResultError("related lookup failed: " + err.Error()), nil
	}
	return jsonResult(RelatedResult{Query: query, Results: results})
}

func (s *Server) handleFeedback(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	queryID, err := request.RequireString("query_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := request.GetArguments()
	if _, ok := args["success"]; !ok {
		return mcp.NewToolResultError(`required argument "success" not found`), nil
	}
	success := request.GetBool("success", false)

	var score *int
	if _, ok := args["score"]; ok {
		v := request.GetInt("score", 0)
		score = &v
	}

	result, err := s.engine.SubmitFeedback(ctx, queryID, success, score)
	switch {
	case errors.Is(err, learning.ErrFeedbackRecorded), errors.Is(err, learning.ErrInvalidScore):
		return mcp.NewToolResultError(err.Error()), nil
	case err != nil:
		s.logger.Error("feedback failed", zap.String("query_id", queryID), zap.Error(err))
		return mcp.NewToolResultError("feedback failed: " + err.Error()), nil
	}
	return jsonResult(result)
}

func (s *Server) handleAddSolution(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(request.GetArguments())
	if err != nil {
		return mcp.NewToolResultError("invalid arguments"), nil
	}
	var input brain.RecordInput
	if err := json.Unmarshal(raw, &input); err != nil {
		return mcp.NewToolResultError("invalid arguments: " + err.Error()), nil
	}

	rec := input.Record()
	id, err := s.engine.AddRecord(ctx, rec)
	if errors.Is(err, storage.ErrInvalidRecord) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err != nil {
		s.logger.Error("add solution failed", zap.Error(err))
		return mcp.NewToolResultError("failed to store solution: " + err.Error()), nil
	}
	return jsonResult(AddSolutionResult{ID: id, ProblemText: rec.ProblemText})
}

func (s *Server) handleStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.engine.Stats(ctx)
	if err != nil {
		s.logger.Error("stats failed", zap.Error(err))
		return mcp.NewToolResultError("stats unavailable: " + err.Error()), nil
	}
	return jsonResult(stats)
}

// jsonResult renders v as indented JSON text content.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
