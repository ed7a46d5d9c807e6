package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/khanglvm/smartfix/internal/models"
)

const analysisSystemPrompt = `You are a troubleshooting assistant for consumer electronics.
Analyze the user's problem and reply with ONLY a JSON object with these fields:
- issue: a concise summary of the problem
- possible_causes: list of potential causes
- confidence_score: a number between 0 and 1 indicating confidence in your analysis
- recommended_steps: list of troubleshooting steps, each with step_number and description
- additional_info: optional extra notes for the user`

// GenerateAnalysis asks the model for a structured diagnosis of text.
func (c *Client) GenerateAnalysis(ctx context.Context, text, deviceCategory string) (models.Analysis, error) {
	user := fmt.Sprintf("Problem description: %q", text)
	if category := strings.TrimSpace(deviceCategory); category != "" {
		user += "\nDevice category: " + category
	}

	reply, err := c.complete(ctx, openai.ChatCompletionRequest{
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: analysisSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
	})
	if err != nil {
		return models.Analysis{}, err
	}

	analysis, err := parseAnalysis(reply)
	if err != nil {
		return models.Analysis{}, err
	}

	c.logger.Debug("analysis generated",
		zap.String("issue", analysis.Issue),
		zap.Float64("confidence", analysis.ConfidenceScore),
		zap.Int("steps", len(analysis.RecommendedSteps)),
	)
	return analysis, nil
}
