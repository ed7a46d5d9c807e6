package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/khanglvm/smartfix/internal/models"
)

const imageSystemPrompt = `You read screenshots and photos of devices for a troubleshooting assistant.
Reply with ONLY a JSON object:
- extracted_text: all readable text, especially error messages
- error_codes: list of error codes visible in the image`

// Transcribe converts recorded speech to text.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if len(audio) == 0 {
		return "", errors.New("empty audio payload")
	}
	if filename == "" {
		filename = "audio.wav"
	}

	var text string
	err := c.withRetry(ctx, "transcription", func() error {
		resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
			Model:    c.transcriptionModel,
			FilePath: filename,
			Reader:   bytes.NewReader(audio),
		})
		if err != nil {
			return err
		}
		text = strings.TrimSpace(resp.Text)
		return nil
	})
	return text, err
}

// ReadImage extracts visible text and error codes from an image.
func (c *Client) ReadImage(ctx context.Context, image []byte, prompt string) (models.ImageExtraction, error) {
	if len(image) == 0 {
		return models.ImageExtraction{}, errors.New("empty image payload")
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = "Identify any technical issues or error messages visible in this image."
	}

	dataURL := "data:" + http.DetectContentType(image) + ";base64," + base64.StdEncoding.EncodeToString(image)

	reply, err := c.complete(ctx, openai.ChatCompletionRequest{
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: imageSystemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return models.ImageExtraction{}, err
	}
	return parseImageExtraction(reply)
}
