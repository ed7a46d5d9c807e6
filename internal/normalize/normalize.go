// Package normalize turns voice, image, log and text input into the plain
// problem text the engine reasons about.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/khanglvm/smartfix/internal/models"
)

// Transcriber converts recorded speech to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// ImageReader extracts visible text and error codes from an image.
type ImageReader interface {
	ReadImage(ctx context.Context, image []byte, prompt string) (models.ImageExtraction, error)
}

var (
	errNoTranscriber = errors.New("voice input is not supported: no transcriber configured")
	errNoImageReader = errors.New("image input is not supported: no image reader configured")
)

// Normalizer applies the per-modality conversion rules.
type Normalizer struct {
	transcriber Transcriber
	imageReader ImageReader
	logger      *zap.Logger
}

// New creates a Normalizer. Either collaborator may be nil, in which case
// the corresponding modality fails and callers fall back to the raw text.
func New(transcriber Transcriber, imageReader ImageReader, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{
		transcriber: transcriber,
		imageReader: imageReader,
		logger:      logger,
	}
}

// Normalize returns the problem text for in.
func (n *Normalizer) Normalize(ctx context.Context, in models.Input) (string, error) {
	switch in.Type {
	case models.InputLog:
		return strings.TrimSpace(in.Text + " " + in.LogContent), nil
	case models.InputVoice:
		return n.voice(ctx, in)
	case models.InputImage:
		return n.image(ctx, in)
	default:
		return strings.TrimSpace(in.Text), nil
	}
}

func (n *Normalizer) voice(ctx context.Context, in models.Input) (string, error) {
	if n.transcriber == nil {
		return "", errNoTranscriber
	}
	transcript, err := n.transcriber.Transcribe(ctx, in.Payload, in.Filename)
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		n.logger.Debug("empty transcript, using raw text")
		return strings.TrimSpace(in.Text), nil
	}
	return transcript, nil
}

func (n *Normalizer) image(ctx context.Context, in models.Input) (string, error) {
	if n.imageReader == nil {
		return "", errNoImageReader
	}
	extraction, err := n.imageReader.ReadImage(ctx, in.Payload, in.Text)
	if err != nil {
		return "", fmt.Errorf("image reading failed: %w", err)
	}

	text := strings.TrimSpace(in.Text + " " + extraction.Text)
	if len(extraction.ErrorCodes) > 0 {
		text += " Error codes detected: " + strings.Join(extraction.ErrorCodes, ", ")
	}
	return text, nil
}
