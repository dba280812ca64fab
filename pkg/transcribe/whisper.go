package transcribe

import (
	"context"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/otherjamesbrown/dicta-cli/pkg/logging"
)

// WhisperBackend transcribes with the OpenAI audio transcription API. It is
// synchronous and does not diarize, so its utterances carry no speaker.
type WhisperBackend struct {
	client *openai.Client
	model  string
	logger logging.Logger
}

// NewWhisperBackend creates a Whisper backend. An empty model selects
// whisper-1.
func NewWhisperBackend(client *openai.Client, model string, logger logging.Logger) *WhisperBackend {
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperBackend{
		client: client,
		model:  model,
		logger: logger.With(logging.F("component", "whisper_backend")),
	}
}

// Transcribe submits the WAV stream and maps the verbose response segments
// to utterances with millisecond timings.
func (b *WhisperBackend) Transcribe(ctx context.Context, wav io.Reader) (*Result, error) {
	resp, err := b.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    b.model,
		Reader:   wav,
		FilePath: "recording.wav",
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}

	result := &Result{Text: resp.Text}
	for _, seg := range resp.Segments {
		result.Utterances = append(result.Utterances, Utterance{
			Text:    seg.Text,
			StartMs: int64(seg.Start * 1000),
			EndMs:   int64(seg.End * 1000),
		})
	}

	b.logger.Debug("Transcription complete",
		logging.F("segments", len(resp.Segments)),
		logging.F("chars", len(resp.Text)))
	return result, nil
}
