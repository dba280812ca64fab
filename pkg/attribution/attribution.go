// Package attribution assigns speaker roles to a raw transcript. The
// classifier is content-based: a generative model segments the text by
// inferred speaker change and labels each segment LAWYER, CLIENT, OTHER or
// UNKNOWN from lexical cues. There are no rules to configure; the only
// deterministic path is the whole-transcript UNKNOWN fallback.
package attribution

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/otherjamesbrown/dicta-cli/pkg/logging"
	"github.com/otherjamesbrown/dicta-cli/pkg/meetings"
	"github.com/otherjamesbrown/dicta-cli/pkg/transcribe"
)

// Attributor classifies a transcript into speaker-attributed segments.
type Attributor interface {
	Attribute(ctx context.Context, transcript string, durationSeconds, expectedSpeakers int) ([]meetings.TranscriptSegment, error)
}

const systemPrompt = `You segment legal consultation transcripts by speaker and assign roles.
Rules:
- Split the transcript wherever the speaker plausibly changes.
- Assign each segment one role: LAWYER (legal terminology, advice-giving),
  CLIENT (first-person problem description, question-asking), OTHER, or UNKNOWN.
- Express each segment's position as percentages through the transcript.
Respond with JSON only:
{"segments":[{"role":"LAWYER","text":"...","start_percent":0,"end_percent":12.5,"confidence":0.8}]}`

// classification is the model's JSON response shape.
type classification struct {
	Segments []struct {
		Role         string  `json:"role"`
		Text         string  `json:"text"`
		StartPercent float64 `json:"start_percent"`
		EndPercent   float64 `json:"end_percent"`
		Confidence   float64 `json:"confidence"`
	} `json:"segments"`
}

// LLMAttributor classifies with a chat-completion call in JSON mode.
type LLMAttributor struct {
	client *openai.Client
	model  string
	logger logging.Logger
}

// NewLLMAttributor creates a classifier. An empty model selects gpt-4o-mini.
func NewLLMAttributor(client *openai.Client, model string, logger logging.Logger) *LLMAttributor {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &LLMAttributor{
		client: client,
		model:  model,
		logger: logger.With(logging.F("component", "attribution")),
	}
}

// Attribute runs the classification call and converts percent positions to
// millisecond timings against the known recording duration.
func (a *LLMAttributor) Attribute(ctx context.Context, transcript string, durationSeconds, expectedSpeakers int) ([]meetings.TranscriptSegment, error) {
	user := fmt.Sprintf("Expected speakers: %d\nTranscript:\n%s", expectedSpeakers, transcript)

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("attribution call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("attribution call returned no choices")
	}

	segments, err := ParseClassification([]byte(resp.Choices[0].Message.Content), durationSeconds)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("Attribution complete", logging.F("segments", len(segments)))
	return segments, nil
}

// ParseClassification decodes a classification response and converts each
// segment's percent positions to milliseconds using the recording duration.
func ParseClassification(raw []byte, durationSeconds int) ([]meetings.TranscriptSegment, error) {
	var c classification
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("failed to parse classification response: %w", err)
	}
	if len(c.Segments) == 0 {
		return nil, fmt.Errorf("classification response contained no segments")
	}

	totalMs := int64(durationSeconds) * 1000
	segments := make([]meetings.TranscriptSegment, 0, len(c.Segments))
	for _, s := range c.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		segments = append(segments, meetings.TranscriptSegment{
			SpeakerLabel: meetings.ParseSpeakerLabel(s.Role),
			Text:         text,
			StartMs:      PercentToMs(s.StartPercent, totalMs),
			EndMs:        PercentToMs(s.EndPercent, totalMs),
			Confidence:   s.Confidence,
		})
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("classification response contained only empty segments")
	}
	return segments, nil
}

// PercentToMs converts a percent-through-transcript position to
// milliseconds, clamped to the recording bounds.
func PercentToMs(percent float64, totalMs int64) int64 {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return int64(percent / 100 * float64(totalMs))
}

// FallbackSegments is the deterministic degradation: the whole transcript as
// one UNKNOWN segment spanning the full duration.
func FallbackSegments(transcript string, durationSeconds int) []meetings.TranscriptSegment {
	return []meetings.TranscriptSegment{{
		SpeakerLabel: meetings.SpeakerUnknown,
		Text:         strings.TrimSpace(transcript),
		StartMs:      0,
		EndMs:        int64(durationSeconds) * 1000,
		Confidence:   0,
	}}
}

// MapDiarized converts backend-diarized utterances into segments. The
// backend's opaque speaker labels become speaker names; roles stay UNKNOWN
// because diarization identifies voices, not roles.
func MapDiarized(meetingID uuid.UUID, utterances []transcribe.Utterance) []meetings.TranscriptSegment {
	segments := make([]meetings.TranscriptSegment, 0, len(utterances))
	for _, u := range utterances {
		name := "Speaker " + u.Speaker
		segments = append(segments, meetings.TranscriptSegment{
			MeetingID:    meetingID,
			SpeakerLabel: meetings.SpeakerUnknown,
			SpeakerName:  &name,
			Text:         strings.TrimSpace(u.Text),
			StartMs:      u.StartMs,
			EndMs:        u.EndMs,
			Confidence:   u.Confidence,
		})
	}
	return segments
}
