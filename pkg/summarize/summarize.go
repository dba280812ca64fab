// Package summarize turns a speaker-labeled transcript into the structured
// consultation record: an overview, attributed findings, and actionable
// tasks. Extraction is generative with a deterministic fallback, so the
// stage always yields something persistable.
package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/otherjamesbrown/dicta-cli/pkg/logging"
	"github.com/otherjamesbrown/dicta-cli/pkg/meetings"
)

// Extraction is the full output of the summarize stage.
type Extraction struct {
	Output meetings.AIOutput
	Tasks  []meetings.Task
}

// Summarizer produces the structured extraction for one meeting.
type Summarizer interface {
	Summarize(ctx context.Context, meetingID uuid.UUID, segments []meetings.TranscriptSegment) (*Extraction, error)
}

const systemPrompt = `You analyze legal consultation transcripts. The transcript is
speaker-labeled with roles LAWYER, CLIENT, OTHER, UNKNOWN.
Extract a structured record. Tag every item with the role it came from and a
certainty of "explicit" (stated outright) or "unclear" (inferred).
Respond with JSON only:
{"overview":{"summary":"one sentence","participants":["..."],"topics":["..."]},
 "key_facts":[{"text":"...","role":"CLIENT","certainty":"explicit"}],
 "legal_issues":[...],"decisions":[...],"risks":[...],
 "follow_ups":[...],"open_questions":[...],
 "tasks":[{"title":"...","priority":"high|medium|low","owner_role":"LAWYER","deadline_hint":"this week"}]}`

// extractionResponse is the model's JSON response shape.
type extractionResponse struct {
	Overview      meetings.Overview         `json:"overview"`
	KeyFacts      []meetings.AttributedItem `json:"key_facts"`
	LegalIssues   []meetings.AttributedItem `json:"legal_issues"`
	Decisions     []meetings.AttributedItem `json:"decisions"`
	Risks         []meetings.AttributedItem `json:"risks"`
	FollowUps     []meetings.AttributedItem `json:"follow_ups"`
	OpenQuestions []meetings.AttributedItem `json:"open_questions"`
	Tasks         []struct {
		Title        string `json:"title"`
		Priority     string `json:"priority"`
		OwnerRole    string `json:"owner_role"`
		DeadlineHint string `json:"deadline_hint"`
	} `json:"tasks"`
}

// LLMSummarizer extracts with a chat-completion call in JSON mode.
type LLMSummarizer struct {
	client *openai.Client
	model  string
	now    func() time.Time
	logger logging.Logger
}

// NewLLMSummarizer creates a summarizer. An empty model selects gpt-4o-mini.
func NewLLMSummarizer(client *openai.Client, model string, logger logging.Logger) *LLMSummarizer {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &LLMSummarizer{
		client: client,
		model:  model,
		now:    time.Now,
		logger: logger.With(logging.F("component", "summarize")),
	}
}

// Summarize runs the extraction call over the labeled transcript.
func (s *LLMSummarizer) Summarize(ctx context.Context, meetingID uuid.UUID, segments []meetings.TranscriptSegment) (*Extraction, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: LabeledTranscript(segments)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("summarize call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("summarize call returned no choices")
	}

	extraction, err := ParseExtraction([]byte(resp.Choices[0].Message.Content), meetingID, s.now())
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Extraction complete",
		logging.F("key_facts", len(extraction.Output.KeyFacts)),
		logging.F("tasks", len(extraction.Tasks)))
	return extraction, nil
}

// LabeledTranscript renders segments as "ROLE: text" lines for the prompt.
func LabeledTranscript(segments []meetings.TranscriptSegment) string {
	var b strings.Builder
	for _, seg := range segments {
		b.WriteString(string(seg.SpeakerLabel))
		b.WriteString(": ")
		b.WriteString(seg.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// ParseExtraction decodes an extraction response, normalizing roles and
// priorities and resolving each task's deadline hint against now.
func ParseExtraction(raw []byte, meetingID uuid.UUID, now time.Time) (*Extraction, error) {
	var r extractionResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}
	if strings.TrimSpace(r.Overview.Summary) == "" {
		return nil, fmt.Errorf("extraction response has no overview summary")
	}

	extraction := &Extraction{
		Output: meetings.AIOutput{
			MeetingID:     meetingID,
			Overview:      r.Overview,
			KeyFacts:      normalizeItems(r.KeyFacts),
			LegalIssues:   normalizeItems(r.LegalIssues),
			Decisions:     normalizeItems(r.Decisions),
			Risks:         normalizeItems(r.Risks),
			FollowUps:     normalizeItems(r.FollowUps),
			OpenQuestions: normalizeItems(r.OpenQuestions),
		},
	}

	for _, task := range r.Tasks {
		title := strings.TrimSpace(task.Title)
		if title == "" {
			continue
		}
		extraction.Tasks = append(extraction.Tasks, meetings.Task{
			MeetingID: meetingID,
			Title:     title,
			Priority:  parsePriority(task.Priority),
			OwnerRole: meetings.ParseSpeakerLabel(task.OwnerRole),
			Deadline:  SuggestDeadline(task.Title+" "+task.DeadlineHint, now),
		})
	}
	return extraction, nil
}

func normalizeItems(items []meetings.AttributedItem) []meetings.AttributedItem {
	out := make([]meetings.AttributedItem, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.Text) == "" {
			continue
		}
		item.Role = meetings.ParseSpeakerLabel(string(item.Role))
		if item.Certainty != meetings.CertaintyExplicit {
			item.Certainty = meetings.CertaintyUnclear
		}
		out = append(out, item)
	}
	return out
}

func parsePriority(s string) meetings.TaskPriority {
	switch meetings.TaskPriority(strings.ToLower(s)) {
	case meetings.TaskPriorityHigh, meetings.TaskPriorityMedium, meetings.TaskPriorityLow:
		return meetings.TaskPriority(strings.ToLower(s))
	default:
		return meetings.TaskPriorityMedium
	}
}

// FallbackExtraction is the deterministic degradation when the generative
// call fails: a minimal overview derived from the speaker labels actually
// observed, and no tasks.
func FallbackExtraction(meetingID uuid.UUID, segments []meetings.TranscriptSegment) *Extraction {
	seen := make(map[meetings.SpeakerLabel]bool)
	var participants []string
	for _, seg := range segments {
		if !seen[seg.SpeakerLabel] {
			seen[seg.SpeakerLabel] = true
			participants = append(participants, string(seg.SpeakerLabel))
		}
	}

	summary := fmt.Sprintf("Consultation with %d identified speaker role(s); automatic analysis was unavailable.", len(participants))
	return &Extraction{
		Output: meetings.AIOutput{
			MeetingID: meetingID,
			Overview: meetings.Overview{
				Summary:      summary,
				Participants: participants,
				Topics:       []string{},
			},
		},
	}
}
