package summarize

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/dicta-cli/pkg/meetings"
)

var sampleSegments = []meetings.TranscriptSegment{
	{SpeakerLabel: meetings.SpeakerClient, Text: "I was rear-ended last month."},
	{SpeakerLabel: meetings.SpeakerLawyer, Text: "We should file within the limitation period."},
}

func TestParseExtraction(t *testing.T) {
	meetingID := uuid.New()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) // a Monday

	raw := []byte(`{
		"overview":{"summary":"Client seeks advice after a car accident.","participants":["client","lawyer"],"topics":["personal injury"]},
		"key_facts":[{"text":"Accident happened last month.","role":"CLIENT","certainty":"explicit"}],
		"legal_issues":[{"text":"Possible negligence claim.","role":"LAWYER","certainty":"unclear"}],
		"risks":[{"text":"","role":"LAWYER","certainty":"explicit"}],
		"tasks":[
			{"title":"Gather medical records","priority":"high","owner_role":"CLIENT","deadline_hint":"this week"},
			{"title":"Draft letter of claim","priority":"silly","owner_role":"JUDGE"}
		]
	}`)

	extraction, err := ParseExtraction(raw, meetingID, now)
	require.NoError(t, err)

	require.Equal(t, meetingID, extraction.Output.MeetingID)
	require.Equal(t, "Client seeks advice after a car accident.", extraction.Output.Overview.Summary)
	require.Len(t, extraction.Output.KeyFacts, 1)
	require.Equal(t, meetings.CertaintyExplicit, extraction.Output.KeyFacts[0].Certainty)
	require.Equal(t, meetings.CertaintyUnclear, extraction.Output.LegalIssues[0].Certainty)
	// Blank items are dropped, not persisted.
	require.Empty(t, extraction.Output.Risks)

	require.Len(t, extraction.Tasks, 2)
	first := extraction.Tasks[0]
	require.Equal(t, meetings.TaskPriorityHigh, first.Priority)
	require.Equal(t, meetings.SpeakerClient, first.OwnerRole)
	require.NotNil(t, first.Deadline)
	require.Equal(t, time.Friday, first.Deadline.Weekday())

	second := extraction.Tasks[1]
	require.Equal(t, meetings.TaskPriorityMedium, second.Priority)
	require.Equal(t, meetings.SpeakerUnknown, second.OwnerRole)
	require.Nil(t, second.Deadline)
}

func TestParseExtractionRejectsMissingSummary(t *testing.T) {
	_, err := ParseExtraction([]byte(`{"overview":{"summary":"  "}}`), uuid.New(), time.Now())
	require.Error(t, err)

	_, err = ParseExtraction([]byte(`garbage`), uuid.New(), time.Now())
	require.Error(t, err)
}

func TestFallbackExtraction(t *testing.T) {
	meetingID := uuid.New()
	extraction := FallbackExtraction(meetingID, sampleSegments)

	require.Equal(t, meetingID, extraction.Output.MeetingID)
	require.Equal(t, []string{"CLIENT", "LAWYER"}, extraction.Output.Overview.Participants)
	require.NotEmpty(t, extraction.Output.Overview.Summary)
	require.Empty(t, extraction.Tasks)
}

func TestLabeledTranscript(t *testing.T) {
	require.Equal(t,
		"CLIENT: I was rear-ended last month.\nLAWYER: We should file within the limitation period.\n",
		LabeledTranscript(sampleSegments))
}

func TestSuggestDeadline(t *testing.T) {
	monday := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	day := monday.Truncate(24 * time.Hour)

	tests := []struct {
		name string
		text string
		want *time.Time
	}{
		{"urgent is today", "URGENT: call the insurer", &day},
		{"today keyword", "send the form today", &day},
		{"tomorrow", "follow up tomorrow morning", ptr(day.AddDate(0, 0, 1))},
		{"within n days", "respond within 14 days", ptr(day.AddDate(0, 0, 14))},
		{"this week is friday", "book expert this week", ptr(day.AddDate(0, 0, 4))},
		{"next week", "review contract next week", ptr(day.AddDate(0, 0, 7))},
		{"no cue", "prepare the bundle", nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := SuggestDeadline(tc.text, monday)
			if tc.want == nil {
				require.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			require.True(t, got.Equal(*tc.want), "got %v want %v", got, tc.want)
		})
	}
}

func TestSuggestDeadlineOnFriday(t *testing.T) {
	friday := time.Date(2026, 3, 6, 9, 0, 0, 0, time.UTC)
	got := SuggestDeadline("finish this week", friday)
	require.NotNil(t, got)
	require.True(t, got.Equal(friday.Truncate(24*time.Hour)))
}

func ptr(t time.Time) *time.Time { return &t }
