package search

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/dicta-cli/pkg/meetings"
)

func TestBuildSearchText(t *testing.T) {
	name := "Speaker A"
	output := &meetings.AIOutput{
		Overview: meetings.Overview{
			Summary:      "Client seeks advice on a tenancy dispute.",
			Participants: []string{"CLIENT", "LAWYER"},
			Topics:       []string{"tenancy", ""},
		},
	}
	segments := []meetings.TranscriptSegment{
		{SpeakerName: &name, Text: "My landlord kept the deposit."},
		{Text: "  "},
		{Text: "You can challenge that through the deposit scheme."},
	}

	text := BuildSearchText(output, segments)
	require.Equal(t,
		"Client seeks advice on a tenancy dispute. tenancy CLIENT LAWYER Speaker A "+
			"My landlord kept the deposit. You can challenge that through the deposit scheme.",
		text)
}

func TestBuildSearchTextWithoutOutput(t *testing.T) {
	segments := []meetings.TranscriptSegment{{Text: "hello"}}
	require.Equal(t, "hello", BuildSearchText(nil, segments))
	require.Equal(t, "", BuildSearchText(nil, nil))
}
