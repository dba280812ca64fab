package meetings

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanTransitionForwardOnly(t *testing.T) {
	order := []Status{
		StatusRecording, StatusUploading, StatusQueued,
		StatusConverting, StatusTranscribing, StatusReady,
	}

	// Every forward move, including skips, is legal.
	for i, from := range order {
		for j, to := range order {
			got := CanTransition(from, to)
			if j > i {
				require.True(t, got, "%s -> %s should be allowed", from, to)
			} else {
				require.False(t, got, "%s -> %s should be rejected", from, to)
			}
		}
	}
}

func TestCanTransitionFailedEdges(t *testing.T) {
	// Failed is reachable from every other status.
	for _, from := range AllStatuses() {
		if from == StatusFailed {
			require.False(t, CanTransition(from, StatusFailed))
			continue
		}
		require.True(t, CanTransition(from, StatusFailed), "%s -> failed", from)
	}

	// The only way out of failed is the retry edge back to queued.
	for _, to := range AllStatuses() {
		want := to == StatusQueued
		require.Equal(t, want, CanTransition(StatusFailed, to), "failed -> %s", to)
	}
}

func TestCanTransitionUnknownStatus(t *testing.T) {
	require.False(t, CanTransition(Status("bogus"), StatusReady))
	require.False(t, CanTransition(StatusQueued, Status("bogus")))
}

func TestIsTerminal(t *testing.T) {
	require.True(t, IsTerminal(StatusReady))
	require.True(t, IsTerminal(StatusFailed))
	require.False(t, IsTerminal(StatusQueued))
	require.False(t, IsTerminal(StatusRecording))
}

func TestParseSpeakerLabel(t *testing.T) {
	require.Equal(t, SpeakerLawyer, ParseSpeakerLabel("LAWYER"))
	require.Equal(t, SpeakerClient, ParseSpeakerLabel("CLIENT"))
	require.Equal(t, SpeakerOther, ParseSpeakerLabel("OTHER"))
	require.Equal(t, SpeakerUnknown, ParseSpeakerLabel("narrator"))
	require.Equal(t, SpeakerUnknown, ParseSpeakerLabel(""))
}
