package streaming

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func finalTurn(transcript string, startMs, endMs int64, confidence float64) TurnMessage {
	return TurnMessage{
		Type:       MessageTypeTurn,
		EndOfTurn:  true,
		Transcript: transcript,
		Words: []Word{
			{Text: transcript, Start: startMs, End: endMs, Confidence: confidence},
		},
	}
}

func TestPartialReplacesNotAccumulates(t *testing.T) {
	a := NewAssembler()

	u := a.OnTurn(TurnMessage{Type: MessageTypeTurn, Transcript: "The"})
	require.Equal(t, "The", u.PartialText)

	u = a.OnTurn(TurnMessage{Type: MessageTypeTurn, Transcript: "The client agreed"})
	require.Equal(t, "The client agreed", u.PartialText)
	require.Equal(t, "The client agreed", a.Partial())
	require.Empty(t, a.Turns())
}

func TestFinalTurnClearsPartial(t *testing.T) {
	a := NewAssembler()

	a.OnTurn(TurnMessage{Type: MessageTypeTurn, Transcript: "The client agreed to the"})
	u := a.OnTurn(finalTurn("The client agreed to the settlement.", 0, 2400, 0.95))

	require.NotNil(t, u.Finalized)
	require.False(t, u.Merged)
	require.Empty(t, a.Partial())

	turns := a.Turns()
	require.Len(t, turns, 1)
	require.Equal(t, "The client agreed to the settlement.", turns[0].Text)
	require.Equal(t, int64(0), turns[0].StartMs)
	require.Equal(t, int64(2400), turns[0].EndMs)
	require.True(t, turns[0].IsFinal)
}

func TestMergeSameSpeakerWithinWindow(t *testing.T) {
	a := NewAssembler()

	a.OnTurn(finalTurn("We should file", 0, 1000, 0.8))
	u := a.OnTurn(finalTurn("by Friday.", 2500, 3200, 0.6))

	require.True(t, u.Merged, "gap of 1500ms must merge")
	turns := a.Turns()
	require.Len(t, turns, 1)
	require.Equal(t, "We should file by Friday.", turns[0].Text)
	require.Equal(t, int64(0), turns[0].StartMs)
	require.Equal(t, int64(3200), turns[0].EndMs)
	require.InDelta(t, 0.7, turns[0].Confidence, 1e-9, "confidence must be the arithmetic mean")
}

func TestMergeBoundaryExactGapDoesNotMerge(t *testing.T) {
	a := NewAssembler()

	a.OnTurn(finalTurn("First thought.", 0, 1000, 0.9))
	u := a.OnTurn(finalTurn("Second thought.", 3000, 4000, 0.9))

	require.False(t, u.Merged, "gap of exactly 2000ms must not merge")
	require.Len(t, a.Turns(), 2)
}

func TestEmptyFinalTurnIsDropped(t *testing.T) {
	a := NewAssembler()

	a.OnTurn(TurnMessage{Type: MessageTypeTurn, Transcript: "trailing silence"})
	u := a.OnTurn(TurnMessage{Type: MessageTypeTurn, EndOfTurn: true, Transcript: "   "})

	require.Nil(t, u.Finalized)
	require.Empty(t, a.Partial())
	require.Empty(t, a.Turns())
}

func TestSoloRecordingSingleTurnScenario(t *testing.T) {
	a := NewAssembler()

	u := a.OnTurn(TurnMessage{
		Type:       MessageTypeTurn,
		EndOfTurn:  true,
		Transcript: "The client agreed to the settlement.",
		Words: []Word{
			{Text: "The", Start: 100, End: 250, Confidence: 0.97},
			{Text: "client", Start: 260, End: 600, Confidence: 0.95},
			{Text: "agreed", Start: 610, End: 980, Confidence: 0.96},
			{Text: "to", Start: 990, End: 1080, Confidence: 0.99},
			{Text: "the", Start: 1090, End: 1180, Confidence: 0.98},
			{Text: "settlement.", Start: 1190, End: 1900, Confidence: 0.93},
		},
	})

	require.NotNil(t, u.Finalized)
	require.Empty(t, a.Partial())

	turns := a.Turns()
	require.Len(t, turns, 1)
	require.Equal(t, int64(100), turns[0].StartMs)
	require.Equal(t, int64(1900), turns[0].EndMs)
	require.Equal(t, PlaceholderSpeaker, turns[0].Speaker)
}

func TestTurnsReturnsCopy(t *testing.T) {
	a := NewAssembler()
	a.OnTurn(finalTurn("Immutable.", 0, 500, 1.0))

	turns := a.Turns()
	turns[0].Text = "mutated"
	require.Equal(t, "Immutable.", a.Turns()[0].Text)
}

func TestReset(t *testing.T) {
	a := NewAssembler()
	a.OnTurn(finalTurn("Old session.", 0, 500, 1.0))
	a.OnTurn(TurnMessage{Type: MessageTypeTurn, Transcript: "dangling partial"})

	a.Reset()
	require.Empty(t, a.Partial())
	require.Empty(t, a.Turns())
}
