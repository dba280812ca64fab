package streaming

import (
	"strings"
)

// MergeWindowMs is the maximum gap between a previous turn's end and a new
// turn's start for the two to be merged into one utterance. The streaming
// protocol provides no diarization, so merging adjacent same-speaker turns
// bounds perceived speaker fragmentation.
const MergeWindowMs = 2000

// PlaceholderSpeaker labels all live turns. True speaker attribution happens
// in the batch pipeline; the live path shows a single best-effort label.
const PlaceholderSpeaker = "Speaker"

// Turn is one display-ready utterance in the live transcript.
type Turn struct {
	ID         int
	Speaker    string
	Text       string
	StartMs    int64
	EndMs      int64
	Confidence float64
	IsFinal    bool
}

// Update describes what changed after one inbound turn message.
type Update struct {
	// PartialText is the current in-progress utterance, empty after a
	// turn finalizes.
	PartialText string

	// Finalized is the turn that was appended or extended, nil for
	// partial-only updates.
	Finalized *Turn

	// Merged is true when the message extended the previous turn instead
	// of appending a new one.
	Merged bool
}

// Assembler folds inbound turn messages into a list of finalized utterances
// plus one in-progress partial. It is not safe for concurrent use; drive it
// from the single socket read loop.
type Assembler struct {
	partial string
	turns   []Turn
	nextID  int
}

// NewAssembler creates an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{nextID: 1}
}

// OnTurn processes one turn message.
//
// While end_of_turn is false the message's transcript replaces the current
// partial text outright; each message carries the full current transcript
// for the turn, never a delta. On end_of_turn with non-empty trimmed text a
// final turn is constructed from the first/last word timings and either
// merged into the previous turn (same speaker, gap under MergeWindowMs) or
// appended. The partial is cleared afterward either way.
func (a *Assembler) OnTurn(msg TurnMessage) Update {
	if !msg.EndOfTurn {
		a.partial = msg.Transcript
		return Update{PartialText: a.partial}
	}

	text := strings.TrimSpace(msg.Transcript)
	a.partial = ""
	if text == "" {
		return Update{}
	}

	turn := Turn{
		ID:         a.nextID,
		Speaker:    PlaceholderSpeaker,
		Text:       text,
		Confidence: wordConfidence(msg.Words),
		IsFinal:    true,
	}
	if len(msg.Words) > 0 {
		turn.StartMs = msg.Words[0].Start
		turn.EndMs = msg.Words[len(msg.Words)-1].End
	}

	if prev := a.last(); prev != nil &&
		prev.Speaker == turn.Speaker &&
		turn.StartMs-prev.EndMs < MergeWindowMs {
		prev.Text = prev.Text + " " + turn.Text
		prev.EndMs = turn.EndMs
		prev.Confidence = (prev.Confidence + turn.Confidence) / 2
		merged := *prev
		return Update{Finalized: &merged, Merged: true}
	}

	a.nextID++
	a.turns = append(a.turns, turn)
	appended := turn
	return Update{Finalized: &appended}
}

// Partial returns the current in-progress utterance text.
func (a *Assembler) Partial() string {
	return a.partial
}

// Turns returns a copy of the finalized utterances in order.
func (a *Assembler) Turns() []Turn {
	out := make([]Turn, len(a.turns))
	copy(out, a.turns)
	return out
}

// Reset clears all assembled state for a new session.
func (a *Assembler) Reset() {
	a.partial = ""
	a.turns = nil
	a.nextID = 1
}

func (a *Assembler) last() *Turn {
	if len(a.turns) == 0 {
		return nil
	}
	return &a.turns[len(a.turns)-1]
}

func wordConfidence(words []Word) float64 {
	if len(words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range words {
		sum += w.Confidence
	}
	return sum / float64(len(words))
}
