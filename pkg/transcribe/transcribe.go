// Package transcribe converts archived recording audio into text. Two
// backends exist: a Whisper-style synchronous call and an async job API
// polled to completion. Diarization-capable backends return per-utterance
// speaker labels; the attribution stage only runs when they do not.
package transcribe

import (
	"context"
	"io"
	"strings"
)

// Utterance is one backend-provided slice of the transcript. Speaker is the
// backend's diarization label, empty when the backend cannot diarize.
type Utterance struct {
	Speaker    string
	Text       string
	StartMs    int64
	EndMs      int64
	Confidence float64
}

// Result is a complete transcription of one recording.
type Result struct {
	Text       string
	Utterances []Utterance
}

// Diarized reports whether the backend attributed speakers itself.
func (r *Result) Diarized() bool {
	for _, u := range r.Utterances {
		if u.Speaker != "" {
			return true
		}
	}
	return false
}

// Empty reports whether the transcription produced no usable text.
func (r *Result) Empty() bool {
	return strings.TrimSpace(r.Text) == ""
}

// Backend submits audio to an external speech-to-text service.
type Backend interface {
	Transcribe(ctx context.Context, wav io.Reader) (*Result, error)
}
