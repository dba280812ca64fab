// Package streaming implements the client side of the real-time
// speech-to-text socket protocol: a websocket session carrying raw binary
// PCM frames outbound and JSON session/turn/termination messages inbound,
// plus the turn assembler that folds those messages into a live transcript.
package streaming

import (
	"encoding/json"
	"fmt"
)

// Inbound message types.
const (
	MessageTypeBegin       = "Begin"
	MessageTypeTurn        = "Turn"
	MessageTypeTermination = "Termination"
)

// BeginMessage is sent by the service once the session is usable.
type BeginMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	ExpiresAt int64  `json:"expires_at"`
}

// Word carries per-word timing and confidence inside a turn.
type Word struct {
	Text       string  `json:"text"`
	Start      int64   `json:"start"`
	End        int64   `json:"end"`
	Confidence float64 `json:"confidence"`
}

// TurnMessage is one incremental transcription update. The transcript field
// always carries the full current text for the turn, not a delta.
type TurnMessage struct {
	Type                string  `json:"type"`
	TurnOrder           int     `json:"turn_order"`
	EndOfTurn           bool    `json:"end_of_turn"`
	Transcript          string  `json:"transcript"`
	EndOfTurnConfidence float64 `json:"end_of_turn_confidence"`
	Words               []Word  `json:"words"`
}

// TerminationMessage closes out a session with final duration accounting.
type TerminationMessage struct {
	Type                   string  `json:"type"`
	AudioDurationSeconds   float64 `json:"audio_duration_seconds"`
	SessionDurationSeconds float64 `json:"session_duration_seconds"`
}

// terminateControl is the single outbound control message ending a session.
type terminateControl struct {
	Type string `json:"type"`
}

// probe is used to sniff the message kind before full decoding.
type probe struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// InboundMessage wraps one decoded inbound message; exactly one field is set.
type InboundMessage struct {
	Begin       *BeginMessage
	Turn        *TurnMessage
	Termination *TerminationMessage
	Err         error
}

// DecodeInbound parses a raw inbound JSON payload into an InboundMessage.
// An explicit {error: ...} payload decodes into Err; unknown message types
// are an error so protocol drift fails loudly instead of silently.
func DecodeInbound(data []byte) (*InboundMessage, error) {
	var p probe
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse inbound message: %w", err)
	}

	if p.Error != "" {
		return &InboundMessage{Err: fmt.Errorf("session error: %s", p.Error)}, nil
	}

	switch p.Type {
	case MessageTypeBegin:
		var m BeginMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to parse Begin message: %w", err)
		}
		return &InboundMessage{Begin: &m}, nil
	case MessageTypeTurn:
		var m TurnMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to parse Turn message: %w", err)
		}
		return &InboundMessage{Turn: &m}, nil
	case MessageTypeTermination:
		var m TerminationMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to parse Termination message: %w", err)
		}
		return &InboundMessage{Termination: &m}, nil
	default:
		return nil, fmt.Errorf("unknown inbound message type %q", p.Type)
	}
}
