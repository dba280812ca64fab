// Package cmd provides CLI commands for the dicta tool.
package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/otherjamesbrown/dicta-cli/pkg/streaming"
)

func TestNewRecordCommand(t *testing.T) {
	cmd := NewRecordCommand(&RecordCommandDeps{})
	if cmd == nil {
		t.Fatal("NewRecordCommand returned nil")
	}
	if cmd.Use != "record" {
		t.Errorf("expected Use to be 'record', got %q", cmd.Use)
	}
	for _, flag := range []string{"title", "speakers", "local"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("expected flag %q to exist", flag)
		}
	}
}

func TestNewRecordCommand_WithNilDeps(t *testing.T) {
	if NewRecordCommand(nil) == nil {
		t.Fatal("NewRecordCommand with nil deps returned nil")
	}
}

func TestLiveRendererFinalizedTurn(t *testing.T) {
	var out bytes.Buffer
	render := liveRenderer(&out)

	render(streaming.Update{PartialText: "hello th"})
	render(streaming.Update{Finalized: &streaming.Turn{Speaker: "Speaker", Text: "hello there", IsFinal: true}})

	got := out.String()
	if !strings.Contains(got, "hello th") {
		t.Errorf("partial not rendered: %q", got)
	}
	if !strings.Contains(got, "[Speaker] hello there") {
		t.Errorf("finalized turn not rendered: %q", got)
	}
}

// recordedEvents collects relay callbacks for inspection.
type recordedEvents struct {
	begins       int
	turns        []streaming.TurnMessage
	terminations int
	errs         []error
	closes       int
}

func (r *recordedEvents) OnSessionBegin(streaming.BeginMessage) { r.begins++ }
func (r *recordedEvents) OnTurn(msg streaming.TurnMessage)     { r.turns = append(r.turns, msg) }
func (r *recordedEvents) OnTermination(streaming.TerminationMessage) {
	r.terminations++
}
func (r *recordedEvents) OnError(err error) { r.errs = append(r.errs, err) }
func (r *recordedEvents) OnClose()          { r.closes++ }

func TestEventsRelayForwards(t *testing.T) {
	target := &recordedEvents{}
	relay := &eventsRelay{target: target}

	relay.OnSessionBegin(streaming.BeginMessage{})
	relay.OnTurn(streaming.TurnMessage{Transcript: "hi"})
	relay.OnTermination(streaming.TerminationMessage{})
	relay.OnClose()

	if target.begins != 1 || target.terminations != 1 || target.closes != 1 {
		t.Errorf("callbacks not forwarded: %+v", target)
	}
	if len(target.turns) != 1 || target.turns[0].Transcript != "hi" {
		t.Errorf("turn not forwarded: %+v", target.turns)
	}
}
