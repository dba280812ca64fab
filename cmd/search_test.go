// Package cmd provides CLI commands for the dicta tool.
package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	dterrors "github.com/otherjamesbrown/dicta-cli/pkg/errors"
	"github.com/otherjamesbrown/dicta-cli/pkg/meetings"
)

func searchTestDeps(out *bytes.Buffer, matches []*meetings.Meeting) *SearchCommandDeps {
	byID := map[uuid.UUID]*meetings.Meeting{}
	var ids []uuid.UUID
	for _, m := range matches {
		byID[m.ID] = m
		ids = append(ids, m.ID)
	}
	return &SearchCommandDeps{
		Output: out,
		Connect: func(ctx context.Context) (searchBackend, func(), error) {
			return searchBackend{
				Query: func(ctx context.Context, query string, limit int) ([]uuid.UUID, error) {
					return ids, nil
				},
				Get: func(ctx context.Context, id uuid.UUID) (*meetings.Meeting, error) {
					m, ok := byID[id]
					if !ok {
						return nil, dterrors.ErrNotFound
					}
					return m, nil
				},
			}, func() {}, nil
		},
	}
}

func TestNewSearchCommand(t *testing.T) {
	cmd := NewSearchCommand(searchTestDeps(&bytes.Buffer{}, nil))
	if cmd == nil {
		t.Fatal("NewSearchCommand returned nil")
	}
	if cmd.Use != "search <query>" {
		t.Errorf("expected Use to be 'search <query>', got %q", cmd.Use)
	}
	for _, flag := range []string{"limit", "output"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("expected flag %q to exist", flag)
		}
	}
}

func TestNewSearchCommand_WithNilDeps(t *testing.T) {
	if NewSearchCommand(nil) == nil {
		t.Fatal("NewSearchCommand with nil deps returned nil")
	}
}

func TestSearchRendersMatches(t *testing.T) {
	m := sampleMeeting("Retainer discussion")
	var out bytes.Buffer
	deps := searchTestDeps(&out, []*meetings.Meeting{m})

	searchOutput = "text"
	searchLimit = 20
	if err := runSearch(context.Background(), deps, "retainer"); err != nil {
		t.Fatalf("runSearch failed: %v", err)
	}
	if !strings.Contains(out.String(), "Retainer discussion") {
		t.Errorf("output missing match: %q", out.String())
	}
}

func TestSearchNoMatches(t *testing.T) {
	var out bytes.Buffer
	deps := searchTestDeps(&out, nil)

	searchOutput = "text"
	if err := runSearch(context.Background(), deps, "nothing"); err != nil {
		t.Fatalf("runSearch failed: %v", err)
	}
	if !strings.Contains(out.String(), "No meetings matched") {
		t.Errorf("expected no-match message, got %q", out.String())
	}
}

func TestSearchSkipsDeletedMeetings(t *testing.T) {
	// The index knows an ID the repository no longer has.
	stale := uuid.New()
	var out bytes.Buffer
	deps := &SearchCommandDeps{
		Output: &out,
		Connect: func(ctx context.Context) (searchBackend, func(), error) {
			return searchBackend{
				Query: func(ctx context.Context, query string, limit int) ([]uuid.UUID, error) {
					return []uuid.UUID{stale}, nil
				},
				Get: func(ctx context.Context, id uuid.UUID) (*meetings.Meeting, error) {
					return nil, dterrors.ErrNotFound
				},
			}, func() {}, nil
		},
	}

	searchOutput = "text"
	if err := runSearch(context.Background(), deps, "anything"); err != nil {
		t.Fatalf("runSearch failed: %v", err)
	}
	if !strings.Contains(out.String(), "No meetings matched") {
		t.Errorf("stale index entry should be skipped, got %q", out.String())
	}
}
