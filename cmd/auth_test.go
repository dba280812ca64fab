// Package cmd provides CLI commands for the dicta tool.
package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/otherjamesbrown/dicta-cli/pkg/credentials"
)

func TestNewAuthCommand(t *testing.T) {
	cmd := NewAuthCommand(&AuthCommandDeps{Store: credentials.NewStore(), Output: &bytes.Buffer{}})
	if cmd == nil {
		t.Fatal("NewAuthCommand returned nil")
	}
	if cmd.Use != "auth" {
		t.Errorf("expected Use to be 'auth', got %q", cmd.Use)
	}

	subs := map[string]bool{}
	for _, sub := range cmd.Commands() {
		subs[strings.Fields(sub.Use)[0]] = true
	}
	for _, want := range []string{"set-key", "status", "delete-key"} {
		if !subs[want] {
			t.Errorf("expected subcommand %q to exist", want)
		}
	}
}

func TestNewAuthCommand_WithNilDeps(t *testing.T) {
	if NewAuthCommand(nil) == nil {
		t.Fatal("NewAuthCommand with nil deps returned nil")
	}
}

func TestAuthSetKeyRejectsUnknownKey(t *testing.T) {
	prompted := false
	deps := &AuthCommandDeps{
		Store:  credentials.NewStore(),
		Output: &bytes.Buffer{},
		Prompt: func(label string) (string, error) {
			prompted = true
			return "secret", nil
		},
	}

	if err := runAuthSetKey(deps, "no-such-key"); err == nil {
		t.Fatal("expected error for unknown key name")
	}
	if prompted {
		t.Error("should not prompt for an unknown key")
	}
}

func TestAuthStatusListsAllKeys(t *testing.T) {
	var out bytes.Buffer
	deps := &AuthCommandDeps{Store: credentials.NewStore(), Output: &out}

	// Env-sourced keys show as configured without touching the keyring.
	t.Setenv(credentials.KeyOpenAI.EnvVar(), "sk-test")

	if err := runAuthStatus(deps); err != nil {
		t.Fatalf("runAuthStatus failed: %v", err)
	}

	got := out.String()
	for _, key := range credentials.AllKeys() {
		if !strings.Contains(got, string(key)) {
			t.Errorf("status output missing key %q:\n%s", key, got)
		}
	}
	if !strings.Contains(got, credentials.KeyOpenAI.EnvVar()) {
		t.Errorf("expected env-sourced key to be flagged:\n%s", got)
	}
}
