package main

import (
	"strings"
	"testing"
)

func TestRootCommand(t *testing.T) {
	if rootCmd == nil {
		t.Fatal("rootCmd is nil")
	}

	if rootCmd.Use != "dicta" {
		t.Errorf("Unexpected Use: %s", rootCmd.Use)
	}
}

func TestRootSubcommandsRegistered(t *testing.T) {
	subs := map[string]bool{}
	for _, sub := range rootCmd.Commands() {
		subs[strings.Fields(sub.Use)[0]] = true
	}

	for _, want := range []string{"record", "process", "meeting", "search", "worker", "db", "auth"} {
		if !subs[want] {
			t.Errorf("subcommand %q not registered", want)
		}
	}
}
