// Package cmd provides CLI commands for the dicta tool.
package cmd

import (
	"testing"
)

func TestNewWorkerCommand(t *testing.T) {
	cmd := NewWorkerCommand(&WorkerCommandDeps{})
	if cmd == nil {
		t.Fatal("NewWorkerCommand returned nil")
	}
	if cmd.Use != "worker" {
		t.Errorf("expected Use to be 'worker', got %q", cmd.Use)
	}
	for _, flag := range []string{"workers", "metrics-addr"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("expected flag %q to exist", flag)
		}
	}
}

func TestNewWorkerCommand_WithNilDeps(t *testing.T) {
	if NewWorkerCommand(nil) == nil {
		t.Fatal("NewWorkerCommand with nil deps returned nil")
	}
}
