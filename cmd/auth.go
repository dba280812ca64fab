// Package cmd provides CLI commands for the dicta tool.
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/dicta-cli/pkg/credentials"
)

// AuthCommandDeps holds the dependencies for the auth commands.
type AuthCommandDeps struct {
	// Store is the credential store, injectable for tests.
	Store *credentials.Store

	// Prompt reads a secret without echoing, injectable for tests.
	Prompt func(label string) (string, error)

	// Output receives command results, normally stdout.
	Output io.Writer
}

// DefaultAuthDeps returns the default dependencies for production use.
func DefaultAuthDeps() *AuthCommandDeps {
	return &AuthCommandDeps{
		Store:  credentials.NewStore(),
		Prompt: credentials.PromptSecret,
		Output: os.Stdout,
	}
}

// NewAuthCommand creates the auth command with key management subcommands.
func NewAuthCommand(deps *AuthCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultAuthDeps()
	}

	keyNames := make([]string, 0, len(credentials.AllKeys()))
	for _, k := range credentials.AllKeys() {
		keyNames = append(keyNames, string(k))
	}

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage stored API keys",
		Long: fmt.Sprintf(`Manage the API keys dicta stores in the operating system keyring.

Known keys: %s

Each key can also be supplied via its environment variable (for example
DICTA_SPEECH_API_KEY), which takes precedence over the keyring.

Subcommands:
  set-key      Store a key (prompted, never echoed)
  status       Show which keys are configured
  delete-key   Remove a stored key`, strings.Join(keyNames, ", ")),
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set-key <name>",
		Short: "Store an API key in the keyring",
		Long: `Store an API key in the operating system keyring. The value is read
interactively and never echoed.

Examples:
  dicta auth set-key speech-api-key
  dicta auth set-key openai-api-key`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthSetKey(deps, args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show which keys are configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthStatus(deps)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete-key <name>",
		Short: "Remove a stored API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthDeleteKey(deps, args[0])
		},
	})

	return cmd
}

func runAuthSetKey(deps *AuthCommandDeps, name string) error {
	key, err := credentials.ParseKey(name)
	if err != nil {
		return err
	}

	value, err := deps.Prompt(fmt.Sprintf("Enter value for %s", key))
	if err != nil {
		return fmt.Errorf("reading secret: %w", err)
	}

	if err := deps.Store.Set(key, value); err != nil {
		return fmt.Errorf("storing %s: %w", key, err)
	}

	fmt.Fprintf(deps.Output, "Stored %s in %s\n", key, deps.Store.Description())
	return nil
}

func runAuthStatus(deps *AuthCommandDeps) error {
	for _, key := range credentials.AllKeys() {
		state := "not set"
		if _, err := deps.Store.Resolve(key); err == nil {
			state = "configured"
			if os.Getenv(key.EnvVar()) != "" {
				state = "configured (from " + key.EnvVar() + ")"
			}
		}
		fmt.Fprintf(deps.Output, "%-16s %s\n", key, state)
	}
	return nil
}

func runAuthDeleteKey(deps *AuthCommandDeps, name string) error {
	key, err := credentials.ParseKey(name)
	if err != nil {
		return err
	}

	if err := deps.Store.Delete(key); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}

	fmt.Fprintf(deps.Output, "Deleted %s\n", key)
	return nil
}
