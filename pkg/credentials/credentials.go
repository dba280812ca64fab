// Package credentials provides secure API-key storage for the dicta CLI.
// Keys live in the system keyring; an environment variable override exists
// for CI and headless use.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"syscall"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

// keyringService is the service name used in the system keyring.
const keyringService = "dicta-cli"

// Key identifies one stored credential.
type Key string

const (
	// KeySpeech authenticates against the streaming/batch speech service.
	KeySpeech Key = "speech-api-key"
	// KeyOpenAI authenticates the generative attribution/summarize calls.
	KeyOpenAI Key = "openai-api-key"
	// KeyBackend authenticates against the meeting backend.
	KeyBackend Key = "backend-token"
)

// AllKeys lists every credential the CLI manages.
func AllKeys() []Key {
	return []Key{KeySpeech, KeyOpenAI, KeyBackend}
}

// EnvVar returns the environment variable that overrides this key.
func (k Key) EnvVar() string {
	return "DICTA_" + strings.ToUpper(strings.ReplaceAll(string(k), "-", "_"))
}

// ErrNotSet indicates the credential is in neither the environment nor the
// keyring.
var ErrNotSet = errors.New("credential not set")

// ErrKeyringUnavailable indicates the system keyring is not available.
var ErrKeyringUnavailable = errors.New("system keyring unavailable")

// Store reads and writes credentials in the system keyring.
type Store struct{}

// NewStore creates a keyring-backed credential store.
func NewStore() *Store {
	return &Store{}
}

// Resolve returns the credential value, preferring the environment override
// over the keyring.
func (s *Store) Resolve(key Key) (string, error) {
	if v := os.Getenv(key.EnvVar()); v != "" {
		return v, nil
	}

	value, err := keyring.Get(keyringService, string(key))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("%s (set %s or run 'dicta auth set-key %s'): %w",
			key, key.EnvVar(), key, ErrNotSet)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return value, nil
}

// Set stores a credential in the keyring.
func (s *Store) Set(key Key, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("credential value is empty")
	}
	if err := keyring.Set(keyringService, string(key), value); err != nil {
		return fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return nil
}

// Delete removes a credential from the keyring. Missing entries are not an
// error.
func (s *Store) Delete(key Key) error {
	err := keyring.Delete(keyringService, string(key))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return nil
}

// Description names the platform keyring for user-facing output.
func (s *Store) Description() string {
	switch runtime.GOOS {
	case "darwin":
		return "macOS Keychain"
	case "windows":
		return "Windows Credential Manager"
	default:
		return "System Keyring (Secret Service)"
	}
}

// PromptSecret reads a secret from the terminal without echoing it.
func PromptSecret(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// ParseKey validates a user-supplied key name.
func ParseKey(s string) (Key, error) {
	for _, k := range AllKeys() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown credential %q (valid: %s)", s, keyNames())
}

func keyNames() string {
	names := make([]string, 0, len(AllKeys()))
	for _, k := range AllKeys() {
		names = append(names, string(k))
	}
	return strings.Join(names, ", ")
}
