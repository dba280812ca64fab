package credentials

import (
	"testing"
)

func TestKeyEnvVar(t *testing.T) {
	tests := []struct {
		key  Key
		want string
	}{
		{KeySpeech, "DICTA_SPEECH_API_KEY"},
		{KeyOpenAI, "DICTA_OPENAI_API_KEY"},
		{KeyBackend, "DICTA_BACKEND_TOKEN"},
	}

	for _, tc := range tests {
		if got := tc.key.EnvVar(); got != tc.want {
			t.Errorf("EnvVar(%s) = %s, want %s", tc.key, got, tc.want)
		}
	}
}

func TestResolvePrefersEnvironment(t *testing.T) {
	t.Setenv(KeySpeech.EnvVar(), "env-value")

	store := NewStore()
	value, err := store.Resolve(KeySpeech)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if value != "env-value" {
		t.Errorf("Resolve() = %s, want env-value", value)
	}
}

func TestParseKey(t *testing.T) {
	for _, k := range AllKeys() {
		parsed, err := ParseKey(string(k))
		if err != nil {
			t.Fatalf("ParseKey(%s) error = %v", k, err)
		}
		if parsed != k {
			t.Errorf("ParseKey(%s) = %s", k, parsed)
		}
	}

	if _, err := ParseKey("nonsense"); err == nil {
		t.Error("ParseKey(nonsense) should fail")
	}
}

func TestSetRejectsEmptyValue(t *testing.T) {
	store := NewStore()
	if err := store.Set(KeyOpenAI, "   "); err == nil {
		t.Error("Set() should reject empty values")
	}
}

func TestStoreDescription(t *testing.T) {
	if NewStore().Description() == "" {
		t.Error("Description() should not be empty")
	}
}
