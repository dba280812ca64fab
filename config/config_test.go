// Package config provides CLI configuration management for the dicta
// command-line tool.
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestDefaultConfig verifies default configuration values.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if cfg.Streaming.Endpoint != DefaultStreamingEndpoint {
		t.Errorf("Streaming.Endpoint = %v, want %v", cfg.Streaming.Endpoint, DefaultStreamingEndpoint)
	}
	if cfg.Streaming.TokenEndpoint != DefaultTokenEndpoint {
		t.Errorf("Streaming.TokenEndpoint = %v, want %v", cfg.Streaming.TokenEndpoint, DefaultTokenEndpoint)
	}
	if cfg.Transcribe.Backend != BackendWhisper {
		t.Errorf("Transcribe.Backend = %v, want %v", cfg.Transcribe.Backend, BackendWhisper)
	}
	if cfg.Redis.Addr != DefaultRedisAddr {
		t.Errorf("Redis.Addr = %v, want %v", cfg.Redis.Addr, DefaultRedisAddr)
	}
	if cfg.Worker.Count != 2 {
		t.Errorf("Worker.Count = %v, want 2", cfg.Worker.Count)
	}
	if cfg.ExpectedSpeakers != 2 {
		t.Errorf("ExpectedSpeakers = %v, want 2", cfg.ExpectedSpeakers)
	}
	if cfg.UserID != "" {
		t.Errorf("UserID = %v, want empty", cfg.UserID)
	}
	if cfg.Debug {
		t.Error("Debug should be false by default")
	}
}

// TestLoadConfigFromFile verifies YAML loading with defaults preserved for
// unset fields.
func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DICTA_CONFIG_DIR", dir)

	content := `streaming:
  endpoint: wss://stt.example.com/v3/ws
transcribe:
  backend: polling
  polling_base_url: https://stt.example.com/v2
  poll_interval: 5s
redis:
  addr: redis.example.com:6380
worker:
  count: 4
  poll_interval: 250ms
user_id: 8e5b7c1a-2f3d-4a5b-9c6d-7e8f9a0b1c2d
expected_speakers: 3
debug: true
`
	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(content), 0600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Streaming.Endpoint != "wss://stt.example.com/v3/ws" {
		t.Errorf("Streaming.Endpoint = %v", cfg.Streaming.Endpoint)
	}
	// Unset in the file, so the default survives.
	if cfg.Streaming.TokenEndpoint != DefaultTokenEndpoint {
		t.Errorf("Streaming.TokenEndpoint = %v, want default", cfg.Streaming.TokenEndpoint)
	}
	if cfg.Transcribe.Backend != BackendPolling {
		t.Errorf("Transcribe.Backend = %v, want polling", cfg.Transcribe.Backend)
	}
	if cfg.Transcribe.PollInterval != 5*time.Second {
		t.Errorf("Transcribe.PollInterval = %v, want 5s", cfg.Transcribe.PollInterval)
	}
	if cfg.Redis.Addr != "redis.example.com:6380" {
		t.Errorf("Redis.Addr = %v", cfg.Redis.Addr)
	}
	if cfg.Worker.Count != 4 {
		t.Errorf("Worker.Count = %v, want 4", cfg.Worker.Count)
	}
	if cfg.Worker.PollInterval != 250*time.Millisecond {
		t.Errorf("Worker.PollInterval = %v, want 250ms", cfg.Worker.PollInterval)
	}
	// Unset in the file, so the pool default survives.
	if cfg.Worker.RecoveryInterval != time.Minute {
		t.Errorf("Worker.RecoveryInterval = %v, want 1m", cfg.Worker.RecoveryInterval)
	}
	if cfg.ExpectedSpeakers != 3 {
		t.Errorf("ExpectedSpeakers = %v, want 3", cfg.ExpectedSpeakers)
	}
	if !cfg.Debug {
		t.Error("Debug should be true")
	}
}

// TestLoadConfigEnvOverridesFile verifies environment variables win over the
// config file.
func TestLoadConfigEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DICTA_CONFIG_DIR", dir)

	content := `redis:
  addr: from-file:6379
`
	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(content), 0600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	t.Setenv("DICTA_REDIS_ADDR", "from-env:6379")
	t.Setenv("DICTA_CHAT_MODEL", "gpt-4o")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Redis.Addr != "from-env:6379" {
		t.Errorf("Redis.Addr = %v, want from-env:6379", cfg.Redis.Addr)
	}
	if cfg.OpenAI.ChatModel != "gpt-4o" {
		t.Errorf("OpenAI.ChatModel = %v, want gpt-4o", cfg.OpenAI.ChatModel)
	}
}

// TestLoadConfigMissingFileUsesDefaults verifies a missing config file is
// not an error.
func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("DICTA_CONFIG_DIR", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Streaming.Endpoint != DefaultStreamingEndpoint {
		t.Errorf("Streaming.Endpoint = %v, want default", cfg.Streaming.Endpoint)
	}
}

// TestValidate verifies configuration validation rules.
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CLIConfig)
		wantErr bool
	}{
		{"defaults are valid", func(c *CLIConfig) {}, false},
		{"missing streaming endpoint", func(c *CLIConfig) { c.Streaming.Endpoint = "" }, true},
		{"unknown backend", func(c *CLIConfig) { c.Transcribe.Backend = "deepgram" }, true},
		{"polling without base url", func(c *CLIConfig) { c.Transcribe.Backend = BackendPolling }, true},
		{"polling with base url", func(c *CLIConfig) {
			c.Transcribe.Backend = BackendPolling
			c.Transcribe.PollingBaseURL = "https://stt.example.com"
		}, false},
		{"missing redis addr", func(c *CLIConfig) { c.Redis.Addr = "" }, true},
		{"negative expected speakers", func(c *CLIConfig) { c.ExpectedSpeakers = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestSaveConfigRoundTrip verifies a saved config loads back identically.
func TestSaveConfigRoundTrip(t *testing.T) {
	t.Setenv("DICTA_CONFIG_DIR", t.TempDir())

	cfg := DefaultConfig()
	cfg.Redis.Addr = "saved:6379"
	cfg.Worker.PollInterval = 2 * time.Second
	cfg.UserID = "user-1"

	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if loaded.Redis.Addr != "saved:6379" {
		t.Errorf("Redis.Addr = %v, want saved:6379", loaded.Redis.Addr)
	}
	if loaded.Worker.PollInterval != 2*time.Second {
		t.Errorf("Worker.PollInterval = %v, want 2s", loaded.Worker.PollInterval)
	}
	if loaded.UserID != "user-1" {
		t.Errorf("UserID = %v, want user-1", loaded.UserID)
	}
}

// TestResolveStorageRoot verifies the default and explicit storage roots.
func TestResolveStorageRoot(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DICTA_CONFIG_DIR", dir)

	cfg := DefaultConfig()
	got, err := cfg.ResolveStorageRoot()
	if err != nil {
		t.Fatalf("ResolveStorageRoot failed: %v", err)
	}
	if got != filepath.Join(dir, DefaultStorageDirName) {
		t.Errorf("ResolveStorageRoot = %v, want %v", got, filepath.Join(dir, DefaultStorageDirName))
	}

	cfg.StorageRoot = "/var/lib/dicta"
	got, err = cfg.ResolveStorageRoot()
	if err != nil {
		t.Fatalf("ResolveStorageRoot failed: %v", err)
	}
	if got != "/var/lib/dicta" {
		t.Errorf("ResolveStorageRoot = %v, want /var/lib/dicta", got)
	}
}

// TestDatabasePoolConfig verifies YAML database settings flow into the pool
// config while DB_* env vars keep precedence.
func TestDatabasePoolConfig(t *testing.T) {
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_NAME", "")

	dbCfg := DatabaseConfig{Host: "pg.example.com", Database: "consultations"}
	pool := dbCfg.PoolConfig()
	if pool.Host != "pg.example.com" {
		t.Errorf("Host = %v, want pg.example.com", pool.Host)
	}
	if pool.Database != "consultations" {
		t.Errorf("Database = %v, want consultations", pool.Database)
	}

	t.Setenv("DB_HOST", "env.example.com")
	pool = dbCfg.PoolConfig()
	if pool.Host != "env.example.com" {
		t.Errorf("Host = %v, want env.example.com", pool.Host)
	}
}

// TestExpandPath verifies ~ expansion.
func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	got, err := ExpandPath("~/recordings")
	if err != nil {
		t.Fatalf("ExpandPath failed: %v", err)
	}
	if got != filepath.Join(home, "recordings") {
		t.Errorf("ExpandPath = %v, want %v", got, filepath.Join(home, "recordings"))
	}

	got, err = ExpandPath("/absolute/path")
	if err != nil {
		t.Fatalf("ExpandPath failed: %v", err)
	}
	if got != "/absolute/path" {
		t.Errorf("ExpandPath = %v, want /absolute/path", got)
	}
}
