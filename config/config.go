// Package config provides CLI configuration management for the dicta
// command-line tool. It supports loading configuration from YAML files,
// a local .env file, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/dicta-cli/pkg/db"
	"github.com/otherjamesbrown/dicta-cli/pkg/workers"
)

// TranscribeBackend selects which batch speech-to-text backend the
// processing pipeline uses.
type TranscribeBackend string

const (
	// BackendWhisper uses the OpenAI Whisper transcription API.
	BackendWhisper TranscribeBackend = "whisper"
	// BackendPolling uses the HTTP submit-then-poll transcription service.
	BackendPolling TranscribeBackend = "polling"
)

// Default configuration values.
const (
	DefaultStreamingEndpoint = "wss://streaming.dicta.dev/v3/ws"
	DefaultTokenEndpoint     = "https://api.dicta.dev/v3/token"
	DefaultRedisAddr         = "localhost:6379"
	DefaultBackend           = BackendWhisper
	DefaultConfigDir         = ".dicta"
	DefaultConfigFile        = "config.yaml"
	DefaultStorageDirName    = "recordings"
)

// StreamingConfig holds real-time transcription settings.
type StreamingConfig struct {
	// Endpoint is the websocket base URL of the streaming STT service.
	Endpoint string `yaml:"endpoint"`

	// TokenEndpoint is the HTTP endpoint that exchanges the long-lived API
	// key for a short-lived streaming token.
	TokenEndpoint string `yaml:"token_endpoint"`
}

// OpenAIConfig holds model selection for the AI pipeline stages.
type OpenAIConfig struct {
	// WhisperModel is the transcription model (default: whisper-1).
	WhisperModel string `yaml:"whisper_model,omitempty"`

	// ChatModel is the model used for speaker attribution and summarization.
	ChatModel string `yaml:"chat_model,omitempty"`
}

// TranscribeConfig selects and configures the batch transcription backend.
type TranscribeConfig struct {
	// Backend is "whisper" or "polling".
	Backend TranscribeBackend `yaml:"backend"`

	// PollingBaseURL is the base URL of the polling transcription service.
	// Required when Backend is "polling".
	PollingBaseURL string `yaml:"polling_base_url,omitempty"`

	// PollInterval is the delay between status polls.
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
}

// RedisConfig holds connection settings for the queue and search index.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string `yaml:"addr"`

	// Password is the Redis AUTH password, if any.
	Password string `yaml:"password,omitempty"`

	// DB is the Redis logical database number.
	DB int `yaml:"db,omitempty"`
}

// DatabaseConfig holds PostgreSQL connection settings for meeting metadata.
type DatabaseConfig struct {
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Database string `yaml:"database,omitempty"`
	User     string `yaml:"user,omitempty"`
	SSLMode  string `yaml:"sslmode,omitempty"`
}

// PoolConfig converts the YAML settings into the pkg/db connection config.
// Unset fields keep the pkg/db defaults, and DB_* environment variables
// still take precedence.
func (c DatabaseConfig) PoolConfig() *db.Config {
	cfg := db.ConfigFromEnv()
	if os.Getenv("DB_HOST") == "" && c.Host != "" {
		cfg.Host = c.Host
	}
	if os.Getenv("DB_PORT") == "" && c.Port != 0 {
		cfg.Port = c.Port
	}
	if os.Getenv("DB_NAME") == "" && c.Database != "" {
		cfg.Database = c.Database
	}
	if os.Getenv("DB_USER") == "" && c.User != "" {
		cfg.User = c.User
	}
	if os.Getenv("DB_SSLMODE") == "" && c.SSLMode != "" {
		cfg.SSLMode = c.SSLMode
	}
	return cfg
}

// CLIConfig holds the dicta CLI configuration settings.
type CLIConfig struct {
	// Streaming configures the real-time transcription client.
	Streaming StreamingConfig `yaml:"streaming"`

	// Transcribe configures the batch transcription backend.
	Transcribe TranscribeConfig `yaml:"transcribe"`

	// OpenAI configures model selection for AI stages.
	OpenAI OpenAIConfig `yaml:"openai,omitempty"`

	// Redis configures the processing queue and search index connection.
	Redis RedisConfig `yaml:"redis"`

	// Database configures the PostgreSQL meeting store.
	Database DatabaseConfig `yaml:"database,omitempty"`

	// Worker configures the background processing pool.
	Worker workers.PoolConfig `yaml:"worker"`

	// StorageRoot is the directory where archived recordings are written.
	// Supports ~ for home directory expansion.
	StorageRoot string `yaml:"storage_root,omitempty"`

	// UserID is the identity attached to new recordings. Leave empty for
	// anonymous local-only recordings that skip server processing.
	UserID string `yaml:"user_id,omitempty"`

	// ExpectedSpeakers is the default speaker count hint for attribution.
	ExpectedSpeakers int `yaml:"expected_speakers,omitempty"`

	// Debug enables verbose debug logging.
	Debug bool `yaml:"debug,omitempty"`

	// JSONLogs emits structured JSON logs instead of console output.
	JSONLogs bool `yaml:"json_logs,omitempty"`
}

// DefaultConfig returns a CLIConfig with default values.
func DefaultConfig() *CLIConfig {
	return &CLIConfig{
		Streaming: StreamingConfig{
			Endpoint:      DefaultStreamingEndpoint,
			TokenEndpoint: DefaultTokenEndpoint,
		},
		Transcribe: TranscribeConfig{
			Backend: DefaultBackend,
		},
		Redis: RedisConfig{
			Addr: DefaultRedisAddr,
		},
		Worker:           workers.DefaultPoolConfig(),
		ExpectedSpeakers: 2,
	}
}

// ConfigDir returns the configuration directory path.
// Uses $DICTA_CONFIG_DIR if set, otherwise ~/.dicta
func ConfigDir() (string, error) {
	if dir := os.Getenv("DICTA_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// LoadConfig loads the CLI configuration. Sources are applied in this order
// (later sources override earlier):
// 1. Default values
// 2. Config file (~/.dicta/config.yaml or $DICTA_CONFIG_DIR/config.yaml)
// 3. A .env file in the working directory, if present
// 4. Environment variables (DICTA_*)
func LoadConfig() (*CLIConfig, error) {
	cfg := DefaultConfig()

	configPath, err := ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("getting config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// A local .env is a development convenience; ignore it when absent.
	_ = godotenv.Load()

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(cfg *CLIConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	// Durations are written as strings ("1s", "30m"), so the file shape
	// carries them as strings and we parse them afterwards.
	type transcribeFile struct {
		Backend        TranscribeBackend `yaml:"backend"`
		PollingBaseURL string            `yaml:"polling_base_url"`
		PollInterval   string            `yaml:"poll_interval"`
	}
	type workerFile struct {
		Count            int    `yaml:"count"`
		PollInterval     string `yaml:"poll_interval"`
		RecoveryInterval string `yaml:"recovery_interval"`
	}
	type configFile struct {
		Streaming        StreamingConfig `yaml:"streaming"`
		Transcribe       transcribeFile  `yaml:"transcribe"`
		OpenAI           OpenAIConfig    `yaml:"openai"`
		Redis            RedisConfig     `yaml:"redis"`
		Database         DatabaseConfig  `yaml:"database"`
		Worker           workerFile      `yaml:"worker"`
		StorageRoot      string          `yaml:"storage_root"`
		UserID           string          `yaml:"user_id"`
		ExpectedSpeakers int             `yaml:"expected_speakers"`
		Debug            bool            `yaml:"debug"`
		JSONLogs         bool            `yaml:"json_logs"`
	}

	var fileCfg configFile
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if fileCfg.Streaming.Endpoint != "" {
		cfg.Streaming.Endpoint = fileCfg.Streaming.Endpoint
	}
	if fileCfg.Streaming.TokenEndpoint != "" {
		cfg.Streaming.TokenEndpoint = fileCfg.Streaming.TokenEndpoint
	}
	if fileCfg.Transcribe.Backend != "" {
		cfg.Transcribe.Backend = fileCfg.Transcribe.Backend
	}
	if fileCfg.Transcribe.PollingBaseURL != "" {
		cfg.Transcribe.PollingBaseURL = fileCfg.Transcribe.PollingBaseURL
	}
	if fileCfg.Transcribe.PollInterval != "" {
		d, err := time.ParseDuration(fileCfg.Transcribe.PollInterval)
		if err != nil {
			return fmt.Errorf("parsing transcribe.poll_interval: %w", err)
		}
		cfg.Transcribe.PollInterval = d
	}
	if fileCfg.OpenAI.WhisperModel != "" {
		cfg.OpenAI.WhisperModel = fileCfg.OpenAI.WhisperModel
	}
	if fileCfg.OpenAI.ChatModel != "" {
		cfg.OpenAI.ChatModel = fileCfg.OpenAI.ChatModel
	}
	if fileCfg.Redis.Addr != "" {
		cfg.Redis.Addr = fileCfg.Redis.Addr
	}
	if fileCfg.Redis.Password != "" {
		cfg.Redis.Password = fileCfg.Redis.Password
	}
	if fileCfg.Redis.DB != 0 {
		cfg.Redis.DB = fileCfg.Redis.DB
	}
	cfg.Database = fileCfg.Database
	if fileCfg.Worker.Count != 0 {
		cfg.Worker.Count = fileCfg.Worker.Count
	}
	if fileCfg.Worker.PollInterval != "" {
		d, err := time.ParseDuration(fileCfg.Worker.PollInterval)
		if err != nil {
			return fmt.Errorf("parsing worker.poll_interval: %w", err)
		}
		cfg.Worker.PollInterval = d
	}
	if fileCfg.Worker.RecoveryInterval != "" {
		d, err := time.ParseDuration(fileCfg.Worker.RecoveryInterval)
		if err != nil {
			return fmt.Errorf("parsing worker.recovery_interval: %w", err)
		}
		cfg.Worker.RecoveryInterval = d
	}
	if fileCfg.StorageRoot != "" {
		cfg.StorageRoot = fileCfg.StorageRoot
	}
	if fileCfg.UserID != "" {
		cfg.UserID = fileCfg.UserID
	}
	if fileCfg.ExpectedSpeakers != 0 {
		cfg.ExpectedSpeakers = fileCfg.ExpectedSpeakers
	}
	cfg.Debug = fileCfg.Debug
	cfg.JSONLogs = fileCfg.JSONLogs

	return nil
}

// loadFromEnv overlays environment variables onto the configuration.
func loadFromEnv(cfg *CLIConfig) {
	if v := os.Getenv("DICTA_STREAMING_ENDPOINT"); v != "" {
		cfg.Streaming.Endpoint = v
	}
	if v := os.Getenv("DICTA_TOKEN_ENDPOINT"); v != "" {
		cfg.Streaming.TokenEndpoint = v
	}
	if v := os.Getenv("DICTA_TRANSCRIBE_BACKEND"); v != "" {
		cfg.Transcribe.Backend = TranscribeBackend(v)
	}
	if v := os.Getenv("DICTA_POLLING_BASE_URL"); v != "" {
		cfg.Transcribe.PollingBaseURL = v
	}
	if v := os.Getenv("DICTA_WHISPER_MODEL"); v != "" {
		cfg.OpenAI.WhisperModel = v
	}
	if v := os.Getenv("DICTA_CHAT_MODEL"); v != "" {
		cfg.OpenAI.ChatModel = v
	}
	if v := os.Getenv("DICTA_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("DICTA_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("DICTA_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}
	if v := os.Getenv("DICTA_STORAGE_ROOT"); v != "" {
		cfg.StorageRoot = v
	}
	if v := os.Getenv("DICTA_USER_ID"); v != "" {
		cfg.UserID = v
	}
	if v := os.Getenv("DICTA_EXPECTED_SPEAKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ExpectedSpeakers = n
		}
	}
	if v := os.Getenv("DICTA_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Worker.Count = n
		}
	}
	if v := os.Getenv("DICTA_DEBUG"); v == "true" || v == "1" {
		cfg.Debug = true
	}
	if v := os.Getenv("DICTA_JSON_LOGS"); v == "true" || v == "1" {
		cfg.JSONLogs = true
	}
}

// Validate checks that the configuration is valid.
func (c *CLIConfig) Validate() error {
	if c.Streaming.Endpoint == "" {
		return fmt.Errorf("streaming.endpoint is required")
	}

	switch c.Transcribe.Backend {
	case BackendWhisper:
	case BackendPolling:
		if c.Transcribe.PollingBaseURL == "" {
			return fmt.Errorf("transcribe.polling_base_url is required for the polling backend")
		}
	default:
		return fmt.Errorf("invalid transcribe.backend: %q (must be whisper or polling)", c.Transcribe.Backend)
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}

	if c.ExpectedSpeakers < 0 {
		return fmt.Errorf("expected_speakers must not be negative")
	}

	return nil
}

// ResolveStorageRoot returns the expanded recordings directory, defaulting
// to {config dir}/recordings.
func (c *CLIConfig) ResolveStorageRoot() (string, error) {
	if c.StorageRoot != "" {
		return ExpandPath(c.StorageRoot)
	}

	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultStorageDirName), nil
}

// SaveConfig saves the configuration to the config file.
func SaveConfig(cfg *CLIConfig) error {
	configDir, err := ConfigDir()
	if err != nil {
		return fmt.Errorf("getting config directory: %w", err)
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Mirror the file shape used by loadFromFile so durations round-trip
	// as human-readable strings.
	type transcribeFile struct {
		Backend        TranscribeBackend `yaml:"backend"`
		PollingBaseURL string            `yaml:"polling_base_url,omitempty"`
		PollInterval   string            `yaml:"poll_interval,omitempty"`
	}
	type workerFile struct {
		Count            int    `yaml:"count"`
		PollInterval     string `yaml:"poll_interval"`
		RecoveryInterval string `yaml:"recovery_interval"`
	}
	type configFile struct {
		Streaming        StreamingConfig `yaml:"streaming"`
		Transcribe       transcribeFile  `yaml:"transcribe"`
		OpenAI           OpenAIConfig    `yaml:"openai,omitempty"`
		Redis            RedisConfig     `yaml:"redis"`
		Database         DatabaseConfig  `yaml:"database,omitempty"`
		Worker           workerFile      `yaml:"worker"`
		StorageRoot      string          `yaml:"storage_root,omitempty"`
		UserID           string          `yaml:"user_id,omitempty"`
		ExpectedSpeakers int             `yaml:"expected_speakers,omitempty"`
		Debug            bool            `yaml:"debug,omitempty"`
		JSONLogs         bool            `yaml:"json_logs,omitempty"`
	}

	fileCfg := configFile{
		Streaming: cfg.Streaming,
		Transcribe: transcribeFile{
			Backend:        cfg.Transcribe.Backend,
			PollingBaseURL: cfg.Transcribe.PollingBaseURL,
		},
		OpenAI:   cfg.OpenAI,
		Redis:    cfg.Redis,
		Database: cfg.Database,
		Worker: workerFile{
			Count:            cfg.Worker.Count,
			PollInterval:     cfg.Worker.PollInterval.String(),
			RecoveryInterval: cfg.Worker.RecoveryInterval.String(),
		},
		StorageRoot:      cfg.StorageRoot,
		UserID:           cfg.UserID,
		ExpectedSpeakers: cfg.ExpectedSpeakers,
		Debug:            cfg.Debug,
		JSONLogs:         cfg.JSONLogs,
	}
	if cfg.Transcribe.PollInterval != 0 {
		fileCfg.Transcribe.PollInterval = cfg.Transcribe.PollInterval.String()
	}

	data, err := yaml.Marshal(&fileCfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	configPath := filepath.Join(configDir, DefaultConfigFile)
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
