// Package cmd provides CLI commands for the dicta tool.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sashabaranov/go-openai"

	"github.com/otherjamesbrown/dicta-cli/config"
	"github.com/otherjamesbrown/dicta-cli/pkg/attribution"
	"github.com/otherjamesbrown/dicta-cli/pkg/credentials"
	"github.com/otherjamesbrown/dicta-cli/pkg/db"
	"github.com/otherjamesbrown/dicta-cli/pkg/logging"
	"github.com/otherjamesbrown/dicta-cli/pkg/meetings"
	"github.com/otherjamesbrown/dicta-cli/pkg/pipeline"
	"github.com/otherjamesbrown/dicta-cli/pkg/queues"
	"github.com/otherjamesbrown/dicta-cli/pkg/search"
	"github.com/otherjamesbrown/dicta-cli/pkg/storage"
	"github.com/otherjamesbrown/dicta-cli/pkg/summarize"
	"github.com/otherjamesbrown/dicta-cli/pkg/transcribe"
)

// Connection limits for command startup.
const (
	dbConnectAttempts = 3
	dbConnectDelay    = 2 * time.Second
	redisPingTimeout  = 5 * time.Second
)

// Runtime bundles the live service connections that commands share.
type Runtime struct {
	Config *config.CLIConfig
	Logger logging.Logger
	Pool   *pgxpool.Pool
	Redis  *redis.Client
	Repo   *meetings.Repository
	Creds  *credentials.Store
}

// Close releases the runtime's connections.
func (r *Runtime) Close() {
	if r.Pool != nil {
		db.Close(r.Pool)
	}
	if r.Redis != nil {
		_ = r.Redis.Close()
	}
}

// newLogger builds the command logger from the loaded configuration.
func newLogger(cfg *config.CLIConfig, service string) logging.Logger {
	logCfg := logging.DefaultConfig()
	logCfg.ServiceName = service
	logCfg.JSONFormat = cfg.JSONLogs
	if cfg.Debug {
		logCfg.Level = logging.LevelDebug
	}
	return logging.NewLogger(logCfg)
}

// newRuntime loads configuration and connects to PostgreSQL and Redis.
// Callers must Close the returned runtime.
func newRuntime(ctx context.Context, service string) (*Runtime, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg, service)

	pool, err := db.ConnectWithRetry(ctx, cfg.Database.PoolConfig(), dbConnectAttempts, dbConnectDelay)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		db.Close(pool)
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Redis.Addr, err)
	}

	return &Runtime{
		Config: cfg,
		Logger: logger,
		Pool:   pool,
		Redis:  rdb,
		Repo:   meetings.NewRepository(pool, logger),
		Creds:  credentials.NewStore(),
	}, nil
}

// newOpenAIClient builds an OpenAI client from the stored API key.
func newOpenAIClient(creds *credentials.Store) (*openai.Client, error) {
	key, err := creds.Resolve(credentials.KeyOpenAI)
	if err != nil {
		return nil, err
	}
	return openai.NewClient(key), nil
}

// newTranscribeBackend builds the configured batch STT backend.
func newTranscribeBackend(rt *Runtime) (transcribe.Backend, error) {
	switch rt.Config.Transcribe.Backend {
	case config.BackendPolling:
		key, err := rt.Creds.Resolve(credentials.KeySpeech)
		if err != nil {
			return nil, err
		}
		var opts []transcribe.PollingOption
		if rt.Config.Transcribe.PollInterval > 0 {
			opts = append(opts, transcribe.WithPollInterval(rt.Config.Transcribe.PollInterval))
		}
		return transcribe.NewPollingBackend(rt.Config.Transcribe.PollingBaseURL, key, rt.Logger, opts...), nil
	default:
		client, err := newOpenAIClient(rt.Creds)
		if err != nil {
			return nil, err
		}
		return transcribe.NewWhisperBackend(client, rt.Config.OpenAI.WhisperModel, rt.Logger), nil
	}
}

// newPipeline wires the full processing pipeline from the runtime.
func newPipeline(rt *Runtime) (*pipeline.Pipeline, error) {
	backend, err := newTranscribeBackend(rt)
	if err != nil {
		return nil, err
	}

	aiClient, err := newOpenAIClient(rt.Creds)
	if err != nil {
		return nil, err
	}

	root, err := rt.Config.ResolveStorageRoot()
	if err != nil {
		return nil, err
	}

	return pipeline.New(
		rt.Repo,
		storage.NewFileStore(root, rt.Logger),
		backend,
		attribution.NewLLMAttributor(aiClient, rt.Config.OpenAI.ChatModel, rt.Logger),
		summarize.NewLLMSummarizer(aiClient, rt.Config.OpenAI.ChatModel, rt.Logger),
		search.NewIndex(rt.Redis, rt.Logger),
		rt.Logger,
	), nil
}

// newProcessQueue builds the Redis processing queue from the runtime.
func newProcessQueue(rt *Runtime) *queues.RedisQueue {
	return queues.NewRedisQueue(rt.Redis, queues.DefaultQueueConfig(), rt.Logger)
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatDuration renders seconds as m:ss for meeting listings.
func formatDuration(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// derefOr returns *s or fallback when nil.
func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
