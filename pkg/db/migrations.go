package db

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration represents a single schema migration.
type Migration struct {
	Version string
	Name    string
	SQL     string
}

// MigrationResult holds the result of a migration run.
type MigrationResult struct {
	Applied []string
	Skipped []string
}

// Migrations contains the dicta schema in order. Versions are never edited
// once released; schema changes get a new entry.
var Migrations = []Migration{
	{
		Version: "001",
		Name:    "meetings",
		SQL: `
CREATE TABLE IF NOT EXISTS meetings (
    id                UUID PRIMARY KEY,
    user_id           UUID NOT NULL,
    title             TEXT NOT NULL DEFAULT '',
    status            TEXT NOT NULL DEFAULT 'recording',
    duration_seconds  INTEGER NOT NULL DEFAULT 0,
    expected_speakers INTEGER NOT NULL DEFAULT 2,
    raw_audio_path    TEXT,
    raw_audio_format  TEXT,
    mp3_audio_path    TEXT,
    streaming_used    BOOLEAN NOT NULL DEFAULT FALSE,
    error_message     TEXT,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_meetings_user ON meetings (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_meetings_status ON meetings (status);
`,
	},
	{
		Version: "002",
		Name:    "transcript_segments",
		SQL: `
CREATE TABLE IF NOT EXISTS transcript_segments (
    id                  BIGSERIAL PRIMARY KEY,
    meeting_id          UUID NOT NULL REFERENCES meetings (id) ON DELETE CASCADE,
    speaker_label       TEXT NOT NULL DEFAULT 'UNKNOWN',
    speaker_name        TEXT,
    text                TEXT NOT NULL,
    start_ms            BIGINT NOT NULL,
    end_ms              BIGINT NOT NULL,
    confidence          DOUBLE PRECISION NOT NULL DEFAULT 0,
    is_streaming_result BOOLEAN NOT NULL DEFAULT FALSE,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_segments_meeting ON transcript_segments (meeting_id, start_ms);
`,
	},
	{
		Version: "003",
		Name:    "processing_jobs",
		SQL: `
CREATE TABLE IF NOT EXISTS processing_jobs (
    meeting_id UUID PRIMARY KEY REFERENCES meetings (id) ON DELETE CASCADE,
    status     TEXT NOT NULL DEFAULT 'queued',
    step       TEXT NOT NULL DEFAULT '',
    attempts   INTEGER NOT NULL DEFAULT 0,
    last_error TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`,
	},
	{
		Version: "004",
		Name:    "ai_outputs",
		SQL: `
CREATE TABLE IF NOT EXISTS ai_outputs (
    meeting_id UUID PRIMARY KEY REFERENCES meetings (id) ON DELETE CASCADE,
    output     JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`,
	},
	{
		Version: "005",
		Name:    "tasks",
		SQL: `
CREATE TABLE IF NOT EXISTS tasks (
    id         BIGSERIAL PRIMARY KEY,
    meeting_id UUID NOT NULL REFERENCES meetings (id) ON DELETE CASCADE,
    title      TEXT NOT NULL,
    priority   TEXT NOT NULL DEFAULT 'medium',
    owner_role TEXT NOT NULL DEFAULT 'UNKNOWN',
    deadline   TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_tasks_meeting ON tasks (meeting_id);
`,
	},
}

// RunMigrations applies all pending migrations in version order.
// A tracking table prevents re-running applied versions.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) (*MigrationResult, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}

	result := &MigrationResult{}

	if err := ensureMigrationsTable(ctx, pool); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := getAppliedMigrations(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	migrations := make([]Migration, len(Migrations))
	copy(migrations, Migrations)
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })

	for _, m := range migrations {
		if applied[m.Version] {
			result.Skipped = append(result.Skipped, m.Version)
			continue
		}

		if err := applyMigration(ctx, pool, m); err != nil {
			return result, fmt.Errorf("migration %s failed: %w", m.Version, err)
		}

		result.Applied = append(result.Applied, m.Version)
	}

	return result, nil
}

func ensureMigrationsTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func getAppliedMigrations(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func applyMigration(ctx context.Context, pool *pgxpool.Pool, m Migration) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, m.SQL); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
		m.Version, m.Name); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
