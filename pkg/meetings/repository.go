package meetings

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	dterrors "github.com/otherjamesbrown/dicta-cli/pkg/errors"
	"github.com/otherjamesbrown/dicta-cli/pkg/logging"
)

// Repository provides database operations for meetings and their derived
// records. All queries are scoped by the owning user where the caller
// supplies one; cascade deletes cover segments, the job, AI output and tasks.
type Repository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewRepository creates a new meetings repository.
func NewRepository(pool *pgxpool.Pool, logger logging.Logger) *Repository {
	return &Repository{
		pool:   pool,
		logger: logger.With(logging.F("component", "meetings_repository")),
	}
}

const meetingColumns = `
	id, user_id, title, status, duration_seconds, expected_speakers,
	raw_audio_path, raw_audio_format, mp3_audio_path, streaming_used,
	error_message, created_at, updated_at`

func scanMeeting(row pgx.Row) (*Meeting, error) {
	var m Meeting
	err := row.Scan(
		&m.ID, &m.UserID, &m.Title, &m.Status, &m.DurationSeconds,
		&m.ExpectedSpeakers, &m.RawAudioPath, &m.RawAudioFormat,
		&m.MP3AudioPath, &m.StreamingUsed, &m.ErrorMessage,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, dterrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create inserts a new meeting in the recording state.
func (r *Repository) Create(ctx context.Context, m *Meeting) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Status == "" {
		m.Status = StatusRecording
	}
	if m.ExpectedSpeakers == 0 {
		m.ExpectedSpeakers = 2
	}

	query := `
		INSERT INTO meetings (
			id, user_id, title, status, duration_seconds, expected_speakers,
			streaming_used, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		m.ID, m.UserID, m.Title, m.Status, m.DurationSeconds,
		m.ExpectedSpeakers, m.StreamingUsed,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create meeting",
			logging.Err(err),
			logging.F("meeting_id", m.ID.String()))
		return fmt.Errorf("failed to create meeting: %w", err)
	}

	r.logger.Debug("Meeting created",
		logging.F("meeting_id", m.ID.String()),
		logging.F("user_id", m.UserID.String()))
	return nil
}

// Get returns a meeting by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Meeting, error) {
	query := `SELECT` + meetingColumns + ` FROM meetings WHERE id = $1`
	m, err := scanMeeting(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if dterrors.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get meeting: %w", err)
	}
	return m, nil
}

// List returns meetings for a user, newest first.
func (r *Repository) List(ctx context.Context, userID uuid.UUID, limit int) ([]*Meeting, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT` + meetingColumns + `
		FROM meetings WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}
	defer rows.Close()

	var out []*Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meeting: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateStatus moves a meeting to a new status, enforcing the forward-only
// state machine. Returns ErrInvalidState for an illegal transition.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, to Status) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var from Status
	err = tx.QueryRow(ctx, `SELECT status FROM meetings WHERE id = $1 FOR UPDATE`, id).Scan(&from)
	if err == pgx.ErrNoRows {
		return dterrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read meeting status: %w", err)
	}

	if !CanTransition(from, to) {
		return fmt.Errorf("meeting %s cannot move %s -> %s: %w", id, from, to, dterrors.ErrInvalidState)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE meetings SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, to); err != nil {
		return fmt.Errorf("failed to update meeting status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit status update: %w", err)
	}

	r.logger.Debug("Meeting status updated",
		logging.F("meeting_id", id.String()),
		logging.F("from", string(from)),
		logging.F("to", string(to)))
	return nil
}

// MarkFailed moves a meeting to failed and records a human-readable message.
// Unlike UpdateStatus it never rejects the transition; failed is reachable
// from every non-failed state.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE meetings SET status = $2, error_message = $3, updated_at = NOW()
		WHERE id = $1 AND status <> $2`,
		id, StatusFailed, message)
	if err != nil {
		return fmt.Errorf("failed to mark meeting failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Zero rows means either the meeting does not exist or it is
		// already failed. The latter is a no-op, not an error.
		var status Status
		err := r.pool.QueryRow(ctx,
			`SELECT status FROM meetings WHERE id = $1`, id).Scan(&status)
		if err == pgx.ErrNoRows {
			return dterrors.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read meeting status: %w", err)
		}
	}
	return nil
}

// SetErrorMessage records a meeting-level error without changing status.
// Used for archival/upload failures that must not disturb the live transcript.
func (r *Repository) SetErrorMessage(ctx context.Context, id uuid.UUID, message string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE meetings SET error_message = $2, updated_at = NOW() WHERE id = $1`,
		id, message)
	if err != nil {
		return fmt.Errorf("failed to set meeting error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return dterrors.ErrNotFound
	}
	return nil
}

// ClearErrorMessage wipes the meeting error, used on successful finalize.
func (r *Repository) ClearErrorMessage(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE meetings SET error_message = NULL, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to clear meeting error: %w", err)
	}
	return nil
}

// FinishRecording persists the final duration and streaming flag at stop time.
func (r *Repository) FinishRecording(ctx context.Context, id uuid.UUID, durationSeconds int, streamingUsed bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE meetings
		SET duration_seconds = $2, streaming_used = $3, updated_at = NOW()
		WHERE id = $1`,
		id, durationSeconds, streamingUsed)
	if err != nil {
		return fmt.Errorf("failed to finish recording: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return dterrors.ErrNotFound
	}
	return nil
}

// SetRawAudio records where the archived audio landed.
func (r *Repository) SetRawAudio(ctx context.Context, id uuid.UUID, path, format string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE meetings SET raw_audio_path = $2, raw_audio_format = $3, updated_at = NOW()
		WHERE id = $1`,
		id, path, format)
	if err != nil {
		return fmt.Errorf("failed to set raw audio path: %w", err)
	}
	return nil
}

// Delete removes a meeting; segments, job, AI output and tasks cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM meetings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete meeting: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return dterrors.ErrNotFound
	}
	return nil
}

// ReplaceSegments atomically swaps the meeting's transcript segments for a
// new ordered set. Prior rows for the meeting are removed first so the batch
// pipeline can re-run without duplicating output.
func (r *Repository) ReplaceSegments(ctx context.Context, meetingID uuid.UUID, segments []TranscriptSegment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM transcript_segments WHERE meeting_id = $1`, meetingID); err != nil {
		return fmt.Errorf("failed to clear prior segments: %w", err)
	}

	for _, s := range segments {
		if _, err := tx.Exec(ctx, `
			INSERT INTO transcript_segments (
				meeting_id, speaker_label, speaker_name, text,
				start_ms, end_ms, confidence, is_streaming_result
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			meetingID, s.SpeakerLabel, s.SpeakerName, s.Text,
			s.StartMs, s.EndMs, s.Confidence, s.IsStreamingResult,
		); err != nil {
			return fmt.Errorf("failed to insert segment: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit segments: %w", err)
	}

	r.logger.Debug("Segments replaced",
		logging.F("meeting_id", meetingID.String()),
		logging.F("count", len(segments)))
	return nil
}

// Segments returns a meeting's transcript segments ordered by start time.
func (r *Repository) Segments(ctx context.Context, meetingID uuid.UUID) ([]TranscriptSegment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, meeting_id, speaker_label, speaker_name, text,
		       start_ms, end_ms, confidence, is_streaming_result
		FROM transcript_segments
		WHERE meeting_id = $1
		ORDER BY start_ms`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}
	defer rows.Close()

	var out []TranscriptSegment
	for rows.Next() {
		var s TranscriptSegment
		if err := rows.Scan(
			&s.ID, &s.MeetingID, &s.SpeakerLabel, &s.SpeakerName, &s.Text,
			&s.StartMs, &s.EndMs, &s.Confidence, &s.IsStreamingResult,
		); err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpsertJob creates or resets the processing job for a meeting.
func (r *Repository) UpsertJob(ctx context.Context, meetingID uuid.UUID) (*ProcessingJob, error) {
	var job ProcessingJob
	err := r.pool.QueryRow(ctx, `
		INSERT INTO processing_jobs (meeting_id, status, step, attempts)
		VALUES ($1, $2, '', 0)
		ON CONFLICT (meeting_id) DO UPDATE
		SET status = $2, step = '', attempts = processing_jobs.attempts + 1,
		    last_error = NULL, updated_at = NOW()
		RETURNING meeting_id, status, step, attempts, last_error, created_at, updated_at`,
		meetingID, JobQueued,
	).Scan(&job.MeetingID, &job.Status, &job.Step, &job.Attempts,
		&job.LastError, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert processing job: %w", err)
	}
	return &job, nil
}

// GetJob returns the processing job for a meeting.
func (r *Repository) GetJob(ctx context.Context, meetingID uuid.UUID) (*ProcessingJob, error) {
	var job ProcessingJob
	err := r.pool.QueryRow(ctx, `
		SELECT meeting_id, status, step, attempts, last_error, created_at, updated_at
		FROM processing_jobs WHERE meeting_id = $1`, meetingID,
	).Scan(&job.MeetingID, &job.Status, &job.Step, &job.Attempts,
		&job.LastError, &job.CreatedAt, &job.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, dterrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get processing job: %w", err)
	}
	return &job, nil
}

// UpdateJobStep records stage entry on the job record.
func (r *Repository) UpdateJobStep(ctx context.Context, meetingID uuid.UUID, step string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE processing_jobs
		SET status = $2, step = $3, updated_at = NOW()
		WHERE meeting_id = $1`,
		meetingID, JobProcessing, step)
	if err != nil {
		return fmt.Errorf("failed to update job step: %w", err)
	}
	return nil
}

// CompleteJob marks the job completed.
func (r *Repository) CompleteJob(ctx context.Context, meetingID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE processing_jobs
		SET status = $2, last_error = NULL, updated_at = NOW()
		WHERE meeting_id = $1`,
		meetingID, JobCompleted)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return nil
}

// FailJob marks the job failed with a machine-readable error.
func (r *Repository) FailJob(ctx context.Context, meetingID uuid.UUID, lastError string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE processing_jobs
		SET status = $2, last_error = $3, updated_at = NOW()
		WHERE meeting_id = $1`,
		meetingID, JobFailed, lastError)
	if err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}
	return nil
}

// UpsertAIOutput stores the structured extraction, one record per meeting.
func (r *Repository) UpsertAIOutput(ctx context.Context, out *AIOutput) error {
	payload, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to marshal AI output: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO ai_outputs (meeting_id, output)
		VALUES ($1, $2)
		ON CONFLICT (meeting_id) DO UPDATE
		SET output = $2, updated_at = NOW()`,
		out.MeetingID, payload)
	if err != nil {
		return fmt.Errorf("failed to upsert AI output: %w", err)
	}
	return nil
}

// GetAIOutput returns the structured extraction for a meeting.
func (r *Repository) GetAIOutput(ctx context.Context, meetingID uuid.UUID) (*AIOutput, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx,
		`SELECT output FROM ai_outputs WHERE meeting_id = $1`, meetingID).Scan(&payload)
	if err == pgx.ErrNoRows {
		return nil, dterrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get AI output: %w", err)
	}

	var out AIOutput
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal AI output: %w", err)
	}
	out.MeetingID = meetingID
	return &out, nil
}

// ReplaceTasks swaps the meeting's extracted tasks for a new set.
func (r *Repository) ReplaceTasks(ctx context.Context, meetingID uuid.UUID, tasks []Task) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM tasks WHERE meeting_id = $1`, meetingID); err != nil {
		return fmt.Errorf("failed to clear prior tasks: %w", err)
	}

	for _, task := range tasks {
		if _, err := tx.Exec(ctx, `
			INSERT INTO tasks (meeting_id, title, priority, owner_role, deadline)
			VALUES ($1, $2, $3, $4, $5)`,
			meetingID, task.Title, task.Priority, task.OwnerRole, task.Deadline,
		); err != nil {
			return fmt.Errorf("failed to insert task: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// Tasks returns the extracted tasks for a meeting.
func (r *Repository) Tasks(ctx context.Context, meetingID uuid.UUID) ([]Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, meeting_id, title, priority, owner_role, deadline
		FROM tasks WHERE meeting_id = $1 ORDER BY id`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		var task Task
		if err := rows.Scan(&task.ID, &task.MeetingID, &task.Title,
			&task.Priority, &task.OwnerRole, &task.Deadline); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		out = append(out, task)
	}
	return out, rows.Err()
}
