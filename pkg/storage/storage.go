// Package storage persists archived recording audio. The store is keyed by
// owner and meeting so a meeting's artifacts live under a single prefix and
// can be removed together.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	dterrors "github.com/otherjamesbrown/dicta-cli/pkg/errors"
	"github.com/otherjamesbrown/dicta-cli/pkg/logging"
)

// RecordingFileName is the canonical name of the archived session audio.
const RecordingFileName = "recording.wav"

// AudioStore reads and writes archived recording audio.
type AudioStore interface {
	// SaveRecording stores the WAV blob for a meeting and returns the
	// storage path recorded on the meeting row.
	SaveRecording(ctx context.Context, userID string, meetingID uuid.UUID, wav []byte) (string, error)

	// OpenRecording opens the archived audio at the given storage path.
	OpenRecording(ctx context.Context, path string) (io.ReadCloser, error)

	// DeleteRecording removes every artifact stored for a meeting.
	DeleteRecording(ctx context.Context, userID string, meetingID uuid.UUID) error
}

// FileStore is an AudioStore backed by a local directory tree, laid out as
// {root}/{userID}/{meetingID}/recording.wav. Anonymous recordings use the
// "local" owner segment.
type FileStore struct {
	root   string
	logger logging.Logger
}

// NewFileStore creates a store rooted at the given directory.
func NewFileStore(root string, logger logging.Logger) *FileStore {
	return &FileStore{
		root:   root,
		logger: logger.With(logging.F("component", "audio_store")),
	}
}

func ownerSegment(userID string) string {
	if userID == "" {
		return "local"
	}
	return userID
}

func (s *FileStore) meetingDir(userID string, meetingID uuid.UUID) string {
	return filepath.Join(s.root, ownerSegment(userID), meetingID.String())
}

// SaveRecording writes the blob via a temp file and rename so a crash never
// leaves a truncated recording at the final path.
func (s *FileStore) SaveRecording(ctx context.Context, userID string, meetingID uuid.UUID, wav []byte) (string, error) {
	dir := s.meetingDir(userID, meetingID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create recording directory: %w", err)
	}

	finalPath := filepath.Join(dir, RecordingFileName)
	tmp, err := os.CreateTemp(dir, RecordingFileName+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create recording file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(wav); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write recording: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close recording file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to finalize recording file: %w", err)
	}

	s.logger.Info("Recording archived",
		logging.F("meeting_id", meetingID.String()),
		logging.F("path", finalPath),
		logging.F("bytes", len(wav)))
	return finalPath, nil
}

// OpenRecording opens an archived recording for reading.
func (s *FileStore) OpenRecording(ctx context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("recording %s: %w", path, dterrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open recording: %w", err)
	}
	return f, nil
}

// DeleteRecording removes the meeting's storage prefix. Missing prefixes are
// not an error; delete is idempotent.
func (s *FileStore) DeleteRecording(ctx context.Context, userID string, meetingID uuid.UUID) error {
	dir := s.meetingDir(userID, meetingID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete recording artifacts: %w", err)
	}
	return nil
}
