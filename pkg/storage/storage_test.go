package storage

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	dterrors "github.com/otherjamesbrown/dicta-cli/pkg/errors"
	"github.com/otherjamesbrown/dicta-cli/pkg/logging"
)

func TestSaveAndOpenRecording(t *testing.T) {
	root := t.TempDir()
	store := NewFileStore(root, logging.NewNopLogger())
	meetingID := uuid.New()
	blob := []byte("RIFF fake wav payload")

	path, err := store.SaveRecording(context.Background(), "user-1", meetingID, blob)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "user-1", meetingID.String(), RecordingFileName), path)

	rc, err := store.OpenRecording(context.Background(), path)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, blob, got)
}

func TestAnonymousRecordingsUseLocalOwner(t *testing.T) {
	root := t.TempDir()
	store := NewFileStore(root, logging.NewNopLogger())
	meetingID := uuid.New()

	path, err := store.SaveRecording(context.Background(), "", meetingID, []byte("x"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "local", meetingID.String(), RecordingFileName), path)
}

func TestOpenMissingRecording(t *testing.T) {
	store := NewFileStore(t.TempDir(), logging.NewNopLogger())

	_, err := store.OpenRecording(context.Background(), filepath.Join(t.TempDir(), "nope.wav"))
	require.ErrorIs(t, err, dterrors.ErrNotFound)
}

func TestDeleteRecordingIsIdempotent(t *testing.T) {
	store := NewFileStore(t.TempDir(), logging.NewNopLogger())
	meetingID := uuid.New()

	path, err := store.SaveRecording(context.Background(), "u", meetingID, []byte("x"))
	require.NoError(t, err)

	require.NoError(t, store.DeleteRecording(context.Background(), "u", meetingID))
	_, err = store.OpenRecording(context.Background(), path)
	require.ErrorIs(t, err, dterrors.ErrNotFound)

	// Deleting again is a no-op.
	require.NoError(t, store.DeleteRecording(context.Background(), "u", meetingID))
}
