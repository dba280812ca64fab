package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{
		Level:       LevelDebug,
		ServiceName: "dicta-test",
		JSONFormat:  true,
		Output:      &buf,
	})

	log.Info("recording started", F("meeting_id", "m-1"), F("duration_seconds", 42))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "recording started", entry["message"])
	require.Equal(t, "dicta-test", entry["service_name"])
	require.Equal(t, "m-1", entry["meeting_id"])
	require.Equal(t, float64(42), entry["duration_seconds"])
}

func TestLoggerWithAttachesFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{
		Level:      LevelDebug,
		JSONFormat: true,
		Output:     &buf,
	})

	child := log.With(F("component", "pipeline"))
	child.Warn("stage failed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "pipeline", entry["component"])
	require.Equal(t, "warn", entry["level"])
}

func TestLoggerWithContextExtractsCorrelationIDs(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{
		Level:      LevelDebug,
		JSONFormat: true,
		Output:     &buf,
	})

	ctx := context.WithValue(context.Background(), MeetingIDKey, "m-7")
	ctx = context.WithValue(ctx, UserIDKey, "u-3")

	log.WithContext(ctx).Info("processing")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "m-7", entry["meeting_id"])
	require.Equal(t, "u-3", entry["user_id"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{
		Level:      LevelWarn,
		JSONFormat: true,
		Output:     &buf,
	})

	log.Debug("hidden")
	log.Info("hidden too")
	require.Zero(t, buf.Len())

	log.Error("visible")
	require.NotZero(t, buf.Len())
}

func TestNopLoggerDiscardsEverything(t *testing.T) {
	log := NewNopLogger()
	// Must not panic and must keep returning a usable logger.
	log.With(F("k", "v")).WithContext(context.Background()).Error("dropped", Err(nil))
}
