// Package search maintains the denormalized per-meeting search text. The
// index stage concatenates summary, topics, participants and transcript
// text into one string keyed by meeting id; queries are substring matches
// over those strings. Index failures are never fatal to the pipeline.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/otherjamesbrown/dicta-cli/pkg/logging"
	"github.com/otherjamesbrown/dicta-cli/pkg/meetings"
)

const keyPrefix = "search:meeting:"

// Index stores and queries meeting search text in Redis.
type Index struct {
	client *redis.Client
	logger logging.Logger
}

// NewIndex creates a search index over an existing Redis client.
func NewIndex(client *redis.Client, logger logging.Logger) *Index {
	return &Index{
		client: client,
		logger: logger.With(logging.F("component", "search_index")),
	}
}

// Upsert replaces the search text for a meeting.
func (i *Index) Upsert(ctx context.Context, meetingID uuid.UUID, text string) error {
	if err := i.client.Set(ctx, keyPrefix+meetingID.String(), text, 0).Err(); err != nil {
		return fmt.Errorf("failed to upsert search text: %w", err)
	}
	return nil
}

// Delete removes a meeting's search text.
func (i *Index) Delete(ctx context.Context, meetingID uuid.UUID) error {
	if err := i.client.Del(ctx, keyPrefix+meetingID.String()).Err(); err != nil {
		return fmt.Errorf("failed to delete search text: %w", err)
	}
	return nil
}

// Query returns at most limit meeting ids whose search text contains the
// query, case-insensitively.
func (i *Index) Query(ctx context.Context, query string, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 20
	}
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, fmt.Errorf("search query is empty")
	}

	var matches []uuid.UUID
	iter := i.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		text, err := i.client.Get(ctx, key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read search text: %w", err)
		}
		if !strings.Contains(strings.ToLower(text), needle) {
			continue
		}
		id, err := uuid.Parse(strings.TrimPrefix(key, keyPrefix))
		if err != nil {
			i.logger.Warn("Skipping malformed search key", logging.F("key", key))
			continue
		}
		matches = append(matches, id)
		if len(matches) >= limit {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("search scan failed: %w", err)
	}
	return matches, nil
}

// BuildSearchText flattens the meeting's extracted record and transcript
// into one searchable string.
func BuildSearchText(output *meetings.AIOutput, segments []meetings.TranscriptSegment) string {
	var parts []string
	if output != nil {
		parts = append(parts, output.Overview.Summary)
		parts = append(parts, output.Overview.Topics...)
		parts = append(parts, output.Overview.Participants...)
	}
	for _, seg := range segments {
		if seg.SpeakerName != nil {
			parts = append(parts, *seg.SpeakerName)
		}
		parts = append(parts, seg.Text)
	}

	var nonEmpty []string
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	return strings.Join(nonEmpty, " ")
}
