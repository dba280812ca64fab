package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	dterrors "github.com/otherjamesbrown/dicta-cli/pkg/errors"
	"github.com/otherjamesbrown/dicta-cli/pkg/logging"
)

// Polling defaults. The attempt cap means a stuck remote job fails with a
// timeout instead of polling forever.
const (
	DefaultPollInterval = 3 * time.Second
	DefaultMaxPolls     = 100
)

// PollingBackend drives an asynchronous transcription job API: upload the
// audio, receive a job id, poll until the job completes. Services behind
// this shape usually diarize, so completed jobs may carry speaker labels.
type PollingBackend struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	interval time.Duration
	maxPolls int
	logger   logging.Logger
}

// PollingOption adjusts a PollingBackend.
type PollingOption func(*PollingBackend)

// WithPollInterval sets the delay between status checks.
func WithPollInterval(d time.Duration) PollingOption {
	return func(b *PollingBackend) { b.interval = d }
}

// WithMaxPolls caps the number of status checks before giving up.
func WithMaxPolls(n int) PollingOption {
	return func(b *PollingBackend) { b.maxPolls = n }
}

// NewPollingBackend creates a polling backend against the given API base URL.
func NewPollingBackend(baseURL, apiKey string, logger logging.Logger, opts ...PollingOption) *PollingBackend {
	b := &PollingBackend{
		baseURL:  baseURL,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 60 * time.Second},
		interval: DefaultPollInterval,
		maxPolls: DefaultMaxPolls,
		logger:   logger.With(logging.F("component", "polling_backend")),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type jobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error"`
	Text   string `json:"text"`
	Utt    []struct {
		Speaker    string  `json:"speaker"`
		Text       string  `json:"text"`
		Start      int64   `json:"start"`
		End        int64   `json:"end"`
		Confidence float64 `json:"confidence"`
	} `json:"utterances"`
}

// Transcribe uploads the audio, then polls the job until it completes,
// errors, or the poll cap is reached.
func (b *PollingBackend) Transcribe(ctx context.Context, wav io.Reader) (*Result, error) {
	job, err := b.submit(ctx, wav)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("Transcription job submitted", logging.F("job_id", job))

	for attempt := 1; attempt <= b.maxPolls; attempt++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("transcription polling cancelled: %w", ctx.Err())
		case <-time.After(b.interval):
		}

		resp, err := b.poll(ctx, job)
		if err != nil {
			return nil, err
		}

		switch resp.Status {
		case "completed":
			return mapJob(resp), nil
		case "error":
			return nil, fmt.Errorf("transcription job %s failed: %s", job, resp.Error)
		default:
			// queued or processing; keep polling
		}
	}

	return nil, dterrors.NewStageError(dterrors.ErrTimeout, "transcribe",
		fmt.Sprintf("transcription job %s did not complete after %d polls", job, b.maxPolls), nil)
}

func (b *PollingBackend) submit(ctx context.Context, wav io.Reader) (string, error) {
	body, err := io.ReadAll(wav)
	if err != nil {
		return "", fmt.Errorf("failed to read audio for upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/transcripts", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build transcription request: %w", err)
	}
	req.Header.Set("Authorization", b.apiKey)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("transcription upload returned status %d", resp.StatusCode)
	}

	var job jobResponse
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return "", fmt.Errorf("failed to decode job response: %w", err)
	}
	if job.ID == "" {
		return "", fmt.Errorf("transcription service returned no job id")
	}
	return job.ID, nil
}

func (b *PollingBackend) poll(ctx context.Context, jobID string) (*jobResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/transcripts/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}
	req.Header.Set("Authorization", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription status check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transcription status returned %d", resp.StatusCode)
	}

	var job jobResponse
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}
	return &job, nil
}

func mapJob(resp *jobResponse) *Result {
	result := &Result{Text: resp.Text}
	for _, u := range resp.Utt {
		result.Utterances = append(result.Utterances, Utterance{
			Speaker:    u.Speaker,
			Text:       u.Text,
			StartMs:    u.Start,
			EndMs:      u.End,
			Confidence: u.Confidence,
		})
	}
	return result
}
