// Package pipeline orchestrates the recording-to-ready processing sequence:
// transcribe, attribute speakers, summarize, index, finalize. Stages run
// strictly in order, each behind its own error boundary, and every stage
// persists its output before the next begins, so a failure in stage N never
// discards the work of stages 1..N-1 and a restart resumes from the
// persisted step.
package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/otherjamesbrown/dicta-cli/pkg/attribution"
	dterrors "github.com/otherjamesbrown/dicta-cli/pkg/errors"
	"github.com/otherjamesbrown/dicta-cli/pkg/logging"
	"github.com/otherjamesbrown/dicta-cli/pkg/meetings"
	"github.com/otherjamesbrown/dicta-cli/pkg/search"
	"github.com/otherjamesbrown/dicta-cli/pkg/summarize"
	"github.com/otherjamesbrown/dicta-cli/pkg/transcribe"
)

// Stage names, persisted on the job record as the resume point.
const (
	StepTranscribe = "transcribe"
	StepAttribute  = "attribute"
	StepSummarize  = "summarize"
	StepIndex      = "index"
	StepFinalize   = "finalize"
)

var stepOrder = map[string]int{
	StepTranscribe: 0,
	StepAttribute:  1,
	StepSummarize:  2,
	StepIndex:      3,
	StepFinalize:   4,
}

// Repository is the persistence surface the pipeline drives.
// *meetings.Repository satisfies it.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (*meetings.Meeting, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, to meetings.Status) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	ClearErrorMessage(ctx context.Context, id uuid.UUID) error
	ReplaceSegments(ctx context.Context, meetingID uuid.UUID, segments []meetings.TranscriptSegment) error
	Segments(ctx context.Context, meetingID uuid.UUID) ([]meetings.TranscriptSegment, error)
	UpsertJob(ctx context.Context, meetingID uuid.UUID) (*meetings.ProcessingJob, error)
	GetJob(ctx context.Context, meetingID uuid.UUID) (*meetings.ProcessingJob, error)
	UpdateJobStep(ctx context.Context, meetingID uuid.UUID, step string) error
	CompleteJob(ctx context.Context, meetingID uuid.UUID) error
	FailJob(ctx context.Context, meetingID uuid.UUID, lastError string) error
	UpsertAIOutput(ctx context.Context, out *meetings.AIOutput) error
	GetAIOutput(ctx context.Context, meetingID uuid.UUID) (*meetings.AIOutput, error)
	ReplaceTasks(ctx context.Context, meetingID uuid.UUID, tasks []meetings.Task) error
}

// AudioOpener fetches archived recording audio by storage path.
type AudioOpener interface {
	OpenRecording(ctx context.Context, path string) (io.ReadCloser, error)
}

// Indexer maintains the search text. Index failures are non-fatal.
type Indexer interface {
	Upsert(ctx context.Context, meetingID uuid.UUID, text string) error
}

// Pipeline processes one meeting at a time; instances are safe to reuse
// across meetings.
type Pipeline struct {
	repo       Repository
	blobs      AudioOpener
	backend    transcribe.Backend
	attributor attribution.Attributor
	summarizer summarize.Summarizer
	index      Indexer
	logger     logging.Logger
}

// New wires a pipeline from its collaborators.
func New(repo Repository, blobs AudioOpener, backend transcribe.Backend,
	attributor attribution.Attributor, summarizer summarize.Summarizer,
	index Indexer, logger logging.Logger) *Pipeline {
	return &Pipeline{
		repo:       repo,
		blobs:      blobs,
		backend:    backend,
		attributor: attributor,
		summarizer: summarizer,
		index:      index,
		logger:     logger.With(logging.F("component", "pipeline")),
	}
}

// Process runs the stage sequence for one meeting. It is idempotent: a
// meeting already ready is a no-op, and a meeting whose job carries a
// persisted step resumes there instead of recomputing earlier stages.
// Any stage failure leaves the meeting failed with the error recorded on
// both the meeting and its job; Process never returns a partial success.
func (p *Pipeline) Process(ctx context.Context, meetingID uuid.UUID) error {
	log := p.logger.With(logging.F("meeting_id", meetingID.String()))

	meeting, err := p.repo.Get(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("failed to load meeting: %w", err)
	}
	if meeting.Status == meetings.StatusReady {
		log.Info("Meeting already processed")
		return nil
	}
	if meeting.Status == meetings.StatusFailed {
		return fmt.Errorf("meeting is failed; retry it first: %w", dterrors.ErrInvalidState)
	}

	job, err := p.repo.GetJob(ctx, meetingID)
	if err != nil && !dterrors.IsNotFound(err) {
		return fmt.Errorf("failed to load processing job: %w", err)
	}
	if job == nil {
		if job, err = p.repo.UpsertJob(ctx, meetingID); err != nil {
			return fmt.Errorf("failed to create processing job: %w", err)
		}
	}

	start := stepOrder[StepTranscribe]
	if idx, ok := stepOrder[job.Step]; ok && job.Status == meetings.JobProcessing {
		// Interrupted run: resume at the step that was executing.
		start = idx
		log.Info("Resuming interrupted pipeline", logging.F("step", job.Step))
	}

	var (
		result   *transcribe.Result
		segments []meetings.TranscriptSegment
	)

	// Stage 1: transcribe.
	if start <= stepOrder[StepTranscribe] {
		if err := p.enterStage(ctx, meetingID, StepTranscribe); err != nil {
			return err
		}
		result, err = p.transcribeStage(ctx, meeting)
		if err != nil {
			return p.fail(ctx, meetingID, StepTranscribe, err)
		}
	}

	// Stage 2: attribute speakers. Generative failure degrades to a single
	// UNKNOWN segment instead of failing the stage.
	if start <= stepOrder[StepAttribute] {
		if err := p.enterStage(ctx, meetingID, StepAttribute); err != nil {
			return err
		}
		if result == nil {
			// Resumed past transcribe with nothing in memory; the
			// transcript only exists as persisted segments now.
			segments, err = p.repo.Segments(ctx, meetingID)
			if err != nil {
				return p.fail(ctx, meetingID, StepAttribute, err)
			}
			if len(segments) == 0 {
				// Interrupted before any segment was persisted. The
				// archived audio is still there, so transcribe again
				// rather than failing on a transcript that never existed.
				log.Info("No persisted segments on resume, re-running transcription")
				result, err = p.transcribeStage(ctx, meeting)
				if err != nil {
					return p.fail(ctx, meetingID, StepTranscribe, err)
				}
			}
		}
		if result != nil {
			segments = p.attributeStage(ctx, meeting, result)
		}
		if len(segments) == 0 {
			return p.fail(ctx, meetingID, StepAttribute,
				dterrors.NewStageError(dterrors.ErrEmptyTranscript, StepAttribute,
					"no transcript segments to attribute", nil))
		}
		for i := range segments {
			segments[i].MeetingID = meetingID
		}
		if err := p.repo.ReplaceSegments(ctx, meetingID, segments); err != nil {
			return p.fail(ctx, meetingID, StepAttribute, err)
		}
	} else {
		if segments, err = p.repo.Segments(ctx, meetingID); err != nil {
			return p.fail(ctx, meetingID, StepSummarize, err)
		}
	}

	// Stage 3: summarize and extract. Also degrades instead of failing.
	if start <= stepOrder[StepSummarize] {
		if err := p.enterStage(ctx, meetingID, StepSummarize); err != nil {
			return err
		}
		extraction := p.summarizeStage(ctx, meetingID, segments)
		if err := p.repo.UpsertAIOutput(ctx, &extraction.Output); err != nil {
			return p.fail(ctx, meetingID, StepSummarize, err)
		}
		if err := p.repo.ReplaceTasks(ctx, meetingID, extraction.Tasks); err != nil {
			return p.fail(ctx, meetingID, StepSummarize, err)
		}
	}

	// Stage 4: index. Failures are logged, never fatal; a downstream
	// trigger may maintain the index independently.
	if start <= stepOrder[StepIndex] {
		if err := p.enterStage(ctx, meetingID, StepIndex); err != nil {
			return err
		}
		output, err := p.repo.GetAIOutput(ctx, meetingID)
		if err != nil && !dterrors.IsNotFound(err) {
			return p.fail(ctx, meetingID, StepIndex, err)
		}
		text := search.BuildSearchText(output, segments)
		if err := p.index.Upsert(ctx, meetingID, text); err != nil {
			log.Warn("Search index update failed", logging.Err(err))
		}
	}

	// Stage 5: finalize.
	if err := p.enterStage(ctx, meetingID, StepFinalize); err != nil {
		return err
	}
	if err := p.repo.UpdateStatus(ctx, meetingID, meetings.StatusReady); err != nil {
		return p.fail(ctx, meetingID, StepFinalize, err)
	}
	if err := p.repo.ClearErrorMessage(ctx, meetingID); err != nil {
		return p.fail(ctx, meetingID, StepFinalize, err)
	}
	if err := p.repo.CompleteJob(ctx, meetingID); err != nil {
		return p.fail(ctx, meetingID, StepFinalize, err)
	}

	log.Info("Meeting processing complete")
	return nil
}

// Retry resets a failed meeting back to queued so Process can run again
// from stage 1 against the still-archived audio.
func (p *Pipeline) Retry(ctx context.Context, meetingID uuid.UUID) error {
	meeting, err := p.repo.Get(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("failed to load meeting: %w", err)
	}
	if meeting.Status != meetings.StatusFailed {
		return fmt.Errorf("only failed meetings can be retried (status %s): %w",
			meeting.Status, dterrors.ErrInvalidState)
	}

	if err := p.repo.UpdateStatus(ctx, meetingID, meetings.StatusQueued); err != nil {
		return fmt.Errorf("failed to reset meeting status: %w", err)
	}
	if err := p.repo.ClearErrorMessage(ctx, meetingID); err != nil {
		return fmt.Errorf("failed to clear error message: %w", err)
	}
	if _, err := p.repo.UpsertJob(ctx, meetingID); err != nil {
		return fmt.Errorf("failed to reset processing job: %w", err)
	}

	p.logger.Info("Meeting queued for retry", logging.F("meeting_id", meetingID.String()))
	return nil
}

// enterStage records the step on the job; failing to record progress is a
// hard stop because resumability depends on it.
func (p *Pipeline) enterStage(ctx context.Context, meetingID uuid.UUID, step string) error {
	if err := p.repo.UpdateJobStep(ctx, meetingID, step); err != nil {
		return p.fail(ctx, meetingID, step, err)
	}
	return nil
}

// transcribeStage fetches the archived audio and runs the backend.
func (p *Pipeline) transcribeStage(ctx context.Context, meeting *meetings.Meeting) (*transcribe.Result, error) {
	if meeting.Status == meetings.StatusQueued {
		if err := p.repo.UpdateStatus(ctx, meeting.ID, meetings.StatusConverting); err != nil {
			return nil, err
		}
	}

	if meeting.RawAudioPath == nil {
		return nil, fmt.Errorf("meeting has no archived audio: %w", dterrors.ErrNoAudio)
	}
	wav, err := p.blobs.OpenRecording(ctx, *meeting.RawAudioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archived audio: %w", err)
	}
	defer wav.Close()

	// A resumed run may already be transcribing; same-status updates are
	// rejected by the state machine.
	if meeting.Status != meetings.StatusTranscribing {
		if err := p.repo.UpdateStatus(ctx, meeting.ID, meetings.StatusTranscribing); err != nil {
			return nil, err
		}
	}

	result, err := p.backend.Transcribe(ctx, wav)
	if err != nil {
		return nil, err
	}
	if result.Empty() {
		return nil, dterrors.NewStageError(dterrors.ErrEmptyTranscript, StepTranscribe,
			"transcription produced no text", nil)
	}
	return result, nil
}

// attributeStage derives speaker-attributed segments. Diarized backends
// already carry speaker boundaries; otherwise the generative classifier
// runs, with the whole-transcript UNKNOWN fallback on failure.
func (p *Pipeline) attributeStage(ctx context.Context, meeting *meetings.Meeting, result *transcribe.Result) []meetings.TranscriptSegment {
	if result.Diarized() {
		return attribution.MapDiarized(meeting.ID, result.Utterances)
	}

	segments, err := p.attributor.Attribute(ctx, result.Text, meeting.DurationSeconds, meeting.ExpectedSpeakers)
	if err != nil {
		p.logger.Warn("Attribution failed, using single-segment fallback",
			logging.F("meeting_id", meeting.ID.String()),
			logging.Err(err))
		return attribution.FallbackSegments(result.Text, meeting.DurationSeconds)
	}
	return segments
}

// summarizeStage runs the extraction call with the label-derived fallback.
func (p *Pipeline) summarizeStage(ctx context.Context, meetingID uuid.UUID, segments []meetings.TranscriptSegment) *summarize.Extraction {
	extraction, err := p.summarizer.Summarize(ctx, meetingID, segments)
	if err != nil {
		p.logger.Warn("Summarization failed, using fallback overview",
			logging.F("meeting_id", meetingID.String()),
			logging.Err(err))
		return summarize.FallbackExtraction(meetingID, segments)
	}
	return extraction
}

// fail is the single stage error boundary: classify the error, mark the
// meeting failed with a readable message, record the machine error on the
// job, and stop.
func (p *Pipeline) fail(ctx context.Context, meetingID uuid.UUID, step string, cause error) error {
	perr := dterrors.ClassifyError(cause, step)

	p.logger.Error("Pipeline stage failed",
		logging.F("meeting_id", meetingID.String()),
		logging.F("step", step),
		logging.F("code", string(perr.Code)),
		logging.Err(cause))

	message := fmt.Sprintf("processing failed at %s: %s", step, perr.Message)
	if err := p.repo.MarkFailed(ctx, meetingID, message); err != nil {
		p.logger.Error("Failed to mark meeting failed", logging.Err(err))
	}
	if err := p.repo.FailJob(ctx, meetingID, perr.Error()); err != nil {
		p.logger.Error("Failed to record job failure", logging.Err(err))
	}
	return perr
}
