// Package recording owns a live capture session: microphone frames in, live
// transcript out, archived WAV and a queued processing job at the end. The
// session drives the meeting record through recording → uploading → queued.
package recording

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/otherjamesbrown/dicta-cli/pkg/audio"
	dterrors "github.com/otherjamesbrown/dicta-cli/pkg/errors"
	"github.com/otherjamesbrown/dicta-cli/pkg/logging"
	"github.com/otherjamesbrown/dicta-cli/pkg/meetings"
	"github.com/otherjamesbrown/dicta-cli/pkg/streaming"
)

// State is the capture lifecycle: idle → recording ⇄ paused → stopped.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StatePaused    State = "paused"
	StateStopped   State = "stopped"
)

// durationTick is the resolution of the session duration counter. The
// counter only advances while the state is recording, so pauses are excluded
// from the persisted duration.
const durationTick = 100 * time.Millisecond

// Streamer is the socket session the controller feeds frames into.
// *streaming.Client satisfies it.
type Streamer interface {
	Connect(ctx context.Context, token string) error
	SendFrame(pcm []byte) error
	Terminate() error
	Close()
}

// MeetingStore is the subset of the meetings repository the session needs.
type MeetingStore interface {
	Create(ctx context.Context, m *meetings.Meeting) error
	FinishRecording(ctx context.Context, id uuid.UUID, durationSeconds int, streamingUsed bool) error
	UpdateStatus(ctx context.Context, id uuid.UUID, to meetings.Status) error
	SetRawAudio(ctx context.Context, id uuid.UUID, path, format string) error
	SetErrorMessage(ctx context.Context, id uuid.UUID, message string) error
	UpsertJob(ctx context.Context, meetingID uuid.UUID) (*meetings.ProcessingJob, error)
}

// AudioStore persists the archived WAV.
type AudioStore interface {
	SaveRecording(ctx context.Context, userID string, meetingID uuid.UUID, wav []byte) (string, error)
}

// Enqueuer hands a finished meeting to the processing queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, meetingID uuid.UUID) error
}

// Options configures a capture session.
type Options struct {
	Title            string
	UserID           uuid.UUID // zero UUID records locally, no upload
	ExpectedSpeakers int

	// OnUpdate, if set, receives every live transcript update. Called from
	// the socket read goroutine; must be fast.
	OnUpdate func(streaming.Update)
}

// Session is one capture session. A session is single-use: Start once, then
// Pause/Resume as needed, then Stop. All methods are safe for concurrent use.
type Session struct {
	opts    Options
	source  audio.FrameSource
	client  Streamer
	tokens  streaming.TokenSource
	store   MeetingStore
	blobs   AudioStore
	queue   Enqueuer
	logger  logging.Logger
	meeting *meetings.Meeting

	mu        sync.Mutex
	state     State
	assembler *streaming.Assembler
	archiver  *audio.Archiver
	elapsed   time.Duration

	tickerStop chan struct{}
	pumpDone   chan struct{}
	background sync.WaitGroup
}

// NewSession wires a capture session from its collaborators.
func NewSession(opts Options, source audio.FrameSource, client Streamer, tokens streaming.TokenSource,
	store MeetingStore, blobs AudioStore, queue Enqueuer, logger logging.Logger) *Session {
	log := logger.With(logging.F("component", "recording_session"))
	return &Session{
		opts:       opts,
		source:     source,
		client:     client,
		tokens:     tokens,
		store:      store,
		blobs:      blobs,
		queue:      queue,
		logger:     log,
		state:      StateIdle,
		assembler:  streaming.NewAssembler(),
		archiver:   audio.NewArchiver(log),
		tickerStop: make(chan struct{}),
		pumpDone:   make(chan struct{}),
	}
}

// Meeting returns the meeting record created by Start, nil before.
func (s *Session) Meeting() *meetings.Meeting {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meeting
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Duration returns elapsed recording time, pauses excluded.
func (s *Session) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

// Partial returns the in-progress live transcript text.
func (s *Session) Partial() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assembler.Partial()
}

// Turns returns the finalized live turns so far.
func (s *Session) Turns() []streaming.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assembler.Turns()
}

// Start creates the meeting record, connects the streaming session and
// begins capture.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot start recording from state %s: %w", state, dterrors.ErrInvalidState)
	}
	s.mu.Unlock()

	meeting := &meetings.Meeting{
		ID:               uuid.New(),
		UserID:           s.opts.UserID,
		Title:            s.opts.Title,
		Status:           meetings.StatusRecording,
		ExpectedSpeakers: s.opts.ExpectedSpeakers,
		StreamingUsed:    true,
	}
	if err := s.store.Create(ctx, meeting); err != nil {
		return fmt.Errorf("failed to create meeting record: %w", err)
	}

	token, err := s.tokens.StreamingToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to obtain streaming token: %w", err)
	}
	if err := s.client.Connect(ctx, token.Token); err != nil {
		return fmt.Errorf("failed to connect streaming session: %w", err)
	}

	frames, err := s.source.Start()
	if err != nil {
		s.client.Close()
		return fmt.Errorf("failed to start audio capture: %w", err)
	}

	s.mu.Lock()
	s.meeting = meeting
	s.state = StateRecording
	s.mu.Unlock()

	go s.pump(frames)
	go s.tick()

	s.logger.Info("Recording started",
		logging.F("meeting_id", meeting.ID.String()),
		logging.F("title", meeting.Title))
	return nil
}

// pump drains captured frames. While recording, every frame is archived and
// forwarded to the socket; while paused, frames are dropped entirely so the
// archive stays aligned with the transmitted audio and the duration counter.
func (s *Session) pump(frames <-chan []byte) {
	defer close(s.pumpDone)
	for frame := range frames {
		s.mu.Lock()
		active := s.state == StateRecording
		if active {
			s.archiver.Append(audio.EncodeChunk(frame))
		}
		s.mu.Unlock()

		if !active {
			continue
		}
		if err := s.client.SendFrame(frame); err != nil {
			s.logger.Warn("Failed to send audio frame", logging.Err(err))
		}
	}
}

// tick advances the duration counter every 100ms while recording.
func (s *Session) tick() {
	ticker := time.NewTicker(durationTick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			if s.state == StateRecording {
				s.elapsed += durationTick
			}
			s.mu.Unlock()
		case <-s.tickerStop:
			return
		}
	}
}

// Pause suspends frame transmission and the duration counter. The socket
// stays open so resuming continues the same streaming session.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRecording {
		return fmt.Errorf("cannot pause from state %s: %w", s.state, dterrors.ErrInvalidState)
	}
	s.state = StatePaused
	return nil
}

// Resume continues a paused session.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePaused {
		return fmt.Errorf("cannot resume from state %s: %w", s.state, dterrors.ErrInvalidState)
	}
	s.state = StateRecording
	return nil
}

// Stop ends capture: the frame source is stopped, the socket is terminated
// gracefully, the final duration is persisted and the archived audio is
// assembled. Upload and pipeline enqueue continue in the background; Stop
// returns once local archiving is done. The live transcript remains
// available through Turns regardless of what the background handoff does.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateRecording && s.state != StatePaused {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot stop from state %s: %w", state, dterrors.ErrInvalidState)
	}
	s.state = StateStopped
	meeting := s.meeting
	elapsed := s.elapsed
	s.mu.Unlock()

	close(s.tickerStop)

	if err := s.source.Stop(); err != nil {
		s.logger.Warn("Audio capture shutdown reported an error", logging.Err(err))
	}
	<-s.pumpDone

	// Graceful terminate flushes the final buffered turn before close.
	if err := s.client.Terminate(); err != nil {
		s.logger.Warn("Streaming terminate failed", logging.Err(err))
	}

	durationSeconds := int(elapsed.Round(time.Second) / time.Second)
	if err := s.store.FinishRecording(ctx, meeting.ID, durationSeconds, true); err != nil {
		return fmt.Errorf("failed to persist recording duration: %w", err)
	}
	meeting.DurationSeconds = durationSeconds

	s.mu.Lock()
	wav, err := s.archiver.Assemble()
	s.mu.Unlock()
	if err != nil {
		// The live transcript already shown is still valid; flag the
		// meeting instead of discarding the session.
		msg := fmt.Sprintf("audio archive failed: %v", err)
		if serr := s.store.SetErrorMessage(ctx, meeting.ID, msg); serr != nil {
			s.logger.Error("Failed to record archive error", logging.Err(serr))
		}
		return fmt.Errorf("failed to archive recording audio: %w", err)
	}

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		s.handoff(context.Background(), meeting, wav)
	}()

	s.logger.Info("Recording stopped",
		logging.F("meeting_id", meeting.ID.String()),
		logging.F("duration_seconds", durationSeconds),
		logging.F("archived_bytes", len(wav)))
	return nil
}

// handoff runs the supervised background upload-and-enqueue. Failures are
// reported onto the meeting record, never back to the Stop caller.
func (s *Session) handoff(ctx context.Context, meeting *meetings.Meeting, wav []byte) {
	// Without an owner there is no backend to process the audio; the live
	// transcript is all there will be, so the meeting is ready as-is.
	if meeting.UserID == uuid.Nil {
		if err := s.store.UpdateStatus(ctx, meeting.ID, meetings.StatusReady); err != nil {
			s.reportHandoffError(ctx, meeting.ID, err)
		}
		return
	}

	if err := s.store.UpdateStatus(ctx, meeting.ID, meetings.StatusUploading); err != nil {
		s.reportHandoffError(ctx, meeting.ID, err)
		return
	}

	path, err := s.blobs.SaveRecording(ctx, meeting.UserID.String(), meeting.ID, wav)
	if err != nil {
		s.reportHandoffError(ctx, meeting.ID, fmt.Errorf("upload failed: %w", err))
		return
	}
	if err := s.store.SetRawAudio(ctx, meeting.ID, path, "wav"); err != nil {
		s.reportHandoffError(ctx, meeting.ID, err)
		return
	}

	if err := s.store.UpdateStatus(ctx, meeting.ID, meetings.StatusQueued); err != nil {
		s.reportHandoffError(ctx, meeting.ID, err)
		return
	}
	if _, err := s.store.UpsertJob(ctx, meeting.ID); err != nil {
		s.reportHandoffError(ctx, meeting.ID, err)
		return
	}
	if err := s.queue.Enqueue(ctx, meeting.ID); err != nil {
		s.reportHandoffError(ctx, meeting.ID, fmt.Errorf("failed to enqueue processing: %w", err))
		return
	}

	s.logger.Info("Recording handed off for processing",
		logging.F("meeting_id", meeting.ID.String()),
		logging.F("path", path))
}

func (s *Session) reportHandoffError(ctx context.Context, id uuid.UUID, err error) {
	s.logger.Error("Recording handoff failed",
		logging.F("meeting_id", id.String()),
		logging.Err(err))
	if serr := s.store.SetErrorMessage(ctx, id, err.Error()); serr != nil {
		s.logger.Error("Failed to record handoff error", logging.Err(serr))
	}
}

// WaitBackground blocks until the background handoff finishes. Used by the
// CLI before exiting and by tests.
func (s *Session) WaitBackground() {
	s.background.Wait()
}

// OnSessionBegin implements streaming.Events.
func (s *Session) OnSessionBegin(msg streaming.BeginMessage) {
	s.logger.Debug("Streaming session began", logging.F("session_id", msg.ID))
}

// OnTurn implements streaming.Events; it feeds the live assembler.
func (s *Session) OnTurn(msg streaming.TurnMessage) {
	s.mu.Lock()
	update := s.assembler.OnTurn(msg)
	s.mu.Unlock()
	if s.opts.OnUpdate != nil {
		s.opts.OnUpdate(update)
	}
}

// OnTermination implements streaming.Events.
func (s *Session) OnTermination(msg streaming.TerminationMessage) {
	s.logger.Debug("Streaming session terminated",
		logging.F("audio_seconds", msg.AudioDurationSeconds))
}

// OnError implements streaming.Events.
func (s *Session) OnError(err error) {
	s.logger.Warn("Streaming session error", logging.Err(err))
}

// OnClose implements streaming.Events.
func (s *Session) OnClose() {
	s.logger.Debug("Streaming socket closed")
}
