// Package cmd provides CLI commands for the dicta tool.
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/dicta-cli/config"
	"github.com/otherjamesbrown/dicta-cli/pkg/audio"
	"github.com/otherjamesbrown/dicta-cli/pkg/credentials"
	"github.com/otherjamesbrown/dicta-cli/pkg/queues"
	"github.com/otherjamesbrown/dicta-cli/pkg/recording"
	"github.com/otherjamesbrown/dicta-cli/pkg/storage"
	"github.com/otherjamesbrown/dicta-cli/pkg/streaming"
)

// Record command flags.
var (
	recordTitle    string
	recordSpeakers int
	recordLocal    bool
)

// RecordCommandDeps holds the dependencies for the record command.
type RecordCommandDeps struct {
	// NewSession builds a ready-to-start capture session. Injectable so
	// tests can supply fakes instead of the microphone and live services.
	NewSession func(ctx context.Context, opts recording.Options) (*recording.Session, func(), error)

	// Input is the interactive control stream, normally stdin.
	Input io.Reader

	// Output receives the live transcript, normally stdout.
	Output io.Writer
}

// queueEnqueuer adapts the Redis processing queue to the session's
// single-meeting enqueue hook.
type queueEnqueuer struct {
	queue  *queues.RedisQueue
	userID uuid.UUID
}

func (e *queueEnqueuer) Enqueue(ctx context.Context, meetingID uuid.UUID) error {
	return e.queue.Enqueue(ctx, &queues.ProcessMessage{
		MeetingID:  meetingID,
		UserID:     e.userID,
		Priority:   queues.PriorityNormal,
		EnqueuedAt: time.Now().UTC(),
	})
}

// eventsRelay lets the socket client be constructed before the session that
// consumes its callbacks. The target is set before Connect, so no callback
// can fire while it is still nil.
type eventsRelay struct {
	target streaming.Events
}

func (r *eventsRelay) OnSessionBegin(msg streaming.BeginMessage) { r.target.OnSessionBegin(msg) }
func (r *eventsRelay) OnTurn(msg streaming.TurnMessage)         { r.target.OnTurn(msg) }
func (r *eventsRelay) OnTermination(msg streaming.TerminationMessage) {
	r.target.OnTermination(msg)
}
func (r *eventsRelay) OnError(err error) { r.target.OnError(err) }
func (r *eventsRelay) OnClose()          { r.target.OnClose() }

// DefaultRecordDeps returns the default dependencies for production use.
func DefaultRecordDeps() *RecordCommandDeps {
	return &RecordCommandDeps{
		Input:  os.Stdin,
		Output: os.Stdout,
		NewSession: func(ctx context.Context, opts recording.Options) (*recording.Session, func(), error) {
			rt, err := newRuntime(ctx, "dicta")
			if err != nil {
				return nil, nil, err
			}

			apiKey, err := rt.Creds.Resolve(credentials.KeySpeech)
			if err != nil {
				rt.Close()
				return nil, nil, err
			}

			root, err := rt.Config.ResolveStorageRoot()
			if err != nil {
				rt.Close()
				return nil, nil, err
			}

			relay := &eventsRelay{}
			client := streaming.NewClient(streaming.ClientConfig{
				Endpoint: rt.Config.Streaming.Endpoint,
			}, relay, rt.Logger)

			session := recording.NewSession(
				opts,
				audio.NewMicrophoneSource(rt.Logger),
				client,
				streaming.NewHTTPTokenSource(rt.Config.Streaming.TokenEndpoint, apiKey),
				rt.Repo,
				storage.NewFileStore(root, rt.Logger),
				&queueEnqueuer{queue: newProcessQueue(rt), userID: opts.UserID},
				rt.Logger,
			)
			relay.target = session
			return session, rt.Close, nil
		},
	}
}

// NewRecordCommand creates the record command.
func NewRecordCommand(deps *RecordCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultRecordDeps()
	}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a consultation with live transcription",
		Long: `Record a consultation from the default microphone with live streaming
transcription. Audio is archived locally and, unless --local is set, the
finished recording is uploaded and queued for full AI processing.

Interactive controls (type a letter and press Enter):
  p   pause recording (audio is dropped while paused)
  r   resume recording
  q   stop recording and finish

Ctrl-C also stops the recording cleanly.

Examples:
  # Record with a title
  dicta record --title "Initial consultation - Smith"

  # Hint the expected speaker count for attribution
  dicta record --title "Deposition prep" --speakers 3

  # Local-only recording, skipping upload and processing
  dicta record --local`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(cmd.Context(), deps)
		},
	}

	cmd.Flags().StringVarP(&recordTitle, "title", "t", "", "title for the new meeting")
	cmd.Flags().IntVar(&recordSpeakers, "speakers", 0, "expected number of speakers (default from config)")
	cmd.Flags().BoolVar(&recordLocal, "local", false, "record anonymously without upload or processing")

	return cmd
}

func runRecord(ctx context.Context, deps *RecordCommandDeps) error {
	cfg, err := loadRecordConfig()
	if err != nil {
		return err
	}

	opts := recording.Options{
		Title:            recordTitle,
		ExpectedSpeakers: recordSpeakers,
		OnUpdate:         liveRenderer(deps.Output),
	}
	if opts.ExpectedSpeakers == 0 {
		opts.ExpectedSpeakers = cfg.expectedSpeakers
	}
	if !recordLocal && cfg.userID != uuid.Nil {
		opts.UserID = cfg.userID
	}

	session, cleanup, err := deps.NewSession(ctx, opts)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("starting recording: %w", err)
	}

	fmt.Fprintln(deps.Output, "Recording. Controls: [p]ause  [r]esume  [q]uit")

	if err := controlLoop(ctx, deps, session); err != nil {
		return err
	}

	meeting := session.Meeting()
	fmt.Fprintf(deps.Output, "\nStopped after %s. Meeting %s\n",
		session.Duration().Round(time.Second), meeting.ID)
	if opts.UserID == uuid.Nil {
		fmt.Fprintln(deps.Output, "Local recording: no upload, transcript above is final.")
	} else {
		fmt.Fprintln(deps.Output, "Uploading and queueing for processing in the background...")
		session.WaitBackground()
	}
	return nil
}

// recordConfig is the subset of configuration runRecord needs, split out so
// tests can run the command without a config file.
type recordConfig struct {
	userID           uuid.UUID
	expectedSpeakers int
}

func loadRecordConfig() (*recordConfig, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	rc := &recordConfig{expectedSpeakers: cfg.ExpectedSpeakers}
	if cfg.UserID != "" {
		id, err := uuid.Parse(cfg.UserID)
		if err != nil {
			return nil, fmt.Errorf("parsing user_id %q: %w", cfg.UserID, err)
		}
		rc.userID = id
	}
	return rc, nil
}

// liveRenderer writes each finalized turn as a line and partials in place.
func liveRenderer(w io.Writer) func(streaming.Update) {
	return func(u streaming.Update) {
		if u.Finalized != nil {
			fmt.Fprintf(w, "\r\033[K[%s] %s\n", u.Finalized.Speaker, u.Finalized.Text)
			return
		}
		if u.PartialText != "" {
			fmt.Fprintf(w, "\r\033[K... %s", u.PartialText)
		}
	}
}

// controlLoop drives pause/resume/stop from the interactive input until the
// session is stopped or the context is cancelled.
func controlLoop(ctx context.Context, deps *RecordCommandDeps, session *recording.Session) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(deps.Input)
		for scanner.Scan() {
			lines <- strings.TrimSpace(strings.ToLower(scanner.Text()))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return session.Stop(context.Background())
		case <-sigCh:
			return session.Stop(context.Background())
		case line, ok := <-lines:
			if !ok {
				return session.Stop(ctx)
			}
			switch line {
			case "p", "pause":
				if err := session.Pause(); err != nil {
					fmt.Fprintf(deps.Output, "cannot pause: %v\n", err)
				} else {
					fmt.Fprintln(deps.Output, "Paused. Audio is being discarded.")
				}
			case "r", "resume":
				if err := session.Resume(); err != nil {
					fmt.Fprintf(deps.Output, "cannot resume: %v\n", err)
				} else {
					fmt.Fprintln(deps.Output, "Resumed.")
				}
			case "q", "quit", "s", "stop":
				return session.Stop(ctx)
			case "":
				// Bare Enter is a no-op.
			default:
				fmt.Fprintf(deps.Output, "unknown command %q (p/r/q)\n", line)
			}
		}
	}
}
