// Package cmd provides CLI commands for the dicta tool.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/dicta-cli/pkg/pipeline"
	"github.com/otherjamesbrown/dicta-cli/pkg/queues"
)

// Process command flags.
var processForeground bool

// ProcessCommandDeps holds the dependencies for the process commands.
type ProcessCommandDeps struct {
	// NewPipeline builds a connected pipeline. Injectable for tests.
	NewPipeline func(ctx context.Context) (*pipeline.Pipeline, *queues.RedisQueue, func(), error)

	// Output receives command results, normally stdout.
	Output io.Writer
}

// DefaultProcessDeps returns the default dependencies for production use.
func DefaultProcessDeps() *ProcessCommandDeps {
	return &ProcessCommandDeps{
		Output: os.Stdout,
		NewPipeline: func(ctx context.Context) (*pipeline.Pipeline, *queues.RedisQueue, func(), error) {
			rt, err := newRuntime(ctx, "dicta")
			if err != nil {
				return nil, nil, nil, err
			}
			p, err := newPipeline(rt)
			if err != nil {
				rt.Close()
				return nil, nil, nil, err
			}
			return p, newProcessQueue(rt), rt.Close, nil
		},
	}
}

// NewProcessCommand creates the process command with run and retry
// subcommands.
func NewProcessCommand(deps *ProcessCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultProcessDeps()
	}

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run or retry AI processing for a meeting",
		Long: `Run the processing pipeline (transcribe, attribute, summarize, index,
finalize) for a recorded meeting, or retry one that failed.

Processing normally happens in the background via 'dicta worker'; these
commands exist for one-off runs and recovery.`,
	}

	cmd.AddCommand(newProcessRunCommand(deps))
	cmd.AddCommand(newProcessRetryCommand(deps))

	return cmd
}

func newProcessRunCommand(deps *ProcessCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <meeting-id>",
		Short: "Process a meeting synchronously in this terminal",
		Long: `Process a meeting synchronously. The pipeline resumes from the last
persisted step, so re-running a partially processed meeting does not redo
completed stages.

Examples:
  dicta process run 8e5b7c1a-2f3d-4a5b-9c6d-7e8f9a0b1c2d`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcessRun(cmd.Context(), deps, args[0])
		},
	}
	return cmd
}

func newProcessRetryCommand(deps *ProcessCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry <meeting-id>",
		Short: "Re-queue a failed meeting for processing",
		Long: `Reset a failed meeting back to queued and hand it to the processing
queue at high priority. Use --foreground to process it immediately in this
terminal instead.

Examples:
  dicta process retry 8e5b7c1a-2f3d-4a5b-9c6d-7e8f9a0b1c2d
  dicta process retry 8e5b7c1a-2f3d-4a5b-9c6d-7e8f9a0b1c2d --foreground`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcessRetry(cmd.Context(), deps, args[0])
		},
	}
	cmd.Flags().BoolVar(&processForeground, "foreground", false, "process immediately instead of queueing")
	return cmd
}

func runProcessRun(ctx context.Context, deps *ProcessCommandDeps, rawID string) error {
	meetingID, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid meeting id %q: %w", rawID, err)
	}

	p, _, cleanup, err := deps.NewPipeline(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	start := time.Now()
	if err := p.Process(ctx, meetingID); err != nil {
		return fmt.Errorf("processing meeting %s: %w", meetingID, err)
	}

	fmt.Fprintf(deps.Output, "Meeting %s processed in %s\n", meetingID, time.Since(start).Round(time.Second))
	return nil
}

func runProcessRetry(ctx context.Context, deps *ProcessCommandDeps, rawID string) error {
	meetingID, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid meeting id %q: %w", rawID, err)
	}

	p, queue, cleanup, err := deps.NewPipeline(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := p.Retry(ctx, meetingID); err != nil {
		return fmt.Errorf("resetting meeting %s: %w", meetingID, err)
	}

	if processForeground {
		if err := p.Process(ctx, meetingID); err != nil {
			return fmt.Errorf("processing meeting %s: %w", meetingID, err)
		}
		fmt.Fprintf(deps.Output, "Meeting %s reprocessed\n", meetingID)
		return nil
	}

	err = queue.Enqueue(ctx, &queues.ProcessMessage{
		MeetingID:  meetingID,
		Priority:   queues.PriorityHigh,
		EnqueuedAt: time.Now().UTC(),
		Retry:      true,
	})
	if err != nil {
		return fmt.Errorf("enqueueing meeting %s: %w", meetingID, err)
	}

	fmt.Fprintf(deps.Output, "Meeting %s queued for reprocessing\n", meetingID)
	return nil
}
