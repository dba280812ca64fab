// Package cmd provides CLI commands for the dicta tool.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	dterrors "github.com/otherjamesbrown/dicta-cli/pkg/errors"
	"github.com/otherjamesbrown/dicta-cli/pkg/meetings"
	"github.com/otherjamesbrown/dicta-cli/pkg/search"
	"github.com/otherjamesbrown/dicta-cli/pkg/storage"
)

// Meeting command flags.
var (
	meetingLimit  int
	meetingOutput string
	meetingUser   string
	meetingYes    bool
)

// MeetingStores is the persistence surface the meeting commands use.
type MeetingStores struct {
	Repo interface {
		List(ctx context.Context, userID uuid.UUID, limit int) ([]*meetings.Meeting, error)
		Get(ctx context.Context, id uuid.UUID) (*meetings.Meeting, error)
		Segments(ctx context.Context, meetingID uuid.UUID) ([]meetings.TranscriptSegment, error)
		GetAIOutput(ctx context.Context, meetingID uuid.UUID) (*meetings.AIOutput, error)
		Tasks(ctx context.Context, meetingID uuid.UUID) ([]meetings.Task, error)
		Delete(ctx context.Context, id uuid.UUID) error
	}
	DeleteRecording func(ctx context.Context, userID string, meetingID uuid.UUID) error
	DeleteIndex     func(ctx context.Context, meetingID uuid.UUID) error
	DefaultUser     uuid.UUID
}

// MeetingCommandDeps holds the dependencies for the meeting commands.
type MeetingCommandDeps struct {
	// Connect opens the stores. Injectable for tests.
	Connect func(ctx context.Context) (*MeetingStores, func(), error)

	// Output receives command results, normally stdout.
	Output io.Writer
}

// DefaultMeetingDeps returns the default dependencies for production use.
func DefaultMeetingDeps() *MeetingCommandDeps {
	return &MeetingCommandDeps{
		Output: os.Stdout,
		Connect: func(ctx context.Context) (*MeetingStores, func(), error) {
			rt, err := newRuntime(ctx, "dicta")
			if err != nil {
				return nil, nil, err
			}

			root, err := rt.Config.ResolveStorageRoot()
			if err != nil {
				rt.Close()
				return nil, nil, err
			}

			stores := &MeetingStores{Repo: rt.Repo}
			stores.DeleteRecording = storage.NewFileStore(root, rt.Logger).DeleteRecording
			stores.DeleteIndex = search.NewIndex(rt.Redis, rt.Logger).Delete
			if rt.Config.UserID != "" {
				if id, err := uuid.Parse(rt.Config.UserID); err == nil {
					stores.DefaultUser = id
				}
			}
			return stores, rt.Close, nil
		},
	}
}

// NewMeetingCommand creates the meeting command with subcommands.
func NewMeetingCommand(deps *MeetingCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultMeetingDeps()
	}

	cmd := &cobra.Command{
		Use:   "meeting",
		Short: "List, inspect and delete recorded meetings",
		Long: `Manage recorded meetings.

Subcommands:
  list     List recent meetings
  show     Show one meeting with its transcript, summary and tasks
  delete   Delete a meeting, its recording and its search entry`,
	}

	cmd.AddCommand(newMeetingListCommand(deps))
	cmd.AddCommand(newMeetingShowCommand(deps))
	cmd.AddCommand(newMeetingDeleteCommand(deps))

	return cmd
}

func newMeetingListCommand(deps *MeetingCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent meetings",
		Long: `List recent meetings, newest first.

Examples:
  dicta meeting list
  dicta meeting list --limit 50
  dicta meeting list -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMeetingList(cmd.Context(), deps)
		},
	}
	cmd.Flags().IntVar(&meetingLimit, "limit", 20, "maximum number of meetings to list")
	cmd.Flags().StringVarP(&meetingOutput, "output", "o", "text", "output format (text|json)")
	cmd.Flags().StringVar(&meetingUser, "user", "", "list meetings for this user id")
	return cmd
}

func newMeetingShowCommand(deps *MeetingCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <meeting-id>",
		Short: "Show a meeting with transcript, summary and tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMeetingShow(cmd.Context(), deps, args[0])
		},
	}
	cmd.Flags().StringVarP(&meetingOutput, "output", "o", "text", "output format (text|json)")
	return cmd
}

func newMeetingDeleteCommand(deps *MeetingCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <meeting-id>",
		Short: "Delete a meeting, its recording and its search entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMeetingDelete(cmd.Context(), deps, args[0])
		},
	}
	cmd.Flags().BoolVarP(&meetingYes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func runMeetingList(ctx context.Context, deps *MeetingCommandDeps) error {
	stores, cleanup, err := deps.Connect(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	userID := stores.DefaultUser
	if meetingUser != "" {
		userID, err = uuid.Parse(meetingUser)
		if err != nil {
			return fmt.Errorf("invalid user id %q: %w", meetingUser, err)
		}
	}

	list, err := stores.Repo.List(ctx, userID, meetingLimit)
	if err != nil {
		return fmt.Errorf("listing meetings: %w", err)
	}

	if meetingOutput == "json" {
		return printJSON(deps.Output, list)
	}

	if len(list) == 0 {
		fmt.Fprintln(deps.Output, "No meetings found.")
		return nil
	}

	tw := tabwriter.NewWriter(deps.Output, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tDURATION\tRECORDED")
	for _, m := range list {
		title := m.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			m.ID, title, m.Status, formatDuration(m.DurationSeconds),
			m.CreatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

// meetingDetail is the full view of one meeting for JSON output.
type meetingDetail struct {
	Meeting  *meetings.Meeting            `json:"meeting"`
	Segments []meetings.TranscriptSegment `json:"segments,omitempty"`
	Output   *meetings.AIOutput           `json:"ai_output,omitempty"`
	Tasks    []meetings.Task              `json:"tasks,omitempty"`
}

func runMeetingShow(ctx context.Context, deps *MeetingCommandDeps, rawID string) error {
	meetingID, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid meeting id %q: %w", rawID, err)
	}

	stores, cleanup, err := deps.Connect(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	meeting, err := stores.Repo.Get(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("loading meeting %s: %w", meetingID, err)
	}

	detail := &meetingDetail{Meeting: meeting}
	if detail.Segments, err = stores.Repo.Segments(ctx, meetingID); err != nil {
		return fmt.Errorf("loading transcript: %w", err)
	}
	if detail.Output, err = stores.Repo.GetAIOutput(ctx, meetingID); err != nil && !dterrors.IsNotFound(err) {
		return fmt.Errorf("loading AI output: %w", err)
	}
	if detail.Tasks, err = stores.Repo.Tasks(ctx, meetingID); err != nil {
		return fmt.Errorf("loading tasks: %w", err)
	}

	if meetingOutput == "json" {
		return printJSON(deps.Output, detail)
	}

	renderMeetingDetail(deps.Output, detail)
	return nil
}

func renderMeetingDetail(w io.Writer, d *meetingDetail) {
	m := d.Meeting
	title := m.Title
	if title == "" {
		title = "(untitled)"
	}
	fmt.Fprintf(w, "%s\n", title)
	fmt.Fprintf(w, "  ID:       %s\n", m.ID)
	fmt.Fprintf(w, "  Status:   %s\n", m.Status)
	fmt.Fprintf(w, "  Duration: %s\n", formatDuration(m.DurationSeconds))
	fmt.Fprintf(w, "  Recorded: %s\n", m.CreatedAt.Local().Format(time.DateTime))
	if m.ErrorMessage != nil {
		fmt.Fprintf(w, "  Error:    %s\n", *m.ErrorMessage)
	}

	if d.Output != nil {
		fmt.Fprintf(w, "\nSummary\n  %s\n", d.Output.Overview.Summary)
		if len(d.Output.Overview.Topics) > 0 {
			fmt.Fprintf(w, "  Topics: %v\n", d.Output.Overview.Topics)
		}
		if len(d.Output.Overview.Participants) > 0 {
			fmt.Fprintf(w, "  Participants: %v\n", d.Output.Overview.Participants)
		}
	}

	if len(d.Tasks) > 0 {
		fmt.Fprintln(w, "\nTasks")
		for _, task := range d.Tasks {
			line := fmt.Sprintf("  [%s] %s", task.Priority, task.Title)
			if task.Deadline != nil {
				line += " (due " + task.Deadline.Format(time.DateOnly) + ")"
			}
			fmt.Fprintln(w, line)
		}
	}

	if len(d.Segments) > 0 {
		fmt.Fprintln(w, "\nTranscript")
		for _, seg := range d.Segments {
			speaker := derefOr(seg.SpeakerName, string(seg.SpeakerLabel))
			fmt.Fprintf(w, "  [%s] %s\n", speaker, seg.Text)
		}
	}
}

func runMeetingDelete(ctx context.Context, deps *MeetingCommandDeps, rawID string) error {
	meetingID, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid meeting id %q: %w", rawID, err)
	}

	stores, cleanup, err := deps.Connect(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	meeting, err := stores.Repo.Get(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("loading meeting %s: %w", meetingID, err)
	}

	if !meetingYes {
		fmt.Fprintf(deps.Output, "Delete meeting %s (%q) and its recording? [y/N] ", meetingID, meeting.Title)
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Fprintln(deps.Output, "Aborted.")
			return nil
		}
	}

	owner := ""
	if meeting.UserID != uuid.Nil {
		owner = meeting.UserID.String()
	}
	if stores.DeleteRecording != nil {
		if err := stores.DeleteRecording(ctx, owner, meetingID); err != nil {
			return fmt.Errorf("deleting recording: %w", err)
		}
	}
	if stores.DeleteIndex != nil {
		if err := stores.DeleteIndex(ctx, meetingID); err != nil {
			return fmt.Errorf("removing search entry: %w", err)
		}
	}
	if err := stores.Repo.Delete(ctx, meetingID); err != nil {
		return fmt.Errorf("deleting meeting: %w", err)
	}

	fmt.Fprintf(deps.Output, "Meeting %s deleted\n", meetingID)
	return nil
}
