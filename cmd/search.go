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

	"github.com/otherjamesbrown/dicta-cli/pkg/meetings"
	"github.com/otherjamesbrown/dicta-cli/pkg/search"
)

// Search command flags.
var (
	searchLimit  int
	searchOutput string
)

// SearchCommandDeps holds the dependencies for the search command.
type SearchCommandDeps struct {
	// Connect returns the query function and a meeting loader. Injectable
	// for tests.
	Connect func(ctx context.Context) (searchBackend, func(), error)

	// Output receives command results, normally stdout.
	Output io.Writer
}

type searchBackend struct {
	Query func(ctx context.Context, query string, limit int) ([]uuid.UUID, error)
	Get   func(ctx context.Context, id uuid.UUID) (*meetings.Meeting, error)
}

// DefaultSearchDeps returns the default dependencies for production use.
func DefaultSearchDeps() *SearchCommandDeps {
	return &SearchCommandDeps{
		Output: os.Stdout,
		Connect: func(ctx context.Context) (searchBackend, func(), error) {
			rt, err := newRuntime(ctx, "dicta")
			if err != nil {
				return searchBackend{}, nil, err
			}
			return searchBackend{
				Query: search.NewIndex(rt.Redis, rt.Logger).Query,
				Get:   rt.Repo.Get,
			}, rt.Close, nil
		},
	}
}

// NewSearchCommand creates the search command.
func NewSearchCommand(deps *SearchCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultSearchDeps()
	}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search processed meetings",
		Long: `Search processed meetings by their denormalized search text: summary,
topics, participants, speaker names and transcript content.

Only meetings that completed processing are indexed.

Examples:
  dicta search "statute of limitations"
  dicta search deposition --limit 5
  dicta search "settlement offer" -o json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := args[0]
			for _, arg := range args[1:] {
				query += " " + arg
			}
			return runSearch(cmd.Context(), deps, query)
		},
	}

	cmd.Flags().IntVar(&searchLimit, "limit", 20, "maximum number of results")
	cmd.Flags().StringVarP(&searchOutput, "output", "o", "text", "output format (text|json)")

	return cmd
}

func runSearch(ctx context.Context, deps *SearchCommandDeps, query string) error {
	backend, cleanup, err := deps.Connect(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	ids, err := backend.Query(ctx, query, searchLimit)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	var results []*meetings.Meeting
	for _, id := range ids {
		m, err := backend.Get(ctx, id)
		if err != nil {
			// Index entries can outlive deleted meetings; skip them.
			continue
		}
		results = append(results, m)
	}

	if searchOutput == "json" {
		if results == nil {
			results = []*meetings.Meeting{}
		}
		return printJSON(deps.Output, results)
	}

	if len(results) == 0 {
		fmt.Fprintf(deps.Output, "No meetings matched %q.\n", query)
		return nil
	}

	tw := tabwriter.NewWriter(deps.Output, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tDURATION\tRECORDED")
	for _, m := range results {
		title := m.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			m.ID, title, formatDuration(m.DurationSeconds),
			m.CreatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}
