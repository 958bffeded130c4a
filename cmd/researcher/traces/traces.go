// Package tracescmder provides the traces command for reading runs recorded
// by the file trace exporter.
package tracescmder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/researcher/cmd/researcher/stack"
	"github.com/papercomputeco/researcher/pkg/cliui"
	"github.com/papercomputeco/researcher/pkg/config"
	"github.com/papercomputeco/researcher/pkg/dotdir"
	"github.com/papercomputeco/researcher/pkg/tracing"
	"github.com/papercomputeco/researcher/pkg/tracing/file"
)

const tracesLongDesc string = `Show recorded traces.

With tracing enabled and the file exporter selected, every ask, search and
index run is appended to traces/<project>.jsonl in the researcher directory.
This command prints the most recent runs grouped by trace, children indented
under their parent.

Examples:
  researcher traces
  researcher traces --limit 200 --project experiments
  researcher traces --json | jq 'select(.status == "error")'`

const tracesShortDesc string = "Show recorded traces"

type tracesCommander struct {
	project string
	limit   int
	jsonOut bool
}

func NewTracesCmd() *cobra.Command {
	cmder := &tracesCommander{}

	cmd := &cobra.Command{
		Use:   "traces",
		Short: tracesShortDesc,
		Long:  tracesLongDesc,
		Args:  cobra.NoArgs,
		RunE:  cmder.run,
	}

	config.AddStringFlag(cmd, config.Registry, config.FlagTraceProject, &cmder.project)
	cmd.Flags().IntVarP(&cmder.limit, "limit", "n", 50, "Number of most recent runs to read (0 for all)")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print runs as JSON lines")

	return cmd
}

func (c *tracesCommander) run(cmd *cobra.Command, _ []string) error {
	cfg, err := stack.LoadConfig(cmd, []string{config.FlagTraceProject})
	if err != nil {
		return err
	}
	configDir, _ := cmd.Flags().GetString("config-dir")
	dir, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return err
	}

	runs, err := file.ReadRuns(file.Path(dir, cfg.Tracing.Project), c.limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if c.jsonOut {
		enc := json.NewEncoder(out)
		for _, run := range runs {
			if err := enc.Encode(run); err != nil {
				return err
			}
		}
		return nil
	}

	if len(runs) == 0 {
		fmt.Fprintf(out, "No traces recorded for project %q.\n", cfg.Tracing.Project)
		return nil
	}
	return Print(out, runs)
}

// Print writes runs as trees, one per trace, in the order each trace first
// appears.
func Print(w io.Writer, runs []*tracing.Run) error {
	if len(runs) == 0 {
		return errors.New("no runs to print")
	}

	children := map[string][]*tracing.Run{}
	byID := map[string]*tracing.Run{}
	for _, run := range runs {
		byID[run.ID] = run
	}

	var roots []*tracing.Run
	for _, run := range runs {
		// Runs whose parent fell outside the window are shown as roots.
		if _, ok := byID[run.ParentRunID]; run.ParentRunID == "" || !ok {
			roots = append(roots, run)
			continue
		}
		children[run.ParentRunID] = append(children[run.ParentRunID], run)
	}

	// Runs are written as they end, so order each level by start time.
	sortByStart(roots)
	for _, c := range children {
		sortByStart(c)
	}

	for _, root := range roots {
		lipgloss.Fprintf(w, "%s %s\n",
			cliui.HeaderStyle.Render("trace"),
			cliui.DimStyle.Render(root.TraceID),
		)
		printRun(w, root, children, 1)
		fmt.Fprintln(w)
	}
	return nil
}

func printRun(w io.Writer, run *tracing.Run, children map[string][]*tracing.Run, depth int) {
	status := cliui.SuccessMark
	if run.Status == tracing.StatusError {
		status = cliui.FailMark
	}

	lipgloss.Fprintf(w, "%s%s %s %s %s %s\n",
		strings.Repeat("  ", depth),
		status,
		cliui.NameStyle.Render(run.Name),
		cliui.KeyStyle.Render("["+run.RunType+"]"),
		cliui.ScoreStyle.Render(cliui.FormatDuration(run.Duration())),
		cliui.DimStyle.Render(run.StartTime.Local().Format("2006-01-02 15:04:05")),
	)
	if run.Error != "" {
		lipgloss.Fprintf(w, "%s  %s\n",
			strings.Repeat("  ", depth),
			cliui.ErrorStyle.Render(run.Error),
		)
	}

	for _, child := range children[run.ID] {
		printRun(w, child, children, depth+1)
	}
}

func sortByStart(runs []*tracing.Run) {
	slices.SortStableFunc(runs, func(a, b *tracing.Run) int {
		return a.StartTime.Compare(b.StartTime)
	})
}
