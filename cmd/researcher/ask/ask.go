// Package askcmder provides the ask command: retrieve the most relevant
// excerpts for a question and answer it from them.
package askcmder

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/researcher/cmd/researcher/stack"
	"github.com/papercomputeco/researcher/pkg/cliui"
	"github.com/papercomputeco/researcher/pkg/research"
)

const askLongDesc string = `Answer a research question from the indexed documents.

The question is embedded and the most similar contextualized chunks are
retrieved from the index. They are passed to the chat model as numbered
excerpts, and the answer cites them as [n].

The answer streams to the terminal as it is generated. Use --no-stream to
wait for the full answer and render it as Markdown, or --json for machine
readable output including sources, token usage and cost.

Examples:
  researcher ask "What drives permafrost thaw?"
  researcher ask "Summarize the findings on ocean heat" --top-k 10
  researcher ask "Compare the two studies" --model claude-3-5-sonnet-20241022 --no-stream
  researcher "What drives permafrost thaw?"`

const askShortDesc string = "Answer a question from the indexed documents"

type askCommander struct {
	flags    stack.Flags
	noStream bool
	jsonOut  bool
}

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE:  cmder.RunE,
	}

	cmder.flags.AddQueryFlags(cmd)
	cmd.Flags().BoolVar(&cmder.noStream, "no-stream", false, "Wait for the full answer and render it as Markdown")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the answer, sources, usage and cost as JSON")

	return cmd
}

// RunE answers the question formed by args. The root command reuses it so
// that "researcher <question>" behaves like "researcher ask <question>".
func (c *askCommander) RunE(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return research.ErrEmptyQuestion
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	log := stack.NewLogger(cmd)
	s, err := stack.OpenForCommand(ctx, cmd, stack.QueryFlags, log)
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	stream := !c.noStream && !c.jsonOut && cliui.IsTerminal(out)

	opts := research.AskOptions{}
	if stream {
		opts.OnToken = func(text string) error {
			_, err := io.WriteString(out, text)
			return err
		}
		fmt.Fprintln(out)
	}

	var answer *research.Answer
	if stream || c.jsonOut {
		answer, err = s.Researcher.Ask(ctx, question, opts)
	} else {
		err = cliui.Step(cmd.ErrOrStderr(), "Researching", func() error {
			var askErr error
			answer, askErr = s.Researcher.Ask(ctx, question, opts)
			return askErr
		})
	}
	if err != nil {
		return err
	}

	if c.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	}

	if stream {
		fmt.Fprint(out, "\n\n")
	} else {
		rendered, err := cliui.RenderMarkdown(answer.Text)
		if err != nil {
			return err
		}
		fmt.Fprint(out, rendered)
	}

	PrintSources(out, answer)
	return nil
}

// NewRootRunE returns the ask behaviour for the root command, registering
// the ask flags on root.
func NewRootRunE(root *cobra.Command) func(cmd *cobra.Command, args []string) error {
	cmder := &askCommander{}
	cmder.flags.AddQueryFlags(root)
	root.Flags().BoolVar(&cmder.noStream, "no-stream", false, "Wait for the full answer and render it as Markdown")
	root.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the answer, sources, usage and cost as JSON")

	return func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return cmder.RunE(cmd, args)
	}
}

// PrintSources lists the excerpts an answer was given, then its model, token
// usage and cost.
func PrintSources(w io.Writer, answer *research.Answer) {
	if len(answer.Sources) > 0 {
		lipgloss.Fprintf(w, "  %s\n", cliui.HeaderStyle.Render("Sources"))
		for _, src := range answer.Sources {
			lipgloss.Fprintf(w, "  %s %s  %s\n",
				cliui.RankStyle.Render(fmt.Sprintf("[%d]", src.N)),
				cliui.SourceStyle.Render(src.Label()),
				cliui.ScoreStyle.Render(fmt.Sprintf("similarity: %.4f", src.Similarity)),
			)
		}
		lipgloss.Fprintln(w)
	}

	lipgloss.Fprintf(w, "  %s\n\n", cliui.DimStyle.Render(summary(answer)))
}

func summary(answer *research.Answer) string {
	parts := []string{answer.Model}
	if answer.Usage != nil {
		parts = append(parts, fmt.Sprintf("%d in / %d out tokens",
			answer.Usage.PromptTokens, answer.Usage.CompletionTokens))
	}
	if answer.Cost.Total > 0 {
		parts = append(parts, fmt.Sprintf("$%.4f", answer.Cost.Total))
	}
	return strings.Join(parts, " · ")
}

