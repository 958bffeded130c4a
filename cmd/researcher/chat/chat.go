// Package chatcmder provides the chat command for an interactive research
// conversation over the indexed documents.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	askcmder "github.com/papercomputeco/researcher/cmd/researcher/ask"
	"github.com/papercomputeco/researcher/cmd/researcher/stack"
	"github.com/papercomputeco/researcher/pkg/cliui"
	"github.com/papercomputeco/researcher/pkg/dotdir"
	"github.com/papercomputeco/researcher/pkg/llm"
	"github.com/papercomputeco/researcher/pkg/research"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("researcher> ")
)

const chatLongDesc string = `Start an interactive research conversation.

Every message retrieves fresh excerpts from the index, and earlier turns are
sent along as history so follow-up questions make sense. The conversation is
saved to the researcher directory after each answer.

Commands:
  /sources  list the excerpts behind the last answer
  /reset    forget the conversation
  /exit     quit (Ctrl+D also works)

Examples:
  researcher chat
  researcher chat --resume
  researcher chat --model gpt-4o-mini --top-k 8`

const chatShortDesc string = "Interactive research conversation"

type chatCommander struct {
	flags  stack.Flags
	resume bool
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE:  cmder.run,
	}

	cmder.flags.AddQueryFlags(cmd)
	cmd.Flags().BoolVar(&cmder.resume, "resume", false, "Continue the last saved conversation")

	return cmd
}

func (c *chatCommander) run(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	log := stack.NewLogger(cmd)
	s, err := stack.OpenForCommand(ctx, cmd, stack.QueryFlags, log)
	if err != nil {
		return err
	}
	defer s.Close()

	configDir, _ := cmd.Flags().GetString("config-dir")
	out := cmd.OutOrStdout()

	r := &REPL{
		Session:  s.Researcher.NewSession(int(s.Config.Research.MaxHistory)),
		Store:    &dirStore{manager: dotdir.NewManager(), dir: configDir, model: s.Config.LLM.Model},
		In:       cmd.InOrStdin(),
		Out:      out,
		ErrOut:   cmd.ErrOrStderr(),
		Stream:   cliui.IsTerminal(out),
		RenderMD: cliui.IsTerminal(out),
		Model:    s.Config.LLM.Model,
		Resume:   c.resume,
		Logger:   log,
	}
	return r.Run(ctx)
}

// SessionStore persists a conversation between runs.
type SessionStore interface {
	Load() ([]research.Turn, error)
	Save(turns []research.Turn) error
	Clear() error
}

// REPL reads questions line by line and answers them within one session.
type REPL struct {
	Session *research.Session

	// Store may be nil, in which case nothing is saved.
	Store SessionStore

	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer

	// Stream writes tokens as they arrive. Otherwise the full answer is
	// printed, rendered as Markdown when RenderMD is set.
	Stream   bool
	RenderMD bool

	Model  string
	Resume bool
	Logger *slog.Logger
}

// Run loops until /exit, end of input or ctx is done.
func (r *REPL) Run(ctx context.Context) error {
	if r.Logger == nil {
		r.Logger = slog.Default()
	}
	fmt.Fprintln(r.Out)
	if err := r.restore(); err != nil {
		return err
	}
	fmt.Fprintf(r.Out, "  %s %s\n\n",
		cliui.KeyStyle.Render("Model:"),
		cliui.NameStyle.Render(r.Model),
	)
	fmt.Fprintf(r.Out, "  %s\n\n", cliui.DimStyle.Render("Ask a question and press Enter. /sources, /reset, /exit or Ctrl+D."))

	scanner := bufio.NewScanner(r.In)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		if ctx.Err() != nil {
			break
		}
		fmt.Fprint(r.Out, userPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "/exit", "/quit":
			fmt.Fprintln(r.Out)
			return nil
		case "/reset":
			r.Session.Reset()
			if r.Store != nil {
				if err := r.Store.Clear(); err != nil {
					r.Logger.Warn("could not clear saved session", "error", err)
				}
			}
			fmt.Fprintf(r.Out, "  %s Conversation cleared\n\n", cliui.SuccessMark)
			continue
		case "/sources":
			r.printSources()
			continue
		}

		if err := r.turn(ctx, input); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			fmt.Fprintf(r.ErrOut, "  %s %v\n\n", cliui.FailMark, err)
			continue
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(r.Out)
	return nil
}

func (r *REPL) restore() error {
	if !r.Resume || r.Store == nil {
		fmt.Fprintf(r.Out, "  %s New conversation\n", cliui.DimStyle.Render("●"))
		return nil
	}

	turns, err := r.Store.Load()
	if err != nil {
		return fmt.Errorf("loading saved session: %w", err)
	}
	if len(turns) == 0 {
		fmt.Fprintf(r.Out, "  %s No saved conversation, starting a new one\n", cliui.DimStyle.Render("●"))
		return nil
	}

	r.Session.Restore(turns)
	fmt.Fprintf(r.Out, "  %s Resuming conversation %s\n",
		cliui.SuccessMark,
		cliui.DimStyle.Render(fmt.Sprintf("(%d turns)", r.Session.Len())),
	)
	return nil
}

func (r *REPL) turn(ctx context.Context, question string) error {
	opts := research.AskOptions{}
	if r.Stream {
		fmt.Fprint(r.Out, assistantPrompt)
		opts.OnToken = func(text string) error {
			_, err := io.WriteString(r.Out, text)
			return err
		}
	}

	answer, err := r.Session.Ask(ctx, question, opts)
	if err != nil {
		if r.Stream {
			fmt.Fprintln(r.Out)
		}
		return err
	}

	switch {
	case r.Stream:
		fmt.Fprint(r.Out, "\n\n")
	case r.RenderMD:
		rendered, err := cliui.RenderMarkdown(answer.Text)
		if err != nil {
			return err
		}
		fmt.Fprint(r.Out, rendered)
	default:
		fmt.Fprintf(r.Out, "%s\n\n", answer.Text)
	}

	if r.Store != nil {
		if err := r.Store.Save(r.Session.Turns()); err != nil {
			r.Logger.Warn("could not save session", "error", err)
		}
	}
	return nil
}

func (r *REPL) printSources() {
	last := r.Session.Last()
	if last == nil {
		fmt.Fprintf(r.Out, "  %s\n\n", cliui.DimStyle.Render("No answer yet."))
		return
	}
	askcmder.PrintSources(r.Out, last)
}

// dirStore saves sessions as session.json in the researcher directory.
type dirStore struct {
	manager *dotdir.Manager
	dir     string
	model   string
}

func (d *dirStore) Load() ([]research.Turn, error) {
	state, err := d.manager.LoadSession(d.dir)
	if err != nil || state == nil {
		return nil, err
	}
	return TurnsFromState(state), nil
}

func (d *dirStore) Save(turns []research.Turn) error {
	return d.manager.SaveSession(StateFromTurns(d.model, turns), d.dir)
}

func (d *dirStore) Clear() error {
	return d.manager.ClearSession(d.dir)
}

// StateFromTurns flattens turns into alternating user and assistant
// messages.
func StateFromTurns(model string, turns []research.Turn) *dotdir.SessionState {
	state := &dotdir.SessionState{
		Model: model,
		Turns: make([]dotdir.SessionTurn, 0, 2*len(turns)),
	}
	for _, t := range turns {
		state.Turns = append(state.Turns,
			dotdir.SessionTurn{Role: llm.RoleUser, Content: t.Question},
			dotdir.SessionTurn{Role: llm.RoleAssistant, Content: t.Answer},
		)
	}
	return state
}

// TurnsFromState pairs each user message with the assistant message that
// follows it. Unanswered questions are dropped.
func TurnsFromState(state *dotdir.SessionState) []research.Turn {
	var turns []research.Turn
	for i := 0; i+1 < len(state.Turns); i++ {
		q, a := state.Turns[i], state.Turns[i+1]
		if q.Role != llm.RoleUser || a.Role != llm.RoleAssistant {
			continue
		}
		turns = append(turns, research.Turn{Question: q.Content, Answer: a.Content})
		i++
	}
	return turns
}
