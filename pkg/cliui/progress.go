package cliui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
)

// ErrInterrupted is returned by RunProgress when the user presses ctrl+c.
var ErrInterrupted = errors.New("interrupted")

// ReportFunc records that done of total units of stage are finished.
type ReportFunc func(stage string, done, total int)

// RunProgress runs fn while drawing a progress bar on w. fn reports its
// progress through report and must stop when ctx is cancelled. Writers that
// are not terminals get a plain line every tenth of the way instead.
func RunProgress(ctx context.Context, w io.Writer, title string, fn func(ctx context.Context, report ReportFunc) error) error {
	if !IsTerminal(w) {
		return fn(ctx, newPlainReporter(w, title).report)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newProgressModel(title), tea.WithOutput(w), tea.WithContext(ctx))

	fnErr := make(chan error, 1)
	go func() {
		err := fn(ctx, func(stage string, done, total int) {
			p.Send(progressMsg{stage: stage, done: done, total: total})
		})
		fnErr <- err
		p.Send(finishedMsg{err: err})
	}()

	final, runErr := p.Run()
	if m, ok := final.(progressModel); ok && m.interrupted {
		cancel()
		<-fnErr
		return ErrInterrupted
	}
	if runErr != nil {
		cancel()
		err := <-fnErr
		if err == nil && !errors.Is(runErr, tea.ErrProgramKilled) {
			err = runErr
		}
		return err
	}
	return <-fnErr
}

type progressMsg struct {
	stage string
	done  int
	total int
}

type finishedMsg struct {
	err error
}

type progressModel struct {
	title       string
	stage       string
	done        int
	total       int
	bar         progress.Model
	err         error
	finished    bool
	interrupted bool
}

func newProgressModel(title string) progressModel {
	return progressModel{
		title: title,
		bar:   progress.New(progress.WithDefaultBlend(), progress.WithWidth(40)),
	}
}

func (m progressModel) Init() tea.Cmd {
	return nil
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		m.stage = msg.stage
		m.done = msg.done
		m.total = msg.total
		return m, m.bar.SetPercent(fraction(msg.done, msg.total))

	case finishedMsg:
		m.finished = true
		m.err = msg.err
		return m, tea.Quit

	case tea.KeyPressMsg:
		if msg.String() == "ctrl+c" {
			m.interrupted = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.bar.SetWidth(max(10, min(msg.Width-8, 60)))

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.bar, cmd = m.bar.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m progressModel) View() tea.View {
	if m.finished {
		return tea.NewView(fmt.Sprintf("  %s %s %s\n",
			Mark(m.err), m.title, StepStyle.Render(fmt.Sprintf("(%d/%d)", m.done, m.total))))
	}

	stage := m.stage
	if stage == "" {
		stage = "starting"
	}
	return tea.NewView(fmt.Sprintf("  %s %s\n  %s %s\n",
		HeaderStyle.Render(m.title),
		DimStyle.Render(stage),
		m.bar.View(),
		StepStyle.Render(fmt.Sprintf("%d/%d", m.done, m.total)),
	))
}

func fraction(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(done) / float64(total)
}

// plainReporter prints progress lines for logs and pipes.
type plainReporter struct {
	w     io.Writer
	title string

	mu     sync.Mutex
	stage  string
	tenths int
}

func newPlainReporter(w io.Writer, title string) *plainReporter {
	return &plainReporter{w: w, title: title, tenths: -1}
}

func (r *plainReporter) report(stage string, done, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if stage != r.stage {
		r.stage = stage
		r.tenths = -1
	}
	tenths := int(fraction(done, total) * 10)
	if tenths <= r.tenths {
		return
	}
	r.tenths = tenths
	lipgloss.Fprintf(r.w, "  %s %s %d/%d (%.0f%%)\n",
		r.title, stage, done, total, fraction(done, total)*100)
}
