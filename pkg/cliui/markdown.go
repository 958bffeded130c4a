package cliui

import (
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
)

// maxWrap keeps rendered answers readable on very wide terminals.
const maxWrap = 100

// RenderMarkdown renders markdown content for terminal display using glamour,
// wrapped to the terminal width.
func RenderMarkdown(content string) (string, error) {
	return RenderMarkdownWidth(content, min(TerminalWidth(80), maxWrap))
}

// RenderMarkdownWidth renders markdown wrapped at width cells. Output that
// is not going to a terminal gets the plain "notty" style.
func RenderMarkdownWidth(content string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(markdownStyle()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content, err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}

	return rendered, nil
}

func markdownStyle() string {
	switch {
	case !IsTerminal(os.Stdout):
		return "notty"
	case termenv.HasDarkBackground():
		return "dark"
	default:
		return "light"
	}
}
