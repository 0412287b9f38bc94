package status

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// formatOutput returns a step's output, rendered as markdown when
// opts.Markdown is set. Rendering failures fall back to the raw text.
func formatOutput(text string, opts FormatOptions) string {
	if !opts.Markdown || strings.TrimSpace(text) == "" {
		return text
	}
	out, err := renderMarkdown(text, opts)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n") + "\n"
}

func renderMarkdown(md string, opts FormatOptions) (string, error) {
	style := glamour.WithAutoStyle()
	if opts.NoColor {
		style = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(opts.Width))
	if err != nil {
		return "", err
	}
	return r.Render(md)
}
