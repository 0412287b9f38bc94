package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/meow-stack/promptchain/internal/types"
)

// FormatOptions controls output formatting.
type FormatOptions struct {
	NoColor  bool
	Quiet    bool // Omit prompts and outputs
	Markdown bool // Render step outputs as markdown
	Width    int  // Markdown word wrap; 0 leaves wrapping to the terminal
	Now      func() time.Time
}

func (o FormatOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

var (
	styleRunning   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	styleSucceeded = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	styleFailed    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleAborted   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	styleDim       = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	styleTitle     = lipgloss.NewStyle().Bold(true)
)

func paint(style lipgloss.Style, s string, opts FormatOptions) string {
	if opts.NoColor {
		return s
	}
	return style.Render(s)
}

// FormatState formats a live run state.
func FormatState(state types.RunState, opts FormatOptions) string {
	if state.RunID == "" {
		return "No run in progress.\n"
	}

	var b strings.Builder
	summary := NewStateSummary(state)

	b.WriteString(formatHeader(summary, opts))
	b.WriteString("\n\n")
	b.WriteString(formatProgress(summary.StepStats))
	b.WriteString("\n\n")

	for _, step := range state.Steps {
		icon, style := stepIcon(step.Status)
		b.WriteString(fmt.Sprintf("  %s %s", paint(style, icon, opts), step.StepName))
		if step.Status == types.StepStatusRunning {
			b.WriteString(paint(styleDim, " (sending)", opts))
		}
		b.WriteString("\n")
		if step.Error != "" {
			b.WriteString(fmt.Sprintf("      %s\n", paint(styleFailed, step.Error, opts)))
		}
		if !opts.Quiet && step.Status == types.StepStatusRunning {
			b.WriteString(indent(step.StepPrompt, "      "))
		}
	}
	return b.String()
}

// FormatResult formats a finished (or partial) run result. totalSteps is
// the prompt's step count, or 0 when unknown.
func FormatResult(r *types.RunResult, totalSteps int, opts FormatOptions) string {
	var b strings.Builder
	summary := NewResultSummary(r, totalSteps)

	b.WriteString(formatHeader(summary, opts))
	b.WriteString("\n\n")
	b.WriteString(formatProgress(summary.StepStats))
	b.WriteString("\n")

	for _, step := range r.Steps {
		status := types.StepStatusSucceeded
		if step.Failed() {
			status = types.StepStatusFailed
		}
		icon, style := stepIcon(status)
		b.WriteString(fmt.Sprintf("\n%s %s\n", paint(style, icon, opts), paint(styleTitle, fmt.Sprintf("Step %d", step.StepIndex+1), opts)))

		if !opts.Quiet {
			b.WriteString(paint(styleDim, "  Prompt:", opts) + "\n")
			b.WriteString(indent(step.InputPrompt, "    "))
		}
		if step.Failed() {
			b.WriteString(fmt.Sprintf("  %s\n", paint(styleFailed, "Error: "+step.Error, opts)))
			continue
		}
		if !opts.Quiet {
			b.WriteString(paint(styleDim, "  Output:", opts) + "\n")
			b.WriteString(indent(formatOutput(step.OutputText, opts), "    "))
		}
	}
	return b.String()
}

// FormatHistory formats a list of recorded runs, one per line.
func FormatHistory(runs []*types.RunResult, opts FormatOptions) string {
	if len(runs) == 0 {
		return "No runs recorded.\n"
	}

	var b strings.Builder
	now := opts.now()
	for _, r := range runs {
		icon, style := runIcon(r.Status)
		line := fmt.Sprintf("%s %-14s %-24s %-10s %s",
			paint(style, icon, opts), r.RunID, truncate(r.PromptName, 24), r.Status, FormatTimeAgo(r.StartedAt, now))
		if r.FinishedAt != nil {
			line += paint(styleDim, fmt.Sprintf(" (took %s)", formatDuration(r.Duration())), opts)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

// FormatPromptList formats stored chain prompts, one per line.
func FormatPromptList(prompts []*types.ChainPrompt, opts FormatOptions) string {
	if len(prompts) == 0 {
		return "No chain prompts.\n"
	}

	var b strings.Builder
	now := opts.now()
	for _, p := range prompts {
		b.WriteString(fmt.Sprintf("%s  %-24s %d step(s)  %s\n",
			paint(styleDim, p.ID, opts), truncate(p.Name, 24), len(p.Steps), FormatTimeAgo(p.UpdatedAt, now)))
		if p.Description != "" && !opts.Quiet {
			b.WriteString("    " + p.Description + "\n")
		}
	}
	return b.String()
}

// FormatPrompt formats one chain prompt with its variables and steps.
func FormatPrompt(p *types.ChainPrompt, opts FormatOptions) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s\n", paint(styleTitle, p.Name, opts), paint(styleDim, "("+p.ID+")", opts)))
	if p.Description != "" {
		b.WriteString(p.Description + "\n")
	}

	if len(p.Variables) > 0 {
		b.WriteString("\nVariables:\n")
		for _, v := range p.Variables {
			if v.Default != "" {
				b.WriteString(fmt.Sprintf("  %s = %q\n", v.Key, v.Default))
			} else {
				b.WriteString(fmt.Sprintf("  %s\n", v.Key))
			}
		}
	}

	b.WriteString("\nSteps:\n")
	for i, s := range p.Steps {
		b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, s.DisplayName(i)))
		if !opts.Quiet {
			b.WriteString(indent(s.Prompt, "     "))
		}
	}
	return b.String()
}

func formatHeader(s *RunSummary, opts FormatOptions) string {
	var b strings.Builder
	icon, style := runIcon(s.Status)

	b.WriteString(fmt.Sprintf("Run:     %s\n", s.RunID))
	b.WriteString(fmt.Sprintf("Prompt:  %s\n", s.PromptName))
	statusText := string(s.Status)
	if s.AbortReason != "" {
		statusText += " (" + string(s.AbortReason) + ")"
	}
	b.WriteString(fmt.Sprintf("Status:  %s", paint(style, icon+" "+statusText, opts)))

	if !s.StartedAt.IsZero() {
		b.WriteString(fmt.Sprintf("\nStarted: %s", formatTime(s.StartedAt)))
		if s.FinishedAt != nil {
			b.WriteString(fmt.Sprintf(" (took %s)", formatDuration(s.FinishedAt.Sub(s.StartedAt))))
		}
	}
	return b.String()
}

func formatProgress(stats StepStats) string {
	done := stats.Finished()
	var percentage int
	if stats.Total > 0 {
		percentage = (done * 100) / stats.Total
	}

	const barWidth = 20
	filled := (percentage * barWidth) / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	return fmt.Sprintf("Progress: %s %d%% (%d/%d steps)", bar, percentage, done, stats.Total)
}

func runIcon(status types.RunStatus) (string, lipgloss.Style) {
	switch status {
	case types.RunStatusRunning:
		return "●", styleRunning
	case types.RunStatusSucceeded:
		return "✓", styleSucceeded
	case types.RunStatusFailed:
		return "✗", styleFailed
	case types.RunStatusAborted:
		return "■", styleAborted
	default:
		return "○", styleDim
	}
}

func stepIcon(status types.StepStatus) (string, lipgloss.Style) {
	switch status {
	case types.StepStatusRunning:
		return "●", styleRunning
	case types.StepStatusSucceeded:
		return "✓", styleSucceeded
	case types.StepStatusFailed:
		return "✗", styleFailed
	default:
		return "○", styleDim
	}
}

func indent(text, prefix string) string {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return ""
	}
	return prefix + strings.ReplaceAll(text, "\n", "\n"+prefix) + "\n"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// FormatTimeAgo formats t relative to now.
func FormatTimeAgo(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Local().Format("Jan 2")
	}
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
