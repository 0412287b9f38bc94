package status

import (
	"strings"
	"testing"
	"time"

	"github.com/meow-stack/promptchain/internal/types"
)

var plain = FormatOptions{NoColor: true}

func sampleResult() *types.RunResult {
	started := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	finished := started.Add(95 * time.Second)
	return &types.RunResult{
		RunID:      "run-abc",
		PromptID:   "p1",
		PromptName: "Research",
		Status:     types.RunStatusFailed,
		StartedAt:  started,
		FinishedAt: &finished,
		Steps: []types.RunResultStep{
			{StepIndex: 0, InputPrompt: "Research cats", OutputText: "Cats purr."},
			{StepIndex: 1, InputPrompt: "Summarize: Cats purr.", Error: "response timeout"},
		},
	}
}

func TestFormatResult(t *testing.T) {
	out := FormatResult(sampleResult(), 3, plain)

	for _, want := range []string{
		"Run:     run-abc",
		"Status:  ✗ failed",
		"(took 1m35s)",
		"(2/3 steps)",
		"✓ Step 1",
		"    Research cats",
		"    Cats purr.",
		"✗ Step 2",
		"Error: response timeout",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("NoColor output contains escape codes")
	}
}

func TestFormatResult_Quiet(t *testing.T) {
	out := FormatResult(sampleResult(), 0, FormatOptions{NoColor: true, Quiet: true})
	if strings.Contains(out, "Research cats") || strings.Contains(out, "Cats purr.") {
		t.Errorf("quiet output should omit prompts and outputs:\n%s", out)
	}
	if !strings.Contains(out, "(2/2 steps)") {
		t.Errorf("unknown total should count executed steps:\n%s", out)
	}
}

func TestFormatResult_Aborted(t *testing.T) {
	r := sampleResult()
	r.Status = types.RunStatusAborted
	r.AbortReason = types.AbortNavigation
	out := FormatResult(r, 2, plain)
	if !strings.Contains(out, "■ aborted (navigation)") {
		t.Errorf("output missing abort reason:\n%s", out)
	}
}

func TestFormatState(t *testing.T) {
	if got := FormatState(types.IdleState(), plain); got != "No run in progress.\n" {
		t.Errorf("idle = %q", got)
	}

	state := types.RunState{
		IsRunning:        true,
		RunID:            "run-1",
		PromptName:       "Research",
		CurrentStepIndex: 1,
		TotalSteps:       3,
		Status:           types.RunStatusRunning,
		Steps: []types.StepState{
			{StepIndex: 0, StepName: "Step 1", StepPrompt: "Research cats", Status: types.StepStatusSucceeded},
			{StepIndex: 1, StepName: "Summary", StepPrompt: "Summarize: Cats purr.", Status: types.StepStatusRunning},
			{StepIndex: 2, StepName: "Step 3", StepPrompt: "{{Step2.output}}", Status: types.StepStatusPending},
		},
	}
	out := FormatState(state, plain)
	for _, want := range []string{
		"Status:  ● running",
		"(1/3 steps)",
		"✓ Step 1",
		"● Summary (sending)",
		"      Summarize: Cats purr.",
		"○ Step 3",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatHistory(t *testing.T) {
	if got := FormatHistory(nil, plain); got != "No runs recorded.\n" {
		t.Errorf("empty = %q", got)
	}

	r := sampleResult()
	opts := FormatOptions{NoColor: true, Now: func() time.Time { return r.StartedAt.Add(2 * time.Hour) }}
	out := FormatHistory([]*types.RunResult{r}, opts)
	for _, want := range []string{"✗ run-abc", "Research", "failed", "2h ago", "(took 1m35s)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}
}

func TestFormatPrompt(t *testing.T) {
	p := &types.ChainPrompt{
		ID:          "p1",
		Name:        "Research",
		Description: "Deep dive",
		Variables:   []types.Variable{{Key: "TOPIC"}, {Key: "TONE", Default: "neutral"}},
		Steps: []types.ChainStep{
			{Prompt: "Research {{TOPIC}}"},
			{Name: "Summary", Prompt: "Summarize: {{Step1.output}}"},
		},
	}
	out := FormatPrompt(p, plain)
	for _, want := range []string{"Research (p1)", "Deep dive", "  TOPIC\n", `TONE = "neutral"`, "1. Step 1", "2. Summary", "Summarize: {{Step1.output}}"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	list := FormatPromptList([]*types.ChainPrompt{p}, FormatOptions{NoColor: true, Now: time.Now})
	if !strings.Contains(list, "2 step(s)") {
		t.Errorf("list = %q", list)
	}
}

func TestFormatTimeAgo(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.Local)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{72 * time.Hour, "May 7"},
	}
	for _, tt := range tests {
		if got := FormatTimeAgo(now.Add(-tt.ago), now); got != tt.want {
			t.Errorf("FormatTimeAgo(-%v) = %q, want %q", tt.ago, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{42 * time.Second, "42s"},
		{95 * time.Second, "1m35s"},
		{2*time.Hour + 5*time.Minute, "2h5m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abcdefghij", 5); got != "abcd…" {
		t.Errorf("truncate = %q", got)
	}
}
