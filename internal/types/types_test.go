package types

import (
	"errors"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func samplePrompt() *ChainPrompt {
	return &ChainPrompt{
		ID:   "p-1",
		Name: "Research",
		Variables: []Variable{
			{Key: "TOPIC"},
			{Key: "TONE", Default: "neutral"},
		},
		Steps: []ChainStep{
			{ID: "s-1", Prompt: "Research {{TOPIC}}"},
			{ID: "s-2", Name: "Summarize", Prompt: "Summarize: {{Step1.output}}"},
		},
	}
}

func TestChainPrompt_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ChainPrompt)
		wantErr string
	}{
		{"valid", func(*ChainPrompt) {}, ""},
		{"no name", func(p *ChainPrompt) { p.Name = "" }, "name"},
		{"no steps", func(p *ChainPrompt) { p.Steps = nil }, "at least one step"},
		{"empty key", func(p *ChainPrompt) { p.Variables[0].Key = "" }, "key is required"},
		{"duplicate key", func(p *ChainPrompt) { p.Variables[1].Key = "TOPIC" }, "duplicate variable"},
		{"empty prompt", func(p *ChainPrompt) { p.Steps[1].Prompt = "" }, "step 2"},
		{"duplicate step id", func(p *ChainPrompt) { p.Steps[1].ID = "s-1" }, "duplicate step id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := samplePrompt()
			tt.mutate(p)
			err := p.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestChainPrompt_CloneIsIndependent(t *testing.T) {
	p := samplePrompt()
	c := p.Clone()

	c.Steps[0].Prompt = "changed"
	c.Variables[0].Default = "changed"

	if p.Steps[0].Prompt == "changed" || p.Variables[0].Default == "changed" {
		t.Error("Clone shares slices with the original")
	}
}

func TestChainStep_DisplayName(t *testing.T) {
	p := samplePrompt()
	if got := p.Steps[0].DisplayName(0); got != "Step 1" {
		t.Errorf("DisplayName = %q, want Step 1", got)
	}
	if got := p.Steps[1].DisplayName(1); got != "Summarize" {
		t.Errorf("DisplayName = %q, want Summarize", got)
	}
}

func TestChainPrompt_YAMLRoundTrip(t *testing.T) {
	data, err := yaml.Marshal(samplePrompt())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), "{{Step1.output}}") {
		t.Errorf("placeholder should survive YAML encoding:\n%s", data)
	}

	var back ChainPrompt
	if err := yaml.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back.Steps[1].Name != "Summarize" || back.Variables[1].Default != "neutral" {
		t.Errorf("round trip lost fields: %+v", back)
	}
}

func TestRunStatus(t *testing.T) {
	for _, s := range []RunStatus{RunStatusSucceeded, RunStatusFailed, RunStatusAborted} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []RunStatus{RunStatusPending, RunStatusRunning} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if RunStatus("done").Valid() {
		t.Error("unknown status should be invalid")
	}
}

func TestRunResult_FinishStampsOnce(t *testing.T) {
	r := NewRunResult("run-1", samplePrompt())
	if r.Status != RunStatusRunning || r.FinishedAt != nil {
		t.Fatalf("new result should be running and unfinished: %+v", r)
	}

	r.Finish(RunStatusSucceeded)
	first := *r.FinishedAt

	r.Finish(RunStatusFailed)
	r.Abort(AbortUser)

	if r.Status != RunStatusSucceeded {
		t.Errorf("Status = %s, want succeeded", r.Status)
	}
	if !r.FinishedAt.Equal(first) {
		t.Error("FinishedAt was re-stamped")
	}
	if r.AbortReason != "" {
		t.Errorf("AbortReason = %q, want empty", r.AbortReason)
	}
}

func TestRunResult_Abort(t *testing.T) {
	r := NewRunResult("run-1", samplePrompt())
	r.Abort(AbortNavigation)

	if r.Status != RunStatusAborted {
		t.Errorf("Status = %s, want aborted", r.Status)
	}
	if r.AbortReason != AbortNavigation {
		t.Errorf("AbortReason = %s, want navigation", r.AbortReason)
	}
}

func TestRunResult_LastOutput(t *testing.T) {
	r := NewRunResult("run-1", samplePrompt())
	if _, ok := r.LastOutput(); ok {
		t.Error("empty result has no output")
	}
	r.AddStep(RunResultStep{StepIndex: 0, OutputText: "one"})
	r.AddStep(RunResultStep{StepIndex: 1, Error: "boom"})

	if got, ok := r.LastOutput(); !ok || got != "one" {
		t.Errorf("LastOutput = %q, %v", got, ok)
	}
}

func TestAbortReason_AsCause(t *testing.T) {
	var err error = AbortNavigation
	var reason AbortReason
	if !errors.As(err, &reason) || reason != AbortNavigation {
		t.Errorf("AbortReason should be recoverable with errors.As, got %v", reason)
	}
	if AbortReason("tab").Valid() {
		t.Error("unknown reason should be invalid")
	}
}

func TestRunState_CloneAndCompleted(t *testing.T) {
	s := IdleState()
	if s.CurrentStepIndex != -1 || s.Steps == nil {
		t.Fatalf("IdleState = %+v", s)
	}

	s.Steps = []StepState{
		{StepIndex: 0, Status: StepStatusSucceeded},
		{StepIndex: 1, Status: StepStatusRunning},
	}
	c := s.Clone()
	c.Steps[1].Status = StepStatusFailed

	if s.Steps[1].Status != StepStatusRunning {
		t.Error("Clone shares Steps with the original")
	}
	if s.Completed() != 1 {
		t.Errorf("Completed = %d, want 1", s.Completed())
	}
}
