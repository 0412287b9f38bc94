package types

import (
	"time"
)

// RunStatus represents the lifecycle state of a run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"   // No run started, or cleared
	RunStatusRunning   RunStatus = "running"   // Steps are executing
	RunStatusSucceeded RunStatus = "succeeded" // Every step produced output
	RunStatusFailed    RunStatus = "failed"    // A step failed
	RunStatusAborted   RunStatus = "aborted"   // Cancelled by user or navigation
)

// Valid returns true if this is a recognized run status.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusSucceeded,
		RunStatusFailed, RunStatusAborted:
		return true
	}
	return false
}

// IsTerminal returns true if this status is final.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed || s == RunStatusAborted
}

// AbortReason says why a run was cancelled.
type AbortReason string

const (
	AbortUser       AbortReason = "user"
	AbortNavigation AbortReason = "navigation"
)

// Valid returns true if this is a recognized abort reason.
func (r AbortReason) Valid() bool {
	return r == AbortUser || r == AbortNavigation
}

// Error lets an AbortReason travel as a context cancellation cause.
func (r AbortReason) Error() string {
	return "aborted: " + string(r)
}

// RunResultStep records the outcome of one executed step.
type RunResultStep struct {
	StepIndex   int    `yaml:"step_index" json:"step_index"`
	StepID      string `yaml:"step_id" json:"step_id"`
	InputPrompt string `yaml:"input_prompt" json:"input_prompt"`
	OutputText  string `yaml:"output_text,omitempty" json:"output_text,omitempty"`
	Error       string `yaml:"error,omitempty" json:"error,omitempty"`
}

// Failed reports whether the step ended with an error.
func (s RunResultStep) Failed() bool {
	return s.Error != ""
}

// RunResult is the record of one run.
type RunResult struct {
	RunID       string          `yaml:"run_id" json:"run_id"`
	PromptID    string          `yaml:"prompt_id" json:"prompt_id"`
	PromptName  string          `yaml:"prompt_name" json:"prompt_name"`
	Status      RunStatus       `yaml:"status" json:"status"`
	Steps       []RunResultStep `yaml:"steps" json:"steps"`
	StartedAt   time.Time       `yaml:"started_at" json:"started_at"`
	FinishedAt  *time.Time      `yaml:"finished_at,omitempty" json:"finished_at,omitempty"`
	AbortReason AbortReason     `yaml:"abort_reason,omitempty" json:"abort_reason,omitempty"`
}

// NewRunResult creates a running result for the given prompt.
func NewRunResult(runID string, prompt *ChainPrompt) *RunResult {
	return &RunResult{
		RunID:      runID,
		PromptID:   prompt.ID,
		PromptName: prompt.Name,
		Status:     RunStatusRunning,
		Steps:      []RunResultStep{},
		StartedAt:  time.Now(),
	}
}

// AddStep appends a step record. Step records are never rewritten.
func (r *RunResult) AddStep(step RunResultStep) {
	r.Steps = append(r.Steps, step)
}

// Finish sets the terminal status and stamps FinishedAt. Only the first
// call has any effect.
func (r *RunResult) Finish(status RunStatus) {
	if r.FinishedAt != nil {
		return
	}
	now := time.Now()
	r.Status = status
	r.FinishedAt = &now
}

// Abort finishes the run as aborted with the given reason.
func (r *RunResult) Abort(reason AbortReason) {
	if r.FinishedAt != nil {
		return
	}
	r.AbortReason = reason
	r.Finish(RunStatusAborted)
}

// Duration returns how long the run took, or has taken so far.
func (r *RunResult) Duration() time.Duration {
	if r.FinishedAt == nil {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// LastOutput returns the output of the last successful step.
func (r *RunResult) LastOutput() (string, bool) {
	for i := len(r.Steps) - 1; i >= 0; i-- {
		if !r.Steps[i].Failed() {
			return r.Steps[i].OutputText, true
		}
	}
	return "", false
}

// Clone returns a deep copy safe to hand to other goroutines.
func (r *RunResult) Clone() *RunResult {
	c := *r
	c.Steps = append([]RunResultStep(nil), r.Steps...)
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}
