// Package status renders run state, run results and history for humans.
package status

import (
	"fmt"
	"time"

	"github.com/meow-stack/promptchain/internal/types"
)

// RunSummary contains computed information about a run for display.
type RunSummary struct {
	RunID       string            `json:"run_id"`
	PromptName  string            `json:"prompt_name"`
	Status      types.RunStatus   `json:"status"`
	AbortReason types.AbortReason `json:"abort_reason,omitempty"`
	StartedAt   time.Time         `json:"started_at,omitempty"`
	FinishedAt  *time.Time        `json:"finished_at,omitempty"`
	StepStats   StepStats         `json:"step_stats"`
	CurrentStep string            `json:"current_step,omitempty"`
	Errors      []string          `json:"errors,omitempty"`
}

// StepStats contains step count breakdown.
type StepStats struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Running   int `json:"running"`
	Pending   int `json:"pending"`
	Failed    int `json:"failed"`
}

// Finished returns the number of steps that reached a final status.
func (s StepStats) Finished() int {
	return s.Succeeded + s.Failed
}

// NewStateSummary summarizes a live run state.
func NewStateSummary(state types.RunState) *RunSummary {
	summary := &RunSummary{
		RunID:       state.RunID,
		PromptName:  state.PromptName,
		Status:      state.Status,
		AbortReason: state.AbortReason,
		StepStats:   StepStats{Total: state.TotalSteps},
	}

	for _, step := range state.Steps {
		switch step.Status {
		case types.StepStatusSucceeded:
			summary.StepStats.Succeeded++
		case types.StepStatusRunning:
			summary.StepStats.Running++
			summary.CurrentStep = step.StepName
		case types.StepStatusPending:
			summary.StepStats.Pending++
		case types.StepStatusFailed:
			summary.StepStats.Failed++
			if step.Error != "" {
				summary.Errors = append(summary.Errors, step.StepName+": "+step.Error)
			}
		}
	}
	return summary
}

// NewResultSummary summarizes a run result. totalSteps is the prompt's
// step count; pass 0 when unknown and only executed steps are counted.
func NewResultSummary(r *types.RunResult, totalSteps int) *RunSummary {
	summary := &RunSummary{
		RunID:       r.RunID,
		PromptName:  r.PromptName,
		Status:      r.Status,
		AbortReason: r.AbortReason,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
	}

	for _, step := range r.Steps {
		if step.Failed() {
			summary.StepStats.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("Step %d: %s", step.StepIndex+1, step.Error))
		} else {
			summary.StepStats.Succeeded++
		}
	}

	summary.StepStats.Total = max(totalSteps, len(r.Steps))
	summary.StepStats.Pending = summary.StepStats.Total - len(r.Steps)
	return summary
}
