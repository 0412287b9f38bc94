package types

// StepStatus is the display status of one step in a run.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusSucceeded StepStatus = "succeeded"
	StepStatusFailed    StepStatus = "failed"
)

// IsTerminal returns true if this status is final.
func (s StepStatus) IsTerminal() bool {
	return s == StepStatusSucceeded || s == StepStatusFailed
}

// StepState is the observable state of one step.
type StepState struct {
	StepIndex  int        `json:"step_index"`
	StepName   string     `json:"step_name"`
	StepPrompt string     `json:"step_prompt"`
	Status     StepStatus `json:"status"`
	Error      string     `json:"error,omitempty"`
}

// RunState is the observable projection of a coordinator's current run.
// CurrentStepIndex is -1 before the first step starts.
type RunState struct {
	IsRunning        bool        `json:"is_running"`
	RunID            string      `json:"run_id,omitempty"`
	PromptID         string      `json:"prompt_id,omitempty"`
	PromptName       string      `json:"prompt_name,omitempty"`
	CurrentStepIndex int         `json:"current_step_index"`
	TotalSteps       int         `json:"total_steps"`
	Status           RunStatus   `json:"status"`
	AbortReason      AbortReason `json:"abort_reason,omitempty"`
	Steps            []StepState `json:"steps"`
}

// IdleState is the state of a coordinator with no run.
func IdleState() RunState {
	return RunState{
		CurrentStepIndex: -1,
		Status:           RunStatusPending,
		Steps:            []StepState{},
	}
}

// Clone returns a copy whose Steps slice is not shared.
func (s RunState) Clone() RunState {
	steps := make([]StepState, len(s.Steps))
	copy(steps, s.Steps)
	s.Steps = steps
	return s
}

// Completed counts steps that succeeded.
func (s RunState) Completed() int {
	n := 0
	for _, st := range s.Steps {
		if st.Status == StepStatusSucceeded {
			n++
		}
	}
	return n
}
