package runner

import (
	"sync"

	"github.com/meow-stack/promptchain/internal/types"
)

// stateStore owns the observable RunState of one coordinator. Updates come
// from the run goroutine; subscribers are called outside the lock, in
// subscription order.
type stateStore struct {
	mu     sync.Mutex
	state  types.RunState
	nextID int
	subs   []subscriber
}

type subscriber struct {
	id int
	fn func(types.RunState)
}

func newStateStore() *stateStore {
	return &stateStore{state: types.IdleState()}
}

func (s *stateStore) get() types.RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

func (s *stateStore) subscribe(fn func(types.RunState)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// update applies fn to the state and publishes the result.
func (s *stateStore) update(fn func(*types.RunState)) {
	s.mu.Lock()
	fn(&s.state)
	snapshot := s.state.Clone()
	subs := append([]subscriber(nil), s.subs...)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(snapshot)
	}
}

func (s *stateStore) begin(result *types.RunResult, prompt *types.ChainPrompt) {
	s.update(func(st *types.RunState) {
		*st = types.RunState{
			IsRunning:        true,
			RunID:            result.RunID,
			PromptID:         prompt.ID,
			PromptName:       prompt.Name,
			CurrentStepIndex: -1,
			TotalSteps:       len(prompt.Steps),
			Status:           types.RunStatusRunning,
			Steps:            make([]types.StepState, len(prompt.Steps)),
		}
		for i, step := range prompt.Steps {
			st.Steps[i] = types.StepState{
				StepIndex:  i,
				StepName:   step.DisplayName(i),
				StepPrompt: step.Prompt,
				Status:     types.StepStatusPending,
			}
		}
	})
}

func (s *stateStore) stepStarted(index int, rendered string) {
	s.update(func(st *types.RunState) {
		st.CurrentStepIndex = index
		st.Steps[index].StepPrompt = rendered
		st.Steps[index].Status = types.StepStatusRunning
	})
}

func (s *stateStore) stepSucceeded(index int) {
	s.update(func(st *types.RunState) {
		st.Steps[index].Status = types.StepStatusSucceeded
	})
}

func (s *stateStore) stepFailed(index int, msg string) {
	s.update(func(st *types.RunState) {
		st.Steps[index].Status = types.StepStatusFailed
		st.Steps[index].Error = msg
	})
}

func (s *stateStore) finish(result *types.RunResult) {
	s.update(func(st *types.RunState) {
		st.IsRunning = false
		st.Status = result.Status
		st.AbortReason = result.AbortReason
	})
}

func (s *stateStore) reset() {
	s.update(func(st *types.RunState) {
		*st = types.IdleState()
	})
}
