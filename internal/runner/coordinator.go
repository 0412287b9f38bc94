// Package runner coordinates chain prompt runs: it renders each step
// against the run's context, hands it to the step executor, records the
// output and owns the run's cancellation and observable state.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	chainerr "github.com/meow-stack/promptchain/internal/errors"
	"github.com/meow-stack/promptchain/internal/host"
	"github.com/meow-stack/promptchain/internal/logging"
	"github.com/meow-stack/promptchain/internal/template"
	"github.com/meow-stack/promptchain/internal/types"
)

// StepExecutor executes one rendered prompt against an editor.
type StepExecutor interface {
	Execute(ctx context.Context, prompt string, editor host.Editor) (string, error)
}

// ResultRecorder persists finished runs.
type ResultRecorder interface {
	SaveRun(ctx context.Context, result *types.RunResult) error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRecorder records every finished run.
func WithRecorder(r ResultRecorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

// WithIDGenerator overrides run ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(c *Coordinator) { c.newID = fn }
}

// Coordinator runs chain prompts one at a time against a single editor.
type Coordinator struct {
	editor   host.Editor
	exec     StepExecutor
	logger   *slog.Logger
	recorder ResultRecorder
	newID    func() string
	state    *stateStore

	mu      sync.Mutex
	running bool
	runID   string
	cancel  context.CancelCauseFunc
	result  *types.RunResult
}

// New creates a coordinator.
func New(editor host.Editor, exec StepExecutor, logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		editor: editor,
		exec:   exec,
		logger: logger.With("component", "runner"),
		newID:  func() string { return "run-" + uuid.NewString()[:8] },
		state:  newStateStore(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// run is one started run.
type run struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	prompt *types.ChainPrompt
	vars   *template.Context
	result *types.RunResult
	logger *slog.Logger
}

// Start runs prompt to completion and returns its result. It fails only
// when a run is already in progress or the prompt is malformed; step
// failures and aborts are reported in the result.
func (c *Coordinator) Start(ctx context.Context, prompt *types.ChainPrompt, values map[string]string) (*types.RunResult, error) {
	r, err := c.begin(ctx, prompt, values)
	if err != nil {
		return nil, err
	}
	return c.execute(r), nil
}

// StartAsync starts a run in the background. The channel receives the
// result once the run ends.
func (c *Coordinator) StartAsync(ctx context.Context, prompt *types.ChainPrompt, values map[string]string) (<-chan *types.RunResult, error) {
	r, err := c.begin(ctx, prompt, values)
	if err != nil {
		return nil, err
	}
	done := make(chan *types.RunResult, 1)
	go func() {
		done <- c.execute(r)
	}()
	return done, nil
}

func (c *Coordinator) begin(ctx context.Context, prompt *types.ChainPrompt, values map[string]string) (*run, error) {
	if prompt == nil {
		return nil, chainerr.PromptInvalid("", "prompt is nil")
	}
	if err := prompt.Validate(); err != nil {
		return nil, chainerr.PromptInvalid(prompt.ID, err.Error())
	}

	c.mu.Lock()
	if c.running {
		runID := c.runID
		c.mu.Unlock()
		return nil, chainerr.RunAlreadyActive(runID)
	}

	snapshot := prompt.Clone()
	runCtx, cancel := context.WithCancelCause(ctx)
	r := &run{
		ctx:    runCtx,
		cancel: cancel,
		prompt: snapshot,
		vars:   template.NewContext(snapshot, values),
		result: types.NewRunResult(c.newID(), snapshot),
	}
	r.logger = logging.WithPrompt(logging.WithRun(c.logger, r.result.RunID), snapshot.ID, snapshot.Name)

	c.running = true
	c.runID = r.result.RunID
	c.cancel = cancel
	c.result = nil
	c.mu.Unlock()

	c.state.begin(r.result, snapshot)
	r.logger.Info("run started", "steps", len(snapshot.Steps))
	return r, nil
}

func (c *Coordinator) execute(r *run) *types.RunResult {
	defer r.cancel(nil)

	for i, step := range r.prompt.Steps {
		if r.ctx.Err() != nil {
			r.result.Abort(abortReason(r.ctx))
			break
		}
		if !c.executeStep(r, i, step) {
			break
		}
	}
	if c.seal(r) {
		r.result.Abort(abortReason(r.ctx))
	}
	r.result.Finish(types.RunStatusSucceeded)

	final := r.result.Clone()
	c.mu.Lock()
	c.running = false
	c.cancel = nil
	c.result = final
	c.mu.Unlock()

	c.state.finish(final)
	r.logger.Info("run finished",
		"status", final.Status,
		"abort_reason", final.AbortReason,
		"steps_executed", len(final.Steps),
		"duration", final.Duration(),
	)

	if c.recorder != nil {
		if err := c.recorder.SaveRun(context.WithoutCancel(r.ctx), final); err != nil {
			r.logger.Warn("failed to record run", "error", err)
		}
	}
	return final.Clone()
}

// executeStep runs step i and reports whether the run should continue.
func (c *Coordinator) executeStep(r *run, i int, step types.ChainStep) bool {
	logger := logging.WithStep(r.logger, i, step.ID)

	rendered, v := template.RenderWithValidation(step.Prompt, r.vars, i)
	if !v.Valid {
		logger.Warn("sending step with unresolved placeholders",
			"missing", v.MissingVariables,
			"invalid", v.InvalidReferences,
		)
	}

	c.state.stepStarted(i, rendered)
	logger.Info("step started")

	record := types.RunResultStep{
		StepIndex:   i,
		StepID:      step.ID,
		InputPrompt: rendered,
	}

	out, err := c.exec.Execute(r.ctx, rendered, c.editor)
	if err != nil {
		if chainerr.IsCancellation(err) || c.seal(r) {
			c.abortStep(r, record, logger)
			return false
		}
		record.Error = err.Error()
		r.result.AddStep(record)
		c.state.stepFailed(i, record.Error)
		r.result.Finish(types.RunStatusFailed)
		logger.Error("step failed", "error", err, "code", chainerr.Code(err))
		return false
	}

	if err := r.vars.RecordOutput(i, out); err != nil {
		if c.seal(r) {
			c.abortStep(r, record, logger)
			return false
		}
		record.Error = fmt.Sprintf("recording step output: %v", err)
		r.result.AddStep(record)
		c.state.stepFailed(i, record.Error)
		r.result.Finish(types.RunStatusFailed)
		return false
	}
	record.OutputText = out
	r.result.AddStep(record)
	c.state.stepSucceeded(i)
	logger.Info("step succeeded", "output_chars", len(out))
	return true
}

// abortStep records the step in progress as aborted and ends the run.
func (c *Coordinator) abortStep(r *run, record types.RunResultStep, logger *slog.Logger) {
	reason := abortReason(r.ctx)
	record.Error = reason.Error()
	r.result.AddStep(record)
	c.state.stepFailed(record.StepIndex, record.Error)
	r.result.Abort(reason)
	logger.Info("step aborted", "reason", reason)
}

// seal stops Abort from reaching r before the run settles on an outcome
// other than aborted. It reports whether an abort got in first.
func (c *Coordinator) seal(r *run) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancel = nil
	return r.ctx.Err() != nil
}

// abortReason extracts the reason a run context was cancelled. A parent
// context cancelled without a reason counts as a user abort.
func abortReason(ctx context.Context) types.AbortReason {
	var reason types.AbortReason
	if errors.As(context.Cause(ctx), &reason) {
		return reason
	}
	return types.AbortUser
}

// Abort cancels the current run with reason. It returns false when no run
// is in progress or the run has already settled on its outcome; when it
// returns true the run ends aborted. Repeated aborts keep the first reason.
func (c *Coordinator) Abort(reason types.AbortReason) bool {
	if !reason.Valid() {
		reason = types.AbortUser
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || c.cancel == nil {
		return false
	}
	c.cancel(reason)
	c.logger.Info("abort requested", "run_id", c.runID, "reason", reason)
	return true
}

// Clear returns a finished coordinator to the pending state. It does
// nothing while a run is in progress.
func (c *Coordinator) Clear() bool {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return false
	}
	c.result = nil
	c.runID = ""
	c.mu.Unlock()

	c.state.reset()
	return true
}

// IsRunning reports whether a run is in progress.
func (c *Coordinator) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Result returns the last finished run's result, or nil.
func (c *Coordinator) Result() *types.RunResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return nil
	}
	return c.result.Clone()
}

// State returns a snapshot of the observable run state.
func (c *Coordinator) State() types.RunState {
	return c.state.get()
}

// Subscribe registers fn for state changes and returns a func that
// unsubscribes it.
func (c *Coordinator) Subscribe(fn func(types.RunState)) func() {
	return c.state.subscribe(fn)
}
