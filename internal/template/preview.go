package template

import (
	"fmt"
	"sort"

	"github.com/meow-stack/promptchain/internal/types"
)

// StepPreview is the strict rendering of one step outside a run.
type StepPreview struct {
	Index      int
	Name       string
	Rendered   string // Best-effort text when Err is set
	Validation Validation
	Err        error
}

// Preview renders every step of prompt against values and a set of
// hypothetical step outputs, as a run would see them at each step.
func Preview(prompt *types.ChainPrompt, values map[string]string, outputs map[int]string) []StepPreview {
	ctx := NewContext(prompt, values)
	for idx, out := range outputs {
		ctx.StepOutputs[idx] = out
	}

	previews := make([]StepPreview, len(prompt.Steps))
	for i, step := range prompt.Steps {
		p := StepPreview{Index: i, Name: step.DisplayName(i)}
		p.Rendered, p.Validation = RenderWithValidation(step.Prompt, ctx, i)
		if _, err := Render(step.Prompt, ctx, i); err != nil {
			p.Err = err
		}
		previews[i] = p
	}
	return previews
}

// Issue is a static problem found in a chain prompt.
type Issue struct {
	Step    int // 0-based
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("step %d: %s", i.Step+1, i.Message)
}

// Lint checks every step's placeholders against the prompt's declared
// variables and its step order. A clean prompt can only fail to render
// at run time for want of step outputs.
func Lint(prompt *types.ChainPrompt) []Issue {
	declared := make(map[string]bool, len(prompt.Variables))
	for _, v := range prompt.Variables {
		declared[v.Key] = true
	}

	var issues []Issue
	for i, step := range prompt.Steps {
		for _, name := range ExtractPlaceholders(step.Prompt) {
			if idx, ok := StepReference(name); ok {
				switch {
				case idx == i:
					issues = append(issues, Issue{Step: i, Message: fmt.Sprintf("%s refers to its own step", name)})
				case idx > i:
					issues = append(issues, Issue{Step: i, Message: fmt.Sprintf("%s refers to a later step", name)})
				}
				continue
			}
			if !declared[name] {
				issues = append(issues, Issue{Step: i, Message: fmt.Sprintf("undeclared variable %q", name)})
			}
		}
	}
	return issues
}

// UnusedVariables returns declared variables no step references, sorted.
func UnusedVariables(prompt *types.ChainPrompt) []string {
	used := make(map[string]bool)
	for _, step := range prompt.Steps {
		for _, name := range ExtractPlaceholders(step.Prompt) {
			used[name] = true
		}
	}
	var unused []string
	for _, v := range prompt.Variables {
		if !used[v.Key] {
			unused = append(unused, v.Key)
		}
	}
	sort.Strings(unused)
	return unused
}
