package template

import (
	"fmt"

	"github.com/meow-stack/promptchain/internal/types"
)

// Context is the execution context one run renders against.
type Context struct {
	// Variables maps variable keys to values. A present key with an empty
	// value is resolved; an absent key is missing.
	Variables map[string]string

	// StepOutputs maps 0-based step indices to captured outputs.
	StepOutputs map[int]string
}

// NewContext seeds a context for prompt. Each declared variable takes the
// supplied value when present, else its default, else "".
func NewContext(prompt *types.ChainPrompt, values map[string]string) *Context {
	ctx := &Context{
		Variables:   make(map[string]string, len(prompt.Variables)),
		StepOutputs: make(map[int]string, len(prompt.Steps)),
	}
	for _, v := range prompt.Variables {
		if val, ok := values[v.Key]; ok {
			ctx.Variables[v.Key] = val
			continue
		}
		ctx.Variables[v.Key] = v.Default
	}
	return ctx
}

// HasVariable reports whether key is present, even if empty.
func (c *Context) HasVariable(key string) bool {
	_, ok := c.Variables[key]
	return ok
}

// Output returns the recorded output for a step index.
func (c *Context) Output(index int) (string, bool) {
	out, ok := c.StepOutputs[index]
	return out, ok
}

// RecordOutput stores the output of the step at index. Outputs only ever
// grow: recording an index twice is an error.
func (c *Context) RecordOutput(index int, output string) error {
	if index < 0 {
		return fmt.Errorf("invalid step index %d", index)
	}
	if _, exists := c.StepOutputs[index]; exists {
		return fmt.Errorf("output for step %d already recorded", index+1)
	}
	if c.StepOutputs == nil {
		c.StepOutputs = make(map[int]string)
	}
	c.StepOutputs[index] = output
	return nil
}
