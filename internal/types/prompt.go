// Package types holds the data model shared by the template engine, the
// executor, the run coordinator and storage.
package types

import (
	"fmt"
	"time"
)

// Variable is a named input to a chain prompt.
type Variable struct {
	Key     string `yaml:"key" json:"key" jsonschema:"required"`
	Default string `yaml:"default,omitempty" json:"default,omitempty"`
}

// ChainStep is one prompt template in a chain.
type ChainStep struct {
	ID     string `yaml:"id" json:"id"`
	Name   string `yaml:"name,omitempty" json:"name,omitempty"`
	Prompt string `yaml:"prompt" json:"prompt" jsonschema:"required"`
}

// DisplayName returns the step name, or "Step N" when unnamed.
func (s ChainStep) DisplayName(index int) string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("Step %d", index+1)
}

// ChainPrompt is a user-authored, ordered sequence of prompt templates.
type ChainPrompt struct {
	ID          string      `yaml:"id" json:"id"`
	Name        string      `yaml:"name" json:"name" jsonschema:"required"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	Variables   []Variable  `yaml:"variables,omitempty" json:"variables,omitempty"`
	Steps       []ChainStep `yaml:"steps" json:"steps" jsonschema:"required,minItems=1"`
	CreatedAt   time.Time   `yaml:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `yaml:"updated_at" json:"updated_at"`
}

// Validate checks the structural invariants of a chain prompt.
func (p *ChainPrompt) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}

	seen := make(map[string]bool, len(p.Variables))
	for i, v := range p.Variables {
		if v.Key == "" {
			return fmt.Errorf("variable %d: key is required", i+1)
		}
		if seen[v.Key] {
			return fmt.Errorf("duplicate variable key %q", v.Key)
		}
		seen[v.Key] = true
	}

	stepIDs := make(map[string]bool, len(p.Steps))
	for i, s := range p.Steps {
		if s.Prompt == "" {
			return fmt.Errorf("step %d: prompt is required", i+1)
		}
		if s.ID == "" {
			continue
		}
		if stepIDs[s.ID] {
			return fmt.Errorf("duplicate step id %q", s.ID)
		}
		stepIDs[s.ID] = true
	}
	return nil
}

// Variable returns the declared variable with the given key.
func (p *ChainPrompt) Variable(key string) (Variable, bool) {
	for _, v := range p.Variables {
		if v.Key == key {
			return v, true
		}
	}
	return Variable{}, false
}

// Clone returns a deep copy. A run executes against a clone so edits to
// the stored prompt never affect it.
func (p *ChainPrompt) Clone() *ChainPrompt {
	c := *p
	c.Variables = append([]Variable(nil), p.Variables...)
	c.Steps = append([]ChainStep(nil), p.Steps...)
	return &c
}
