package template

import (
	"strings"

	chainerr "github.com/meow-stack/promptchain/internal/errors"
)

// Validation is the outcome of checking a template against a context.
type Validation struct {
	Valid             bool     `json:"valid"`
	MissingVariables  []string `json:"missing_variables,omitempty"`
	InvalidReferences []string `json:"invalid_references,omitempty"`
}

// Validate classifies every placeholder in tmpl. step is the index of the
// step being rendered, or NoStep.
//
// A back-reference is invalid when it points at the current or a later
// step, and missing when it points at an earlier step with no recorded
// output. A variable is missing only when its key is absent.
func Validate(tmpl string, ctx *Context, step int) Validation {
	v := Validation{Valid: true}
	for _, name := range ExtractPlaceholders(tmpl) {
		if idx, ok := StepReference(name); ok {
			if step != NoStep && idx >= step {
				v.InvalidReferences = append(v.InvalidReferences, name)
			} else if _, ok := ctx.Output(idx); !ok {
				v.MissingVariables = append(v.MissingVariables, name)
			}
			continue
		}
		if !ctx.HasVariable(name) {
			v.MissingVariables = append(v.MissingVariables, name)
		}
	}
	v.Valid = len(v.MissingVariables) == 0 && len(v.InvalidReferences) == 0
	return v
}

// Render substitutes every placeholder in tmpl. If any placeholder is
// missing or invalid it returns a TMPL_001 error and no text.
func Render(tmpl string, ctx *Context, step int) (string, error) {
	v := Validate(tmpl, ctx, step)
	if !v.Valid {
		return "", chainerr.TemplateValidation(v.MissingVariables, v.InvalidReferences)
	}
	return substitute(tmpl, ctx, step), nil
}

// RenderWithValidation substitutes what it can and leaves every unresolved
// placeholder verbatim. It never fails; callers decide what to do with an
// invalid Validation.
func RenderWithValidation(tmpl string, ctx *Context, step int) (string, Validation) {
	return substitute(tmpl, ctx, step), Validate(tmpl, ctx, step)
}

// substitute makes a single pass over tmpl. Substituted values are not
// scanned again, so an output containing "{{X}}" is inserted literally.
func substitute(tmpl string, ctx *Context, step int) string {
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := strings.TrimSpace(match[2 : len(match)-2])
		if name == "" {
			return match
		}
		if val, ok := resolve(name, ctx, step); ok {
			return val
		}
		return match
	})
}

func resolve(name string, ctx *Context, step int) (string, bool) {
	if idx, ok := StepReference(name); ok {
		if step != NoStep && idx >= step {
			return "", false
		}
		return ctx.Output(idx)
	}
	val, ok := ctx.Variables[name]
	return val, ok
}
