// Package template resolves {{name}} placeholders in chain prompt steps.
//
// Two kinds of placeholder exist. {{StepN.output}}, with N a positive
// integer, refers to the output of the Nth step (index N-1). Anything else
// names a variable. The package is pure: no I/O, no shared state.
package template

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// NoStep is passed as the step index when rendering outside a run, so
// back-references are never classified as forward references.
const NoStep = -1

// placeholderPattern matches {{...}} with no closing brace inside.
var placeholderPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

var stepRefPattern = regexp.MustCompile(`^Step([1-9][0-9]*)\.output$`)

// ExtractPlaceholders returns the distinct placeholder names in tmpl, trimmed,
// in order of first appearance. Placeholders that are blank after trimming
// are ignored.
func ExtractPlaceholders(tmpl string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(tmpl, -1)
	names := make([]string, 0, len(matches))
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		name := strings.TrimSpace(m[1])
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// StepReference reports whether name is a back-reference and, if so, the
// 0-based index of the step it refers to.
func StepReference(name string) (int, bool) {
	m := stepRefPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		// Out of int range: refers to a step that can never exist.
		return math.MaxInt, true
	}
	return n - 1, true
}
