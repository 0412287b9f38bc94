package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meow-stack/promptchain/internal/template"
)

var (
	renderVars    []string
	renderVarFile string
	renderOutputs []string
	renderStrict  bool
)

var renderCmd = &cobra.Command{
	Use:   "render <prompt>",
	Short: "Preview the rendered steps of a chain prompt",
	Long: `Render every step of a chain prompt without sending anything.

Step outputs are not known before a run, so --output supplies stand-ins
for them. Placeholders that cannot be resolved are shown verbatim and
listed under the step.

Examples:
  chain render research --var TOPIC=cats
  chain render research --var-file vars.env
  chain render research --var TOPIC=cats --output 1="Cats purr."
  chain render research --strict     # fail on any unresolved placeholder`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringArrayVar(&renderVars, "var", nil, "variable values (format: name=value)")
	renderCmd.Flags().StringVar(&renderVarFile, "var-file", "", "read variables from a .env file (--var overrides)")
	renderCmd.Flags().StringArrayVar(&renderOutputs, "output", nil, "stand-in step output (format: step=text, step is 1-based)")
	renderCmd.Flags().BoolVar(&renderStrict, "strict", false, "fail if any step has unresolved placeholders")
	rootCmd.AddCommand(renderCmd)
}

// parseOutputs parses repeated N=text flags into 0-based step outputs.
func parseOutputs(pairs []string) (map[int]string, error) {
	outputs := make(map[int]string, len(pairs))
	for _, pair := range pairs {
		num, text, ok := strings.Cut(pair, "=")
		n, err := strconv.Atoi(num)
		if !ok || err != nil || n < 1 {
			return nil, fmt.Errorf("invalid output format: %s (expected step=text with step >= 1)", pair)
		}
		outputs[n-1] = text
	}
	return outputs, nil
}

func runRender(cmd *cobra.Command, args []string) error {
	vars, err := loadVars(renderVarFile, renderVars)
	if err != nil {
		return err
	}
	outputs, err := parseOutputs(renderOutputs)
	if err != nil {
		return err
	}

	store, _, _, err := openPromptStore()
	if err != nil {
		return err
	}
	p, err := resolvePrompt(context.Background(), store, args[0])
	if err != nil {
		return err
	}

	unresolved := 0
	for _, preview := range template.Preview(p, vars, outputs) {
		fmt.Printf("── %d. %s\n", preview.Index+1, preview.Name)
		fmt.Println(preview.Rendered)
		if v := preview.Validation; !v.Valid {
			unresolved++
			if len(v.MissingVariables) > 0 {
				fmt.Printf("   missing: %s\n", strings.Join(v.MissingVariables, ", "))
			}
			if len(v.InvalidReferences) > 0 {
				fmt.Printf("   invalid: %s\n", strings.Join(v.InvalidReferences, ", "))
			}
		}
		fmt.Println()
	}

	if renderStrict && unresolved > 0 {
		return fmt.Errorf("%d step(s) have unresolved placeholders", unresolved)
	}
	return nil
}
