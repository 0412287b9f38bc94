package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meow-stack/promptchain/internal/promptstore"
	"github.com/meow-stack/promptchain/internal/template"
	"github.com/meow-stack/promptchain/internal/types"
)

var validateFile string

var validateCmd = &cobra.Command{
	Use:   "validate [prompt]",
	Short: "Check a chain prompt's placeholders",
	Long: `Check a stored chain prompt, or a YAML definition given with -f.

Reports structural problems, placeholders that name undeclared variables,
step references to the same or a later step, and declared variables no
step uses. Unused variables are warnings; everything else fails.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&validateFile, "file", "f", "", "validate a YAML definition instead of a stored prompt")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	var (
		p   *types.ChainPrompt
		err error
	)
	switch {
	case validateFile != "" && len(args) > 0:
		return fmt.Errorf("give either a prompt or --file, not both")
	case validateFile != "":
		p, err = promptstore.ParseFile(validateFile)
	case len(args) == 1:
		var store *promptstore.YAMLStore
		if store, _, _, err = openPromptStore(); err == nil {
			p, err = resolvePrompt(context.Background(), store, args[0])
		}
	default:
		return fmt.Errorf("a prompt or --file is required")
	}
	if err != nil {
		return err
	}

	problems := 0
	if err := p.Validate(); err != nil {
		fmt.Printf("✗ %v\n", err)
		problems++
	}
	for _, issue := range template.Lint(p) {
		fmt.Printf("✗ %s\n", issue)
		problems++
	}
	for _, key := range template.UnusedVariables(p) {
		fmt.Printf("! variable %q is never used\n", key)
	}

	if problems > 0 {
		return fmt.Errorf("%s: %d problem(s)", p.Name, problems)
	}
	fmt.Printf("✓ %s is valid (%d step(s))\n", p.Name, len(p.Steps))
	return nil
}
