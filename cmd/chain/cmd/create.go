package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meow-stack/promptchain/internal/promptstore"
	"github.com/meow-stack/promptchain/internal/template"
)

var createFile string

var createCmd = &cobra.Command{
	Use:   "create -f <file.yaml>",
	Short: "Add a chain prompt from a YAML file",
	Long: `Add a chain prompt from a YAML definition. IDs and timestamps are
assigned by the store and may be omitted.

Example definition:

  name: Research and summarize
  variables:
    - key: TOPIC
  steps:
    - name: Research
      prompt: Research {{TOPIC}}
    - prompt: "Summarize: {{Step1.output}}"`,
	Args: cobra.NoArgs,
	RunE: runCreate,
}

var dupCmd = &cobra.Command{
	Use:   "dup <prompt>",
	Short: "Duplicate a chain prompt",
	Args:  cobra.ExactArgs(1),
	RunE:  runDup,
}

func init() {
	createCmd.Flags().StringVarP(&createFile, "file", "f", "", "chain prompt definition (YAML)")
	_ = createCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(dupCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	store, _, _, err := openPromptStore()
	if err != nil {
		return err
	}

	def, err := promptstore.ParseFile(createFile)
	if err != nil {
		return err
	}
	// IDs in the file are ignored so a definition can be added twice.
	def.ID = ""
	for i := range def.Steps {
		def.Steps[i].ID = ""
	}

	p, err := store.Create(context.Background(), def)
	if err != nil {
		return fmt.Errorf("creating chain prompt: %w", err)
	}

	fmt.Printf("Created chain prompt %q (%s) with %d step(s)\n", p.Name, p.ID, len(p.Steps))
	for _, issue := range template.Lint(p) {
		fmt.Printf("  warning: %s\n", issue)
	}
	return nil
}

func runDup(cmd *cobra.Command, args []string) error {
	store, _, _, err := openPromptStore()
	if err != nil {
		return err
	}

	ctx := context.Background()
	src, err := resolvePrompt(ctx, store, args[0])
	if err != nil {
		return err
	}
	p, err := store.Duplicate(ctx, src.ID)
	if err != nil {
		return fmt.Errorf("duplicating chain prompt: %w", err)
	}

	fmt.Printf("Created chain prompt %q (%s)\n", p.Name, p.ID)
	return nil
}
