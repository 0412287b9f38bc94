package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meow-stack/promptchain/internal/status"
)

var showJSON bool

var showCmd = &cobra.Command{
	Use:   "show <prompt>",
	Short: "Show a chain prompt",
	Long: `Show a chain prompt's variables and step templates.

The prompt may be given by ID, unique ID prefix, or exact name.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	store, _, _, err := openPromptStore()
	if err != nil {
		return err
	}

	p, err := resolvePrompt(context.Background(), store, args[0])
	if err != nil {
		return err
	}

	if showJSON {
		return printJSON(p)
	}

	fmt.Print(status.FormatPrompt(p, formatOptions(false)))
	return nil
}
