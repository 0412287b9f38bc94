package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meow-stack/promptchain/internal/promptstore"
	"github.com/meow-stack/promptchain/internal/status"
)

var (
	lsQuery string
	lsJSON  bool
	lsQuiet bool
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List chain prompts",
	Long: `List the chain prompts in this project, most recently updated first.

Examples:
  chain ls                  # All chain prompts
  chain ls --query review   # Name or description contains "review"
  chain ls --json           # Output as JSON`,
	Args: cobra.NoArgs,
	RunE: runLs,
}

func init() {
	lsCmd.Flags().StringVarP(&lsQuery, "query", "q", "", "filter by name or description")
	lsCmd.Flags().BoolVar(&lsJSON, "json", false, "output as JSON")
	lsCmd.Flags().BoolVar(&lsQuiet, "quiet", false, "omit descriptions")
	rootCmd.AddCommand(lsCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	store, _, _, err := openPromptStore()
	if err != nil {
		return err
	}

	prompts, err := store.List(context.Background(), promptstore.Filter{Query: lsQuery})
	if err != nil {
		return fmt.Errorf("listing chain prompts: %w", err)
	}

	if lsJSON {
		return printJSON(prompts)
	}

	fmt.Print(status.FormatPromptList(prompts, formatOptions(lsQuiet)))
	return nil
}
