package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var rmYes bool

var rmCmd = &cobra.Command{
	Use:   "rm <prompt>",
	Short: "Delete a chain prompt",
	Args:  cobra.ExactArgs(1),
	RunE:  runRm,
}

func init() {
	rmCmd.Flags().BoolVarP(&rmYes, "yes", "y", false, "do not ask for confirmation")
	rootCmd.AddCommand(rmCmd)
}

func runRm(cmd *cobra.Command, args []string) error {
	store, _, _, err := openPromptStore()
	if err != nil {
		return err
	}

	ctx := context.Background()
	p, err := resolvePrompt(ctx, store, args[0])
	if err != nil {
		return err
	}
	if !rmYes {
		ok, err := prompter().Confirm(fmt.Sprintf("Delete chain prompt %q?", p.Name), false)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Cancelled.")
			return nil
		}
	}
	if err := store.Delete(ctx, p.ID); err != nil {
		return fmt.Errorf("deleting chain prompt: %w", err)
	}

	fmt.Printf("Deleted chain prompt %q (%s)\n", p.Name, p.ID)
	return nil
}
