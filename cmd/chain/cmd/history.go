package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meow-stack/promptchain/internal/history"
	"github.com/meow-stack/promptchain/internal/status"
	"github.com/meow-stack/promptchain/internal/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded runs",
	Long: `Inspect the runs recorded in .chain/history.db.

Examples:
  chain history                       # Most recent runs
  chain history ls --status failed    # Failed runs only
  chain history show run-1a2b3c4d     # Prompts and outputs of one run
  chain history rm run-1a2b3c4d`,
	Args: cobra.NoArgs,
	RunE: runHistoryLs,
}

var (
	historyPrompt string
	historyStatus string
	historyLimit  int
	historyJSON   bool
	historyQuiet  bool
)

var historyLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List recorded runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runHistoryLs,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one recorded run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyRmYes bool

var historyRmCmd = &cobra.Command{
	Use:   "rm <run-id>",
	Short: "Delete a recorded run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryRm,
}

func init() {
	historyCmd.PersistentFlags().BoolVarP(&historyJSON, "json", "j", false, "output as JSON")
	historyCmd.PersistentFlags().BoolVarP(&historyQuiet, "quiet", "q", false, "omit prompts and outputs")
	for _, c := range []*cobra.Command{historyCmd, historyLsCmd} {
		c.Flags().StringVar(&historyPrompt, "prompt", "", "only runs of this chain prompt")
		c.Flags().StringVar(&historyStatus, "status", "", "only runs with this status (succeeded, failed, aborted)")
		c.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum runs to list")
	}
	historyRmCmd.Flags().BoolVarP(&historyRmYes, "yes", "y", false, "do not ask for confirmation")
	historyCmd.AddCommand(historyLsCmd, historyShowCmd, historyRmCmd)
	rootCmd.AddCommand(historyCmd)
}

func openHistory() (*history.Store, error) {
	dir, err := getWorkDir()
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(dir)
	if err != nil {
		return nil, err
	}
	return history.Open(cfg.HistoryDB(dir))
}

func runHistoryLs(cmd *cobra.Command, args []string) error {
	filter := history.Filter{Status: types.RunStatus(historyStatus), Limit: historyLimit}
	switch filter.Status {
	case "", types.RunStatusSucceeded, types.RunStatusFailed, types.RunStatusAborted:
	default:
		return fmt.Errorf("invalid status %q (want succeeded, failed or aborted)", historyStatus)
	}

	if historyPrompt != "" {
		store, _, _, err := openPromptStore()
		if err != nil {
			return err
		}
		p, err := resolvePrompt(context.Background(), store, historyPrompt)
		if err != nil {
			return err
		}
		filter.PromptID = p.ID
	}

	hist, err := openHistory()
	if err != nil {
		return err
	}
	defer hist.Close()

	runs, err := hist.ListRuns(context.Background(), filter)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}

	if historyJSON {
		return printJSON(runs)
	}
	fmt.Print(status.FormatHistory(runs, formatOptions(historyQuiet)))
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	hist, err := openHistory()
	if err != nil {
		return err
	}
	defer hist.Close()

	run, err := hist.GetRun(context.Background(), args[0])
	if err != nil {
		return err
	}

	if historyJSON {
		return printJSON(run)
	}
	fmt.Print(status.FormatResult(run, 0, formatOptions(historyQuiet)))
	return nil
}

func runHistoryRm(cmd *cobra.Command, args []string) error {
	hist, err := openHistory()
	if err != nil {
		return err
	}
	defer hist.Close()

	if !historyRmYes {
		ok, err := prompter().Confirm(fmt.Sprintf("Delete run %s?", args[0]), false)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Cancelled.")
			return nil
		}
	}
	if err := hist.DeleteRun(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted run %s\n", args[0])
	return nil
}
