package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/meow-stack/promptchain/internal/config"
	"github.com/meow-stack/promptchain/internal/promptstore"
	"github.com/meow-stack/promptchain/internal/types"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a chain project",
	Long: `Initialize a chain project in the current directory.

Creates the following structure:

  .chain/
  ├── config.toml      # Project configuration
  ├── prompts/         # Chain prompts (one YAML file each)
  └── logs/            # Per-run log files (gitignored)

The run history database (.chain/history.db) is created on the first run.
An example chain prompt is added unless --skip-example is given.`,
	RunE: runInit,
}

var initSkipExample bool

func init() {
	initCmd.Flags().BoolVar(&initSkipExample, "skip-example", false, "do not create the example chain prompt")
	rootCmd.AddCommand(initCmd)
}

// examplePrompt is the chain prompt created by init.
func examplePrompt() *types.ChainPrompt {
	return &types.ChainPrompt{
		Name:        "Research and summarize",
		Description: "Research a topic, then condense the findings",
		Variables:   []types.Variable{{Key: "TOPIC"}},
		Steps: []types.ChainStep{
			{Name: "Research", Prompt: "Research {{TOPIC}} and list the key facts."},
			{Name: "Summary", Prompt: "Summarize the following in three sentences:\n\n{{Step1.output}}"},
		},
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := getWorkDir()
	if err != nil {
		return err
	}

	chainDir := filepath.Join(dir, ".chain")
	if _, err := os.Stat(chainDir); err == nil {
		return fmt.Errorf("chain project already initialized (found .chain directory)")
	}

	fmt.Println("Initializing chain project...")

	cfg := config.Default()
	for _, d := range []string{chainDir, cfg.PromptsDir(dir), cfg.LogsDir(dir)} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	configPath := filepath.Join(chainDir, "config.toml")
	if err := os.WriteFile(configPath, []byte(config.Template), 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	gitignorePath := filepath.Join(chainDir, ".gitignore")
	if err := os.WriteFile(gitignorePath, []byte("logs/\nhistory.db*\n"), 0644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	if !initSkipExample {
		store, err := promptstore.NewYAMLStore(cfg.PromptsDir(dir))
		if err != nil {
			return fmt.Errorf("opening prompt store: %w", err)
		}
		p, err := store.Create(context.Background(), examplePrompt())
		if err != nil {
			return fmt.Errorf("creating example prompt: %w", err)
		}
		fmt.Printf("Created example chain prompt %q (%s)\n", p.Name, p.ID)
	}

	fmt.Println("Created .chain/config.toml")
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  chain ls                         # list chain prompts")
	fmt.Println("  chain run <id> --var TOPIC=...   # run one")
	return nil
}
