package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/meow-stack/promptchain/internal/cli"
	"github.com/meow-stack/promptchain/internal/config"
	chainerr "github.com/meow-stack/promptchain/internal/errors"
	"github.com/meow-stack/promptchain/internal/promptstore"
	"github.com/meow-stack/promptchain/internal/status"
	"github.com/meow-stack/promptchain/internal/types"
)

var (
	// Version is set at build time via ldflags
	Version = "dev"

	// stdin feeds interactive prompts
	stdin io.Reader = os.Stdin

	// Global flags
	verbose    bool
	workDir    string
	noColor    bool
	markdown   bool
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "chain",
	Short: "Run chained prompts against a chat UI",
	Long: `chain drives a chat interface through a sequence of prompts, one step
at a time. Each step is a template that may reference declared variables
({{TOPIC}}) and the output of any earlier step ({{Step1.output}}).

Chain prompts live in .chain/prompts/ as YAML. A run sends each rendered
step to the host editor (a browser page over the bridge, a terminal chat
UI in tmux, or the built-in simulator), waits for the reply, and feeds it
to the following steps.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLs(cmd, args)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&workDir, "workdir", "C", "", "working directory (default: current)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colors")
	rootCmd.PersistentFlags().BoolVar(&markdown, "markdown", false, "render step outputs as markdown")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ~/.chain/config.toml then .chain/config.toml)")

	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("chain {{.Version}}\n")
}

// getWorkDir returns the effective working directory.
func getWorkDir() (string, error) {
	if workDir != "" {
		return filepath.Abs(workDir)
	}
	return os.Getwd()
}

// loadConfig loads and validates the layered configuration for dir.
func loadConfig(dir string) (*config.Config, error) {
	load := func() (*config.Config, error) { return config.LoadFromDir(dir) }
	if configFile != "" {
		load = func() (*config.Config, error) { return config.Load(configFile) }
	}
	cfg, err := load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openPromptStore opens the prompt store configured for the working
// directory.
func openPromptStore() (*promptstore.YAMLStore, *config.Config, string, error) {
	dir, err := getWorkDir()
	if err != nil {
		return nil, nil, "", err
	}
	cfg, err := loadConfig(dir)
	if err != nil {
		return nil, nil, "", err
	}
	store, err := promptstore.NewYAMLStore(cfg.PromptsDir(dir))
	if err != nil {
		return nil, nil, "", fmt.Errorf("opening prompt store: %w", err)
	}
	return store, cfg, dir, nil
}

// resolvePrompt finds a prompt by ID, unique ID prefix, or exact name.
func resolvePrompt(ctx context.Context, store promptstore.Store, ref string) (*types.ChainPrompt, error) {
	if p, err := store.Get(ctx, ref); err == nil {
		return p, nil
	} else if !chainerr.HasCode(err, chainerr.CodePromptNotFound) && !chainerr.HasCode(err, chainerr.CodePromptInvalid) {
		return nil, err
	}

	all, err := store.List(ctx, promptstore.Filter{})
	if err != nil {
		return nil, err
	}
	var matches []*types.ChainPrompt
	for _, p := range all {
		if strings.HasPrefix(p.ID, ref) || p.Name == ref {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		return nil, chainerr.PromptNotFound(ref)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%q matches %d chain prompts, use a longer ID", ref, len(matches))
	}
}

// parseVars parses repeated name=value flags.
func parseVars(pairs []string) (map[string]string, error) {
	vars := make(map[string]string, len(pairs))
	for _, v := range pairs {
		parts := strings.SplitN(v, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("invalid variable format: %s (expected name=value)", v)
		}
		vars[parts[0]] = parts[1]
	}
	return vars, nil
}

// loadVars reads variables from an env-style file, if given, and applies
// the name=value flags over them.
func loadVars(file string, pairs []string) (map[string]string, error) {
	flagVars, err := parseVars(pairs)
	if err != nil {
		return nil, err
	}
	if file == "" {
		return flagVars, nil
	}
	vars, err := godotenv.Read(file)
	if err != nil {
		return nil, fmt.Errorf("reading variables from %s: %w", file, err)
	}
	for k, v := range flagVars {
		vars[k] = v
	}
	return vars, nil
}

func prompter() *cli.Prompter {
	return cli.NewPrompter(stdin, os.Stdout)
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatOptions(quiet bool) status.FormatOptions {
	return status.FormatOptions{NoColor: noColor, Quiet: quiet, Markdown: markdown}
}
