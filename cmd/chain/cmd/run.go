package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/meow-stack/promptchain/internal/cli"
	"github.com/meow-stack/promptchain/internal/config"
	"github.com/meow-stack/promptchain/internal/executor"
	"github.com/meow-stack/promptchain/internal/history"
	"github.com/meow-stack/promptchain/internal/ipc"
	"github.com/meow-stack/promptchain/internal/logging"
	"github.com/meow-stack/promptchain/internal/promptstore"
	"github.com/meow-stack/promptchain/internal/runner"
	"github.com/meow-stack/promptchain/internal/status"
	"github.com/meow-stack/promptchain/internal/template"
	"github.com/meow-stack/promptchain/internal/trigger"
	"github.com/meow-stack/promptchain/internal/types"
)

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Run a chain prompt",
	Long: `Run a chain prompt against the configured host editor.

Each step is rendered, inserted into the chat input, sent, and its reply
captured before the next step starts. Placeholders that cannot be resolved
are sent verbatim.

While a run is in progress, 'chain abort' and 'chain state' reach it
through a control socket. Ctrl-C aborts the run; a second Ctrl-C exits
immediately.

Without a prompt argument, the chain prompts are listed to choose from.

Logs go to .chain/logs/<run-id>.log and the result is recorded in the run
history.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

var (
	runVars      []string
	runVarFile   string
	runHost      string
	runSimConfig string
	runQuiet     bool
	runNoHistory bool
)

func init() {
	runCmd.Flags().StringArrayVar(&runVars, "var", nil, "variable values (format: name=value)")
	runCmd.Flags().StringVar(&runVarFile, "var-file", "", "read variables from a .env file (--var overrides)")
	runCmd.Flags().StringVar(&runHost, "host", "", "host editor: bridge, tmux or sim (default from config)")
	runCmd.Flags().StringVar(&runSimConfig, "sim-config", "", "simulator behavior file (YAML) for --host sim")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "omit prompts and outputs from the result")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "do not record the run")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	vars, err := loadVars(runVarFile, runVars)
	if err != nil {
		return err
	}

	store, cfg, dir, err := openPromptStore()
	if err != nil {
		return err
	}
	if runHost != "" {
		cfg.Host.Kind = config.HostKind(runHost)
		if !cfg.Host.Kind.Valid() {
			return fmt.Errorf("unknown host %q (want bridge, tmux or sim)", runHost)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var prompt *types.ChainPrompt
	if len(args) == 1 {
		prompt, err = resolvePrompt(ctx, store, args[0])
	} else {
		prompt, err = selectPrompt(ctx, store)
	}
	if err != nil || prompt == nil {
		return err
	}
	socketPath := ipc.SocketPath(dir)
	if state, err := ipc.NewClient(socketPath).State(); err == nil && state.IsRunning {
		return fmt.Errorf("run %s is already in progress in this directory", state.RunID)
	}
	for _, issue := range template.Lint(prompt) {
		fmt.Printf("warning: %s\n", issue)
	}

	runID := "run-" + uuid.NewString()[:8]
	logger, logFile, err := logging.NewForRun(cfg, dir, runID)
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	defer logFile.Close()

	opts := []runner.Option{runner.WithIDGenerator(func() string { return runID })}
	if !runNoHistory {
		hist, err := history.Open(cfg.HistoryDB(dir))
		if err != nil {
			return fmt.Errorf("opening run history: %w", err)
		}
		defer hist.Close()
		opts = append(opts, runner.WithRecorder(hist))
	}

	feed := trigger.NewFeed()
	defer feed.Close()

	session, err := openHost(ctx, cfg, runSimConfig, feed, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	exec := executor.New(executor.OptionsFromConfig(cfg.Executor), logger)
	coord := runner.New(session.editor, exec, logger, opts...)

	if session.bridge != nil {
		stop, err := serveBridge(ctx, cfg, session, coord, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	go trigger.Watch(ctx, feed.Events(), coord, logger)

	ipcServer := ipc.NewServer(socketPath, ipc.NewRunHandler(coord, feed), logger)
	if err := ipcServer.StartAsync(ctx); err != nil {
		return fmt.Errorf("starting control socket: %w", err)
	}
	defer ipcServer.Shutdown()

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		fmt.Println("\nAborting run...")
		coord.Abort(types.AbortUser)
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	if !runQuiet {
		unsubscribe := coord.Subscribe(newProgressPrinter().print)
		defer unsubscribe()
	}

	fmt.Printf("Running %q (%s), %d step(s)\n", prompt.Name, runID, len(prompt.Steps))
	if verbose {
		fmt.Printf("Control socket: %s\n", ipcServer.Path())
		fmt.Printf("Log file: %s\n", logFilePath(cfg, dir, runID))
	}

	result, err := coord.Start(ctx, prompt, vars)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Print(status.FormatResult(result, len(prompt.Steps), formatOptions(runQuiet)))

	if result.Status == types.RunStatusFailed {
		return fmt.Errorf("run %s failed", result.RunID)
	}
	return nil
}

// selectPrompt asks the user to pick a stored prompt. It returns nil if
// the user cancels.
func selectPrompt(ctx context.Context, store promptstore.Store) (*types.ChainPrompt, error) {
	prompts, err := store.List(ctx, promptstore.Filter{})
	if err != nil {
		return nil, err
	}
	if len(prompts) == 0 {
		return nil, fmt.Errorf("no chain prompts; add one with 'chain create -f <file>'")
	}

	options := make([]cli.Option, len(prompts))
	for i, p := range prompts {
		options[i] = cli.Option{Value: p.ID, Label: fmt.Sprintf("%s (%d step(s))", p.Name, len(p.Steps))}
	}
	id, err := prompter().Select("Run which chain prompt?", options)
	if err != nil || id == "" {
		return nil, err
	}
	return store.Get(ctx, id)
}

func logFilePath(cfg *config.Config, dir, runID string) string {
	return filepath.Join(cfg.LogsDir(dir), runID+".log")
}

// progressPrinter prints one line per step transition.
type progressPrinter struct {
	seen map[int]types.StepStatus
}

func newProgressPrinter() *progressPrinter {
	return &progressPrinter{seen: make(map[int]types.StepStatus)}
}

func (p *progressPrinter) print(state types.RunState) {
	for _, step := range state.Steps {
		if p.seen[step.StepIndex] == step.Status {
			continue
		}
		p.seen[step.StepIndex] = step.Status
		if line := progressLine(step, state.TotalSteps); line != "" {
			fmt.Println(line)
		}
	}
}

func progressLine(step types.StepState, total int) string {
	prefix := fmt.Sprintf("[%d/%d] %s", step.StepIndex+1, total, step.StepName)
	switch step.Status {
	case types.StepStatusRunning:
		return prefix + ": sending"
	case types.StepStatusSucceeded:
		return prefix + ": done"
	case types.StepStatusFailed:
		return prefix + ": " + step.Error
	default:
		return ""
	}
}
