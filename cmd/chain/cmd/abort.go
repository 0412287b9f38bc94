package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meow-stack/promptchain/internal/ipc"
	"github.com/meow-stack/promptchain/internal/status"
	"github.com/meow-stack/promptchain/internal/types"
)

var (
	abortNavigation bool
	abortURL        string
)

var abortCmd = &cobra.Command{
	Use:   "abort",
	Short: "Abort the run in progress",
	Long: `Abort the chain run in progress in this directory.

The step being sent is marked failed, the host's generation is stopped if
one is in progress, and no further steps run.

With --navigation the abort is delivered as a page navigation event, the
same way a chat page reports leaving the conversation.`,
	Args: cobra.NoArgs,
	RunE: runAbort,
}

var (
	stateJSON  bool
	stateQuiet bool
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the state of the run in progress",
	Args:  cobra.NoArgs,
	RunE:  runState,
}

func init() {
	abortCmd.Flags().BoolVar(&abortNavigation, "navigation", false, "report a page navigation instead of a user abort")
	abortCmd.Flags().StringVar(&abortURL, "url", "", "page URL carried by the navigation event")
	stateCmd.Flags().BoolVarP(&stateJSON, "json", "j", false, "output as JSON")
	stateCmd.Flags().BoolVarP(&stateQuiet, "quiet", "q", false, "omit the prompt being sent")
	rootCmd.AddCommand(abortCmd)
	rootCmd.AddCommand(stateCmd)
}

func controlClient() (*ipc.Client, error) {
	dir, err := getWorkDir()
	if err != nil {
		return nil, err
	}
	return ipc.NewClient(ipc.SocketPath(dir)), nil
}

func runAbort(cmd *cobra.Command, args []string) error {
	client, err := controlClient()
	if err != nil {
		return err
	}

	var aborted bool
	if abortNavigation {
		aborted, err = client.Navigate(abortURL)
	} else {
		aborted, err = client.Abort(types.AbortUser)
	}
	if err != nil {
		return err
	}
	if !aborted {
		fmt.Println("No run in progress.")
		return nil
	}
	fmt.Println("Run aborted.")
	return nil
}

func runState(cmd *cobra.Command, args []string) error {
	client, err := controlClient()
	if err != nil {
		return err
	}

	state, err := client.State()
	if errors.Is(err, ipc.ErrNoRun) {
		state, err = types.IdleState(), nil
	}
	if err != nil {
		return err
	}

	if stateJSON {
		return printJSON(state)
	}
	fmt.Print(status.FormatState(state, formatOptions(stateQuiet)))
	return nil
}
