package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meow-stack/promptchain/internal/promptstore"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema for chain prompt files",
	Long: `Print the JSON Schema describing the YAML files accepted by
'chain create -f' and 'chain validate -f'. Point an editor's YAML language
server at it for completion and checking.`,
	Args: cobra.NoArgs,
	RunE: runSchema,
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}

func runSchema(cmd *cobra.Command, args []string) error {
	data, err := promptstore.GenerateJSONSchema()
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
