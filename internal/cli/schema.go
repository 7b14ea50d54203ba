package cli

import (
	"github.com/spf13/cobra"

	"github.com/alexander-akhmetov/mat/internal/record"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema of the build record",
	Long: `Print the JSON Schema describing prd.json, for editors and for tools
that generate build records.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		data, err := record.Schema()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}
