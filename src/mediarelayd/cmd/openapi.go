package cmd

import (
	"fmt"

	"github.com/q-controller/mediarelay/src/mediarelayd/cmd/utils"
	"github.com/spf13/cobra"
)

var openapiCmd = &cobra.Command{
	Use:    "openapi",
	Short:  "Produces OpenAPI specifications for the relay",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, docErr := utils.GenerateOpenAPISpecs()
		if docErr != nil {
			return fmt.Errorf("failed to generate OpenAPI specs: %w", docErr)
		}

		fmt.Fprintln(cmd.OutOrStdout(), doc)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(openapiCmd)
}
