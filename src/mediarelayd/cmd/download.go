package cmd

import (
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"
	"github.com/q-controller/mediarelay/src/pkg/relay"
	"github.com/q-controller/mediarelay/src/pkg/utils"
	"github.com/spf13/cobra"
)

var downloadCmd = &cobra.Command{
	Use:   "download NAME|URL",
	Short: "Fetches an asset from a running relay",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		server, serverErr := cmd.Flags().GetString("server")
		if serverErr != nil {
			return fmt.Errorf("failed to get server: %w", serverErr)
		}
		output, outputErr := cmd.Flags().GetString("output")
		if outputErr != nil {
			return fmt.Errorf("failed to get output: %w", outputErr)
		}

		cli, cliErr := relay.NewClient(server, "", nil)
		if cliErr != nil {
			return cliErr
		}

		// URLs printed by upload end with the asset name.
		name := path.Base(args[0])

		if output == "" {
			return cli.Download(cmd.Context(), name, cmd.OutOrStdout())
		}
		return utils.WriteFileAtomic(output, output+"."+uuid.NewString()+".part", func(w io.Writer) error {
			return cli.Download(cmd.Context(), name, w)
		})
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().StringP("server", "s", "http://localhost:3000", "Address of the relay")
	downloadCmd.Flags().StringP("output", "o", "", "Write the asset to this file instead of stdout")
}
