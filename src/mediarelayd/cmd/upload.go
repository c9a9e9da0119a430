package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/q-controller/mediarelay/src/pkg/relay"
	"github.com/spf13/cobra"
)

func uploadFile(cmd *cobra.Command, cli *relay.Client, path string) (string, error) {
	file, openErr := os.Open(path)
	if openErr != nil {
		return "", openErr
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("Failed to close file", "error", closeErr)
		}
	}()

	return cli.Upload(cmd.Context(), file.Name(), file)
}

var uploadCmd = &cobra.Command{
	Use:   "upload FILE...",
	Short: "Uploads files to a running relay and prints their URLs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		server, serverErr := cmd.Flags().GetString("server")
		if serverErr != nil {
			return fmt.Errorf("failed to get server: %w", serverErr)
		}
		secret, secretErr := cmd.Flags().GetString("secret")
		if secretErr != nil {
			return fmt.Errorf("failed to get secret: %w", secretErr)
		}
		if secret == "" {
			secret = os.Getenv("API_SECRET")
		}
		if secret == "" {
			return errors.New("a secret is required (--secret or API_SECRET)")
		}

		cli, cliErr := relay.NewClient(server, secret, nil)
		if cliErr != nil {
			return cliErr
		}

		var errs []error
		for _, path := range args {
			url, uploadErr := uploadFile(cmd, cli, path)
			if uploadErr != nil {
				errs = append(errs, fmt.Errorf("%s: %w", path, uploadErr))
				continue
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
		}
		return errors.Join(errs...)
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().StringP("server", "s", "http://localhost:3000", "Address of the relay")
	uploadCmd.Flags().String("secret", "", "Upload secret, defaults to API_SECRET")
}
