package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "doccontrol",
		Short:         "Multi-tenant document control service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before reading the environment")

	cmd.AddCommand(
		serveCmd(&envFile),
		migrateCmd(&envFile),
		seedCmd(&envFile),
		tenantCmd(&envFile),
		tokenCmd(&envFile),
	)
	return cmd
}
