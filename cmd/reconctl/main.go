package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	var opts clientOptions

	rootCmd := &cobra.Command{
		Use:     "reconctl",
		Short:   "Operate the payment reconciliation service",
		Version: Version,
	}

	rootCmd.PersistentFlags().StringVar(&opts.Server, "server", envOr("RECONCTL_SERVER", "http://localhost:8080"), "Service base URL")
	rootCmd.PersistentFlags().StringVar(&opts.Token, "token", os.Getenv("RECONCTL_TOKEN"), "Operator bearer token")

	// Add subcommands
	rootCmd.AddCommand(sendCmd(&opts))
	rootCmd.AddCommand(unmatchedCmd(&opts))
	rootCmd.AddCommand(historyCmd(&opts))
	rootCmd.AddCommand(pendingCmd(&opts))
	rootCmd.AddCommand(statsCmd(&opts))
	rootCmd.AddCommand(matchCmd(&opts))
	rootCmd.AddCommand(cashCmd(&opts))
	rootCmd.AddCommand(cancelCmd(&opts))
	rootCmd.AddCommand(archiveCmd(&opts))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
