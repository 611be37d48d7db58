// Package main is the entry point for the lintbridge host.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lintbridge",
	Short: "Coordinate an editor workspace with a lint language server",
	Long: `lintbridge runs a lint language server against a workspace and drives
the client side of the protocol: it decides which documents the server
should analyze, answers the server's configuration requests, and migrates
deprecated settings once, with the user's consent.`,
}

func main() {
	rootCmd.Version = version

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
