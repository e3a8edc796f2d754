package main

import (
	"fmt"
	"os"

	"github.com/nimbusfs/blockauth/pkg/log"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "blockauthd",
	Short: "blockauthd - block access token master and slave daemons",
	Long: `blockauthd mints and verifies short-lived, HMAC-authenticated
block access tokens for a distributed file system: one master mints
and rotates keys, any number of slaves verify tokens locally against a
periodically refreshed copy of the master's key registry.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"blockauthd version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file (overrides flags it sets)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveMasterCmd)
	rootCmd.AddCommand(serveSlaveCmd)
	rootCmd.AddCommand(mintCmd)
	rootCmd.AddCommand(inspectKeyCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}
