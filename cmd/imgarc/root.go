package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"imgarc/pkg/config"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands.
// Running it bare is a sync, the everyday operation.
var rootCmd = &cobra.Command{
	Use:   "imgarc",
	Short: "Incremental archiver for a remote image library",
	Long: `imgarc keeps a local gallery in sync with a remote image library.

Each run lists the remote library, downloads only the images that are
not archived yet, records their metadata in gallery/metadata.json and
re-renders a static, searchable gallery viewer.

Credentials come from an auth.txt key=value file (see 'imgarc auth').`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .imgarc.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	rootCmd.SetVersionTemplate(`imgarc {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loggingConfig builds a logging config from the global flags alone,
// for commands that never touch the rest of the configuration.
func loggingConfig() *config.LoggingConfig {
	level := "info"
	if logLevel != "" {
		level = logLevel
	}
	if quiet {
		level = "error"
	}
	return &config.LoggingConfig{Level: level}
}

// globalFlags builds the flag override map handed to config.Load
func globalFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if quiet {
		flags["log-level"] = "error"
	}
	return flags
}
