package cmd

import (
	"os"

	"github.com/crytic/plum/logging"
	"github.com/crytic/plum/version"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// rootCmd represents the root CLI command object which all other commands stem from.
var rootCmd = &cobra.Command{
	Use:     "plum",
	Version: version.GetInfo().Short(),
	Short:   "A smart contract build and deployment orchestrator",
	Long:    "plum compiles smart contracts incrementally and deploys them to the configured networks",
}

// cmdLogger is the logger that will be used for the cmd package
var cmdLogger = logging.NewLogger(zerolog.InfoLevel)

func init() {
	// Commands that load a project configuration share these flags
	rootCmd.PersistentFlags().String("config", "", "path to the project configuration file (default: plum.json in the working directory)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored terminal output")
}

// Execute provides an exportable function to invoke the CLI. Returns an error if one was encountered.
func Execute() error {
	// Add stdout as an unstructured, colorized output stream for the command logger
	cmdLogger.AddWriter(os.Stdout, logging.UNSTRUCTURED, true)

	return rootCmd.Execute()
}
