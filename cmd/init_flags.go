package cmd

import (
	"github.com/spf13/pflag"
)

// addInitFlags adds the various flags for the init command
func addInitFlags() error {
	// Directory the project is created in
	initCmd.Flags().String("working-directory", "", "directory to create the project in (default: the working directory)")

	// Accept --wd as an alias of --working-directory
	initCmd.Flags().SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		if name == "wd" {
			name = "working-directory"
		}
		return pflag.NormalizedName(name)
	})

	return nil
}
