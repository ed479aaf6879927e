package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/crytic/plum/compilation"
	"github.com/crytic/plum/config"
	"github.com/crytic/plum/logging/colors"
	"github.com/crytic/plum/utils"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Get supported platforms for customized static completions of "init" flag `$ plum init <tab> <tab>`
// and to cache supported platforms for CLI arguments validation
var supportedPlatforms = compilation.GetSupportedCompilationPlatforms()

// initCmd represents the command provider for init
var initCmd = &cobra.Command{
	Use:               "init [platform]",
	Short:             "Initializes a new project",
	Long:              `Initializes a new project with a configuration file, contracts and build directories, and an empty deployment plan`,
	Args:              cmdValidateInitArgs,
	ValidArgsFunction: cmdValidInitArgs,
	RunE:              cmdRunInit,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	// Add flags to init command
	err := addInitFlags()
	if err != nil {
		cmdLogger.Panic("Failed to initialize the init command", err)
	}

	// Add the init command and its associated flags to the root command
	rootCmd.AddCommand(initCmd)
}

// cmdValidInitArgs will return which flags and sub-commands are valid for dynamic completion for the init command
func cmdValidInitArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	unusedFlags := unusedFlagCompletions(cmd)

	// Suggest platforms only while the positional argument is still missing
	if len(args) == 0 {
		unusedFlags = append(unusedFlags, supportedPlatforms...)
	}
	return unusedFlags, cobra.ShellCompDirectiveNoFileComp
}

// unusedFlagCompletions returns the flags of a command that have not been set on the command line yet, prefixed
// with "--" so they are not mistaken for positional arguments.
func unusedFlagCompletions(cmd *cobra.Command) []string {
	var unusedFlags []string
	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		if !flag.Changed {
			unusedFlags = append(unusedFlags, "--"+flag.Name)
		}
	})
	return unusedFlags
}

// cmdValidateInitArgs validates CLI arguments
func cmdValidateInitArgs(cmd *cobra.Command, args []string) error {
	// Make sure we have no more than 1 arg
	if err := cobra.RangeArgs(0, 1)(cmd, args); err != nil {
		err = fmt.Errorf("init accepts at most 1 platform argument (options: %s). "+
			"default platform is %v", strings.Join(supportedPlatforms, ", "), DefaultCompilationPlatform)
		cmdLogger.Error("Failed to validate args to the init command", err)
		return err
	}

	// Ensure the optional provided argument refers to a supported platform
	if len(args) == 1 && !compilation.IsSupportedCompilationPlatform(args[0]) {
		err := fmt.Errorf("init was provided invalid platform argument '%s' (options: %s)", args[0], strings.Join(supportedPlatforms, ", "))
		cmdLogger.Error("Failed to validate args to the init command", err)
		return err
	}

	return nil
}

// cmdRunInit executes the init CLI command and creates the project skeleton
func cmdRunInit(cmd *cobra.Command, args []string) error {
	targetDirectory, err := cmd.Flags().GetString("working-directory")
	if err != nil {
		cmdLogger.Error("Failed to run the init command", err)
		return err
	}
	if targetDirectory == "" {
		targetDirectory, err = os.Getwd()
		if err != nil {
			cmdLogger.Error("Failed to run the init command", err)
			return err
		}
	}

	platform := DefaultCompilationPlatform
	if len(args) == 1 {
		platform = args[0]
	}

	err = initProject(targetDirectory, platform)
	if err != nil {
		cmdLogger.Error("Failed to run the init command", err)
		return err
	}

	if absoluteDirectory, err := filepath.Abs(targetDirectory); err == nil {
		targetDirectory = absoluteDirectory
	}
	cmdLogger.Info("Project successfully initialized in: ", colors.Bold, targetDirectory, colors.Reset)
	return nil
}

// initProject creates a new project in the target directory, which must be empty or not exist yet.
func initProject(targetDirectory string, platform string) error {
	empty, err := utils.IsDirectoryEmpty(targetDirectory)
	if err != nil {
		return err
	}
	if !empty {
		return errors.New("Target folder exists and is not empty.")
	}

	projectConfig, err := config.GetDefaultProjectConfig(platform)
	if err != nil {
		return err
	}

	for _, directory := range []string{projectConfig.Directories.Contracts, projectConfig.Directories.Build} {
		err = utils.MakeDirectory(filepath.Join(targetDirectory, directory))
		if err != nil {
			return err
		}
	}

	err = utils.WriteFileAtomic(filepath.Join(targetDirectory, projectConfig.Deployment.Script), []byte(DefaultDeploymentScript), 0644)
	if err != nil {
		return err
	}

	return projectConfig.WriteToFile(filepath.Join(targetDirectory, DefaultProjectConfigFilename))
}
