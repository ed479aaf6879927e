package cmd

import (
	"github.com/crytic/plum/cmd/exitcodes"
	"github.com/spf13/cobra"
)

// compileCmd represents the command provider for compile
var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compiles the contracts of the project",
	Long: `Compiles every contract whose source, or any source it imports, changed since its artifacts were last
written. Use --all to recompile everything.`,
	Args:              cobra.NoArgs,
	ValidArgsFunction: cmdValidCompileArgs,
	RunE:              cmdRunCompile,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	// Add flags to compile command
	err := addCompileFlags()
	if err != nil {
		cmdLogger.Panic("Failed to initialize the compile command", err)
	}

	// Add the compile command and its associated flags to the root command
	rootCmd.AddCommand(compileCmd)
}

// cmdValidCompileArgs will return which flags are valid for dynamic completion for the compile command
func cmdValidCompileArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return unusedFlagCompletions(cmd), cobra.ShellCompDirectiveNoFileComp
}

// cmdRunCompile executes the compile CLI command
func cmdRunCompile(cmd *cobra.Command, args []string) error {
	projectConfig, err := loadProjectConfig(cmd)
	if err != nil {
		cmdLogger.Error("Failed to run the compile command", err)
		return err
	}

	forceAll, err := cmd.Flags().GetBool("all")
	if err != nil {
		cmdLogger.Error("Failed to run the compile command", err)
		return err
	}

	ctx, stop := interruptContext()
	defer stop()

	err = buildProject(ctx, projectConfig, forceAll)
	if _, exitCode := exitcodes.GetInnerErrorAndExitCode(err); err != nil && !exitcodes.IsReported(exitCode) {
		cmdLogger.Error("Failed to run the compile command", err)
	}
	return err
}
