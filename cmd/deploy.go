package cmd

import (
	"github.com/crytic/plum/chain"
	"github.com/crytic/plum/cmd/exitcodes"
	"github.com/crytic/plum/config"
	"github.com/crytic/plum/contracts"
	"github.com/crytic/plum/deployment"
	"github.com/crytic/plum/logging/colors"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/net/context"
)

// deployCmd represents the command provider for deploy
var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Compiles the project and runs its deployment plan",
	Long: `Compiles the contracts that changed, then runs the project's deployment plan against the selected network.
Deployed addresses and library links are recorded in the artifacts.`,
	Args:              cobra.NoArgs,
	ValidArgsFunction: cmdValidDeployArgs,
	RunE:              cmdRunDeploy,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	// Add flags to deploy command
	err := addDeployFlags()
	if err != nil {
		cmdLogger.Panic("Failed to initialize the deploy command", err)
	}

	// Add the deploy command and its associated flags to the root command
	rootCmd.AddCommand(deployCmd)
}

// cmdValidDeployArgs will return which flags are valid for dynamic completion for the deploy command
func cmdValidDeployArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return unusedFlagCompletions(cmd), cobra.ShellCompDirectiveNoFileComp
}

// cmdRunDeploy executes the deploy CLI command
func cmdRunDeploy(cmd *cobra.Command, args []string) error {
	projectConfig, err := loadProjectConfig(cmd)
	if err != nil {
		cmdLogger.Error("Failed to run the deploy command", err)
		return err
	}

	err = updateProjectConfigWithDeployFlags(cmd, projectConfig)
	if err != nil {
		cmdLogger.Error("Failed to run the deploy command", err)
		return err
	}

	noCompile, err := cmd.Flags().GetBool("no-compile")
	if err != nil {
		cmdLogger.Error("Failed to run the deploy command", err)
		return err
	}
	recompile, err := cmd.Flags().GetBool("recompile")
	if err != nil {
		cmdLogger.Error("Failed to run the deploy command", err)
		return err
	}

	ctx, stop := interruptContext()
	defer stop()

	if !noCompile {
		err = buildProject(ctx, projectConfig, recompile)
		if err != nil {
			if _, exitCode := exitcodes.GetInnerErrorAndExitCode(err); !exitcodes.IsReported(exitCode) {
				cmdLogger.Error("Failed to run the deploy command", err)
			}
			return err
		}
	}

	err = runDeployment(ctx, projectConfig)
	if err != nil {
		cmdLogger.Error("Deployment failed", err)

		var timeoutErr *chain.TimeoutError
		if errors.As(err, &timeoutErr) {
			return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeTransactionTimeout)
		}
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeDeploymentFailed)
	}
	return nil
}

// runDeployment connects to the project's selected network and runs its deployment plan.
func runDeployment(ctx context.Context, projectConfig *config.ProjectConfig) error {
	networkName, network, err := projectConfig.SelectNetwork(projectConfig.Network)
	if err != nil {
		return err
	}

	plan, err := deployment.ReadPlanFromFile(projectConfig.ScriptPath())
	if err != nil {
		return err
	}

	cmdLogger.Info("Connecting to network ", colors.Bold, networkName, colors.Reset, " at ", network.Endpoint())
	client, err := chain.Dial(ctx, network.Endpoint())
	if err != nil {
		return err
	}
	defer client.Close()

	return deployment.Deploy(ctx, deployment.Options{
		Node:        client,
		NetworkName: networkName,
		Network:     network,
		Store:       contracts.NewStore(projectConfig.BuildDirectory()),
		Deployment:  projectConfig.Deployment,
		JournalPath: projectConfig.JournalPath(),
		Script:      plan,
	})
}
