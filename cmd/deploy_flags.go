package cmd

import (
	"github.com/crytic/plum/config"
	"github.com/spf13/cobra"
)

// addDeployFlags adds the various flags for the deploy command
func addDeployFlags() error {
	// Network selection
	deployCmd.Flags().String("network", "", "name of the network to deploy to (default: the project's network)")

	// Compilation behavior
	deployCmd.Flags().Bool("no-compile", false, "deploy the existing artifacts without compiling first")
	deployCmd.Flags().Bool("recompile", false, "recompile every contract before deploying")
	deployCmd.MarkFlagsMutuallyExclusive("no-compile", "recompile")

	// Deployment plan
	deployCmd.Flags().String("script", "", "path to the deployment plan (default: the project's deployment script)")

	return nil
}

// updateProjectConfigWithDeployFlags will update the given projectConfig with any CLI arguments that were provided to
// the deploy command
func updateProjectConfigWithDeployFlags(cmd *cobra.Command, projectConfig *config.ProjectConfig) error {
	var err error

	if cmd.Flags().Changed("network") {
		projectConfig.Network, err = cmd.Flags().GetString("network")
		if err != nil {
			return err
		}
	}

	if cmd.Flags().Changed("script") {
		projectConfig.Deployment.Script, err = cmd.Flags().GetString("script")
		if err != nil {
			return err
		}
	}

	return nil
}
