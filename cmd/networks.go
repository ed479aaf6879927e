package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/crytic/plum/config"
	"github.com/crytic/plum/contracts"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"
)

// networksCmd represents the command provider for networks
var networksCmd = &cobra.Command{
	Use:               "networks",
	Short:             "Shows the deployed addresses of the project's contracts",
	Long:              `Shows, for every artifact and network, the addresses the contract was deployed at and the libraries it links against`,
	Args:              cobra.NoArgs,
	ValidArgsFunction: cmdValidNetworksArgs,
	RunE:              cmdRunNetworks,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	// Add the networks command to the root command
	rootCmd.AddCommand(networksCmd)
}

// cmdValidNetworksArgs will return which flags are valid for dynamic completion for the networks command
func cmdValidNetworksArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return unusedFlagCompletions(cmd), cobra.ShellCompDirectiveNoFileComp
}

// cmdRunNetworks executes the networks CLI command
func cmdRunNetworks(cmd *cobra.Command, args []string) error {
	projectConfig, err := loadProjectConfig(cmd)
	if err != nil {
		cmdLogger.Error("Failed to run the networks command", err)
		return err
	}

	report, err := networksReport(projectConfig)
	if err != nil {
		cmdLogger.Error("Failed to run the networks command", err)
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), report)
	return nil
}

// networksReport renders the deployment records of every artifact in the build directory. Artifacts that cannot be
// read are reported and skipped.
func networksReport(projectConfig *config.ProjectConfig) (string, error) {
	store := contracts.NewStore(projectConfig.BuildDirectory())
	paths, err := store.List()
	if err != nil {
		return "", err
	}

	// Name the network ids the configuration knows about
	networkNames := make(map[uint64]string)
	for _, name := range projectConfig.NetworkNames() {
		if id := projectConfig.Networks[name].NetworkID; id != 0 {
			networkNames[id] = name
		}
	}

	var sb strings.Builder
	for _, path := range paths {
		contract, err := store.Load(path)
		if err != nil {
			cmdLogger.Warn("Skipping unreadable artifact ", path, ": ", err)
			continue
		}

		relativePath, err := filepath.Rel(store.Directory(), path)
		if err != nil {
			relativePath = path
		}
		sb.WriteString(contract.Name() + " (" + relativePath + ")\n")

		networkIDs := contract.Networks()
		if len(networkIDs) == 0 {
			sb.WriteString("  No deployments\n")
			continue
		}
		for _, networkID := range networkIDs {
			record, _ := contract.Record(networkID)
			label := fmt.Sprintf("%d", networkID)
			if name, ok := networkNames[networkID]; ok {
				label += " (" + name + ")"
			}
			sb.WriteString("  Network " + label + ":\n")

			if address, ok := record.Address.Latest(); ok {
				sb.WriteString("    " + address + "\n")
				if len(record.Address) > 1 {
					sb.WriteString(fmt.Sprintf("    %d earlier address(es) from the last session\n", len(record.Address)-1))
				}
			}

			libraries := make([]string, 0, len(record.Links))
			for library := range record.Links {
				libraries = append(libraries, library)
			}
			slices.Sort(libraries)
			for _, library := range libraries {
				sb.WriteString("    links " + library + " => " + record.Links[library] + "\n")
			}
		}
	}
	return sb.String(), nil
}
