package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/crytic/plum/config"
	"github.com/crytic/plum/contracts"
	"github.com/crytic/plum/deployment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestInitProject checks that init creates a project that loads and validates, with an empty deployment plan.
func TestInitProject(t *testing.T) {
	projectDirectory := filepath.Join(t.TempDir(), "project")
	require.NoError(t, initProject(projectDirectory, DefaultCompilationPlatform))

	assert.DirExists(t, filepath.Join(projectDirectory, "contracts"))
	assert.DirExists(t, filepath.Join(projectDirectory, "build"))

	projectConfig, err := config.ReadProjectConfigFromFile(filepath.Join(projectDirectory, DefaultProjectConfigFilename))
	require.NoError(t, err)
	require.NoError(t, projectConfig.Validate())
	assert.Equal(t, DefaultCompilationPlatform, projectConfig.Compilation.Platform)

	plan, err := deployment.ReadPlanFromFile(projectConfig.ScriptPath())
	require.NoError(t, err)
	assert.Empty(t, plan.Steps)
}

// TestInitProjectRequiresEmptyDirectory checks that init refuses to write into a directory that holds files, but
// accepts an existing empty one.
func TestInitProjectRequiresEmptyDirectory(t *testing.T) {
	projectDirectory := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(projectDirectory, "README.md"), []byte("hello"), 0644))

	err := initProject(projectDirectory, DefaultCompilationPlatform)
	require.Error(t, err)
	assert.Equal(t, "Target folder exists and is not empty.", err.Error())
	assert.NoFileExists(t, filepath.Join(projectDirectory, DefaultProjectConfigFilename))

	require.NoError(t, initProject(t.TempDir(), DefaultCompilationPlatform))
}

// TestInitWorkingDirectoryAlias checks that --wd is accepted in place of --working-directory.
func TestInitWorkingDirectoryAlias(t *testing.T) {
	projectDirectory := filepath.Join(t.TempDir(), "project")
	require.NoError(t, initCmd.Flags().Parse([]string{"--wd", projectDirectory}))

	value, err := initCmd.Flags().GetString("working-directory")
	require.NoError(t, err)
	assert.Equal(t, projectDirectory, value)
}

// TestNetworksReport checks that the report lists the latest address of every deployed contract under the configured
// network name, and marks contracts without deployments.
func TestNetworksReport(t *testing.T) {
	projectConfig, err := config.GetDefaultProjectConfig(DefaultCompilationPlatform)
	require.NoError(t, err)
	projectConfig.Directories.Base = t.TempDir()
	projectConfig.Networks["testnet"] = &config.NetworkConfig{URL: "http://localhost:9545", NetworkID: 5}

	store := contracts.NewStore(projectConfig.BuildDirectory())
	newArtifact := func(name string) *contracts.Contract {
		contract, err := contracts.NewContract(contracts.ContractDefinition{
			Name:     name,
			Abi:      json.RawMessage(`[]`),
			Bytecode: "0x6080",
		})
		require.NoError(t, err)
		return contract
	}

	token := newArtifact("Token")
	require.NoError(t, token.SetAddress(5, "0x1111111111111111111111111111111111111111"))
	require.NoError(t, token.SetAddress(5, "0x2222222222222222222222222222222222222222"))
	require.NoError(t, store.Save(token, store.ArtifactPath("", "Token"), true))
	require.NoError(t, store.Save(newArtifact("Lib"), store.ArtifactPath("", "Lib"), true))

	report, err := networksReport(projectConfig)
	require.NoError(t, err)
	assert.Contains(t, report, "Lib (Lib.json)\n  No deployments\n")
	assert.Contains(t, report, "Token (Token.json)\n  Network 5 (testnet):\n    0x2222222222222222222222222222222222222222\n")
	assert.Contains(t, report, "1 earlier address(es)")
}
